package caskdb

import (
	"fmt"
	"net"

	"github.com/0xRadioAc7iv/go-caskdb/internal/protocol"
)

// KV is one key-value pair of a BATCHPUT call.
type KV struct {
	Key string
	Val string
}

type Client struct {
	conn net.Conn
}

func Connect(opts ...Option) (*Client, error) {
	cfg := &clientConfig{Host: defaultHost, Port: defaultPort}

	for _, opt := range opts {
		opt(cfg)
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}

	return &Client{conn: conn}, nil
}

func (c *Client) PING() (string, error) {
	return c.sendCommand("ping", "", "")
}

func (c *Client) PUT(key, value string) (string, error) {
	return c.sendCommand("put", key, value)
}

func (c *Client) GET(key string) (string, error) {
	return c.sendCommand("get", key, "")
}

func (c *Client) DELETE(key string) (string, error) {
	return c.sendCommand("delete", key, "")
}

// RANGE asks for every pair with startKey <= key < endKey. The response is
// "OK <count>" followed by one "key value" line per pair.
func (c *Client) RANGE(startKey, endKey string) (string, error) {
	return c.sendCommand("range", startKey, endKey)
}

// BATCHPUT writes all pairs in one server-side batch.
func (c *Client) BATCHPUT(pairs []KV) (string, error) {
	wire := make([]protocol.KV, 0, len(pairs))
	for _, pair := range pairs {
		wire = append(wire, protocol.KV{Key: pair.Key, Val: pair.Val})
	}

	payload, err := protocol.EncodePairs(wire)
	if err != nil {
		return "", err
	}

	return c.sendCommand("batchput", "", string(payload))
}

func (c *Client) LISTKEYS() (string, error) {
	return c.sendCommand("listkeys", "", "")
}

func (c *Client) MERGE() (string, error) {
	return c.sendCommand("merge", "", "")
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Execute sends a raw command, for callers that assemble their own input
// (e.g. the interactive CLI).
func (c *Client) Execute(cmd, key, value string) (string, error) {
	return c.sendCommand(cmd, key, value)
}

func (c *Client) sendCommand(cmd, key, value string) (string, error) {
	payload, err := protocol.EncodeCommand(cmd, key, value)
	if err != nil {
		return "", err
	}

	_, err = c.conn.Write(payload)
	if err != nil {
		return "", err
	}

	response, err := protocol.DecodeResponse(c.conn)
	if err != nil {
		return "", err
	}

	return response, nil
}
