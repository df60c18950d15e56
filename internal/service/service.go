// Package service bridges the wire protocol and the store: it decodes
// commands from client connections, dispatches them to the engine, and
// writes back framed responses.
package service

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"go.uber.org/zap"

	"github.com/0xRadioAc7iv/go-caskdb/core"
	"github.com/0xRadioAc7iv/go-caskdb/internal/protocol"
)

type Service struct {
	store *core.Store
	log   *zap.SugaredLogger
}

func New(store *core.Store, log *zap.SugaredLogger) *Service {
	return &Service{store: store, log: log}
}

// HandleConn serves one client connection until it disconnects.
func (s *Service) HandleConn(conn net.Conn) {
	defer conn.Close()

	for {
		command, err := protocol.DecodeCommand(conn)
		if err != nil {
			s.log.Debugw("client disconnected", "remote", conn.RemoteAddr())
			return
		}

		s.reply(conn, s.execute(command))
	}
}

func (s *Service) execute(command *protocol.Command) string {
	switch strings.ToLower(command.Cmd) {
	case "ping":
		return "PONG!"
	case "put":
		return s.executePut(command.Key, command.Val)
	case "get":
		return s.executeGet(command.Key)
	case "delete":
		return s.executeDelete(command.Key)
	case "range":
		return s.executeRange(command.Key, command.Val)
	case "batchput":
		return s.executeBatchPut(command.Val)
	case "listkeys":
		return s.executeListKeys()
	case "merge":
		return s.executeMerge()
	default:
		return "ERROR Unknown command"
	}
}

func (s *Service) executePut(key, val string) string {
	if key == "" {
		return "ERROR PUT requires a key"
	}
	if err := s.store.Put([]byte(key), []byte(val)); err != nil {
		return "ERROR " + err.Error()
	}
	return "OK"
}

func (s *Service) executeGet(key string) string {
	if key == "" {
		return "ERROR GET requires a key"
	}

	value, err := s.store.Read([]byte(key))
	if errors.Is(err, core.ErrKeyNotFound) {
		return "NOT_FOUND"
	}
	if err != nil {
		return "ERROR " + err.Error()
	}
	return "OK " + string(value)
}

func (s *Service) executeDelete(key string) string {
	if key == "" {
		return "ERROR DELETE requires a key"
	}
	if err := s.store.Delete([]byte(key)); err != nil {
		return "ERROR " + err.Error()
	}
	return "OK"
}

func (s *Service) executeRange(start, end string) string {
	if start == "" || end == "" {
		return "ERROR RANGE requires startKey and endKey"
	}

	var lines []string
	it := s.store.RangeRead([]byte(start), []byte(end))
	for it.Next() {
		lines = append(lines, string(it.Key())+" "+string(it.Value()))
	}
	if err := it.Err(); err != nil {
		return "ERROR " + err.Error()
	}

	resp := fmt.Sprintf("OK %d", len(lines))
	if len(lines) > 0 {
		resp += "\n" + strings.Join(lines, "\n")
	}
	return resp
}

func (s *Service) executeBatchPut(payload string) string {
	pairs, err := protocol.DecodePairs([]byte(payload))
	if err != nil {
		return "ERROR " + err.Error()
	}

	entries := make([]core.Entry, 0, len(pairs))
	for _, pair := range pairs {
		entries = append(entries, core.Entry{Key: []byte(pair.Key), Value: []byte(pair.Val)})
	}

	if err := s.store.BatchPut(entries); err != nil {
		return "ERROR " + err.Error()
	}
	return "OK"
}

func (s *Service) executeListKeys() string {
	keys := s.store.ListKeys()

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, string(key))
	}

	resp := fmt.Sprintf("OK %d", len(lines))
	if len(lines) > 0 {
		resp += "\n" + strings.Join(lines, "\n")
	}
	return resp
}

func (s *Service) executeMerge() string {
	if err := s.store.Merge(); err != nil {
		return "ERROR " + err.Error()
	}
	return "OK MERGE COMPLETED"
}

func (s *Service) reply(conn net.Conn, msg string) {
	encoded, err := protocol.EncodeResponse(msg)
	if err != nil {
		s.log.Errorw("encode response", "error", err)
		return
	}

	if _, err := conn.Write(encoded); err != nil {
		s.log.Debugw("client disconnected", "remote", conn.RemoteAddr())
	}
}
