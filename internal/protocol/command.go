package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
)

// Command represents a decoded client command received by the server.
//
// A Command consists of a command name (Cmd), an optional key, and an
// optional value. The meaning of Key and Val depends on the command type:
// RANGE carries its start key in Key and its end key in Val, and BATCHPUT
// carries an encoded pair list (see EncodePairs) in Val.
type Command struct {
	Cmd string // Command name (e.g. "get", "put", "delete")
	Key string // Key argument (may be empty)
	Val string // Value argument (may be empty)
}

// KV is one key-value pair of a batch command.
type KV struct {
	Key string
	Val string
}

// ErrMalformedPairs is returned when a batch payload does not decode into
// whole key-value pairs.
var ErrMalformedPairs = errors.New("malformed batch pair payload")

// EncodeCommand serializes a client command into its wire format.
//
// The command is encoded as:
//
//	<cmd_len:uint8><key_len:uint32><val_len:uint32><cmd><key><val>
//
// All integer fields are encoded using big-endian byte order.
// The command name length is limited to 255 bytes.
//
// The returned byte slice is suitable for writing directly to a TCP
// connection.
func EncodeCommand(cmd, key, val string) ([]byte, error) {
	cmdB := []byte(cmd)
	keyB := []byte(key)
	valB := []byte(val)

	buf := &bytes.Buffer{}

	buf.WriteByte(uint8(len(cmdB)))
	if err := binary.Write(buf, binary.BigEndian, uint32(len(keyB))); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.BigEndian, uint32(len(valB))); err != nil {
		return nil, err
	}

	buf.Write(cmdB)
	buf.Write(keyB)
	buf.Write(valB)

	return buf.Bytes(), nil
}

// DecodeCommand reads and decodes a command from a TCP connection.
//
// It first reads the length-prefixed header fields, then reads the
// command name, key, and value payloads in sequence.
//
// DecodeCommand blocks until the full command has been read or an
// error occurs. A successfully decoded Command is returned on success.
func DecodeCommand(conn net.Conn) (*Command, error) {
	var cmdLen uint8
	var keyLen uint32
	var valLen uint32

	// Read lengths
	if err := binary.Read(conn, binary.BigEndian, &cmdLen); err != nil {
		return nil, err
	}
	if err := binary.Read(conn, binary.BigEndian, &keyLen); err != nil {
		return nil, err
	}
	if err := binary.Read(conn, binary.BigEndian, &valLen); err != nil {
		return nil, err
	}

	// Read payload
	cmdB := make([]byte, cmdLen)
	keyB := make([]byte, keyLen)
	valB := make([]byte, valLen)

	if _, err := io.ReadFull(conn, cmdB); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(conn, keyB); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(conn, valB); err != nil {
		return nil, err
	}

	return &Command{
		Cmd: string(cmdB),
		Key: string(keyB),
		Val: string(valB),
	}, nil
}

// EncodePairs serializes the pair list of a batch command. It rides inside
// the value payload of the outer command frame:
//
//	<count:uint32> then per pair <key_len:uint32><val_len:uint32><key><val>
func EncodePairs(pairs []KV) ([]byte, error) {
	buf := &bytes.Buffer{}

	if err := binary.Write(buf, binary.BigEndian, uint32(len(pairs))); err != nil {
		return nil, err
	}

	for _, pair := range pairs {
		if err := binary.Write(buf, binary.BigEndian, uint32(len(pair.Key))); err != nil {
			return nil, err
		}
		if err := binary.Write(buf, binary.BigEndian, uint32(len(pair.Val))); err != nil {
			return nil, err
		}
		buf.WriteString(pair.Key)
		buf.WriteString(pair.Val)
	}

	return buf.Bytes(), nil
}

// DecodePairs parses a payload produced by EncodePairs.
func DecodePairs(data []byte) ([]KV, error) {
	r := bytes.NewReader(data)

	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, ErrMalformedPairs
	}

	pairs := make([]KV, 0, count)
	for i := uint32(0); i < count; i++ {
		var keyLen, valLen uint32
		if err := binary.Read(r, binary.BigEndian, &keyLen); err != nil {
			return nil, ErrMalformedPairs
		}
		if err := binary.Read(r, binary.BigEndian, &valLen); err != nil {
			return nil, ErrMalformedPairs
		}

		keyB := make([]byte, keyLen)
		valB := make([]byte, valLen)
		if _, err := io.ReadFull(r, keyB); err != nil {
			return nil, ErrMalformedPairs
		}
		if _, err := io.ReadFull(r, valB); err != nil {
			return nil, ErrMalformedPairs
		}

		pairs = append(pairs, KV{Key: string(keyB), Val: string(valB)})
	}

	if r.Len() != 0 {
		return nil, ErrMalformedPairs
	}
	return pairs, nil
}
