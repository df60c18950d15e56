package record

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// Record types as stored on disk. Anything else marks the end of
// usable data in a segment.
const (
	TypePut       byte = 1
	TypeTombstone byte = 2
)

// PrefixSize is the size of the length prefix that frames every record.
const PrefixSize = 4

// MaxPayloadSize caps key and value lengths.
const MaxPayloadSize = math.MaxInt32

var (
	// ErrTruncatedTail is returned when a frame header is complete but the
	// record body ends early. Benign for the active segment, fatal elsewhere.
	ErrTruncatedTail = errors.New("truncated record tail")

	// ErrUnknownRecordType is returned for a record type outside {put, tombstone}.
	ErrUnknownRecordType = errors.New("unknown record type")

	// ErrMalformedRecord is returned when the declared lengths inside a frame
	// do not add up to the frame length.
	ErrMalformedRecord = errors.New("malformed record")
)

// Record is a single decoded log record. Value is nil for tombstones.
type Record struct {
	Type  byte
	Key   []byte
	Value []byte
}

// PutRecordLength returns the recordLength field of a put record:
// every byte after the length prefix.
func PutRecordLength(keyLen, valueLen int) int {
	return 1 + 4 + keyLen + 4 + valueLen
}

// TombstoneRecordLength returns the recordLength field of a tombstone.
func TombstoneRecordLength(keyLen int) int {
	return 1 + 4 + keyLen
}

// PutValueOffset returns the absolute offset of the value payload of a put
// record whose frame starts at recordStart.
func PutValueOffset(recordStart int64, keyLen int) int64 {
	return recordStart + PrefixSize + 1 + 4 + int64(keyLen) + 4
}

// EncodePut serializes a put record into its framed wire format:
//
//	[u32 recordLength][u8 type=1][u32 keyLen][key][u32 valueLen][value]
//
// All integers are big-endian.
func EncodePut(key, value []byte) []byte {
	recordLength := PutRecordLength(len(key), len(value))

	buf := bytes.NewBuffer(make([]byte, 0, PrefixSize+recordLength))
	binary.Write(buf, binary.BigEndian, uint32(recordLength))
	buf.WriteByte(TypePut)
	binary.Write(buf, binary.BigEndian, uint32(len(key)))
	buf.Write(key)
	binary.Write(buf, binary.BigEndian, uint32(len(value)))
	buf.Write(value)

	return buf.Bytes()
}

// EncodeTombstone serializes a tombstone record:
//
//	[u32 recordLength][u8 type=2][u32 keyLen][key]
func EncodeTombstone(key []byte) []byte {
	recordLength := TombstoneRecordLength(len(key))

	buf := bytes.NewBuffer(make([]byte, 0, PrefixSize+recordLength))
	binary.Write(buf, binary.BigEndian, uint32(recordLength))
	buf.WriteByte(TypeTombstone)
	binary.Write(buf, binary.BigEndian, uint32(len(key)))
	buf.Write(key)

	return buf.Bytes()
}

// Entry is one scanned record together with its position in the segment.
// ValueOffset is the absolute offset of the value payload and is only
// meaningful for put records.
type Entry struct {
	Start       int64
	ValueOffset int64
	Record      Record
}

// Scanner walks a segment from its start and yields records lazily.
//
// Next returns io.EOF at a clean end of file, ErrTruncatedTail when a frame
// body is cut short, and ErrUnknownRecordType or ErrMalformedRecord when the
// frame contents are not a valid record. After any error, Offset points at
// the last good frame boundary.
type Scanner struct {
	r      *bufio.Reader
	offset int64
}

func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReader(r)}
}

// Offset returns the offset of the next frame boundary, i.e. the end of the
// last successfully scanned record.
func (s *Scanner) Offset() int64 {
	return s.offset
}

func (s *Scanner) Next() (Entry, error) {
	var prefix [PrefixSize]byte

	if _, err := io.ReadFull(s.r, prefix[:]); err != nil {
		if err == io.EOF {
			return Entry{}, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return Entry{}, ErrTruncatedTail
		}
		return Entry{}, err
	}

	recordLength := int64(binary.BigEndian.Uint32(prefix[:]))
	if recordLength < 1+4 || recordLength > PrefixSize+MaxPayloadSize {
		return Entry{}, ErrMalformedRecord
	}

	body := make([]byte, recordLength)
	if _, err := io.ReadFull(s.r, body); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Entry{}, ErrTruncatedTail
		}
		return Entry{}, err
	}

	recordType := body[0]
	keyLen := int64(binary.BigEndian.Uint32(body[1:5]))

	entry := Entry{
		Start:  s.offset,
		Record: Record{Type: recordType},
	}

	switch recordType {
	case TypePut:
		if 1+4+keyLen+4 > recordLength {
			return Entry{}, ErrMalformedRecord
		}
		valueLen := int64(binary.BigEndian.Uint32(body[1+4+keyLen : 1+4+keyLen+4]))
		if PutRecordLength(int(keyLen), int(valueLen)) != int(recordLength) {
			return Entry{}, ErrMalformedRecord
		}
		entry.Record.Key = body[5 : 5+keyLen]
		entry.Record.Value = body[1+4+keyLen+4 : recordLength]
		entry.ValueOffset = PutValueOffset(s.offset, int(keyLen))
	case TypeTombstone:
		if TombstoneRecordLength(int(keyLen)) != int(recordLength) {
			return Entry{}, ErrMalformedRecord
		}
		entry.Record.Key = body[5 : 5+keyLen]
	default:
		return Entry{}, ErrUnknownRecordType
	}

	s.offset += PrefixSize + recordLength
	return entry, nil
}
