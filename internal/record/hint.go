package record

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
)

// HintEntry is one line of a hint sidecar: a key and the location of its
// live value inside the segment the hint belongs to.
//
// Wire format, big-endian, no framing prefix:
//
//	[u32 keyLen][key][u64 valueOffset][u32 valueLen]
type HintEntry struct {
	Key         []byte
	ValueOffset int64
	ValueSize   uint32
}

// EncodeHintEntry serializes a single hint entry.
func EncodeHintEntry(e HintEntry) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 4+len(e.Key)+8+4))
	binary.Write(buf, binary.BigEndian, uint32(len(e.Key)))
	buf.Write(e.Key)
	binary.Write(buf, binary.BigEndian, uint64(e.ValueOffset))
	binary.Write(buf, binary.BigEndian, e.ValueSize)

	return buf.Bytes()
}

// HintScanner reads hint entries in sequence. Next returns io.EOF at a clean
// end of file and ErrTruncatedTail when an entry is cut short.
type HintScanner struct {
	r *bufio.Reader
}

func NewHintScanner(r io.Reader) *HintScanner {
	return &HintScanner{r: bufio.NewReader(r)}
}

func (s *HintScanner) Next() (HintEntry, error) {
	var keyLen uint32

	if err := binary.Read(s.r, binary.BigEndian, &keyLen); err != nil {
		if err == io.EOF {
			return HintEntry{}, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return HintEntry{}, ErrTruncatedTail
		}
		return HintEntry{}, err
	}
	if keyLen == 0 || int64(keyLen) > MaxPayloadSize {
		return HintEntry{}, ErrMalformedRecord
	}

	key := make([]byte, keyLen)
	if _, err := io.ReadFull(s.r, key); err != nil {
		return HintEntry{}, ErrTruncatedTail
	}

	var valueOffset uint64
	if err := binary.Read(s.r, binary.BigEndian, &valueOffset); err != nil {
		return HintEntry{}, ErrTruncatedTail
	}

	var valueSize uint32
	if err := binary.Read(s.r, binary.BigEndian, &valueSize); err != nil {
		return HintEntry{}, ErrTruncatedTail
	}

	return HintEntry{
		Key:         key,
		ValueOffset: int64(valueOffset),
		ValueSize:   valueSize,
	}, nil
}
