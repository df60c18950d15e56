package record

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHintRoundtrip(t *testing.T) {
	want := []HintEntry{
		{Key: []byte("apple"), ValueOffset: 14, ValueSize: 3},
		{Key: []byte("banana"), ValueOffset: 120, ValueSize: 0},
		{Key: []byte("c"), ValueOffset: 1 << 40, ValueSize: 9000},
	}

	var hint bytes.Buffer
	for _, e := range want {
		hint.Write(EncodeHintEntry(e))
	}

	sc := NewHintScanner(bytes.NewReader(hint.Bytes()))

	var got []HintEntry
	for {
		entry, err := sc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unexpected hint scan error: %v", err)
		}
		got = append(got, entry)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatal(diff)
	}
}

func TestHintScannerEmptyFile(t *testing.T) {
	sc := NewHintScanner(bytes.NewReader(nil))
	if _, err := sc.Next(); err != io.EOF {
		t.Fatalf("got %v, want io.EOF", err)
	}
}

func TestHintScannerTruncatedEntry(t *testing.T) {
	encoded := EncodeHintEntry(HintEntry{Key: []byte("key"), ValueOffset: 42, ValueSize: 7})

	for cut := 1; cut < len(encoded); cut++ {
		sc := NewHintScanner(bytes.NewReader(encoded[:cut]))
		if _, err := sc.Next(); !errors.Is(err, ErrTruncatedTail) {
			t.Fatalf("cut at %d: got %v, want ErrTruncatedTail", cut, err)
		}
	}
}
