package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/0xRadioAc7iv/go-caskdb/internal/record"
)

func TestRestartReplay(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(DefaultOptions(dir))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatal(err)
	}
	if err := s.Put([]byte("b"), []byte("2")); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete([]byte("a")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2 := openStore(t, DefaultOptions(dir))

	if _, err := s2.Read([]byte("a")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("deleted key resurfaced after restart: %v", err)
	}
	if got := mustRead(t, s2, "b"); got != "2" {
		t.Fatalf("read b after restart: got %q", got)
	}
	if diff := cmp.Diff([][]byte{[]byte("b")}, s2.ListKeys()); diff != "" {
		t.Fatal(diff)
	}
}

func TestRestartReplaysRotatedSegments(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(DefaultOptions(dir))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put([]byte("old"), []byte("v1")); err != nil {
		t.Fatal(err)
	}
	forceRotate(t, s)
	if err := s.Put([]byte("old"), []byte("v2")); err != nil {
		t.Fatal(err)
	}
	if err := s.Put([]byte("fresh"), []byte("v3")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2 := openStore(t, DefaultOptions(dir))

	// The active segment replays after the rotated one, so its put wins.
	if got := mustRead(t, s2, "old"); got != "v2" {
		t.Fatalf("read old: got %q, want %q", got, "v2")
	}
	if got := mustRead(t, s2, "fresh"); got != "v3" {
		t.Fatalf("read fresh: got %q, want %q", got, "v3")
	}
}

func TestReplayEquivalence(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(DefaultOptions(dir))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put([]byte("x"), []byte("1")); err != nil {
		t.Fatal(err)
	}
	forceRotate(t, s)
	if err := s.Put([]byte("y"), []byte("2")); err != nil {
		t.Fatal(err)
	}

	var before []keyLocator
	s.keydir.Ascend(func(key string, loc Locator) bool {
		before = append(before, keyLocator{key: key, loc: loc})
		return true
	})

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2 := openStore(t, DefaultOptions(dir))

	var after []keyLocator
	s2.keydir.Ascend(func(key string, loc Locator) bool {
		after = append(after, keyLocator{key: key, loc: loc})
		return true
	})

	if diff := cmp.Diff(before, after, cmp.AllowUnexported(keyLocator{})); diff != "" {
		t.Fatal(diff)
	}
}

func TestTruncatedActiveTailIsDiscarded(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(DefaultOptions(dir))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put([]byte("good"), []byte("kept")); err != nil {
		t.Fatal(err)
	}
	goodEnd := s.activeOffset
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	// Simulate a crash mid-append: a complete frame header with a short body.
	activePath := filepath.Join(dir, ActiveFileName)
	partial := record.EncodePut([]byte("half"), []byte("written"))
	f, err := os.OpenFile(activePath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(partial[:len(partial)-3]); err != nil {
		t.Fatal(err)
	}
	f.Close()

	s2 := openStore(t, DefaultOptions(dir))

	if s2.activeOffset != goodEnd {
		t.Fatalf("append offset: got %d, want %d", s2.activeOffset, goodEnd)
	}
	info, err := os.Stat(activePath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != goodEnd {
		t.Fatalf("active file not truncated: size %d, want %d", info.Size(), goodEnd)
	}
	if got := mustRead(t, s2, "good"); got != "kept" {
		t.Fatalf("read good: got %q", got)
	}
	if _, err := s2.Read([]byte("half")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("half-written key surfaced: %v", err)
	}

	// The store must keep appending cleanly from the truncation point.
	if err := s2.Put([]byte("next"), []byte("write")); err != nil {
		t.Fatal(err)
	}
	if got := mustRead(t, s2, "next"); got != "write" {
		t.Fatalf("read next: got %q", got)
	}
}

func TestUnknownRecordTypeInActiveTailIsDiscarded(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(DefaultOptions(dir))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put([]byte("good"), []byte("kept")); err != nil {
		t.Fatal(err)
	}
	goodEnd := s.activeOffset
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	bad := record.EncodePut([]byte("bad"), []byte("record"))
	bad[4] = 7
	f, err := os.OpenFile(filepath.Join(dir, ActiveFileName), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(bad); err != nil {
		t.Fatal(err)
	}
	f.Close()

	s2 := openStore(t, DefaultOptions(dir))

	if s2.activeOffset != goodEnd {
		t.Fatalf("append offset: got %d, want %d", s2.activeOffset, goodEnd)
	}
	if got := mustRead(t, s2, "good"); got != "kept" {
		t.Fatalf("read good: got %q", got)
	}
}

func TestCorruptImmutableSegmentAbortsOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(DefaultOptions(dir))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatal(err)
	}
	forceRotate(t, s)

	loc, _ := s.keydir.Get("a")
	rotatedPath := filepath.Join(dir, loc.File)

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	// Chop the rotated segment mid-record.
	info, err := os.Stat(rotatedPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Truncate(rotatedPath, info.Size()-2); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(DefaultOptions(dir)); !errors.Is(err, ErrCorruptSegment) {
		t.Fatalf("got %v, want ErrCorruptSegment", err)
	}
}

func TestHintPointingOutsideSegmentAbortsOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(DefaultOptions(dir))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatal(err)
	}
	forceRotate(t, s)

	loc, _ := s.keydir.Get("a")
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	hint := record.EncodeHintEntry(record.HintEntry{
		Key:         []byte("a"),
		ValueOffset: 4096,
		ValueSize:   100,
	})
	hintPath := filepath.Join(dir, hintFileName(loc.File))
	if err := os.WriteFile(hintPath, hint, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(DefaultOptions(dir)); !errors.Is(err, ErrCorruptSegment) {
		t.Fatalf("got %v, want ErrCorruptSegment", err)
	}
}
