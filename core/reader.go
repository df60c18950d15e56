package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Read returns the value stored under key, or ErrKeyNotFound.
func (s *Store) Read(key []byte) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	if s.values != nil {
		if value, ok := s.values.Get(string(key)); ok {
			return append([]byte(nil), value...), nil
		}
	}

	loc, ok := s.keydir.Get(string(key))
	if !ok {
		return nil, ErrKeyNotFound
	}

	return s.readValue(string(key), loc)
}

// readValue resolves a locator to bytes. A rotation can rename the segment
// between the keydir lookup and the read; on failure the locator is fetched
// once more and the read retried against the fresh location.
func (s *Store) readValue(key string, loc Locator) ([]byte, error) {
	value, err := s.readLocator(loc)
	if err == nil {
		return value, nil
	}

	fresh, ok := s.keydir.Get(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	if fresh == loc {
		return nil, err
	}
	return s.readLocator(fresh)
}

func (s *Store) readLocator(loc Locator) ([]byte, error) {
	f, err := os.Open(filepath.Join(s.opts.DataDir, loc.File))
	if err != nil {
		return nil, fmt.Errorf("open segment %s: %w", loc.File, err)
	}
	defer f.Close()

	value := make([]byte, loc.ValueSize)
	if _, err := f.ReadAt(value, loc.ValueOffset); err != nil {
		return nil, fmt.Errorf("read %s at %d: %w", loc.File, loc.ValueOffset, err)
	}
	return value, nil
}

// ListKeys returns a sorted snapshot of every key in the store.
func (s *Store) ListKeys() [][]byte {
	keys := s.keydir.Keys()
	out := make([][]byte, len(keys))
	for i, key := range keys {
		out[i] = []byte(key)
	}
	return out
}

// RangeIterator yields key-value pairs in ascending key order. The set of
// keys is the keydir snapshot taken when the iterator was created; values
// are fetched lazily, so the sequence is not transactional across
// concurrent writes.
type RangeIterator struct {
	s     *Store
	pairs []keyLocator
	pos   int
	key   []byte
	value []byte
	err   error
}

// RangeRead returns an iterator over every key in [lo, hi).
func (s *Store) RangeRead(lo, hi []byte) *RangeIterator {
	return &RangeIterator{
		s:     s,
		pairs: s.keydir.span(string(lo), string(hi)),
	}
}

// Next advances the iterator. It returns false when the range is exhausted
// or a read failed; check Err afterwards.
func (it *RangeIterator) Next() bool {
	for it.err == nil && it.pos < len(it.pairs) {
		pair := it.pairs[it.pos]
		it.pos++

		value, err := it.s.readValue(pair.key, pair.loc)
		if errors.Is(err, ErrKeyNotFound) {
			// Deleted while iterating; skip it.
			continue
		}
		if err != nil {
			it.err = err
			return false
		}

		it.key = []byte(pair.key)
		it.value = value
		return true
	}
	return false
}

func (it *RangeIterator) Key() []byte {
	return it.key
}

func (it *RangeIterator) Value() []byte {
	return it.value
}

func (it *RangeIterator) Err() error {
	return it.err
}
