package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/0xRadioAc7iv/go-caskdb/internal/lock"
	"github.com/0xRadioAc7iv/go-caskdb/internal/record"
)

// Store is a log-structured key-value store. All writes append to a single
// active segment; an in-memory keydir maps every live key to the location
// of its value bytes on disk.
//
// A single write mutex serializes puts, deletes, rotation and merges.
// Reads never take it: they consult the concurrent keydir and read the
// named segment directly.
type Store struct {
	opts   Options
	log    *zap.SugaredLogger
	lockF  *os.File
	keydir *keyDir
	values *lru.Cache[string, []byte]

	writeMu      sync.Mutex
	active       *os.File
	activeOffset int64
	lastStamp    int64
	closed       bool
}

// Open creates or opens a store rooted at opts.DataDir. The directory is
// locked against concurrent store instances and the keydir is rebuilt by
// replaying the segments found on disk.
func Open(opts Options) (*Store, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create data directory: %v", ErrInvalidConfig, err)
	}

	lockFile, err := lock.LockDirectory(opts.DataDir)
	if err != nil {
		return nil, err
	}

	s := &Store{
		opts:   opts,
		log:    opts.Logger,
		lockF:  lockFile,
		keydir: newKeyDir(),
	}

	if opts.CacheSize > 0 {
		s.values, err = lru.New[string, []byte](opts.CacheSize)
		if err != nil {
			lock.UnlockDirectory(lockFile)
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	if err := s.recover(); err != nil {
		lock.UnlockDirectory(lockFile)
		return nil, err
	}

	s.log.Infow("store opened",
		"dir", opts.DataDir,
		"keys", s.keydir.Len(),
		"activeOffset", s.activeOffset,
	)

	return s, nil
}

// Put stores value under key, overwriting any previous value.
func (s *Store) Put(key, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	loc, err := s.appendPut(key, value)
	if err != nil {
		return err
	}
	if s.opts.SyncOnWrite {
		if err := s.active.Sync(); err != nil {
			return fmt.Errorf("sync active file: %w", err)
		}
	}

	s.keydir.Put(string(key), loc)
	s.cacheStore(key, value)

	s.notify(func(o WriteObserver) error { return o.OnPut(key, value) })
	return nil
}

// Delete removes key from the store. Deleting an absent key is a no-op that
// appends nothing.
func (s *Store) Delete(key []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, ok := s.keydir.Get(string(key)); !ok {
		return nil
	}

	frame := record.EncodeTombstone(key)
	if err := s.appendFrame(frame); err != nil {
		return err
	}
	if s.opts.SyncOnWrite {
		if err := s.active.Sync(); err != nil {
			return fmt.Errorf("sync active file: %w", err)
		}
	}

	s.keydir.Delete(string(key))
	s.cacheRemove(key)

	s.notify(func(o WriteObserver) error { return o.OnDelete(key) })
	return nil
}

// BatchPut appends every entry under one held write lock. Keydir updates
// become visible to readers progressively as entries are written; the batch
// is not a transaction. With SyncOnWrite a single fsync covers the batch.
func (s *Store) BatchPut(entries []Entry) error {
	for _, e := range entries {
		if err := validateKey(e.Key); err != nil {
			return err
		}
		if err := validateValue(e.Value); err != nil {
			return err
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	for _, e := range entries {
		loc, err := s.appendPut(e.Key, e.Value)
		if err != nil {
			return err
		}
		s.keydir.Put(string(e.Key), loc)
		s.cacheStore(e.Key, e.Value)
	}

	if s.opts.SyncOnWrite {
		if err := s.active.Sync(); err != nil {
			return fmt.Errorf("sync active file: %w", err)
		}
	}

	s.notify(func(o WriteObserver) error { return o.OnBatchPut(entries) })
	return nil
}

// Close syncs and releases the active segment and the directory lock.
func (s *Store) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.values != nil {
		s.values.Purge()
	}

	var firstErr error
	if err := s.active.Sync(); err != nil {
		firstErr = fmt.Errorf("sync active file: %w", err)
	}
	if err := s.active.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close active file: %w", err)
	}

	lock.UnlockDirectory(s.lockF)
	s.log.Infow("store closed", "dir", s.opts.DataDir)

	return firstErr
}

// appendPut writes a framed put record to the active segment, rotating
// first when the frame would push the file past the size threshold, and
// returns the locator of the value payload just written.
func (s *Store) appendPut(key, value []byte) (Locator, error) {
	frame := record.EncodePut(key, value)
	if err := s.maybeRotate(int64(len(frame))); err != nil {
		return Locator{}, err
	}

	start := s.activeOffset
	if _, err := s.active.WriteAt(frame, start); err != nil {
		return Locator{}, fmt.Errorf("append record: %w", err)
	}
	s.activeOffset += int64(len(frame))

	return Locator{
		File:        ActiveFileName,
		ValueOffset: record.PutValueOffset(start, len(key)),
		ValueSize:   uint32(len(value)),
	}, nil
}

func (s *Store) appendFrame(frame []byte) error {
	if err := s.maybeRotate(int64(len(frame))); err != nil {
		return err
	}
	if _, err := s.active.WriteAt(frame, s.activeOffset); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	s.activeOffset += int64(len(frame))
	return nil
}

func (s *Store) maybeRotate(frameSize int64) error {
	if s.activeOffset+frameSize <= s.opts.MaxFileSize {
		return nil
	}
	// An oversized record on a fresh active file is written anyway;
	// rotating an empty segment gains nothing.
	if s.activeOffset == 0 {
		return nil
	}
	return s.rotateLocked()
}

// rotateLocked closes the active segment, renames it to a rotated segment,
// rewrites every keydir locator that still names the old active file, and
// opens a fresh active segment. Caller holds the write mutex.
func (s *Store) rotateLocked() error {
	if err := s.active.Sync(); err != nil {
		return fmt.Errorf("sync active file before rotation: %w", err)
	}
	if err := s.active.Close(); err != nil {
		return fmt.Errorf("close active file before rotation: %w", err)
	}

	activePath := filepath.Join(s.opts.DataDir, ActiveFileName)
	rotatedName := rotatedFileName(s.nextStamp())
	rotatedPath := filepath.Join(s.opts.DataDir, rotatedName)

	if err := os.Rename(activePath, rotatedPath); err != nil {
		// Reopen the original so the store is not left without a
		// writable segment.
		f, openErr := os.OpenFile(activePath, os.O_CREATE|os.O_RDWR, 0644)
		if openErr != nil {
			s.log.Errorw("reopen active file after failed rotation", "error", openErr)
			return fmt.Errorf("%w: rename: %v, reopen: %v", ErrRotationFailed, err, openErr)
		}
		s.active = f
		return fmt.Errorf("%w: %v", ErrRotationFailed, err)
	}

	// The rename preserved the file contents under the new name; locators
	// recorded against the old active name must follow it.
	s.keydir.Ascend(func(key string, loc Locator) bool {
		if loc.File == ActiveFileName {
			loc.File = rotatedName
			s.keydir.Put(key, loc)
		}
		return true
	})

	f, err := os.OpenFile(activePath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open new active file: %w", err)
	}
	s.active = f
	s.activeOffset = 0

	s.log.Debugw("rotated active segment", "rotated", rotatedName)
	return nil
}

// nextStamp returns a millisecond stamp strictly greater than any stamp the
// store has handed out or recovered, so segment names stay unique and their
// stamp order stays a creation order even within one millisecond.
func (s *Store) nextStamp() int64 {
	stamp := time.Now().UnixMilli()
	if stamp <= s.lastStamp {
		stamp = s.lastStamp + 1
	}
	s.lastStamp = stamp
	return stamp
}

func (s *Store) notify(call func(WriteObserver) error) {
	if s.opts.Observer == nil {
		return
	}
	if err := call(s.opts.Observer); err != nil {
		s.log.Warnw("write observer failed", "error", err)
	}
}

// cacheStore is only called under the write mutex, so the cache always
// holds the value of the latest committed put. A read-path fill would race
// concurrent writers and could pin a stale value.
func (s *Store) cacheStore(key, value []byte) {
	if s.values == nil {
		return
	}
	s.values.Add(string(key), append([]byte(nil), value...))
}

func (s *Store) cacheRemove(key []byte) {
	if s.values == nil {
		return
	}
	s.values.Remove(string(key))
}

func validateKey(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("%w: key must not be empty", ErrInvalidKey)
	}
	if len(key) > record.MaxPayloadSize {
		return fmt.Errorf("%w: key exceeds %d bytes", ErrInvalidKey, record.MaxPayloadSize)
	}
	return nil
}

func validateValue(value []byte) error {
	if len(value) > record.MaxPayloadSize {
		return fmt.Errorf("%w: value exceeds %d bytes", ErrValueTooLarge, record.MaxPayloadSize)
	}
	return nil
}
