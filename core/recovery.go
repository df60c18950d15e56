package core

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/0xRadioAc7iv/go-caskdb/internal/record"
	"github.com/0xRadioAc7iv/go-caskdb/internal/utils"
)

// recover rebuilds the keydir from the segments on disk: immutable segments
// in chronological order (through their hint file when one exists), then
// the active segment. Later segments always win over earlier ones.
func (s *Store) recover() error {
	names, err := listSegmentFiles(s.opts.DataDir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	for _, name := range names {
		if stamp, ok := segmentStamp(name); ok && stamp > s.lastStamp {
			s.lastStamp = stamp
		}

		hintPath := filepath.Join(s.opts.DataDir, hintFileName(name))
		if utils.PathExists(hintPath) {
			if err := s.loadHintFile(name, hintPath); err != nil {
				return err
			}
			continue
		}
		if err := s.replaySegment(name); err != nil {
			return err
		}
	}

	return s.openActive()
}

// replaySegment walks an immutable segment record by record. Any framing
// error here is fatal: immutable segments are only produced by clean
// rotation or merge.
func (s *Store) replaySegment(name string) error {
	f, err := os.Open(filepath.Join(s.opts.DataDir, name))
	if err != nil {
		return fmt.Errorf("open segment %s: %w", name, err)
	}
	defer f.Close()

	sc := record.NewScanner(f)
	for {
		entry, err := sc.Next()
		if err == io.EOF {
			return nil
		}
		if isFramingError(err) {
			return fmt.Errorf("%w: %s at offset %d: %v", ErrCorruptSegment, name, sc.Offset(), err)
		}
		if err != nil {
			return fmt.Errorf("replay segment %s: %w", name, err)
		}

		s.applyRecord(name, entry)
	}
}

// openActive opens the active segment (creating it when absent), replays it
// into the keydir, and leaves the write offset at the last good frame
// boundary. A truncated or unreadable tail is expected after a crash: the
// file is cut back to the boundary and the store carries on.
func (s *Store) openActive() error {
	path := filepath.Join(s.opts.DataDir, ActiveFileName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open active file: %w", err)
	}

	sc := record.NewScanner(f)
	for {
		entry, err := sc.Next()
		if err == io.EOF {
			break
		}
		if isFramingError(err) {
			s.log.Warnw("discarding unusable tail of active segment",
				"offset", sc.Offset(), "reason", err)
			if terr := utils.TruncateAt(f, sc.Offset()); terr != nil {
				f.Close()
				return fmt.Errorf("truncate active file: %w", terr)
			}
			break
		}
		if err != nil {
			f.Close()
			return fmt.Errorf("replay active file: %w", err)
		}

		s.applyRecord(ActiveFileName, entry)
	}

	s.active = f
	s.activeOffset = sc.Offset()
	return nil
}

func (s *Store) applyRecord(name string, entry record.Entry) {
	switch entry.Record.Type {
	case record.TypePut:
		s.keydir.Put(string(entry.Record.Key), Locator{
			File:        name,
			ValueOffset: entry.ValueOffset,
			ValueSize:   uint32(len(entry.Record.Value)),
		})
	case record.TypeTombstone:
		s.keydir.Delete(string(entry.Record.Key))
	}
}

// loadHintFile bulk-inserts a segment's hint entries into the keydir. Hints
// derive from trusted merges and are not cross-checked record by record,
// but every entry must at least point inside the segment.
func (s *Store) loadHintFile(segment, hintPath string) error {
	info, err := os.Stat(filepath.Join(s.opts.DataDir, segment))
	if err != nil {
		return fmt.Errorf("%w: %s has a hint but no data: %v", ErrCorruptSegment, segment, err)
	}
	segmentSize := info.Size()

	f, err := os.Open(hintPath)
	if err != nil {
		return fmt.Errorf("open hint file for %s: %w", segment, err)
	}
	defer f.Close()

	sc := record.NewHintScanner(f)
	for {
		entry, err := sc.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: hint file for %s: %v", ErrCorruptSegment, segment, err)
		}
		if entry.ValueOffset < 0 || entry.ValueOffset+int64(entry.ValueSize) > segmentSize {
			return fmt.Errorf("%w: hint for %s points outside the segment", ErrCorruptSegment, segment)
		}

		s.keydir.Put(string(entry.Key), Locator{
			File:        segment,
			ValueOffset: entry.ValueOffset,
			ValueSize:   entry.ValueSize,
		})
	}
}

func isFramingError(err error) bool {
	return errors.Is(err, record.ErrTruncatedTail) ||
		errors.Is(err, record.ErrUnknownRecordType) ||
		errors.Is(err, record.ErrMalformedRecord)
}
