package core

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/0xRadioAc7iv/go-caskdb/internal/record"
	"github.com/0xRadioAc7iv/go-caskdb/internal/utils"
)

// Merge rewrites every immutable segment into one new merged segment
// holding only the currently live version of each key, emits its hint
// sidecar, installs the new locators, and deletes the inputs. The active
// segment is never compacted.
//
// Merge holds the write mutex for its full duration. Readers keep working
// throughout: locators into the inputs stay valid until the inputs are
// deleted, which happens only after the new locators are installed.
func (s *Store) Merge() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	inputs, err := listSegmentFiles(s.opts.DataDir)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		s.log.Infow("no segments to merge")
		return nil
	}

	mergedName := mergedFileName(s.nextStamp())
	mergedPath := filepath.Join(s.opts.DataDir, mergedName)

	out, err := os.OpenFile(mergedPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("create merged segment: %w", err)
	}

	discard := func(err error) error {
		out.Close()
		os.Remove(mergedPath)
		return err
	}

	var offset int64
	rebuilt := make(map[string]Locator)
	for _, name := range inputs {
		if err := s.mergeSegment(name, mergedName, out, &offset, rebuilt); err != nil {
			return discard(err)
		}
	}

	if err := out.Sync(); err != nil {
		return discard(fmt.Errorf("sync merged segment: %w", err))
	}
	if err := out.Close(); err != nil {
		os.Remove(mergedPath)
		return fmt.Errorf("close merged segment: %w", err)
	}

	hintPath := filepath.Join(s.opts.DataDir, hintFileName(mergedName))
	if err := writeHintFile(hintPath, rebuilt); err != nil {
		os.Remove(hintPath)
		os.Remove(mergedPath)
		return err
	}

	// Install the new locators. Keys whose live version sits in the active
	// segment are not in rebuilt and keep their entries.
	for key, loc := range rebuilt {
		s.keydir.Put(key, loc)
	}

	for _, name := range inputs {
		if err := os.Remove(filepath.Join(s.opts.DataDir, name)); err != nil {
			s.log.Warnw("delete merged input", "segment", name, "error", err)
		}
		oldHint := filepath.Join(s.opts.DataDir, hintFileName(name))
		if utils.PathExists(oldHint) {
			if err := os.Remove(oldHint); err != nil {
				s.log.Warnw("delete merged input hint", "segment", name, "error", err)
			}
		}
	}

	s.log.Infow("merge completed",
		"segment", mergedName,
		"inputs", len(inputs),
		"records", len(rebuilt),
	)
	return nil
}

// mergeSegment copies every still-live put record of one input segment into
// the merged output. A record is live iff the keydir's current locator is
// exactly this record's location. Tombstones are always dropped: once the
// older puts they mask are gone, they have no work left to do.
func (s *Store) mergeSegment(name, mergedName string, out *os.File, offset *int64, rebuilt map[string]Locator) error {
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
			return fmt.Errorf("merge segment %s: %w", name, err)
		}
		if entry.Record.Type != record.TypePut {
			continue
		}

		key := entry.Record.Key
		value := entry.Record.Value

		current, ok := s.keydir.Get(string(key))
		live := ok &&
			current.File == name &&
			current.ValueOffset == entry.ValueOffset &&
			current.ValueSize == uint32(len(value))
		if !live {
			continue
		}

		frame := record.EncodePut(key, value)
		if _, err := out.WriteAt(frame, *offset); err != nil {
			return fmt.Errorf("append to merged segment: %w", err)
		}

		rebuilt[string(key)] = Locator{
			File:        mergedName,
			ValueOffset: record.PutValueOffset(*offset, len(key)),
			ValueSize:   uint32(len(value)),
		}
		*offset += int64(len(frame))
	}
}

// writeHintFile emits the hint sidecar for a merged segment: one entry per
// live record, in no particular order.
func writeHintFile(path string, entries map[string]Locator) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("create hint file: %w", err)
	}

	w := bufio.NewWriter(f)
	for key, loc := range entries {
		hint := record.EncodeHintEntry(record.HintEntry{
			Key:         []byte(key),
			ValueOffset: loc.ValueOffset,
			ValueSize:   loc.ValueSize,
		})
		if _, err := w.Write(hint); err != nil {
			f.Close()
			return fmt.Errorf("write hint file: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush hint file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync hint file: %w", err)
	}
	return f.Close()
}
