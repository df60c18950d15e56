package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	// ActiveFileName is the one segment currently being appended.
	ActiveFileName = "active.log"

	RotatedFilePrefix = "data_"
	MergedFilePrefix  = "merged_"

	LogFileExt  = ".log"
	HintFileExt = ".hint"
)

func rotatedFileName(stamp int64) string {
	return fmt.Sprintf("%s%d%s", RotatedFilePrefix, stamp, LogFileExt)
}

func mergedFileName(stamp int64) string {
	return fmt.Sprintf("%s%d%s", MergedFilePrefix, stamp, LogFileExt)
}

// hintFileName returns the hint sidecar name for a segment file.
func hintFileName(segment string) string {
	return strings.TrimSuffix(segment, LogFileExt) + HintFileExt
}

// segmentStamp extracts the millisecond stamp embedded in a rotated or
// merged segment name. Returns false for names it does not recognize.
func segmentStamp(name string) (int64, bool) {
	base := strings.TrimSuffix(name, LogFileExt)

	var digits string
	switch {
	case strings.HasPrefix(base, RotatedFilePrefix):
		digits = strings.TrimPrefix(base, RotatedFilePrefix)
	case strings.HasPrefix(base, MergedFilePrefix):
		digits = strings.TrimPrefix(base, MergedFilePrefix)
	default:
		return 0, false
	}

	stamp, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return stamp, true
}

// sortSegments orders segment names chronologically: by embedded stamp,
// name as tie-breaker. Rotated and merged segments share one stamp source,
// so this is the creation order replay and merge depend on.
func sortSegments(names []string) {
	sort.Slice(names, func(i, j int) bool {
		si, _ := segmentStamp(names[i])
		sj, _ := segmentStamp(names[j])
		if si != sj {
			return si < sj
		}
		return names[i] < names[j]
	})
}

// listSegmentFiles returns every immutable segment in dir in chronological
// order. The active segment is not included.
func listSegmentFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read data directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if name == ActiveFileName || filepath.Ext(name) != LogFileExt {
			continue
		}
		names = append(names, name)
	}

	sortSegments(names)
	return names, nil
}
