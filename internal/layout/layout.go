package layout

import (
	"fmt"
	"hash/fnv"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// ConsolidatedName is the per-day file holding every captured tick.
	ConsolidatedName = "ticks.tck"
	// SecondaryExt is the suffix of per-instrument hour bucket files.
	SecondaryExt = ".tck"

	maxSegmentLen = 64
)

// DateDir returns root/YYYY/MM/DD for the UTC calendar date of day.
func DateDir(root string, day time.Time) string {
	day = day.UTC()
	return filepath.Join(root,
		fmt.Sprintf("%04d", day.Year()),
		fmt.Sprintf("%02d", int(day.Month())),
		fmt.Sprintf("%02d", day.Day()),
	)
}

// ConsolidatedPath returns root/YYYY/MM/DD/ticks.tck.
func ConsolidatedPath(root string, day time.Time) string {
	return filepath.Join(DateDir(root, day), ConsolidatedName)
}

// SecondaryPath returns root/<resolvedID>/YYYY/MM/DD/<HH>.tck.
func SecondaryPath(root, resolvedID string, day time.Time, hour int) string {
	return filepath.Join(
		DateDir(filepath.Join(root, SanitizeSegment(resolvedID, "unknown")), day),
		fmt.Sprintf("%02d%s", hour, SecondaryExt),
	)
}

// SanitizeSegment makes value safe to use as a single path element.
func SanitizeSegment(value string, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" || value == "." || value == ".." {
		return fallback
	}
	value = strings.ReplaceAll(value, "/", "_")
	value = strings.ReplaceAll(value, "\\", "_")
	value = strings.ReplaceAll(value, " ", "_")
	if len(value) > maxSegmentLen {
		return value[:maxSegmentLen] + "-" + strconv.FormatUint(hashBytes([]byte(value)), 16)
	}
	return value
}

func hashBytes(data []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(data)
	return h.Sum64()
}
