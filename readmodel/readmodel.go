// Package readmodel derives dashboard aggregates from log query results.
// These are the views the admin dashboard renders: totals, per-severity
// and per-attack-type counts, and a creation-time series.
package readmodel

import (
	"sort"
	"time"

	"logshare/ledger/types"
)

// Bucket is one time-series point: logs created in [Start, Start+width).
type Bucket struct {
	Start int64 `json:"start"` // Unix seconds
	Count int   `json:"count"`
}

// Dashboard is the aggregate view over a set of log records.
type Dashboard struct {
	Total            int            `json:"total"`
	SeverityCounts   map[string]int `json:"severityCounts"`
	AttackTypeCounts map[string]int `json:"attackTypeCounts"`
	WithAttachments  int            `json:"withAttachments"`
	Series           []Bucket       `json:"series"`
}

// FilterByTimeRange keeps records whose creation time t satisfies
// startUnix <= t <= endUnix, inclusive at both ends. A zero endUnix means
// no upper bound.
func FilterByTimeRange(logs []types.LogRecord, startUnix, endUnix int64) []types.LogRecord {
	filtered := make([]types.LogRecord, 0, len(logs))
	for _, l := range logs {
		t := l.UnixTime
		if t == 0 {
			// Older records carry only the RFC3339 timestamp.
			if parsed, err := time.Parse(time.RFC3339, l.Timestamp); err == nil {
				t = parsed.Unix()
			}
		}
		if t < startUnix {
			continue
		}
		if endUnix != 0 && t > endUnix {
			continue
		}
		filtered = append(filtered, l)
	}
	return filtered
}

// SeverityCounts counts records per severity level. All four known levels
// are always present, zero-filled, so an empty partition renders as
// all-zero rather than an empty object; unknown levels are kept as-is.
func SeverityCounts(logs []types.LogRecord) map[string]int {
	counts := make(map[string]int, len(types.Severities))
	for _, s := range types.Severities {
		counts[s] = 0
	}
	for _, l := range logs {
		counts[l.Severity]++
	}
	return counts
}

// AttackTypeCounts counts records per attack type.
func AttackTypeCounts(logs []types.LogRecord) map[string]int {
	counts := make(map[string]int)
	for _, l := range logs {
		counts[l.AttackType]++
	}
	return counts
}

// TimeSeries buckets record creation times into fixed-width intervals,
// aligned to multiples of width, sorted ascending. Records without a
// usable timestamp are skipped.
func TimeSeries(logs []types.LogRecord, width time.Duration) []Bucket {
	if width <= 0 {
		width = time.Hour
	}
	w := int64(width / time.Second)
	if w == 0 {
		w = 1
	}

	byStart := make(map[int64]int)
	for _, l := range logs {
		t := l.UnixTime
		if t == 0 {
			parsed, err := time.Parse(time.RFC3339, l.Timestamp)
			if err != nil {
				continue
			}
			t = parsed.Unix()
		}
		start := (t / w) * w
		byStart[start]++
	}

	series := make([]Bucket, 0, len(byStart))
	for start, count := range byStart {
		series = append(series, Bucket{Start: start, Count: count})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Start < series[j].Start })
	return series
}

// Build assembles the full dashboard view.
func Build(logs []types.LogRecord, bucketWidth time.Duration) *Dashboard {
	withAttachments := 0
	for _, l := range logs {
		if l.AttachmentHash != "" {
			withAttachments++
		}
	}
	return &Dashboard{
		Total:            len(logs),
		SeverityCounts:   SeverityCounts(logs),
		AttackTypeCounts: AttackTypeCounts(logs),
		WithAttachments:  withAttachments,
		Series:           TimeSeries(logs, bucketWidth),
	}
}
