package hrv

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/hrstress/hrstress/pkg/types"
)

// BaseInstant anchors the synthetic timeline used when a table has no
// timestamp column.
var BaseInstant = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

// SyntheticStep is the spacing between synthetic timestamps.
const SyntheticStep = 5 * time.Second

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
// 1e11 seconds is in the year 5138, so anything above it is milliseconds.
const epochMillisThreshold = 1e11

// timestampLayouts are tried in order after RFC 3339. Cells without a zone
// are read as UTC.
var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02 15:04Z07:00",
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

// Preprocess converts t into time-ordered samples.
//
// Rows with an unparseable timestamp or heart rate are dropped. Rows with a
// heart rate <= 0 are kept with a NaN RR interval. The result is sorted by
// timestamp; rows with equal timestamps keep their table order.
func Preprocess(t *types.Table, hints Hints) ([]types.Sample, error) {
	var names []string
	if t != nil {
		names = t.Columns
	}
	cols, err := ResolveColumns(names, hints)
	if err != nil {
		return nil, err
	}
	return preprocessResolved(t, cols), nil
}

func preprocessResolved(t *types.Table, cols Columns) []types.Sample {
	hrCells, _ := t.Column(cols.HeartRate)

	var tsCells []string
	if cols.Timestamp != "" {
		tsCells, _ = t.Column(cols.Timestamp)
	}

	out := make([]types.Sample, 0, len(hrCells))
	for i, cell := range hrCells {
		hr, ok := parseHeartRate(cell)
		if !ok {
			continue
		}

		var ts time.Time
		if tsCells == nil {
			ts = BaseInstant.Add(time.Duration(i) * SyntheticStep)
		} else {
			ts, ok = parseTimestamp(tsCells[i])
			if !ok {
				continue
			}
		}

		out = append(out, types.Sample{Timestamp: ts, HeartRate: hr, RRms: rrFromHeartRate(hr)})
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Timestamp.Before(out[b].Timestamp)
	})
	return out
}

// rrFromHeartRate converts bpm to the RR interval in milliseconds.
func rrFromHeartRate(hr float64) float64 {
	if hr <= 0 {
		return math.NaN()
	}
	return 60000 / hr
}

func parseHeartRate(cell string) (float64, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseTimestamp(cell string) (time.Time, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return time.Time{}, false
	}
	if ts, err := time.Parse(time.RFC3339Nano, cell); err == nil {
		return ts.UTC(), true
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, cell, time.UTC); err == nil {
			return ts, true
		}
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		// Anything else a date parser recognises, e.g. "Jan 2, 2025 10:00".
		ts, err := dateparse.ParseIn(cell, time.UTC)
		if err != nil {
			return time.Time{}, false
		}
		return ts.UTC(), true
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return time.Time{}, false
	}
	if math.Abs(v) >= epochMillisThreshold {
		return time.UnixMilli(int64(v)).UTC(), true
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
}
