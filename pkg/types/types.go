package types

import (
	"encoding/json"
	"math"
	"time"
)

// Table is a raw tabular dataset: a header row and the data rows beneath it.
// Rows may be ragged; a missing trailing cell reads as the empty string.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of the first column named exactly name, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns every cell of the first column named exactly name.
// The boolean is false when no such column exists.
func (t *Table) Column(name string) ([]string, bool) {
	idx := t.Index(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out, true
}

// Sample is one cleaned heart-rate observation.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	HeartRate float64   `json:"heart_rate"` // bpm, always parsed but may be <= 0
	RRms      float64   `json:"-"`          // 60000 / HeartRate, NaN when HeartRate <= 0
}

// MarshalJSON writes rr_ms as null when it is undefined.
func (s Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Timestamp time.Time `json:"timestamp"`
		HeartRate float64   `json:"heart_rate"`
		RRms      *float64  `json:"rr_ms"`
	}{s.Timestamp, s.HeartRate, Optional(s.RRms)})
}

// UnmarshalJSON reads a null rr_ms back as NaN.
func (s *Sample) UnmarshalJSON(data []byte) error {
	var raw struct {
		Timestamp time.Time `json:"timestamp"`
		HeartRate float64   `json:"heart_rate"`
		RRms      *float64  `json:"rr_ms"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Timestamp = raw.Timestamp
	s.HeartRate = raw.HeartRate
	s.RRms = Value(raw.RRms)
	return nil
}

// TimeDomainMetrics holds the time-domain HRV statistics of one session.
// All fields are NaN when fewer than two valid RR intervals were available.
type TimeDomainMetrics struct {
	MeanRR float64 // ms
	SDNN   float64 // ms, sample standard deviation (n-1)
	RMSSD  float64 // ms
	PNN50  float64 // percent of successive differences > 50 ms
}

// UndefinedMetrics returns metrics with every field set to NaN.
func UndefinedMetrics() TimeDomainMetrics {
	nan := math.NaN()
	return TimeDomainMetrics{MeanRR: nan, SDNN: nan, RMSSD: nan, PNN50: nan}
}

// Defined reports whether the metrics were computed from at least two RR intervals.
func (m TimeDomainMetrics) Defined() bool {
	return !math.IsNaN(m.MeanRR)
}

type metricsJSON struct {
	MeanRR *float64 `json:"mean_rr"`
	SDNN   *float64 `json:"sdnn"`
	RMSSD  *float64 `json:"rmssd"`
	PNN50  *float64 `json:"pnn50"`
}

// MarshalJSON encodes undefined fields as null; encoding/json rejects NaN.
func (m TimeDomainMetrics) MarshalJSON() ([]byte, error) {
	return json.Marshal(metricsJSON{
		MeanRR: Optional(m.MeanRR),
		SDNN:   Optional(m.SDNN),
		RMSSD:  Optional(m.RMSSD),
		PNN50:  Optional(m.PNN50),
	})
}

// UnmarshalJSON decodes null fields back to NaN.
func (m *TimeDomainMetrics) UnmarshalJSON(data []byte) error {
	var raw metricsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.MeanRR = Value(raw.MeanRR)
	m.SDNN = Value(raw.SDNN)
	m.RMSSD = Value(raw.RMSSD)
	m.PNN50 = Value(raw.PNN50)
	return nil
}

// HeartRateSummary describes the bpm values of the retained samples,
// non-positive ones included.
type HeartRateSummary struct {
	Mean  float64
	Min   float64
	Max   float64
	Count int
}

type summaryJSON struct {
	Mean  *float64 `json:"mean_hr"`
	Min   *float64 `json:"min_hr"`
	Max   *float64 `json:"max_hr"`
	Count int      `json:"samples"`
}

// MarshalJSON encodes undefined fields as null.
func (s HeartRateSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(summaryJSON{
		Mean:  Optional(s.Mean),
		Min:   Optional(s.Min),
		Max:   Optional(s.Max),
		Count: s.Count,
	})
}

// UnmarshalJSON decodes null fields back to NaN.
func (s *HeartRateSummary) UnmarshalJSON(data []byte) error {
	var raw summaryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Mean = Value(raw.Mean)
	s.Min = Value(raw.Min)
	s.Max = Value(raw.Max)
	s.Count = raw.Count
	return nil
}

// StressLevel is the coarse stress classification.
type StressLevel string

const (
	StressLow     StressLevel = "Low"
	StressMedium  StressLevel = "Medium"
	StressHigh    StressLevel = "High"
	StressUnknown StressLevel = "Unknown"
)

// Badge returns the CSS class used by the UI for the level badge.
func (l StressLevel) Badge() string {
	switch l {
	case StressLow:
		return "badge-low"
	case StressMedium:
		return "badge-medium"
	case StressHigh:
		return "badge-high"
	default:
		return "badge"
	}
}

// StressAssessment is a stress level together with a human-readable rationale.
type StressAssessment struct {
	Level     StressLevel `json:"level"`
	Rationale string      `json:"rationale"`
}

// Optional returns nil for NaN or ±Inf and a pointer to v otherwise.
func Optional(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Value is the inverse of Optional: nil becomes NaN.
func Value(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
