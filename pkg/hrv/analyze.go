package hrv

import (
	"fmt"

	"github.com/hrstress/hrstress/pkg/types"
)

// Analysis window bounds, in seconds.
const (
	DefaultWindowSeconds = 60
	MinWindowSeconds     = 30
	MaxWindowSeconds     = 300
)

// Options controls one Analyze run.
type Options struct {
	Hints Hints

	// WindowSeconds is reserved for a future windowed RMSSD. It is validated
	// and echoed in the Result but no computation reads it. Zero means
	// DefaultWindowSeconds.
	WindowSeconds int
}

// Result is everything derived from one table.
type Result struct {
	Columns          Columns                 `json:"columns"`
	Samples          []types.Sample          `json:"samples"`
	HeartRate        types.HeartRateSummary  `json:"heart_rate"`
	Metrics          types.TimeDomainMetrics `json:"metrics"`
	Stress           types.StressAssessment  `json:"stress"`
	WindowSeconds    int                     `json:"window_seconds"`
	NonPositiveCount int                     `json:"non_positive_count"` // samples kept with hr <= 0
}

// ValidateWindow checks that seconds is zero (use the default) or within
// [MinWindowSeconds, MaxWindowSeconds].
func ValidateWindow(seconds int) error {
	if seconds == 0 {
		return nil
	}
	if seconds < MinWindowSeconds || seconds > MaxWindowSeconds {
		return fmt.Errorf("window_seconds %d out of range [%d, %d]", seconds, MinWindowSeconds, MaxWindowSeconds)
	}
	return nil
}

// Analyze runs column resolution, preprocessing, metrics and stress
// classification over t. The only data error is *MissingColumnError;
// degenerate input produces NaN metrics and StressUnknown.
func Analyze(t *types.Table, opts Options) (*Result, error) {
	if err := ValidateWindow(opts.WindowSeconds); err != nil {
		return nil, err
	}
	window := opts.WindowSeconds
	if window == 0 {
		window = DefaultWindowSeconds
	}

	var names []string
	if t != nil {
		names = t.Columns
	}
	cols, err := ResolveColumns(names, opts.Hints)
	if err != nil {
		return nil, err
	}

	samples := preprocessResolved(t, cols)
	hr := SummarizeHeartRate(samples)
	metrics := TimeDomain(RRIntervals(samples))

	nonPositive := 0
	for _, s := range samples {
		if s.HeartRate <= 0 {
			nonPositive++
		}
	}

	return &Result{
		Columns:          cols,
		Samples:          samples,
		HeartRate:        hr,
		Metrics:          metrics,
		Stress:           EstimateStress(hr.Mean, metrics.RMSSD),
		WindowSeconds:    window,
		NonPositiveCount: nonPositive,
	}, nil
}
