package hrv

import (
	"math"

	"github.com/hrstress/hrstress/pkg/types"
)

// Thresholds for the stress heuristic. All comparisons are strict, so a value
// sitting exactly on a threshold falls through to the next rule.
const (
	HighHeartRate     = 90.0 // bpm
	ElevatedHeartRate = 80.0 // bpm
	VeryLowRMSSD      = 20.0 // ms
	LowRMSSD          = 30.0 // ms
)

// stressRule is one entry of the classification table.
type stressRule struct {
	match     func(meanHR, rmssd float64) bool
	level     types.StressLevel
	rationale string
}

// stressRules are evaluated top to bottom; the first match wins.
// The last rule always matches.
var stressRules = []stressRule{
	{
		match:     func(hr, rmssd float64) bool { return math.IsNaN(hr) || math.IsNaN(rmssd) },
		level:     types.StressUnknown,
		rationale: "Insufficient data to estimate stress.",
	},
	{
		match:     func(hr, rmssd float64) bool { return hr > HighHeartRate && rmssd < VeryLowRMSSD },
		level:     types.StressHigh,
		rationale: "High HR and very low RMSSD suggest elevated stress.",
	},
	{
		match:     func(hr, rmssd float64) bool { return hr > ElevatedHeartRate || rmssd < LowRMSSD },
		level:     types.StressMedium,
		rationale: "Moderately elevated HR or low RMSSD.",
	},
	{
		match:     func(float64, float64) bool { return true },
		level:     types.StressLow,
		rationale: "Normal HR and healthy RMSSD.",
	},
}

// EstimateStress classifies a session from its mean heart rate (bpm) and
// RMSSD (ms). NaN in either input yields StressUnknown.
func EstimateStress(meanHR, rmssd float64) types.StressAssessment {
	for _, r := range stressRules {
		if r.match(meanHR, rmssd) {
			return types.StressAssessment{Level: r.level, Rationale: r.rationale}
		}
	}
	// unreachable: the last rule matches everything
	return types.StressAssessment{Level: types.StressUnknown}
}
