package api

import (
	"fmt"
	"math"
	"sort"

	"github.com/hrstress/hrstress/pkg/hrv"
	"github.com/hrstress/hrstress/pkg/rpc"
	"github.com/hrstress/hrstress/pkg/types"
)

// shortRecording is the sample count below which time-domain HRV is
// too noisy to read much into.
const shortRecording = 30

// Insight is one human-readable remark about a session, shown as a chip
// next to the metrics.
type Insight struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical".
	Level  string   `json:"level"`
	Title  string   `json:"title"`
	Detail string   `json:"detail"`
	Value  *float64 `json:"value,omitempty"`
}

var levelRank = map[string]int{"critical": 0, "warning": 1, "info": 2, "ok": 3}

// computeInsights derives insights from a snapshot, critical first.
func computeInsights(snap *rpc.SessionSnapshot) []Insight {
	if snap.Failed() {
		return []Insight{failureInsight(snap)}
	}

	var out []Insight

	if !snap.Metrics.Defined() {
		out = append(out, Insight{
			Key:   "insufficient_data",
			Level: "info",
			Title: "Not enough beats",
			Detail: "Fewer than two usable RR intervals were found, so SDNN, RMSSD and pNN50 " +
				"are undefined and stress cannot be estimated. Record a longer session.",
		})
	}

	if n := snap.NonPositiveCount; n > 0 {
		v := float64(n)
		out = append(out, Insight{
			Key:   "non_positive_hr",
			Level: "warning",
			Title: fmt.Sprintf("%d zero or negative readings", n),
			Detail: fmt.Sprintf("%d rows report a heart rate of 0 bpm or less. They are kept in the "+
				"heart-rate summary but excluded from RR intervals; check the sensor contact.", n),
			Value: &v,
		})
	}

	if snap.Metrics.Defined() && snap.HeartRate.Count < shortRecording {
		v := float64(snap.HeartRate.Count)
		out = append(out, Insight{
			Key:   "short_recording",
			Level: "info",
			Title: "Short recording",
			Detail: fmt.Sprintf("Only %d samples. Time-domain HRV from short recordings varies a lot "+
				"between sessions; compare like with like.", snap.HeartRate.Count),
			Value: &v,
		})
	}

	if r := snap.Metrics.RMSSD; !math.IsNaN(r) && r < hrv.VeryLowRMSSD {
		v := r
		out = append(out, Insight{
			Key:   "very_low_rmssd",
			Level: "warning",
			Title: fmt.Sprintf("RMSSD %.1f ms", r),
			Detail: fmt.Sprintf("RMSSD below %.0f ms points to low parasympathetic activity.",
				hrv.VeryLowRMSSD),
			Value: &v,
		})
	}

	out = append(out, stressInsight(snap.Stress))

	sort.SliceStable(out, func(i, j int) bool { return levelRank[out[i].Level] < levelRank[out[j].Level] })
	return out
}

func stressInsight(s types.StressAssessment) Insight {
	in := Insight{Key: "stress", Title: string(s.Level) + " stress", Detail: s.Rationale}
	switch s.Level {
	case types.StressHigh:
		in.Level = "critical"
	case types.StressMedium:
		in.Level = "warning"
	case types.StressLow:
		in.Level = "ok"
	default:
		in.Level = "info"
		in.Title = "Stress unknown"
	}
	return in
}

func failureInsight(snap *rpc.SessionSnapshot) Insight {
	in := Insight{Key: "analysis_failed", Level: "critical", Title: "Analysis failed"}
	switch snap.FailureReason {
	case "missing_column":
		in.Title = "No heart-rate column"
		in.Detail = fmt.Sprintf("%s. Name the column with hr_column (or ts_column for the "+
			"timestamp) in the source config.", snap.Error)
	case "empty":
		in.Title = "Empty file"
		in.Detail = "The source has no header row. Check that the export finished writing."
	case "read":
		in.Title = "Can't read source"
		in.Detail = fmt.Sprintf("The agent could not read this source: %q. Check the path or "+
			"URL and its credentials.", snap.Error)
	default:
		in.Detail = snap.Error
	}
	return in
}
