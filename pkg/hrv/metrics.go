package hrv

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/hrstress/hrstress/pkg/types"
)

// nn50Threshold is the successive-difference threshold for pNN50, in ms.
const nn50Threshold = 50.0

// TimeDomain computes time-domain HRV metrics over rr (milliseconds).
// NaN entries are ignored. With fewer than two remaining values every
// metric is NaN.
func TimeDomain(rr []float64) types.TimeDomainMetrics {
	valid := make([]float64, 0, len(rr))
	for _, v := range rr {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) < 2 {
		return types.UndefinedMetrics()
	}

	mean, sdnn := stat.MeanStdDev(valid, nil)

	diff := make([]float64, len(valid)-1)
	floats.SubTo(diff, valid[1:], valid[:len(valid)-1])
	rmssd := math.Sqrt(floats.Dot(diff, diff) / float64(len(diff)))

	nn50 := 0
	for _, d := range diff {
		if math.Abs(d) > nn50Threshold {
			nn50++
		}
	}

	return types.TimeDomainMetrics{
		MeanRR: mean,
		SDNN:   sdnn,
		RMSSD:  rmssd,
		PNN50:  100 * float64(nn50) / float64(len(diff)),
	}
}

// RRIntervals extracts the RR column of samples, NaN entries included.
func RRIntervals(samples []types.Sample) []float64 {
	rr := make([]float64, len(samples))
	for i, s := range samples {
		rr[i] = s.RRms
	}
	return rr
}

// SummarizeHeartRate returns mean, min and max bpm over samples.
// Non-positive heart rates are included. Empty input yields NaN fields.
func SummarizeHeartRate(samples []types.Sample) types.HeartRateSummary {
	if len(samples) == 0 {
		nan := math.NaN()
		return types.HeartRateSummary{Mean: nan, Min: nan, Max: nan}
	}
	hr := make([]float64, len(samples))
	for i, s := range samples {
		hr[i] = s.HeartRate
	}
	return types.HeartRateSummary{
		Mean:  stat.Mean(hr, nil),
		Min:   floats.Min(hr),
		Max:   floats.Max(hr),
		Count: len(hr),
	}
}
