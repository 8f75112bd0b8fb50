package hrv

import (
	"math"
	"testing"

	"github.com/hrstress/hrstress/pkg/types"
)

func TestEstimateStress(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name  string
		hr    float64
		rmssd float64
		want  types.StressLevel
	}{
		{"NaN heart rate", nan, 40, types.StressUnknown},
		{"NaN rmssd", 70, nan, types.StressUnknown},
		{"both NaN", nan, nan, types.StressUnknown},
		{"high", 95, 10, types.StressHigh},
		{"high just inside", 90.01, 19.9, types.StressHigh},
		{"hr on high boundary", 90, 19.9, types.StressMedium},
		{"rmssd on high boundary", 95, 20, types.StressMedium},
		{"elevated hr only", 85, 50, types.StressMedium},
		{"low rmssd only", 70, 29.9, types.StressMedium},
		{"low boundaries", 80, 30, types.StressLow},
		{"hr just above low boundary", 80.1, 30, types.StressMedium},
		{"relaxed", 62, 55, types.StressLow},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := EstimateStress(tc.hr, tc.rmssd)
			if got.Level != tc.want {
				t.Errorf("EstimateStress(%v, %v) = %q, want %q", tc.hr, tc.rmssd, got.Level, tc.want)
			}
			if got.Rationale == "" {
				t.Error("empty rationale")
			}
		})
	}
}

func TestEstimateStress_Rationales(t *testing.T) {
	seen := map[string]types.StressLevel{}
	for _, in := range [][2]float64{{math.NaN(), 1}, {95, 10}, {85, 50}, {60, 60}} {
		a := EstimateStress(in[0], in[1])
		if prev, ok := seen[a.Rationale]; ok && prev != a.Level {
			t.Errorf("rationale %q shared by %q and %q", a.Rationale, prev, a.Level)
		}
		seen[a.Rationale] = a.Level
	}
	if len(seen) != 4 {
		t.Errorf("got %d distinct rationales, want 4", len(seen))
	}
}
