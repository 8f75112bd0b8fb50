package alerts

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hrstress/hrstress/pkg/rpc"
	"github.com/hrstress/hrstress/pkg/types"
)

// evalCondition evaluates a rule condition string against a SessionSnapshot.
//
// Supported expressions (field operator value):
//
//	mean_hr > 100
//	min_hr < 40
//	max_hr >= 180
//	mean_rr < 600
//	sdnn < 30
//	rmssd < 20
//	pnn50 < 3
//	samples < 30
//	non_positive > 0
//	stress == high
//
// Returns (fires bool, triggering value float64). Undefined (NaN) fields
// never fire, and neither do unparseable expressions or unknown fields.
func evalCondition(cond string, snap *rpc.SessionSnapshot) (bool, float64) {
	field, op, rhs, err := parseCondition(cond)
	if err != nil {
		return false, 0
	}

	if field == "stress" {
		matches := strings.EqualFold(string(snap.Stress.Level), rhs)
		switch op {
		case "==":
			return matches, 0
		case "!=":
			return !matches, 0
		}
		return false, 0
	}

	v, ok := numericField(field, snap)
	if !ok || math.IsNaN(v) {
		return false, 0
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return false, 0
	}
	return compareFloat(v, op, threshold), v
}

// ValidateCondition reports whether cond can ever be evaluated.
func ValidateCondition(cond string) error {
	field, op, rhs, err := parseCondition(cond)
	if err != nil {
		return err
	}
	if field == "stress" {
		if op != "==" && op != "!=" {
			return fmt.Errorf("stress supports == and != only, got %q", op)
		}
		for _, l := range []types.StressLevel{types.StressLow, types.StressMedium, types.StressHigh, types.StressUnknown} {
			if strings.EqualFold(string(l), rhs) {
				return nil
			}
		}
		return fmt.Errorf("unknown stress level %q", rhs)
	}
	if _, ok := numericField(field, &rpc.SessionSnapshot{}); !ok {
		return fmt.Errorf("unknown field %q", field)
	}
	if !validOp(op) {
		return fmt.Errorf("unknown operator %q", op)
	}
	if _, err := strconv.ParseFloat(rhs, 64); err != nil {
		return fmt.Errorf("threshold %q is not a number", rhs)
	}
	return nil
}

func parseCondition(cond string) (field, op, rhs string, err error) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("condition %q: want \"<field> <op> <value>\"", cond)
	}
	return strings.ToLower(parts[0]), parts[1], parts[2], nil
}

// numericField maps a field name to its value in the snapshot.
func numericField(field string, snap *rpc.SessionSnapshot) (float64, bool) {
	switch field {
	case "mean_hr":
		return snap.HeartRate.Mean, true
	case "min_hr":
		return snap.HeartRate.Min, true
	case "max_hr":
		return snap.HeartRate.Max, true
	case "mean_rr":
		return snap.Metrics.MeanRR, true
	case "sdnn":
		return snap.Metrics.SDNN, true
	case "rmssd":
		return snap.Metrics.RMSSD, true
	case "pnn50":
		return snap.Metrics.PNN50, true
	case "samples":
		return float64(snap.HeartRate.Count), true
	case "non_positive":
		return float64(snap.NonPositiveCount), true
	default:
		return 0, false
	}
}

func validOp(op string) bool {
	switch op {
	case ">", ">=", "<", "<=", "==", "!=":
		return true
	}
	return false
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
