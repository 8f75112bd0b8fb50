package hrv

import (
	"errors"
	"fmt"
	"strings"
)

// heartRateNames are the accepted heart-rate column names, compared lowercased.
var heartRateNames = []string{"heart_rate", "hr", "bpm", "heartrate"}

// columnPredicate reports whether a lowercased column name matches.
type columnPredicate func(lower string) bool

// timestampPredicates are evaluated in order; the first column matching any
// predicate, scanning columns left to right, wins.
var timestampPredicates = []columnPredicate{
	func(lower string) bool { return strings.Contains(lower, "time") || strings.Contains(lower, "date") },
}

var heartRatePredicates = []columnPredicate{
	func(lower string) bool {
		for _, n := range heartRateNames {
			if lower == n {
				return true
			}
		}
		return false
	},
}

// Hints are optional caller overrides for column selection.
// An empty field means "detect automatically".
type Hints struct {
	Timestamp string `json:"ts_column,omitempty" yaml:"ts_column"`
	HeartRate string `json:"hr_column,omitempty" yaml:"hr_column"`
}

// Columns is the outcome of column resolution.
// Timestamp is empty when the table has no timestamp column.
type Columns struct {
	Timestamp string `json:"timestamp,omitempty"`
	HeartRate string `json:"heart_rate"`
}

// MissingColumnError reports that a required column could not be resolved.
type MissingColumnError struct {
	// Column is the hinted name that was not present, or empty when
	// auto-detection found no heart-rate column.
	Column string
	// Role is "heart_rate" or "timestamp".
	Role string
}

func (e *MissingColumnError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s column %q not found in data", e.Role, e.Column)
	}
	return "no valid heart rate column found; please name it 'heart_rate', 'hr', 'bpm' or 'heartrate'"
}

// IsMissingColumn reports whether err is or wraps a *MissingColumnError.
func IsMissingColumn(err error) bool {
	var mc *MissingColumnError
	return errors.As(err, &mc)
}

// ResolveColumns picks the timestamp and heart-rate columns from names.
// Hints are used as given; the only check is that a hinted column exists.
func ResolveColumns(names []string, hints Hints) (Columns, error) {
	var out Columns

	if hints.Timestamp != "" {
		if !contains(names, hints.Timestamp) {
			return Columns{}, &MissingColumnError{Column: hints.Timestamp, Role: "timestamp"}
		}
		out.Timestamp = hints.Timestamp
	} else {
		out.Timestamp = firstMatch(names, timestampPredicates)
	}

	if hints.HeartRate != "" {
		if !contains(names, hints.HeartRate) {
			return Columns{}, &MissingColumnError{Column: hints.HeartRate, Role: "heart_rate"}
		}
		out.HeartRate = hints.HeartRate
	} else {
		out.HeartRate = firstMatch(names, heartRatePredicates)
	}

	if out.HeartRate == "" {
		return Columns{}, &MissingColumnError{Role: "heart_rate"}
	}
	return out, nil
}

// firstMatch returns the original-cased name of the first column accepted by
// any predicate, trying predicates in priority order.
func firstMatch(names []string, preds []columnPredicate) string {
	for _, pred := range preds {
		for _, n := range names {
			if pred(strings.ToLower(n)) {
				return n
			}
		}
	}
	return ""
}

func contains(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}
