// Package hrv is the heart-rate analysis core: column resolution, sample
// preprocessing, time-domain HRV metrics and the stress heuristic.
//
// columns.go resolves the timestamp and heart-rate columns of a types.Table,
// either from caller hints or from ordered name predicates. A table with no
// resolvable heart-rate column fails with *MissingColumnError.
//
// preprocess.go turns the table into time-ordered samples. Unparseable cells
// drop their row; a non-positive heart rate keeps its row but yields a NaN RR
// interval. Tables without a timestamp column get a synthetic 5-second timeline
// starting at BaseInstant.
//
// metrics.go computes mean RR, SDNN (n-1), RMSSD and pNN50 with gonum. Fewer
// than two valid RR intervals produce NaN metrics rather than an error.
//
// stress.go maps (mean HR, RMSSD) to Low/Medium/High/Unknown with a fixed,
// ordered rule table.
//
// Analyze chains all four steps for one table. Every function is pure and
// safe to call concurrently on different tables.
package hrv
