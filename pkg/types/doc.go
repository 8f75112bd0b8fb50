// Package types defines the heart-rate data model shared by the agent, the
// server and the analysis core in pkg/hrv.
//
// These are the canonical in-memory representations of a recording session,
// separate from the gRPC wire format in pkg/rpc:
//   - Table: raw header + rows as read from a CSV file, no fixed schema
//   - Sample: one cleaned (timestamp, heart_rate, rr_ms) point
//   - TimeDomainMetrics: mean RR, SDNN, RMSSD, pNN50 (NaN when undefined)
//   - HeartRateSummary: mean/min/max bpm over the retained samples
//   - StressLevel / StressAssessment: the coarse classification and its rationale
//
// NaN is the "undefined" marker throughout. JSON encodings write it as null.
package types
