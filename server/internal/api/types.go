package api

import (
	"github.com/hrstress/hrstress/pkg/types"
	"github.com/hrstress/hrstress/server/internal/alerts"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status       string `json:"status"`
	SessionCount int    `json:"session_count"`
	HighCount    int    `json:"high_count"`
	MediumCount  int    `json:"medium_count"`
	LowCount     int    `json:"low_count"`
	UnknownCount int    `json:"unknown_count"`
	FailedCount  int    `json:"failed_count"`
	AlertCount   int    `json:"alert_count"`
}

// SessionRow is one line of the session comparison table, as returned by
// GET /api/v1/sessions and GET /api/v1/summary. Undefined values are null.
type SessionRow struct {
	SourceID   string   `json:"source_id"`
	SessionID  string   `json:"session_id"`
	AgentID    string   `json:"agent_id,omitempty"`
	SourceKind string   `json:"source_kind"`
	Origin     string   `json:"origin,omitempty"`
	MeanHR     *float64 `json:"mean_hr_bpm"`
	MinHR      *float64 `json:"min_hr_bpm"`
	MaxHR      *float64 `json:"max_hr_bpm"`
	MeanRR     *float64 `json:"mean_rr_ms"`
	SDNN       *float64 `json:"sdnn_ms"`
	RMSSD      *float64 `json:"rmssd_ms"`
	PNN50      *float64 `json:"pnn50_percent"`
	Samples    int      `json:"n"`
	Stress     string   `json:"stress"`
	Badge      string   `json:"badge"`
	Error      string   `json:"error,omitempty"`
	AnalyzedAt string   `json:"analyzed_at"` // RFC3339
	LastSeen   string   `json:"last_seen"`   // RFC3339
}

// SessionDetail is the payload for GET /api/v1/sessions/{id}: the summary
// row plus the full assessment. Samples are served separately.
type SessionDetail struct {
	SessionRow
	TimestampColumn  string                  `json:"timestamp_column,omitempty"`
	HeartRateColumn  string                  `json:"heart_rate_column,omitempty"`
	HeartRate        types.HeartRateSummary  `json:"heart_rate"`
	Metrics          types.TimeDomainMetrics `json:"metrics"`
	Assessment       types.StressAssessment  `json:"assessment"`
	WindowSeconds    int                     `json:"window_seconds"`
	NonPositiveCount int                     `json:"non_positive_count"`
	SampleCount      int                     `json:"sample_count"` // samples held by the server
	Insights         []Insight               `json:"insights"`
}

// SamplesResponse is the payload for GET /api/v1/sessions/{id}/samples.
type SamplesResponse struct {
	SourceID string         `json:"source_id"`
	Total    int            `json:"total"`
	Limit    int            `json:"limit"`
	Samples  []types.Sample `json:"samples"`
}

// HistoryRow is one past session of a source. The deltas compare it with
// the session before it and are null for the oldest one.
type HistoryRow struct {
	SessionRow
	DeltaMeanHR *float64 `json:"delta_mean_hr_bpm"`
	DeltaRMSSD  *float64 `json:"delta_rmssd_ms"`
}

// HistoryResponse is the payload for GET /api/v1/sessions/{id}/history.
type HistoryResponse struct {
	SourceID string       `json:"source_id"`
	Sessions []HistoryRow `json:"sessions"`
}

// SummaryResponse is the payload for GET /api/v1/summary and the data of
// every WebSocket broadcast.
type SummaryResponse struct {
	Sessions    []SessionRow   `json:"sessions"`
	Levels      map[string]int `json:"levels"`
	GeneratedAt string         `json:"generated_at"` // RFC3339
}

// AlertsResponse is the payload for GET /api/v1/alerts.
type AlertsResponse struct {
	Alerts []*alerts.Alert `json:"alerts"`
	Firing int             `json:"firing"`
}

// UploadResult is one analysed file of POST /api/v1/analyze.
type UploadResult struct {
	File string `json:"file"`
	SessionDetail
	Samples []types.Sample `json:"samples,omitempty"`
}

// UploadFailure is one file of POST /api/v1/analyze that could not be analysed.
type UploadFailure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// AnalyzeResponse is the payload for POST /api/v1/analyze.
type AnalyzeResponse struct {
	Results  []UploadResult  `json:"results"`
	Failures []UploadFailure `json:"failures"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
