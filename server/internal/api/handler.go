package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hrstress/hrstress/pkg/rpc"
	"github.com/hrstress/hrstress/pkg/types"
	"github.com/hrstress/hrstress/server/internal/alerts"
	"github.com/hrstress/hrstress/server/internal/metrics"
	"github.com/hrstress/hrstress/server/internal/store"
)

const (
	// defaultSampleLimit matches the first-rows preview of the UI.
	defaultSampleLimit = 20

	defaultMaxUploadBytes = 10 << 20
)

// Recorder stores uploaded sessions; *record.Recorder implements it.
type Recorder interface {
	Record(snap *rpc.SessionSnapshot)
}

// Config holds the upload settings of the API.
type Config struct {
	// MaxUploadBytes caps the body of POST /api/v1/analyze.
	MaxUploadBytes int64
	// WindowSeconds is used when an upload does not set window_seconds.
	WindowSeconds int
	// Recorder receives analysed uploads. Nil disables recording.
	Recorder Recorder
	// Metrics counts uploads. Optional.
	Metrics *metrics.Metrics
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
// It reads session state from the store and returns JSON responses.
type Handler struct {
	store  *store.Store
	alerts *alerts.Engine
	cfg    Config
	mux    *http.ServeMux
}

// New creates a Handler wired to the given session store and alert engine
// and registers all routes. al may be nil.
func New(st *store.Store, al *alerts.Engine, cfg Config) http.Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	h := &Handler{store: st, alerts: al, cfg: cfg, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/sessions", h.listSessions)
	h.mux.HandleFunc("/api/v1/sessions/", h.session) // subtree, extracts {id}
	h.mux.HandleFunc("/api/v1/summary", h.summary)
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)
	h.mux.HandleFunc("/api/v1/analyze", h.analyze)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: session count and per-level counts.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries := h.store.List()
	resp := HealthResponse{Status: "ok", SessionCount: len(entries)}
	for _, e := range entries {
		if e.Snapshot.Failed() {
			resp.FailedCount++
			continue
		}
		switch e.Snapshot.Stress.Level {
		case types.StressHigh:
			resp.HighCount++
		case types.StressMedium:
			resp.MediumCount++
		case types.StressLow:
			resp.LowCount++
		default:
			resp.UnknownCount++
		}
	}
	if h.alerts != nil {
		resp.AlertCount = h.alerts.Firing()
	}
	jsonResp(w, http.StatusOK, resp)
}

// listSessions returns GET /api/v1/sessions: all live sessions.
func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	entries := h.store.List()
	out := make([]SessionRow, 0, len(entries))
	for _, e := range entries {
		out = append(out, toRow(e.Snapshot, e.UpdatedAt))
	}
	jsonResp(w, http.StatusOK, out)
}

// session serves GET /api/v1/sessions/{id} and its /samples and /history
// sub-resources.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/")
	if id == "" {
		h.listSessions(w, r)
		return
	}
	if rest, ok := strings.CutSuffix(id, "/history"); ok {
		h.history(w, rest)
		return
	}
	samples := false
	if rest, ok := strings.CutSuffix(id, "/samples"); ok {
		id, samples = rest, true
	}

	e, ok := h.store.Get(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "session not found")
		return
	}

	if !samples {
		jsonResp(w, http.StatusOK, toDetail(e.Snapshot, e.UpdatedAt))
		return
	}

	limit := defaultSampleLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonErr(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	all := e.Snapshot.Samples
	page := all
	if limit > 0 && limit < len(all) {
		page = all[:limit]
	}
	if page == nil {
		page = []types.Sample{}
	}
	jsonResp(w, http.StatusOK, SamplesResponse{
		SourceID: id,
		Total:    len(all),
		Limit:    limit,
		Samples:  page,
	})
}

// history serves GET /api/v1/sessions/{id}/history: the retained sessions
// of one source, newest first, with the change against the previous one.
func (h *Handler) history(w http.ResponseWriter, id string) {
	entries, ok := h.store.History(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "session not found")
		return
	}
	resp := HistoryResponse{SourceID: id, Sessions: make([]HistoryRow, 0, len(entries))}
	for i, e := range entries {
		row := HistoryRow{SessionRow: toRow(e.Snapshot, e.UpdatedAt)}
		if i+1 < len(entries) {
			prev := entries[i+1].Snapshot
			row.DeltaMeanHR = delta(e.Snapshot.HeartRate.Mean, prev.HeartRate.Mean)
			row.DeltaRMSSD = delta(e.Snapshot.Metrics.RMSSD, prev.Metrics.RMSSD)
		}
		resp.Sessions = append(resp.Sessions, row)
	}
	jsonResp(w, http.StatusOK, resp)
}

// summary returns GET /api/v1/summary: the comparison table of live sessions.
func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildSummary(h.store))
}

// listAlerts returns GET /api/v1/alerts: firing plus recently resolved alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	resp := AlertsResponse{Alerts: []*alerts.Alert{}}
	if h.alerts != nil {
		resp.Alerts = h.alerts.Active()
		resp.Firing = h.alerts.Firing()
	}
	jsonResp(w, http.StatusOK, resp)
}

// --- builders ---------------------------------------------------------------

// BuildSummary assembles the comparison table from all live sessions,
// sorted by source ID. Exported for use by the WebSocket hub.
func BuildSummary(st *store.Store) SummaryResponse {
	entries := st.List()
	resp := SummaryResponse{
		Sessions: make([]SessionRow, 0, len(entries)),
		Levels: map[string]int{
			string(types.StressHigh):    0,
			string(types.StressMedium):  0,
			string(types.StressLow):     0,
			string(types.StressUnknown): 0,
		},
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
	for _, e := range entries {
		resp.Sessions = append(resp.Sessions, toRow(e.Snapshot, e.UpdatedAt))
		if !e.Snapshot.Failed() {
			resp.Levels[string(e.Snapshot.Stress.Level)]++
		}
	}
	return resp
}

func toRow(s *rpc.SessionSnapshot, lastSeen time.Time) SessionRow {
	row := SessionRow{
		SourceID:   s.SourceID,
		SessionID:  s.SessionID,
		AgentID:    s.AgentID,
		SourceKind: s.SourceKind,
		Origin:     s.Origin,
		MeanHR:     types.Optional(s.HeartRate.Mean),
		MinHR:      types.Optional(s.HeartRate.Min),
		MaxHR:      types.Optional(s.HeartRate.Max),
		MeanRR:     types.Optional(s.Metrics.MeanRR),
		SDNN:       types.Optional(s.Metrics.SDNN),
		RMSSD:      types.Optional(s.Metrics.RMSSD),
		PNN50:      types.Optional(s.Metrics.PNN50),
		Samples:    s.HeartRate.Count,
		Stress:     string(s.Stress.Level),
		Badge:      s.Stress.Level.Badge(),
		Error:      s.Error,
		LastSeen:   lastSeen.UTC().Format(time.RFC3339),
	}
	if !s.AnalyzedAt.IsZero() {
		row.AnalyzedAt = s.AnalyzedAt.UTC().Format(time.RFC3339)
	}
	return row
}

func toDetail(s *rpc.SessionSnapshot, lastSeen time.Time) SessionDetail {
	return SessionDetail{
		SessionRow:       toRow(s, lastSeen),
		TimestampColumn:  s.TimestampColumn,
		HeartRateColumn:  s.HeartRateColumn,
		HeartRate:        s.HeartRate,
		Metrics:          s.Metrics,
		Assessment:       s.Stress,
		WindowSeconds:    s.WindowSeconds,
		NonPositiveCount: s.NonPositiveCount,
		SampleCount:      len(s.Samples),
		Insights:         computeInsights(s),
	}
}

// --- helpers ----------------------------------------------------------------

// delta is cur - prev, or nil when either side is undefined.
func delta(cur, prev float64) *float64 {
	if types.Optional(cur) == nil || types.Optional(prev) == nil {
		return nil
	}
	return types.Optional(cur - prev)
}

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
