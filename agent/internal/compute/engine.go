package compute

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hrstress/hrstress/agent/internal/ingest"
	"github.com/hrstress/hrstress/pkg/hrv"
	"github.com/hrstress/hrstress/pkg/table"
)

// Failure reasons reported in Result.Reason.
const (
	ReasonRead          = "read"
	ReasonEmpty         = "empty"
	ReasonMissingColumn = "missing_column"
	ReasonInvalid       = "invalid"
)

// Result is the analysis of one source read, ready for the shipper.
type Result struct {
	SourceID   string
	SourceType string
	Origin     string
	Timestamp  time.Time

	// Analysis is nil when the source could not be analysed.
	Analysis *hrv.Result

	// ErrorMessage and Reason are set when Analysis is nil.
	ErrorMessage string
	Reason       string
}

// Failed reports whether the result carries an error instead of an analysis.
func (r *Result) Failed() bool { return r.Analysis == nil }

// Engine analyses source reads and suppresses repeats: a source whose bytes
// and column hints have not changed since its last successful analysis, or
// which fails with the same error again, produces no new Result.
//
// All exported methods are safe for concurrent use.
type Engine struct {
	opts hrv.Options

	mu     sync.Mutex
	states map[string]*sourceState
}

type sourceState struct {
	analysed bool
	digest   uint64
	hints    hrv.Hints
	lastErr  string
}

// NewEngine returns an Engine that analyses every source with the given
// window. Column hints are per source and passed to Process.
func NewEngine(windowSeconds int) *Engine {
	return &Engine{
		opts:   hrv.Options{WindowSeconds: windowSeconds},
		states: make(map[string]*sourceState),
	}
}

// WindowSeconds returns the analysis window the engine was built with.
func (e *Engine) WindowSeconds() int { return e.opts.WindowSeconds }

// Process analyses res and returns the Result to ship, or nil when neither
// the bytes nor the hints changed since the previous call for the same source.
//
// now is passed explicitly so callers (and tests) control the clock.
func (e *Engine) Process(res *ingest.Result, hints hrv.Hints, now time.Time) *Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.stateFor(res.SourceID)
	out := &Result{
		SourceID:   res.SourceID,
		SourceType: res.SourceType,
		Origin:     res.Origin,
		Timestamp:  now,
	}

	if res.Err != nil {
		reason := ReasonRead
		if errors.Is(res.Err, table.ErrEmpty) {
			reason = ReasonEmpty
		}
		return e.fail(st, out, res.Err, reason)
	}

	if st.analysed && st.digest == res.Digest && st.hints == hints {
		return nil
	}

	opts := e.opts
	opts.Hints = hints
	analysis, err := hrv.Analyze(res.Table, opts)
	if err != nil {
		reason := ReasonInvalid
		if hrv.IsMissingColumn(err) {
			reason = ReasonMissingColumn
		}
		st.digest = res.Digest
		return e.fail(st, out, err, reason)
	}

	st.analysed = true
	st.digest = res.Digest
	st.hints = hints
	st.lastErr = ""
	out.Analysis = analysis

	slog.Debug("compute: source analysed",
		"source", res.SourceID,
		"samples", len(analysis.Samples),
		"stress", analysis.Stress.Level,
	)
	return out
}

func (e *Engine) fail(st *sourceState, out *Result, err error, reason string) *Result {
	msg := err.Error()
	st.analysed = false
	if st.lastErr == msg {
		return nil
	}
	st.lastErr = msg
	slog.Warn("compute: source failed", "source", out.SourceID, "reason", reason, "err", err)
	out.ErrorMessage = msg
	out.Reason = reason
	return out
}

// Forget drops the state of sources not listed in keep.
func (e *Engine) Forget(keep []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	live := make(map[string]bool, len(keep))
	for _, id := range keep {
		live[id] = true
	}
	for id := range e.states {
		if !live[id] {
			delete(e.states, id)
		}
	}
}

func (e *Engine) stateFor(id string) *sourceState {
	st, ok := e.states[id]
	if !ok {
		st = &sourceState{}
		e.states[id] = st
	}
	return st
}
