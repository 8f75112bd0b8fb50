// Package record fans each accepted session out to the server's consumers:
// the session store, metrics, alert rules, the NATS publisher and live
// WebSocket clients. Both the gRPC receiver and the upload endpoint record
// through it.
package record

import (
	"log/slog"

	"github.com/hrstress/hrstress/pkg/rpc"
	"github.com/hrstress/hrstress/server/internal/alerts"
	"github.com/hrstress/hrstress/server/internal/metrics"
	"github.com/hrstress/hrstress/server/internal/store"
)

// Publisher is implemented by *publish.Publisher.
type Publisher interface {
	Publish(snap *rpc.SessionSnapshot) error
}

// Recorder is safe for concurrent use; every consumer it calls is.
type Recorder struct {
	store   *store.Store
	alerts  *alerts.Engine
	metrics *metrics.Metrics
	pub     Publisher
	notify  func()
}

// New creates a Recorder. alerts and metrics may be nil.
func New(st *store.Store, al *alerts.Engine, m *metrics.Metrics) *Recorder {
	return &Recorder{store: st, alerts: al, metrics: m}
}

// WithPublisher enables publishing of every recorded session.
func (r *Recorder) WithPublisher(p Publisher) *Recorder {
	r.pub = p
	return r
}

// OnRecord registers fn to run after each recorded session.
func (r *Recorder) OnRecord(fn func()) *Recorder {
	r.notify = fn
	return r
}

// Record stores snap and notifies the consumers. Publish failures are logged;
// the session is already stored.
func (r *Recorder) Record(snap *rpc.SessionSnapshot) {
	r.store.Put(snap)

	if r.metrics != nil {
		r.metrics.ObserveSession(snap)
		r.metrics.SetLive(len(r.store.List()))
	}
	if r.alerts != nil {
		r.alerts.Evaluate(snap)
	}
	if r.pub != nil {
		if err := r.pub.Publish(snap); err != nil {
			slog.Warn("record: publish failed", "source_id", snap.SourceID, "err", err)
		}
	}
	if r.notify != nil {
		r.notify()
	}

	slog.Debug("record: session stored",
		"source_id", snap.SourceID,
		"source_kind", snap.SourceKind,
		"stress", snap.Stress.Level,
		"failed", snap.Failed(),
	)
}

// Evicted refreshes the live gauge after the store dropped stale sessions.
func (r *Recorder) Evicted(int) {
	if r.metrics != nil {
		r.metrics.SetLive(len(r.store.List()))
	}
	if r.notify != nil {
		r.notify()
	}
}
