package shipper

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hrstress/hrstress/agent/internal/compute"
	"github.com/hrstress/hrstress/agent/internal/config"
	"github.com/hrstress/hrstress/pkg/rpc"
)

const (
	retryBase   = time.Second
	backoffMax  = time.Minute
	sendTimeout = 10 * time.Second
)

type dialFunc func(ctx context.Context, endpoint string, cfg config.AgentConfig) (*grpc.ClientConn, error)

// Shipper queues session snapshots and delivers them to hrstress-server.
// Ship never blocks. Run owns the connection and must run in its own
// goroutine.
type Shipper struct {
	cfg      config.AgentConfig
	queue    *queue
	callOpts []grpc.CallOption
	dialFn   dialFunc
}

// New creates a Shipper for cfg. The server API key is read from the
// environment here.
func New(cfg config.AgentConfig) *Shipper {
	size := cfg.BufferSize
	if size <= 0 {
		size = config.DefaultBufferSize
	}
	return &Shipper{
		cfg:      cfg,
		queue:    newQueue(size),
		callOpts: callOptions(cfg.ServerAuth),
		dialFn:   defaultDial,
	}
}

// Ship converts res to a snapshot and queues it.
func (s *Shipper) Ship(res *compute.Result) {
	snap := toSnapshot(res, s.cfg.AgentID, s.cfg.IncludeSamples)
	if old := s.queue.push(snap); old != nil {
		slog.Warn("shipper: queue full, evicted oldest snapshot",
			"evicted_source", old.SourceID, "capacity", s.queue.limit)
	}
}

// Pending returns the number of queued snapshots.
func (s *Shipper) Pending() int { return s.queue.len() }

// Run sends queued snapshots until ctx is cancelled. After a failed dial or
// send it waits retryDelay before reconnecting; a connection that delivered
// at least one snapshot resets the delay.
func (s *Shipper) Run(ctx context.Context) {
	attempt := 0
	for ctx.Err() == nil {
		conn, err := s.dialFn(ctx, s.cfg.ServerEndpoint, s.cfg)
		if err == nil {
			var sent int
			sent, err = s.drain(ctx, conn)
			conn.Close()
			if ctx.Err() != nil {
				return
			}
			if sent > 0 {
				attempt = 0
			}
		}

		wait := retryDelay(s.cfg.ShipInterval, attempt)
		attempt++
		slog.Warn("shipper: server unavailable, will retry",
			"endpoint", s.cfg.ServerEndpoint, "err", err, "retry_in", wait, "pending", s.Pending())

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// drain sends snapshots over conn until a send fails or ctx is done. It
// returns how many were delivered.
func (s *Shipper) drain(ctx context.Context, conn grpc.ClientConnInterface) (int, error) {
	client := rpc.NewSessionServiceClient(conn)
	sent := 0
	for {
		snap, ok := s.queue.pop(ctx)
		if !ok {
			return sent, nil
		}

		err := s.send(ctx, client, snap)
		switch {
		case err == nil:
			sent++
		case isPermanentError(err):
			slog.Error("shipper: server refused snapshot, dropping it",
				"source", snap.SourceID, "session", snap.SessionID, "err", err)
		default:
			if !s.queue.pushFront(snap) {
				slog.Warn("shipper: queue full, dropped unsent snapshot", "source", snap.SourceID)
			}
			return sent, fmt.Errorf("send: %w", err)
		}
	}
}

func (s *Shipper) send(ctx context.Context, client rpc.SessionServiceClient, snap *rpc.SessionSnapshot) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	resp, err := client.SendSession(ctx, snap, s.callOpts...)
	if err != nil {
		return err
	}
	if !resp.Ok {
		slog.Warn("shipper: server did not accept snapshot", "source", snap.SourceID, "message", resp.Message)
		return nil
	}
	slog.Debug("shipper: snapshot delivered", "source", snap.SourceID, "session", snap.SessionID)
	return nil
}

// isPermanentError reports whether retrying the same snapshot is pointless.
func isPermanentError(err error) bool {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.Unauthenticated, codes.PermissionDenied:
		return true
	}
	return false
}

// retryDelay is the wait before reconnect attempt n, counting from zero:
// base doubled n times, capped at backoffMax, with ±25% jitter. A base
// outside (0, backoffMax] is replaced by retryBase.
func retryDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 || base > backoffMax {
		base = retryBase
	}
	d := base
	for i := 0; i < attempt && d < backoffMax; i++ {
		d *= 2
	}
	d = min(d, backoffMax)

	jitter := (rand.Float64()*2 - 1) * 0.25 //nolint:gosec // not crypto
	return d + time.Duration(jitter*float64(d))
}
