// Package publish forwards every recorded session to a NATS subject so other
// services can consume results without polling the REST API.
package publish

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/hrstress/hrstress/pkg/rpc"
)

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Publisher marshals session snapshots to JSON and publishes them.
// Samples are stripped; subscribers that need them use the REST API.
type Publisher struct {
	conn    Conn
	subject string
	nc      *nats.Conn // set when the publisher owns the connection
}

// Connect dials url and returns a Publisher that owns the connection.
// The client reconnects forever once connected.
func Connect(url, subject, name string) (*Publisher, error) {
	nc, err := nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("publish: nats disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("publish: nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("publish: connect %s: %w", url, err)
	}
	p := New(nc, subject)
	p.nc = nc
	return p, nil
}

// New wraps an existing connection.
func New(conn Conn, subject string) *Publisher {
	return &Publisher{conn: conn, subject: subject}
}

// Subject returns the subject sessions are published to.
func (p *Publisher) Subject() string { return p.subject }

// Publish sends snap to the configured subject.
func (p *Publisher) Publish(snap *rpc.SessionSnapshot) error {
	out := *snap
	out.Samples = nil
	data, err := json.Marshal(&out)
	if err != nil {
		return fmt.Errorf("publish: marshal %q: %w", snap.SourceID, err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish: %s: %w", p.subject, err)
	}
	return nil
}

// Close drains the connection when the publisher owns it.
func (p *Publisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
