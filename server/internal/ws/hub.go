package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hrstress/hrstress/server/internal/api"
	"github.com/hrstress/hrstress/server/internal/store"
)

// EventSessions is the event name of every message.
const EventSessions = "sessions"

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingEvery    = pongWait * 9 / 10
	peerQueueLen = 16
	maxInbound   = 512 // clients only send control frames
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin checks are left to the reverse proxy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients. Seq increases by one per
// broadcast, so a client that sees a gap knows it was dropped as slow.
type Message struct {
	Event string              `json:"event"`
	Seq   uint64              `json:"seq"`
	Data  api.SummaryResponse `json:"data"`
}

// Hub pushes the session summary to WebSocket clients on connect, on every
// tick of Run and after Notify.
type Hub struct {
	store    *store.Store
	interval time.Duration
	wake     chan struct{}
	seq      atomic.Uint64

	mu    sync.Mutex
	peers map[*peer]struct{}
}

// New creates a Hub that reads summaries from st and broadcasts every interval.
func New(st *store.Store, interval time.Duration) *Hub {
	return &Hub{
		store:    st,
		interval: interval,
		wake:     make(chan struct{}, 1),
		peers:    make(map[*peer]struct{}),
	}
}

// Notify schedules a broadcast without waiting for the next tick. It never
// blocks; calls made before the broadcast runs are merged.
func (h *Hub) Notify() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Run broadcasts until ctx is cancelled and then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.dropAll()
			return
		case <-t.C:
		case <-h.wake:
		}
		h.broadcast()
	}
}

// ServeHTTP upgrades the request and serves one client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // the upgrader already replied
	}

	p := newPeer(conn)
	h.add(p)
	defer h.drop(p)

	if msg, err := h.encode(); err == nil {
		p.offer(msg)
	}

	go p.writeLoop()
	p.readLoop()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

func (h *Hub) broadcast() {
	targets := h.snapshot()
	if len(targets) == 0 {
		return
	}
	msg, err := h.encode()
	if err != nil {
		slog.Error("ws: encode summary", "err", err)
		return
	}
	for _, p := range targets {
		if !p.offer(msg) {
			if !p.isClosed() {
				slog.Warn("ws: dropping slow client", "remote", p.conn.RemoteAddr().String())
			}
			h.drop(p)
		}
	}
}

func (h *Hub) encode() ([]byte, error) {
	return json.Marshal(Message{
		Event: EventSessions,
		Seq:   h.seq.Add(1),
		Data:  api.BuildSummary(h.store),
	})
}

func (h *Hub) snapshot() []*peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*peer, 0, len(h.peers))
	for p := range h.peers {
		out = append(out, p)
	}
	return out
}

func (h *Hub) add(p *peer) {
	h.mu.Lock()
	h.peers[p] = struct{}{}
	h.mu.Unlock()
}

// drop removes p and closes its queue, which ends its write loop. Safe to
// call more than once, and concurrently with a broadcast that still holds p.
func (h *Hub) drop(p *peer) {
	h.mu.Lock()
	delete(h.peers, p)
	h.mu.Unlock()
	p.close()
}

func (h *Hub) dropAll() {
	h.mu.Lock()
	peers := h.peers
	h.peers = make(map[*peer]struct{})
	h.mu.Unlock()
	for p := range peers {
		p.close()
	}
}

// peer is one connected client. queue is only sent to and closed under mu.
type peer struct {
	conn  *websocket.Conn
	queue chan []byte

	mu     sync.Mutex
	closed bool
}

func newPeer(conn *websocket.Conn) *peer {
	return &peer{conn: conn, queue: make(chan []byte, peerQueueLen)}
}

// offer queues msg without blocking and reports whether there was room.
// A closed peer takes nothing.
func (p *peer) offer(msg []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.queue <- msg:
		return true
	default:
		return false
	}
}

func (p *peer) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
}

func (p *peer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *peer) writeLoop() {
	ping := time.NewTicker(pingEvery)
	defer func() {
		ping.Stop()
		p.conn.Close()
	}()

	for {
		var err error
		select {
		case msg, ok := <-p.queue:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				p.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			err = p.conn.WriteMessage(websocket.TextMessage, msg)
		case <-ping.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = p.conn.WriteMessage(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}

// readLoop discards inbound frames and returns when the connection dies.
func (p *peer) readLoop() {
	defer p.conn.Close()
	p.conn.SetReadLimit(maxInbound)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := p.conn.ReadMessage(); err != nil {
			return
		}
	}
}
