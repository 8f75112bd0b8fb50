package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hrstress/hrstress/pkg/rpc"
)

// DefaultHistory is how many sessions each source keeps, the current one
// included.
const DefaultHistory = 10

// Entry is a session snapshot together with the time it was received.
type Entry struct {
	Snapshot  *rpc.SessionSnapshot
	UpdatedAt time.Time
}

// source is every retained session of one source, oldest first.
type source struct {
	sessions []*Entry
}

func (s *source) latest() *Entry { return s.sessions[len(s.sessions)-1] }

// Store keeps the recent sessions of every source in memory, keyed by
// source_id. A source whose latest session is older than the TTL is stale:
// readers skip it and Evict drops it with its history.
//
// Store is safe for concurrent use.
type Store struct {
	ttl     time.Duration
	history int
	now     func() time.Time

	mu      sync.RWMutex
	sources map[string]*source
}

// New creates a Store with the given TTL and DefaultHistory.
func New(ttl time.Duration) *Store {
	return NewWithHistory(ttl, DefaultHistory)
}

// NewWithHistory creates a Store keeping up to history sessions per source.
// Values below one keep only the latest session.
func NewWithHistory(ttl time.Duration, history int) *Store {
	if history < 1 {
		history = 1
	}
	return &Store{
		ttl:     ttl,
		history: history,
		now:     time.Now,
		sources: make(map[string]*source),
	}
}

// TTL returns the retention window.
func (s *Store) TTL() time.Duration { return s.ttl }

// Put records snap as the latest session of snap.SourceID, dropping the
// oldest retained session when the history is full. snap must not be
// modified afterwards.
func (s *Store) Put(snap *rpc.SessionSnapshot) {
	e := &Entry{Snapshot: snap, UpdatedAt: s.now()}

	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[snap.SourceID]
	if !ok {
		src = &source{}
		s.sources[snap.SourceID] = src
	}
	src.sessions = append(src.sessions, e)
	if over := len(src.sessions) - s.history; over > 0 {
		src.sessions = append(src.sessions[:0:0], src.sessions[over:]...)
	}
}

// Get returns the latest session of sourceID, or false when the source is
// unknown or stale.
func (s *Store) Get(sourceID string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.sources[sourceID]
	if !ok || !s.fresh(src, s.now()) {
		return nil, false
	}
	return src.latest(), true
}

// History returns the retained sessions of sourceID, newest first, or false
// when the source is unknown or stale.
func (s *Store) History(sourceID string) ([]*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.sources[sourceID]
	if !ok || !s.fresh(src, s.now()) {
		return nil, false
	}
	out := make([]*Entry, len(src.sessions))
	for i, e := range src.sessions {
		out[len(out)-1-i] = e
	}
	return out, true
}

// List returns the latest session of every live source, sorted by source ID.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	now := s.now()
	out := make([]*Entry, 0, len(s.sources))
	for _, src := range s.sources {
		if s.fresh(src, now) {
			out = append(out, src.latest())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Snapshot.SourceID < out[j].Snapshot.SourceID
	})
	return out
}

// Count returns the number of sources held, stale ones included.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sources)
}

// Evict drops every source that is stale at now and returns how many were
// removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, src := range s.sources {
		if !s.fresh(src, now) {
			delete(s.sources, id)
			removed++
		}
	}
	return removed
}

// Run evicts stale sources every half TTL (at least once a second) until ctx
// is cancelled. onEvict, when non-nil, is called after a sweep removed
// something.
func (s *Store) Run(ctx context.Context, onEvict func(removed int)) {
	interval := max(s.ttl/2, time.Second)
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n := s.Evict(now)
			if n == 0 {
				continue
			}
			slog.Debug("store: evicted stale sources", "count", n)
			if onEvict != nil {
				onEvict(n)
			}
		}
	}
}

func (s *Store) fresh(src *source, now time.Time) bool {
	return src.latest().UpdatedAt.After(now.Add(-s.ttl))
}
