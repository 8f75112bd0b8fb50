package shipper

import (
	"context"
	"sync"

	"github.com/hrstress/hrstress/pkg/rpc"
)

// queue is a bounded FIFO of snapshots waiting to be sent. A full queue
// evicts its oldest entry on push. Snapshots whose send failed go back to
// the front so delivery order is kept across reconnects.
type queue struct {
	limit int
	ready chan struct{} // signalled when the queue may be non-empty

	mu    sync.Mutex
	items []*rpc.SessionSnapshot
}

func newQueue(limit int) *queue {
	return &queue{limit: limit, ready: make(chan struct{}, 1)}
}

// push appends snap and returns the snapshot it evicted, if any.
func (q *queue) push(snap *rpc.SessionSnapshot) (evicted *rpc.SessionSnapshot) {
	q.mu.Lock()
	if len(q.items) == q.limit {
		evicted = q.items[0]
		q.items = q.items[1:]
	}
	q.items = append(q.items, snap)
	q.mu.Unlock()

	q.signal()
	return evicted
}

// pushFront returns snap to the head of the queue. It reports false, and
// drops snap, when the queue filled up in the meantime.
func (q *queue) pushFront(snap *rpc.SessionSnapshot) bool {
	q.mu.Lock()
	if len(q.items) == q.limit {
		q.mu.Unlock()
		return false
	}
	q.items = append([]*rpc.SessionSnapshot{snap}, q.items...)
	q.mu.Unlock()

	q.signal()
	return true
}

// pop removes and returns the oldest snapshot, waiting for one if the queue
// is empty. It returns false once ctx is done.
func (q *queue) pop(ctx context.Context) (*rpc.SessionSnapshot, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			snap := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			return snap, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, false
		case <-q.ready:
		}
	}
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
