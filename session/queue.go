package session

import (
	"context"
	"sync"
)

type msgKind int

const (
	msgConfig msgKind = iota
	msgAudio
	msgFinalize
)

type inboundMsg struct {
	kind    msgKind
	cfg     Config
	samples []float32
}

// inboundQueue is the bounded per-session FIFO between the connection
// handler and the session goroutine. Control messages are never displaced;
// audio pushed against a full queue displaces the oldest queued audio
// message instead, so already-framed audio inside the pipeline is preferred
// over raw samples that have not been classified yet.
type inboundQueue struct {
	mu     sync.Mutex
	items  []inboundMsg
	limit  int
	signal chan struct{}
}

func newInboundQueue(limit int) *inboundQueue {
	return &inboundQueue{
		limit:  limit,
		signal: make(chan struct{}, 1),
	}
}

// push appends a message, failing when the queue is full.
func (q *inboundQueue) push(msg inboundMsg) bool {
	q.mu.Lock()
	if len(q.items) >= q.limit {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, msg)
	q.mu.Unlock()
	q.notify()
	return true
}

// pushAudio appends an audio message. When the queue is full the oldest
// queued audio message is removed to make room. Returns (dropped, accepted):
// dropped reports whether an older message was displaced; accepted is false
// only when the queue is full of control messages and the new audio itself
// is discarded.
func (q *inboundQueue) pushAudio(msg inboundMsg) (dropped, accepted bool) {
	q.mu.Lock()
	if len(q.items) >= q.limit {
		idx := -1
		for i, it := range q.items {
			if it.kind == msgAudio {
				idx = i
				break
			}
		}
		if idx < 0 {
			q.mu.Unlock()
			return false, false
		}
		q.items = append(q.items[:idx], q.items[idx+1:]...)
		dropped = true
	}
	q.items = append(q.items, msg)
	q.mu.Unlock()
	q.notify()
	return dropped, true
}

// pop returns the next message, blocking until one is available or the
// context is cancelled.
func (q *inboundQueue) pop(ctx context.Context) (inboundMsg, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			msg := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return msg, nil
		}
		q.mu.Unlock()

		select {
		case <-q.signal:
		case <-ctx.Done():
			return inboundMsg{}, ctx.Err()
		}
	}
}

// len returns the queued message count.
func (q *inboundQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *inboundQueue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
