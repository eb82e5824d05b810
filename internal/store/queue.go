package store

import (
	"context"
	"sync"
)

// envelope is one dispatch waiting for the loop.
type envelope[S any] struct {
	ctx    context.Context
	action Action
	guard  func(S) bool
	reply  chan error // buffered, size 1
}

// commitQueue is a thread-safe FIFO queue of envelopes.
//
// The queue is unbounded: listener effects and thunk resolutions enqueue from
// arbitrary goroutines and must never block on a full buffer.
//
// A buffered signal channel of size 1 lets the loop wait with select so it
// stays responsive to context cancellation.
type commitQueue[S any] struct {
	mu      sync.Mutex
	pending []envelope[S]
	closed  bool
	signal  chan struct{}
}

func newCommitQueue[S any]() *commitQueue[S] {
	return &commitQueue[S]{
		pending: make([]envelope[S], 0, 64),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds an envelope to the back of the queue.
// Returns false if the queue is closed.
func (q *commitQueue[S]) Enqueue(e envelope[S]) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.pending = append(q.pending, e)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front envelope without blocking.
func (q *commitQueue[S]) TryDequeue() (envelope[S], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return envelope[S]{}, false
	}

	e := q.pending[0]

	// Clear the slot so the backing array does not pin contexts and actions.
	q.pending[0] = envelope[S]{}
	if len(q.pending) == 1 {
		q.pending = q.pending[:0]
	} else {
		q.pending = q.pending[1:]
	}

	return e, true
}

// Wait returns a channel that signals when envelopes may be available.
// The channel is closed once the queue is closed.
func (q *commitQueue[S]) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *commitQueue[S]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Closed reports whether Close has been called.
func (q *commitQueue[S]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops accepting envelopes and wakes the waiter.
func (q *commitQueue[S]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
