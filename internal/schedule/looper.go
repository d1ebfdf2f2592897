package schedule

import (
	"context"
	"sync"
)

// Looper is an unbounded FIFO of callbacks consumed by a single goroutine,
// the owner of the tile state. Post may be called from any goroutine;
// Drain and Run must only be called by the owner.
type Looper struct {
	mu     sync.Mutex
	queue  []func()
	ready  chan struct{}
	closed bool
}

// NewLooper creates an empty looper.
func NewLooper() *Looper {
	return &Looper{ready: make(chan struct{}, 1)}
}

// Post enqueues fn. It reports false once the looper is closed.
func (l *Looper) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.ready <- struct{}{}:
	default:
	}
	return true
}

// Ready returns a channel that receives a value when callbacks are pending.
// Hosts with their own event loop select on it and call Drain.
func (l *Looper) Ready() <-chan struct{} { return l.ready }

// Drain runs every pending callback in post order, including callbacks
// posted while draining, and returns how many ran.
func (l *Looper) Drain() int {
	n := 0
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		if len(batch) == 0 {
			return n
		}
		for _, fn := range batch {
			fn()
		}
		n += len(batch)
	}
}

// Run drains callbacks as they arrive until ctx is done.
func (l *Looper) Run(ctx context.Context) error {
	for {
		l.Drain()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.ready:
		}
	}
}

// Len returns the number of pending callbacks.
func (l *Looper) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Close rejects further posts and runs the callbacks still pending. Like
// Drain it must only be called by the owner.
func (l *Looper) Close() {
	l.mu.Lock()
	l.closed = true
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, fn := range batch {
		fn()
	}
}
