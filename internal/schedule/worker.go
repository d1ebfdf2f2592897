package schedule

import (
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultQueueSize is the capacity of the worker job queue.
	DefaultQueueSize = 256

	// DefaultIdleTimeout is how long the worker goroutine waits for work
	// before it exits.
	DefaultIdleTimeout = 30 * time.Second
)

// Worker runs jobs one at a time on a single goroutine.
//
// The goroutine is started by the first Submit and exits after the idle
// timeout passes without a job; the next Submit starts a fresh one.
//
// Thread safety: Worker is safe for concurrent use.
type Worker struct {
	queueSize int
	idle      time.Duration

	mu     sync.Mutex
	jobs   chan func() // nil while no goroutine is running
	closed bool
	wg     sync.WaitGroup

	starts    atomic.Uint64
	submitted atomic.Uint64
	rejected  atomic.Uint64
}

// NewWorker creates a stopped worker. Non-positive arguments select the
// defaults.
func NewWorker(queueSize int, idle time.Duration) *Worker {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Worker{queueSize: queueSize, idle: idle}
}

// Submit enqueues job without blocking. It reports false if the queue is
// full or the worker is closed.
func (w *Worker) Submit(job func()) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		w.rejected.Add(1)
		return false
	}
	if w.jobs == nil {
		w.jobs = make(chan func(), w.queueSize)
		w.starts.Add(1)
		w.wg.Add(1)
		go w.run(w.jobs)
	}
	select {
	case w.jobs <- job:
		w.submitted.Add(1)
		return true
	default:
		w.rejected.Add(1)
		return false
	}
}

func (w *Worker) run(jobs chan func()) {
	defer w.wg.Done()

	timer := time.NewTimer(w.idle)
	defer timer.Stop()

	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.execute(job)
			timer.Reset(w.idle)

		case <-timer.C:
			if w.retire(jobs) {
				slogger().Debug("worker idle, exiting", "idle", w.idle)
				return
			}
			timer.Reset(w.idle)
		}
	}
}

// retire detaches jobs from the worker unless work arrived meanwhile.
func (w *Worker) retire(jobs chan func()) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(jobs) > 0 {
		return false
	}
	if w.jobs == jobs {
		w.jobs = nil
	}
	return true
}

func (w *Worker) execute(job func()) {
	defer func() {
		if r := recover(); r != nil {
			slogger().Error("worker job panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	job()
}

// Running reports whether the worker goroutine is alive.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.jobs != nil
}

// Pending returns the number of queued jobs.
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.jobs == nil {
		return 0
	}
	return len(w.jobs)
}

// WorkerStats holds worker counters.
type WorkerStats struct {
	Starts    uint64
	Submitted uint64
	Rejected  uint64
}

// Stats returns a snapshot of the worker counters.
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		Starts:    w.starts.Load(),
		Submitted: w.submitted.Load(),
		Rejected:  w.rejected.Load(),
	}
}

// Close stops accepting jobs. Queued jobs still run; Close does not wait
// for them.
func (w *Worker) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	if w.jobs != nil {
		close(w.jobs)
		w.jobs = nil
	}
}

// Wait blocks until the worker goroutine has exited.
func (w *Worker) Wait() {
	w.wg.Wait()
}
