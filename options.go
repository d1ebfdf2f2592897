package tileview

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/gogpu/tileview/internal/pixbuf"
	"github.com/gogpu/tileview/internal/region"
	"github.com/gogpu/tileview/internal/schedule"
)

// Option configures a Viewer during creation.
//
// Example:
//
//	v := tileview.New(
//	    tileview.WithGridDivisions(4),
//	    tileview.WithIdleTimeout(10*time.Second),
//	)
type Option func(*options)

type options struct {
	gridDivisions       int
	idleTimeout         time.Duration
	queueSize           int
	pool                BufferPool
	listener            Listener
	suppressOrientation bool
	registerer          prometheus.Registerer
	looper              *Looper
	tracer              trace.Tracer
}

func defaultOptions() options {
	return options{
		gridDivisions: region.DefaultGridDivisions,
		idleTimeout:   schedule.DefaultIdleTimeout,
		queueSize:     schedule.DefaultQueueSize,
		listener:      NopListener{},
	}
}

// BufferPool supplies tile pixel buffers. It is used from the worker and
// the owner goroutine at the same time, so it must be safe for concurrent
// use. Borrow returns a cleared w×h buffer with its origin at (0, 0);
// Return must accept nil.
type BufferPool = pixbuf.Recycler

// NewBufferPool returns the default pool, keeping at most maxPerSize idle
// buffers of each size (0 means unlimited).
func NewBufferPool(maxPerSize int) BufferPool {
	return pixbuf.NewPool(maxPerSize)
}

// WithGridDivisions sets how many tile cells span the preload margin. The
// draw rectangle is cut into n+1 cells per axis. Values below 1 are ignored.
func WithGridDivisions(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.gridDivisions = n
		}
	}
}

// WithIdleTimeout sets how long the decode worker waits for work before
// it exits.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.idleTimeout = d
		}
	}
}

// WithQueueSize sets the decode queue capacity. Jobs that do not fit fail
// with CauseQueueFull.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithBufferPool shares a buffer pool between viewers or plugs in a
// host-managed one.
func WithBufferPool(p BufferPool) Option {
	return func(o *options) {
		o.pool = p
	}
}

// WithListener sets the receiver of viewer events.
func WithListener(l Listener) Option {
	return func(o *options) {
		if l != nil {
			o.listener = l
		}
	}
}

// WithSuppressOrientation ignores orientation metadata embedded in images.
func WithSuppressOrientation(suppress bool) Option {
	return func(o *options) {
		o.suppressOrientation = suppress
	}
}

// WithRegisterer exports viewer metrics to reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithLooper delivers results through l instead of a private looper. Several
// viewers owned by one goroutine can share a looper and drain it once.
func WithLooper(l *Looper) Option {
	return func(o *options) {
		o.looper = l
	}
}

// WithTracer records init and decode jobs as spans on t. The default is the
// tracer of the global otel provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}
