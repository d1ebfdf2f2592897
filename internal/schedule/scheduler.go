package schedule

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gogpu/tileview/internal/decoder"
	"github.com/gogpu/tileview/internal/pixbuf"
	"github.com/gogpu/tileview/internal/tiles"
)

// ErrQueueFull is reported when the worker queue cannot take a job.
var ErrQueueFull = errors.New("schedule: worker queue full")

// Sink receives job results on the owner goroutine.
type Sink interface {
	InitCompleted(h *decoder.Handle)
	InitFailed(uri string, err error)

	// DecodeCompleted hands buf to the sink, which owns it from then on.
	DecodeCompleted(t *tiles.Tile, buf *image.RGBA, elapsed time.Duration)
	DecodeFailed(t *tiles.Tile, err *DecodeError)
}

// Config configures a Scheduler.
type Config struct {
	// Looper delivers results to the owner. Required.
	Looper *Looper

	// Sink resolves the result receiver at delivery time. Returning nil
	// drops the result. Required.
	Sink func() Sink

	// Pool provides tile buffers. Required.
	Pool pixbuf.Recycler

	QueueSize   int
	IdleTimeout time.Duration

	// Tracer traces jobs. Defaults to the global otel tracer provider.
	Tracer trace.Tracer
}

// Scheduler runs init and decode jobs on one Worker and posts their
// results to a Looper.
type Scheduler struct {
	cfg    Config
	keys   KeyCounter
	worker *Worker

	// initSeq identifies the newest init job; older ones are superseded.
	initSeq atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Scheduler. The worker starts with the first job.
func New(cfg Config) *Scheduler {
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("github.com/gogpu/tileview/internal/schedule")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:    cfg,
		worker: NewWorker(cfg.QueueSize, cfg.IdleTimeout),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Keys returns the generation counter.
func (s *Scheduler) Keys() *KeyCounter { return &s.keys }

// Worker returns the underlying worker.
func (s *Scheduler) Worker() *Worker { return s.worker }

// Close cancels running I/O and stops the worker. Results still in flight
// are dropped.
func (s *Scheduler) Close() {
	s.cancel()
	s.worker.Close()
}

// Release recycles h on the worker, after any decode already queued for
// it. If the worker cannot take the job, h is recycled on a new goroutine.
func (s *Scheduler) Release(h *decoder.Handle) {
	if h == nil {
		return
	}
	if !s.worker.Submit(h.Recycle) {
		go h.Recycle()
	}
}

// CancelInit supersedes any pending SubmitInit: its handle is recycled and
// nothing is reported.
func (s *Scheduler) CancelInit() { s.initSeq.Add(1) }

// SubmitInit builds a handle for uri on the worker. A later SubmitInit or
// CancelInit makes this one stale: its handle is recycled and nothing is
// reported. Generation changes do not affect init jobs.
func (s *Scheduler) SubmitInit(uri string, opts decoder.BuildOptions) {
	seq := s.initSeq.Add(1)
	stale := func() bool { return s.initSeq.Load() != seq }

	ok := s.worker.Submit(func() {
		if stale() {
			slogger().Debug("init superseded before start", "uri", uri)
			return
		}
		ctx, span := s.cfg.Tracer.Start(s.ctx, "tileview.init",
			trace.WithAttributes(attribute.String("tileview.uri", uri)))
		h, err := decoder.Build(ctx, uri, opts)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "build failed")
		}
		span.End()

		if !s.cfg.Looper.Post(func() { s.deliverInit(uri, h, err, stale) }) {
			h.Recycle()
		}
	})
	if !ok {
		s.cfg.Looper.Post(func() { s.deliverInit(uri, nil, ErrQueueFull, stale) })
	}
}

func (s *Scheduler) deliverInit(uri string, h *decoder.Handle, err error, stale func() bool) {
	if stale() {
		h.Recycle()
		slogger().Debug("init result stale, dropped", "uri", uri)
		return
	}
	sink := s.cfg.Sink()
	if sink == nil {
		h.Recycle()
		return
	}
	if err != nil {
		sink.InitFailed(uri, err)
		return
	}
	sink.InitCompleted(h)
}

// decodeJob is the part of a tile captured at submission. The worker reads
// only the job and the tile's atomic token.
type decodeJob struct {
	tile   *tiles.Tile
	handle *decoder.Handle
	src    image.Rectangle
	sample int
	key    int64
	token  int64
}

func (j *decodeJob) stale(keys *KeyCounter) bool {
	return keys.Expired(j.key) || j.tile.Token() != j.token
}

// SubmitDecode schedules t for decoding. Must be called on the owner.
func (s *Scheduler) SubmitDecode(t *tiles.Tile) {
	job := &decodeJob{
		tile:   t,
		handle: t.Handle,
		src:    t.Src,
		sample: t.Sample,
		key:    t.Key,
		token:  t.Token(),
	}
	ok := s.worker.Submit(func() {
		start := time.Now()
		buf, err := s.runDecode(job)
		elapsed := time.Since(start)
		if !s.cfg.Looper.Post(func() { s.deliverDecode(job, buf, err, elapsed) }) {
			s.cfg.Pool.Return(buf)
		}
	})
	if !ok {
		err := decodeErr(CauseQueueFull, "%d jobs pending", s.worker.Pending())
		s.cfg.Looper.Post(func() { s.deliverDecode(job, nil, err, 0) })
	}
}

func (s *Scheduler) runDecode(job *decodeJob) (*image.RGBA, *DecodeError) {
	_, span := s.cfg.Tracer.Start(s.ctx, "tileview.decode", trace.WithAttributes(
		attribute.Int64("tileview.key", job.key),
		attribute.String("tileview.src", job.src.String()),
		attribute.Int("tileview.sample", job.sample),
	))
	defer span.End()

	buf, derr := s.decode(job)
	if derr != nil {
		span.SetStatus(codes.Error, derr.Cause.String())
	}
	return buf, derr
}

func (s *Scheduler) decode(job *decodeJob) (*image.RGBA, *DecodeError) {
	h := job.handle
	if !h.Ready() {
		return nil, decodeErr(CauseDecoderNotReady, "no ready handle")
	}
	if job.src.Empty() || job.sample < 1 {
		return nil, decodeErr(CauseEmptyGeometry, "src %v sample %d", job.src, job.sample)
	}
	if job.stale(&s.keys) {
		return nil, decodeErr(CauseStaleBeforeDecode, "key %d", job.key)
	}

	buf := h.DecodeRegion(job.src, job.sample, s.cfg.Pool)
	if buf == nil {
		return nil, decodeErr(CauseNilBuffer, "src %v", job.src)
	}

	if o := h.Orientation(); !o.IsIdentity() {
		rotated := o.Correct(buf, s.cfg.Pool)
		s.cfg.Pool.Return(buf)
		if rotated == nil {
			return nil, decodeErr(CauseRotationResultRecycled, "%v", o)
		}
		if !h.Ready() {
			s.cfg.Pool.Return(rotated)
			return nil, decodeErr(CauseRecycledAfterRotation, "%v", o)
		}
		buf = rotated
	}

	if job.stale(&s.keys) {
		s.cfg.Pool.Return(buf)
		return nil, decodeErr(CauseStaleAfterDecode, "key %d", job.key)
	}
	return buf, nil
}

func (s *Scheduler) deliverDecode(job *decodeJob, buf *image.RGBA, err *DecodeError, elapsed time.Duration) {
	sink := s.cfg.Sink()
	if sink == nil {
		s.cfg.Pool.Return(buf)
		return
	}
	if err == nil && job.stale(&s.keys) {
		s.cfg.Pool.Return(buf)
		buf = nil
		err = decodeErr(CauseStaleAtCallback, "key %d, live %d", job.key, s.keys.Current())
	}
	if err != nil {
		sink.DecodeFailed(job.tile, err)
		return
	}
	sink.DecodeCompleted(job.tile, buf, elapsed)
}
