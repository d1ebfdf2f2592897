package tileview

import (
	"context"
	"image"
	"runtime"
	"time"
	"weak"

	"github.com/gogpu/tileview/internal/decoder"
	"github.com/gogpu/tileview/internal/pixbuf"
	"github.com/gogpu/tileview/internal/region"
	"github.com/gogpu/tileview/internal/schedule"
	"github.com/gogpu/tileview/internal/tiles"
)

// Viewer shows one image at a time through a tile set that follows the
// viewport.
//
// All methods must be called from the goroutine that owns the Viewer, the
// same goroutine that drains its results. Decoding runs on a background
// worker that never touches viewer state directly.
type Viewer struct {
	opts     options
	pool     BufferPool
	looper   *Looper
	sched    *schedule.Scheduler
	manager  *tiles.Manager
	metrics  *Metrics
	listener Listener

	uri     string
	handle  *decoder.Handle
	last    Viewport
	hasLast bool
	closed  bool
}

// New creates a Viewer with no image.
func New(opts ...Option) *Viewer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	v := &Viewer{
		opts:     o,
		pool:     o.pool,
		looper:   o.looper,
		metrics:  NewMetrics(o.registerer),
		listener: o.listener,
	}
	if v.pool == nil {
		v.pool = pixbuf.NewPool(pixbuf.DefaultMaxPerBucket)
	}
	if v.looper == nil {
		v.looper = schedule.NewLooper()
	}

	// Worker results reach the viewer through a weak reference so that an
	// abandoned viewer can be collected while jobs are still queued.
	wp := weak.Make(v)
	v.sched = schedule.New(schedule.Config{
		Looper: v.looper,
		Sink: func() schedule.Sink {
			if v := wp.Value(); v != nil && !v.closed {
				return (*sink)(v)
			}
			return nil
		},
		Pool:        v.pool,
		QueueSize:   o.queueSize,
		IdleTimeout: o.idleTimeout,
		Tracer:      o.tracer,
	})
	v.manager = tiles.NewManager(tiles.Config{
		Engine:     region.Engine{GridDivisions: o.gridDivisions},
		Submitter:  &submitter{sched: v.sched, metrics: v.metrics},
		Pool:       v.pool,
		Generation: v.sched.Keys().Current,
		OnChange:   v.tileSetChanged,
	})
	runtime.AddCleanup(v, func(s *schedule.Scheduler) { s.Close() }, v.sched)
	return v
}

// SetImage starts showing the image at uri. Tiles of the previous image are
// dropped and all outstanding work is invalidated. An empty uri clears the
// viewer. Initialization runs on the worker; OnInitCompleted or OnInitError
// reports the outcome.
func (v *Viewer) SetImage(uri string) {
	if v.closed {
		return
	}
	v.sched.Keys().Refresh()
	v.sched.CancelInit()
	v.release("set image")
	v.uri = uri
	v.hasLast = false
	if uri == "" {
		Logger().Info("image cleared")
		return
	}
	v.sched.SubmitInit(uri, decoder.BuildOptions{SuppressOrientation: v.opts.suppressOrientation})
	v.metrics.jobSubmitted("init")
	Logger().Debug("image init submitted", "uri", uri)
}

// release drops every tile and recycles the current handle on the worker,
// after any decode it may be running.
func (v *Viewer) release(why string) {
	v.manager.Recycle(why)
	if v.handle != nil {
		v.sched.Release(v.handle)
		v.handle = nil
	}
	v.updateGauges()
}

// Update feeds a viewport change. Before the image is open the viewport is
// remembered and applied once initialization completes. It reports whether
// the tile region changed.
func (v *Viewer) Update(vp Viewport) bool {
	if v.closed {
		return false
	}
	v.last, v.hasLast = vp, true
	if v.handle == nil {
		return false
	}
	content := vp.Content
	if content.X <= 0 || content.Y <= 0 {
		content = v.handle.Size()
	}
	changed := v.manager.Update(region.Input{
		Visible: vp.Visible,
		Preview: vp.DrawSurface,
		Image:   content,
		Surface: vp.ViewportSurface,
		Scale:   vp.Scale,
		Zooming: vp.Zooming,
	})
	if changed {
		v.updateGauges()
	}
	return changed
}

// Cancel invalidates all queued and running decodes and drops the tiles
// still waiting for pixels. Resident tiles stay. A pending image init is
// not affected. Call Refresh to request the missing tiles again.
func (v *Viewer) Cancel(why string) {
	if v.closed {
		return
	}
	key := v.sched.Keys().Refresh()
	dropped := v.manager.CancelInFlight()
	v.updateGauges()
	Logger().Debug("decodes cancelled", "why", why, "key", key, "dropped", dropped)
}

// Refresh requests tiles for every uncovered part of the current region,
// for example after Cancel or after failed decodes. It returns the number
// of tiles requested.
func (v *Viewer) Refresh() int {
	if v.closed {
		return 0
	}
	n := v.manager.Refill()
	if n > 0 {
		v.updateGauges()
	}
	return n
}

// Close releases the image and stops the worker. Results still queued are
// dropped. Close is idempotent.
func (v *Viewer) Close() {
	if v.closed {
		return
	}
	v.sched.Keys().Refresh()
	v.sched.CancelInit()
	v.release("close")
	v.closed = true
	v.sched.Close()
	if v.opts.looper == nil {
		// Pending results see no sink and hand their buffers back.
		v.looper.Close()
	}
}

// Drain applies every pending worker result and returns how many ran.
func (v *Viewer) Drain() int { return v.looper.Drain() }

// Run applies worker results as they arrive until ctx is done. Run makes
// the calling goroutine the owner.
func (v *Viewer) Run(ctx context.Context) error { return v.looper.Run(ctx) }

// Do runs fn on the owner goroutine during the next Drain or Run.
func (v *Viewer) Do(fn func()) bool { return v.looper.Post(fn) }

// Notify returns a channel that receives a value whenever results are
// waiting to be drained.
func (v *Viewer) Notify() <-chan struct{} { return v.looper.Ready() }

// Ready reports whether an image is open.
func (v *Viewer) Ready() bool { return v.handle.Ready() }

// URI returns the last uri passed to SetImage.
func (v *Viewer) URI() string { return v.uri }

// Image describes the open image.
func (v *Viewer) Image() (ImageInfo, bool) {
	if !v.handle.Ready() {
		return ImageInfo{}, false
	}
	return imageInfo(v.handle), true
}

// ImageSize returns the displayed size of the open image, or zero.
func (v *Viewer) ImageSize() image.Point {
	if !v.handle.Ready() {
		return image.Point{}
	}
	return v.handle.Size()
}

// Orientation returns the EXIF orientation applied to tiles, or 0 when no
// image is open.
func (v *Viewer) Orientation() int {
	if !v.handle.Ready() {
		return 0
	}
	return int(v.handle.Orientation())
}

// Tiles returns a snapshot of the tile set in drawing order.
func (v *Viewer) Tiles() []Tile {
	ts := v.manager.Tiles()
	out := make([]Tile, len(ts))
	for i, t := range ts {
		out[i] = snapshot(t)
	}
	return out
}

// Region returns the current region, if one has been computed.
func (v *Viewer) Region() (Region, bool) {
	r, ok := v.manager.Region()
	if !ok {
		return Region{}, false
	}
	return publicRegion(r), true
}

// Stats is a snapshot of viewer counters.
type Stats struct {
	Resident      int
	InFlight      int
	Pending       int // jobs queued on the worker
	Mailbox       int // results waiting to be drained
	WorkerRunning bool
	WorkerStarts  uint64
	Submitted     uint64
	Rejected      uint64
}

// Stats returns current counters.
func (v *Viewer) Stats() Stats {
	c := v.manager.Counts()
	w := v.sched.Worker()
	ws := w.Stats()
	return Stats{
		Resident:      c.Resident,
		InFlight:      c.InFlight,
		Pending:       w.Pending(),
		Mailbox:       v.looper.Len(),
		WorkerRunning: w.Running(),
		WorkerStarts:  ws.Starts,
		Submitted:     ws.Submitted,
		Rejected:      ws.Rejected,
	}
}

func (v *Viewer) tileSetChanged() {
	v.listener.OnTileSetChanged()
}

func (v *Viewer) updateGauges() {
	c := v.manager.Counts()
	v.metrics.setTiles(c.Resident, c.InFlight)
}

// submitter forwards new tiles to the scheduler.
type submitter struct {
	sched   *schedule.Scheduler
	metrics *Metrics
}

func (s *submitter) SubmitDecode(t *tiles.Tile) {
	s.metrics.jobSubmitted("decode")
	s.sched.SubmitDecode(t)
}

// sink applies worker results to the viewer on the owner goroutine.
type sink Viewer

func (s *sink) InitCompleted(h *decoder.Handle) {
	v := (*Viewer)(s)
	v.handle = h
	v.manager.SetHandle(h)
	v.metrics.initDone(nil)
	Logger().Info("image opened", "uri", h.URI(), "format", h.Format(), "size", h.Size(), "orientation", h.Orientation())
	v.listener.OnInitCompleted(imageInfo(h))

	if v.hasLast {
		v.Update(v.last)
	}
}

func (s *sink) InitFailed(uri string, err error) {
	v := (*Viewer)(s)
	v.metrics.initDone(err)
	Logger().Warn("image init failed", "uri", uri, "err", err)
	v.listener.OnInitError(uri, err)
}

func (s *sink) DecodeCompleted(t *tiles.Tile, buf *image.RGBA, elapsed time.Duration) {
	v := (*Viewer)(s)
	if !v.manager.DecodeCompleted(t, buf) {
		v.pool.Return(buf)
		Logger().Debug("decode result for evicted tile dropped", "tile", t)
		return
	}
	v.metrics.decoded(elapsed)
	v.updateGauges()
	v.listener.OnDecodeCompleted(snapshot(t), buf, elapsed)
}

func (s *sink) DecodeFailed(t *tiles.Tile, err *DecodeError) {
	v := (*Viewer)(s)
	v.manager.DecodeError(t)
	v.metrics.decodeFailed(err.Cause)
	v.updateGauges()
	Logger().Debug("tile decode failed", "tile", t, "cause", err.Cause, "err", err)
	v.listener.OnDecodeError(snapshot(t), err)
}
