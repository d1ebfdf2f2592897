package schedule

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/tileview/internal/decoder"
	"github.com/gogpu/tileview/internal/pixbuf"
	"github.com/gogpu/tileview/internal/tiles"
)

type recordingSink struct {
	inits     []*decoder.Handle
	initErrs  []error
	completed []*tiles.Tile
	failed    []*DecodeError
	pool      pixbuf.Recycler
}

func (s *recordingSink) InitCompleted(h *decoder.Handle) { s.inits = append(s.inits, h) }
func (s *recordingSink) InitFailed(_ string, err error)  { s.initErrs = append(s.initErrs, err) }

func (s *recordingSink) DecodeFailed(_ *tiles.Tile, err *DecodeError) {
	s.failed = append(s.failed, err)
}

func (s *recordingSink) DecodeCompleted(t *tiles.Tile, buf *image.RGBA, _ time.Duration) {
	s.completed = append(s.completed, t)
	s.pool.Return(buf)
}

type harness struct {
	s      *Scheduler
	looper *Looper
	sink   *recordingSink
	pool   *pixbuf.Pool
}

func newHarness(t *testing.T, queueSize int) *harness {
	t.Helper()
	h := &harness{looper: NewLooper(), pool: pixbuf.NewPool(0)}
	h.sink = &recordingSink{pool: h.pool}
	h.s = New(Config{
		Looper:    h.looper,
		Sink:      func() Sink { return h.sink },
		Pool:      h.pool,
		QueueSize: queueSize,
	})
	t.Cleanup(h.s.Close)
	return h
}

// waitPosted waits until n results are queued on the looper.
func (h *harness) waitPosted(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.looper.Len() >= n }, 5*time.Second, 2*time.Millisecond)
}

// block occupies the worker until the returned func is called.
func (h *harness) block(t *testing.T) func() {
	t.Helper()
	started, release := make(chan struct{}), make(chan struct{})
	require.True(t, h.s.Worker().Submit(func() {
		close(started)
		<-release
	}))
	<-started
	return func() { close(release) }
}

func pngURI(t *testing.T, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func buildHandle(t *testing.T) *decoder.Handle {
	t.Helper()
	h, err := decoder.Build(context.Background(), pngURI(t, 200, 100), decoder.BuildOptions{})
	require.NoError(t, err)
	t.Cleanup(h.Recycle)
	return h
}

func (h *harness) tile(handle *decoder.Handle, src image.Rectangle) *tiles.Tile {
	return &tiles.Tile{
		Draw:   src,
		Src:    src,
		Sample: 1,
		Scale:  1,
		Key:    h.s.Keys().Current(),
		Handle: handle,
	}
}

func TestScheduler_Init(t *testing.T) {
	h := newHarness(t, 0)

	h.s.SubmitInit(pngURI(t, 40, 30), decoder.BuildOptions{})
	h.waitPosted(t, 1)
	h.looper.Drain()

	require.Len(t, h.sink.inits, 1)
	assert.Equal(t, image.Pt(40, 30), h.sink.inits[0].Size())
	h.sink.inits[0].Recycle()
}

func TestScheduler_InitError(t *testing.T) {
	h := newHarness(t, 0)

	h.s.SubmitInit("data:,garbage", decoder.BuildOptions{})
	h.waitPosted(t, 1)
	h.looper.Drain()

	require.Len(t, h.sink.initErrs, 1)
	assert.ErrorIs(t, h.sink.initErrs[0], decoder.ErrUnreadable)
	assert.Empty(t, h.sink.inits)
}

func TestScheduler_InitSuperseded(t *testing.T) {
	h := newHarness(t, 0)
	release := h.block(t)

	h.s.SubmitInit(pngURI(t, 10, 10), decoder.BuildOptions{})
	h.s.SubmitInit(pngURI(t, 20, 20), decoder.BuildOptions{})
	release()

	h.waitPosted(t, 1)
	require.Eventually(t, func() bool { return h.s.Worker().Pending() == 0 }, time.Second, 2*time.Millisecond)
	h.looper.Drain()

	require.Len(t, h.sink.inits, 1)
	assert.Equal(t, image.Pt(20, 20), h.sink.inits[0].Size())
	h.sink.inits[0].Recycle()
}

func TestScheduler_InitSurvivesKeyRefresh(t *testing.T) {
	h := newHarness(t, 0)

	h.s.SubmitInit(pngURI(t, 10, 10), decoder.BuildOptions{})
	h.s.Keys().Refresh()
	h.waitPosted(t, 1)
	h.s.Keys().Refresh()
	h.looper.Drain()

	require.Len(t, h.sink.inits, 1)
	h.sink.inits[0].Recycle()
}

func TestScheduler_CancelInit(t *testing.T) {
	h := newHarness(t, 0)

	h.s.SubmitInit(pngURI(t, 10, 10), decoder.BuildOptions{})
	h.waitPosted(t, 1)
	h.s.CancelInit()
	h.looper.Drain()
	assert.Empty(t, h.sink.inits)
	assert.Empty(t, h.sink.initErrs)

	release := h.block(t)
	h.s.SubmitInit(pngURI(t, 10, 10), decoder.BuildOptions{})
	h.s.CancelInit()
	release()
	require.Eventually(t, func() bool { return h.s.Worker().Pending() == 0 }, time.Second, 2*time.Millisecond)
	h.looper.Drain()
	assert.Empty(t, h.sink.inits)
	assert.Empty(t, h.sink.initErrs)
}

func TestScheduler_Decode(t *testing.T) {
	h := newHarness(t, 0)
	tile := h.tile(buildHandle(t), image.Rect(10, 10, 60, 40))

	h.s.SubmitDecode(tile)
	h.waitPosted(t, 1)
	h.looper.Drain()

	require.Len(t, h.sink.completed, 1)
	assert.Same(t, tile, h.sink.completed[0])
	assert.Empty(t, h.sink.failed)
}

func TestScheduler_DecodeFailures(t *testing.T) {
	recycled := buildHandle(t)
	recycled.Recycle()

	tests := []struct {
		name   string
		handle func(t *testing.T) *decoder.Handle
		src    image.Rectangle
		sample int
		want   Cause
	}{
		{"no handle", func(*testing.T) *decoder.Handle { return nil }, image.Rect(0, 0, 10, 10), 1, CauseDecoderNotReady},
		{"recycled handle", func(*testing.T) *decoder.Handle { return recycled }, image.Rect(0, 0, 10, 10), 1, CauseDecoderNotReady},
		{"empty src", buildHandle, image.Rectangle{}, 1, CauseEmptyGeometry},
		{"zero sample", buildHandle, image.Rect(0, 0, 10, 10), 0, CauseEmptyGeometry},
		{"outside image", buildHandle, image.Rect(500, 500, 510, 510), 1, CauseNilBuffer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 0)
			tile := h.tile(tt.handle(t), tt.src)
			tile.Sample = tt.sample

			h.s.SubmitDecode(tile)
			h.waitPosted(t, 1)
			h.looper.Drain()

			require.Len(t, h.sink.failed, 1)
			assert.Equal(t, tt.want, h.sink.failed[0].Cause)
			assert.Empty(t, h.sink.completed)
		})
	}
}

func TestScheduler_StaleBeforeDecode(t *testing.T) {
	h := newHarness(t, 0)
	release := h.block(t)

	h.s.SubmitDecode(h.tile(buildHandle(t), image.Rect(0, 0, 50, 50)))
	h.s.Keys().Refresh()
	release()

	h.waitPosted(t, 1)
	h.looper.Drain()
	require.Len(t, h.sink.failed, 1)
	assert.Equal(t, CauseStaleBeforeDecode, h.sink.failed[0].Cause)
	assert.ErrorIs(t, h.sink.failed[0], ErrStale)
}

// A result computed under an old key and delivered after the key changed is
// reported stale and its buffer goes back to the pool.
func TestScheduler_StaleAtCallback(t *testing.T) {
	h := newHarness(t, 0)
	h.s.Keys().Refresh()

	h.s.SubmitDecode(h.tile(buildHandle(t), image.Rect(0, 0, 50, 50)))
	h.waitPosted(t, 1)
	h.s.Keys().Refresh()
	h.looper.Drain()

	require.Len(t, h.sink.failed, 1)
	assert.Equal(t, CauseStaleAtCallback, h.sink.failed[0].Cause)
	assert.Empty(t, h.sink.completed)
	assert.Equal(t, 1, h.pool.Idle(), "stale buffer should be returned to the pool")
}

func TestScheduler_EvictedTileIsStale(t *testing.T) {
	h := newHarness(t, 0)
	release := h.block(t)

	// Evicting a tile through a Manager bumps its token.
	pool := pixbuf.NewPool(0)
	var submitted []*tiles.Tile
	m := tiles.NewManager(tiles.Config{
		Submitter:  submitterFunc(func(tl *tiles.Tile) { submitted = append(submitted, tl); h.s.SubmitDecode(tl) }),
		Pool:       pool,
		Generation: h.s.Keys().Current,
	})
	m.SetHandle(buildHandle(t))
	require.True(t, m.Update(regionInput(image.Rect(0, 0, 50, 50))))
	require.NotEmpty(t, submitted)
	m.Clean("test")
	release()

	h.waitPosted(t, len(submitted))
	h.looper.Drain()

	require.Len(t, h.sink.failed, len(submitted))
	for _, err := range h.sink.failed {
		assert.Equal(t, CauseStaleBeforeDecode, err.Cause)
	}
}

func TestScheduler_QueueFull(t *testing.T) {
	h := newHarness(t, 1)
	release := h.block(t)
	defer release()

	handle := buildHandle(t)
	h.s.SubmitDecode(h.tile(handle, image.Rect(0, 0, 10, 10)))
	h.s.SubmitDecode(h.tile(handle, image.Rect(10, 0, 20, 10)))

	require.Equal(t, 1, h.looper.Len(), "rejected job should be reported right away")
	h.looper.Drain()
	require.Len(t, h.sink.failed, 1)
	assert.Equal(t, CauseQueueFull, h.sink.failed[0].Cause)
}

func TestScheduler_SinkGone(t *testing.T) {
	looper, pool := NewLooper(), pixbuf.NewPool(0)
	s := New(Config{Looper: looper, Sink: func() Sink { return nil }, Pool: pool})
	defer s.Close()

	s.SubmitDecode(&tiles.Tile{
		Src: image.Rect(0, 0, 20, 20), Sample: 1, Key: s.Keys().Current(), Handle: buildHandle(t),
	})
	require.Eventually(t, func() bool { return looper.Len() == 1 }, 5*time.Second, 2*time.Millisecond)
	looper.Drain()
	assert.Equal(t, 1, pool.Idle(), "dropped result should return its buffer")
}

func TestDecodeError(t *testing.T) {
	err := error(decodeErr(CauseStaleAfterDecode, "key %d", 3))
	assert.EqualError(t, err, "decode: stale-after-decode: key 3")
	assert.ErrorIs(t, err, ErrStale)
	assert.ErrorIs(t, err, &DecodeError{Cause: CauseStaleAfterDecode})
	assert.False(t, errors.Is(err, &DecodeError{Cause: CauseNilBuffer}))
	assert.False(t, errors.Is(decodeErr(CauseNilBuffer, ""), ErrStale))
	assert.Equal(t, "decode: nil-buffer", decodeErr(CauseNilBuffer, "").Error())
	assert.Equal(t, "Cause(99)", Cause(99).String())
}

func TestScheduler_Release(t *testing.T) {
	h := newHarness(t, 0)
	handle := buildHandle(t)

	h.s.Release(handle)
	require.Eventually(t, func() bool { return !handle.Ready() }, time.Second, 2*time.Millisecond)

	h.s.Close()
	other := buildHandle(t)
	h.s.Release(other)
	require.Eventually(t, func() bool { return !other.Ready() }, time.Second, 2*time.Millisecond)
}
