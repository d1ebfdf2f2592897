package decoder

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/gogpu/tileview/internal/pixbuf"
)

// Build errors.
var (
	// ErrUnreadable is returned when the source cannot be read or probed.
	ErrUnreadable = errors.New("decoder: source unreadable")

	// ErrUnsupportedFormat is returned for formats without region decode.
	ErrUnsupportedFormat = errors.New("decoder: format does not support region decode")

	// ErrOpenFailed is returned when the region decoder fails to open.
	ErrOpenFailed = errors.New("decoder: open failed")

	// ErrRecycled is returned by region decoders used after Close.
	ErrRecycled = errors.New("decoder: recycled")

	// ErrEmptyRegion is returned for regions outside the image.
	ErrEmptyRegion = errors.New("decoder: empty region")
)

// BuildOptions configure Build.
type BuildOptions struct {
	// SuppressOrientation ignores embedded orientation metadata.
	SuppressOrientation bool
}

// Handle is an opened, region-capable decoder for one image.
//
// A Handle is ready after Build succeeds and until Recycle is called.
// DecodeRegion may be called from any goroutine; calls are serialized.
type Handle struct {
	id          uuid.UUID
	uri         string
	format      string
	raw         image.Point
	orientation Orientation

	mu       sync.Mutex
	dec      RegionDecoder
	recycled atomic.Bool
}

// Build resolves uri, probes its size and format, reads its orientation
// and opens a region decoder for it.
func Build(ctx context.Context, uri string, opts BuildOptions) (*Handle, error) {
	src, err := Resolve(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	cfg, format, err := probe(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: %s has no pixels", ErrUnreadable, src)
	}

	open, ok := lookupFormat(format)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	orientation := OrientNormal
	if !opts.SuppressOrientation {
		orientation = sourceOrientation(ctx, src)
	}

	dec, err := openDecoder(ctx, src, open)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenFailed, err)
	}

	h := &Handle{
		id:          uuid.New(),
		uri:         uri,
		format:      format,
		raw:         dec.Bounds().Size(),
		orientation: orientation,
		dec:         dec,
	}
	slogger().Debug("handle built",
		"id", h.id, "source", src.String(), "format", format,
		"size", h.raw, "orientation", orientation)
	return h, nil
}

func probe(ctx context.Context, src Source) (image.Config, string, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return image.Config{}, "", err
	}
	defer func() { _ = rc.Close() }()

	cfg, format, err := image.DecodeConfig(rc)
	if err != nil {
		return image.Config{}, "", fmt.Errorf("decoder: probe: %w", err)
	}
	return cfg, format, nil
}

func sourceOrientation(ctx context.Context, src Source) Orientation {
	rc, err := src.Open(ctx)
	if err != nil {
		return OrientNormal
	}
	defer func() { _ = rc.Close() }()
	return readOrientation(rc)
}

func openDecoder(ctx context.Context, src Source, open OpenFunc) (dec RegionDecoder, err error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	defer func() {
		if r := recover(); r != nil {
			dec, err = nil, fmt.Errorf("decoder: codec panic: %v", r)
		}
	}()
	dec, err = open(rc)
	if err != nil {
		return nil, err
	}
	if dec.Bounds().Empty() {
		_ = dec.Close()
		return nil, errors.New("decoder: empty bounds")
	}
	return dec, nil
}

// ID returns the unique handle identifier.
func (h *Handle) ID() uuid.UUID { return h.id }

// URI returns the source URI.
func (h *Handle) URI() string { return h.uri }

// Format returns the format name, e.g. "jpeg".
func (h *Handle) Format() string { return h.format }

// Orientation returns the orientation applied to decoded regions.
func (h *Handle) Orientation() Orientation { return h.orientation }

// RawSize returns the stored pixel size.
func (h *Handle) RawSize() image.Point { return h.raw }

// Size returns the displayed (oriented) pixel size.
func (h *Handle) Size() image.Point { return h.orientation.OrientedSize(h.raw) }

// Ready reports whether the handle is open and not recycled.
func (h *Handle) Ready() bool {
	return h != nil && !h.recycled.Load()
}

// DecodeRegion decodes src, given in displayed coordinates, downsampled by
// sample. The buffer is in stored orientation; apply Orientation().Correct
// to display it. It returns nil when the handle is recycled or the decode
// fails.
func (h *Handle) DecodeRegion(src image.Rectangle, sample int, pool pixbuf.Recycler) (buf *image.RGBA) {
	if !h.Ready() {
		return nil
	}
	raw := h.orientation.ToRaw(src, h.raw)
	if raw.Empty() {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dec == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			slogger().Warn("region decode panicked", "id", h.id, "src", src, "panic", r)
			buf = nil
		}
	}()
	buf, err := h.dec.DecodeRegion(raw, sample, pool)
	if err != nil {
		slogger().Debug("region decode failed", "id", h.id, "src", src, "sample", sample, "err", err)
		pool.Return(buf)
		return nil
	}
	return buf
}

// Recycle closes the region decoder. Subsequent calls are no-ops.
func (h *Handle) Recycle() {
	if h == nil || !h.recycled.CompareAndSwap(false, true) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dec != nil {
		if err := h.dec.Close(); err != nil {
			slogger().Warn("closing region decoder", "id", h.id, "err", err)
		}
		h.dec = nil
	}
	slogger().Debug("handle recycled", "id", h.id)
}
