package decoder

import (
	"fmt"
	"image"
	_ "image/gif" // probed so that gif is reported as unsupported, not unreadable
	_ "image/jpeg"
	_ "image/png"
	"io"
	"slices"
	"sync"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gogpu/tileview/internal/pixbuf"
)

// RegionDecoder decodes rectangular parts of one encoded image.
// Implementations need not be safe for concurrent use; Handle serializes
// calls.
type RegionDecoder interface {
	// Bounds returns the stored (unoriented) image bounds.
	Bounds() image.Rectangle

	// DecodeRegion decodes src, in stored pixel coordinates, downsampled by
	// sample. The result is borrowed from pool and has bounds
	// (0, 0, ceil(src.Dx()/sample), ceil(src.Dy()/sample)).
	DecodeRegion(src image.Rectangle, sample int, pool pixbuf.Recycler) (*image.RGBA, error)

	// Close releases decoder resources.
	Close() error
}

// OpenFunc opens a RegionDecoder over an encoded stream.
type OpenFunc func(r io.Reader) (RegionDecoder, error)

var (
	formatsMu sync.RWMutex
	formats   = map[string]OpenFunc{
		"jpeg": openWhole,
		"png":  openWhole,
		"webp": openWhole,
		"bmp":  openWhole,
		"tiff": openWhole,
	}
)

// RegisterFormat installs open as the region decoder for the named format,
// as reported by image.DecodeConfig. A nil open removes the format.
func RegisterFormat(name string, open OpenFunc) {
	formatsMu.Lock()
	defer formatsMu.Unlock()
	if open == nil {
		delete(formats, name)
		return
	}
	formats[name] = open
}

// Formats returns the names of formats that support region decode, sorted.
func Formats() []string {
	formatsMu.RLock()
	defer formatsMu.RUnlock()
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func lookupFormat(name string) (OpenFunc, bool) {
	formatsMu.RLock()
	defer formatsMu.RUnlock()
	open, ok := formats[name]
	return open, ok
}

// wholeDecoder serves regions from an image decoded in full on open.
// The standard codecs cannot seek into the compressed stream.
type wholeDecoder struct {
	img image.Image
}

func openWhole(r io.Reader) (RegionDecoder, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decoder: decode: %w", err)
	}
	return &wholeDecoder{img: img}, nil
}

func (d *wholeDecoder) Bounds() image.Rectangle {
	if d.img == nil {
		return image.Rectangle{}
	}
	return d.img.Bounds()
}

func (d *wholeDecoder) DecodeRegion(src image.Rectangle, sample int, pool pixbuf.Recycler) (*image.RGBA, error) {
	if d.img == nil {
		return nil, ErrRecycled
	}
	b := d.img.Bounds()
	src = src.Add(b.Min).Intersect(b)
	if src.Empty() {
		return nil, ErrEmptyRegion
	}
	sample = max(sample, 1)
	w := (src.Dx() + sample - 1) / sample
	h := (src.Dy() + sample - 1) / sample

	dst := pool.Borrow(w, h)
	if dst == nil {
		return nil, fmt.Errorf("decoder: no %dx%d buffer available", w, h)
	}
	if sample == 1 {
		draw.Draw(dst, dst.Rect, d.img, src.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Rect, d.img, src, draw.Src, nil)
	}
	return dst, nil
}

func (d *wholeDecoder) Close() error {
	d.img = nil
	return nil
}
