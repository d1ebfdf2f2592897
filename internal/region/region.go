// Package region computes which part of a large image must be backed by
// decoded tiles for a given viewport.
//
// All functions in this package are pure: they take rectangles and sizes and
// return rectangles. Coordinates come in two spaces:
//
//   - preview space: the coordinate space of the drawable the viewport pans
//     over (often a downsampled preview of the full image)
//   - source space: pixel coordinates of the full image
//
// The engine expands the visible rectangle into a draw rectangle (visible
// plus a preload margin) and then into a decode rectangle, which follows the
// draw rectangle with hysteresis so that small pans do not churn tiles.
package region

import (
	"image"
	"math"
)

// DefaultGridDivisions is the number of tile widths that fit across the
// preload margin on both sides of the visible rectangle.
const DefaultGridDivisions = 3

const (
	// growThreshold is the fraction of the preload margin the draw rectangle
	// may extend past the decode rectangle before the decode edge grows.
	growThreshold = 0.8

	// pixelBudget bounds the decoded source pixels relative to the surface.
	pixelBudget = 1.1
)

// Input describes one viewport update.
type Input struct {
	// Visible is the on-screen part of the preview, in preview space.
	Visible image.Rectangle

	// Preview is the pixel size of the preview space. Rectangles are clamped
	// to [0, Preview].
	Preview image.Point

	// Image is the pixel size of the full image (source space).
	Image image.Point

	// Surface is the pixel size of the viewport surface.
	Surface image.Point

	// Scale is the current zoom scale. A change invalidates all tiles.
	Scale float64

	// Zooming is set while a zoom gesture is in progress.
	Zooming bool
}

// Region is the result of a geometry computation.
type Region struct {
	Visible image.Rectangle
	Draw    image.Rectangle
	Decode  image.Rectangle

	VisibleSrc image.Rectangle
	DrawSrc    image.Rectangle
	DecodeSrc  image.Rectangle

	// Cell is the size of one tile cell in preview space.
	Cell image.Point

	// Margin is the preload margin added on each side of Visible.
	Margin image.Point

	// Sample is the power-of-two downsample factor for decoding, >= 1.
	Sample int

	Scale   float64
	Preview image.Point
	Image   image.Point
	Surface image.Point
}

// Empty reports whether r carries no decode area.
func (r Region) Empty() bool {
	return r.Decode.Empty()
}

// Engine computes regions. The zero value uses DefaultGridDivisions.
type Engine struct {
	GridDivisions int
}

func (e Engine) divisions() int {
	if e.GridDivisions <= 0 {
		return DefaultGridDivisions
	}
	return e.GridDivisions
}

// Compute derives the region for in. prev is the last region returned by
// Compute, or nil on the first call. The boolean result is false when nothing
// needs to change: a zoom gesture is in progress, the viewport is identical to
// the previous one, or the input is degenerate.
func (e Engine) Compute(prev *Region, in Input) (Region, bool) {
	if in.Zooming {
		return Region{}, false
	}
	if in.Preview.X <= 0 || in.Preview.Y <= 0 || in.Image.X <= 0 || in.Image.Y <= 0 ||
		in.Surface.X <= 0 || in.Surface.Y <= 0 {
		return Region{}, false
	}
	bounds := image.Rectangle{Max: in.Preview}
	visible := in.Visible.Intersect(bounds)
	if visible.Empty() {
		return Region{}, false
	}
	if prev != nil && prev.Visible == visible && prev.Scale == in.Scale &&
		prev.Preview == in.Preview && prev.Image == in.Image && prev.Surface == in.Surface {
		return Region{}, false
	}

	n := e.divisions()
	margin := image.Pt(roundDiv(visible.Dx(), 2*n), roundDiv(visible.Dy(), 2*n))
	draw := image.Rect(
		visible.Min.X-margin.X, visible.Min.Y-margin.Y,
		visible.Max.X+margin.X, visible.Max.Y+margin.Y,
	).Intersect(bounds)
	draw.Min.X, draw.Max.X = alignSpan(draw.Min.X, draw.Max.X, in.Preview.X, n+1)
	draw.Min.Y, draw.Max.Y = alignSpan(draw.Min.Y, draw.Max.Y, in.Preview.Y, n+1)
	cell := image.Pt(max(1, draw.Dx()/(n+1)), max(1, draw.Dy()/(n+1)))

	decode := draw
	if prev != nil && !prev.Decode.Empty() && prev.Scale == in.Scale &&
		prev.Preview == in.Preview && prev.Image == in.Image {
		decode = follow(prev.Decode, draw, in.Preview, margin, cell)
	}

	r := Region{
		Visible: visible,
		Draw:    draw,
		Decode:  decode,
		Cell:    cell,
		Margin:  margin,
		Scale:   in.Scale,
		Preview: in.Preview,
		Image:   in.Image,
		Surface: in.Surface,
	}
	r.VisibleSrc = MapToSource(visible, in.Preview, in.Image)
	r.DrawSrc = MapToSource(draw, in.Preview, in.Image)
	r.DecodeSrc = MapToSource(decode, in.Preview, in.Image)
	r.Sample = SampleSize(r.DecodeSrc.Size(), in.Surface)
	return r, true
}

// follow moves the previous decode rectangle towards draw, one tile cell at a
// time, and only once draw has moved far enough.
func follow(prev, draw image.Rectangle, limit, margin, cell image.Point) image.Rectangle {
	d := prev
	d.Min.X = growMin(d.Min.X, draw.Min.X, margin.X, cell.X)
	d.Min.Y = growMin(d.Min.Y, draw.Min.Y, margin.Y, cell.Y)
	d.Max.X = growMax(d.Max.X, draw.Max.X, limit.X, margin.X, cell.X)
	d.Max.Y = growMax(d.Max.Y, draw.Max.Y, limit.Y, margin.Y, cell.Y)

	d.Min.X = shrinkMin(d.Min.X, draw.Min.X, cell.X)
	d.Min.Y = shrinkMin(d.Min.Y, draw.Min.Y, cell.Y)
	d.Max.X = shrinkMax(d.Max.X, draw.Max.X, cell.X)
	d.Max.Y = shrinkMax(d.Max.Y, draw.Max.Y, cell.Y)

	return d.Intersect(image.Rectangle{Max: limit})
}

func growMin(dec, drw, margin, cell int) int {
	if drw <= 0 {
		return 0
	}
	gap := dec - drw
	if gap <= 0 {
		return dec
	}
	if float64(gap) > growThreshold*float64(margin) || drw < cell {
		for dec > drw {
			dec -= cell
		}
	}
	return max(dec, 0)
}

func growMax(dec, drw, limit, margin, cell int) int {
	if drw >= limit {
		return limit
	}
	gap := drw - dec
	if gap <= 0 {
		return dec
	}
	if float64(gap) > growThreshold*float64(margin) || limit-drw < cell {
		for dec < drw {
			dec += cell
		}
	}
	return min(dec, limit)
}

func shrinkMin(dec, drw, cell int) int {
	for drw-dec > cell {
		dec += cell
	}
	return dec
}

func shrinkMax(dec, drw, cell int) int {
	for dec-drw > cell {
		dec -= cell
	}
	return dec
}

// alignSpan trims [lo, hi) so its length is a multiple of parts. The
// remainder comes off the end that is not pinned to [0, limit]; a span pinned
// at both ends is left alone.
func alignSpan(lo, hi, limit, parts int) (int, int) {
	length := hi - lo
	if length < parts {
		return lo, hi
	}
	rem := length % parts
	if rem == 0 {
		return lo, hi
	}
	loPinned, hiPinned := lo <= 0, hi >= limit
	switch {
	case loPinned && hiPinned:
		return lo, hi
	case hiPinned:
		return lo + rem, hi
	default:
		return lo, hi - rem
	}
}

// MapToSource projects r from preview space into source space. Each axis is
// scaled independently. Edges are rounded so that rectangles sharing an edge
// in preview space share it in source space.
func MapToSource(r image.Rectangle, preview, img image.Point) image.Rectangle {
	if preview.X <= 0 || preview.Y <= 0 {
		return image.Rectangle{}
	}
	sx := float64(img.X) / float64(preview.X)
	sy := float64(img.Y) / float64(preview.Y)
	src := image.Rect(
		int(math.Round(float64(r.Min.X)*sx)),
		int(math.Round(float64(r.Min.Y)*sy)),
		int(math.Round(float64(r.Max.X)*sx)),
		int(math.Round(float64(r.Max.Y)*sy)),
	)
	return src.Intersect(image.Rectangle{Max: img})
}

// SampleSize returns the smallest power-of-two downsample factor for which a
// source area of size src decodes to at most pixelBudget times the surface
// pixel count.
func SampleSize(src, surface image.Point) int {
	budget := pixelBudget * float64(surface.X) * float64(surface.Y)
	if src.X <= 0 || src.Y <= 0 || budget <= 0 {
		return 1
	}
	sample := 1
	for sample < 1<<20 {
		w := float64(src.X) / float64(sample)
		h := float64(src.Y) / float64(sample)
		if w*h <= budget {
			break
		}
		sample *= 2
	}
	return sample
}

func roundDiv(a, b int) int {
	return int(math.Round(float64(a) / float64(b)))
}
