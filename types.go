package tileview

import (
	"image"

	"github.com/gogpu/tileview/internal/decoder"
	"github.com/gogpu/tileview/internal/region"
	"github.com/gogpu/tileview/internal/schedule"
	"github.com/gogpu/tileview/internal/tiles"
)

// Viewport is one viewport update.
type Viewport struct {
	// Visible is the on-screen part of the draw surface.
	Visible image.Rectangle

	// DrawSurface is the pixel size of the drawable being panned over,
	// typically a downsampled preview of the image.
	DrawSurface image.Point

	// ViewportSurface is the pixel size of the on-screen viewport.
	ViewportSurface image.Point

	// Content is the pixel size of the full image. Zero means the size
	// reported by the decoder.
	Content image.Point

	// Scale is the zoom scale. Changing it replaces every tile.
	Scale float64

	// Zooming is set while a zoom gesture is in progress; updates are
	// ignored until it ends.
	Zooming bool
}

// Tile is a snapshot of one tile.
type Tile struct {
	// Draw is the tile rectangle in draw-surface space.
	Draw image.Rectangle

	// Src is the tile rectangle in image space.
	Src image.Rectangle

	// Sample is the downsample factor, a power of two.
	Sample int

	Scale float64

	// Key is the generation the tile was created in.
	Key int64

	// Resident reports whether the tile holds decoded pixels.
	Resident bool
}

func snapshot(t *tiles.Tile) Tile {
	return Tile{
		Draw:     t.Draw,
		Src:      t.Src,
		Sample:   t.Sample,
		Scale:    t.Scale,
		Key:      t.Key,
		Resident: !t.InFlight(),
	}
}

// Region is the area the viewer keeps decoded, in draw-surface and image
// space.
type Region struct {
	Visible, Draw, Decode          image.Rectangle
	VisibleSrc, DrawSrc, DecodeSrc image.Rectangle

	// Cell is the tile cell size in draw-surface space.
	Cell image.Point

	// Sample is the downsample factor new tiles decode with.
	Sample int

	Scale float64
}

func publicRegion(r region.Region) Region {
	return Region{
		Visible:    r.Visible,
		Draw:       r.Draw,
		Decode:     r.Decode,
		VisibleSrc: r.VisibleSrc,
		DrawSrc:    r.DrawSrc,
		DecodeSrc:  r.DecodeSrc,
		Cell:       r.Cell,
		Sample:     r.Sample,
		Scale:      r.Scale,
	}
}

// ImageInfo describes an opened image.
type ImageInfo struct {
	ID     string
	URI    string
	Format string

	// Size is the displayed size, after orientation correction.
	Size image.Point

	// RawSize is the stored size.
	RawSize image.Point

	// Orientation is the EXIF orientation (1-8) applied to tiles.
	Orientation int
}

func imageInfo(h *decoder.Handle) ImageInfo {
	return ImageInfo{
		ID:          h.ID().String(),
		URI:         h.URI(),
		Format:      h.Format(),
		Size:        h.Size(),
		RawSize:     h.RawSize(),
		Orientation: int(h.Orientation()),
	}
}

// Looper is the mailbox through which results reach the owner goroutine.
type Looper = schedule.Looper

// NewLooper creates an empty Looper for use with WithLooper.
func NewLooper() *Looper { return schedule.NewLooper() }

// DecodeError reports why a tile could not be decoded.
type DecodeError = schedule.DecodeError

// Cause classifies a DecodeError.
type Cause = schedule.Cause

// Decode failure causes.
const (
	CauseDecoderNotReady        = schedule.CauseDecoderNotReady
	CauseEmptyGeometry          = schedule.CauseEmptyGeometry
	CauseNilBuffer              = schedule.CauseNilBuffer
	CauseStaleBeforeDecode      = schedule.CauseStaleBeforeDecode
	CauseStaleAfterDecode       = schedule.CauseStaleAfterDecode
	CauseStaleAtCallback        = schedule.CauseStaleAtCallback
	CauseRecycledAfterRotation  = schedule.CauseRecycledAfterRotation
	CauseRotationResultRecycled = schedule.CauseRotationResultRecycled
	CauseQueueFull              = schedule.CauseQueueFull
)

// Errors reported through OnInitError and OnDecodeError. Match them with
// errors.Is.
var (
	ErrUnreadable        = decoder.ErrUnreadable
	ErrUnsupportedFormat = decoder.ErrUnsupportedFormat
	ErrOpenFailed        = decoder.ErrOpenFailed
	ErrQueueFull         = schedule.ErrQueueFull
	ErrStale             = schedule.ErrStale
)
