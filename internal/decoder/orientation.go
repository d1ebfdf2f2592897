package decoder

import (
	"fmt"
	"image"
	"io"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/gogpu/tileview/internal/pixbuf"
)

// Orientation is an EXIF orientation value (1-8). It describes how the
// stored pixels must be transformed to be displayed upright.
type Orientation int

// EXIF orientation values.
const (
	OrientNormal     Orientation = 1
	OrientFlipH      Orientation = 2
	OrientRotate180  Orientation = 3
	OrientFlipV      Orientation = 4
	OrientTranspose  Orientation = 5
	OrientRotate90   Orientation = 6 // rotate 90° clockwise to display
	OrientTransverse Orientation = 7
	OrientRotate270  Orientation = 8 // rotate 90° counter-clockwise to display
)

func (o Orientation) String() string {
	switch o {
	case OrientNormal:
		return "normal"
	case OrientFlipH:
		return "flip-horizontal"
	case OrientRotate180:
		return "rotate-180"
	case OrientFlipV:
		return "flip-vertical"
	case OrientTranspose:
		return "transpose"
	case OrientRotate90:
		return "rotate-90"
	case OrientTransverse:
		return "transverse"
	case OrientRotate270:
		return "rotate-270"
	default:
		return fmt.Sprintf("Orientation(%d)", int(o))
	}
}

// Valid reports whether o is one of the eight EXIF orientations.
func (o Orientation) Valid() bool {
	return o >= OrientNormal && o <= OrientRotate270
}

// IsIdentity reports whether pixels are displayed as stored.
func (o Orientation) IsIdentity() bool {
	return !o.Valid() || o == OrientNormal
}

// SwapsAxes reports whether the displayed image is the stored image with
// width and height exchanged.
func (o Orientation) SwapsAxes() bool {
	return o >= OrientTranspose && o <= OrientRotate270
}

// OrientedSize returns the displayed size of an image stored at raw size.
func (o Orientation) OrientedSize(raw image.Point) image.Point {
	if o.SwapsAxes() {
		return image.Pt(raw.Y, raw.X)
	}
	return raw
}

// ToRaw maps r from displayed coordinates to stored coordinates of an image
// whose stored size is raw.
func (o Orientation) ToRaw(r image.Rectangle, raw image.Point) image.Rectangle {
	w, h := raw.X, raw.Y
	switch o {
	case OrientFlipH:
		return image.Rect(w-r.Max.X, r.Min.Y, w-r.Min.X, r.Max.Y)
	case OrientRotate180:
		return image.Rect(w-r.Max.X, h-r.Max.Y, w-r.Min.X, h-r.Min.Y)
	case OrientFlipV:
		return image.Rect(r.Min.X, h-r.Max.Y, r.Max.X, h-r.Min.Y)
	case OrientTranspose:
		return image.Rect(r.Min.Y, r.Min.X, r.Max.Y, r.Max.X)
	case OrientRotate90:
		return image.Rect(r.Min.Y, h-r.Max.X, r.Max.Y, h-r.Min.X)
	case OrientTransverse:
		return image.Rect(w-r.Max.Y, h-r.Max.X, w-r.Min.Y, h-r.Min.X)
	case OrientRotate270:
		return image.Rect(w-r.Max.Y, r.Min.X, w-r.Min.Y, r.Max.X)
	default:
		return r
	}
}

// Correct returns a new buffer holding src transformed for display. The new
// buffer is borrowed from pool; src is left untouched. It returns nil when
// the pool cannot supply a buffer.
func (o Orientation) Correct(src *image.RGBA, pool pixbuf.Recycler) *image.RGBA {
	if src == nil {
		return nil
	}
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := o.OrientedSize(image.Pt(w, h))
	dst := pool.Borrow(out.X, out.Y)
	if dst == nil {
		return nil
	}
	for y := range h {
		row := src.Pix[y*src.Stride : y*src.Stride+4*w]
		for x := range w {
			dx, dy := o.mapPixel(x, y, w, h)
			off := dy*dst.Stride + 4*dx
			copy(dst.Pix[off:off+4], row[4*x:4*x+4])
		}
	}
	return dst
}

// mapPixel maps a stored pixel of a w×h buffer to its displayed position.
func (o Orientation) mapPixel(x, y, w, h int) (int, int) {
	switch o {
	case OrientFlipH:
		return w - 1 - x, y
	case OrientRotate180:
		return w - 1 - x, h - 1 - y
	case OrientFlipV:
		return x, h - 1 - y
	case OrientTranspose:
		return y, x
	case OrientRotate90:
		return h - 1 - y, x
	case OrientTransverse:
		return h - 1 - y, w - 1 - x
	case OrientRotate270:
		return y, w - 1 - x
	default:
		return x, y
	}
}

// readOrientation extracts the EXIF orientation from r. Sources without
// EXIF data, or with an out-of-range value, are reported as OrientNormal.
func readOrientation(r io.Reader) Orientation {
	x, err := exif.Decode(r)
	if err != nil {
		return OrientNormal
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return OrientNormal
	}
	v, err := tag.Int(0)
	if err != nil {
		return OrientNormal
	}
	if o := Orientation(v); o.Valid() {
		return o
	}
	return OrientNormal
}
