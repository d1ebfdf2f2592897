package decoder

import (
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/tileview/internal/pixbuf"
)

// numbered returns a w×h buffer whose pixels encode their own position.
func numbered(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, color.RGBA{uint8(x), uint8(y), 7, 255})
		}
	}
	return img
}

func crop(src *image.RGBA, r image.Rectangle) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			out.SetRGBA(x-r.Min.X, y-r.Min.Y, src.RGBAAt(x, y))
		}
	}
	return out
}

func allOrientations() []Orientation {
	return []Orientation{
		OrientNormal, OrientFlipH, OrientRotate180, OrientFlipV,
		OrientTranspose, OrientRotate90, OrientTransverse, OrientRotate270,
	}
}

func TestOrientation_OrientedSize(t *testing.T) {
	raw := image.Pt(40, 30)
	for _, o := range allOrientations() {
		want := raw
		if o.SwapsAxes() {
			want = image.Pt(30, 40)
		}
		if got := o.OrientedSize(raw); got != want {
			t.Errorf("%v.OrientedSize(%v) = %v, want %v", o, raw, got, want)
		}
	}
}

func TestOrientation_CorrectRotate90(t *testing.T) {
	// Stored:   Displayed (90° clockwise):
	//   a b       c a
	//   c d       d b
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	a, b := color.RGBA{1, 0, 0, 255}, color.RGBA{2, 0, 0, 255}
	c, d := color.RGBA{3, 0, 0, 255}, color.RGBA{4, 0, 0, 255}
	src.SetRGBA(0, 0, a)
	src.SetRGBA(1, 0, b)
	src.SetRGBA(0, 1, c)
	src.SetRGBA(1, 1, d)

	dst := OrientRotate90.Correct(src, pixbuf.NewPool(0))
	want := map[image.Point]color.RGBA{
		{0, 0}: c, {1, 0}: a,
		{0, 1}: d, {1, 1}: b,
	}
	for p, w := range want {
		if got := dst.RGBAAt(p.X, p.Y); got != w {
			t.Errorf("pixel %v = %v, want %v", p, got, w)
		}
	}
}

// Decoding a displayed tile through ToRaw and correcting it must match the
// same tile cut from the fully corrected image.
func TestOrientation_TileMatchesWholeImage(t *testing.T) {
	pool := pixbuf.NewPool(0)
	raw := numbered(7, 5)
	rawSize := raw.Rect.Size()

	for _, o := range allOrientations() {
		t.Run(o.String(), func(t *testing.T) {
			whole := o.Correct(raw, pool)
			if whole.Rect.Size() != o.OrientedSize(rawSize) {
				t.Fatalf("corrected size = %v, want %v", whole.Rect.Size(), o.OrientedSize(rawSize))
			}
			tile := image.Rect(1, 2, 4, 5).Intersect(whole.Rect)

			rawRect := o.ToRaw(tile, rawSize)
			if !rawRect.In(raw.Rect) {
				t.Fatalf("ToRaw(%v) = %v escapes stored bounds %v", tile, rawRect, raw.Rect)
			}
			got := o.Correct(crop(raw, rawRect), pool)
			want := crop(whole, tile)
			if got.Rect != want.Rect {
				t.Fatalf("tile bounds = %v, want %v", got.Rect, want.Rect)
			}
			for y := range want.Rect.Dy() {
				for x := range want.Rect.Dx() {
					if g, w := got.RGBAAt(x, y), want.RGBAAt(x, y); g != w {
						t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, g, w)
					}
				}
			}
		})
	}
}

func TestOrientation_Helpers(t *testing.T) {
	if !Orientation(0).IsIdentity() {
		t.Error("invalid orientation should be treated as identity")
	}
	if OrientRotate180.IsIdentity() {
		t.Error("Rotate180 reported as identity")
	}
	if Orientation(9).Valid() {
		t.Error("9 reported as valid")
	}
	if OrientNormal.Correct(nil, pixbuf.NewPool(0)) != nil {
		t.Error("Correct(nil) should return nil")
	}
}
