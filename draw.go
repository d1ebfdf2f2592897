package tileview

import (
	"image"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Identity maps draw-surface coordinates one to one onto the target.
var Identity = f64.Aff3{1, 0, 0, 0, 1, 0}

// Draw paints every resident tile onto dst. m maps draw-surface
// coordinates to dst coordinates; tiles are scaled from their decoded
// resolution to their draw rectangle. In-flight tiles are skipped, so
// callers usually paint a low-resolution preview first.
func (v *Viewer) Draw(dst draw.Image, m f64.Aff3) int {
	painted := 0
	for _, t := range v.manager.Tiles() {
		if t.InFlight() {
			continue
		}
		buf := t.Buffer
		bw, bh := buf.Rect.Dx(), buf.Rect.Dy()
		if bw == 0 || bh == 0 || t.Draw.Empty() {
			continue
		}
		s2d := tileTransform(m, t.Draw, image.Pt(bw, bh))
		draw.ApproxBiLinear.Transform(dst, s2d, buf, buf.Rect, draw.Over, nil)
		painted++
	}
	return painted
}

// tileTransform composes m with the map from a size-sized buffer onto the
// rectangle r.
func tileTransform(m f64.Aff3, r image.Rectangle, size image.Point) f64.Aff3 {
	sx := float64(r.Dx()) / float64(size.X)
	sy := float64(r.Dy()) / float64(size.Y)
	tx, ty := float64(r.Min.X), float64(r.Min.Y)
	return f64.Aff3{
		m[0] * sx, m[1] * sy, m[0]*tx + m[1]*ty + m[2],
		m[3] * sx, m[4] * sy, m[3]*tx + m[4]*ty + m[5],
	}
}
