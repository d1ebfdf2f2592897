package tiles

import (
	"cmp"
	"image"
	"slices"
)

type span struct {
	lo, hi int
}

// FindEmptyRegions returns rectangles inside r that no rect in rects covers.
//
// The sweep cuts r into horizontal bands at every top and bottom edge, walks
// each band left to right emitting the uncovered spans, and merges a gap
// into the one directly above it when both have the same horizontal extent.
// The result never overlaps rects, and its union with rects covers r.
// It returns nil for an empty r, [r] when rects is empty.
func FindEmptyRegions(r image.Rectangle, rects []image.Rectangle) []image.Rectangle {
	if r.Empty() {
		return nil
	}

	clipped := make([]image.Rectangle, 0, len(rects))
	edges := []int{r.Min.Y, r.Max.Y}
	for _, rc := range rects {
		c := rc.Intersect(r)
		if c.Empty() {
			continue
		}
		clipped = append(clipped, c)
		edges = append(edges, c.Min.Y, c.Max.Y)
	}
	if len(clipped) == 0 {
		return []image.Rectangle{r}
	}
	slices.Sort(edges)
	edges = slices.Compact(edges)

	var (
		gaps  []image.Rectangle
		above = map[span]int{} // gaps ending at the current band top
		spans []span
	)
	for i := 0; i+1 < len(edges); i++ {
		top, bottom := edges[i], edges[i+1]

		spans = spans[:0]
		for _, c := range clipped {
			if c.Min.Y <= top && c.Max.Y >= bottom {
				spans = append(spans, span{c.Min.X, c.Max.X})
			}
		}
		slices.SortFunc(spans, func(a, b span) int { return cmp.Compare(a.lo, b.lo) })

		current := make(map[span]int, len(above))
		emit := func(lo, hi int) {
			s := span{lo, hi}
			if idx, ok := above[s]; ok {
				gaps[idx].Max.Y = bottom
				current[s] = idx
				return
			}
			gaps = append(gaps, image.Rect(lo, top, hi, bottom))
			current[s] = len(gaps) - 1
		}

		x := r.Min.X
		for _, s := range spans {
			if s.lo > x {
				emit(x, s.lo)
			}
			x = max(x, s.hi)
		}
		if x < r.Max.X {
			emit(x, r.Max.X)
		}
		above = current
	}
	return gaps
}

// splitCells cuts gap into cell-sized rectangles anchored at its top-left
// corner. Cells on the right and bottom are clipped to the gap.
func splitCells(gap image.Rectangle, cell image.Point) []image.Rectangle {
	if gap.Empty() || cell.X <= 0 || cell.Y <= 0 {
		return nil
	}
	cols := (gap.Dx() + cell.X - 1) / cell.X
	rows := (gap.Dy() + cell.Y - 1) / cell.Y
	out := make([]image.Rectangle, 0, cols*rows)
	for y := gap.Min.Y; y < gap.Max.Y; y += cell.Y {
		for x := gap.Min.X; x < gap.Max.X; x += cell.X {
			out = append(out, image.Rect(x, y, x+cell.X, y+cell.Y).Intersect(gap))
		}
	}
	return out
}
