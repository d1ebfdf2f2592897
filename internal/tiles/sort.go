package tiles

import (
	"image"
	"slices"
)

// comparePosition orders rectangles top to bottom, then left to right.
// Rectangles that overlap on both axes compare equal, which makes the
// relation intransitive for misaligned tiles.
func comparePosition(a, b image.Rectangle) int {
	switch {
	case a.Max.Y <= b.Min.Y:
		return -1
	case b.Max.Y <= a.Min.Y:
		return 1
	case a.Max.X <= b.Min.X:
		return -1
	case b.Max.X <= a.Min.X:
		return 1
	default:
		return 0
	}
}

// sortTiles orders ts by cmp in place. If the sort panics or leaves
// neighbours out of order, it retries with a stable sort, and if that also
// fails it restores the original order. It reports whether ts ends sorted.
func sortTiles(ts []*Tile, cmp func(a, b image.Rectangle) int) bool {
	if len(ts) < 2 {
		return true
	}
	orig := slices.Clone(ts)
	byDraw := func(a, b *Tile) int { return cmp(a.Draw, b.Draw) }

	if trySort(ts, byDraw, slices.SortFunc[[]*Tile, *Tile]) {
		return true
	}
	slogger().Debug("tile sort inconsistent, retrying stable", "tiles", len(ts))

	copy(ts, orig)
	if trySort(ts, byDraw, slices.SortStableFunc[[]*Tile, *Tile]) {
		return true
	}
	slogger().Warn("tile sort failed, keeping previous order", "tiles", len(ts))

	copy(ts, orig)
	return false
}

func trySort(ts []*Tile, cmp func(a, b *Tile) int, sort func([]*Tile, func(a, b *Tile) int)) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slogger().Debug("tile sort panicked", "panic", r)
			ok = false
		}
	}()
	sort(ts, cmp)
	for i := 1; i < len(ts); i++ {
		if cmp(ts[i-1], ts[i]) > 0 {
			return false
		}
	}
	return true
}
