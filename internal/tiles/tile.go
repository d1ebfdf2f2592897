// Package tiles maintains the live set of decoded tiles for one image.
//
// A Manager reconciles the tile set against the decode rectangle computed by
// the region engine: it evicts tiles that left the rectangle, finds the
// uncovered gaps and creates tiles for them. Decoding happens elsewhere;
// the Manager only hands new tiles to a Submitter and later applies the
// results. All Manager methods must be called from the owning goroutine.
package tiles

import (
	"fmt"
	"image"
	"sync/atomic"

	"github.com/gogpu/tileview/internal/decoder"
)

// Tile is one rectangular piece of the image.
//
// A tile with a nil Buffer is in flight. Once Buffer is set the tile owns it
// until eviction returns it to the pool.
type Tile struct {
	// Draw is the tile rectangle in preview space.
	Draw image.Rectangle

	// Src is the tile rectangle in image space.
	Src image.Rectangle

	// Sample is the downsample factor used for decoding, >= 1.
	Sample int

	// Scale is the zoom scale the tile was created at.
	Scale float64

	// Buffer holds the decoded pixels, or nil while in flight.
	Buffer *image.RGBA

	// Key is the generation the tile was created in.
	Key int64

	// Handle is the decoder used for the pending decode. It is cleared once
	// the tile becomes resident or is evicted.
	Handle *decoder.Handle

	token atomic.Int64
}

// Token returns the tile's eviction token. It changes whenever the tile is
// evicted, so a decode that captured an older token is stale.
// Safe to call from any goroutine.
func (t *Tile) Token() int64 {
	return t.token.Load()
}

// InFlight reports whether the tile is waiting for its buffer.
func (t *Tile) InFlight() bool {
	return t.Buffer == nil
}

func (t *Tile) String() string {
	state := "resident"
	if t.InFlight() {
		state = "in-flight"
	}
	return fmt.Sprintf("tile(draw=%v src=%v sample=%d key=%d %s)", t.Draw, t.Src, t.Sample, t.Key, state)
}

// invalidate bumps the token so that pending results are recognized as stale.
func (t *Tile) invalidate() {
	t.token.Add(1)
}
