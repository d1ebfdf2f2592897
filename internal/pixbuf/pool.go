// Package pixbuf provides the shared pool of tile pixel buffers.
//
// Tile buffers are borrowed by the decode worker while a tile is being
// decoded and returned from either the worker (on failure) or the owner
// goroutine (on eviction), so every implementation must be safe for
// concurrent use.
package pixbuf

import (
	"image"
	"sync"
	"sync/atomic"
)

// Recycler is the interface the tile core relies on. Borrow returns a
// cleared buffer with bounds (0, 0, w, h) or nil for invalid dimensions.
// Return accepts nil.
type Recycler interface {
	Borrow(w, h int) *image.RGBA
	Return(buf *image.RGBA)
}

// DefaultMaxPerBucket is the number of idle buffers kept per size.
const DefaultMaxPerBucket = 16

// Pool is a thread-safe Recycler that groups idle buffers by size.
//
// Decoded tiles of one region share a handful of sizes (full cells plus
// clipped edge cells), so a small bucket per size gives a high reuse rate.
type Pool struct {
	mu      sync.Mutex
	buckets map[image.Point][]*image.RGBA
	maxSize int // max buffers per bucket, 0 means unlimited

	allocated atomic.Uint64
	reused    atomic.Uint64
}

// NewPool creates a pool that retains at most maxPerBucket idle buffers of
// each size. A maxPerBucket of 0 means unlimited.
func NewPool(maxPerBucket int) *Pool {
	return &Pool{
		buckets: make(map[image.Point][]*image.RGBA),
		maxSize: maxPerBucket,
	}
}

// Borrow retrieves a w×h buffer from the pool or allocates a new one.
// Reused buffers are zeroed.
func (p *Pool) Borrow(w, h int) *image.RGBA {
	if w <= 0 || h <= 0 {
		return nil
	}
	key := image.Pt(w, h)

	p.mu.Lock()
	bucket := p.buckets[key]
	if n := len(bucket); n > 0 {
		buf := bucket[n-1]
		bucket[n-1] = nil
		p.buckets[key] = bucket[:n-1]
		p.mu.Unlock()

		clear(buf.Pix)
		p.reused.Add(1)
		return buf
	}
	p.mu.Unlock()

	p.allocated.Add(1)
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

// Return gives buf back to the pool. Buffers that were not shaped by Borrow
// (non-zero origin or padded stride) and buffers beyond the bucket limit are
// left to the garbage collector.
func (p *Pool) Return(buf *image.RGBA) {
	if buf == nil || buf.Rect.Min != (image.Point{}) || buf.Rect.Empty() {
		return
	}
	w, h := buf.Rect.Dx(), buf.Rect.Dy()
	if buf.Stride != 4*w || len(buf.Pix) != 4*w*h {
		return
	}
	key := image.Pt(w, h)

	p.mu.Lock()
	defer p.mu.Unlock()

	bucket := p.buckets[key]
	if p.maxSize > 0 && len(bucket) >= p.maxSize {
		return
	}
	for _, b := range bucket {
		if b == buf {
			return
		}
	}
	p.buckets[key] = append(bucket, buf)
}

// Idle returns the number of buffers currently held by the pool.
func (p *Pool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, bucket := range p.buckets {
		n += len(bucket)
	}
	return n
}

// Clear drops every idle buffer.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	clear(p.buckets)
}

// Stats reports how many buffers were allocated and how many borrows were
// served from the pool.
func (p *Pool) Stats() (allocated, reused uint64) {
	return p.allocated.Load(), p.reused.Load()
}
