package schedule

import "sync/atomic"

// KeyCounter is the generation counter. Workers read it, the owner bumps it.
type KeyCounter struct {
	v atomic.Int64
}

// Current returns the live generation key.
func (k *KeyCounter) Current() int64 { return k.v.Load() }

// Refresh invalidates all outstanding work and returns the new key.
func (k *KeyCounter) Refresh() int64 { return k.v.Add(1) }

// Expired reports whether key is no longer live.
func (k *KeyCounter) Expired(key int64) bool { return key != k.v.Load() }
