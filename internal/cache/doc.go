// Package cache provides a byte-budgeted LRU cache.
//
// It keeps the raw bytes of images fetched from remote sources (HTTP, S3) so
// that the several passes a decoder makes over a source (bounds probe,
// metadata, pixel decode) and repeated opens of the same URI do not refetch.
//
//	c := cache.New[string, []byte](64<<20, cache.ByteLen)
//	c.Set(uri, data)
//	data, ok := c.Get(uri)
//
// # Thread Safety
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
