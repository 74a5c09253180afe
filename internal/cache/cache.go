// Package cache provides the bounded audio cache used by the speech
// synthesizer. Two implementations exist: an in-process LRU for single
// instances and a Redis-backed cache for sharing synthesized audio across
// replicas.
package cache

import "context"

// Cache maps a text hash to previously synthesized audio bytes.
//
// Implementations must be safe for concurrent use. The cache is advisory:
// Get misses and Set failures must never fail the request that triggered
// them.
type Cache interface {
	// Get returns the cached audio for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores audio under key. Implementations with a capacity bound
	// evict or reject as needed.
	Set(ctx context.Context, key string, audio []byte)
}
