// Package cache provides key-value caching with LRU semantics behind a
// provider registry. The library client uses it to avoid re-querying the
// media server for duplicate checks and folder listings on every request.
package cache

// EvictCallback is invoked when an entry leaves the cache. Providers backed
// by an external store may pass a nil value because fetching the evicted
// bytes would cost an extra roundtrip.
type EvictCallback func(key string, value []byte)

// Cache is a bounded key-value store. Entries expire after the configured
// TTL and the least recently used entry is evicted when the store is full.
type Cache interface {
	// Get retrieves a value by key and refreshes its recency. The second
	// return is false on a miss.
	Get(key string) ([]byte, bool)

	// Set stores a value, overwriting an existing entry for the same key.
	Set(key string, value []byte)

	// Contains reports whether the key is present without touching recency.
	Contains(key string) bool

	// Len returns the current number of entries.
	Len() int

	// Close releases provider resources. In-memory providers treat this as
	// a no-op.
	Close() error
}
