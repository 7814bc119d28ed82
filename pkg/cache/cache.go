package cache

import (
	"strings"
	"time"
)

// Cache is the interface for caching resolved markets and hedge pairs.
// Keys are namespaced as "<keyspace>:<id>".
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns (value, true) if found, (nil, false) if not found.
	Get(key string) (interface{}, bool)

	// Set stores a value in the cache with a TTL.
	Set(key string, value interface{}, ttl time.Duration) bool

	// Delete removes a value from the cache.
	Delete(key string)

	// Clear removes all values from the cache.
	Clear()

	// Close closes the cache and releases resources.
	Close()
}

// keyspace returns the namespace part of key, used as a metrics label.
func keyspace(key string) string {
	prefix, _, found := strings.Cut(key, ":")
	if !found || prefix == "" {
		return "default"
	}
	return prefix
}
