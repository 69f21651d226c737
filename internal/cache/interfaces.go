package cache

import (
	"context"
	"strings"
	"time"
)

// Cache defines the interface for caching operations.
// MemoryCache serves single-instance deployments, RedisCache is shared
// between instances. Callers must not depend on which one they get.
type Cache interface {
	// Get retrieves a value by key. Returns ErrCacheMiss if not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes values by key. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Exists checks if a key exists in the cache.
	Exists(ctx context.Context, key string) (bool, error)

	// GetOrSet retrieves a value or computes and stores it if missing.
	// Concurrent misses for the same key share one call to fn.
	GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error)

	// Close releases background resources.
	Close() error
}

// Common cache errors
type CacheError string

func (e CacheError) Error() string { return string(e) }

const (
	// ErrCacheMiss indicates the key was not found in cache.
	ErrCacheMiss CacheError = "cache miss"
)

// keyEscaper keeps ':' inside a part from reading as a separator, so
// ("a:b", "c") and ("a", "b:c") never share a key.
var keyEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// Key joins parts with ':' to build a cache key. Each part is escaped first.
func Key(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = keyEscaper.Replace(p)
	}
	return strings.Join(escaped, ":")
}
