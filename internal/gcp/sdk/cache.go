package sdk

import (
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// clientCache holds constructed API clients for the life of a scan so every
// walker touching the same API shares one transport.
// Default expiration: 2 hours, cleanup interval: 10 minutes.
var clientCache = cache.New(2*time.Hour, 10*time.Minute)

// CacheKey generates a consistent cache key from components.
// Example: CacheKey("client", "compute") -> "client-compute"
func CacheKey(parts ...string) string {
	return strings.Join(parts, "-")
}

// ClearClientCache drops every cached client, forcing reconstruction.
func ClearClientCache() {
	clientCache.Flush()
}

// cachedClient returns the client under key, constructing and caching it on
// first use. Construction errors are not cached so a transient failure can
// be retried.
func cachedClient[T any](key string, build func() (T, error)) (T, error) {
	if cached, found := clientCache.Get(key); found {
		if client, ok := cached.(T); ok {
			return client, nil
		}
	}

	client, err := build()
	if err != nil {
		var zero T
		return zero, err
	}
	clientCache.Set(key, client, 0)
	return client, nil
}
