package snapshot

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

const cacheKey = "snapshot"

// CachedSource keeps successfully loaded snapshots for a fixed TTL.
// Failures are never cached.
type CachedSource struct {
	source Source
	cache  *cache.Cache
}

// NewCachedSource wraps source with a TTL cache. A non-positive ttl disables
// caching and returns source unchanged.
func NewCachedSource(source Source, ttl time.Duration) Source {
	if ttl <= 0 {
		return source
	}
	return &CachedSource{
		source: source,
		cache:  cache.New(ttl, 2*ttl),
	}
}

func (s *CachedSource) Load(ctx context.Context) ([]string, error) {
	if x, found := s.cache.Get(cacheKey); found {
		cacheLookups.WithLabelValues("hit").Inc()
		return x.([]string), nil
	}
	cacheLookups.WithLabelValues("miss").Inc()

	uris, err := s.source.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(cacheKey, uris, cache.DefaultExpiration)
	return uris, nil
}

// Invalidate drops the cached snapshot so the next Load hits upstream
func (s *CachedSource) Invalidate() {
	s.cache.Delete(cacheKey)
}
