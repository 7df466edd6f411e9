package lookup

import (
	"context"
	"time"

	"github.com/coocood/freecache"
	"github.com/goccy/go-json"
)

// VerdictCache holds recent successful verdicts for all providers.
type VerdictCache struct {
	cache *freecache.Cache
	ttl   int
}

func NewVerdictCache(sizeMB int, ttl time.Duration) *VerdictCache {
	return &VerdictCache{
		cache: freecache.NewCache(sizeMB * 1024 * 1024),
		ttl:   max(int(ttl.Seconds()), 1),
	}
}

// CachedChecker serves repeated lookups of the same value from a VerdictCache.
// Failed lookups are never cached.
type CachedChecker struct {
	inner  Checker
	prefix string
	cache  *VerdictCache
}

func NewCachedChecker(inner Checker, prefix string, cache *VerdictCache) *CachedChecker {
	return &CachedChecker{inner: inner, prefix: prefix, cache: cache}
}

func (c *CachedChecker) Policy() FailurePolicy {
	return c.inner.Policy()
}

func (c *CachedChecker) Check(ctx context.Context, value string) (Verdict, error) {
	key := []byte(c.prefix + ":" + value)

	if data, err := c.cache.cache.Get(key); err == nil {
		var v Verdict
		if json.Unmarshal(data, &v) == nil {
			return v, nil
		}
	}

	v, err := c.inner.Check(ctx, value)
	if err != nil {
		return v, err
	}
	if data, err := json.Marshal(v); err == nil {
		_ = c.cache.cache.Set(key, data, c.cache.ttl)
	}
	return v, nil
}
