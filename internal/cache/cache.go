// Package cache provides the advisory key/value layer used for LLM response
// caching, price-walk continuity and metric fallbacks. Entries are never
// authoritative: every caller must stay correct on a cold or absent cache.
package cache

import (
	"context"
	"time"
)

// Cache is a TTL key/value store. Get reports a miss rather than an error;
// backend failures are treated as misses so a broken cache degrades to
// cold-cache behavior instead of failing collection runs.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
}
