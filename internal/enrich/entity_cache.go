package enrich

import (
	"context"
	"sync"
	"time"

	"secureingest/internal/schema"
)

// MetadataResolver is the external collaborator that resolves an
// entity_id to profile metadata. Implementations may call out to a
// directory service, HR system, etc. spec.md §9 leaves this abstract;
// NoopResolver is the documented default stub.
type MetadataResolver interface {
	Resolve(ctx context.Context, entityID string) (*schema.EntityMetadata, bool)
}

// NoopResolver always reports "absent", the default when no resolver is
// configured.
type NoopResolver struct{}

func (NoopResolver) Resolve(context.Context, string) (*schema.EntityMetadata, bool) {
	return nil, false
}

// entityCacheEntry is a cached resolver result with its insertion time.
type entityCacheEntry struct {
	metadata *schema.EntityMetadata
	cachedAt time.Time
}

// EntityCache is a TTL cache of entity metadata, keyed by entity_id.
// Thread-safe: mutated by every worker under the concurrency model in
// spec.md §5. Shape mirrors gastrolog's RDNS TTL cache: a mutex-guarded
// map with lazy expiry checked on read, no background sweeper.
type EntityCache struct {
	mu       sync.Mutex
	entries  map[string]entityCacheEntry
	ttl      time.Duration
	resolver MetadataResolver
	now      func() time.Time
}

// NewEntityCache creates a cache with the given TTL and resolver. A nil
// resolver defaults to NoopResolver.
func NewEntityCache(ttl time.Duration, resolver MetadataResolver) *EntityCache {
	if resolver == nil {
		resolver = NoopResolver{}
	}
	return &EntityCache{
		entries:  make(map[string]entityCacheEntry),
		ttl:      ttl,
		resolver: resolver,
		now:      time.Now,
	}
}

// Lookup returns cached metadata for entityID if present and unexpired;
// otherwise it invokes the resolver, caches the result (even a miss is
// not cached, only successful resolutions are, so a transient resolver
// outage can self-heal on the next lookup), and returns it.
func (c *EntityCache) Lookup(ctx context.Context, entityID string) (*schema.EntityMetadata, bool) {
	c.mu.Lock()
	entry, ok := c.entries[entityID]
	if ok && c.now().Sub(entry.cachedAt) <= c.ttl {
		c.mu.Unlock()
		return entry.metadata, true
	}
	c.mu.Unlock()

	metadata, found := c.resolver.Resolve(ctx, entityID)
	if !found {
		return nil, false
	}

	c.mu.Lock()
	c.entries[entityID] = entityCacheEntry{metadata: metadata, cachedAt: c.now()}
	c.mu.Unlock()

	return metadata, true
}

// Size returns the number of cached entries, including expired ones not
// yet evicted by a read. For metrics/testing.
func (c *EntityCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
