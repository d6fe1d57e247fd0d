package enrich

import (
	"context"
	"testing"
	"time"

	"secureingest/internal/schema"

	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	metadata map[string]*schema.EntityMetadata
	calls    int
}

func (s *stubResolver) Resolve(_ context.Context, entityID string) (*schema.EntityMetadata, bool) {
	s.calls++
	m, ok := s.metadata[entityID]
	return m, ok
}

func TestEntityCache_CachesAndExpires(t *testing.T) {
	resolver := &stubResolver{metadata: map[string]*schema.EntityMetadata{
		"alice": {Department: "eng", IsAdmin: true},
	}}
	fakeNow := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewEntityCache(time.Minute, resolver)
	cache.now = func() time.Time { return fakeNow }

	m, ok := cache.Lookup(context.Background(), "alice")
	require.True(t, ok)
	require.Equal(t, "eng", m.Department)
	require.Equal(t, 1, resolver.calls)

	// Second lookup within TTL: served from cache, resolver not called again.
	_, ok = cache.Lookup(context.Background(), "alice")
	require.True(t, ok)
	require.Equal(t, 1, resolver.calls)

	// Advance past TTL: resolver invoked again.
	fakeNow = fakeNow.Add(2 * time.Minute)
	_, ok = cache.Lookup(context.Background(), "alice")
	require.True(t, ok)
	require.Equal(t, 2, resolver.calls)
}

func TestEntityCache_MissNotCached(t *testing.T) {
	resolver := &stubResolver{metadata: map[string]*schema.EntityMetadata{}}
	cache := NewEntityCache(time.Minute, resolver)

	_, ok := cache.Lookup(context.Background(), "ghost")
	require.False(t, ok)
	_, ok = cache.Lookup(context.Background(), "ghost")
	require.False(t, ok)
	require.Equal(t, 2, resolver.calls)
}

func TestEnricher_FullPipeline(t *testing.T) {
	path := buildTestMMDB(t)
	geo, err := NewGeoIP(path)
	require.NoError(t, err)
	defer geo.Close()

	resolver := &stubResolver{metadata: map[string]*schema.EntityMetadata{
		"alice": {Department: "eng"},
	}}

	e := New(Config{
		GeoIP:          geo,
		EntityCacheTTL: time.Minute,
		Resolver:       resolver,
	})

	event := schema.UnifiedEvent{
		EntityID:  "alice",
		SourceIP:  "192.168.1.50",
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) Mobile Safari",
		Resource:  schema.Resource{Type: "api_endpoint", Endpoint: "/v1/users/1"},
	}

	got := e.Enrich(context.Background(), event)

	require.NotNil(t, got.Location)
	require.Equal(t, "Seattle", got.Location.City)
	require.NotNil(t, got.EntityMetadata)
	require.Equal(t, "eng", got.EntityMetadata.Department)
	require.NotNil(t, got.Device)
	require.True(t, got.Device.IsMobile)
	require.Equal(t, 4, got.Resource.SensitivityLevel)
	require.Equal(t, "192.168.1.XXX", got.SourceIPAnonymized)
}

func TestEnricher_GeoMissYieldsUnknownMarker(t *testing.T) {
	e := New(Config{})
	event := schema.UnifiedEvent{SourceIP: "203.0.113.9"}
	got := e.Enrich(context.Background(), event)
	require.NotNil(t, got.Location)
	require.Equal(t, "Unknown", got.Location.City)
}

func TestEnricher_Idempotent(t *testing.T) {
	e := New(Config{})
	event := schema.UnifiedEvent{
		SourceIP: "10.0.0.1",
		Resource: schema.Resource{Type: "application"},
	}
	once := e.Enrich(context.Background(), event)
	twice := e.Enrich(context.Background(), once)
	require.Equal(t, once.Location, twice.Location)
	require.Equal(t, once.Resource.SensitivityLevel, twice.Resource.SensitivityLevel)
	require.Equal(t, once.SourceIPAnonymized, twice.SourceIPAnonymized)
}
