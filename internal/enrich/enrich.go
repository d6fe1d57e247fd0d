package enrich

import (
	"context"
	"log/slog"
	"time"

	"secureingest/internal/logging"
	"secureingest/internal/schema"
)

// Config configures an Enricher.
type Config struct {
	// GeoIP resolves IP addresses to location. May be nil, in which
	// case every lookup misses and yields the Unknown location marker.
	GeoIP *GeoIP

	// EntityCacheTTL is the TTL for the entity metadata cache.
	EntityCacheTTL time.Duration

	// Resolver looks up entity metadata on cache miss. Defaults to
	// NoopResolver.
	Resolver MetadataResolver

	// SensitivityRules is the declarative classification table.
	// Defaults to DefaultSensitivityRules.
	SensitivityRules []SensitivityRule

	Logger *slog.Logger
}

// Enricher performs the best-effort enrichment steps of spec.md §4.3 in
// order: geo lookup, entity metadata, device fingerprint, sensitivity
// classification, PII anonymization.
type Enricher struct {
	geo        *GeoIP
	entities   *EntityCache
	classifier *Classifier
	logger     *slog.Logger
}

// New creates an Enricher.
func New(cfg Config) *Enricher {
	return &Enricher{
		geo:        cfg.GeoIP,
		entities:   NewEntityCache(cfg.EntityCacheTTL, cfg.Resolver),
		classifier: NewClassifier(cfg.SensitivityRules),
		logger:     logging.Default(cfg.Logger).With("component", "enricher"),
	}
}

// Enrich adds context to event in place and returns it. Every step is
// best-effort: a step that cannot complete is skipped, leaving that
// aspect of the event unchanged, and enrichment continues with the next
// step (spec.md §4.3).
func (e *Enricher) Enrich(ctx context.Context, event schema.UnifiedEvent) schema.UnifiedEvent {
	event = e.enrichGeo(ctx, event)
	event = e.enrichEntity(ctx, event)
	event = e.enrichDevice(event)
	event = e.enrichSensitivity(event)
	event = e.anonymize(event)
	return event
}

func (e *Enricher) enrichGeo(ctx context.Context, event schema.UnifiedEvent) schema.UnifiedEvent {
	if event.SourceIP == "" || event.Location != nil {
		return event
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("geo lookup panicked, skipping", "panic", r)
			}
		}()
		result := e.geo.Lookup(ctx, event.SourceIP)
		event.Location = &schema.Location{
			City:        result.City,
			Country:     result.Country,
			CountryCode: result.CountryCode,
			Latitude:    result.Latitude,
			Longitude:   result.Longitude,
		}
	}()
	return event
}

func (e *Enricher) enrichEntity(ctx context.Context, event schema.UnifiedEvent) schema.UnifiedEvent {
	if event.EntityID == "" {
		return event
	}
	metadata, ok := e.entities.Lookup(ctx, event.EntityID)
	if !ok {
		return event
	}
	event.EntityMetadata = metadata
	return event
}

func (e *Enricher) enrichDevice(event schema.UnifiedEvent) schema.UnifiedEvent {
	if event.UserAgent == "" || event.Device != nil {
		return event
	}
	event.Device = ParseDevice(event.UserAgent)
	return event
}

func (e *Enricher) enrichSensitivity(event schema.UnifiedEvent) schema.UnifiedEvent {
	event.Resource.SensitivityLevel = e.classifier.Classify(
		event.Resource.Type, event.Resource.Endpoint, event.Resource.Service)
	return event
}

// anonymize is the final step: derives source_ip_anonymized. The raw
// SourceIP stays on the in-memory event; the storage writer persists only
// the anonymized form.
func (e *Enricher) anonymize(event schema.UnifiedEvent) schema.UnifiedEvent {
	if event.SourceIP != "" {
		event.SourceIPAnonymized = schema.AnonymizeIPv4(event.SourceIP)
	}
	return event
}
