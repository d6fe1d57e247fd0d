// Package schema defines the canonical unified event type, the raw
// per-source ingress shapes, and pure derivations (temporal fields,
// IP anonymization) over them. The package performs no I/O.
package schema

import "time"

// SourceType is the closed set of supported ingress record shapes.
type SourceType string

const (
	SourceIdentitySignin SourceType = "identity_signin"
	SourceCloudAudit     SourceType = "cloud_audit"
	SourceAPIAccess      SourceType = "api_access"
)

// Valid reports whether s is one of the registered source types.
func (s SourceType) Valid() bool {
	switch s {
	case SourceIdentitySignin, SourceCloudAudit, SourceAPIAccess:
		return true
	default:
		return false
	}
}

// EntityType classifies the principal behind an event.
type EntityType string

const (
	EntityUser    EntityType = "user"
	EntityService EntityType = "service"
	EntityDevice  EntityType = "device"
	EntityUnknown EntityType = "unknown"
)

// EventType classifies what kind of action the event represents.
type EventType string

const (
	EventAuthentication    EventType = "authentication"
	EventAuthorization     EventType = "authorization"
	EventAPICall           EventType = "api_call"
	EventCloudAPI          EventType = "cloud_api"
	EventDataAccess        EventType = "data_access"
	EventNetworkConnection EventType = "network_connection"
	EventAdminAction       EventType = "admin_action"
)

// RawRecord is an opaque keyed collection ingested over HTTP, tagged with
// its source type. Field is validated against a source-specific shape on
// ingress (see Validate).
type RawRecord struct {
	SourceType SourceType
	Fields     map[string]any
}

// QueuedItem is a RawRecord plus server-stamped metadata, as it sits in
// the hybrid queue. It is opaque to the queue itself.
type QueuedItem struct {
	SourceType         SourceType `msgpack:"source_type"`
	Fields             map[string]any `msgpack:"fields"`
	IngestionTimestamp time.Time  `msgpack:"ingestion_timestamp"`
	IngestionID        string     `msgpack:"ingestion_id"`
}

// Location is enrichment-derived geographic metadata.
type Location struct {
	City        string  `msgpack:"city"`
	Country     string  `msgpack:"country"`
	CountryCode string  `msgpack:"country_code"`
	Latitude    float64 `msgpack:"latitude"`
	Longitude   float64 `msgpack:"longitude"`
}

// Device is enrichment-derived device/user-agent metadata.
type Device struct {
	DeviceID string `msgpack:"device_id"`
	OS       string `msgpack:"os"`
	Browser  string `msgpack:"browser"`
	IsMobile bool   `msgpack:"is_mobile"`
	IsBot    bool   `msgpack:"is_bot"`
}

// Resource describes the target of the event.
type Resource struct {
	Type             string `msgpack:"type"`
	ID               string `msgpack:"id"`
	Name             string `msgpack:"name"`
	Method           string `msgpack:"method"`
	Endpoint         string `msgpack:"endpoint"`
	Service          string `msgpack:"service"`
	SensitivityLevel int    `msgpack:"sensitivity_level"`
}

// EntityMetadata is enrichment-derived context about the principal.
type EntityMetadata struct {
	Department    string `msgpack:"department"`
	Role          string `msgpack:"role"`
	IsAdmin       bool   `msgpack:"is_admin"`
	IsPrivileged  bool   `msgpack:"is_privileged"`
}

// Temporal is a pure function of Timestamp; see DeriveTemporal.
type Temporal struct {
	HourOfDay       int    `msgpack:"hour_of_day"`
	DayOfWeek       int    `msgpack:"day_of_week"`
	IsWeekend       bool   `msgpack:"is_weekend"`
	IsBusinessHours bool   `msgpack:"is_business_hours"`
	WeekOfYear      int    `msgpack:"week_of_year"`
	Month           int    `msgpack:"month"`
}

// Performance holds request-timing enrichment, populated for api_access.
type Performance struct {
	LatencyMS        int64 `msgpack:"latency_ms"`
	RequestSizeBytes int64 `msgpack:"request_size_bytes"`
	ResponseSizeBytes int64 `msgpack:"response_size_bytes"`
}

// UnifiedEvent is the canonical record every storage row contains.
// Field groups mirror spec.md §3 (Identity, Event, Network, Enrichment, Meta).
type UnifiedEvent struct {
	// Identity
	EntityID   string     `msgpack:"entity_id"`
	EntityType EntityType `msgpack:"entity_type"`
	SessionID  string     `msgpack:"session_id,omitempty"`

	// Event
	EventType    EventType `msgpack:"event_type"`
	EventSubtype string    `msgpack:"event_subtype"`
	Timestamp    time.Time `msgpack:"timestamp"`
	Success      bool      `msgpack:"success"`
	ErrorCode    string    `msgpack:"error_code,omitempty"`
	ErrorMessage string    `msgpack:"error_message,omitempty"`

	// Network
	SourceIP           string `msgpack:"source_ip"`
	SourceIPAnonymized string `msgpack:"source_ip_anonymized"`
	UserAgent          string `msgpack:"user_agent,omitempty"`

	// Enrichment
	Location       *Location       `msgpack:"location,omitempty"`
	Device         *Device         `msgpack:"device,omitempty"`
	Resource       Resource        `msgpack:"resource"`
	EntityMetadata *EntityMetadata `msgpack:"entity_metadata,omitempty"`
	Temporal       Temporal        `msgpack:"temporal"`
	Performance    *Performance    `msgpack:"performance,omitempty"`

	// Meta
	SourceSystem        SourceType        `msgpack:"source_system"`
	IngestionTimestamp  time.Time         `msgpack:"ingestion_timestamp"`
	ProcessingTimestamp time.Time         `msgpack:"processing_timestamp"`
	RawEventID          string            `msgpack:"raw_event_id"`
	PipelineVersion     string            `msgpack:"pipeline_version"`
	SourceSpecific      map[string]string `msgpack:"source_specific,omitempty"`
}

// PartitionKey returns the (date, hour, source) triple a row belongs to.
// date and hour are derived from Timestamp (UTC), per spec.md §3.
func (e UnifiedEvent) PartitionKey() (date string, hour int, source SourceType) {
	t := e.Timestamp.UTC()
	return t.Format("2006-01-02"), t.Hour(), e.SourceSystem
}

// DeriveTemporal computes the Temporal field group from t, a pure function
// per spec.md's invariant. t is converted to UTC first, so any location
// is accepted.
func DeriveTemporal(t time.Time) Temporal {
	t = t.UTC()
	_, week := t.ISOWeek()
	// Monday=0 .. Sunday=6, so the invariant is_weekend ⇔ day_of_week >= 5 holds
	// (Go's time.Weekday is Sunday=0, which would put Friday at 5).
	dow := (int(t.Weekday()) + 6) % 7
	hour := t.Hour()
	return Temporal{
		HourOfDay:       hour,
		DayOfWeek:       dow,
		IsWeekend:       dow >= 5,
		IsBusinessHours: hour >= 9 && hour < 17,
		WeekOfYear:      week,
		Month:           int(t.Month()),
	}
}
