package schema

import "errors"

// Normalization error classes, per spec.md §4.2 and §7.
var (
	// ErrUnknownSource is returned when a record's source_type tag is
	// missing or not one of the registered sources.
	ErrUnknownSource = errors.New("unknown or missing source_type")

	// ErrSchemaViolation is returned when a required source field is
	// missing or has the wrong shape.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrBadTimestamp is returned when the event timestamp cannot be
	// parsed to a concrete UTC instant. The normalizer must reject the
	// record rather than substitute a timestamp.
	ErrBadTimestamp = errors.New("unparseable timestamp")
)
