package normalize

import (
	"fmt"
	"time"

	"secureingest/internal/schema"
)

// timestampLayouts are tried in order when the primary RFC3339 parse
// fails. The fallback chain (a short, ordered list of common log
// timestamp shapes) mirrors the approach gastrolog's digester/timestamp
// package uses for source-timestamp extraction, adapted here to return
// an error instead of silently passing the record through unchanged —
// the normalizer must reject unparseable timestamps, not substitute one.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999Z",
	"2006-01-02 15:04:05.999999Z07:00",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
}

// parseTimestamp parses raw into a concrete UTC instant. It fails with
// schema.ErrBadTimestamp rather than substituting a value when no known
// layout matches, per spec.md §3's invariant.
func parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: empty timestamp", schema.ErrBadTimestamp)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", schema.ErrBadTimestamp, raw)
}
