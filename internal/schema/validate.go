package schema

import "fmt"

// requiredFields lists the top-level keys that must be present (and
// non-nil) in a raw record's Fields map for its source type. This is the
// ingress-time shape check (spec.md §7: "Validation ... surfaced as 422
// at ingress; never enqueued"), distinct from and stricter-free compared
// to the normalizer's own field extraction, which may fail later for
// semantic reasons (e.g. an unparseable timestamp) that a presence check
// cannot catch.
var requiredFields = map[SourceType][]string{
	SourceIdentitySignin: {"timestamp", "ip_address"},
	SourceCloudAudit:     {"event_time", "event_name", "event_source"},
	SourceAPIAccess:      {"timestamp", "method", "endpoint", "status_code"},
}

// Validate checks a raw record's source_type and required-field shape.
// It never inspects field values beyond presence; type and semantic
// checks happen in the normalizer.
func Validate(raw RawRecord) error {
	if !raw.SourceType.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownSource, raw.SourceType)
	}

	for _, key := range requiredFields[raw.SourceType] {
		v, ok := raw.Fields[key]
		if !ok || v == nil {
			return fmt.Errorf("%w: missing required field %q for source %q", ErrSchemaViolation, key, raw.SourceType)
		}
	}
	return nil
}
