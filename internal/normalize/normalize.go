// Package normalize maps a raw ingress record of known source_type into
// the canonical UnifiedEvent, per spec.md §4.2. It performs no I/O.
package normalize

import (
	"fmt"
	"time"

	"secureingest/internal/schema"
)

// Version is embedded in every normalized event's PipelineVersion field.
const Version = "1.0.0"

// sourceMapper maps a raw record's fields (already known to be of a
// given source type) into a partially-populated UnifiedEvent. Temporal,
// ProcessingTimestamp, SourceSpecific and meta fields are filled in by
// Normalize after the mapper returns.
type sourceMapper func(fields map[string]any) (schema.UnifiedEvent, map[string]bool, error)

// mappers is the dispatch table keyed by source_type.
var mappers = map[schema.SourceType]sourceMapper{
	schema.SourceIdentitySignin: mapIdentitySignin,
	schema.SourceCloudAudit:     mapCloudAudit,
	schema.SourceAPIAccess:      mapAPIAccess,
}

// Normalize maps a raw record (already enqueued, with server-stamped
// ingestion metadata) into a UnifiedEvent.
//
// Failure modes (spec.md §4.2):
//   - schema.ErrUnknownSource: tag missing or unregistered.
//   - schema.ErrSchemaViolation: a required source field is missing or
//     ill-typed.
//   - schema.ErrBadTimestamp: the timestamp cannot be parsed.
func Normalize(item schema.QueuedItem) (schema.UnifiedEvent, error) {
	mapper, ok := mappers[item.SourceType]
	if !ok {
		return schema.UnifiedEvent{}, fmt.Errorf("%w: %q", schema.ErrUnknownSource, item.SourceType)
	}

	event, consumed, err := mapper(item.Fields)
	if err != nil {
		return schema.UnifiedEvent{}, err
	}

	event.SourceSystem = item.SourceType
	event.IngestionTimestamp = item.IngestionTimestamp
	event.RawEventID = item.IngestionID
	event.PipelineVersion = Version
	event.Temporal = schema.DeriveTemporal(event.Timestamp)
	event.SourceSpecific = residualFields(item.Fields, consumed)
	event.ProcessingTimestamp = time.Now().UTC()

	return event, nil
}

// residualFields stringifies every field not consumed by the canonical
// mapping, preserving it in source_specific per spec.md §3/§4.2.
func residualFields(fields map[string]any, consumed map[string]bool) map[string]string {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]string)
	for k, v := range fields {
		if consumed[k] {
			continue
		}
		out[k] = fmt.Sprintf("%v", v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
