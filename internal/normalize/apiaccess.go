package normalize

import (
	"strconv"
	"strings"

	"secureingest/internal/schema"
)

// mapAPIAccess implements the api_access mapping rules of spec.md §4.2:
//
//	entity_type  = user if user_id contains '@', else service
//	event_type   = api_call
//	event_subtype <- HTTP method
//	resource     = {type: api_endpoint, endpoint, method}
//	success      = (200 <= status < 300)
//	performance  populated from latency and sizes
func mapAPIAccess(fields map[string]any) (schema.UnifiedEvent, map[string]bool, error) {
	consumed := map[string]bool{}

	rawTS, err := requireString(fields, "timestamp")
	if err != nil {
		return schema.UnifiedEvent{}, nil, err
	}
	consumed["timestamp"] = true
	ts, err := parseTimestamp(rawTS)
	if err != nil {
		return schema.UnifiedEvent{}, nil, err
	}

	method, err := requireString(fields, "method")
	if err != nil {
		return schema.UnifiedEvent{}, nil, err
	}
	consumed["method"] = true

	endpoint, err := requireString(fields, "endpoint")
	if err != nil {
		return schema.UnifiedEvent{}, nil, err
	}
	consumed["endpoint"] = true

	if _, ok := fields["status_code"]; !ok {
		return schema.UnifiedEvent{}, nil, schemaViolation("api_access", "status_code")
	}
	consumed["status_code"] = true
	status := int(getNumber(fields, "status_code"))

	entityID := getString(fields, "user_id")
	consumed["user_id"] = true
	entityType := schema.EntityService
	if containsAt(entityID) {
		entityType = schema.EntityUser
	}

	event := schema.UnifiedEvent{
		EntityID:     entityID,
		EntityType:   entityType,
		EventType:    schema.EventAPICall,
		EventSubtype: method,
		Timestamp:    ts,
		Success:      status >= 200 && status < 300,
		SourceIP:     getString(fields, "source_ip"),
		Resource: schema.Resource{
			Type:     "api_endpoint",
			Endpoint: endpoint,
			Method:   method,
		},
	}
	consumed["source_ip"] = true

	if !event.Success {
		event.ErrorCode = strconv.Itoa(status)
	}

	if ua := getString(fields, "user_agent"); ua != "" {
		event.UserAgent = ua
		consumed["user_agent"] = true
	}

	hasLatency := fields["latency_ms"] != nil
	hasReqSize := fields["request_size_bytes"] != nil
	hasRespSize := fields["response_size_bytes"] != nil
	if hasLatency || hasReqSize || hasRespSize {
		event.Performance = &schema.Performance{
			LatencyMS:         int64(getNumber(fields, "latency_ms")),
			RequestSizeBytes:  int64(getNumber(fields, "request_size_bytes")),
			ResponseSizeBytes: int64(getNumber(fields, "response_size_bytes")),
		}
		consumed["latency_ms"] = true
		consumed["request_size_bytes"] = true
		consumed["response_size_bytes"] = true
	}

	return event, consumed, nil
}

func containsAt(s string) bool {
	return strings.Contains(s, "@")
}
