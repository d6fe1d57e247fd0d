package normalize

import (
	"strings"

	"secureingest/internal/schema"
)

// mapCloudAudit implements the cloud_audit mapping rules of spec.md §4.2:
//
//	entity_id    <- username, else principal id, else last segment of
//	                the resource identifier
//	entity_type  inferred from identity kind (assumed-role/service/
//	                federated -> service; user/root -> user; else unknown)
//	event_type   = cloud_api
//	event_subtype <- event name
//	resource     = {type: cloud_resource, service: source stripped of
//	                cloud suffix, method: event name, id: first
//	                associated resource identifier if present}
//	success      = (error code absent)
func mapCloudAudit(fields map[string]any) (schema.UnifiedEvent, map[string]bool, error) {
	consumed := map[string]bool{}

	rawTS, err := requireString(fields, "event_time")
	if err != nil {
		return schema.UnifiedEvent{}, nil, err
	}
	consumed["event_time"] = true
	ts, err := parseTimestamp(rawTS)
	if err != nil {
		return schema.UnifiedEvent{}, nil, err
	}

	eventName, err := requireString(fields, "event_name")
	if err != nil {
		return schema.UnifiedEvent{}, nil, err
	}
	consumed["event_name"] = true

	eventSource, err := requireString(fields, "event_source")
	if err != nil {
		return schema.UnifiedEvent{}, nil, err
	}
	consumed["event_source"] = true

	resourceID := selectFirstString("$.resources[0].arn", fields)
	consumed["resources"] = true

	entityID := getString(fields, "username")
	consumed["username"] = true
	if entityID == "" {
		entityID = getString(fields, "principal_id")
	}
	consumed["principal_id"] = true
	if entityID == "" && resourceID != "" {
		parts := strings.Split(resourceID, "/")
		entityID = parts[len(parts)-1]
	}
	if entityID == "" {
		return schema.UnifiedEvent{}, nil, schemaViolation("cloud_audit", "username/principal_id/resources[0].arn")
	}

	entityType := schema.EntityUnknown
	if identity := getMap(fields, "user_identity"); identity != nil {
		consumed["user_identity"] = true
		switch strings.ToLower(getString(identity, "type")) {
		case "assumedrole", "service", "federateduser", "awsservice":
			entityType = schema.EntityService
		case "iamuser", "user", "root":
			entityType = schema.EntityUser
		}
	}

	success := true
	if ec := getString(fields, "error_code"); ec != "" {
		consumed["error_code"] = true
		success = false
	}

	event := schema.UnifiedEvent{
		EntityID:   entityID,
		EntityType: entityType,
		EventType:  schema.EventCloudAPI,
		EventSubtype: eventName,
		Timestamp:  ts,
		Success:    success,
		SourceIP:   getString(fields, "source_ip"),
		Resource: schema.Resource{
			Type:    "cloud_resource",
			ID:      resourceID,
			Method:  eventName,
			Service: stripCloudSuffix(eventSource),
		},
	}
	consumed["source_ip"] = true

	if !success {
		event.ErrorCode = getString(fields, "error_code")
		event.ErrorMessage = getString(fields, "error_message")
		consumed["error_message"] = true
	}

	return event, consumed, nil
}

// stripCloudSuffix removes the trailing cloud-provider domain suffix from
// an event source (e.g. "s3.amazonaws.com" -> "s3").
func stripCloudSuffix(source string) string {
	if idx := strings.Index(source, "."); idx >= 0 {
		return source[:idx]
	}
	return source
}
