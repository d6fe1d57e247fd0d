package normalize

import (
	"fmt"

	"secureingest/internal/schema"
)

// mapIdentitySignin implements the identity_signin mapping rules of
// spec.md §4.2:
//
//	entity_id    <- principal name else user id
//	entity_type  = user
//	event_type   = authentication
//	event_subtype = "sign_in"
//	success      = (status error code is 0 or absent)
//	source_ip    <- address field
//	resource     = {type: application, id: app id, name: app display name}
//	location, device from nested blocks
//	risk fields preserved in source_specific
func mapIdentitySignin(fields map[string]any) (schema.UnifiedEvent, map[string]bool, error) {
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

	entityID := getString(fields, "user_principal_name")
	consumed["user_principal_name"] = true
	if entityID == "" {
		entityID = getString(fields, "user_id")
	}
	consumed["user_id"] = true
	if entityID == "" {
		return schema.UnifiedEvent{}, nil, schemaViolation("identity_signin", "user_principal_name/user_id")
	}

	ip, err := requireString(fields, "ip_address")
	if err != nil {
		return schema.UnifiedEvent{}, nil, err
	}
	consumed["ip_address"] = true

	success := true
	if status := getMap(fields, "status"); status != nil {
		consumed["status"] = true
		code := getNumber(status, "error_code")
		success = code == 0
	}

	event := schema.UnifiedEvent{
		EntityID:     entityID,
		EntityType:   schema.EntityUser,
		EventType:    schema.EventAuthentication,
		EventSubtype: "sign_in",
		Timestamp:    ts,
		Success:      success,
		SourceIP:     ip,
		Resource: schema.Resource{
			Type: "application",
			ID:   getString(fields, "app_id"),
			Name: getString(fields, "app_display_name"),
		},
	}
	consumed["app_id"] = true
	consumed["app_display_name"] = true

	if !success {
		if status := getMap(fields, "status"); status != nil {
			event.ErrorCode = fmt.Sprintf("%v", status["error_code"])
			event.ErrorMessage = getString(status, "failure_reason")
		}
	}

	if loc := getMap(fields, "location"); loc != nil {
		consumed["location"] = true
		event.Location = &schema.Location{
			City:        getString(loc, "city"),
			Country:     getString(loc, "country"),
			CountryCode: getString(loc, "country_code"),
			Latitude:    getNumber(loc, "latitude"),
			Longitude:   getNumber(loc, "longitude"),
		}
	}

	if dev := getMap(fields, "device_detail"); dev != nil {
		consumed["device_detail"] = true
		event.Device = &schema.Device{
			DeviceID: getString(dev, "device_id"),
			OS:       getString(dev, "operating_system"),
			Browser:  getString(dev, "browser"),
			IsMobile: getBool(dev, "is_mobile", false),
		}
	}

	if ua := getString(fields, "user_agent"); ua != "" {
		event.UserAgent = ua
		consumed["user_agent"] = true
	}

	if sess := getString(fields, "session_id"); sess != "" {
		event.SessionID = sess
		consumed["session_id"] = true
	}

	return event, consumed, nil
}

func schemaViolation(source, field string) error {
	return fmt.Errorf("%w: source %q missing required field %q", schema.ErrSchemaViolation, source, field)
}
