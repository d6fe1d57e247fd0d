package normalize

import (
	"testing"
	"time"

	"secureingest/internal/schema"

	"github.com/stretchr/testify/require"
)

func TestNormalize_IdentitySignin(t *testing.T) {
	item := schema.QueuedItem{
		SourceType:         schema.SourceIdentitySignin,
		IngestionTimestamp: time.Now().UTC(),
		IngestionID:        "1",
		Fields: map[string]any{
			"timestamp":           "2025-01-08T10:00:00Z",
			"user_principal_name": "alice@example.com",
			"ip_address":          "192.168.1.50",
			"app_id":              "app-1",
			"app_display_name":    "Corp Portal",
			"status":              map[string]any{"error_code": float64(0)},
			"location": map[string]any{
				"city": "Seattle", "country": "United States", "country_code": "US",
			},
			"risk_level": "low",
		},
	}

	event, err := Normalize(item)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", event.EntityID)
	require.Equal(t, schema.EntityUser, event.EntityType)
	require.Equal(t, schema.EventAuthentication, event.EventType)
	require.Equal(t, "sign_in", event.EventSubtype)
	require.True(t, event.Success)
	require.Equal(t, "192.168.1.50", event.SourceIP)
	require.Equal(t, "app-1", event.Resource.ID)
	require.NotNil(t, event.Location)
	require.Equal(t, "Seattle", event.Location.City)
	require.Equal(t, "low", event.SourceSpecific["risk_level"])
	require.Equal(t, 10, event.Temporal.HourOfDay)
}

func TestNormalize_IdentitySignin_BadTimestamp(t *testing.T) {
	item := schema.QueuedItem{
		SourceType: schema.SourceIdentitySignin,
		Fields: map[string]any{
			"timestamp":  "not-a-time",
			"ip_address": "1.2.3.4",
		},
	}
	_, err := Normalize(item)
	require.ErrorIs(t, err, schema.ErrBadTimestamp)
}

func TestNormalize_CloudAudit(t *testing.T) {
	item := schema.QueuedItem{
		SourceType: schema.SourceCloudAudit,
		Fields: map[string]any{
			"event_time":   "2025-01-08T10:00:00Z",
			"event_name":   "GetObject",
			"event_source": "s3.amazonaws.com",
			"username":     "bob",
			"user_identity": map[string]any{
				"type": "IAMUser",
			},
			"resources": []any{
				map[string]any{"arn": "arn:aws:s3:::bucket/key"},
			},
		},
	}
	event, err := Normalize(item)
	require.NoError(t, err)
	require.Equal(t, "bob", event.EntityID)
	require.Equal(t, schema.EntityUser, event.EntityType)
	require.Equal(t, schema.EventCloudAPI, event.EventType)
	require.Equal(t, "GetObject", event.EventSubtype)
	require.Equal(t, "s3", event.Resource.Service)
	require.Equal(t, "arn:aws:s3:::bucket/key", event.Resource.ID)
	require.True(t, event.Success)
}

func TestNormalize_CloudAudit_ServiceEntity(t *testing.T) {
	item := schema.QueuedItem{
		SourceType: schema.SourceCloudAudit,
		Fields: map[string]any{
			"event_time":   "2025-01-08T10:00:00Z",
			"event_name":   "AssumeRole",
			"event_source": "sts.amazonaws.com",
			"principal_id": "AROA123:session",
			"user_identity": map[string]any{
				"type": "AssumedRole",
			},
			"error_code": "AccessDenied",
		},
	}
	event, err := Normalize(item)
	require.NoError(t, err)
	require.Equal(t, schema.EntityService, event.EntityType)
	require.False(t, event.Success)
	require.Equal(t, "AccessDenied", event.ErrorCode)
}

func TestNormalize_APIAccess(t *testing.T) {
	item := schema.QueuedItem{
		SourceType: schema.SourceAPIAccess,
		Fields: map[string]any{
			"timestamp":   "2025-01-08T10:00:00Z",
			"user_id":     "svc-billing",
			"method":      "GET",
			"endpoint":    "/v1/invoices",
			"status_code": float64(200),
			"latency_ms":  float64(42),
		},
	}
	event, err := Normalize(item)
	require.NoError(t, err)
	require.Equal(t, schema.EntityService, event.EntityType)
	require.Equal(t, schema.EventAPICall, event.EventType)
	require.True(t, event.Success)
	require.NotNil(t, event.Performance)
	require.EqualValues(t, 42, event.Performance.LatencyMS)
}

func TestNormalize_APIAccess_UserEntityAndFailure(t *testing.T) {
	item := schema.QueuedItem{
		SourceType: schema.SourceAPIAccess,
		Fields: map[string]any{
			"timestamp":   "2025-01-08T10:00:00Z",
			"user_id":     "alice@example.com",
			"method":      "POST",
			"endpoint":    "/v1/widgets",
			"status_code": float64(500),
		},
	}
	event, err := Normalize(item)
	require.NoError(t, err)
	require.Equal(t, schema.EntityUser, event.EntityType)
	require.False(t, event.Success)
	require.Equal(t, "500", event.ErrorCode)
}

func TestNormalize_UnknownSource(t *testing.T) {
	_, err := Normalize(schema.QueuedItem{SourceType: "bogus"})
	require.ErrorIs(t, err, schema.ErrUnknownSource)
}
