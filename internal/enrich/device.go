package enrich

import (
	"secureingest/internal/schema"

	"github.com/mileusna/useragent"
)

// ParseDevice fingerprints a user-agent string into device metadata
// using declarative UA-parsing rules. Undetected fields remain absent
// (zero values), per spec.md §4.3.
func ParseDevice(userAgent string) *schema.Device {
	if userAgent == "" {
		return nil
	}
	ua := useragent.Parse(userAgent)
	return &schema.Device{
		OS:       ua.OS,
		Browser:  ua.Name,
		IsMobile: ua.Mobile,
		IsBot:    ua.Bot,
	}
}
