// Package enrich adds contextual metadata to a normalized event: geo
// lookup, entity profile, device fingerprint, sensitivity classification,
// and PII anonymization (spec.md §4.3). Every step is best-effort: a
// step's failure is logged and skipped, leaving that aspect of the event
// unchanged rather than aborting enrichment.
package enrich

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/oschwald/maxminddb-golang"
)

// GeoIP resolves an IP address to geographic metadata via a MaxMind MMDB
// file. Safe for concurrent use; the reader is swapped atomically by
// Reload, so a hot-reload (see geo_watch.go) never races with concurrent
// lookups.
type GeoIP struct {
	reader atomic.Pointer[maxminddb.Reader]
}

type mmdbRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
		Names   map[string]string `maxminddb:"names"`
	} `maxminddb:"country"`
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
	Location struct {
		Latitude  float64 `maxminddb:"latitude"`
		Longitude float64 `maxminddb:"longitude"`
	} `maxminddb:"location"`
}

// NewGeoIP opens the MMDB file at path.
func NewGeoIP(path string) (*GeoIP, error) {
	r, err := maxminddb.Open(path)
	if err != nil {
		return nil, err
	}
	g := &GeoIP{}
	g.reader.Store(r)
	return g, nil
}

// Reload reopens the MMDB file at path and swaps it in atomically,
// closing the previous reader only once no in-flight Lookup can still
// observe it (best-effort: a lookup racing the swap either resolves
// against the old or the new file, both valid).
func (g *GeoIP) Reload(path string) error {
	r, err := maxminddb.Open(path)
	if err != nil {
		return err
	}
	old := g.reader.Swap(r)
	if old != nil {
		return old.Close()
	}
	return nil
}

// GeoResult is the outcome of a geo lookup, including the "Unknown"
// marker spec.md §4.3 requires on miss rather than an absent location.
type GeoResult struct {
	City        string
	Country     string
	CountryCode string
	Latitude    float64
	Longitude   float64
}

// UnknownGeo is emitted when the IP cannot be resolved, per spec.md's
// requirement to mark misses explicitly rather than leave location absent.
var UnknownGeo = GeoResult{City: "Unknown", Country: "Unknown", CountryCode: "ZZ"}

// Lookup resolves ip to geographic metadata. Never returns an error; a
// nil reader or lookup miss yields UnknownGeo.
func (g *GeoIP) Lookup(_ context.Context, ip string) GeoResult {
	if g == nil {
		return UnknownGeo
	}
	reader := g.reader.Load()
	if reader == nil {
		return UnknownGeo
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return UnknownGeo
	}

	var rec mmdbRecord
	if err := reader.Lookup(parsed, &rec); err != nil {
		return UnknownGeo
	}

	city := rec.City.Names["en"]
	country := rec.Country.Names["en"]
	if city == "" && country == "" && rec.Country.ISOCode == "" {
		return UnknownGeo
	}

	return GeoResult{
		City:        orUnknown(city),
		Country:     orUnknown(country),
		CountryCode: orUnknownCode(rec.Country.ISOCode),
		Latitude:    rec.Location.Latitude,
		Longitude:   rec.Location.Longitude,
	}
}

// Close releases the underlying MMDB reader.
func (g *GeoIP) Close() error {
	if g == nil {
		return nil
	}
	reader := g.reader.Load()
	if reader == nil {
		return nil
	}
	return reader.Close()
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func orUnknownCode(s string) string {
	if s == "" {
		return "ZZ"
	}
	return s
}
