// Package storage implements the tiered columnar storage writer of
// spec.md §4.4: partitioning unified events by (date, hour, source),
// encoding each partition as a compressed columnar file, and migrating
// partitions between hot/warm/cold tiers by age.
package storage

import "time"

// Tier is one of hot/warm/cold: a physical key prefix plus a
// compression/retention policy.
type Tier string

const (
	Hot  Tier = "hot"
	Warm Tier = "warm"
	Cold Tier = "cold"
)

// RetentionConfig configures tier ages for read selection and the
// lifecycle migration job (spec.md §6 config surface).
type RetentionConfig struct {
	HotRetention  time.Duration
	WarmRetention time.Duration
	ColdRetention time.Duration
}

// DefaultRetention matches spec.md's illustrative retention windows.
var DefaultRetention = RetentionConfig{
	HotRetention:  7 * 24 * time.Hour,
	WarmRetention: 30 * 24 * time.Hour,
	ColdRetention: 365 * 24 * time.Hour,
}

// tiersForRange implements the read-side tier policy of spec.md §4.4:
//
//	include hot  iff end   >= now - hot_retention
//	include warm iff start <  now - hot_retention  AND end >= now - warm_retention
//	include cold iff start <  now - warm_retention AND end >= now - cold_retention
//
// If none match, it defaults to hot.
func tiersForRange(start, end, now time.Time, r RetentionConfig) []Tier {
	hotCutoff := now.Add(-r.HotRetention)
	warmCutoff := now.Add(-r.WarmRetention)
	coldCutoff := now.Add(-r.ColdRetention)

	var tiers []Tier
	if !end.Before(hotCutoff) {
		tiers = append(tiers, Hot)
	}
	if start.Before(hotCutoff) && !end.Before(warmCutoff) {
		tiers = append(tiers, Warm)
	}
	if start.Before(warmCutoff) && !end.Before(coldCutoff) {
		tiers = append(tiers, Cold)
	}
	if len(tiers) == 0 {
		tiers = append(tiers, Hot)
	}
	return tiers
}
