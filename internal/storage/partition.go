package storage

import (
	"fmt"
	"time"

	"secureingest/internal/schema"
)

// partitionKey builds the object key for the partition (date, hour,
// source) under a given tier, matching spec.md §6's layout:
//
//	<tier>/date=<YYYY-MM-DD>/hour=<HH>/source=<source>/events.<ext>
func partitionKey(tier Tier, date string, hour int, source schema.SourceType) string {
	return fmt.Sprintf("%s/date=%s/hour=%02d/source=%s/events.mpz", tier, date, hour, source)
}

// groupByPartition splits a batch of events into one sub-batch per
// (date, hour, source) triple.
func groupByPartition(events []schema.UnifiedEvent) map[string][]schema.UnifiedEvent {
	groups := make(map[string][]schema.UnifiedEvent)
	for _, e := range events {
		date, hour, source := e.PartitionKey()
		key := partitionKey(Hot, date, hour, source)
		groups[key] = append(groups[key], e)
	}
	return groups
}

// datesInRange returns every calendar date (UTC, inclusive) touching
// [start, end].
func datesInRange(start, end time.Time) []string {
	start = start.UTC()
	end = end.UTC()
	var dates []string
	d := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	for !d.After(end) {
		dates = append(dates, d.Format("2006-01-02"))
		d = d.AddDate(0, 0, 1)
	}
	return dates
}
