package storage

import (
	"time"

	"secureingest/internal/schema"

	"github.com/vmihailenco/msgpack/v5"
)

// table is the columnar on-disk representation of a batch of unified
// events belonging to one partition: one slice per field instead of one
// struct per row, so per-column scans (a downstream reader filtering on
// a single field) do not have to deserialize unrelated columns.
type table struct {
	EntityID     []string           `msgpack:"entity_id"`
	EntityType   []schema.EntityType `msgpack:"entity_type"`
	SessionID    []string           `msgpack:"session_id"`

	EventType    []schema.EventType `msgpack:"event_type"`
	EventSubtype []string           `msgpack:"event_subtype"`
	Timestamp    []time.Time        `msgpack:"timestamp"`
	Success      []bool             `msgpack:"success"`
	ErrorCode    []string           `msgpack:"error_code"`
	ErrorMessage []string           `msgpack:"error_message"`

	SourceIPAnonymized []string `msgpack:"source_ip_anonymized"`
	UserAgent          []string `msgpack:"user_agent"`

	HasLocation []bool    `msgpack:"has_location"`
	LocCity     []string  `msgpack:"loc_city"`
	LocCountry  []string  `msgpack:"loc_country"`
	LocCC       []string  `msgpack:"loc_cc"`
	LocLat      []float64 `msgpack:"loc_lat"`
	LocLon      []float64 `msgpack:"loc_lon"`

	HasDevice []bool   `msgpack:"has_device"`
	DevID     []string `msgpack:"dev_id"`
	DevOS     []string `msgpack:"dev_os"`
	DevBrowser []string `msgpack:"dev_browser"`
	DevMobile []bool   `msgpack:"dev_mobile"`
	DevBot    []bool   `msgpack:"dev_bot"`

	ResType    []string `msgpack:"res_type"`
	ResID      []string `msgpack:"res_id"`
	ResName    []string `msgpack:"res_name"`
	ResMethod  []string `msgpack:"res_method"`
	ResEndpoint []string `msgpack:"res_endpoint"`
	ResService []string `msgpack:"res_service"`
	ResSensitivity []int `msgpack:"res_sensitivity"`

	HasEntityMeta []bool   `msgpack:"has_entity_meta"`
	Department    []string `msgpack:"department"`
	Role          []string `msgpack:"role"`
	IsAdmin       []bool   `msgpack:"is_admin"`
	IsPrivileged  []bool   `msgpack:"is_privileged"`

	HourOfDay       []int  `msgpack:"hour_of_day"`
	DayOfWeek       []int  `msgpack:"day_of_week"`
	IsWeekend       []bool `msgpack:"is_weekend"`
	IsBusinessHours []bool `msgpack:"is_business_hours"`
	WeekOfYear      []int  `msgpack:"week_of_year"`
	Month           []int  `msgpack:"month"`

	HasPerf     []bool  `msgpack:"has_perf"`
	LatencyMS   []int64 `msgpack:"latency_ms"`
	ReqBytes    []int64 `msgpack:"req_bytes"`
	RespBytes   []int64 `msgpack:"resp_bytes"`

	SourceSystem        []schema.SourceType `msgpack:"source_system"`
	IngestionTimestamp  []time.Time         `msgpack:"ingestion_timestamp"`
	ProcessingTimestamp []time.Time         `msgpack:"processing_timestamp"`
	RawEventID          []string            `msgpack:"raw_event_id"`
	PipelineVersion     []string            `msgpack:"pipeline_version"`
	SourceSpecific      []map[string]string `msgpack:"source_specific"`
}

func (t *table) Len() int { return len(t.EntityID) }

// toTable transposes a row-oriented batch into a columnar table.
func toTable(events []schema.UnifiedEvent) *table {
	t := &table{}
	for _, e := range events {
		t.EntityID = append(t.EntityID, e.EntityID)
		t.EntityType = append(t.EntityType, e.EntityType)
		t.SessionID = append(t.SessionID, e.SessionID)

		t.EventType = append(t.EventType, e.EventType)
		t.EventSubtype = append(t.EventSubtype, e.EventSubtype)
		t.Timestamp = append(t.Timestamp, e.Timestamp)
		t.Success = append(t.Success, e.Success)
		t.ErrorCode = append(t.ErrorCode, e.ErrorCode)
		t.ErrorMessage = append(t.ErrorMessage, e.ErrorMessage)

		t.SourceIPAnonymized = append(t.SourceIPAnonymized, e.SourceIPAnonymized)
		t.UserAgent = append(t.UserAgent, e.UserAgent)

		if e.Location != nil {
			t.HasLocation = append(t.HasLocation, true)
			t.LocCity = append(t.LocCity, e.Location.City)
			t.LocCountry = append(t.LocCountry, e.Location.Country)
			t.LocCC = append(t.LocCC, e.Location.CountryCode)
			t.LocLat = append(t.LocLat, e.Location.Latitude)
			t.LocLon = append(t.LocLon, e.Location.Longitude)
		} else {
			t.HasLocation = append(t.HasLocation, false)
			t.LocCity = append(t.LocCity, "")
			t.LocCountry = append(t.LocCountry, "")
			t.LocCC = append(t.LocCC, "")
			t.LocLat = append(t.LocLat, 0)
			t.LocLon = append(t.LocLon, 0)
		}

		if e.Device != nil {
			t.HasDevice = append(t.HasDevice, true)
			t.DevID = append(t.DevID, e.Device.DeviceID)
			t.DevOS = append(t.DevOS, e.Device.OS)
			t.DevBrowser = append(t.DevBrowser, e.Device.Browser)
			t.DevMobile = append(t.DevMobile, e.Device.IsMobile)
			t.DevBot = append(t.DevBot, e.Device.IsBot)
		} else {
			t.HasDevice = append(t.HasDevice, false)
			t.DevID = append(t.DevID, "")
			t.DevOS = append(t.DevOS, "")
			t.DevBrowser = append(t.DevBrowser, "")
			t.DevMobile = append(t.DevMobile, false)
			t.DevBot = append(t.DevBot, false)
		}

		t.ResType = append(t.ResType, e.Resource.Type)
		t.ResID = append(t.ResID, e.Resource.ID)
		t.ResName = append(t.ResName, e.Resource.Name)
		t.ResMethod = append(t.ResMethod, e.Resource.Method)
		t.ResEndpoint = append(t.ResEndpoint, e.Resource.Endpoint)
		t.ResService = append(t.ResService, e.Resource.Service)
		t.ResSensitivity = append(t.ResSensitivity, e.Resource.SensitivityLevel)

		if e.EntityMetadata != nil {
			t.HasEntityMeta = append(t.HasEntityMeta, true)
			t.Department = append(t.Department, e.EntityMetadata.Department)
			t.Role = append(t.Role, e.EntityMetadata.Role)
			t.IsAdmin = append(t.IsAdmin, e.EntityMetadata.IsAdmin)
			t.IsPrivileged = append(t.IsPrivileged, e.EntityMetadata.IsPrivileged)
		} else {
			t.HasEntityMeta = append(t.HasEntityMeta, false)
			t.Department = append(t.Department, "")
			t.Role = append(t.Role, "")
			t.IsAdmin = append(t.IsAdmin, false)
			t.IsPrivileged = append(t.IsPrivileged, false)
		}

		t.HourOfDay = append(t.HourOfDay, e.Temporal.HourOfDay)
		t.DayOfWeek = append(t.DayOfWeek, e.Temporal.DayOfWeek)
		t.IsWeekend = append(t.IsWeekend, e.Temporal.IsWeekend)
		t.IsBusinessHours = append(t.IsBusinessHours, e.Temporal.IsBusinessHours)
		t.WeekOfYear = append(t.WeekOfYear, e.Temporal.WeekOfYear)
		t.Month = append(t.Month, e.Temporal.Month)

		if e.Performance != nil {
			t.HasPerf = append(t.HasPerf, true)
			t.LatencyMS = append(t.LatencyMS, e.Performance.LatencyMS)
			t.ReqBytes = append(t.ReqBytes, e.Performance.RequestSizeBytes)
			t.RespBytes = append(t.RespBytes, e.Performance.ResponseSizeBytes)
		} else {
			t.HasPerf = append(t.HasPerf, false)
			t.LatencyMS = append(t.LatencyMS, 0)
			t.ReqBytes = append(t.ReqBytes, 0)
			t.RespBytes = append(t.RespBytes, 0)
		}

		t.SourceSystem = append(t.SourceSystem, e.SourceSystem)
		t.IngestionTimestamp = append(t.IngestionTimestamp, e.IngestionTimestamp)
		t.ProcessingTimestamp = append(t.ProcessingTimestamp, e.ProcessingTimestamp)
		t.RawEventID = append(t.RawEventID, e.RawEventID)
		t.PipelineVersion = append(t.PipelineVersion, e.PipelineVersion)
		t.SourceSpecific = append(t.SourceSpecific, e.SourceSpecific)
	}
	return t
}

// fromTable transposes a columnar table back into row-oriented events.
func fromTable(t *table) []schema.UnifiedEvent {
	events := make([]schema.UnifiedEvent, t.Len())
	for i := range events {
		e := schema.UnifiedEvent{
			EntityID:            t.EntityID[i],
			EntityType:           t.EntityType[i],
			SessionID:            t.SessionID[i],
			EventType:            t.EventType[i],
			EventSubtype:         t.EventSubtype[i],
			Timestamp:            t.Timestamp[i],
			Success:              t.Success[i],
			ErrorCode:            t.ErrorCode[i],
			ErrorMessage:         t.ErrorMessage[i],
			SourceIPAnonymized:   t.SourceIPAnonymized[i],
			UserAgent:            t.UserAgent[i],
			Resource: schema.Resource{
				Type:             t.ResType[i],
				ID:               t.ResID[i],
				Name:             t.ResName[i],
				Method:           t.ResMethod[i],
				Endpoint:         t.ResEndpoint[i],
				Service:          t.ResService[i],
				SensitivityLevel: t.ResSensitivity[i],
			},
			Temporal: schema.Temporal{
				HourOfDay:       t.HourOfDay[i],
				DayOfWeek:       t.DayOfWeek[i],
				IsWeekend:       t.IsWeekend[i],
				IsBusinessHours: t.IsBusinessHours[i],
				WeekOfYear:      t.WeekOfYear[i],
				Month:           t.Month[i],
			},
			SourceSystem:        t.SourceSystem[i],
			IngestionTimestamp:  t.IngestionTimestamp[i],
			ProcessingTimestamp: t.ProcessingTimestamp[i],
			RawEventID:          t.RawEventID[i],
			PipelineVersion:     t.PipelineVersion[i],
			SourceSpecific:      t.SourceSpecific[i],
		}

		if t.HasLocation[i] {
			e.Location = &schema.Location{
				City: t.LocCity[i], Country: t.LocCountry[i], CountryCode: t.LocCC[i],
				Latitude: t.LocLat[i], Longitude: t.LocLon[i],
			}
		}
		if t.HasDevice[i] {
			e.Device = &schema.Device{
				DeviceID: t.DevID[i], OS: t.DevOS[i], Browser: t.DevBrowser[i],
				IsMobile: t.DevMobile[i], IsBot: t.DevBot[i],
			}
		}
		if t.HasEntityMeta[i] {
			e.EntityMetadata = &schema.EntityMetadata{
				Department: t.Department[i], Role: t.Role[i],
				IsAdmin: t.IsAdmin[i], IsPrivileged: t.IsPrivileged[i],
			}
		}
		if t.HasPerf[i] {
			e.Performance = &schema.Performance{
				LatencyMS: t.LatencyMS[i], RequestSizeBytes: t.ReqBytes[i], ResponseSizeBytes: t.RespBytes[i],
			}
		}

		events[i] = e
	}
	return events
}

// appendTable concatenates b onto a, column by column (used when merging
// into an already-existing partition file).
func appendTable(a, b *table) *table {
	a.EntityID = append(a.EntityID, b.EntityID...)
	a.EntityType = append(a.EntityType, b.EntityType...)
	a.SessionID = append(a.SessionID, b.SessionID...)
	a.EventType = append(a.EventType, b.EventType...)
	a.EventSubtype = append(a.EventSubtype, b.EventSubtype...)
	a.Timestamp = append(a.Timestamp, b.Timestamp...)
	a.Success = append(a.Success, b.Success...)
	a.ErrorCode = append(a.ErrorCode, b.ErrorCode...)
	a.ErrorMessage = append(a.ErrorMessage, b.ErrorMessage...)
	a.SourceIPAnonymized = append(a.SourceIPAnonymized, b.SourceIPAnonymized...)
	a.UserAgent = append(a.UserAgent, b.UserAgent...)
	a.HasLocation = append(a.HasLocation, b.HasLocation...)
	a.LocCity = append(a.LocCity, b.LocCity...)
	a.LocCountry = append(a.LocCountry, b.LocCountry...)
	a.LocCC = append(a.LocCC, b.LocCC...)
	a.LocLat = append(a.LocLat, b.LocLat...)
	a.LocLon = append(a.LocLon, b.LocLon...)
	a.HasDevice = append(a.HasDevice, b.HasDevice...)
	a.DevID = append(a.DevID, b.DevID...)
	a.DevOS = append(a.DevOS, b.DevOS...)
	a.DevBrowser = append(a.DevBrowser, b.DevBrowser...)
	a.DevMobile = append(a.DevMobile, b.DevMobile...)
	a.DevBot = append(a.DevBot, b.DevBot...)
	a.ResType = append(a.ResType, b.ResType...)
	a.ResID = append(a.ResID, b.ResID...)
	a.ResName = append(a.ResName, b.ResName...)
	a.ResMethod = append(a.ResMethod, b.ResMethod...)
	a.ResEndpoint = append(a.ResEndpoint, b.ResEndpoint...)
	a.ResService = append(a.ResService, b.ResService...)
	a.ResSensitivity = append(a.ResSensitivity, b.ResSensitivity...)
	a.HasEntityMeta = append(a.HasEntityMeta, b.HasEntityMeta...)
	a.Department = append(a.Department, b.Department...)
	a.Role = append(a.Role, b.Role...)
	a.IsAdmin = append(a.IsAdmin, b.IsAdmin...)
	a.IsPrivileged = append(a.IsPrivileged, b.IsPrivileged...)
	a.HourOfDay = append(a.HourOfDay, b.HourOfDay...)
	a.DayOfWeek = append(a.DayOfWeek, b.DayOfWeek...)
	a.IsWeekend = append(a.IsWeekend, b.IsWeekend...)
	a.IsBusinessHours = append(a.IsBusinessHours, b.IsBusinessHours...)
	a.WeekOfYear = append(a.WeekOfYear, b.WeekOfYear...)
	a.Month = append(a.Month, b.Month...)
	a.HasPerf = append(a.HasPerf, b.HasPerf...)
	a.LatencyMS = append(a.LatencyMS, b.LatencyMS...)
	a.ReqBytes = append(a.ReqBytes, b.ReqBytes...)
	a.RespBytes = append(a.RespBytes, b.RespBytes...)
	a.SourceSystem = append(a.SourceSystem, b.SourceSystem...)
	a.IngestionTimestamp = append(a.IngestionTimestamp, b.IngestionTimestamp...)
	a.ProcessingTimestamp = append(a.ProcessingTimestamp, b.ProcessingTimestamp...)
	a.RawEventID = append(a.RawEventID, b.RawEventID...)
	a.PipelineVersion = append(a.PipelineVersion, b.PipelineVersion...)
	a.SourceSpecific = append(a.SourceSpecific, b.SourceSpecific...)
	return a
}

func encodeTable(t *table) ([]byte, error) {
	return msgpack.Marshal(t)
}

func decodeTable(data []byte) (*table, error) {
	var t table
	if err := msgpack.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
