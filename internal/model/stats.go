package model

import "time"

// Counts holds status totals across the whole ledger.
type Counts struct {
	Total      int `json:"total"`
	Processed  int `json:"processed"`
	Failed     int `json:"failed"`
	Processing int `json:"processing"`
	Exhausted  int `json:"exhausted"` // failed records at or above the retry budget
}

// TypeCount is the number of records seen for one event type.
type TypeCount struct {
	EventType string `json:"event_type"`
	Count     int    `json:"count"`
}

// WindowCounts summarises records created since a point in time.
type WindowCounts struct {
	Since  time.Time `json:"since"`
	Total  int       `json:"total"`
	Failed int       `json:"failed"`
}

// FailureRate returns failed/total, or 0 for an empty window.
func (w WindowCounts) FailureRate() float64 {
	if w.Total == 0 {
		return 0
	}
	return float64(w.Failed) / float64(w.Total)
}

// Stats is the operator view of the ledger.
type Stats struct {
	Counts
	RecentEvents []*Record   `json:"recent_events"`
	RecentByType []TypeCount `json:"recent_by_type"`
}

// EmptyStats returns zeroed stats with non-nil slices so they encode as [].
func EmptyStats() Stats {
	return Stats{
		RecentEvents: []*Record{},
		RecentByType: []TypeCount{},
	}
}
