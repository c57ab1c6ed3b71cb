package model

// RecordFilter holds criteria for listing ledger records.
type RecordFilter struct {
	Status    []Status `json:"status,omitempty"`
	EventType string   `json:"event_type,omitempty"`
	Newest    bool     `json:"newest,omitempty"` // newest first; oldest first otherwise
	Limit     int      `json:"limit,omitempty"`
	Offset    int      `json:"offset,omitempty"`
}
