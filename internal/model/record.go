package model

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no ledger record exists for an event ID.
var ErrNotFound = errors.New("event not found")

// Status is the processing state of a ledger record.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusFailed     Status = "failed"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusProcessing, StatusProcessed, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further claim can ever succeed from this status.
func (s Status) IsTerminal() bool {
	return s == StatusProcessed
}

// Record is one row of the event ledger, keyed by the external event ID.
type Record struct {
	EventID     string     `json:"event_id"`
	EventType   string     `json:"event_type"`
	Status      Status     `json:"status"`
	Attempts    int        `json:"attempts"`
	LastError   string     `json:"last_error,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ClaimedAt   time.Time  `json:"claimed_at"`
}

// Exhausted reports whether the record failed and has used its whole retry budget.
func (r *Record) Exhausted(maxAttempts int) bool {
	return r.Status == StatusFailed && r.Attempts >= maxAttempts
}
