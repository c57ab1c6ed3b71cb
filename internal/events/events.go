package events

import (
	"context"
	"time"
)

// Event topic constants
const (
	TopicEventClaimed   = "ledger.event.claimed"
	TopicEventDuplicate = "ledger.event.duplicate"
	TopicEventProcessed = "ledger.event.processed"
	TopicEventFailed    = "ledger.event.failed"
	TopicEventExhausted = "ledger.event.exhausted"

	// Health monitor alerts.
	TopicAlert = "ledger.alert"

	// TopicAll matches every ledger notification.
	TopicAll = "ledger.>"
)

// Event types

type EventClaimed struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Attempts  int    `json:"attempts"`
	Reason    string `json:"reason"`
}

type EventDuplicate struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Status    string `json:"status,omitempty"`
	Attempts  int    `json:"attempts,omitempty"`
	Reason    string `json:"reason"`
}

type EventProcessed struct {
	EventID     string    `json:"event_id"`
	ProcessedAt time.Time `json:"processed_at"`
}

type EventFailed struct {
	EventID  string `json:"event_id"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error"`
}

// EventExhausted is published when a failure uses up the last retry.
type EventExhausted struct {
	EventID     string `json:"event_id"`
	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"max_attempts"`
	Error       string `json:"error"`
}

// Alert is published by the health monitor when the failure rate is not ok.
type Alert struct {
	Severity    string    `json:"severity"`
	Message     string    `json:"message"`
	Total       int       `json:"total"`
	Failed      int       `json:"failed"`
	FailureRate float64   `json:"failure_rate"`
	Since       time.Time `json:"since"`
	CheckedAt   time.Time `json:"checked_at"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
