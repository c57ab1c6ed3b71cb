package ledger

import (
	"context"
	"strings"

	"github.com/alfredjeanlab/eventledger/internal/events"
	"github.com/alfredjeanlab/eventledger/internal/model"
	"github.com/alfredjeanlab/eventledger/internal/store"
)

// Reason explains a claim decision.
type Reason string

const (
	ReasonNew              Reason = "new"               // first claim, record inserted
	ReasonRetry            Reason = "retry"             // failed (or stale) record re-claimed
	ReasonFailOpen         Reason = "fail_open"         // store unreachable, granted anyway
	ReasonAlreadyProcessed Reason = "already_processed" // terminal
	ReasonInFlight         Reason = "in_flight"         // another caller holds the claim
	ReasonRetriesExhausted Reason = "retries_exhausted" // failed with the budget used up
	ReasonStoreUnavailable Reason = "store_unavailable" // store unreachable, fail-closed
)

// Decision is the outcome of Claim.
type Decision struct {
	Granted  bool          `json:"granted"`
	Reason   Reason        `json:"reason"`
	Attempts int           `json:"attempts,omitempty"`
	Record   *model.Record `json:"record,omitempty"`
}

// Duplicate reports whether the claim was denied as a normal idempotent
// no-op. Callers should acknowledge the delivery without running the handler.
func (d Decision) Duplicate() bool {
	switch d.Reason {
	case ReasonAlreadyProcessed, ReasonInFlight, ReasonRetriesExhausted:
		return true
	}
	return false
}

// Claim tries to make the caller the single processor of eventID. Only a
// granted decision permits running the handler. The returned error is
// non-nil only for an invalid event ID; duplicates are decisions, and store
// faults follow Policy.FailOpen.
func (l *Ledger) Claim(ctx context.Context, eventID, eventType string) (Decision, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return Decision{}, ErrInvalidEventID
	}

	now := l.clock()
	params := store.ClaimParams{
		EventID:     eventID,
		EventType:   eventType,
		MaxAttempts: l.policy.MaxAttempts,
		Now:         now,
	}
	if l.policy.Lease > 0 {
		params.StaleBefore = now.Add(-l.policy.Lease)
	}

	res, err := l.store.Claim(ctx, params)
	if err != nil {
		return l.storeUnavailable(ctx, eventID, eventType, err), nil
	}

	if res.Granted {
		d := Decision{Granted: true, Reason: ReasonNew, Record: res.Record}
		if res.Record != nil {
			d.Attempts = res.Record.Attempts
			if d.Attempts > 1 {
				d.Reason = ReasonRetry
			}
		}
		l.logger.Info("event claimed",
			"event_id", eventID, "event_type", eventType,
			"attempts", d.Attempts, "reason", d.Reason)
		l.publish(ctx, events.TopicEventClaimed, eventID, events.EventClaimed{
			EventID:   eventID,
			EventType: eventType,
			Attempts:  d.Attempts,
			Reason:    string(d.Reason),
		})
		return d, nil
	}

	d := l.denial(res.Record)
	logger := l.logger.With("event_id", eventID, "event_type", eventType,
		"attempts", d.Attempts, "reason", d.Reason)
	if d.Reason == ReasonRetriesExhausted {
		logger.Warn("claim denied, retries exhausted")
	} else {
		logger.Info("duplicate event denied")
	}

	dup := events.EventDuplicate{
		EventID:   eventID,
		EventType: eventType,
		Attempts:  d.Attempts,
		Reason:    string(d.Reason),
	}
	if res.Record != nil {
		dup.Status = res.Record.Status.String()
	}
	l.publish(ctx, events.TopicEventDuplicate, eventID, dup)
	return d, nil
}

// denial maps the record read after a denied claim to a reason. That read is
// advisory: the row may have moved on since the claim statement ran.
func (l *Ledger) denial(rec *model.Record) Decision {
	d := Decision{Granted: false, Reason: ReasonInFlight, Record: rec}
	if rec == nil {
		return d
	}
	d.Attempts = rec.Attempts
	switch {
	case rec.Status == model.StatusProcessed:
		d.Reason = ReasonAlreadyProcessed
	case rec.Exhausted(l.policy.MaxAttempts):
		d.Reason = ReasonRetriesExhausted
	default:
		// processing, or failed below budget after a competing claim
		// and failure landed between the claim and the read.
		d.Reason = ReasonInFlight
	}
	return d
}

func (l *Ledger) storeUnavailable(ctx context.Context, eventID, eventType string, err error) Decision {
	logger := l.logger.With("event_id", eventID, "event_type", eventType, "err", err)
	if !l.policy.FailOpen {
		logger.Error("ledger unavailable, claim denied")
		return Decision{Granted: false, Reason: ReasonStoreUnavailable}
	}

	logger.Warn("ledger unavailable, failing open")
	l.publish(ctx, events.TopicEventClaimed, eventID, events.EventClaimed{
		EventID:   eventID,
		EventType: eventType,
		Reason:    string(ReasonFailOpen),
	})
	return Decision{Granted: true, Reason: ReasonFailOpen}
}
