package ledger

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/alfredjeanlab/eventledger/internal/events"
)

// ReportSuccess marks eventID processed. By the time it is called the
// handler has already run, so store faults and unknown IDs are logged and
// swallowed.
func (l *Ledger) ReportSuccess(ctx context.Context, eventID string) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		l.logger.Warn("success reported without event id")
		return
	}

	at := l.clock()
	found, err := l.store.MarkProcessed(ctx, eventID, at)
	if err != nil {
		l.logger.Warn("failed to record success", "event_id", eventID, "err", err)
		return
	}
	if !found {
		l.logger.Warn("success reported for unknown or already processed event", "event_id", eventID)
		return
	}

	l.logger.Info("event processed", "event_id", eventID)
	l.publish(ctx, events.TopicEventProcessed, eventID, events.EventProcessed{
		EventID:     eventID,
		ProcessedAt: at,
	})
}

// ReportFailure marks eventID failed and stores errMsg truncated to
// Policy.MaxErrorLength characters. Attempts are left alone; they change on
// the next granted claim. Store faults are logged and swallowed.
func (l *Ledger) ReportFailure(ctx context.Context, eventID, errMsg string) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		l.logger.Warn("failure reported without event id")
		return
	}

	msg := truncate(errMsg, l.policy.MaxErrorLength)
	attempts, found, err := l.store.MarkFailed(ctx, eventID, msg)
	if err != nil {
		l.logger.Warn("failed to record failure", "event_id", eventID, "err", err)
		return
	}
	if !found {
		l.logger.Warn("failure reported for unknown or already processed event", "event_id", eventID)
		return
	}

	l.logger.Info("event failed", "event_id", eventID, "attempts", attempts)
	l.publish(ctx, events.TopicEventFailed, eventID, events.EventFailed{
		EventID:  eventID,
		Attempts: attempts,
		Error:    msg,
	})

	if attempts >= l.policy.MaxAttempts {
		l.logger.Warn("retries exhausted, manual intervention required",
			"event_id", eventID, "attempts", attempts, "max_attempts", l.policy.MaxAttempts)
		l.publish(ctx, events.TopicEventExhausted, eventID, events.EventExhausted{
			EventID:     eventID,
			Attempts:    attempts,
			MaxAttempts: l.policy.MaxAttempts,
			Error:       msg,
		})
	}
}

// truncate keeps at most n characters of s without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
