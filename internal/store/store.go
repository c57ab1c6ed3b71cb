package store

import (
	"context"
	"time"

	"github.com/alfredjeanlab/eventledger/internal/model"
)

// ClaimParams describes one attempt to become the processor of an event.
type ClaimParams struct {
	EventID     string
	EventType   string
	MaxAttempts int       // retry budget; re-claims are granted only below it
	Now         time.Time // claimed_at (and created_at on insert)
	StaleBefore time.Time // processing rows claimed before this are re-claimable; zero disables
}

// ClaimResult is the outcome of Store.Claim.
type ClaimResult struct {
	// Granted is true when this call inserted the record or moved it back
	// to processing. Exactly one concurrent caller observes true.
	Granted bool
	// Record is the row as returned by the claim (granted) or as read
	// right after the denial. It may be nil if the row vanished in between.
	Record *model.Record
}

// Store defines the persistence interface for the event ledger.
// Uniqueness of event IDs is enforced by the backing database, never in memory.
type Store interface {
	// Claim atomically inserts a processing record or re-claims an eligible one.
	Claim(ctx context.Context, p ClaimParams) (ClaimResult, error)
	// MarkProcessed moves a non-processed record to processed. found is false
	// when no such record exists (or it was already processed).
	MarkProcessed(ctx context.Context, eventID string, at time.Time) (found bool, err error)
	// MarkFailed moves a non-processed record to failed and returns its attempts.
	MarkFailed(ctx context.Context, eventID, lastError string) (attempts int, found bool, err error)

	// Reads
	GetRecord(ctx context.Context, eventID string) (*model.Record, error)
	ListRecords(ctx context.Context, filter model.RecordFilter) ([]*model.Record, error)
	Counts(ctx context.Context, maxAttempts int) (model.Counts, error)
	Recent(ctx context.Context, limit int) ([]*model.Record, error)
	CountsByType(ctx context.Context, since time.Time) ([]model.TypeCount, error)
	WindowCounts(ctx context.Context, since time.Time) (model.WindowCounts, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}
