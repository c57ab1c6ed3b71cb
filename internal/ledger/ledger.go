// Package ledger implements the idempotent event-ingestion protocol on top of
// a store.Store: Claim before running a handler, then ReportSuccess or
// ReportFailure once it returns.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/alfredjeanlab/eventledger/internal/events"
	"github.com/alfredjeanlab/eventledger/internal/model"
	"github.com/alfredjeanlab/eventledger/internal/store"
)

// ErrInvalidEventID is returned by Claim for an empty or blank event ID.
var ErrInvalidEventID = errors.New("event id must not be empty")

// Defaults applied by Policy.normalize.
const (
	DefaultMaxAttempts    = 3
	DefaultMaxErrorLength = 1000
	DefaultRecentLimit    = 20
	DefaultByTypeWindow   = 24 * time.Hour
)

// Policy holds the tunable parts of the protocol.
type Policy struct {
	// MaxAttempts is the retry budget. A failed event is re-claimable while
	// its attempts are below it.
	MaxAttempts int
	// MaxErrorLength bounds stored failure text, in characters.
	MaxErrorLength int
	// FailOpen grants claims when the store cannot be reached. When false
	// such claims are denied with ReasonStoreUnavailable.
	FailOpen bool
	// Lease makes processing records re-claimable once their claim is older
	// than this. Zero keeps them in flight until reported.
	Lease time.Duration
	// RecentLimit is the number of records returned in Stats.RecentEvents.
	RecentLimit int
	// ByTypeWindow is the look-back for Stats.RecentByType.
	ByTypeWindow time.Duration
}

// DefaultPolicy returns the stock policy: 3 attempts, 1000 character errors,
// fail open, no lease.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    DefaultMaxAttempts,
		MaxErrorLength: DefaultMaxErrorLength,
		FailOpen:       true,
		RecentLimit:    DefaultRecentLimit,
		ByTypeWindow:   DefaultByTypeWindow,
	}
}

func (p Policy) normalize() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.MaxErrorLength < 1 {
		p.MaxErrorLength = DefaultMaxErrorLength
	}
	if p.RecentLimit < 1 {
		p.RecentLimit = DefaultRecentLimit
	}
	if p.ByTypeWindow <= 0 {
		p.ByTypeWindow = DefaultByTypeWindow
	}
	if p.Lease < 0 {
		p.Lease = 0
	}
	return p
}

// Ledger is safe for concurrent use. It keeps no in-memory state about
// events; every decision is made by the store.
type Ledger struct {
	store     store.Store
	policy    Policy
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithPublisher sets where ledger notifications go. Defaults to a NoopPublisher.
func WithPublisher(p events.Publisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a Ledger over s.
func New(s store.Store, policy Policy, opts ...Option) *Ledger {
	l := &Ledger{
		store:     s,
		policy:    policy.normalize(),
		publisher: &events.NoopPublisher{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Policy returns the effective policy after defaults were applied.
func (l *Ledger) Policy() Policy {
	return l.policy
}

// Get returns the record for eventID, or model.ErrNotFound.
func (l *Ledger) Get(ctx context.Context, eventID string) (*model.Record, error) {
	return l.store.GetRecord(ctx, strings.TrimSpace(eventID))
}

// List returns records matching filter.
func (l *Ledger) List(ctx context.Context, filter model.RecordFilter) ([]*model.Record, error) {
	return l.store.ListRecords(ctx, filter)
}

// Ping reports whether the store is reachable.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.store.Ping(ctx)
}

func (l *Ledger) clock() time.Time {
	return l.now().UTC()
}

// publish sends a notification; failures are logged and dropped.
func (l *Ledger) publish(ctx context.Context, topic, eventID string, event any) {
	if err := l.publisher.Publish(ctx, topic, event); err != nil {
		l.logger.Warn("failed to publish ledger event", "topic", topic, "event_id", eventID, "err", err)
	}
}
