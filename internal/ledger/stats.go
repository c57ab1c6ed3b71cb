package ledger

import (
	"context"

	"github.com/alfredjeanlab/eventledger/internal/model"
)

// GetStats returns ledger totals, the most recent records (newest first)
// and per-type counts over Policy.ByTypeWindow. It never fails: when the
// store cannot be read the zeroed stats are returned and the error logged.
func (l *Ledger) GetStats(ctx context.Context) model.Stats {
	stats := model.EmptyStats()

	counts, err := l.store.Counts(ctx, l.policy.MaxAttempts)
	if err != nil {
		l.logger.Error("failed to read ledger counts", "err", err)
		return model.EmptyStats()
	}
	stats.Counts = counts

	recent, err := l.store.Recent(ctx, l.policy.RecentLimit)
	if err != nil {
		l.logger.Error("failed to read recent events", "err", err)
		return model.EmptyStats()
	}
	if recent != nil {
		stats.RecentEvents = recent
	}

	byType, err := l.store.CountsByType(ctx, l.clock().Add(-l.policy.ByTypeWindow))
	if err != nil {
		l.logger.Error("failed to read per-type counts", "err", err)
		return model.EmptyStats()
	}
	if byType != nil {
		stats.RecentByType = byType
	}

	return stats
}
