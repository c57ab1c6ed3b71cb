package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/eventledger/internal/model"
	"github.com/alfredjeanlab/eventledger/internal/store"
)

const recordColumns = `event_id, event_type, status, attempts, last_error,
	processed_at, created_at, claimed_at`

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// claimSQL mirrors the PostgreSQL upsert. ?5 is the lease cutoff in unix
// milliseconds, or NULL when leases are disabled.
const claimSQL = `
	INSERT INTO event_ledger (event_id, event_type, status, attempts, created_at, claimed_at)
	VALUES (?1, ?2, 'processing', 1, ?3, ?3)
	ON CONFLICT (event_id) DO UPDATE
	SET status = 'processing',
		attempts = event_ledger.attempts + 1,
		claimed_at = excluded.claimed_at
	WHERE event_ledger.attempts < ?4
		AND (event_ledger.status = 'failed'
			OR (?5 IS NOT NULL
				AND event_ledger.status = 'processing'
				AND event_ledger.claimed_at < ?5))
	RETURNING ` + recordColumns

func queryClaim(ctx context.Context, db executor, p store.ClaimParams) (store.ClaimResult, error) {
	var staleBefore any
	if !p.StaleBefore.IsZero() {
		staleBefore = toMillis(p.StaleBefore)
	}

	row := db.QueryRowContext(ctx, claimSQL,
		p.EventID,
		p.EventType,
		toMillis(p.Now),
		p.MaxAttempts,
		staleBefore,
	)
	rec, err := scanRecord(row)
	if err == nil {
		return store.ClaimResult{Granted: true, Record: rec}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return store.ClaimResult{}, fmt.Errorf("claim event: %w", err)
	}

	// The denial is final once the upsert returned no row.
	rec, err = queryGetRecord(ctx, db, p.EventID)
	if err != nil {
		return store.ClaimResult{Granted: false}, nil
	}
	return store.ClaimResult{Granted: false, Record: rec}, nil
}

func queryMarkProcessed(ctx context.Context, db executor, eventID string, at time.Time) (bool, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE event_ledger
		SET status = 'processed', processed_at = ?2, last_error = NULL
		WHERE event_id = ?1 AND status <> 'processed'`,
		eventID, toMillis(at),
	)
	if err != nil {
		return false, fmt.Errorf("mark processed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark processed: %w", err)
	}
	return n > 0, nil
}

func queryMarkFailed(ctx context.Context, db executor, eventID, lastError string) (int, bool, error) {
	var attempts int
	err := db.QueryRowContext(ctx, `
		UPDATE event_ledger
		SET status = 'failed', last_error = ?2
		WHERE event_id = ?1 AND status <> 'processed'
		RETURNING attempts`,
		eventID, lastError,
	).Scan(&attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("mark failed: %w", err)
	}
	return attempts, true, nil
}

func queryGetRecord(ctx context.Context, db executor, eventID string) (*model.Record, error) {
	row := db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM event_ledger WHERE event_id = ?1`, eventID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func queryListRecords(ctx context.Context, db executor, filter model.RecordFilter) ([]*model.Record, error) {
	var (
		whereClauses []string
		args         []any
	)

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		whereClauses = append(whereClauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.EventType != "" {
		whereClauses = append(whereClauses, "event_type = ?")
		args = append(args, filter.EventType)
	}

	q := "SELECT " + recordColumns + " FROM event_ledger"
	if len(whereClauses) > 0 {
		q += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	if filter.Newest {
		q += " ORDER BY created_at DESC, event_id DESC"
	} else {
		q += " ORDER BY created_at ASC, event_id ASC"
	}

	// SQLite only accepts OFFSET after LIMIT; -1 means unbounded.
	switch {
	case filter.Limit > 0:
		q += " LIMIT ?"
		args = append(args, filter.Limit)
	case filter.Offset > 0:
		q += " LIMIT -1"
	}
	if filter.Offset > 0 {
		q += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return scanRecords(rows)
}

func queryCounts(ctx context.Context, db executor, maxAttempts int) (model.Counts, error) {
	var c model.Counts
	err := db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'processed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'processing' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' AND attempts >= ?1 THEN 1 ELSE 0 END), 0)
		FROM event_ledger`,
		maxAttempts,
	).Scan(&c.Total, &c.Processed, &c.Failed, &c.Processing, &c.Exhausted)
	if err != nil {
		return model.Counts{}, fmt.Errorf("count records: %w", err)
	}
	return c, nil
}

func queryRecent(ctx context.Context, db executor, limit int) ([]*model.Record, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM event_ledger
		ORDER BY created_at DESC, event_id DESC
		LIMIT ?1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent records: %w", err)
	}
	return scanRecords(rows)
}

func queryCountsByType(ctx context.Context, db executor, since time.Time) ([]model.TypeCount, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT event_type, COUNT(*) AS n FROM event_ledger
		WHERE created_at >= ?1
		GROUP BY event_type
		ORDER BY n DESC, event_type ASC`,
		toMillis(since),
	)
	if err != nil {
		return nil, fmt.Errorf("count by type: %w", err)
	}
	defer rows.Close()

	counts := []model.TypeCount{}
	for rows.Next() {
		var tc model.TypeCount
		if err := rows.Scan(&tc.EventType, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan type count: %w", err)
		}
		counts = append(counts, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

func queryWindowCounts(ctx context.Context, db executor, since time.Time) (model.WindowCounts, error) {
	w := model.WindowCounts{Since: since}
	err := db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		FROM event_ledger
		WHERE created_at >= ?1`,
		toMillis(since),
	).Scan(&w.Total, &w.Failed)
	if err != nil {
		return model.WindowCounts{}, fmt.Errorf("window counts: %w", err)
	}
	return w, nil
}
