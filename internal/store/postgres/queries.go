package postgres

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

// recordColumns is the column list used for SELECT and RETURNING clauses on event_ledger.
const recordColumns = `event_id, event_type, status, attempts, last_error,
	processed_at, created_at, claimed_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// claimSQL inserts a fresh processing row, or re-claims the existing row when
// it failed below the budget (or its processing lease went stale). The
// conflict update is row-locked by PostgreSQL, so concurrent callers for the
// same event_id serialize and exactly one of them gets a RETURNING row.
const claimSQL = `
	INSERT INTO event_ledger (event_id, event_type, status, attempts, created_at, claimed_at)
	VALUES ($1, $2, 'processing', 1, $3, $3)
	ON CONFLICT (event_id) DO UPDATE
	SET status = 'processing',
		attempts = event_ledger.attempts + 1,
		claimed_at = EXCLUDED.claimed_at
	WHERE event_ledger.attempts < $4
		AND (event_ledger.status = 'failed'
			OR ($5::timestamptz IS NOT NULL
				AND event_ledger.status = 'processing'
				AND event_ledger.claimed_at < $5::timestamptz))
	RETURNING ` + recordColumns

func queryClaim(ctx context.Context, db executor, p store.ClaimParams) (store.ClaimResult, error) {
	row := db.QueryRowContext(ctx, claimSQL,
		p.EventID,
		p.EventType,
		p.Now,
		p.MaxAttempts,
		nullTime(p.StaleBefore),
	)
	rec, err := scanRecord(row)
	if err == nil {
		return store.ClaimResult{Granted: true, Record: rec}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return store.ClaimResult{}, fmt.Errorf("claim event: %w", err)
	}

	// Denied. The follow-up read only explains why; if it fails the
	// denial stands without a record.
	rec, err = queryGetRecord(ctx, db, p.EventID)
	if err != nil {
		return store.ClaimResult{Granted: false}, nil
	}
	return store.ClaimResult{Granted: false, Record: rec}, nil
}

func queryMarkProcessed(ctx context.Context, db executor, eventID string, at time.Time) (bool, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE event_ledger
		SET status = 'processed', processed_at = $2, last_error = NULL
		WHERE event_id = $1 AND status <> 'processed'`,
		eventID, at,
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
		SET status = 'failed', last_error = $2
		WHERE event_id = $1 AND status <> 'processed'
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
	row := db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM event_ledger WHERE event_id = $1`, eventID)
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
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			placeholders[i] = nextArg()
			args = append(args, string(s))
		}
		whereClauses = append(whereClauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	if filter.EventType != "" {
		whereClauses = append(whereClauses, "event_type = "+nextArg())
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
	if filter.Limit > 0 {
		q += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		q += " OFFSET " + nextArg()
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
			COALESCE(SUM(CASE WHEN status = 'failed' AND attempts >= $1 THEN 1 ELSE 0 END), 0)
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
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent records: %w", err)
	}
	return scanRecords(rows)
}

func queryCountsByType(ctx context.Context, db executor, since time.Time) ([]model.TypeCount, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT event_type, COUNT(*) FROM event_ledger
		WHERE created_at >= $1
		GROUP BY event_type
		ORDER BY COUNT(*) DESC, event_type ASC`,
		since,
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
		WHERE created_at >= $1`,
		since,
	).Scan(&w.Total, &w.Failed)
	if err != nil {
		return model.WindowCounts{}, fmt.Errorf("window counts: %w", err)
	}
	return w, nil
}
