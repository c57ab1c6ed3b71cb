package postgres

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/alfredjeanlab/eventledger/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanRecord scans a single row into a model.Record.
// The row must contain columns in the order defined by recordColumns.
func scanRecord(row scannable) (*model.Record, error) {
	var r model.Record
	var (
		status      string
		lastError   sql.NullString
		processedAt sql.NullTime
	)

	err := row.Scan(
		&r.EventID,
		&r.EventType,
		&status,
		&r.Attempts,
		&lastError,
		&processedAt,
		&r.CreatedAt,
		&r.ClaimedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Status = model.Status(status)
	r.LastError = lastError.String
	if processedAt.Valid {
		t := processedAt.Time
		r.ProcessedAt = &t
	}
	return &r, nil
}

// scanRecords scans multiple rows into a slice of model.Record pointers and closes rows.
func scanRecords(rows *sql.Rows) ([]*model.Record, error) {
	defer rows.Close()

	records := []*model.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// nullTime maps the zero time to SQL NULL.
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
