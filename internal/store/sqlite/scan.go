package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/alfredjeanlab/eventledger/internal/model"
)

type scannable interface {
	Scan(dest ...any) error
}

// scanRecord scans a row laid out as recordColumns.
func scanRecord(row scannable) (*model.Record, error) {
	var (
		r           model.Record
		status      string
		lastError   sql.NullString
		processedAt sql.NullInt64
		createdAt   int64
		claimedAt   int64
	)

	err := row.Scan(
		&r.EventID,
		&r.EventType,
		&status,
		&r.Attempts,
		&lastError,
		&processedAt,
		&createdAt,
		&claimedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Status = model.Status(status)
	r.LastError = lastError.String
	r.CreatedAt = fromMillis(createdAt)
	r.ClaimedAt = fromMillis(claimedAt)
	if processedAt.Valid {
		t := fromMillis(processedAt.Int64)
		r.ProcessedAt = &t
	}
	return &r, nil
}

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

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
