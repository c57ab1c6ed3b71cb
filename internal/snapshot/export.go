// Package snapshot writes the ledger as JSONL for operator triage and backup.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alfredjeanlab/eventledger/internal/model"
)

// FormatVersion is written in every header record.
const FormatVersion = "1"

// pageSize is how many records are read per ListRecords call.
const pageSize = 500

// Source is the read side needed to export; store.Store satisfies it.
type Source interface {
	ListRecords(ctx context.Context, filter model.RecordFilter) ([]*model.Record, error)
}

// Header is the first JSONL record written by ExportJSONL.
type Header struct {
	Version     string    `json:"version"`
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	RecordCount int       `json:"record_count"`
}

// Line wraps a single JSONL line with a type discriminator.
type Line struct {
	Type string        `json:"type"`
	Data *model.Record `json:"data"`
}

// ExportJSONL writes every ledger record, oldest first, to w: one header
// line followed by one "record" line per row.
func ExportJSONL(ctx context.Context, src Source, w io.Writer) error {
	var records []*model.Record
	for offset := 0; ; offset += pageSize {
		page, err := src.ListRecords(ctx, model.RecordFilter{Limit: pageSize, Offset: offset})
		if err != nil {
			return fmt.Errorf("list records: %w", err)
		}
		records = append(records, page...)
		if len(page) < pageSize {
			break
		}
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(Header{
		Version:     FormatVersion,
		Type:        "header",
		Timestamp:   time.Now().UTC(),
		RecordCount: len(records),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, r := range records {
		if err := enc.Encode(Line{Type: "record", Data: r}); err != nil {
			return fmt.Errorf("encode record %s: %w", r.EventID, err)
		}
	}
	return nil
}
