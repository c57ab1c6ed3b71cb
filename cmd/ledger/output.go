package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/eventledger/internal/events"
	"github.com/alfredjeanlab/eventledger/internal/health"
	"github.com/alfredjeanlab/eventledger/internal/model"
	"github.com/alfredjeanlab/eventledger/internal/rpc"
	"github.com/alfredjeanlab/eventledger/internal/ui"
)

const timeFormat = "2006-01-02 15:04:05"

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func printClaim(w io.Writer, eventID string, resp *rpc.ClaimResponse) {
	fmt.Fprintf(w, "%s: %s", eventID, ui.RenderDecision(resp.Granted, resp.Reason))
	if resp.Attempts > 0 {
		fmt.Fprintf(w, ", attempt %d", resp.Attempts)
	}
	fmt.Fprintln(w)
}

func printRecord(w io.Writer, rec *model.Record) {
	fmt.Fprintf(w, "Event ID:     %s\n", rec.EventID)
	fmt.Fprintf(w, "Type:         %s\n", rec.EventType)
	fmt.Fprintf(w, "Status:       %s\n", ui.RenderStatus(rec.Status))
	fmt.Fprintf(w, "Attempts:     %d\n", rec.Attempts)
	if rec.LastError != "" {
		fmt.Fprintf(w, "Last Error:   %s\n", rec.LastError)
	}
	if !rec.CreatedAt.IsZero() {
		fmt.Fprintf(w, "Created At:   %s\n", rec.CreatedAt.Format(timeFormat))
	}
	if !rec.ClaimedAt.IsZero() {
		fmt.Fprintf(w, "Claimed At:   %s\n", rec.ClaimedAt.Format(timeFormat))
	}
	if rec.ProcessedAt != nil {
		fmt.Fprintf(w, "Processed At: %s\n", rec.ProcessedAt.Format(timeFormat))
	}
}

func printRecordTable(w io.Writer, recs []*model.Record) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EVENT ID\tTYPE\tSTATUS\tATTEMPTS\tCREATED\tLAST ERROR")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.EventID,
			r.EventType,
			ui.RenderStatus(r.Status),
			r.Attempts,
			r.CreatedAt.Format(timeFormat),
			shorten(r.LastError, 40),
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d records\n", len(recs))
}

func printStats(w io.Writer, s *model.Stats) {
	fmt.Fprintf(w, "Total:      %d\n", s.Total)
	fmt.Fprintf(w, "Processed:  %d\n", s.Processed)
	fmt.Fprintf(w, "Processing: %d\n", s.Processing)
	fmt.Fprintf(w, "Failed:     %d (%d exhausted)\n", s.Failed, s.Exhausted)

	if len(s.RecentByType) > 0 {
		fmt.Fprintln(w, "\n"+ui.RenderAccent("Last 24h by type"))
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, tc := range s.RecentByType {
			fmt.Fprintf(tw, "  %s\t%d\n", tc.EventType, tc.Count)
		}
		tw.Flush()
	}

	if len(s.RecentEvents) > 0 {
		fmt.Fprintln(w, "\n"+ui.RenderAccent("Recent events"))
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, r := range s.RecentEvents {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n",
				r.EventID, r.EventType, ui.RenderStatus(r.Status), ui.RenderMuted(r.CreatedAt.Format(timeFormat)))
		}
		tw.Flush()
	}
}

func printReport(w io.Writer, r *health.Report) {
	fmt.Fprintf(w, "Severity:     %s\n", ui.RenderSeverity(r.Severity))
	fmt.Fprintf(w, "Message:      %s\n", r.Message)
	fmt.Fprintf(w, "Window:       %s\n", r.Window)
	fmt.Fprintf(w, "Failed/Total: %d/%d (%.1f%%)\n", r.Failed, r.Total, r.FailureRate*100)
}

// printNotification renders one message received by watch.
func printNotification(w io.Writer, at time.Time, msg events.Message) {
	var fields struct {
		EventID  string `json:"event_id"`
		Reason   string `json:"reason"`
		Attempts int    `json:"attempts"`
		Error    string `json:"error"`
		Message  string `json:"message"`
	}
	_ = msg.Decode(&fields)

	line := fmt.Sprintf("%s  %-24s", ui.RenderMuted(at.Format("15:04:05")), msg.Topic)
	if fields.EventID != "" {
		line += "  " + fields.EventID
	}
	if fields.Reason != "" {
		line += "  reason=" + fields.Reason
	}
	if fields.Attempts > 0 {
		line += fmt.Sprintf("  attempts=%d", fields.Attempts)
	}
	if fields.Error != "" {
		line += "  error=" + shorten(fields.Error, 60)
	}
	if fields.Message != "" {
		line += "  " + fields.Message
	}
	fmt.Fprintln(w, line)
}

// shorten truncates s to n runes, marking the cut with "...".
func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
