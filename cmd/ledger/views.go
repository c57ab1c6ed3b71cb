package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alfredjeanlab/eventledger/internal/health"
	"github.com/alfredjeanlab/eventledger/internal/rpc"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:     "show <event-id>",
	Short:   "Show the ledger record for an event",
	GroupID: "views",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := ledgerClient.GetEvent(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("getting event: %w", err)
		}
		if jsonOutput {
			return printJSON(os.Stdout, rec)
		}
		printRecord(os.Stdout, rec)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List ledger records",
	GroupID: "views",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetStringSlice("status")
		eventType, _ := cmd.Flags().GetString("type")
		newest, _ := cmd.Flags().GetBool("newest")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		recs, err := ledgerClient.ListEvents(context.Background(), &rpc.ListEventsRequest{
			Status:    status,
			EventType: eventType,
			Newest:    newest,
			Limit:     limit,
			Offset:    offset,
		})
		if err != nil {
			return fmt.Errorf("listing events: %w", err)
		}
		if jsonOutput {
			return printJSON(os.Stdout, recs)
		}
		printRecordTable(os.Stdout, recs)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show ledger totals, recent events and per-type counts",
	GroupID: "views",
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := ledgerClient.GetStats(context.Background())
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}
		if jsonOutput {
			return printJSON(os.Stdout, stats)
		}
		printStats(os.Stdout, stats)
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:     "check",
	Short:   "Evaluate the recent failure rate",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := ledgerClient.CheckAlerts(context.Background())
		if err != nil {
			return fmt.Errorf("checking alerts: %w", err)
		}
		if jsonOutput {
			if err := printJSON(os.Stdout, report); err != nil {
				return err
			}
		} else {
			printReport(os.Stdout, report)
		}
		if report.Severity == health.SeverityCritical {
			return fmt.Errorf("critical: %s", report.Message)
		}
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check that the ledger server is up",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := ledgerClient.Health(context.Background())
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}

		if jsonOutput {
			if err := printJSON(os.Stdout, map[string]string{"status": status}); err != nil {
				return err
			}
		} else {
			fmt.Printf("Health: %s\n", status)
		}

		if status != "ok" && status != "SERVING" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringSlice("status", nil, "filter by status (processing, processed, failed)")
	listCmd.Flags().String("type", "", "filter by event type")
	listCmd.Flags().Bool("newest", false, "newest first")
	listCmd.Flags().Int("limit", 50, "maximum number of records")
	listCmd.Flags().Int("offset", 0, "records to skip")
}
