package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var claimCmd = &cobra.Command{
	Use:     "claim <event-id> [event-type]",
	Short:   "Claim an event for processing",
	GroupID: "protocol",
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eventType := ""
		if len(args) > 1 {
			eventType = args[1]
		}
		resp, err := ledgerClient.Claim(context.Background(), args[0], eventType)
		if err != nil {
			return fmt.Errorf("claiming event: %w", err)
		}
		if jsonOutput {
			return printJSON(os.Stdout, resp)
		}
		printClaim(os.Stdout, args[0], resp)
		return nil
	},
}

var succeedCmd = &cobra.Command{
	Use:     "succeed <event-id>",
	Short:   "Report that an event was processed",
	GroupID: "protocol",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ledgerClient.ReportSuccess(context.Background(), args[0]); err != nil {
			return fmt.Errorf("reporting success: %w", err)
		}
		if !jsonOutput {
			fmt.Printf("Reported success for %s\n", args[0])
		}
		return nil
	},
}

var failCmd = &cobra.Command{
	Use:     "fail <event-id> <message>",
	Short:   "Report that processing an event failed",
	GroupID: "protocol",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ledgerClient.ReportFailure(context.Background(), args[0], args[1]); err != nil {
			return fmt.Errorf("reporting failure: %w", err)
		}
		if !jsonOutput {
			fmt.Printf("Reported failure for %s\n", args[0])
		}
		return nil
	},
}
