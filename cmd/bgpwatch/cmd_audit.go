package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/bgpwatch/pkg/audit"
	"github.com/newtron-network/bgpwatch/pkg/cli"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "View the remediation audit trail",
	Long: `View every backup inject/remove attempt, automatic or manual.

Each event records:
  - Timestamp and duration
  - Initiator (monitor, or the user who ran inject/remove)
  - Router and prefix
  - Commands sent and the outcome

Examples:
  bgpwatch audit list --prefix 192.168.10.0/24
  bgpwatch audit list --last 24h
  bgpwatch audit list --initiator monitor --failures`,
}

var (
	auditRouter    string
	auditPrefix    string
	auditOperation string
	auditInitiator string
	auditLast      string
	auditLimit     int
	auditFailures  bool
)

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := audit.Filter{
			Router:      auditRouter,
			Prefix:      auditPrefix,
			Operation:   auditOperation,
			Initiator:   auditInitiator,
			Limit:       auditLimit,
			FailureOnly: auditFailures,
		}

		if auditLast != "" {
			d, err := parseLast(auditLast)
			if err != nil {
				return err
			}
			filter.StartTime = time.Now().Add(-d)
		}

		l := openAuditLogger()
		if l == nil {
			return fmt.Errorf("audit logging is not configured (set audit.path)")
		}
		defer l.Close()

		events, err := l.Query(filter)
		if err != nil {
			return fmt.Errorf("querying audit log: %w", err)
		}

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(events)
		}

		if len(events) == 0 {
			fmt.Println("No audit events found")
			return nil
		}

		t := cli.NewTable(os.Stdout, "TIMESTAMP", "INITIATOR", "ROUTER", "OPERATION", "PREFIX", "STATUS")
		for _, event := range events {
			t.Row(
				event.Timestamp.Format("2006-01-02 15:04:05"),
				event.Initiator,
				event.Router,
				event.Operation,
				event.Prefix,
				eventStatus(event),
			)
		}
		t.Flush()
		return nil
	},
}

func init() {
	auditListCmd.Flags().StringVar(&auditRouter, "router", "", "Filter by router")
	auditListCmd.Flags().StringVar(&auditPrefix, "prefix", "", "Filter by prefix")
	auditListCmd.Flags().StringVar(&auditOperation, "operation", "", "Filter by operation (inject, remove)")
	auditListCmd.Flags().StringVar(&auditInitiator, "initiator", "", "Filter by initiator (monitor or a user name)")
	auditListCmd.Flags().StringVar(&auditLast, "last", "", "Show events from last duration (e.g., 24h, 7d)")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "Maximum events to show")
	auditListCmd.Flags().BoolVar(&auditFailures, "failures", false, "Show only failed operations")

	auditCmd.AddCommand(auditListCmd)
}

func eventStatus(e *audit.Event) string {
	switch {
	case e.DryRun:
		return cli.Yellow("dry-run")
	case e.Success:
		return cli.Green("ok")
	default:
		return cli.Red("failed")
	}
}

// parseLast accepts a Go duration or a whole number of days ("7d").
func parseLast(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid duration: %s", s)
	}
	return d, nil
}
