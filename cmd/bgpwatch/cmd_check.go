package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/bgpwatch/pkg/bgp"
	"github.com/newtron-network/bgpwatch/pkg/cli"
	"github.com/newtron-network/bgpwatch/pkg/device"
	"github.com/newtron-network/bgpwatch/pkg/health"
)

var checkName string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report the health of both routers",
	Long: `Run one-shot health checks against the configured router pair.

Checks:
  session-primary        Session to the primary router
  session-secondary      Session to the secondary router
  advertisement-primary  Primary advertises every prefix to the peer
  backup-secondary       Secondary is (not) carrying a backup advertisement

Exits non-zero when the overall status is critical.

Examples:
  bgpwatch check
  bgpwatch check --check advertisement-primary
  bgpwatch check --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dialer := device.NewSSHDialer()
		checker := health.NewChecker(dialer, bgp.NewProber(dialer))
		target := cfg.HealthTarget()

		var report *health.Report
		if checkName != "" {
			result, err := checker.RunCheck(cmd.Context(), target, checkName)
			if err != nil {
				return err
			}
			report = &health.Report{
				Primary:   target.Primary.String(),
				Secondary: target.Secondary.String(),
				Peer:      target.Peer,
				Timestamp: result.Timestamp,
				Overall:   result.Status,
				Results:   []health.Result{*result},
				Duration:  result.Duration,
			}
		} else {
			report = checker.Run(cmd.Context(), target)
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
		} else {
			printReport(report)
		}

		if report.Overall == health.StatusCritical {
			return fmt.Errorf("health check failed")
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkName, "check", "", "Run a single check by name")
}

func printReport(r *health.Report) {
	fmt.Printf("Primary: %s  Secondary: %s  Peer: %s\n\n", cli.Bold(r.Primary), cli.Bold(r.Secondary), r.Peer)

	t := cli.NewTable(os.Stdout, "CHECK", "STATUS", "MESSAGE", "DURATION")
	for _, res := range r.Results {
		t.Row(res.Check, cli.Status(string(res.Status)), res.Message, res.Duration.Round(time.Millisecond).String())
	}
	t.Flush()

	fmt.Printf("\nOverall: %s (%s)\n", cli.Status(string(r.Overall)), r.Duration.Round(time.Millisecond))
}
