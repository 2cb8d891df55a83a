package main

import (
	"fmt"
	"os/user"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/bgpwatch/pkg/audit"
	"github.com/newtron-network/bgpwatch/pkg/bgp"
	"github.com/newtron-network/bgpwatch/pkg/cli"
	"github.com/newtron-network/bgpwatch/pkg/device"
	"github.com/newtron-network/bgpwatch/pkg/health"
	"github.com/newtron-network/bgpwatch/pkg/util"
)

var remediateRouter string

var injectCmd = &cobra.Command{
	Use:   "inject <prefix>",
	Short: "Add a backup network statement for a prefix",
	Long: `Add "network <prefix>" under the router's BGP instance and soft-refresh
its sessions. Targets the secondary router unless --router primary is given.

Examples:
  bgpwatch inject 192.168.10.0/24
  bgpwatch inject 192.168.10.0/24 -x`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return remediate(cmd, "inject", args[0])
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <prefix>",
	Short: "Withdraw a backup network statement for a prefix",
	Long: `Remove "network <prefix>" from the router's BGP instance and soft-refresh
its sessions. Targets the secondary router unless --router primary is given.

Examples:
  bgpwatch remove 192.168.10.0/24
  bgpwatch remove 192.168.10.0/24 -x`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return remediate(cmd, "remove", args[0])
	},
}

func init() {
	for _, cmd := range []*cobra.Command{injectCmd, removeCmd} {
		cmd.Flags().StringVar(&remediateRouter, "router", health.RoleSecondary, "Router to change: primary or secondary")
	}
}

func remediate(cmd *cobra.Command, name, prefix string) error {
	action, err := bgp.ParseAction(name)
	if err != nil {
		return err
	}
	if !util.IsValidCIDR(prefix) {
		return fmt.Errorf("%q is not a valid prefix", prefix)
	}
	if !cfg.HasPrefix(prefix) {
		util.Warnf("%s is not in the monitored prefix list", prefix)
	}

	router, err := selectRouter(remediateRouter)
	if err != nil {
		return err
	}

	cmds, err := bgp.ConfigCommands(action, prefix, cfg.ASN)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s on %s:\n", cli.Bold(string(action)), prefix, cli.Bold(router.String()))
	for _, c := range cmds {
		fmt.Printf("  %s\n", c)
	}

	event := audit.NewEvent(currentUser(), router.String(), string(action)).
		WithPrefix(prefix).
		WithASN(cfg.ASN).
		WithCommands(cmds).
		WithDryRun(!executeMode)

	if !executeMode {
		event.WithSuccess()
		writeAudit(event)
		fmt.Println("\n" + cli.Yellow("DRY-RUN: No changes applied. Use -x to execute."))
		return nil
	}

	locker, closeLocker := newLocker()
	defer closeLocker()

	start := time.Now()
	err = bgp.NewMutator(device.NewSSHDialer(), locker).Configure(cmd.Context(), router, action, prefix, cfg.ASN)
	event.WithDuration(time.Since(start))
	if err != nil {
		writeAudit(event.WithError(err))
		return err
	}
	writeAudit(event.WithSuccess())

	fmt.Printf("\n%s\n", cli.Outcome(true))
	return nil
}

func selectRouter(role string) (device.Endpoint, error) {
	switch role {
	case health.RolePrimary:
		return cfg.Routers.Primary, nil
	case health.RoleSecondary:
		return cfg.Routers.Secondary, nil
	default:
		return device.Endpoint{}, fmt.Errorf("--router must be %s or %s, got %q", health.RolePrimary, health.RoleSecondary, role)
	}
}

func writeAudit(event *audit.Event) {
	l := openAuditLogger()
	if l == nil {
		return
	}
	defer l.Close()
	if err := l.Log(event); err != nil {
		util.Warnf("Failed to write audit event: %v", err)
	}
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}
