// bgpwatch - BGP advertisement monitor with secondary-router failover
//
// bgpwatch watches whether a primary FRR router advertises a set of prefixes
// to a BGP peer. When a prefix disappears it injects a backup "network"
// statement on a secondary router, and withdraws it once the primary
// advertises the prefix again.
//
// Commands:
//
//	run               - Run the monitor loop (optionally with a status server)
//	check             - One-shot health report of both routers
//	inject/remove     - Manually add or withdraw a backup (-x to execute)
//	audit list        - Show recorded remediation attempts
//	settings          - Persistent CLI defaults
//
// Examples:
//
//	bgpwatch -c /etc/bgpwatch/bgpwatch.yaml run --listen :9273
//	bgpwatch check
//	bgpwatch inject 192.168.10.0/24          # preview
//	bgpwatch inject 192.168.10.0/24 -x       # execute
//	bgpwatch audit list --last 24h --failures
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/newtron-network/bgpwatch/pkg/audit"
	"github.com/newtron-network/bgpwatch/pkg/cli"
	"github.com/newtron-network/bgpwatch/pkg/config"
	"github.com/newtron-network/bgpwatch/pkg/device"
	"github.com/newtron-network/bgpwatch/pkg/settings"
	"github.com/newtron-network/bgpwatch/pkg/util"
	"github.com/newtron-network/bgpwatch/pkg/version"
)

var (
	// Global option flags
	configPath string
	logFormat  string
	verbose    bool
	noColor    bool

	// Local flags registered by addWriteFlags / addOutputFlags
	executeMode bool
	jsonOutput  bool

	// Global state
	userSettings *settings.Settings
	cfg          *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, cli.Red("Error:"), err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "bgpwatch",
	Short:             "BGP advertisement monitor with secondary-router failover",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `bgpwatch monitors whether a primary router advertises a set of prefixes
to a BGP peer and injects a backup advertisement on a secondary router
while the primary's is missing.

Manual inject/remove preview changes by default; use -x to execute.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			cli.SetColor(false)
		}
		if skipsConfig(cmd) {
			return nil
		}

		var err error
		userSettings, err = settings.Load()
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			userSettings = &settings.Settings{}
		}

		if configPath == "" {
			configPath = userSettings.GetConfigPath()
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if userSettings.AuditLog != "" {
			cfg.Audit.Path = userSettings.AuditLog
		}

		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		if err := util.SetLogLevel(level); err != nil {
			return fmt.Errorf("log level: %w", err)
		}
		format := cfg.Log.Format
		if logFormat != "" {
			format = logFormat
		}
		if err := util.SetLogFormat(format); err != nil {
			return err
		}

		return promptPasswords(cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (default from settings, then "+settings.DefaultConfigPath+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose (debug) logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	for _, cmd := range []*cobra.Command{injectCmd, removeCmd} {
		addWriteFlags(cmd)
	}
	for _, cmd := range []*cobra.Command{checkCmd, auditListCmd} {
		addOutputFlags(cmd)
	}

	rootCmd.AddGroup(
		&cobra.Group{ID: "monitor", Title: "Monitoring:"},
		&cobra.Group{ID: "remediate", Title: "Manual Remediation:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{runCmd, checkCmd} {
		cmd.GroupID = "monitor"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{injectCmd, removeCmd} {
		cmd.GroupID = "remediate"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{auditCmd, settingsCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

func addWriteFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&executeMode, "execute", "x", false, "Execute changes (default is dry-run)")
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "JSON output")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion("bgpwatch")
	},
}

func printVersion(tool string) {
	if version.Version == "dev" {
		fmt.Printf("%s dev build (set version via -ldflags for release info)\n", tool)
	} else {
		fmt.Printf("%s %s\n", tool, version.Info())
	}
}

// skipsConfig reports commands that run without a configuration file.
func skipsConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "settings", "version", "help", "completion":
			return true
		}
	}
	return false
}

// promptPasswords asks for the password of any router that has neither a
// password nor a key file, when stdin is a terminal.
func promptPasswords(c *config.Config) error {
	for _, ep := range []*device.Endpoint{&c.Routers.Primary, &c.Routers.Secondary} {
		if ep.Password != "" || ep.KeyFile != "" {
			continue
		}
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return fmt.Errorf("%s: no password or key_file configured and no terminal to prompt on", ep)
		}
		fmt.Fprintf(os.Stderr, "Password for %s@%s: ", ep.Username, ep.Host)
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		ep.Password = string(pw)
	}
	return nil
}

// newLocker returns the configuration lock selected by the config file and a
// function releasing its resources.
func newLocker() (device.Locker, func()) {
	if cfg.Lock.RedisAddr == "" {
		return device.NewLocalLocker(), func() {}
	}
	l := device.NewRedisLocker(device.RedisLockOptions{
		Addr:     cfg.Lock.RedisAddr,
		Password: cfg.Lock.RedisPassword,
		DB:       cfg.Lock.DB,
		TTL:      cfg.Lock.TTL,
		Wait:     cfg.Lock.Wait,
		Holder:   device.DefaultLockHolder(),
	})
	return l, func() { l.Close() }
}

// openAuditLogger opens the audit trail; nil when disabled or unavailable.
func openAuditLogger() *audit.FileLogger {
	if cfg.Audit.Path == "" {
		return nil
	}
	l, err := audit.NewFileLogger(cfg.Audit.Path, audit.RotationConfig{
		MaxSize:    cfg.Audit.MaxSize,
		MaxBackups: cfg.Audit.MaxBackups,
	})
	if err != nil {
		util.Warnf("Could not initialize audit logging: %v", err)
		return nil
	}
	return l
}
