package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/newtron-network/bgpwatch/pkg/bgp"
	"github.com/newtron-network/bgpwatch/pkg/device"
	"github.com/newtron-network/bgpwatch/pkg/monitor"
	"github.com/newtron-network/bgpwatch/pkg/server"
	"github.com/newtron-network/bgpwatch/pkg/util"
)

var runListen string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the advertisement monitor",
	Long: `Run the monitor loop until interrupted.

While every prefix is advertised by the primary router the monitor polls
quickly. When one goes missing it injects a backup network statement on
the secondary router and switches to slow polling, withdrawing the backup
as soon as the primary advertises the prefix again.

With --listen, liveness, status and Prometheus metrics are served over HTTP.

Examples:
  bgpwatch run
  bgpwatch run --listen :9273`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		listen := runListen
		if listen == "" && userSettings != nil {
			listen = userSettings.ListenAddr
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		locker, closeLocker := newLocker()
		defer closeLocker()
		if rl, ok := locker.(*device.RedisLocker); ok {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := rl.Ping(pingCtx)
			cancel()
			if err != nil {
				util.Warnf("Redis lock at %s unreachable, using process-local lock: %v", cfg.Lock.RedisAddr, err)
				locker = device.NewLocalLocker()
			}
		}

		opts := []monitor.Option{monitor.WithMetrics(monitor.NewMetrics(reg))}
		if al := openAuditLogger(); al != nil {
			defer al.Close()
			opts = append(opts, monitor.WithAuditLogger(al))
		}

		dialer := device.NewSSHDialer()
		mon := monitor.New(cfg.MonitorConfig(), bgp.NewProber(dialer), bgp.NewMutator(dialer, locker), opts...)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return mon.Run(gctx)
		})
		if listen != "" {
			g.Go(func() error {
				return server.Run(gctx, listen, server.New(mon, reg).Handler())
			})
		}
		return g.Wait()
	},
}

func init() {
	runCmd.Flags().StringVar(&runListen, "listen", "", "Serve /healthz, /status and /metrics on this address (default from settings)")
}
