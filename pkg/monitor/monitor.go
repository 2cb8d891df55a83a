// Package monitor runs the control loop that watches a primary router's
// advertisements to a peer and fails prefixes over to a secondary router.
//
// The loop has two global phases. In fast-poll it probes every prefix on the
// primary and injects a backup network statement on the secondary for any
// prefix that went missing. Once a backup is active it switches to slow-poll,
// waits SlowInterval before each pass, and withdraws the backup of any prefix
// the primary advertises again. A prefix is never injected twice in a row or
// removed unless it was injected, and its state only advances after the
// router confirmed the change.
package monitor

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/newtron-network/bgpwatch/pkg/audit"
	"github.com/newtron-network/bgpwatch/pkg/bgp"
	"github.com/newtron-network/bgpwatch/pkg/device"
	"github.com/newtron-network/bgpwatch/pkg/util"
)

// Default timings.
const (
	DefaultFastInterval  = 5 * time.Second
	DefaultSlowInterval  = 5 * time.Minute
	DefaultRetryBackoff  = 10 * time.Second
	DefaultErrorCooldown = 30 * time.Second
)

// Prober reports whether router advertises prefix to peer. It never fails;
// problems surface as bgp.Indeterminate.
type Prober interface {
	Observe(ctx context.Context, router device.Endpoint, peer, prefix string) bgp.Observation
}

// Mutator applies an inject or remove on router and reports success.
type Mutator interface {
	Apply(ctx context.Context, router device.Endpoint, action bgp.Action, prefix, asn string) bool
}

// Config is the fixed input of a Monitor.
type Config struct {
	Primary   device.Endpoint
	Secondary device.Endpoint
	Peer      string
	ASN       string
	Prefixes  []string

	FastInterval  time.Duration
	SlowInterval  time.Duration
	RetryBackoff  time.Duration
	ErrorCooldown time.Duration
}

func (c *Config) applyDefaults() {
	if c.FastInterval <= 0 {
		c.FastInterval = DefaultFastInterval
	}
	if c.SlowInterval <= 0 {
		c.SlowInterval = DefaultSlowInterval
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.ErrorCooldown <= 0 {
		c.ErrorCooldown = DefaultErrorCooldown
	}
}

// SleepFunc pauses for d or until ctx is done, returning ctx.Err() in the
// latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures a Monitor.
type Option func(*Monitor)

// WithMetrics records probe and remediation metrics.
func WithMetrics(m *Metrics) Option {
	return func(mon *Monitor) { mon.metrics = m }
}

// WithAuditLogger records every remediation attempt.
func WithAuditLogger(l audit.Logger) Option {
	return func(mon *Monitor) { mon.audit = l }
}

// WithSleep replaces the timer-based sleep, mainly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(mon *Monitor) { mon.sleep = fn }
}

// Monitor is the advertisement control loop.
type Monitor struct {
	cfg     Config
	prober  Prober
	mutator Mutator
	state   *PrefixState
	metrics *Metrics
	audit   audit.Logger
	sleep   SleepFunc

	mu        sync.RWMutex
	phase     Phase
	cycles    uint64
	lastCycle time.Time
	observed  map[string]observation
}

type observation struct {
	result bgp.Observation
	at     time.Time
}

// New creates a monitor in fast-poll with every prefix at None.
func New(cfg Config, prober Prober, mutator Mutator, opts ...Option) *Monitor {
	cfg.applyDefaults()
	m := &Monitor{
		cfg:      cfg,
		prober:   prober,
		mutator:  mutator,
		state:    NewPrefixState(cfg.Prefixes),
		sleep:    sleepContext,
		phase:    FastPoll,
		observed: make(map[string]observation),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Phase returns the current polling phase.
func (m *Monitor) Phase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// State returns the per-prefix remediation state.
func (m *Monitor) State() *PrefixState {
	return m.state
}

func (m *Monitor) setPhase(p Phase) {
	m.mu.Lock()
	m.phase = p
	m.mu.Unlock()
	m.metrics.setPhase(p)
}

// Run drives Step until ctx is cancelled, then returns nil. An error or
// panic escaping a cycle is logged and followed by ErrorCooldown, after which
// the loop resumes in its current phase.
func (m *Monitor) Run(ctx context.Context) error {
	util.Infof("Monitoring prefixes %s advertised by %s to %s (backup %s)",
		strings.Join(m.state.Prefixes(), ", "), m.cfg.Primary, m.cfg.Peer, m.cfg.Secondary)

	m.metrics.setPhase(m.Phase())
	for _, p := range m.state.Prefixes() {
		m.metrics.setPrefixAction(p, m.state.Get(p))
	}

	for {
		if ctx.Err() != nil {
			util.Info("Monitor stopped")
			return nil
		}

		err := m.safeStep(ctx)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			util.Info("Monitor stopped")
			return nil
		}

		m.metrics.incUnexpected()
		util.Errorf("Unexpected error: %v; resuming in %s", err, m.cfg.ErrorCooldown)
		if m.sleep(ctx, m.cfg.ErrorCooldown) != nil {
			util.Info("Monitor stopped")
			return nil
		}
	}
}

func (m *Monitor) safeStep(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			util.Logger.Debugf("monitor panic stack:\n%s", debug.Stack())
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return m.Step(ctx)
}

// Step runs one cycle of the current phase, including its sleeps. It returns
// ctx.Err() when cancelled at a sleep or between prefixes.
func (m *Monitor) Step(ctx context.Context) error {
	phase := m.Phase()
	start := time.Now()
	defer func() {
		m.mu.Lock()
		m.cycles++
		m.lastCycle = time.Now()
		m.mu.Unlock()
		m.metrics.observeCycle(phase, time.Since(start).Seconds())
	}()

	if phase == SlowPoll {
		return m.slowCycle(ctx)
	}
	return m.fastCycle(ctx)
}

func (m *Monitor) fastCycle(ctx context.Context) error {
	for _, prefix := range m.cfg.Prefixes {
		if err := ctx.Err(); err != nil {
			return err
		}
		log := util.WithPrefix(prefix)

		obs := m.observe(ctx, prefix)
		switch {
		case obs == bgp.Indeterminate:
			log.Warnf("Could not check %s on %s; retrying in %s", prefix, m.cfg.Primary, m.cfg.RetryBackoff)
			if err := m.sleep(ctx, m.cfg.RetryBackoff); err != nil {
				return err
			}
		case obs == bgp.Absent && m.state.Get(prefix) != Injected:
			log.Warnf("Prefix %s not advertised by %s to %s; injecting on %s",
				prefix, m.cfg.Primary, m.cfg.Peer, m.cfg.Secondary)
			if m.mutate(ctx, bgp.ActionInject, prefix) {
				m.setAction(prefix, Injected)
				m.setPhase(SlowPoll)
				log.Infof("Injected %s on %s", prefix, m.cfg.Secondary)
			} else {
				log.Errorf("Failed to inject %s on %s", prefix, m.cfg.Secondary)
			}
		case obs == bgp.Absent:
			log.Infof("Prefix %s still missing from %s; backup already injected on %s",
				prefix, m.cfg.Primary, m.cfg.Secondary)
		default:
			log.Infof("Prefix %s advertised by %s to %s", prefix, m.cfg.Primary, m.cfg.Peer)
		}
	}
	return m.sleep(ctx, m.cfg.FastInterval)
}

func (m *Monitor) slowCycle(ctx context.Context) error {
	util.Infof("In %s; next check in %s", SlowPoll, m.cfg.SlowInterval)
	if err := m.sleep(ctx, m.cfg.SlowInterval); err != nil {
		return err
	}

	for _, prefix := range m.cfg.Prefixes {
		if err := ctx.Err(); err != nil {
			return err
		}
		log := util.WithPrefix(prefix)

		obs := m.observe(ctx, prefix)
		switch {
		case obs == bgp.Indeterminate:
			log.Warnf("Could not check %s on %s; skipping", prefix, m.cfg.Primary)
		case obs == bgp.Present && m.state.Get(prefix) == Injected:
			log.Infof("Prefix %s advertised again by %s; removing backup from %s",
				prefix, m.cfg.Primary, m.cfg.Secondary)
			if m.mutate(ctx, bgp.ActionRemove, prefix) {
				m.setAction(prefix, Removed)
				m.setPhase(FastPoll)
				log.Infof("Removed %s from %s", prefix, m.cfg.Secondary)
			} else {
				log.Errorf("Failed to remove %s from %s", prefix, m.cfg.Secondary)
			}
		case obs == bgp.Present:
			log.Infof("Prefix %s advertised by %s to %s", prefix, m.cfg.Primary, m.cfg.Peer)
		default:
			log.Infof("Prefix %s still missing from %s", prefix, m.cfg.Primary)
		}
	}
	return nil
}

// observe probes the primary on a context that outlives cancellation of the
// run so an in-flight session is not torn down mid-command.
func (m *Monitor) observe(ctx context.Context, prefix string) bgp.Observation {
	obs := m.prober.Observe(context.WithoutCancel(ctx), m.cfg.Primary, m.cfg.Peer, prefix)

	m.mu.Lock()
	m.observed[prefix] = observation{result: obs, at: time.Now()}
	m.mu.Unlock()
	m.metrics.observeProbe(prefix, obs.String())
	return obs
}

// mutate applies action on the secondary and records the attempt.
func (m *Monitor) mutate(ctx context.Context, action bgp.Action, prefix string) bool {
	start := time.Now()
	ok := m.mutator.Apply(context.WithoutCancel(ctx), m.cfg.Secondary, action, prefix, m.cfg.ASN)
	m.metrics.observeRemediation(prefix, string(action), ok)

	if m.audit != nil {
		cmds, _ := bgp.ConfigCommands(action, prefix, m.cfg.ASN)
		event := audit.NewEvent(audit.InitiatorMonitor, m.cfg.Secondary.String(), string(action)).
			WithPrefix(prefix).
			WithASN(m.cfg.ASN).
			WithCommands(cmds).
			WithDuration(time.Since(start))
		if ok {
			event.WithSuccess()
		} else {
			event.WithError(fmt.Errorf("%s of %s on %s failed", action, prefix, m.cfg.Secondary))
		}
		if err := m.audit.Log(event); err != nil {
			util.Warnf("audit: %v", err)
		}
	}
	return ok
}

func (m *Monitor) setAction(prefix string, a Action) {
	m.state.Set(prefix, a)
	m.metrics.setPrefixAction(prefix, a)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
