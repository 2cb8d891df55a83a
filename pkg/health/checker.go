// Package health provides one-shot checks of the primary/secondary router
// pair a monitor watches.
package health

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/newtron-network/bgpwatch/pkg/device"
)

// Status represents the health status of a component
type Status string

const (
	StatusOK       Status = "ok"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusUnknown  Status = "unknown"
)

// severity orders statuses for worst-wins aggregation.
func (s Status) severity() int {
	switch s {
	case StatusCritical:
		return 3
	case StatusWarning:
		return 2
	case StatusUnknown:
		return 1
	default:
		return 0
	}
}

// Worst returns the more severe of a and b.
func Worst(a, b Status) Status {
	if b.severity() > a.severity() {
		return b
	}
	return a
}

// Result represents the result of a health check
type Result struct {
	Check     string        `json:"check"`
	Status    Status        `json:"status"`
	Message   string        `json:"message"`
	Details   interface{}   `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// Report contains all health check results for a router pair
type Report struct {
	Primary   string        `json:"primary"`
	Secondary string        `json:"secondary"`
	Peer      string        `json:"peer"`
	Timestamp time.Time     `json:"timestamp"`
	Overall   Status        `json:"overall"`
	Results   []Result      `json:"results"`
	Duration  time.Duration `json:"duration"`
}

// Target is what the checks look at.
type Target struct {
	Primary   device.Endpoint
	Secondary device.Endpoint
	Peer      string
	Prefixes  []string
}

// Check defines the interface for health checks
type Check interface {
	Name() string
	Run(ctx context.Context, t Target) Result
}

// Prober reports whether a router advertises a prefix to a peer.
type Prober interface {
	Advertised(ctx context.Context, router device.Endpoint, peer, prefix string) (bool, error)
}

// Checker runs health checks against a Target
type Checker struct {
	checks []Check
}

// NewChecker creates a checker with the default checks: a session to each
// router, the primary's advertisements and any active backup on the
// secondary.
func NewChecker(d device.Dialer, p Prober) *Checker {
	return NewCheckerWith(
		&SessionCheck{Role: RolePrimary, Dialer: d},
		&SessionCheck{Role: RoleSecondary, Dialer: d},
		&AdvertisementCheck{Prober: p},
		&BackupCheck{Prober: p},
	)
}

// NewCheckerWith creates a checker running exactly checks.
func NewCheckerWith(checks ...Check) *Checker {
	return &Checker{checks: checks}
}

// Names lists the configured checks in run order.
func (c *Checker) Names() []string {
	names := make([]string, len(c.checks))
	for i, check := range c.checks {
		names[i] = check.Name()
	}
	return names
}

// Run executes all health checks and returns a report
func (c *Checker) Run(ctx context.Context, t Target) *Report {
	start := time.Now()
	report := &Report{
		Primary:   t.Primary.String(),
		Secondary: t.Secondary.String(),
		Peer:      t.Peer,
		Timestamp: start,
		Results:   make([]Result, 0, len(c.checks)),
		Overall:   StatusOK,
	}

	for _, check := range c.checks {
		result := check.Run(ctx, t)
		report.Results = append(report.Results, result)
		report.Overall = Worst(report.Overall, result.Status)
	}

	report.Duration = time.Since(start)
	return report
}

// RunCheck runs a specific health check by name
func (c *Checker) RunCheck(ctx context.Context, t Target, name string) (*Result, error) {
	for _, check := range c.checks {
		if check.Name() == name {
			result := check.Run(ctx, t)
			return &result, nil
		}
	}
	return nil, fmt.Errorf("health check '%s' not found (available: %s)", name, strings.Join(c.Names(), ", "))
}

// Router roles.
const (
	RolePrimary   = "primary"
	RoleSecondary = "secondary"
)

// SessionCheck verifies a session can be opened to one of the routers.
type SessionCheck struct {
	Role   string
	Dialer device.Dialer
}

// Name returns the check name
func (c *SessionCheck) Name() string {
	return "session-" + c.Role
}

// Run opens and closes a session
func (c *SessionCheck) Run(ctx context.Context, t Target) Result {
	start := time.Now()
	result := Result{Check: c.Name(), Timestamp: start}

	ep := t.Primary
	if c.Role == RoleSecondary {
		ep = t.Secondary
	}

	s, err := c.Dialer.Open(ctx, ep)
	result.Duration = time.Since(start)
	if err != nil {
		result.Status = StatusCritical
		result.Message = err.Error()
		return result
	}
	s.Close()

	result.Status = StatusOK
	result.Message = fmt.Sprintf("Connected to %s (%s)", ep, ep.Address())
	return result
}

// AdvertisementCheck verifies the primary advertises every prefix to the peer.
type AdvertisementCheck struct {
	Prober Prober
}

// Name returns the check name
func (c *AdvertisementCheck) Name() string {
	return "advertisement-primary"
}

// Run probes each prefix on the primary. A missing prefix is critical; a
// prefix that could not be checked makes the result unknown.
func (c *AdvertisementCheck) Run(ctx context.Context, t Target) Result {
	start := time.Now()
	result := Result{Check: c.Name(), Timestamp: start}

	details := make(map[string]string, len(t.Prefixes))
	var missing, failed int
	for _, prefix := range t.Prefixes {
		ok, err := c.Prober.Advertised(ctx, t.Primary, t.Peer, prefix)
		switch {
		case err != nil:
			details[prefix] = "error: " + err.Error()
			failed++
		case ok:
			details[prefix] = "advertised"
		default:
			details[prefix] = "missing"
			missing++
		}
	}

	result.Duration = time.Since(start)
	result.Details = details

	switch {
	case missing > 0:
		result.Status = StatusCritical
		result.Message = fmt.Sprintf("%d of %d prefixes not advertised by %s to %s", missing, len(t.Prefixes), t.Primary, t.Peer)
	case failed > 0:
		result.Status = StatusUnknown
		result.Message = fmt.Sprintf("Could not check %d of %d prefixes on %s", failed, len(t.Prefixes), t.Primary)
	default:
		result.Status = StatusOK
		result.Message = fmt.Sprintf("All %d prefixes advertised by %s to %s", len(t.Prefixes), t.Primary, t.Peer)
	}
	return result
}

// BackupCheck reports prefixes currently advertised by the secondary, which
// means a backup injection is active.
type BackupCheck struct {
	Prober Prober
}

// Name returns the check name
func (c *BackupCheck) Name() string {
	return "backup-secondary"
}

// Run probes each prefix on the secondary
func (c *BackupCheck) Run(ctx context.Context, t Target) Result {
	start := time.Now()
	result := Result{Check: c.Name(), Timestamp: start}

	var active []string
	var failed int
	for _, prefix := range t.Prefixes {
		ok, err := c.Prober.Advertised(ctx, t.Secondary, t.Peer, prefix)
		if err != nil {
			failed++
			continue
		}
		if ok {
			active = append(active, prefix)
		}
	}

	result.Duration = time.Since(start)
	if len(active) > 0 {
		result.Details = active
	}

	switch {
	case len(active) > 0:
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Backup active on %s for %s", t.Secondary, strings.Join(active, ", "))
	case failed > 0:
		result.Status = StatusUnknown
		result.Message = fmt.Sprintf("Could not check %d of %d prefixes on %s", failed, len(t.Prefixes), t.Secondary)
	default:
		result.Status = StatusOK
		result.Message = fmt.Sprintf("No backup advertisements on %s", t.Secondary)
	}
	return result
}
