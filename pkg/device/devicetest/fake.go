// Package devicetest provides a scripted device.Dialer for tests.
package devicetest

import (
	"context"
	"regexp"
	"sync"

	"github.com/newtron-network/bgpwatch/pkg/device"
	"github.com/newtron-network/bgpwatch/pkg/util"
)

// Call stores one Execute invocation.
type Call struct {
	Host    string
	Command string
}

// Dialer is a programmable fake. With no hooks set every Open succeeds and
// every command returns empty output.
type Dialer struct {
	mu sync.Mutex

	// OpenFunc, when set, decides whether Open fails for an endpoint.
	OpenFunc func(ep device.Endpoint) error
	// ExecFunc, when set, produces the output of each command.
	ExecFunc func(ep device.Endpoint, command string) (string, error)
	// Outputs maps a command to canned output; consulted when ExecFunc is nil.
	Outputs map[string]string

	Calls  []Call
	Opens  int
	Closes int
}

// Open records the open and returns a session bound to ep.
func (d *Dialer) Open(ctx context.Context, ep device.Endpoint) (device.Session, error) {
	d.mu.Lock()
	openFn := d.OpenFunc
	d.mu.Unlock()

	if openFn != nil {
		if err := openFn(ep); err != nil {
			return nil, util.NewConnectionError(ep.Host, err)
		}
	}

	d.mu.Lock()
	d.Opens++
	d.mu.Unlock()
	return &session{dialer: d, ep: ep}, nil
}

// CallsSnapshot returns a copy of accumulated calls.
func (d *Dialer) CallsSnapshot() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, len(d.Calls))
	copy(out, d.Calls)
	return out
}

// Commands returns the commands executed on host, in order.
func (d *Dialer) Commands(host string) []string {
	var out []string
	for _, c := range d.CallsSnapshot() {
		if c.Host == host {
			out = append(out, c.Command)
		}
	}
	return out
}

// Balanced reports whether every opened session was closed.
func (d *Dialer) Balanced() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Opens == d.Closes
}

type session struct {
	dialer *Dialer
	ep     device.Endpoint
	closed bool
}

func (s *session) Execute(ctx context.Context, command string, _ *regexp.Regexp) (string, error) {
	d := s.dialer
	d.mu.Lock()
	d.Calls = append(d.Calls, Call{Host: s.ep.Host, Command: command})
	execFn := d.ExecFunc
	out := d.Outputs[command]
	d.mu.Unlock()

	if execFn == nil {
		return out, nil
	}
	out, err := execFn(s.ep, command)
	if err != nil {
		return out, util.NewCommandError(s.ep.Host, command, out, err)
	}
	return out, nil
}

func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.dialer.mu.Lock()
	s.dialer.Closes++
	s.dialer.mu.Unlock()
	return nil
}
