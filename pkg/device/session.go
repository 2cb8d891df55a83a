// Package device provides command sessions to routers and the per-router
// configuration locks that serialize changes on them.
//
// The monitor and bgp packages only see the Dialer and Session interfaces;
// SSHDialer is the production implementation and devicetest provides a
// scripted fake for tests.
package device

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

// Transport selects how a session reaches the routing-protocol shell.
type Transport string

const (
	// TransportSSH logs into a regular shell; vtysh is entered explicitly.
	TransportSSH Transport = "ssh"
	// TransportSSHVtysh logs straight into vtysh (vtysh is the login shell).
	TransportSSHVtysh Transport = "ssh-vtysh"
)

// Valid reports whether t is a known transport. The empty value means ssh.
func (t Transport) Valid() bool {
	switch t {
	case "", TransportSSH, TransportSSHVtysh:
		return true
	}
	return false
}

// Default session parameters.
const (
	DefaultPort           = 22
	DefaultCommandTimeout = 30 * time.Second

	// DefaultPrompt matches the FRR vtysh prompt ("router1# ", "router1(config)# ").
	DefaultPrompt = `#\s*$`

	// LoginPrompt matches the first prompt after login on either a unix
	// shell or vtysh.
	LoginPrompt = `[$#>]\s*$`
)

// Endpoint is the identity and connection parameters of one router.
// It is immutable after configuration load.
type Endpoint struct {
	Name       string        `yaml:"name,omitempty" json:"name,omitempty"`
	Host       string        `yaml:"host" json:"host"`
	Port       int           `yaml:"port,omitempty" json:"port,omitempty"`
	Username   string        `yaml:"username" json:"username"`
	Password   string        `yaml:"password,omitempty" json:"-"`
	KeyFile    string        `yaml:"key_file,omitempty" json:"key_file,omitempty"`
	KnownHosts string        `yaml:"known_hosts,omitempty" json:"known_hosts,omitempty"`
	Transport  Transport     `yaml:"transport,omitempty" json:"transport,omitempty"`
	Prompt     string        `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// String returns the endpoint's display name, falling back to its host.
func (e Endpoint) String() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Host
}

// Address returns host:port for dialing.
func (e Endpoint) Address() string {
	port := e.Port
	if port == 0 {
		port = DefaultPort
	}
	return fmt.Sprintf("%s:%d", e.Host, port)
}

// CommandTimeout bounds a single Execute call.
func (e Endpoint) CommandTimeout() time.Duration {
	if e.Timeout > 0 {
		return e.Timeout
	}
	return DefaultCommandTimeout
}

// TransportKind returns the transport with the default applied.
func (e Endpoint) TransportKind() Transport {
	if e.Transport == "" {
		return TransportSSH
	}
	return e.Transport
}

// PromptPattern compiles the endpoint's command-prompt terminator.
func (e Endpoint) PromptPattern() (*regexp.Regexp, error) {
	if e.Prompt == "" {
		return regexp.MustCompile(DefaultPrompt), nil
	}
	re, err := regexp.Compile(e.Prompt)
	if err != nil {
		return nil, fmt.Errorf("invalid prompt pattern %q for %s: %w", e.Prompt, e, err)
	}
	return re, nil
}

// Dialer opens command sessions to routers.
//
// Open fails with *util.ConnectionError when the host is unreachable or
// authentication fails.
type Dialer interface {
	Open(ctx context.Context, ep Endpoint) (Session, error)
}

// Session is an interactive command session on one router.
//
// Execute sends a single command line and returns its output once terminator
// matches the tail of the received text (the endpoint prompt when nil). It
// fails with *util.CommandError on timeout or a closed channel. Close must be
// called on every path once Open succeeded.
type Session interface {
	Execute(ctx context.Context, command string, terminator *regexp.Regexp) (string, error)
	Close() error
}
