package device

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	expect "github.com/google/goexpect"

	"github.com/newtron-network/bgpwatch/pkg/util"
)

// cannedExpecter answers every Expect with out/err and records what was sent.
type cannedExpecter struct {
	out    string
	err    error
	sent   []string
	waits  []time.Duration
	closed bool
}

func (c *cannedExpecter) Expect(_ *regexp.Regexp, d time.Duration) (string, []string, error) {
	c.waits = append(c.waits, d)
	return c.out, nil, c.err
}

func (c *cannedExpecter) Send(s string) error {
	c.sent = append(c.sent, s)
	return nil
}

func (c *cannedExpecter) Close() error {
	c.closed = true
	return nil
}

func testSession(exp expecter, timeout time.Duration) *sshSession {
	return &sshSession{
		host:    "router1",
		exp:     exp,
		prompt:  regexp.MustCompile(DefaultPrompt),
		timeout: timeout,
	}
}

func TestSSHSession_ExecuteOverExpect(t *testing.T) {
	router := []expect.Batcher{
		&expect.BExp{R: `advertised-routes\n`},
		&expect.BSnd{S: "   Network          Next Hop\r\n*> 192.168.10.0/24  0.0.0.0\r\nrouter1# "},
		&expect.BExp{R: `show version\n`},
		&expect.BSnd{S: "show version\r\nFRRouting 8.4\r\nrouter1# "},
	}
	exp, _, err := expect.SpawnFake(router, 5*time.Second, expect.PartialMatch(true))
	if err != nil {
		t.Fatalf("SpawnFake error = %v", err)
	}
	s := testSession(exp, 5*time.Second)
	defer s.Close()

	out, err := s.Execute(context.Background(), "show ip bgp neighbors 1.1.1.1 advertised-routes", nil)
	if err != nil {
		t.Fatalf("Execute error = %v", err)
	}
	want := "   Network          Next Hop\n*> 192.168.10.0/24  0.0.0.0"
	if out != want {
		t.Errorf("Execute = %q, want %q", out, want)
	}

	out, err = s.Execute(context.Background(), "show version", nil)
	if err != nil {
		t.Fatalf("Execute error = %v", err)
	}
	if out != "FRRouting 8.4" {
		t.Errorf("Execute = %q, want echo and prompt stripped", out)
	}
}

func TestSSHSession_ExecuteTimeout(t *testing.T) {
	exp := &cannedExpecter{out: "Building configuration...", err: expect.TimeoutError(time.Second)}
	s := testSession(exp, time.Second)

	out, err := s.Execute(context.Background(), "write memory", nil)
	if !errors.Is(err, util.ErrCommand) {
		t.Fatalf("error = %v, want ErrCommand", err)
	}
	var cerr *util.CommandError
	if !errors.As(err, &cerr) || cerr.Output != "Building configuration..." {
		t.Errorf("CommandError = %+v", cerr)
	}
	if out != "Building configuration..." {
		t.Errorf("partial output = %q", out)
	}
	if len(exp.sent) != 1 || exp.sent[0] != "write memory\n" {
		t.Errorf("sent = %q", exp.sent)
	}
}

func TestSSHSession_ExecuteCancelled(t *testing.T) {
	exp := &cannedExpecter{}
	s := testSession(exp, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Execute(ctx, "show version", nil)
	if !errors.Is(err, util.ErrCommand) || !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want ErrCommand wrapping context.Canceled", err)
	}
	if len(exp.sent) != 0 {
		t.Errorf("sent %q on a cancelled context", exp.sent)
	}
}

func TestSSHSession_BudgetFollowsDeadline(t *testing.T) {
	exp := &cannedExpecter{out: "router1# "}
	s := testSession(exp, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := s.Execute(ctx, "end", nil); err != nil {
		t.Fatalf("Execute error = %v", err)
	}
	if len(exp.waits) != 1 || exp.waits[0] > 2*time.Second || exp.waits[0] <= 0 {
		t.Errorf("expect wait = %v, want at most the context deadline", exp.waits)
	}

	if _, err := s.Execute(context.Background(), "end", nil); err != nil {
		t.Fatalf("Execute error = %v", err)
	}
	if exp.waits[1] != time.Minute {
		t.Errorf("expect wait = %v, want the command timeout", exp.waits[1])
	}
}

func TestSSHSession_Close(t *testing.T) {
	exp := &cannedExpecter{}
	if err := testSession(exp, time.Second).Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}
	if !exp.closed {
		t.Error("expecter not closed")
	}
}

func TestLoginPrompt(t *testing.T) {
	banners := map[string]string{
		"bash user": "Welcome to SONiC\nadmin@sonic:~$ ",
		"root":      "root@frr:/# ",
		"vtysh":     "Hello, this is FRRouting\nrouter1# ",
		"user exec": "router1> ",
	}
	for name, banner := range banners {
		if !loginPrompt.MatchString(banner) {
			t.Errorf("%s: login prompt not matched in %q", name, banner)
		}
	}
	if loginPrompt.MatchString("Last login: Mon Oct 12") {
		t.Error("login prompt matched a banner line")
	}
}

func TestCleanOutput(t *testing.T) {
	prompt := regexp.MustCompile(DefaultPrompt)

	tests := []struct {
		name    string
		raw     string
		command string
		want    string
	}{
		{
			name:    "echo and prompt stripped",
			raw:     "show ip bgp summary\nIPv4 Unicast Summary:\nrouter1# ",
			command: "show ip bgp summary",
			want:    "IPv4 Unicast Summary:",
		},
		{
			name:    "config mode prompt",
			raw:     "router bgp 65000\nrouter1(config-router)# ",
			command: "router bgp 65000",
			want:    "",
		},
		{
			name:    "no echo",
			raw:     "line1\nline2\nrouter1# ",
			command: "show version",
			want:    "line1\nline2",
		},
		{
			name:    "empty",
			raw:     "",
			command: "end",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cleanOutput(tt.raw, tt.command, prompt)
			if got != tt.want {
				t.Errorf("cleanOutput() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeNewlines(t *testing.T) {
	if got := normalizeNewlines("a\r\nb\rc\n"); got != "a\nbc\n" {
		t.Errorf("normalizeNewlines = %q", got)
	}
}
