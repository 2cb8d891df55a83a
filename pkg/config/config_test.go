package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/newtron-network/bgpwatch/pkg/device"
	"github.com/newtron-network/bgpwatch/pkg/monitor"
	"github.com/newtron-network/bgpwatch/pkg/util"
)

const validYAML = `
routers:
  primary:
    host: 192.168.1.1
    username: admin
    password: ${BGPWATCH_TEST_PASSWORD}
  secondary:
    name: edge2
    host: 192.168.1.2
    port: 2222
    username: admin
    key_file: /etc/bgpwatch/id_ed25519
    transport: ssh-vtysh
    timeout: 45s
peer: 1.1.1.1
asn: "65000"
prefixes:
  - 192.168.10.0/24
  - 2001:db8:10::/48
intervals:
  fast: 2s
  slow: 1m
lock:
  redis_addr: localhost:6379
audit:
  path: /var/log/bgpwatch/audit.log
`

func TestParse_Valid(t *testing.T) {
	t.Setenv("BGPWATCH_TEST_PASSWORD", "s3cret")

	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse error = %v", err)
	}

	if cfg.Routers.Primary.Password != "s3cret" {
		t.Errorf("password not expanded: %q", cfg.Routers.Primary.Password)
	}
	if cfg.Routers.Primary.Name != "primary" {
		t.Errorf("primary name = %q, want default", cfg.Routers.Primary.Name)
	}
	sec := cfg.Routers.Secondary
	if sec.Name != "edge2" || sec.Port != 2222 || sec.Transport != device.TransportSSHVtysh {
		t.Errorf("secondary = %+v", sec)
	}
	if sec.Timeout != 45*time.Second {
		t.Errorf("secondary timeout = %v", sec.Timeout)
	}
	if len(cfg.Prefixes) != 2 || cfg.Prefixes[1] != "2001:db8:10::/48" {
		t.Errorf("prefixes = %v", cfg.Prefixes)
	}

	if cfg.Intervals.Fast != 2*time.Second {
		t.Errorf("fast = %v", cfg.Intervals.Fast)
	}
	if cfg.Intervals.Slow != time.Minute {
		t.Errorf("slow = %v", cfg.Intervals.Slow)
	}
	if cfg.Intervals.RetryBackoff != monitor.DefaultRetryBackoff {
		t.Errorf("retry_backoff = %v, want default", cfg.Intervals.RetryBackoff)
	}
	if cfg.Intervals.ErrorCooldown != monitor.DefaultErrorCooldown {
		t.Errorf("error_cooldown = %v, want default", cfg.Intervals.ErrorCooldown)
	}
	// secondary: 30s dial plus ten prompt waits at 45s
	if cfg.Lock.TTL != 480*time.Second || cfg.Lock.Wait != DefaultLockWait {
		t.Errorf("lock = %+v", cfg.Lock)
	}
	if cfg.Audit.MaxSize != DefaultAuditMaxSize || cfg.Audit.MaxBackups != DefaultAuditMaxBackups {
		t.Errorf("audit = %+v", cfg.Audit)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestParse_LiteralDollar(t *testing.T) {
	t.Setenv("BGPWATCH_TEST_PASSWORD", "unused")
	data := strings.Replace(validYAML, "password: ${BGPWATCH_TEST_PASSWORD}",
		"password: 'pa$$w0rd'\n    prompt: '[$#]\\s*$'", 1)

	cfg, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse error = %v", err)
	}
	if got := cfg.Routers.Primary.Password; got != "pa$$w0rd" {
		t.Errorf("password = %q, want pa$$w0rd", got)
	}
	if got := cfg.Routers.Primary.Prompt; got != `[$#]\s*$` {
		t.Errorf("prompt = %q, want [$#]\\s*$", got)
	}
}

func TestApplyDefaults_LockTTLCoversConfigureSession(t *testing.T) {
	tests := []struct {
		name    string
		ttl     time.Duration
		timeout time.Duration
		want    time.Duration
	}{
		{name: "default raised", ttl: 0, timeout: 0, want: 330 * time.Second},
		{name: "short timeout keeps default", ttl: 0, timeout: 2 * time.Second, want: DefaultLockTTL},
		{name: "configured too short", ttl: time.Minute, timeout: 10 * time.Second, want: 130 * time.Second},
		{name: "configured long enough", ttl: time.Hour, timeout: 0, want: time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{Lock: LockConfig{TTL: tt.ttl}}
			c.Routers.Primary.Timeout = 2 * time.Second
			c.Routers.Secondary.Timeout = tt.timeout
			c.ApplyDefaults()
			if c.Lock.TTL != tt.want {
				t.Errorf("Lock.TTL = %v, want %v", c.Lock.TTL, tt.want)
			}
		})
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("BGPWATCH_TEST_HOST", "edge1")
	t.Setenv("HOME", "/root")

	tests := []struct {
		in, want string
	}{
		{"host: ${BGPWATCH_TEST_HOST}", "host: edge1"},
		{"host: ${BGPWATCH_TEST_UNSET}", "host: "},
		{"path: $HOME/x", "path: $HOME/x"},
		{"a$$b", "a$$b"},
		{"${1BAD}", "${1BAD}"},
		{"trailing $", "trailing $"},
	}
	for _, tt := range tests {
		if got := string(expandEnv([]byte(tt.in))); got != tt.want {
			t.Errorf("expandEnv(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParse_Conversions(t *testing.T) {
	t.Setenv("BGPWATCH_TEST_PASSWORD", "x")
	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatal(err)
	}

	mc := cfg.MonitorConfig()
	if mc.Secondary.Name != "edge2" || mc.Peer != "1.1.1.1" || mc.ASN != "65000" {
		t.Errorf("MonitorConfig = %+v", mc)
	}
	if mc.FastInterval != 2*time.Second || mc.SlowInterval != time.Minute {
		t.Errorf("MonitorConfig intervals = %v / %v", mc.FastInterval, mc.SlowInterval)
	}

	ht := cfg.HealthTarget()
	if ht.Primary.Host != "192.168.1.1" || len(ht.Prefixes) != 2 {
		t.Errorf("HealthTarget = %+v", ht)
	}

	if !cfg.HasPrefix("192.168.10.0/24") || cfg.HasPrefix("10.0.0.0/8") {
		t.Error("HasPrefix mismatch")
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{
			name:    "empty",
			yaml:    "",
			wantMsg: "empty configuration",
		},
		{
			name:    "unknown field",
			yaml:    "peer: 1.1.1.1\nbogus: true\n",
			wantMsg: "bogus",
		},
		{
			name: "missing everything",
			yaml: "log: {level: debug}\n",
			wantMsg: "routers.primary.host is required",
		},
		{
			name: "bad peer and prefix",
			yaml: `
routers:
  primary: {host: r1, username: u}
  secondary: {host: r2, username: u}
peer: not-an-ip
asn: "65000"
prefixes: [10.0.0.0/33]
`,
			wantMsg: "not a valid CIDR",
		},
		{
			name: "duplicate prefix",
			yaml: `
routers:
  primary: {host: r1, username: u}
  secondary: {host: r2, username: u}
peer: 1.1.1.1
asn: "65000"
prefixes: [10.0.0.0/24, 10.0.0.0/24]
`,
			wantMsg: "more than once",
		},
		{
			name: "bad transport and prompt",
			yaml: `
routers:
  primary: {host: r1, username: u, transport: telnet}
  secondary: {host: r2, username: u, prompt: "(["}
peer: 1.1.1.1
asn: "65000"
prefixes: [10.0.0.0/24]
`,
			wantMsg: "must be ssh or ssh-vtysh",
		},
		{
			name: "same router twice",
			yaml: `
routers:
  primary: {host: r1, username: u}
  secondary: {host: r1, username: u}
peer: 1.1.1.1
asn: "65000"
prefixes: [10.0.0.0/24]
`,
			wantMsg: "must be different routers",
		},
		{
			name: "bad asn and interval",
			yaml: `
routers:
  primary: {host: r1, username: u}
  secondary: {host: r2, username: u}
peer: 1.1.1.1
asn: "0"
prefixes: [10.0.0.0/24]
intervals: {fast: -1s}
`,
			wantMsg: "intervals.fast must be positive",
		},
		{
			name: "bad log format",
			yaml: `
routers:
  primary: {host: r1, username: u}
  secondary: {host: r2, username: u}
peer: 1.1.1.1
asn: "65000"
prefixes: [10.0.0.0/24]
log: {format: xml}
`,
			wantMsg: "log.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantMsg)
			}
			if !errors.Is(err, util.ErrInvalidConfig) && !errors.Is(err, util.ErrValidationFailed) {
				t.Errorf("error %v should wrap ErrInvalidConfig or ErrValidationFailed", err)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	err := cfg.Validate()
	var verr *util.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	// hosts, usernames, peer, asn, prefixes
	if len(verr.Errors) < 7 {
		t.Errorf("got %d errors, want at least 7: %v", len(verr.Errors), verr.Errors)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("BGPWATCH_TEST_PASSWORD", "x")
	path := filepath.Join(t.TempDir(), "bgpwatch.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if cfg.ASN != "65000" {
		t.Errorf("ASN = %q", cfg.ASN)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load of a missing file should fail")
	}
}
