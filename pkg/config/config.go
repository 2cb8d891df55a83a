// Package config loads and validates the bgpwatch YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/bgpwatch/pkg/bgp"
	"github.com/newtron-network/bgpwatch/pkg/device"
	"github.com/newtron-network/bgpwatch/pkg/health"
	"github.com/newtron-network/bgpwatch/pkg/monitor"
	"github.com/newtron-network/bgpwatch/pkg/util"
)

// Defaults for optional sections.
const (
	DefaultLockTTL         = 60 * time.Second
	DefaultLockWait        = 15 * time.Second
	DefaultAuditMaxSize    = 10 << 20
	DefaultAuditMaxBackups = 10
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

// Config is the parsed configuration file.
type Config struct {
	Routers   Routers     `yaml:"routers"`
	Peer      string      `yaml:"peer"`
	ASN       string      `yaml:"asn"`
	Prefixes  []string    `yaml:"prefixes"`
	Intervals Intervals   `yaml:"intervals"`
	Lock      LockConfig  `yaml:"lock"`
	Audit     AuditConfig `yaml:"audit"`
	Log       LogConfig   `yaml:"log"`
}

// Routers holds the router pair.
type Routers struct {
	Primary   device.Endpoint `yaml:"primary"`
	Secondary device.Endpoint `yaml:"secondary"`
}

// Intervals are the monitor timings.
type Intervals struct {
	Fast          time.Duration `yaml:"fast"`
	Slow          time.Duration `yaml:"slow"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
	ErrorCooldown time.Duration `yaml:"error_cooldown"`
}

// LockConfig selects the configuration lock. Without a Redis address the
// lock is process-local.
type LockConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	DB            int           `yaml:"db"`
	// TTL is raised to the longest configuration session either router can
	// run, so a held lock never expires mid-change.
	TTL           time.Duration `yaml:"ttl"`
	Wait          time.Duration `yaml:"wait"`
}

// AuditConfig locates the audit trail. An empty path disables it.
type AuditConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int64  `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
}

// LogConfig sets log level and format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads path, expands ${VAR} references from the environment, applies
// defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// envRef matches ${NAME}; a bare $ is left alone so passwords and prompt
// regexps can carry one.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${NAME} references with the environment value.
func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		return []byte(os.Getenv(string(ref[2 : len(ref)-1])))
	})
}

// Parse decodes, defaults and validates YAML configuration data.
func Parse(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(expandEnv(data)))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty configuration", util.ErrInvalidConfig)
		}
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidConfig, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset optional fields.
func (c *Config) ApplyDefaults() {
	if c.Routers.Primary.Name == "" {
		c.Routers.Primary.Name = health.RolePrimary
	}
	if c.Routers.Secondary.Name == "" {
		c.Routers.Secondary.Name = health.RoleSecondary
	}

	if c.Intervals.Fast == 0 {
		c.Intervals.Fast = monitor.DefaultFastInterval
	}
	if c.Intervals.Slow == 0 {
		c.Intervals.Slow = monitor.DefaultSlowInterval
	}
	if c.Intervals.RetryBackoff == 0 {
		c.Intervals.RetryBackoff = monitor.DefaultRetryBackoff
	}
	if c.Intervals.ErrorCooldown == 0 {
		c.Intervals.ErrorCooldown = monitor.DefaultErrorCooldown
	}

	if c.Lock.TTL == 0 {
		c.Lock.TTL = DefaultLockTTL
	}
	for _, ep := range []device.Endpoint{c.Routers.Primary, c.Routers.Secondary} {
		if need := bgp.LockTTL(ep); c.Lock.TTL < need {
			c.Lock.TTL = need
		}
	}
	if c.Lock.Wait == 0 {
		c.Lock.Wait = DefaultLockWait
	}

	if c.Audit.MaxSize == 0 {
		c.Audit.MaxSize = DefaultAuditMaxSize
	}
	if c.Audit.MaxBackups == 0 {
		c.Audit.MaxBackups = DefaultAuditMaxBackups
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	v := &util.ValidationBuilder{}

	validateEndpoint(v, "routers.primary", c.Routers.Primary)
	validateEndpoint(v, "routers.secondary", c.Routers.Secondary)
	if c.Routers.Primary.Host != "" && c.Routers.Primary.Address() == c.Routers.Secondary.Address() {
		v.AddErrorf("routers.primary and routers.secondary must be different routers")
	}

	v.Add(c.Peer != "", "peer is required")
	if c.Peer != "" {
		v.Add(util.IsValidIP(c.Peer), fmt.Sprintf("peer %q is not an IP address", c.Peer))
	}

	if c.ASN == "" {
		v.AddErrorf("asn is required")
	} else if _, err := util.ParseASN(c.ASN); err != nil {
		v.AddErrorf("asn: %v", err)
	}

	v.Add(len(c.Prefixes) > 0, "at least one prefix is required")
	seen := make(map[string]bool, len(c.Prefixes))
	for _, p := range c.Prefixes {
		if !util.IsValidCIDR(p) {
			v.AddErrorf("prefix %q is not a valid CIDR", p)
			continue
		}
		if seen[p] {
			v.AddErrorf("prefix %q listed more than once", p)
		}
		seen[p] = true
	}

	v.Add(c.Intervals.Fast > 0, "intervals.fast must be positive")
	v.Add(c.Intervals.Slow > 0, "intervals.slow must be positive")
	v.Add(c.Intervals.RetryBackoff > 0, "intervals.retry_backoff must be positive")
	v.Add(c.Intervals.ErrorCooldown > 0, "intervals.error_cooldown must be positive")

	v.Add(c.Lock.TTL > 0, "lock.ttl must be positive")
	v.Add(c.Lock.DB >= 0, "lock.db must not be negative")
	v.Add(c.Audit.MaxSize >= 0, "audit.max_size must not be negative")
	v.Add(c.Audit.MaxBackups >= 0, "audit.max_backups must not be negative")

	switch c.Log.Format {
	case "text", "json":
	default:
		v.AddErrorf("log.format %q must be text or json", c.Log.Format)
	}

	return v.Build()
}

func validateEndpoint(v *util.ValidationBuilder, field string, ep device.Endpoint) {
	v.Add(ep.Host != "", field+".host is required")
	v.Add(ep.Username != "", field+".username is required")
	v.Add(ep.Port >= 0 && ep.Port <= 65535, fmt.Sprintf("%s.port %d out of range", field, ep.Port))
	v.Add(ep.Transport.Valid(), fmt.Sprintf("%s.transport %q must be ssh or ssh-vtysh", field, ep.Transport))
	v.Add(ep.Timeout >= 0, field+".timeout must not be negative")
	if ep.Prompt != "" {
		if _, err := regexp.Compile(ep.Prompt); err != nil {
			v.AddErrorf("%s.prompt: %v", field, err)
		}
	}
}

// MonitorConfig converts the file into monitor input.
func (c *Config) MonitorConfig() monitor.Config {
	return monitor.Config{
		Primary:       c.Routers.Primary,
		Secondary:     c.Routers.Secondary,
		Peer:          c.Peer,
		ASN:           c.ASN,
		Prefixes:      append([]string(nil), c.Prefixes...),
		FastInterval:  c.Intervals.Fast,
		SlowInterval:  c.Intervals.Slow,
		RetryBackoff:  c.Intervals.RetryBackoff,
		ErrorCooldown: c.Intervals.ErrorCooldown,
	}
}

// HealthTarget converts the file into health check input.
func (c *Config) HealthTarget() health.Target {
	return health.Target{
		Primary:   c.Routers.Primary,
		Secondary: c.Routers.Secondary,
		Peer:      c.Peer,
		Prefixes:  append([]string(nil), c.Prefixes...),
	}
}

// HasPrefix reports whether prefix is monitored.
func (c *Config) HasPrefix(prefix string) bool {
	for _, p := range c.Prefixes {
		if p == prefix {
			return true
		}
	}
	return false
}
