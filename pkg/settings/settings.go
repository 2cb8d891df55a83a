// Package settings manages persistent user settings for the bgpwatch CLI.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DefaultConfigPath is used when neither -c nor a saved config path is set.
const DefaultConfigPath = "/etc/bgpwatch/bgpwatch.yaml"

// Settings holds persistent user preferences
type Settings struct {
	// ConfigPath is the configuration file used when -c is not specified
	ConfigPath string `json:"config_path,omitempty"`

	// AuditLog overrides audit.path from the configuration file
	AuditLog string `json:"audit_log,omitempty"`

	// ListenAddr is the default --listen address for run
	ListenAddr string `json:"listen_addr,omitempty"`
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "bgpwatch_settings.json"
	}
	return filepath.Join(home, ".bgpwatch", "settings.json")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path. A missing file yields empty
// settings.
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing settings %s: %w", path, err)
	}
	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// GetConfigPath returns the config path (with fallback)
func (s *Settings) GetConfigPath() string {
	if s.ConfigPath != "" {
		return s.ConfigPath
	}
	return DefaultConfigPath
}

// fields maps settings keys to their storage.
func (s *Settings) fields() map[string]*string {
	return map[string]*string{
		"config_path": &s.ConfigPath,
		"audit_log":   &s.AuditLog,
		"listen_addr": &s.ListenAddr,
	}
}

// Keys lists the settable keys.
func (s *Settings) Keys() []string {
	var keys []string
	for k := range s.fields() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns key. An empty value clears it.
func (s *Settings) Set(key, value string) error {
	f, ok := s.fields()[key]
	if !ok {
		return fmt.Errorf("unknown setting %q (valid: %v)", key, s.Keys())
	}
	*f = value
	return nil
}

// Get returns the value of key.
func (s *Settings) Get(key string) (string, error) {
	f, ok := s.fields()[key]
	if !ok {
		return "", fmt.Errorf("unknown setting %q (valid: %v)", key, s.Keys())
	}
	return *f, nil
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}
