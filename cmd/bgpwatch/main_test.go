package main

import (
	"errors"
	"testing"
	"time"

	"github.com/newtron-network/bgpwatch/pkg/audit"
	"github.com/newtron-network/bgpwatch/pkg/cli"
	"github.com/newtron-network/bgpwatch/pkg/config"
	"github.com/newtron-network/bgpwatch/pkg/device"
	"github.com/newtron-network/bgpwatch/pkg/util"
)

func TestParseLast(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"24h", 24 * time.Hour, false},
		{"90m", 90 * time.Minute, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"0d", 0, false},
		{"xd", 0, true},
		{"-1h", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		got, err := parseLast(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLast(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseLast(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSelectRouter(t *testing.T) {
	saved := cfg
	defer func() { cfg = saved }()
	cfg = &config.Config{Routers: config.Routers{
		Primary:   device.Endpoint{Name: "edge1", Host: "192.0.2.1"},
		Secondary: device.Endpoint{Name: "edge2", Host: "192.0.2.2"},
	}}

	ep, err := selectRouter("primary")
	if err != nil || ep.Name != "edge1" {
		t.Errorf("primary = %+v, %v", ep, err)
	}
	ep, err = selectRouter("secondary")
	if err != nil || ep.Name != "edge2" {
		t.Errorf("secondary = %+v, %v", ep, err)
	}
	if _, err := selectRouter("tertiary"); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestSkipsConfig(t *testing.T) {
	if !skipsConfig(settingsShowCmd) {
		t.Error("settings show should not need a config")
	}
	if !skipsConfig(versionCmd) {
		t.Error("version should not need a config")
	}
	if skipsConfig(runCmd) || skipsConfig(auditListCmd) {
		t.Error("run and audit list need a config")
	}
}

func TestEventStatus(t *testing.T) {
	cli.SetColor(false)
	defer cli.SetColor(true)

	tests := []struct {
		event *audit.Event
		want  string
	}{
		{&audit.Event{Success: true}, "ok"},
		{&audit.Event{Success: false}, "failed"},
		{&audit.Event{Success: true, DryRun: true}, "dry-run"},
	}
	for _, tt := range tests {
		if got := eventStatus(tt.event); got != tt.want {
			t.Errorf("eventStatus(%+v) = %q, want %q", tt.event, got, tt.want)
		}
	}
}

func TestRemediate_RejectsUnknownAction(t *testing.T) {
	err := remediate(injectCmd, "toggle", "192.0.2.0/24")
	if !errors.Is(err, util.ErrInvalidAction) {
		t.Errorf("remediate(toggle) error = %v, want ErrInvalidAction", err)
	}
}

func TestNoColorFlag(t *testing.T) {
	defer func() {
		noColor = false
		cli.SetColor(true)
		rootCmd.SetArgs(nil)
	}()
	cli.SetColor(true)

	rootCmd.SetArgs([]string{"--no-color", "version"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute error = %v", err)
	}
	if got := cli.Green("ok"); got != "ok" {
		t.Errorf("Green(ok) = %q, want no escape codes", got)
	}
}
