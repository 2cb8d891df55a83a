package health

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/newtron-network/bgpwatch/pkg/device"
	"github.com/newtron-network/bgpwatch/pkg/device/devicetest"
)

// fakeProber answers from a per-router table: advertised[host][prefix].
type fakeProber struct {
	advertised map[string]map[string]bool
	failHosts  map[string]bool
}

func (p *fakeProber) Advertised(ctx context.Context, router device.Endpoint, peer, prefix string) (bool, error) {
	if p.failHosts[router.Host] {
		return false, errors.New("connection refused")
	}
	return p.advertised[router.Host][prefix], nil
}

func testTarget() Target {
	return Target{
		Primary:   device.Endpoint{Name: "router1", Host: "10.0.0.1"},
		Secondary: device.Endpoint{Name: "router2", Host: "10.0.0.2"},
		Peer:      "1.1.1.1",
		Prefixes:  []string{"192.0.2.0/24", "198.51.100.0/24"},
	}
}

func TestStatusConstants(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{StatusOK, "ok"},
		{StatusWarning, "warning"},
		{StatusCritical, "critical"},
		{StatusUnknown, "unknown"},
	}

	for _, tt := range tests {
		if string(tt.status) != tt.expected {
			t.Errorf("Status %v = %q, want %q", tt.status, string(tt.status), tt.expected)
		}
	}
}

func TestWorst(t *testing.T) {
	tests := []struct {
		a, b, want Status
	}{
		{StatusOK, StatusOK, StatusOK},
		{StatusOK, StatusUnknown, StatusUnknown},
		{StatusUnknown, StatusWarning, StatusWarning},
		{StatusWarning, StatusUnknown, StatusWarning},
		{StatusCritical, StatusWarning, StatusCritical},
		{StatusOK, StatusCritical, StatusCritical},
	}

	for _, tt := range tests {
		if got := Worst(tt.a, tt.b); got != tt.want {
			t.Errorf("Worst(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestChecker_AllHealthy(t *testing.T) {
	prober := &fakeProber{advertised: map[string]map[string]bool{
		"10.0.0.1": {"192.0.2.0/24": true, "198.51.100.0/24": true},
	}}
	checker := NewChecker(&devicetest.Dialer{}, prober)

	report := checker.Run(context.Background(), testTarget())

	if report.Overall != StatusOK {
		t.Errorf("Overall = %q, want %q", report.Overall, StatusOK)
	}
	if len(report.Results) != 4 {
		t.Fatalf("Results count = %d, want 4", len(report.Results))
	}
	for _, r := range report.Results {
		if r.Status != StatusOK {
			t.Errorf("Result %q: Status = %q (%s)", r.Check, r.Status, r.Message)
		}
	}
	if report.Primary != "router1" || report.Secondary != "router2" || report.Peer != "1.1.1.1" {
		t.Errorf("unexpected report header %+v", report)
	}
}

func TestChecker_BackupActive(t *testing.T) {
	prober := &fakeProber{advertised: map[string]map[string]bool{
		"10.0.0.1": {"192.0.2.0/24": true, "198.51.100.0/24": false},
		"10.0.0.2": {"198.51.100.0/24": true},
	}}
	checker := NewChecker(&devicetest.Dialer{}, prober)

	report := checker.Run(context.Background(), testTarget())
	if report.Overall != StatusCritical {
		t.Errorf("Overall = %q, want %q", report.Overall, StatusCritical)
	}

	backup, err := checker.RunCheck(context.Background(), testTarget(), "backup-secondary")
	if err != nil {
		t.Fatal(err)
	}
	if backup.Status != StatusWarning {
		t.Errorf("backup Status = %q, want %q", backup.Status, StatusWarning)
	}
	if !strings.Contains(backup.Message, "198.51.100.0/24") {
		t.Errorf("backup Message = %q", backup.Message)
	}

	adv, _ := checker.RunCheck(context.Background(), testTarget(), "advertisement-primary")
	details, ok := adv.Details.(map[string]string)
	if !ok {
		t.Fatalf("Details is not map[string]string, got %T", adv.Details)
	}
	if details["198.51.100.0/24"] != "missing" {
		t.Errorf("details = %v", details)
	}
}

func TestChecker_SecondaryUnreachable(t *testing.T) {
	dialer := &devicetest.Dialer{OpenFunc: func(ep device.Endpoint) error {
		if ep.Host == "10.0.0.2" {
			return errors.New("no route to host")
		}
		return nil
	}}
	prober := &fakeProber{
		advertised: map[string]map[string]bool{"10.0.0.1": {"192.0.2.0/24": true, "198.51.100.0/24": true}},
		failHosts:  map[string]bool{"10.0.0.2": true},
	}
	checker := NewChecker(dialer, prober)

	report := checker.Run(context.Background(), testTarget())
	if report.Overall != StatusCritical {
		t.Errorf("Overall = %q, want %q", report.Overall, StatusCritical)
	}

	byName := map[string]Result{}
	for _, r := range report.Results {
		byName[r.Check] = r
	}
	if byName["session-primary"].Status != StatusOK {
		t.Errorf("session-primary = %q", byName["session-primary"].Status)
	}
	if byName["session-secondary"].Status != StatusCritical {
		t.Errorf("session-secondary = %q", byName["session-secondary"].Status)
	}
	if byName["backup-secondary"].Status != StatusUnknown {
		t.Errorf("backup-secondary = %q", byName["backup-secondary"].Status)
	}
	if !dialer.Balanced() {
		t.Error("sessions opened by the session checks must be closed")
	}
}

func TestAdvertisementCheck_Unknown(t *testing.T) {
	prober := &fakeProber{failHosts: map[string]bool{"10.0.0.1": true}}
	check := &AdvertisementCheck{Prober: prober}

	result := check.Run(context.Background(), testTarget())
	if result.Status != StatusUnknown {
		t.Errorf("Status = %q, want %q", result.Status, StatusUnknown)
	}
}

func TestRunCheck_NotFound(t *testing.T) {
	checker := NewChecker(&devicetest.Dialer{}, &fakeProber{})

	_, err := checker.RunCheck(context.Background(), testTarget(), "nonexistent")
	if err == nil {
		t.Fatal("RunCheck() should return error for unknown check")
	}
	if !strings.Contains(err.Error(), "session-primary") {
		t.Errorf("error should list available checks: %v", err)
	}
}

func TestNewCheckerWith(t *testing.T) {
	checker := NewCheckerWith(&BackupCheck{Prober: &fakeProber{}})

	names := checker.Names()
	if len(names) != 1 || names[0] != "backup-secondary" {
		t.Errorf("Names() = %v", names)
	}
}

func TestNewChecker_DefaultOrder(t *testing.T) {
	checker := NewChecker(&devicetest.Dialer{}, &fakeProber{})

	want := []string{"session-primary", "session-secondary", "advertisement-primary", "backup-secondary"}
	if got := checker.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}
