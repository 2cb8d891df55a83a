// Package audit records every attempt to change a router's advertisements.
package audit

import (
	"fmt"
	"time"
)

// Operations recorded in the audit trail.
const (
	OperationInject = "inject"
	OperationRemove = "remove"
)

// InitiatorMonitor marks events raised by the monitor loop. Manual changes
// carry the invoking user's name instead.
const InitiatorMonitor = "monitor"

// Event is one remediation attempt against one router.
type Event struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Initiator string        `json:"initiator"`
	Router    string        `json:"router"`
	Operation string        `json:"operation"`
	Prefix    string        `json:"prefix"`
	ASN       string        `json:"asn,omitempty"`
	Commands  []string      `json:"commands,omitempty"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	DryRun    bool          `json:"dry_run"`
	Duration  time.Duration `json:"duration"`
}

// Filter selects events in Query. Zero fields match everything.
type Filter struct {
	Router      string
	Initiator   string
	Operation   string
	Prefix      string
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent creates an event stamped with the current time.
func NewEvent(initiator, router, operation string) *Event {
	now := time.Now()
	return &Event{
		ID:        generateID(now),
		Timestamp: now,
		Initiator: initiator,
		Router:    router,
		Operation: operation,
	}
}

// WithPrefix sets the prefix acted on
func (e *Event) WithPrefix(prefix string) *Event {
	e.Prefix = prefix
	return e
}

// WithASN sets the BGP instance the change was made under
func (e *Event) WithASN(asn string) *Event {
	e.ASN = asn
	return e
}

// WithCommands records the configuration commands sent
func (e *Event) WithCommands(cmds []string) *Event {
	e.Commands = cmds
	return e
}

// WithSuccess marks the event as successful
func (e *Event) WithSuccess() *Event {
	e.Success = true
	e.Error = ""
	return e
}

// WithError marks the event as failed
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets the operation duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

// WithDryRun marks a preview that did not touch the router.
func (e *Event) WithDryRun(dryRun bool) *Event {
	e.DryRun = dryRun
	return e
}

func generateID(t time.Time) string {
	return fmt.Sprintf("%d", t.UnixNano())
}
