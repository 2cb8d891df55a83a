// Package util provides logging helpers and the common error types shared by
// the device, bgp and monitor packages.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for device and remediation failures
var (
	ErrConnection       = errors.New("device connection failed")
	ErrCommand          = errors.New("device command failed")
	ErrInvalidAction    = errors.New("invalid remediation action")
	ErrDeviceLocked     = errors.New("device configuration locked by another holder")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrValidationFailed = errors.New("validation failed")
)

// ConnectionError reports that a session to a router could not be established
// (unreachable host, handshake or authentication failure).
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connecting to %s: %v", e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() []error {
	return []error{ErrConnection, e.Err}
}

// NewConnectionError creates a connection error
func NewConnectionError(host string, err error) *ConnectionError {
	return &ConnectionError{Host: host, Err: err}
}

// CommandError reports a failed command on an established session: timeout,
// closed channel, or a prompt that never appeared.
type CommandError struct {
	Host    string
	Command string
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q on %s: %v", e.Command, e.Host, e.Err)
}

func (e *CommandError) Unwrap() []error {
	return []error{ErrCommand, e.Err}
}

// NewCommandError creates a command error
func NewCommandError(host, command, output string, err error) *CommandError {
	return &CommandError{Host: host, Command: command, Output: output, Err: err}
}

// InvalidActionError is returned for a remediation action other than inject or remove.
type InvalidActionError struct {
	Action string
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("invalid BGP action: %q", e.Action)
}

func (e *InvalidActionError) Unwrap() error {
	return ErrInvalidAction
}

// NewInvalidActionError creates an invalid action error
func NewInvalidActionError(action string) *InvalidActionError {
	return &InvalidActionError{Action: action}
}

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a validation error from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}
