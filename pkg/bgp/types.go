// Package bgp checks and changes prefix advertisements on FRR routers
// through a device.Session.
package bgp

import (
	"strings"

	"github.com/newtron-network/bgpwatch/pkg/util"
)

// Observation is the result of one advertisement probe.
type Observation int

const (
	// Indeterminate means the probe could not reach a conclusion (session
	// or command failure). It is neither Present nor Absent.
	Indeterminate Observation = iota
	Present
	Absent
)

func (o Observation) String() string {
	switch o {
	case Present:
		return "present"
	case Absent:
		return "absent"
	default:
		return "indeterminate"
	}
}

// Action is a change to a router's network statements.
type Action string

const (
	ActionInject Action = "inject"
	ActionRemove Action = "remove"
)

// Valid reports whether a is inject or remove.
func (a Action) Valid() bool {
	return a == ActionInject || a == ActionRemove
}

// ParseAction converts user input to an Action.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", util.NewInvalidActionError(s)
	}
	return a, nil
}
