package monitor

import (
	"sync"
)

// Phase is the loop's polling cadence. It is global, not per prefix.
type Phase int

const (
	// FastPoll probes every FastInterval looking for missing advertisements.
	FastPoll Phase = iota
	// SlowPoll waits SlowInterval between probes while a backup is active.
	SlowPoll
)

func (p Phase) String() string {
	if p == SlowPoll {
		return "slow-poll"
	}
	return "fast-poll"
}

// MarshalText renders the phase by name in JSON.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Action is the last remediation confirmed for a prefix.
type Action int

const (
	None Action = iota
	Injected
	Removed
)

func (a Action) String() string {
	switch a {
	case Injected:
		return "injected"
	case Removed:
		return "removed"
	default:
		return "none"
	}
}

// MarshalText renders the action by name in JSON.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// PrefixState remembers the last confirmed remediation per prefix. Entries
// are created at startup with None and never removed. The monitor loop is the
// only writer; readers such as the status server may run concurrently.
type PrefixState struct {
	mu      sync.RWMutex
	order   []string
	actions map[string]Action
}

// NewPrefixState creates a state with every prefix at None.
func NewPrefixState(prefixes []string) *PrefixState {
	s := &PrefixState{actions: make(map[string]Action, len(prefixes))}
	for _, p := range prefixes {
		if _, dup := s.actions[p]; dup {
			continue
		}
		s.order = append(s.order, p)
		s.actions[p] = None
	}
	return s
}

// Get returns the action recorded for prefix; None for unknown prefixes.
func (s *PrefixState) Get(prefix string) Action {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.actions[prefix]
}

// Set records action for a tracked prefix. Unknown prefixes are ignored.
func (s *PrefixState) Set(prefix string, action Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.actions[prefix]; ok {
		s.actions[prefix] = action
	}
}

// Prefixes returns the tracked prefixes in configuration order.
func (s *PrefixState) Prefixes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Snapshot returns a copy of all entries.
func (s *PrefixState) Snapshot() map[string]Action {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Action, len(s.actions))
	for k, v := range s.actions {
		out[k] = v
	}
	return out
}
