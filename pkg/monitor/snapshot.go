package monitor

import "time"

// Snapshot is a point-in-time copy of the loop's state.
type Snapshot struct {
	Phase     Phase          `json:"phase"`
	Cycles    uint64         `json:"cycles"`
	LastCycle time.Time      `json:"last_cycle"`
	Primary   string         `json:"primary"`
	Secondary string         `json:"secondary"`
	Peer      string         `json:"peer"`
	Prefixes  []PrefixStatus `json:"prefixes"`
}

// PrefixStatus is one prefix in a Snapshot.
type PrefixStatus struct {
	Prefix      string    `json:"prefix"`
	Action      Action    `json:"action"`
	Observation string    `json:"last_observation,omitempty"`
	ObservedAt  time.Time `json:"observed_at,omitempty"`
}

// Snapshot returns the current phase and per-prefix state. Safe to call
// while Run is active.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	snap := Snapshot{
		Phase:     m.phase,
		Cycles:    m.cycles,
		LastCycle: m.lastCycle,
		Primary:   m.cfg.Primary.String(),
		Secondary: m.cfg.Secondary.String(),
		Peer:      m.cfg.Peer,
	}
	observed := make(map[string]observation, len(m.observed))
	for k, v := range m.observed {
		observed[k] = v
	}
	m.mu.RUnlock()

	actions := m.state.Snapshot()
	for _, p := range m.state.Prefixes() {
		ps := PrefixStatus{Prefix: p, Action: actions[p]}
		if o, ok := observed[p]; ok {
			ps.Observation = o.result.String()
			ps.ObservedAt = o.at
		}
		snap.Prefixes = append(snap.Prefixes, ps)
	}
	return snap
}
