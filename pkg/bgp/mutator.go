package bgp

import (
	"context"
	"fmt"
	"time"

	"github.com/newtron-network/bgpwatch/pkg/device"
	"github.com/newtron-network/bgpwatch/pkg/util"
)

// configurePromptWaits bounds the prompt waits of one Configure: login, vtysh,
// pager setup, five configuration commands, the "end" after a rejection and
// the soft clear.
const configurePromptWaits = 10

// LockTTL is the longest one Configure on router can hold its lock.
func LockTTL(router device.Endpoint) time.Duration {
	return device.DefaultDialTimeout + configurePromptWaits*router.CommandTimeout()
}

// Mutator adds or withdraws network statements on a router.
//
// Changes to one router are serialized through a device.Locker; with the
// default LocalLocker that holds within one process, a RedisLocker extends
// it across processes sharing the same Redis.
type Mutator struct {
	dialer device.Dialer
	locker device.Locker
}

// NewMutator creates a mutator. A nil locker means a process-local one.
func NewMutator(d device.Dialer, l device.Locker) *Mutator {
	if l == nil {
		l = device.NewLocalLocker()
	}
	return &Mutator{dialer: d, locker: l}
}

// Configure applies action for prefix under "router bgp <asn>" and asks for
// a soft refresh. An invalid action fails before any session is opened.
// Failure of the soft refresh alone is logged at debug level and not returned.
func (m *Mutator) Configure(ctx context.Context, router device.Endpoint, action Action, prefix, asn string) error {
	cmds, err := ConfigCommands(action, prefix, asn)
	if err != nil {
		return err
	}

	unlock, err := m.locker.Lock(ctx, router.String())
	if err != nil {
		return err
	}
	defer unlock()

	s, err := m.dialer.Open(ctx, router)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := enterVtysh(ctx, s, router); err != nil {
		return err
	}

	for _, cmd := range cmds {
		out, err := s.Execute(ctx, cmd, nil)
		if err != nil {
			return err
		}
		if line, bad := rejected(out); bad {
			// Leave configuration mode so the rejected change is not half applied.
			if cmd != "end" {
				_, _ = s.Execute(ctx, "end", nil)
			}
			return util.NewCommandError(router.Host, cmd, out, fmt.Errorf("rejected: %s", line))
		}
	}

	if _, err := s.Execute(ctx, softClearCommand(prefix), nil); err != nil {
		util.WithDevice(router.String()).Debugf("soft refresh after %s %s: %v", action, prefix, err)
	}
	return nil
}

// Apply is Configure reduced to a success flag. Failures are logged; an
// invalid action returns false without touching the router.
func (m *Mutator) Apply(ctx context.Context, router device.Endpoint, action Action, prefix, asn string) bool {
	if err := m.Configure(ctx, router, action, prefix, asn); err != nil {
		util.WithDevice(router.String()).WithField("prefix", prefix).
			Errorf("Error modifying BGP on %s: %v", router, err)
		return false
	}
	util.WithDevice(router.String()).WithField("prefix", prefix).
		Infof("%s of %s on %s succeeded", action, prefix, router)
	return true
}
