package bgp

import (
	"context"
	"strings"

	"github.com/newtron-network/bgpwatch/pkg/device"
	"github.com/newtron-network/bgpwatch/pkg/util"
)

// Prober asks a router whether it is advertising a prefix to a peer.
type Prober struct {
	dialer device.Dialer
}

// NewProber creates a prober that opens sessions through d.
func NewProber(d device.Dialer) *Prober {
	return &Prober{dialer: d}
}

// Advertised opens a session, lists the routes advertised to peer and reports
// whether prefix is among them. Any session or command failure is returned
// as an error. The session is closed on every path.
func (p *Prober) Advertised(ctx context.Context, router device.Endpoint, peer, prefix string) (bool, error) {
	s, err := p.dialer.Open(ctx, router)
	if err != nil {
		return false, err
	}
	defer s.Close()

	if err := enterVtysh(ctx, s, router); err != nil {
		return false, err
	}

	out, err := s.Execute(ctx, advertisedRoutesCommand(peer, prefix), nil)
	if err != nil {
		return false, err
	}
	return advertises(out, prefix), nil
}

// Observe is Advertised folded into a three-way result. Failures are logged
// and reported as Indeterminate; they never propagate.
func (p *Prober) Observe(ctx context.Context, router device.Endpoint, peer, prefix string) Observation {
	ok, err := p.Advertised(ctx, router, peer, prefix)
	if err != nil {
		util.WithDevice(router.String()).WithField("prefix", prefix).
			Errorf("Error checking BGP on %s: %v", router, err)
		return Indeterminate
	}
	if ok {
		return Present
	}
	return Absent
}

// advertises reports whether out mentions prefix. Presence is a plain text
// match; the route table is not parsed.
func advertises(out, prefix string) bool {
	return prefix != "" && strings.Contains(out, prefix)
}
