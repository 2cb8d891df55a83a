package bgp

import (
	"context"
	"fmt"
	"strings"

	"github.com/newtron-network/bgpwatch/pkg/device"
	"github.com/newtron-network/bgpwatch/pkg/util"
)

// advertisedRoutesCommand lists what the router sends to peer.
func advertisedRoutesCommand(peer, prefix string) string {
	if util.IsIPv6Prefix(prefix) {
		return fmt.Sprintf("show bgp ipv6 unicast neighbors %s advertised-routes", peer)
	}
	return fmt.Sprintf("show ip bgp neighbors %s advertised-routes", peer)
}

// ConfigCommands returns the vtysh command sequence that applies action for
// prefix under "router bgp <asn>". It does not include the soft refresh.
func ConfigCommands(action Action, prefix, asn string) ([]string, error) {
	var stmt string
	switch action {
	case ActionInject:
		stmt = "network " + prefix
	case ActionRemove:
		stmt = "no network " + prefix
	default:
		return nil, util.NewInvalidActionError(string(action))
	}

	return []string{
		"configure terminal",
		"router bgp " + asn,
		fmt.Sprintf("address-family %s unicast", util.AddressFamily(prefix)),
		stmt,
		"end",
	}, nil
}

// softClearCommand asks all peers of the prefix's address family for a soft
// refresh so the change propagates without resetting sessions.
func softClearCommand(prefix string) string {
	return fmt.Sprintf("clear bgp %s * soft", util.AddressFamily(prefix))
}

// enterVtysh moves a freshly opened session into the vtysh shell and
// disables paging. Paging is best effort.
func enterVtysh(ctx context.Context, s device.Session, ep device.Endpoint) error {
	if ep.TransportKind() == device.TransportSSH {
		if _, err := s.Execute(ctx, "vtysh", nil); err != nil {
			return fmt.Errorf("entering vtysh: %w", err)
		}
	}
	if _, err := s.Execute(ctx, "terminal length 0", nil); err != nil {
		util.WithDevice(ep.String()).Debugf("terminal length 0: %v", err)
	}
	return nil
}

// rejected returns the first FRR error line ("% ...") in out, if any.
func rejected(out string) (string, bool) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "%") {
			return line, true
		}
	}
	return "", false
}
