// Package plainnet implements network.Network directly over the standard
// library, with no overlay resolver. It is the default transport for a
// tracker bound straight to a public or LAN-routable address, as opposed to
// lokinet's SAM/LokiNet resolver-backed indirection.
package plainnet

import (
	"context"
	"net"
)

// Network is the default, no-overlay network.Network implementation.
type Network struct{}

// New returns a ready-to-use plain Network.
func New() *Network {
	return &Network{}
}

func (n *Network) Setup() error {
	return nil
}

func (n *Network) Listen(network, addr string) (net.Listener, error) {
	return net.Listen(network, addr)
}

func (n *Network) ReverseDNS(ctx context.Context, addr string) ([]string, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	return net.DefaultResolver.LookupAddr(ctx, host)
}

func (n *Network) ForwardDNS(ctx context.Context, h string) ([]net.Addr, error) {
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, h)
	if err != nil {
		return nil, err
	}
	found := make([]net.Addr, len(addrs))
	for i := range addrs {
		found[i] = &addrs[i]
	}
	return found, nil
}

// GetPublicPrivateAddrs returns both inputs unchanged: a plain binding has
// no separate overlay identity, so its public and private addresses are
// the same socket address.
func (n *Network) GetPublicPrivateAddrs(reverse, forward string) (string, string) {
	return forward, forward
}

// PublicAddr returns the listener's own bound address, trusting that it is
// already externally reachable (behind a load balancer or NAT's port
// forward configured out of band).
func (n *Network) PublicAddr(ctx context.Context, l net.Listener) (string, error) {
	return l.Addr().String(), nil
}
