package trackercore

import (
	"context"
	"net"
	"time"

	"github.com/majestrate/bittorrent-tracker/swarm"
)

// PeersWanted is the client's numwant, clamped to the configured floor, per
// SPEC_FULL.md §4.3's "max(limit, TorrentPeersLimit)" rule.
type PeersWanted int

// EffectiveLimit returns the peer count actually used for the swarm query.
func (p PeersWanted) EffectiveLimit() int {
	if int(p) < swarm.TorrentPeersLimit {
		return swarm.TorrentPeersLimit
	}
	return int(p)
}

// AnnouncePolicy is the pair of intervals returned to the client, sourced
// from configuration rather than computed per-request.
type AnnouncePolicy struct {
	Interval    time.Duration
	IntervalMin time.Duration
}

// AnnounceData is the result of a successful announce, shaped for direct
// serialization by either protocol engine.
type AnnounceData struct {
	Peers  []swarm.Peer
	Stats  swarm.SwarmMetadata
	Policy AnnouncePolicy
}

// AnnounceHandler implements the shared announce control flow behind both
// the UDP and HTTP protocol engines, grounded on the teacher's
// tracker/scrape.go HandleAnnounce control flow (now deleted, see DESIGN.md)
// generalized onto the swarm registry.
type AnnounceHandler struct {
	Registry *swarm.Registry
	Policy   AnnouncePolicy
}

// HandleAnnouncement enforces the resolved client IP onto peer.Addr (never
// trusting a client-supplied IP over the transport-observed one), upserts
// the peer, and gathers the response payload.
func (h *AnnounceHandler) HandleAnnouncement(ctx context.Context, infoHash swarm.InfoHash, peer swarm.Peer, remoteClientIP net.IP, peersWanted PeersWanted) (AnnounceData, error) {
	peer.Addr = withIP(peer.Addr, remoteClientIP)

	if _, err := h.Registry.HandleAnnouncement(infoHash, peer, nil); err != nil {
		return AnnounceData{}, err
	}

	peers := h.Registry.GetSwarmPeersExcluding(infoHash, peer, peersWanted.EffectiveLimit())
	stats := h.Registry.GetSwarmMetadataOrDefault(infoHash)

	return AnnounceData{Peers: peers, Stats: stats, Policy: h.Policy}, nil
}

// withIP replaces addr's IP with ip, preserving the port, so the transport-
// resolved client address always wins over any peer-supplied value.
func withIP(addr net.Addr, ip net.IP) net.Addr {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return &net.UDPAddr{IP: ip, Port: a.Port}
	case *net.TCPAddr:
		return &net.TCPAddr{IP: ip, Port: a.Port}
	default:
		return addr
	}
}
