package swarm

import (
	"net"
	"time"
)

// PeerIDLen is the fixed byte length of a BitTorrent peer id.
const PeerIDLen = 20

// PeerID is an opaque client identifier; it is not unique within a swarm on
// its own, only in combination with a socket address.
type PeerID [PeerIDLen]byte

// AnnounceEvent is the event a peer reports on an announce.
type AnnounceEvent int

const (
	EventNone AnnounceEvent = iota
	EventStarted
	EventUpdated
	EventCompleted
	EventStopped
)

// Peer is one client's participation in one swarm, per SPEC_FULL.md §3.
type Peer struct {
	ID         PeerID
	Addr       net.Addr
	Uploaded   uint64
	Downloaded uint64
	Left       uint64
	LastEvent  AnnounceEvent
	LastSeen   time.Time
}

// IsSeeder reports whether the peer has nothing left to download.
func (p Peer) IsSeeder() bool { return p.Left == 0 }

// IsLeecher reports the complement of IsSeeder.
func (p Peer) IsLeecher() bool { return p.Left > 0 }

// peerKey is the (PeerId, SocketAddr) pair that uniquely identifies a peer
// within a swarm, per SPEC_FULL.md §3's Swarm invariant.
type peerKey struct {
	id   PeerID
	addr string
}

func keyOf(p Peer) peerKey {
	addr := ""
	if p.Addr != nil {
		addr = p.Addr.String()
	}
	return peerKey{id: p.ID, addr: addr}
}
