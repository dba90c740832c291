package swarm

import "time"

// SwarmMetadata is the aggregate view of one swarm derived on demand.
type SwarmMetadata struct {
	Downloaded uint32
	Complete   int // seeders
	Incomplete int // leechers
}

// AggregateSwarmMetadata totals SwarmMetadata across every swarm known to a
// Registry.
type AggregateSwarmMetadata struct {
	Downloaded uint32
	Complete   int
	Incomplete int
	Torrents   int
}

// ActivityMetadata reports counts used by the activity-metrics job (C9),
// without mutating the registry.
type ActivityMetadata struct {
	InactivePeers   int
	InactiveTorrents int
}

// swarmState holds one info-hash's peer set plus its monotonic downloads
// counter, guarded by the coordinator that owns it (see registry.go).
// completedOnce tracks which peers have ever contributed to downloads, so a
// peer may only increment the counter once per lifetime even across
// multiple Completed announces, per SPEC_FULL.md §3.
type swarmState struct {
	peers         map[peerKey]Peer
	order         []peerKey // insertion order, for stable peer-list sampling
	downloads     uint32
	completedOnce map[peerKey]bool
}

func newSwarmState(importedDownloads uint32) *swarmState {
	return &swarmState{
		peers:         make(map[peerKey]Peer),
		completedOnce: make(map[peerKey]bool),
		downloads:     importedDownloads,
	}
}

// upsert inserts or replaces the peer, applying the state-machine transition
// described in SPEC_FULL.md §4.3, and reports whether this call caused the
// downloads counter to increase.
func (s *swarmState) upsert(p Peer) (increased bool) {
	key := keyOf(p)
	_, existed := s.peers[key]

	if p.LastEvent == EventStopped {
		if existed {
			delete(s.peers, key)
			s.removeFromOrder(key)
		}
		return false
	}

	if p.LastEvent == EventCompleted && !s.completedOnce[key] {
		s.completedOnce[key] = true
		s.downloads++
		increased = true
	}

	if !existed {
		s.order = append(s.order, key)
	}
	s.peers[key] = p
	return increased
}

func (s *swarmState) removeFromOrder(key peerKey) {
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *swarmState) metadata() SwarmMetadata {
	md := SwarmMetadata{Downloaded: s.downloads}
	for _, p := range s.peers {
		if p.IsSeeder() {
			md.Complete++
		} else {
			md.Incomplete++
		}
	}
	return md
}

// peersExcluding returns up to limit peers in insertion order, skipping any
// whose socket address equals exclude's.
func (s *swarmState) peersExcluding(exclude Peer, limit int) []Peer {
	excludeAddr := ""
	if exclude.Addr != nil {
		excludeAddr = exclude.Addr.String()
	}
	out := make([]Peer, 0, limit)
	for _, k := range s.order {
		if len(out) >= limit {
			break
		}
		if k.addr == excludeAddr {
			continue
		}
		out = append(out, s.peers[k])
	}
	return out
}

func (s *swarmState) allPeers(limit int) []Peer {
	out := make([]Peer, 0, limit)
	for _, k := range s.order {
		if len(out) >= limit {
			break
		}
		out = append(out, s.peers[k])
	}
	return out
}

func (s *swarmState) removeInactive(cutoff time.Time) int {
	removed := 0
	for _, k := range append([]peerKey(nil), s.order...) {
		if s.peers[k].LastSeen.Before(cutoff) {
			delete(s.peers, k)
			s.removeFromOrder(k)
			removed++
		}
	}
	return removed
}

func (s *swarmState) isEmpty() bool {
	return len(s.peers) == 0
}
