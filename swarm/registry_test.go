package swarm

import (
	"net"
	"testing"
	"time"
)

func sampleInfoHash(t *testing.T) InfoHash {
	h, err := NewInfoHashFromHex("3b245504cf5f11bbdbe1201cea6a6bf45aee1bc0")
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func addr(ip string, port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP(ip), Port: port}
}

// TestPeerExclusion covers S2: two peers' announces never include
// themselves in each other's peer list.
func TestPeerExclusion(t *testing.T) {
	r := New(4, nil)
	h := sampleInfoHash(t)

	a := Peer{ID: PeerID{1}, Addr: addr("203.0.113.10", 7000), LastEvent: EventStarted, LastSeen: time.Now()}
	b := Peer{ID: PeerID{2}, Addr: addr("203.0.113.11", 7001), LastEvent: EventStarted, LastSeen: time.Now()}

	if _, err := r.HandleAnnouncement(h, a, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := r.HandleAnnouncement(h, b, nil); err != nil {
		t.Fatal(err)
	}

	aPeers := r.GetSwarmPeersExcluding(h, a, 50)
	if len(aPeers) != 1 || aPeers[0].ID != b.ID {
		t.Fatalf("expected only B in A's view, got %+v", aPeers)
	}
	bPeers := r.GetSwarmPeersExcluding(h, b, 50)
	if len(bPeers) != 1 || bPeers[0].ID != a.ID {
		t.Fatalf("expected only A in B's view, got %+v", bPeers)
	}
}

// TestCompletionCountedOnce covers S3.
func TestCompletionCountedOnce(t *testing.T) {
	r := New(4, nil)
	h := sampleInfoHash(t)
	p := Peer{ID: PeerID{9}, Addr: addr("127.0.0.1", 8080), LastSeen: time.Now()}

	p.LastEvent, p.Left = EventStarted, 100
	if _, err := r.HandleAnnouncement(h, p, nil); err != nil {
		t.Fatal(err)
	}

	p.LastEvent, p.Left = EventCompleted, 0
	increased, err := r.HandleAnnouncement(h, p, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !increased {
		t.Fatal("expected first Completed to increase downloads")
	}

	increased, err = r.HandleAnnouncement(h, p, nil)
	if err != nil {
		t.Fatal(err)
	}
	if increased {
		t.Fatal("expected duplicate Completed to not increase downloads")
	}

	md := r.GetSwarmMetadataOrDefault(h)
	if md.Downloaded != 1 {
		t.Fatalf("expected downloaded=1, got %d", md.Downloaded)
	}
}

// TestInactivePeerSweep covers S4.
func TestInactivePeerSweep(t *testing.T) {
	r := New(1, nil)
	h := sampleInfoHash(t)
	now := time.Now()

	p := Peer{ID: PeerID{3}, Addr: addr("127.0.0.1", 9000), LastEvent: EventStarted, LastSeen: now}
	if _, err := r.HandleAnnouncement(h, p, nil); err != nil {
		t.Fatal(err)
	}

	cutoff := now.Add(61 * time.Second)
	r.RemoveInactivePeers(cutoff)

	md := r.GetSwarmMetadataOrDefault(h)
	if md.Complete+md.Incomplete != 0 {
		t.Fatalf("expected swarm empty after sweep, got %+v", md)
	}
}

// TestDownloadMonotonicity covers invariant 2: downloaded never decreases
// across observations.
func TestDownloadMonotonicity(t *testing.T) {
	r := New(2, nil)
	h := sampleInfoHash(t)
	now := time.Now()

	observations := []SwarmMetadata{}
	for i := 0; i < 5; i++ {
		p := Peer{ID: PeerID{byte(i)}, Addr: addr("10.0.0.1", 6000+i), LastEvent: EventCompleted, LastSeen: now}
		if _, err := r.HandleAnnouncement(h, p, nil); err != nil {
			t.Fatal(err)
		}
		observations = append(observations, r.GetSwarmMetadataOrDefault(h))
	}

	for i := 1; i < len(observations); i++ {
		if observations[i].Downloaded < observations[i-1].Downloaded {
			t.Fatalf("downloaded decreased: %+v then %+v", observations[i-1], observations[i])
		}
	}
}

func TestRemovePeerlessTorrentsPolicy(t *testing.T) {
	r := New(1, nil)
	h := sampleInfoHash(t)
	now := time.Now()

	p := Peer{ID: PeerID{1}, Addr: addr("127.0.0.1", 1), LastEvent: EventStarted, LastSeen: now}
	if _, err := r.HandleAnnouncement(h, p, nil); err != nil {
		t.Fatal(err)
	}
	p.LastEvent = EventStopped
	if _, err := r.HandleAnnouncement(h, p, nil); err != nil {
		t.Fatal(err)
	}

	removed := r.RemovePeerlessTorrents(RetentionPolicy{RemovePeerlessTorrents: true})
	if removed != 1 {
		t.Fatalf("expected 1 swarm removed, got %d", removed)
	}
}
