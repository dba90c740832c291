package udp

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/majestrate/bittorrent-tracker/clock"
	"github.com/majestrate/bittorrent-tracker/events"
	"github.com/majestrate/bittorrent-tracker/swarm"
	"github.com/majestrate/bittorrent-tracker/trackercore"
)

func newTestProcessor(t *testing.T) *Processor {
	t.Helper()
	secret, err := NewCookieSecret()
	if err != nil {
		t.Fatal(err)
	}
	registry := swarm.New(1, nil)
	return &Processor{
		Announce:           &trackercore.AnnounceHandler{Registry: registry, Policy: trackercore.AnnouncePolicy{Interval: 30 * time.Minute, IntervalMin: 15 * time.Minute}},
		Scrape:             &trackercore.ScrapeHandler{Registry: registry},
		Whitelist:          &trackercore.WhitelistAuthorization{Enabled: false},
		Cookie:             secret,
		CookieLifetimeSecs: 120,
		Bans:               NewBanService(10),
		Bus:                events.NewBus(true),
		Binding:            events.ServerBinding{Protocol: "udp", Family: events.FamilyInet},
		Clock:              clock.Working{},
	}
}

// TestFullConnectAnnounceScrapeFlow covers S1: connect, then announce a
// completed download, then scrape, matching SPEC_FULL.md §8's fixture.
func TestFullConnectAnnounceScrapeFlow(t *testing.T) {
	p := newTestProcessor(t)
	client := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 54321}

	connectReq := make([]byte, 16)
	binary.BigEndian.PutUint64(connectReq[0:8], ProtocolID)
	binary.BigEndian.PutUint32(connectReq[8:12], uint32(ActionConnect))
	binary.BigEndian.PutUint32(connectReq[12:16], 0x11223344)

	connectResp := p.Process(context.Background(), connectReq, client)
	if len(connectResp) != 16 {
		t.Fatalf("expected 16-byte connect response, got %d bytes", len(connectResp))
	}
	if binary.BigEndian.Uint32(connectResp[4:8]) != 0x11223344 {
		t.Fatal("expected echoed transaction id")
	}
	connID := binary.BigEndian.Uint64(connectResp[8:16])
	if connID == 0 {
		t.Fatal("expected non-zero connection id")
	}

	infoHash, err := swarm.NewInfoHashFromHex("3b245504cf5f11bbdbe1201cea6a6bf45aee1bc0")
	if err != nil {
		t.Fatal(err)
	}

	announceReq := make([]byte, 98)
	binary.BigEndian.PutUint64(announceReq[0:8], connID)
	binary.BigEndian.PutUint32(announceReq[8:12], uint32(ActionAnnounce))
	binary.BigEndian.PutUint32(announceReq[12:16], 0x55667788)
	copy(announceReq[16:36], infoHash[:])
	copy(announceReq[36:56], []byte("-qB00000000000000000")[:20])
	binary.BigEndian.PutUint64(announceReq[56:64], 0)  // downloaded
	binary.BigEndian.PutUint64(announceReq[64:72], 0)  // left=0
	binary.BigEndian.PutUint64(announceReq[72:80], 0)  // uploaded
	binary.BigEndian.PutUint32(announceReq[80:84], uint32(WireEventCompleted))
	binary.BigEndian.PutUint32(announceReq[92:96], 30) // num_want
	binary.BigEndian.PutUint16(announceReq[96:98], 8080)

	announceResp := p.Process(context.Background(), announceReq, client)
	if len(announceResp) < 20 {
		t.Fatalf("expected at least a 20-byte announce response, got %d", len(announceResp))
	}
	seeders := binary.BigEndian.Uint32(announceResp[16:20])
	leechers := binary.BigEndian.Uint32(announceResp[12:16])
	if seeders != 1 || leechers != 0 {
		t.Fatalf("expected seeders=1 leechers=0, got seeders=%d leechers=%d", seeders, leechers)
	}

	scrapeReq := make([]byte, 36)
	binary.BigEndian.PutUint64(scrapeReq[0:8], connID)
	binary.BigEndian.PutUint32(scrapeReq[8:12], uint32(ActionScrape))
	binary.BigEndian.PutUint32(scrapeReq[12:16], 0x99aabbcc)
	copy(scrapeReq[16:36], infoHash[:])

	scrapeResp := p.Process(context.Background(), scrapeReq, client)
	if len(scrapeResp) != 8+12 {
		t.Fatalf("expected 20-byte scrape response, got %d", len(scrapeResp))
	}
	scrapeSeeders := binary.BigEndian.Uint32(scrapeResp[8:12])
	completed := binary.BigEndian.Uint32(scrapeResp[12:16])
	scrapeLeechers := binary.BigEndian.Uint32(scrapeResp[16:20])
	if scrapeSeeders != 1 || completed != 1 || scrapeLeechers != 0 {
		t.Fatalf("expected {seeders=1,completed=1,leechers=0}, got {%d,%d,%d}", scrapeSeeders, completed, scrapeLeechers)
	}
}

func TestAnnounceRejectedWithoutValidCookie(t *testing.T) {
	p := newTestProcessor(t)
	client := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1}

	var ih [20]byte
	announceReq := make([]byte, 98)
	binary.BigEndian.PutUint64(announceReq[0:8], 0xdeadbeefdeadbeef) // bogus connection id
	binary.BigEndian.PutUint32(announceReq[8:12], uint32(ActionAnnounce))
	binary.BigEndian.PutUint32(announceReq[12:16], 42)
	copy(announceReq[16:36], ih[:])

	resp := p.Process(context.Background(), announceReq, client)
	if binary.BigEndian.Uint32(resp[0:4]) != uint32(ActionError) {
		t.Fatal("expected an Error response for an invalid cookie")
	}
	if p.Bans.BannedCount() != 0 {
		t.Fatal("expected one failure to not yet trip the ban threshold")
	}
}

func TestBanAfterRepeatedCookieFailures(t *testing.T) {
	p := newTestProcessor(t)
	p.Bans = NewBanService(2)
	client := &net.UDPAddr{IP: net.ParseIP("198.51.100.7"), Port: 1}

	var ih [20]byte
	announceReq := make([]byte, 98)
	binary.BigEndian.PutUint64(announceReq[0:8], 0xdeadbeefdeadbeef)
	binary.BigEndian.PutUint32(announceReq[8:12], uint32(ActionAnnounce))
	copy(announceReq[16:36], ih[:])

	for i := 0; i < 3; i++ {
		p.Process(context.Background(), announceReq, client)
	}
	if !p.Bans.IsBanned(client.IP.String()) {
		t.Fatal("expected the IP to be banned after exceeding the threshold")
	}

	resp := p.Process(context.Background(), announceReq, client)
	if resp != nil {
		t.Fatal("expected a banned datagram to be dropped with no response")
	}
}
