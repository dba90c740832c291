package udp

import (
	"context"
	"net"
	"time"

	"github.com/majestrate/bittorrent-tracker/clock"
	"github.com/majestrate/bittorrent-tracker/events"
	"github.com/majestrate/bittorrent-tracker/swarm"
	"github.com/majestrate/bittorrent-tracker/trackercore"
)

// Processor handles one datagram end to end: ban pre-check, parse,
// dispatch, response serialization, and event emission, per
// SPEC_FULL.md §4.6's "Processor per datagram" description.
type Processor struct {
	Announce  *trackercore.AnnounceHandler
	Scrape    *trackercore.ScrapeHandler
	Whitelist *trackercore.WhitelistAuthorization

	Cookie             *CookieSecret
	CookieLifetimeSecs float64
	Bans               *BanService

	Bus     *events.Bus
	Binding events.ServerBinding
	Clock   clock.Clock
}

func (p *Processor) now() time.Time {
	if p.Clock == nil {
		return time.Now()
	}
	return p.Clock.Now()
}

func (p *Processor) emit(e events.Event) {
	if p.Bus != nil {
		p.Bus.Send(e)
	}
}

// recordCookieError feeds the ban service on every connection-cookie
// failure, per SPEC_FULL.md §4.6: "on each UdpError{Kind: ConnectionCookie}
// event, increment the counter". It emits UdpIPBanned the moment that push
// crosses the ban threshold.
func (p *Processor) recordCookieError(from *net.UDPAddr) {
	if p.Bans == nil {
		return
	}
	if p.Bans.RecordCookieError(from.IP.String()) {
		p.emit(events.UdpIPBanned{Binding: p.Binding})
	}
}

// Process runs the full per-datagram pipeline and returns the response
// bytes to write back to from, or nil if no response should be sent (the
// datagram was banned or otherwise dropped pre-parse).
func (p *Processor) Process(ctx context.Context, datagram []byte, from *net.UDPAddr) []byte {
	p.emit(events.UdpRequestReceived{Binding: p.Binding})

	if p.Bans != nil && p.Bans.IsBanned(from.IP.String()) {
		p.emit(events.UdpRequestBanned{Binding: p.Binding})
		return nil
	}
	p.emit(events.UdpRequestAccepted{Binding: p.Binding})

	start := time.Now()
	action, ok := PeekAction(datagram)
	if !ok {
		p.emit(events.UdpError{Binding: p.Binding, Kind: events.ErrorRequestParse, Addr: from})
		return WriteErrorResponse(0, "malformed request")
	}

	switch action {
	case ActionConnect:
		return p.processConnect(datagram, from, start)
	case ActionAnnounce:
		return p.processAnnounce(ctx, datagram, from, start)
	case ActionScrape:
		return p.processScrape(ctx, datagram, from, start)
	default:
		txID, _ := PeekTransactionID(datagram)
		p.emit(events.UdpError{Binding: p.Binding, Kind: events.ErrorRequestParse, Addr: from})
		return WriteErrorResponse(txID, "unknown action")
	}
}

func (p *Processor) errorTransactionID(datagram []byte) uint32 {
	txID, ok := PeekTransactionID(datagram)
	if !ok {
		return 0
	}
	return txID
}

func (p *Processor) processConnect(datagram []byte, from *net.UDPAddr, start time.Time) []byte {
	req, err := ParseConnectRequest(datagram)
	if err != nil {
		p.emit(events.UdpError{Binding: p.Binding, Kind: events.ErrorRequestParse, Addr: from})
		return WriteErrorResponse(p.errorTransactionID(datagram), "malformed connect request")
	}

	fingerprint := FingerprintOf(from)
	issueTime := float64(p.now().UnixNano()) / 1e9
	connID := p.Cookie.Make(fingerprint, issueTime)

	p.emit(events.UdpConnect{Binding: p.Binding})
	p.emit(events.UdpResponseSent{Binding: p.Binding, RequestKind: events.RequestConnect, Ok: true, ReqProcessingTime: time.Since(start)})
	return WriteConnectResponse(req.TransactionID, beU64(connID))
}

func beU64(b [8]byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}

func (p *Processor) checkCookie(connectionID uint64, from *net.UDPAddr) error {
	var cookie [8]byte
	for i := 7; i >= 0; i-- {
		cookie[i] = byte(connectionID)
		connectionID >>= 8
	}
	fingerprint := FingerprintOf(from)
	now := float64(p.now().UnixNano()) / 1e9
	_, err := p.Cookie.Check(cookie, fingerprint, [2]float64{now - p.CookieLifetimeSecs, now})
	return err
}

func (p *Processor) processAnnounce(ctx context.Context, datagram []byte, from *net.UDPAddr, start time.Time) []byte {
	req, err := ParseAnnounceRequest(datagram)
	if err != nil {
		p.emit(events.UdpError{Binding: p.Binding, Kind: events.ErrorRequestParse, Addr: from})
		return WriteErrorResponse(p.errorTransactionID(datagram), "malformed announce request")
	}

	if err := p.checkCookie(req.ConnectionID, from); err != nil {
		p.recordCookieError(from)
		p.emit(events.UdpError{Binding: p.Binding, Kind: events.ErrorConnectionCookie, Addr: from})
		return WriteErrorResponse(req.TransactionID, "connection cookie expired")
	}

	infoHash, _ := swarm.NewInfoHashFromBytes(req.InfoHash[:])
	if err := p.Whitelist.Authorize(ctx, infoHash); err != nil {
		p.emit(events.UdpError{Binding: p.Binding, Kind: events.ErrorWhitelist, Addr: from})
		return WriteErrorResponse(req.TransactionID, "torrent not whitelisted")
	}

	peer := swarm.Peer{
		ID:         swarm.PeerID(req.PeerID),
		Addr:       &net.UDPAddr{IP: from.IP, Port: int(req.Port)},
		Uploaded:   req.Uploaded,
		Downloaded: req.Downloaded,
		Left:       req.Left,
		LastEvent:  wireEventToSwarm(req.Event),
		LastSeen:   p.now(),
	}

	data, err := p.Announce.HandleAnnouncement(ctx, infoHash, peer, from.IP, trackercore.PeersWanted(req.NumWant))
	if err != nil {
		p.emit(events.UdpError{Binding: p.Binding, Kind: events.ErrorInternal, Addr: from})
		return WriteErrorResponse(req.TransactionID, "internal server error")
	}

	wirePeers := make([]AnnouncePeer, 0, len(data.Peers))
	for _, peer := range data.Peers {
		udpAddr, ok := peer.Addr.(*net.UDPAddr)
		if !ok {
			continue
		}
		ip4 := udpAddr.IP.To4()
		var ipBytes []byte
		if p.Binding.Family == events.FamilyInet6 {
			ipBytes = udpAddr.IP.To16()
		} else if ip4 != nil {
			ipBytes = ip4
		} else {
			continue
		}
		wirePeers = append(wirePeers, AnnouncePeer{IP: ipBytes, Port: uint16(udpAddr.Port)})
	}

	action := ActionAnnounce
	if p.Binding.Family == events.FamilyInet6 {
		action = ActionAnnounceV6
	}
	resp := WriteAnnounceResponse(req.TransactionID, uint32(data.Policy.Interval.Seconds()), uint32(data.Stats.Incomplete), uint32(data.Stats.Complete), wirePeers, action)

	p.emit(events.UdpAnnounce{Binding: p.Binding, InfoHash: infoHash})
	p.emit(events.UdpResponseSent{Binding: p.Binding, RequestKind: events.RequestAnnounce, Ok: true, ReqProcessingTime: time.Since(start)})
	return resp
}

func (p *Processor) processScrape(ctx context.Context, datagram []byte, from *net.UDPAddr, start time.Time) []byte {
	req, err := ParseScrapeRequest(datagram)
	if err != nil {
		p.emit(events.UdpError{Binding: p.Binding, Kind: events.ErrorRequestParse, Addr: from})
		return WriteErrorResponse(p.errorTransactionID(datagram), "malformed scrape request")
	}

	if err := p.checkCookie(req.ConnectionID, from); err != nil {
		p.recordCookieError(from)
		p.emit(events.UdpError{Binding: p.Binding, Kind: events.ErrorConnectionCookie, Addr: from})
		return WriteErrorResponse(req.TransactionID, "connection cookie expired")
	}

	infoHashes := make([]swarm.InfoHash, len(req.InfoHashes))
	for i, raw := range req.InfoHashes {
		infoHashes[i] = swarm.InfoHash(raw)
	}

	data, err := p.Scrape.HandleScrape(ctx, infoHashes)
	if err != nil {
		p.emit(events.UdpError{Binding: p.Binding, Kind: events.ErrorInternal, Addr: from})
		return WriteErrorResponse(req.TransactionID, "internal server error")
	}

	files := make([]ScrapeFileStats, len(infoHashes))
	for i, ih := range infoHashes {
		md := data.Files[ih]
		files[i] = ScrapeFileStats{Seeders: uint32(md.Complete), Completed: md.Downloaded, Leechers: uint32(md.Incomplete)}
	}

	p.emit(events.UdpScrape{Binding: p.Binding})
	p.emit(events.UdpResponseSent{Binding: p.Binding, RequestKind: events.RequestScrape, Ok: true, ReqProcessingTime: time.Since(start)})
	return WriteScrapeResponse(req.TransactionID, files)
}

func wireEventToSwarm(e AnnounceEvent) swarm.AnnounceEvent {
	switch e {
	case WireEventStarted:
		return swarm.EventStarted
	case WireEventCompleted:
		return swarm.EventCompleted
	case WireEventStopped:
		return swarm.EventStopped
	default:
		return swarm.EventUpdated
	}
}
