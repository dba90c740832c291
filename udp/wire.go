// Package udp implements the BEP 15 UDP tracker protocol engine (C6):
// packet parsing and serialization, stateless connection cookies, per-IP
// abuse banning, and the per-datagram processor.
package udp

import (
	"encoding/binary"
	"errors"
)

// ProtocolID is the fixed magic constant that opens every BEP 15 Connect
// request.
const ProtocolID uint64 = 0x41727101980

// Action identifies a BEP 15 request/response kind.
type Action uint32

const (
	ActionConnect  Action = 0
	ActionAnnounce Action = 1
	ActionScrape   Action = 2
	ActionError    Action = 3
	// ActionAnnounceV6 is the action code BEP 15 specifies for an Announce
	// response carrying 16-byte IPv6 peer entries instead of 4-byte IPv4
	// ones; the request action field is always 1 regardless of family.
	ActionAnnounceV6 Action = 4
)

// AnnounceEvent mirrors the wire encoding of the BEP 15 announce event
// field.
type AnnounceEvent uint32

const (
	WireEventNone      AnnounceEvent = 0
	WireEventCompleted AnnounceEvent = 1
	WireEventStarted   AnnounceEvent = 2
	WireEventStopped   AnnounceEvent = 3
)

// ErrShortPacket and ErrUnknownAction are returned by the request parsers.
var (
	ErrShortPacket   = errors.New("udp: packet too short")
	ErrUnknownAction = errors.New("udp: unknown action")
)

// ConnectRequest is the 16-byte Connect packet.
type ConnectRequest struct {
	TransactionID uint32
}

// ParseConnectRequest parses a 16-byte Connect datagram.
func ParseConnectRequest(b []byte) (ConnectRequest, error) {
	if len(b) < 16 {
		return ConnectRequest{}, ErrShortPacket
	}
	if binary.BigEndian.Uint64(b[0:8]) != ProtocolID {
		return ConnectRequest{}, ErrUnknownAction
	}
	if Action(binary.BigEndian.Uint32(b[8:12])) != ActionConnect {
		return ConnectRequest{}, ErrUnknownAction
	}
	return ConnectRequest{TransactionID: binary.BigEndian.Uint32(b[12:16])}, nil
}

// WriteConnectResponse serializes a 16-byte Connect response.
func WriteConnectResponse(transactionID uint32, connectionID uint64) []byte {
	out := make([]byte, 16)
	binary.BigEndian.PutUint32(out[0:4], uint32(ActionConnect))
	binary.BigEndian.PutUint32(out[4:8], transactionID)
	binary.BigEndian.PutUint64(out[8:16], connectionID)
	return out
}

// AnnounceRequest is the 98-byte Announce packet.
type AnnounceRequest struct {
	ConnectionID  uint64
	TransactionID uint32
	InfoHash      [20]byte
	PeerID        [20]byte
	Downloaded    uint64
	Left          uint64
	Uploaded      uint64
	Event         AnnounceEvent
	IP            uint32
	Key           uint32
	NumWant       int32
	Port          uint16
}

// ParseAnnounceRequest parses a 98-byte Announce datagram.
func ParseAnnounceRequest(b []byte) (AnnounceRequest, error) {
	if len(b) < 98 {
		return AnnounceRequest{}, ErrShortPacket
	}
	var req AnnounceRequest
	req.ConnectionID = binary.BigEndian.Uint64(b[0:8])
	if Action(binary.BigEndian.Uint32(b[8:12])) != ActionAnnounce {
		return AnnounceRequest{}, ErrUnknownAction
	}
	req.TransactionID = binary.BigEndian.Uint32(b[12:16])
	copy(req.InfoHash[:], b[16:36])
	copy(req.PeerID[:], b[36:56])
	req.Downloaded = binary.BigEndian.Uint64(b[56:64])
	req.Left = binary.BigEndian.Uint64(b[64:72])
	req.Uploaded = binary.BigEndian.Uint64(b[72:80])
	req.Event = AnnounceEvent(binary.BigEndian.Uint32(b[80:84]))
	req.IP = binary.BigEndian.Uint32(b[84:88])
	req.Key = binary.BigEndian.Uint32(b[88:92])
	req.NumWant = int32(binary.BigEndian.Uint32(b[92:96]))
	req.Port = binary.BigEndian.Uint16(b[96:98])
	return req, nil
}

// AnnouncePeer is one packed peer entry in an Announce response.
type AnnouncePeer struct {
	IP   []byte // 4 bytes (IPv4) or 16 bytes (IPv6)
	Port uint16
}

// WriteAnnounceResponse serializes an Announce response. action selects the
// wire variant: ActionAnnounce (1) for IPv4 peer entries, ActionAnnounceV6
// (4) for IPv6 ones, per BEP 15's "action=4 per BEP 15 is used on v6
// sockets" (SPEC_FULL.md §6). The IP bytes in peers must already match that
// same family.
func WriteAnnounceResponse(transactionID uint32, interval, leechers, seeders uint32, peers []AnnouncePeer, action Action) []byte {
	out := make([]byte, 20, 20+len(peers)*18)
	binary.BigEndian.PutUint32(out[0:4], uint32(action))
	binary.BigEndian.PutUint32(out[4:8], transactionID)
	binary.BigEndian.PutUint32(out[8:12], interval)
	binary.BigEndian.PutUint32(out[12:16], leechers)
	binary.BigEndian.PutUint32(out[16:20], seeders)
	for _, p := range peers {
		out = append(out, p.IP...)
		var portBuf [2]byte
		binary.BigEndian.PutUint16(portBuf[:], p.Port)
		out = append(out, portBuf[:]...)
	}
	return out
}

// ScrapeRequest is a variable-length Scrape packet: one info-hash per 20
// bytes following the 16-byte header.
type ScrapeRequest struct {
	ConnectionID  uint64
	TransactionID uint32
	InfoHashes    [][20]byte
}

// ParseScrapeRequest parses a Scrape datagram.
func ParseScrapeRequest(b []byte) (ScrapeRequest, error) {
	if len(b) < 16 || (len(b)-16)%20 != 0 {
		return ScrapeRequest{}, ErrShortPacket
	}
	var req ScrapeRequest
	req.ConnectionID = binary.BigEndian.Uint64(b[0:8])
	if Action(binary.BigEndian.Uint32(b[8:12])) != ActionScrape {
		return ScrapeRequest{}, ErrUnknownAction
	}
	req.TransactionID = binary.BigEndian.Uint32(b[12:16])
	n := (len(b) - 16) / 20
	req.InfoHashes = make([][20]byte, n)
	for i := 0; i < n; i++ {
		copy(req.InfoHashes[i][:], b[16+i*20:16+(i+1)*20])
	}
	return req, nil
}

// ScrapeFileStats is one triplet in a Scrape response.
type ScrapeFileStats struct {
	Seeders   uint32
	Completed uint32
	Leechers  uint32
}

// WriteScrapeResponse serializes a Scrape response, in request order.
func WriteScrapeResponse(transactionID uint32, files []ScrapeFileStats) []byte {
	out := make([]byte, 8, 8+len(files)*12)
	binary.BigEndian.PutUint32(out[0:4], uint32(ActionScrape))
	binary.BigEndian.PutUint32(out[4:8], transactionID)
	for _, f := range files {
		var buf [12]byte
		binary.BigEndian.PutUint32(buf[0:4], f.Seeders)
		binary.BigEndian.PutUint32(buf[4:8], f.Completed)
		binary.BigEndian.PutUint32(buf[8:12], f.Leechers)
		out = append(out, buf[:]...)
	}
	return out
}

// WriteErrorResponse serializes a BEP 15 Error response. transactionID is a
// best-effort zero when it could not be extracted from a malformed request.
func WriteErrorResponse(transactionID uint32, message string) []byte {
	out := make([]byte, 8, 8+len(message))
	binary.BigEndian.PutUint32(out[0:4], uint32(ActionError))
	binary.BigEndian.PutUint32(out[4:8], transactionID)
	out = append(out, []byte(message)...)
	return out
}

// PeekAction reads the action field out of an otherwise-unparsed datagram,
// used to recover a transaction id best-effort when a later parse fails.
func PeekAction(b []byte) (Action, bool) {
	if len(b) < 12 {
		return 0, false
	}
	return Action(binary.BigEndian.Uint32(b[8:12])), true
}

// PeekTransactionID recovers the transaction id at its fixed offset for any
// non-Connect request shape (offset 12), best-effort.
func PeekTransactionID(b []byte) (uint32, bool) {
	if len(b) < 16 {
		return 0, false
	}
	return binary.BigEndian.Uint32(b[12:16]), true
}
