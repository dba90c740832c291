// Package events implements the tracker's broadcast event bus: a bounded,
// multi-subscriber channel decoupling the protocol engines from the
// statistics and persistence listeners.
package events

import (
	"net"
	"strconv"
	"time"
)

// RequestKind labels which protocol operation an event concerns.
type RequestKind string

const (
	RequestConnect RequestKind = "connect"
	RequestAnnounce RequestKind = "announce"
	RequestScrape   RequestKind = "scrape"
)

// IPFamily labels the address family of a server binding.
type IPFamily string

const (
	FamilyInet  IPFamily = "inet"
	FamilyInet6 IPFamily = "inet6"
)

// IPType labels whether a binding serves plain addresses of its family or
// IPv4-mapped IPv6 addresses on a dual-stack socket.
type IPType string

const (
	IPTypePlain     IPType = "plain"
	IPTypeV4MappedV6 IPType = "v4_mapped_v6"
)

// ServerBinding identifies the protocol, address, and socket a request
// arrived on, used to label statistics events.
type ServerBinding struct {
	Protocol string // "udp" or "http"
	IP       net.IP
	Port     uint16
	Family   IPFamily
	Type     IPType
}

// NewServerBinding derives a ServerBinding's address family and port from a
// "host:port" listen address, defaulting Type to IPTypePlain. UDP listeners
// refine Type once the socket is actually bound (see udp.DetectIPType);
// everything else keeps this static, construction-time value.
func NewServerBinding(protocol, addr string) ServerBinding {
	b := ServerBinding{Protocol: protocol, Family: FamilyInet, Type: IPTypePlain}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return b
	}
	if ip := net.ParseIP(host); ip != nil {
		b.IP = ip
		if ip.To4() == nil {
			b.Family = FamilyInet6
		}
	}
	if n, err := strconv.ParseUint(port, 10, 16); err == nil {
		b.Port = uint16(n)
	}
	return b
}

// ErrorKind enumerates the taxonomy in SPEC_FULL.md §7.
type ErrorKind string

const (
	ErrorRequestParse     ErrorKind = "request_parse"
	ErrorConnectionCookie ErrorKind = "connection_cookie"
	ErrorWhitelist        ErrorKind = "whitelist"
	ErrorAuthentication   ErrorKind = "authentication"
	ErrorDatabase         ErrorKind = "database"
	ErrorInternal         ErrorKind = "internal_server"
)

// Event is the sealed interface implemented only by the struct variants in
// this file, the Go analogue of the closed Rust Event enum named in
// SPEC_FULL.md §3.
type Event interface {
	eventMarker()
}

type baseEvent struct{}

func (baseEvent) eventMarker() {}

// TorrentAdded is emitted the first time a swarm gains a peer.
type TorrentAdded struct {
	baseEvent
	InfoHash  [20]byte
	FirstPeer bool
}

// TorrentRemoved is emitted when a swarm is evicted by the retention policy.
type TorrentRemoved struct {
	baseEvent
	InfoHash [20]byte
}

// PeerAdded is emitted when a peer is newly inserted into a swarm.
type PeerAdded struct {
	baseEvent
	InfoHash [20]byte
	PeerID   [20]byte
	Addr     net.Addr
}

// PeerUpdated is emitted on a re-announce that refreshes an existing peer.
type PeerUpdated struct {
	baseEvent
	InfoHash [20]byte
	PeerID   [20]byte
	Addr     net.Addr
}

// PeerRemoved is emitted when a peer is removed (Stopped or swept).
type PeerRemoved struct {
	baseEvent
	InfoHash [20]byte
	PeerID   [20]byte
	Addr     net.Addr
	Reason   string // "stopped" or "inactive"
}

// PeerDownloadCompleted is emitted on the unique Active(non-complete) ->
// Active(complete) transition for a peer.
type PeerDownloadCompleted struct {
	baseEvent
	InfoHash [20]byte
	PeerID   [20]byte
}

// UdpConnect is emitted after a UDP Connect response is built.
type UdpConnect struct {
	baseEvent
	Binding ServerBinding
}

// UdpAnnounce is emitted after a UDP Announce is served.
type UdpAnnounce struct {
	baseEvent
	Binding  ServerBinding
	InfoHash [20]byte
}

// UdpScrape is emitted after a UDP Scrape is served.
type UdpScrape struct {
	baseEvent
	Binding ServerBinding
}

// TcpAnnounce is emitted after an HTTP announce is served.
type TcpAnnounce struct {
	baseEvent
	Binding  ServerBinding
	InfoHash [20]byte
}

// TcpScrape is emitted after an HTTP scrape is served.
type TcpScrape struct {
	baseEvent
	Binding ServerBinding
}

// UdpRequestReceived is emitted as soon as a datagram is read off the wire.
type UdpRequestReceived struct {
	baseEvent
	Binding ServerBinding
}

// UdpRequestAccepted is emitted once a datagram passes the ban pre-check.
type UdpRequestAccepted struct {
	baseEvent
	Binding ServerBinding
}

// UdpRequestAborted is emitted when a datagram is dropped pre-parse for a
// reason other than banning.
type UdpRequestAborted struct {
	baseEvent
	Binding ServerBinding
	Reason  string
}

// UdpRequestBanned is emitted when a datagram from a banned IP is dropped.
type UdpRequestBanned struct {
	baseEvent
	Binding ServerBinding
}

// UdpIPBanned is emitted the moment an IP crosses the connection-cookie
// error threshold and is newly added to the ban list (as opposed to
// UdpRequestBanned, which fires on every subsequent dropped datagram from an
// already-banned IP).
type UdpIPBanned struct {
	baseEvent
	Binding ServerBinding
}

// UdpResponseSent is emitted once a response datagram has been written.
type UdpResponseSent struct {
	baseEvent
	Binding           ServerBinding
	RequestKind       RequestKind
	Ok                bool
	ReqProcessingTime time.Duration
}

// UdpError is emitted whenever the UDP processor encounters an error kind.
type UdpError struct {
	baseEvent
	Binding ServerBinding
	Kind    ErrorKind
	Addr    net.Addr
}
