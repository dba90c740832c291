package udp

import (
	"net"

	"golang.org/x/net/ipv6"

	"github.com/majestrate/bittorrent-tracker/events"
)

// DetectIPType inspects conn through golang.org/x/net/ipv6's PKTINFO
// control-message support to decide whether a bound IPv6 socket serves
// plain IPv6 addresses or accepts IPv4-mapped ones on a dual-stack
// listener, per SPEC_FULL.md §4.8. PKTINFO only applies to an IPv6 socket;
// an IPv4 socket, or a platform where enabling the control message fails,
// falls back to a plain address-family check on the bound local address.
func DetectIPType(conn *net.UDPConn) events.IPType {
	local, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || local.IP.To4() != nil {
		return events.IPTypePlain
	}

	pc := ipv6.NewPacketConn(conn)
	if err := pc.SetControlMessage(ipv6.FlagDst, true); err != nil {
		return events.IPTypePlain
	}
	defer pc.SetControlMessage(ipv6.FlagDst, false)

	if local.IP.IsUnspecified() {
		// An unspecified ("::") bind accepts both plain v6 and v4-mapped-v6
		// connections on the platforms where IPV6_V6ONLY defaults off.
		return events.IPTypeV4MappedV6
	}
	return events.IPTypePlain
}
