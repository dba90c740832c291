// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package http

import (
	"bytes"
	"net"
	"net/http"

	"github.com/chihaya/bencode"

	"github.com/majestrate/bittorrent-tracker/events"
	"github.com/majestrate/bittorrent-tracker/swarm"
	"github.com/majestrate/bittorrent-tracker/trackercore"
)

// Writer implements the bencoded HTTP tracker response surface, kept and
// adapted from the teacher's Writer over the new AnnounceData/ScrapeData
// shapes.
type Writer struct {
	http.ResponseWriter
}

// WriteError writes a bencode dict with a failure reason.
func (w *Writer) WriteError(err error) error {
	w.Header().Set("Content-Type", "text/plain")
	return bencode.NewEncoder(w).Encode(bencode.Dict{
		"failure reason": err.Error(),
	})
}

// WriteAnnounce writes a bencode dict representation of an AnnounceData,
// compact or non-compact per the request's compact flag. family is the
// listener's own bound address family: a compact response is segregated to
// that family per SPEC_FULL.md §9 item 2 (peers of the other family are
// silently omitted from the compact string, never mixed into it).
func (w *Writer) WriteAnnounce(data trackercore.AnnounceData, compact bool, family events.IPFamily) error {
	dict := bencode.Dict{
		"complete":     data.Stats.Complete,
		"incomplete":   data.Stats.Incomplete,
		"interval":     int(data.Policy.Interval.Seconds()),
		"min interval": int(data.Policy.IntervalMin.Seconds()),
	}

	if compact {
		dict["compact"] = 1
		dict["peers"] = compactPeers(data.Peers, family)
	} else {
		dict["peers"] = peerDicts(data.Peers)
	}

	w.Header().Set("Content-Type", "text/plain")
	return bencode.NewEncoder(w).Encode(dict)
}

// WriteScrape writes a bencode dict representation of a ScrapeData.
func (w *Writer) WriteScrape(data trackercore.ScrapeData) error {
	files := bencode.NewDict()
	for ih, md := range data.Files {
		files[string(ih[:])] = bencode.Dict{
			"complete":   md.Complete,
			"incomplete": md.Incomplete,
			"downloaded": md.Downloaded,
		}
	}

	w.Header().Set("Content-Type", "text/plain")
	return bencode.NewEncoder(w).Encode(bencode.Dict{"files": files})
}

// compactPeers packs peers as 6-byte (IPv4) or 18-byte (IPv6) entries, per
// BEP 23/48's fixed per-entry width. A swarm can hold peers of both
// families (dual-stack listener, or peers announced from elsewhere), so a
// compact response is filtered to the requested family rather than assumed
// uniform: the other family's peers are silently omitted, per SPEC_FULL.md
// §9 item 2.
func compactPeers(peers []swarm.Peer, family events.IPFamily) []byte {
	var buf bytes.Buffer
	for _, p := range peers {
		tcpAddr, ok := p.Addr.(*net.TCPAddr)
		if !ok {
			continue
		}
		ip4 := tcpAddr.IP.To4()
		if family == events.FamilyInet6 {
			if ip4 != nil {
				continue
			}
			buf.Write(tcpAddr.IP.To16())
		} else {
			if ip4 == nil {
				continue
			}
			buf.Write(ip4)
		}
		buf.WriteByte(byte(tcpAddr.Port >> 8))
		buf.WriteByte(byte(tcpAddr.Port))
	}
	return buf.Bytes()
}

func peerDicts(peers []swarm.Peer) []bencode.Dict {
	out := make([]bencode.Dict, 0, len(peers))
	for _, p := range peers {
		tcpAddr, ok := p.Addr.(*net.TCPAddr)
		if !ok {
			continue
		}
		out = append(out, bencode.Dict{
			"peer id": string(p.ID[:]),
			"ip":      tcpAddr.IP.String(),
			"port":    tcpAddr.Port,
		})
	}
	return out
}
