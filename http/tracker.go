// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package http

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/majestrate/bittorrent-tracker/swarm"
	"github.com/majestrate/bittorrent-tracker/trackercore"
)

// ErrMalformedRequest is returned for any announce/scrape request missing a
// required parameter or carrying one of the wrong shape.
var ErrMalformedRequest = errors.New("malformed request")

type parsedAnnounce struct {
	infoHash swarm.InfoHash
	peer     swarm.Peer
	passkey  string
	compact  bool
	numWant  trackercore.PeersWanted
}

// newAnnounce parses an HTTP request into the fields needed to call
// AnnounceHandler, replacing the teacher's query-package-based newAnnounce.
func (s *Server) newAnnounce(r *http.Request, p httprouter.Params) (*parsedAnnounce, error) {
	q := r.URL.Query()

	rawInfoHash := q.Get("info_hash")
	if rawInfoHash == "" {
		return nil, ErrMalformedRequest
	}
	infoHash, err := swarm.NewInfoHashFromBytes([]byte(rawInfoHash))
	if err != nil {
		return nil, ErrMalformedRequest
	}

	peerID := q.Get("peer_id")
	if len(peerID) != swarm.PeerIDLen {
		return nil, ErrMalformedRequest
	}
	var pid swarm.PeerID
	copy(pid[:], peerID)

	port, err := strconv.ParseUint(q.Get("port"), 10, 16)
	if err != nil {
		return nil, ErrMalformedRequest
	}
	left, err := parseUint64Param(q, "left")
	if err != nil {
		return nil, ErrMalformedRequest
	}
	downloaded, err := parseUint64Param(q, "downloaded")
	if err != nil {
		return nil, ErrMalformedRequest
	}
	uploaded, err := parseUint64Param(q, "uploaded")
	if err != nil {
		return nil, ErrMalformedRequest
	}

	clientIP, err := s.resolver.Resolve(r)
	if err != nil {
		return nil, ErrMalformedRequest
	}

	numWant := s.config.NumWantFallback
	if raw := q.Get("numwant"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			numWant = n
		}
	}

	return &parsedAnnounce{
		infoHash: infoHash,
		passkey:  p.ByName("passkey"),
		compact:  q.Get("compact") == "1",
		numWant:  trackercore.PeersWanted(numWant),
		peer: swarm.Peer{
			ID:         pid,
			Addr:       &net.TCPAddr{IP: clientIP, Port: int(port)},
			Uploaded:   uploaded,
			Downloaded: downloaded,
			Left:       left,
			LastEvent:  announceEventFromParam(q.Get("event")),
			LastSeen:   time.Now(),
		},
	}, nil
}

func parseUint64Param(q map[string][]string, key string) (uint64, error) {
	vals, ok := q[key]
	if !ok || len(vals) == 0 {
		return 0, ErrMalformedRequest
	}
	return strconv.ParseUint(vals[0], 10, 64)
}

func announceEventFromParam(event string) swarm.AnnounceEvent {
	switch event {
	case "started":
		return swarm.EventStarted
	case "completed":
		return swarm.EventCompleted
	case "stopped":
		return swarm.EventStopped
	default:
		return swarm.EventUpdated
	}
}

type parsedScrape struct {
	passkey    string
	infoHashes []swarm.InfoHash
}

// newScrape parses an HTTP request into the info-hashes to scrape.
func (s *Server) newScrape(r *http.Request, p httprouter.Params) (*parsedScrape, error) {
	raw := r.URL.Query()["info_hash"]
	if len(raw) == 0 {
		return nil, ErrMalformedRequest
	}

	hashes := make([]swarm.InfoHash, 0, len(raw))
	for _, s := range raw {
		h, err := swarm.NewInfoHashFromBytes([]byte(s))
		if err != nil {
			return nil, ErrMalformedRequest
		}
		hashes = append(hashes, h)
	}

	return &parsedScrape{passkey: p.ByName("passkey"), infoHashes: hashes}, nil
}
