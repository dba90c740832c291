// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package http

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/majestrate/bittorrent-tracker/events"
	"github.com/majestrate/bittorrent-tracker/trackercore"
)

func handleTrackerError(err error, w *Writer) (int, error) {
	switch err {
	case nil:
		return http.StatusOK, nil
	case ErrMalformedRequest, trackercore.ErrNotWhitelisted, trackercore.ErrUnknownKey, trackercore.ErrKeyExpired:
		w.WriteError(err)
		return http.StatusOK, nil
	default:
		return http.StatusInternalServerError, err
	}
}

func (s *Server) serveAnnounce(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	writer := &Writer{w}
	ctx := context.Background()

	ann, err := s.newAnnounce(r, p)
	if err != nil {
		return handleTrackerError(err, writer)
	}

	if s.auth != nil {
		if err := s.auth.Authenticate(ctx, ann.passkey); err != nil {
			return handleTrackerError(err, writer)
		}
	}
	if s.whitelist != nil {
		if err := s.whitelist.Authorize(ctx, ann.infoHash); err != nil {
			return handleTrackerError(err, writer)
		}
	}

	clientIP := ann.peer.Addr.(*net.TCPAddr).IP
	data, err := s.announce.HandleAnnouncement(ctx, ann.infoHash, ann.peer, clientIP, ann.numWant)
	if err != nil {
		return handleTrackerError(err, writer)
	}

	binding := s.binding()
	s.emit(events.TcpAnnounce{Binding: binding, InfoHash: ann.infoHash})
	return handleTrackerError(writer.WriteAnnounce(data, ann.compact, binding.Family), writer)
}

func (s *Server) serveScrape(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	writer := &Writer{w}
	scrape, err := s.newScrape(r, p)
	if err != nil {
		return handleTrackerError(err, writer)
	}

	ctx := context.Background()
	if s.auth != nil {
		if err := s.auth.Authenticate(ctx, scrape.passkey); err != nil {
			return handleTrackerError(err, writer)
		}
	}

	data, err := s.scrape.HandleScrape(ctx, scrape.infoHashes)
	if err != nil {
		return handleTrackerError(err, writer)
	}

	s.emit(events.TcpScrape{Binding: s.binding()})
	return handleTrackerError(writer.WriteScrape(data), writer)
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	addr := s.ServerAddr()
	txt := fmt.Sprintf("bittorrent open tracker announce url http://%s/announce\n", addr)
	_, err := io.WriteString(w, txt)
	txt = fmt.Sprintf("to use:\n\nmktorrent -a http://%s/announce somedirectory\n", addr)
	_, err = io.WriteString(w, txt)
	return http.StatusOK, err
}

// binding reports the protocol, address, and port this server is actually
// bound to, derived from the resolved listener address rather than assumed,
// so a dual-stack or IPv6-bound listener labels its events and segregates
// its compact peer lists correctly (SPEC_FULL.md §9 item 2).
func (s *Server) binding() events.ServerBinding {
	return events.NewServerBinding("http", s.addr)
}
