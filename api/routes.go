// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/pushrax/flatjson"

	"github.com/majestrate/bittorrent-tracker/persistence"
	"github.com/majestrate/bittorrent-tracker/statistics"
	"github.com/majestrate/bittorrent-tracker/swarm"
)

const jsonContentType = "application/json; charset=UTF-8"

// errKeyRequired is returned for /keys/:key requests with an empty key
// segment, the one client-error case this surface needs to distinguish
// from an upstream persistence.Driver error.
var errKeyRequired = errors.New("api: key must not be empty")

func handleError(err error) (int, error) {
	switch err {
	case nil:
		return http.StatusOK, nil
	case swarm.ErrInvalidInfoHash, errKeyRequired:
		return http.StatusBadRequest, nil
	default:
		return http.StatusInternalServerError, err
	}
}

func (s *Server) check(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	_, err := w.Write([]byte("STILL-ALIVE"))
	return handleError(err)
}

// statsSnapshot is the JSON shape served by /stats. Where the teacher's
// stats.Stats was its own independently bookkept struct fed by a channel
// fanout, this is read on demand straight out of the shared
// metrics.MetricCollection that statistics.Listener already maintains.
type statsSnapshot struct {
	Uptime        string  `json:"uptime"`
	Announces     float64 `json:"trackerAnnounces"`
	Scrapes       float64 `json:"trackerScrapes"`
	PeersCurrent  float64 `json:"peersCurrent"`
	TorrentsAdded float64 `json:"torrentsAdded"`
}

func (s *Server) snapshot() statsSnapshot {
	httpAnnounces, _ := s.metrics.Sum(statistics.MetricHTTPCoreRequestsReceived, map[string]string{"request_kind": "announce"})
	udpAnnounces, _ := s.metrics.Sum(statistics.MetricUDPCoreRequestsReceived, map[string]string{"request_kind": "announce"})
	httpScrapes, _ := s.metrics.Sum(statistics.MetricHTTPCoreRequestsReceived, map[string]string{"request_kind": "scrape"})
	udpScrapes, _ := s.metrics.Sum(statistics.MetricUDPCoreRequestsReceived, map[string]string{"request_kind": "scrape"})
	peers, _ := s.metrics.Sum(statistics.MetricUniquePeersTotal, nil)
	torrents, _ := s.metrics.Sum(statistics.MetricTorrentsAdded, nil)

	return statsSnapshot{
		Uptime:        time.Since(s.started).String(),
		Announces:     httpAnnounces + udpAnnounces,
		Scrapes:       httpScrapes + udpScrapes,
		PeersCurrent:  peers,
		TorrentsAdded: torrents,
	}
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	w.Header().Set("Content-Type", jsonContentType)

	snap := s.snapshot()
	query := r.URL.Query()

	var val interface{} = snap
	if _, flatten := query["flatten"]; flatten {
		val = flatjson.Flatten(snap)
	}

	var err error
	if _, pretty := query["pretty"]; pretty {
		var buf []byte
		buf, err = json.MarshalIndent(val, "", "  ")
		if err == nil {
			_, err = w.Write(buf)
		}
	} else {
		err = json.NewEncoder(w).Encode(val)
	}
	return handleError(err)
}

func parseInfoHashParam(p httprouter.Params) (swarm.InfoHash, error) {
	return swarm.NewInfoHashFromHex(p.ByName("infohash"))
}

func (s *Server) getWhitelist(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	ih, err := parseInfoHashParam(p)
	if err != nil {
		return handleError(err)
	}
	ok, err := s.store.IsWhitelisted(r.Context(), ih)
	if err != nil {
		return handleError(err)
	}
	w.Header().Set("Content-Type", jsonContentType)
	return handleError(json.NewEncoder(w).Encode(map[string]bool{"whitelisted": ok}))
}

func (s *Server) putWhitelist(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	ih, err := parseInfoHashParam(p)
	if err != nil {
		return handleError(err)
	}
	return handleError(s.store.AddToWhitelist(r.Context(), ih))
}

func (s *Server) delWhitelist(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	ih, err := parseInfoHashParam(p)
	if err != nil {
		return handleError(err)
	}
	return handleError(s.store.RemoveFromWhitelist(r.Context(), ih))
}

func (s *Server) getKey(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	key := p.ByName("key")
	if key == "" {
		return handleError(errKeyRequired)
	}
	pk, found, err := s.store.GetKey(r.Context(), key)
	if err != nil {
		return handleError(err)
	}
	if !found {
		return http.StatusNotFound, nil
	}
	w.Header().Set("Content-Type", jsonContentType)
	return handleError(json.NewEncoder(w).Encode(pk))
}

func (s *Server) putKey(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	key := p.ByName("key")
	if key == "" {
		return handleError(errKeyRequired)
	}

	var body struct {
		ValidUntil *time.Time `json:"validUntil"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return http.StatusBadRequest, err
		}
	}

	pk := persistence.PeerKey{Key: key, ValidUntil: body.ValidUntil}
	return handleError(s.store.AddKey(r.Context(), pk))
}

func (s *Server) delKey(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	key := p.ByName("key")
	if key == "" {
		return handleError(errKeyRequired)
	}
	return handleError(s.store.RemoveKey(r.Context(), key))
}
