package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/majestrate/bittorrent-tracker/config"
	"github.com/majestrate/bittorrent-tracker/events"
	"github.com/majestrate/bittorrent-tracker/swarm"
	"github.com/majestrate/bittorrent-tracker/trackercore"
)

func newTestServer() *Server {
	registry := swarm.New(1, nil)
	cfg := config.DefaultConfig
	return &Server{
		config:    &cfg,
		announce:  &trackercore.AnnounceHandler{Registry: registry, Policy: trackercore.AnnouncePolicy{Interval: 30 * time.Minute, IntervalMin: 15 * time.Minute}},
		scrape:    &trackercore.ScrapeHandler{Registry: registry},
		whitelist: &trackercore.WhitelistAuthorization{Enabled: false},
		bus:       events.NewBus(true),
	}
}

func announceRequest(infoHash, peerID string, port int, left uint64, event string) *http.Request {
	q := url.Values{}
	q.Set("info_hash", infoHash)
	q.Set("peer_id", peerID)
	q.Set("port", "6881")
	q.Set("uploaded", "0")
	q.Set("downloaded", "0")
	q.Set("left", "0")
	if left != 0 {
		q.Set("left", "100")
	}
	if event != "" {
		q.Set("event", event)
	}
	r := httptest.NewRequest("GET", "/announce?"+q.Encode(), nil)
	r.RemoteAddr = "203.0.113.1:" + "55000"
	return r
}

func TestServeAnnounceRoundTrip(t *testing.T) {
	s := newTestServer()
	ih := string(make([]byte, 20))
	peerID := "-qB00000000000000000"[:20]

	r := announceRequest(ih, peerID, 6881, 0, "started")
	w := httptest.NewRecorder()
	code, err := s.serveAnnounce(w, r, httprouter.Params{})
	if err != nil || code != http.StatusOK {
		t.Fatalf("expected 200/nil, got %d/%v body=%s", code, err, w.Body.String())
	}
	if w.Body.Len() == 0 {
		t.Fatal("expected a bencoded response body")
	}
}

func TestServeAnnounceRejectsMalformedRequest(t *testing.T) {
	s := newTestServer()
	r := httptest.NewRequest("GET", "/announce", nil)
	r.RemoteAddr = "203.0.113.1:55000"
	w := httptest.NewRecorder()

	code, err := s.serveAnnounce(w, r, httprouter.Params{})
	if err != nil {
		t.Fatalf("expected handled error, got transport error %v", err)
	}
	if code != http.StatusOK {
		t.Fatalf("expected 200 with a bencoded failure reason, got %d", code)
	}
}

func TestServeScrapeZeroesUnknownTorrent(t *testing.T) {
	s := newTestServer()
	ih := string(make([]byte, 20))
	q := url.Values{}
	q.Set("info_hash", ih)
	r := httptest.NewRequest("GET", "/scrape?"+q.Encode(), nil)
	w := httptest.NewRecorder()

	code, err := s.serveScrape(w, r, httprouter.Params{})
	if err != nil || code != http.StatusOK {
		t.Fatalf("expected 200/nil, got %d/%v", code, err)
	}
	if w.Body.Len() == 0 {
		t.Fatal("expected a bencoded response body")
	}
}
