// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

// Package http implements a BitTorrent tracker over the HTTP protocol as per
// BEP 3/23/48 (C7).
package http

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
	"github.com/tylerb/graceful"

	"github.com/majestrate/bittorrent-tracker/config"
	"github.com/majestrate/bittorrent-tracker/events"
	"github.com/majestrate/bittorrent-tracker/network"
	"github.com/majestrate/bittorrent-tracker/trackercore"
)

// ResponseHandler is an HTTP handler that returns a status code.
type ResponseHandler func(http.ResponseWriter, *http.Request, httprouter.Params) (int, error)

// Server represents an HTTP serving torrent tracker (C7).
type Server struct {
	network  network.Network
	addr     string
	config   *config.Config
	announce *trackercore.AnnounceHandler
	scrape   *trackercore.ScrapeHandler
	whitelist *trackercore.WhitelistAuthorization
	auth     *trackercore.AuthenticationService
	resolver ClientIPResolver
	bus      *events.Bus

	grace    *graceful.Server
	stopping bool
}

// NewServer returns a new HTTP server wired to the shared tracker-core
// services, generalizing the teacher's NewServer(n, cfg, tkr) constructor
// across C5's narrower capability references instead of one monolithic
// *tracker.Tracker.
func NewServer(n network.Network, cfg *config.Config, announce *trackercore.AnnounceHandler, scrape *trackercore.ScrapeHandler, whitelist *trackercore.WhitelistAuthorization, auth *trackercore.AuthenticationService, bus *events.Bus) *Server {
	resolver := ClientIPResolver{}
	if cfg.OnReverseProxy && cfg.RealIPHeader != "" {
		resolver.Header = cfg.RealIPHeader
	}
	return &Server{
		network:   n,
		config:    cfg,
		announce:  announce,
		scrape:    scrape,
		whitelist: whitelist,
		auth:      auth,
		bus:       bus,
		resolver:  resolver,
	}
}

func (s *Server) emit(e events.Event) {
	if s.bus != nil {
		s.bus.Send(e)
	}
}

// makeHandler wraps our ResponseHandlers with request timing and logging.
func makeHandler(handler ResponseHandler) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		start := time.Now()
		httpCode, err := handler(w, r, p)
		duration := time.Since(start)

		var msg string
		if err != nil {
			msg = err.Error()
		} else if httpCode != http.StatusOK {
			msg = http.StatusText(httpCode)
		}

		if len(msg) > 0 {
			http.Error(w, msg, httpCode)
		}

		if len(msg) > 0 || glog.V(2) {
			reqString := r.URL.Path + " " + r.RemoteAddr
			if glog.V(3) {
				reqString = r.URL.RequestURI() + " " + r.RemoteAddr
			}

			if len(msg) > 0 {
				glog.Errorf("[HTTP - %9s] %s (%d - %s)", duration, reqString, httpCode, msg)
			} else {
				glog.Infof("[HTTP - %9s] %s (%d)", duration, reqString, httpCode)
			}
		}
	}
}

func (s *Server) ServerAddr() string {
	return s.addr
}

// newRouter returns a router with all the routes.
func newRouter(s *Server) *httprouter.Router {
	r := httprouter.New()

	if s.config.PrivateEnabled {
		r.GET("/announce/:passkey", makeHandler(s.serveAnnounce))
		r.GET("/scrape/:passkey", makeHandler(s.serveScrape))
	} else {
		r.GET("/announce", makeHandler(s.serveAnnounce))
		r.GET("/scrape", makeHandler(s.serveScrape))
	}
	r.GET("/", makeHandler(s.serveIndex))
	return r
}

// connState keeps track of connection stats for graceful shutdown.
func (s *Server) connState(conn net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew, http.StateActive, http.StateIdle, http.StateClosed:
	case http.StateHijacked:
		panic("connection impossibly hijacked")
	default:
		glog.Errorf("Connection transitioned to unknown state %s (%d)", state, state)
	}
}

func (s *Server) Setup() (err error) {
	return s.network.Setup()
}

func (s *Server) resolveName(l net.Listener) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	addr, err := s.network.PublicAddr(ctx, l)
	if err == nil {
		s.addr = addr
	}
	return err
}

// Serve runs an HTTP server, blocking until the server has shut down.
func (s *Server) Serve() {
	router := newRouter(s)
	serv := &http.Server{
		Handler:      router,
		ReadTimeout:  s.config.HTTPConfig.ReadTimeout.Duration,
		WriteTimeout: s.config.HTTPConfig.WriteTimeout.Duration,
	}
	s.grace = &graceful.Server{
		Server:    serv,
		Timeout:   10 * time.Second,
		ConnState: s.connState,
	}

	l, err := s.network.Listen("tcp", s.config.HTTPConfig.ListenAddr)
	if err == nil {
		err = s.resolveName(l)
		if err == nil {
			glog.Infof("Serving on %s", s.addr)
			err = s.grace.Serve(l)
		}
	}
	if err != nil {
		glog.Error(err)
	}
	glog.Info("HTTP server shut down cleanly")
}

// Stop cleanly shuts down the server.
func (s *Server) Stop() {
	if s.stopping || s.grace == nil {
		return
	}
	s.stopping = true
	s.grace.Stop(s.grace.Timeout)
}
