// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

// Package api implements the tracker's admin surface: a liveness check, a
// JSON statistics snapshot, a Prometheus scrape endpoint, and whitelist/key
// CRUD over the C4 persistence driver (C13).
package api

import (
	"net"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tylerb/graceful"

	"github.com/majestrate/bittorrent-tracker/config"
	"github.com/majestrate/bittorrent-tracker/metrics"
	"github.com/majestrate/bittorrent-tracker/persistence"
)

// ResponseHandler is an HTTP handler that returns a status code, the same
// contract http.Server's handlers use.
type ResponseHandler func(http.ResponseWriter, *http.Request, httprouter.Params) (int, error)

// Server exposes the admin/API surface. Unlike http.Server and udp.Server,
// it binds a plain local listener directly rather than going through a
// network.Network: the teacher's own Boot() constructed its API server with
// just NewServer(cfg, tkr), no network argument, because the admin surface
// is meant for an operator's internal network, not a public overlay.
type Server struct {
	addr    string
	config  *config.Config
	store   persistence.Driver
	metrics *metrics.MetricCollection
	started time.Time

	registry *prometheus.Registry
	grace    *graceful.Server
	stopping bool
}

// NewServer returns a new admin API server.
func NewServer(cfg *config.Config, store persistence.Driver, coll *metrics.MetricCollection) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewCollector(coll))
	return &Server{
		config:   cfg,
		store:    store,
		metrics:  coll,
		started:  time.Now(),
		registry: registry,
	}
}

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
			glog.Errorf("[API - %9s] %s (%d - %s)", duration, r.URL.Path, httpCode, msg)
		} else if glog.V(2) {
			glog.Infof("[API - %9s] %s (%d)", duration, r.URL.Path, httpCode)
		}
	}
}

func newRouter(s *Server) *httprouter.Router {
	r := httprouter.New()
	r.GET("/check", makeHandler(s.check))
	r.GET("/stats", makeHandler(s.stats))
	r.Handler("GET", "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.GET("/whitelist/:infohash", makeHandler(s.getWhitelist))
	r.PUT("/whitelist/:infohash", makeHandler(s.putWhitelist))
	r.DELETE("/whitelist/:infohash", makeHandler(s.delWhitelist))

	r.GET("/keys/:key", makeHandler(s.getKey))
	r.PUT("/keys/:key", makeHandler(s.putKey))
	r.DELETE("/keys/:key", makeHandler(s.delKey))
	return r
}

func (s *Server) connState(conn net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew, http.StateActive, http.StateIdle, http.StateClosed:
	case http.StateHijacked:
		panic("connection impossibly hijacked")
	default:
		glog.Errorf("Connection transitioned to unknown state %s (%d)", state, state)
	}
}

// Setup is a no-op: the admin listener needs no external resolver setup.
func (s *Server) Setup() error {
	return nil
}

// Serve runs the admin HTTP server, blocking until it is stopped.
func (s *Server) Serve() {
	router := newRouter(s)
	serv := &http.Server{
		Handler:      router,
		ReadTimeout:  s.config.APIConfig.ReadTimeout.Duration,
		WriteTimeout: s.config.APIConfig.WriteTimeout.Duration,
	}
	s.grace = &graceful.Server{
		Server:    serv,
		Timeout:   10 * time.Second,
		ConnState: s.connState,
	}

	l, err := net.Listen("tcp", s.config.APIConfig.ListenAddr)
	if err == nil {
		s.addr = l.Addr().String()
		glog.Infof("Serving API on %s", s.addr)
		err = s.grace.Serve(l)
	}
	if err != nil {
		glog.Error(err)
	}
	glog.Info("API server shut down cleanly")
}

// Stop cleanly shuts down the server.
func (s *Server) Stop() {
	if s.stopping || s.grace == nil {
		return
	}
	s.stopping = true
	s.grace.Stop(s.grace.Timeout)
}
