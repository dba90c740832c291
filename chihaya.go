// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

// Package chihaya implements the ability to boot the Chihaya BitTorrent
// tracker with your own imports that can dynamically register additional
// functionality.
package chihaya

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/golang/glog"

	"github.com/majestrate/bittorrent-tracker/activity"
	"github.com/majestrate/bittorrent-tracker/api"
	"github.com/majestrate/bittorrent-tracker/clock"
	"github.com/majestrate/bittorrent-tracker/config"
	"github.com/majestrate/bittorrent-tracker/events"
	"github.com/majestrate/bittorrent-tracker/http"
	"github.com/majestrate/bittorrent-tracker/lokinet"
	"github.com/majestrate/bittorrent-tracker/metrics"
	"github.com/majestrate/bittorrent-tracker/network"
	"github.com/majestrate/bittorrent-tracker/persistence"
	"github.com/majestrate/bittorrent-tracker/plainnet"
	"github.com/majestrate/bittorrent-tracker/statistics"
	"github.com/majestrate/bittorrent-tracker/swarm"
	"github.com/majestrate/bittorrent-tracker/trackercore"
	"github.com/majestrate/bittorrent-tracker/udp"
)

var (
	maxProcs   int
	configPath string
)

func init() {
	flag.IntVar(&maxProcs, "maxprocs", runtime.NumCPU(), "maximum parallel threads")
	flag.StringVar(&configPath, "config", "", "path to the configuration file")
}

type server interface {
	Setup() error
	Serve()
	Stop()
}

// udpServer adapts udp.Server's ListenAndServe/Shutdown contract onto the
// Setup/Serve/Stop shape the boot loop drives the HTTP and API servers
// with; UDP has no network.Network-style resolver step, so Setup is a
// no-op and Serve does the binding itself.
type udpServer struct {
	*udp.Server
	addr          string
	shutdownGrace time.Duration
}

func (u *udpServer) Setup() error { return nil }

func (u *udpServer) Serve() {
	if err := u.ListenAndServe(u.addr); err != nil {
		glog.Error("udp: ", err)
	}
}

func (u *udpServer) Stop() {
	u.Shutdown(u.shutdownGrace)
}

func importedDownloads(store persistence.Driver, ctx context.Context) map[swarm.InfoHash]uint32 {
	raw, err := store.LoadAllTorrentDownloads(ctx)
	if err != nil {
		glog.Warningf("failed to load persisted download counts: %s", err)
		return nil
	}
	downloads := make(map[swarm.InfoHash]uint32, len(raw))
	for hash, count := range raw {
		downloads[swarm.InfoHash(hash)] = count
	}
	return downloads
}

// Boot starts Chihaya. By exporting this function, anyone can import their own
// custom drivers into their own package main and then call chihaya.Boot.
func Boot() {
	defer glog.Flush()

	flag.Parse()

	runtime.GOMAXPROCS(maxProcs)
	glog.V(1).Info("Set max threads to ", maxProcs)

	cfg, err := config.Open(configPath)
	if err != nil {
		glog.Fatalf("Failed to parse configuration file: %s\n", err)
	}

	if cfg == &config.DefaultConfig {
		glog.V(1).Info("Using default config")
	} else {
		glog.V(1).Infof("Loaded config file: %s", configPath)
	}

	store, err := persistence.Open(cfg.Persistence.Driver, cfg.Persistence.DSN)
	if err != nil {
		glog.Fatal("persistence.Open: ", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	bus := events.NewBus(true)
	coll := metrics.New()
	registry := swarm.New(cfg.TorrentMapShards, bus)
	registry.ImportPersistent(importedDownloads(store, ctx))

	announce := &trackercore.AnnounceHandler{
		Registry: registry,
		Policy: trackercore.AnnouncePolicy{
			Interval:    cfg.Announce.Duration,
			IntervalMin: cfg.MinAnnounce.Duration,
		},
	}
	scrape := &trackercore.ScrapeHandler{Registry: registry}
	whitelist := &trackercore.WhitelistAuthorization{Enabled: cfg.ClientWhitelistEnabled, Store: store}
	auth := &trackercore.AuthenticationService{Enabled: cfg.PrivateEnabled, Store: store, Clock: clock.Working{}}

	statsListener := statistics.NewListener(coll)
	go statsListener.Run(ctx, bus)

	trackerCoreListener := statistics.NewTrackerCoreListener(coll, store, cfg.TrackerPolicy.PersistentTorrentCompletedStat)
	go trackerCoreListener.Run(ctx, bus)

	if cfg.IncludeMem {
		mem := statistics.NewMemStatsWrapper(cfg.VerboseMem)
		go statistics.RunMemStats(ctx, mem, coll, cfg.MemUpdateInterval.Duration)
	}

	job := activity.NewJob(cfg, registry, coll)
	go job.Run(ctx)

	cookie, err := udp.NewCookieSecret()
	if err != nil {
		glog.Fatal("udp.NewCookieSecret: ", err)
	}
	bans := udp.NewBanService(cfg.MaxConnIDErrsPerIP)

	var n network.Network
	if cfg.Lokinet.Enabled {
		n = lokinet.NewLokiNetwork(cfg.Lokinet.ResolverAddr)
	} else {
		n = plainnet.New()
	}

	processor := &udp.Processor{
		Announce:           announce,
		Scrape:             scrape,
		Whitelist:          whitelist,
		Cookie:             cookie,
		CookieLifetimeSecs: cfg.CookieLifetimeSecs,
		Bans:               bans,
		Bus:                bus,
		Binding:            events.NewServerBinding("udp", cfg.UDPConfig.ListenAddr),
		Clock:              clock.Working{},
	}

	var servers []server

	if cfg.APIConfig.ListenAddr != "" {
		servers = append(servers, api.NewServer(cfg, store, coll))
	}
	servers = append(servers, http.NewServer(n, cfg, announce, scrape, whitelist, auth, bus))
	servers = append(servers, &udpServer{
		Server:        &udp.Server{Processor: processor, Workers: cfg.UDPConfig.Workers},
		addr:          cfg.UDPConfig.ListenAddr,
		shutdownGrace: 10 * time.Second,
	})

	var wg sync.WaitGroup
	for _, srv := range servers {
		wg.Add(1)
		// If you don't explicitly pass the server, every goroutine captures the
		// last server in the list.
		go func(srv server) {
			for {
				err := srv.Setup()
				if err == nil {
					defer wg.Done()
					srv.Serve()
				} else {
					glog.Error("Setup: ", err)
				}
				time.Sleep(time.Second)
			}
		}(srv)
	}

	shutdown := make(chan os.Signal)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		wg.Wait()
		signal.Stop(shutdown)
		close(shutdown)
	}()

	<-shutdown
	glog.Info("Shutting down...")

	for _, srv := range servers {
		srv.Stop()
	}

	<-shutdown
	cancel()
	bus.Close()

	if err := store.Close(); err != nil {
		glog.Errorf("Failed to shut down persistence cleanly: %s", err.Error())
	}
}
