// Package activity implements the periodic sweep that reaps inactive peers
// and peerless swarms from the registry, grounded on the teacher's
// TrackerConfig.ReapInterval/ReapRatio-driven background reaper (C9).
package activity

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/majestrate/bittorrent-tracker/config"
	"github.com/majestrate/bittorrent-tracker/metrics"
	"github.com/majestrate/bittorrent-tracker/statistics"
	"github.com/majestrate/bittorrent-tracker/swarm"
)

// Job periodically sweeps the swarm registry for stale peers and empty
// swarms. The teacher ran this logic inline inside its TrackerConfig-driven
// reap loop; here it is its own component so C10's Boot() can start and
// stop it alongside the protocol engines.
type Job struct {
	Registry *swarm.Registry
	Metrics  *metrics.MetricCollection
	Policy   swarm.RetentionPolicy

	// Interval is how often the sweep runs, the teacher's ReapInterval
	// scaled by ReapRatio (a longer sweep period than the peer timeout
	// itself, so a peer is never reaped on the same tick it goes stale).
	Interval time.Duration
	// MaxPeerIdle is how long a peer may go unannounced before it is
	// considered inactive, the teacher's TrackerPolicy.MaxPeerTimeout.
	MaxPeerIdle time.Duration
}

// NewJob builds a Job wired from cfg.
func NewJob(cfg *config.Config, registry *swarm.Registry, coll *metrics.MetricCollection) *Job {
	interval := time.Duration(float64(cfg.ReapInterval.Duration) * cfg.ReapRatio)
	return &Job{
		Registry:    registry,
		Metrics:     coll,
		Policy:      swarm.RetentionPolicy{RemovePeerlessTorrents: cfg.TrackerPolicy.RemovePeerlessTorrents},
		Interval:    interval,
		MaxPeerIdle: cfg.TrackerPolicy.MaxPeerTimeout.Duration,
	}
}

// Run ticks every j.Interval until ctx is canceled, sweeping once per tick.
func (j *Job) Run(ctx context.Context) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

// sweep updates the swarm_coordination_registry_{peers,torrents}_inactive_
// total gauges and reaps stale peers/swarms. RemovePeerlessTorrents already
// emits a TorrentRemoved event per swarm it drops, which the registry
// listener folds into swarm_coordination_registry_torrents_removed on its
// own — sweep only owns the gauges and the reap call itself.
func (j *Job) sweep() {
	now := time.Now()
	cutoff := now.Add(-j.MaxPeerIdle)

	act := j.Registry.GetActivityMetadata(cutoff)
	j.Metrics.SetGauge(statistics.MetricPeersInactive, metrics.NewLabelSet(), float64(act.InactivePeers), now)
	j.Metrics.SetGauge(statistics.MetricTorrentsInactive, metrics.NewLabelSet(), float64(act.InactiveTorrents), now)

	reapedPeers := j.Registry.RemoveInactivePeers(cutoff)
	reapedTorrents := j.Registry.RemovePeerlessTorrents(j.Policy)

	if reapedPeers > 0 || reapedTorrents > 0 {
		glog.Infof("activity: reaped %d peers, %d torrents", reapedPeers, reapedTorrents)
	}
}
