package swarm

// RetentionPolicy governs when an empty swarm is evicted from the registry
// by RemovePeerlessTorrents.
//
// Open Question 1 (SPEC_FULL.md §9) is resolved here: eviction is governed
// solely by RemovePeerlessTorrents. Whether a completed download is also
// persisted to the C4 store is an orthogonal concern — it's configured on
// statistics.TrackerCoreListener, not here — because it has no bearing on
// whether the in-memory swarm itself survives once empty. A persisted
// download count is recovered on the next process start via
// Registry.ImportPersistent, not by keeping the swarm resident in memory.
type RetentionPolicy struct {
	RemovePeerlessTorrents bool
}

// shouldRemove reports whether an empty swarm should be evicted under p.
func (p RetentionPolicy) shouldRemove(s *swarmState) bool {
	return p.RemovePeerlessTorrents && s.isEmpty()
}
