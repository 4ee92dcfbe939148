package knownnetwork

import (
	"time"

	"github.com/nspcc-dev/node-crawler/pkg/netaddr"
)

// Policy holds the thresholds that parameterize the crawl: how often a
// gossip round and a snapshot round run, how stale a node or edge must be
// before it is dropped, how long since the last probe before an address is
// eligible for a re-probe, and how many new outbound attempts a single
// round may spawn.
type Policy struct {
	PeerUpdateInterval time.Duration
	SnapshotInterval   time.Duration
	NodeStaleness      time.Duration
	EdgeStaleness      time.Duration
	ReprobeInterval    time.Duration
	DialFanOut         int

	// UnresponsiveWindow is the span since last_seen after which a
	// currently connected peer is considered unresponsive and scheduled
	// for disconnect even if it hasn't reached the gossiped-once bar.
	UnresponsiveWindow time.Duration
}

// eligibleForConnect reports whether a node's bookkeeping allows a fresh
// connection attempt right now: never probed, or last probed longer ago
// than the re-probe interval. The back-off widens as Failures accumulates.
func (p Policy) eligibleForConnect(n *KnownNode, now time.Time) bool {
	if n.Tries == 0 {
		return true
	}
	backoff := p.ReprobeInterval
	if n.Failures > 0 {
		backoff = p.ReprobeInterval * time.Duration(1<<min(n.Failures, 5))
	}
	return now.Sub(n.LastAttempt) > backoff
}

func min(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

// AddrsToConnect returns listening addresses eligible for a fresh outbound
// attempt this round: known, not in connecting/connected, and either never
// probed or due for a re-probe. connectedOrConnecting is the caller's
// current view of addresses already live or in flight.
func (g *Graph) AddrsToConnect(policy Policy, connectedOrConnecting map[string]bool) []netaddr.Addr {
	now := time.Now()

	g.nodesMu.RLock()
	candidates := make([]netaddr.Addr, 0, len(g.nodes))
	for key, n := range g.nodes {
		if connectedOrConnecting[key] {
			continue
		}
		if policy.eligibleForConnect(n, now) {
			candidates = append(candidates, n.ListeningAddr)
		}
	}
	g.nodesMu.RUnlock()

	return sampleUniform(candidates, policy.DialFanOut)
}

// AddrsToDisconnect returns listening addresses that are currently
// connected (per connected) and either have exchanged gossip at least once
// (gossiped reports this) or have gone silent past UnresponsiveWindow.
func (g *Graph) AddrsToDisconnect(policy Policy, connected map[string]bool, gossiped map[string]bool) []netaddr.Addr {
	now := time.Now()

	g.nodesMu.RLock()
	defer g.nodesMu.RUnlock()

	var out []netaddr.Addr
	for key, n := range g.nodes {
		if !connected[key] {
			continue
		}
		unresponsive := now.Sub(n.LastSeen) > policy.UnresponsiveWindow
		if gossiped[key] || unresponsive {
			out = append(out, n.ListeningAddr)
		}
	}
	return out
}
