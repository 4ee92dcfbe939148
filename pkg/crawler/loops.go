package crawler

import (
	"context"
	"time"

	"github.com/nspcc-dev/node-crawler/pkg/metrics"
	"github.com/nspcc-dev/node-crawler/pkg/netaddr"
	"github.com/nspcc-dev/node-crawler/pkg/wire"
	"go.uber.org/zap"
)

// peerUpdateLoop is the engine's gossip/connect/disconnect round. It sleeps
// for PeerUpdateInterval, broadcasts a PeerRequest to every live peer,
// schedules disconnects, then schedules dials for the fan-out sampled by
// the crawl policy, filtered against the disconnect set (property 3:
// policy disjointness).
func (e *Engine) peerUpdateLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.Policy.PeerUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.runPeerUpdateRound()
		}
	}
}

func (e *Engine) runPeerUpdateRound() {
	e.broadcastPeerRequest()

	connected, connecting := e.liveAddrSets()
	gossiped := e.gossipedAddrSet()

	disconnectSet := e.graph.AddrsToDisconnect(e.cfg.Policy, connected, gossiped)
	for _, d := range disconnectSet {
		e.scheduleDisconnect(d)
	}

	excluded := make(map[string]bool, len(connected)+len(connecting)+len(disconnectSet))
	for k := range connected {
		excluded[k] = true
	}
	for k := range connecting {
		excluded[k] = true
	}
	for _, d := range disconnectSet {
		excluded[d.String()] = true
	}

	connectSet := e.graph.AddrsToConnect(e.cfg.Policy, excluded)
	for _, c := range connectSet {
		e.scheduleDial(c)
	}
}

func (e *Engine) broadcastPeerRequest() {
	e.mu.Lock()
	targets := make([]netaddr.Addr, 0, len(e.conns))
	for _, conn := range e.conns {
		targets = append(targets, conn.id.ConnectedAddr)
	}
	e.mu.Unlock()

	for _, addr := range targets {
		e.sendBestEffort(addr, &wire.PeerRequest{})
	}
}

func (e *Engine) liveAddrSets() (connected, connecting map[string]bool) {
	e.mu.Lock()
	connected = make(map[string]bool, len(e.conns))
	for _, conn := range e.conns {
		connected[conn.id.ListeningAddr.String()] = true
	}
	connecting = make(map[string]bool, len(e.connecting))
	for k := range e.connecting {
		connecting[k] = true
	}
	e.mu.Unlock()
	return connected, connecting
}

func (e *Engine) gossipedAddrSet() map[string]bool {
	// A peer counts as "gossiped" once it is in the graph with a known
	// state, i.e. once it has sent us at least one Ping; that is the
	// metadata-collected bar the policy uses.
	gossiped := make(map[string]bool)
	for _, n := range e.graph.Nodes() {
		if n.HasState {
			gossiped[n.ListeningAddr.String()] = true
		}
	}
	return gossiped
}

func (e *Engine) scheduleDisconnect(addr netaddr.Addr) {
	e.mu.Lock()
	var target *connection
	for _, conn := range e.conns {
		if conn.id.ListeningAddr.Equal(addr) {
			target = conn
			break
		}
	}
	e.mu.Unlock()
	if target == nil {
		return
	}
	go func() {
		e.sendBestEffort(target.id.ConnectedAddr, &wire.Disconnect{Reason: "crawl policy: metadata collected"})
		// Give the writer a moment to flush the Disconnect and the peer a
		// chance to close first; force the close if neither happens.
		select {
		case <-target.closed:
		case <-time.After(time.Second):
		}
		target.conn.Close()
	}()
}

// scheduleDial spawns at most one dial attempt per listening address at a
// time, bounded overall by dialSlots (NUM_CONCURRENT_CONNECTION_ATTEMPTS,
// property 6: bounded fan-out). It is a no-op if every dial slot is already
// taken or the address is already being dialed. Both
// dialSlots and the connecting entry are released as soon as e.dial
// returns, i.e. once the connect+handshake attempt concludes — dial hands
// a successful connection off to its own goroutine for the reader/writer
// lifetime, so this bounds concurrent in-flight attempts, not concurrent
// live connections (that bound is MAX_CONNECTIONS, enforced separately by
// connSlots for the connection's whole lifetime).
func (e *Engine) scheduleDial(addr netaddr.Addr) {
	e.mu.Lock()
	if e.connecting[addr.String()] {
		e.mu.Unlock()
		return
	}
	e.connecting[addr.String()] = true
	e.mu.Unlock()

	select {
	case e.dialSlots <- struct{}{}:
	default:
		e.mu.Lock()
		delete(e.connecting, addr.String())
		e.mu.Unlock()
		return
	}

	go func() {
		defer func() {
			<-e.dialSlots
			e.mu.Lock()
			delete(e.connecting, addr.String())
			e.mu.Unlock()
		}()
		e.dial(context.Background(), addr)
	}()
}

// snapshotLoop is the engine's metric/persistence round. It sleeps for
// SnapshotInterval, clones the graph's nodes and connections, derives
// metrics off the I/O path, and persists or logs a summary.
func (e *Engine) snapshotLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.Policy.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.runSnapshotRound()
		}
	}
}

func (e *Engine) runSnapshotRound() {
	connected, _ := e.liveAddrSets()
	e.graph.EvictStale(e.cfg.Policy.NodeStaleness, e.cfg.Policy.EdgeStaleness, connected)

	nodes := e.graph.Nodes()
	conns := e.graph.Connections()
	m := metrics.Compute(nodes, conns)

	e.mu.Lock()
	connectedCount := len(e.conns)
	e.mu.Unlock()

	if e.gauges != nil {
		e.gauges.Update(m, connectedCount)
	}

	e.log.Info("known-network summary",
		zap.Int("nodes", m.NodeCount),
		zap.Int("edges", m.EdgeCount),
		zap.Int("connected_peers", connectedCount),
		zap.Float64("density", m.Density),
		zap.Int("connected_components", m.ConnectedComponents),
	)

	if e.sink == nil {
		return
	}
	if err := e.sink.WriteSnapshot(nodes, conns, m); err != nil {
		e.log.Warn("snapshot persistence failed", zap.Error(err))
	}
}
