// Package knownnetwork implements the crawler's model of the overlay it has
// observed: a graph of KnownNode vertices and KnownConnection edges, plus
// the crawl policy that decides which addresses to dial next and which
// connections to tear down. Per-address tries/failures bookkeeping drives
// the re-probe back-off and staleness eviction.
package knownnetwork

import (
	"math/rand"
	"sync"
	"time"

	"github.com/nspcc-dev/node-crawler/pkg/netaddr"
	"github.com/nspcc-dev/node-crawler/pkg/wire"
)

// KnownNode is a vertex of the graph: everything the crawler has learned
// about a single listening address, whether reached directly or only
// rumored about by a third party.
type KnownNode struct {
	ListeningAddr netaddr.Addr

	FirstSeen time.Time
	LastSeen  time.Time

	// HasState is false until the crawler has itself received at least
	// one Ping from this node; State, NodeType, Version and Height are
	// meaningless until then.
	HasState bool
	State    wire.State
	NodeType wire.NodeType
	Version  uint32
	Height   uint32

	LastAttempt   time.Time
	LastSuccess   bool
	Tries         uint32
	Failures      uint32
	HandshakeTook time.Duration
}

// KnownConnection is a directed edge learned indirectly: when Source
// answers a PeerRequest with a list that includes Target, the edge
// Source->Target is asserted.
type KnownConnection struct {
	Source   netaddr.Addr
	Target   netaddr.Addr
	LastSeen time.Time
}

func edgeKey(source, target netaddr.Addr) string {
	return source.String() + ">" + target.String()
}

// Graph holds the known-network state. Nodes and connections are guarded by
// independent locks. ReceivedPeers, which inserts into both, holds nodesMu
// and then connsMu until it is done, so its nodes and edges appear
// together; EvictStale prunes nodes and edges in two separate steps.
type Graph struct {
	self netaddr.Addr

	nodesMu sync.RWMutex
	nodes   map[string]*KnownNode

	connsMu sync.RWMutex
	conns   map[string]*KnownConnection
}

// New returns an empty graph that will never admit self as a node or edge
// endpoint (the crawler is never stored as a node of its own overlay view).
func New(self netaddr.Addr) *Graph {
	return &Graph{
		self:  self,
		nodes: make(map[string]*KnownNode),
		conns: make(map[string]*KnownConnection),
	}
}

func (g *Graph) upsertNode(addr netaddr.Addr) *KnownNode {
	key := addr.String()
	n, ok := g.nodes[key]
	if !ok {
		n = &KnownNode{ListeningAddr: addr, FirstSeen: time.Now()}
		g.nodes[key] = n
	}
	return n
}

// ReceivedPing upserts a node and records the metadata self-reported in a
// Ping: node type, protocol version, reported chain height and liveness
// state.
func (g *Graph) ReceivedPing(addr netaddr.Addr, nodeType wire.NodeType, version uint32, state wire.State, height uint32) {
	if addr.Equal(g.self) {
		return
	}
	g.nodesMu.Lock()
	defer g.nodesMu.Unlock()

	n := g.upsertNode(addr)
	n.LastSeen = time.Now()
	n.HasState = true
	n.State = state
	n.NodeType = nodeType
	n.Version = version
	n.Height = height
}

// ReceivedPeers ingests a gossiped peer list: for every reported peer q, the
// edge source->q is asserted (refreshing last_seen on an existing edge) and
// a stateless KnownNode entry for q is created if one does not already
// exist. The crawler's own address is never admitted as an edge endpoint or
// node, even if rumored.
func (g *Graph) ReceivedPeers(source netaddr.Addr, peers []netaddr.Addr) {
	now := time.Now()

	g.nodesMu.Lock()
	defer g.nodesMu.Unlock()
	for _, p := range peers {
		if p.Equal(g.self) {
			continue
		}
		g.upsertNode(p)
	}

	g.connsMu.Lock()
	defer g.connsMu.Unlock()
	for _, p := range peers {
		if p.Equal(g.self) || source.Equal(g.self) {
			continue
		}
		key := edgeKey(source, p)
		e, ok := g.conns[key]
		if !ok {
			e = &KnownConnection{Source: source, Target: p}
			g.conns[key] = e
		}
		e.LastSeen = now
	}
}

// ConnectedToNode records the outcome of an outbound connection attempt
// (dial plus handshake) against the target address, updating the
// tries/failures bookkeeping used by the re-probe back-off. Inbound
// connections are not recorded here.
func (g *Graph) ConnectedToNode(addr netaddr.Addr, startedAt time.Time, success bool) {
	g.nodesMu.Lock()
	defer g.nodesMu.Unlock()

	n := g.upsertNode(addr)
	n.LastAttempt = startedAt
	n.Tries++
	n.LastSuccess = success
	if success {
		n.HandshakeTook = time.Since(startedAt)
	} else {
		n.Failures++
	}
}

// ShouldBeConnectedTo filters an address for on-the-fly dial decisions made
// while handling a PeerResponse: known, not stale-evicted, and not
// currently failing past the re-probe back-off.
func (g *Graph) ShouldBeConnectedTo(addr netaddr.Addr, policy Policy) bool {
	if addr.Equal(g.self) {
		return false
	}
	g.nodesMu.RLock()
	n, ok := g.nodes[addr.String()]
	g.nodesMu.RUnlock()
	if !ok {
		return true
	}
	return policy.eligibleForConnect(n, time.Now())
}

// Nodes returns a cloned snapshot of every known node, safe to range over
// without holding the graph's lock.
func (g *Graph) Nodes() []KnownNode {
	g.nodesMu.RLock()
	defer g.nodesMu.RUnlock()

	out := make([]KnownNode, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, *n)
	}
	return out
}

// Connections returns a cloned snapshot of every known edge.
func (g *Graph) Connections() []KnownConnection {
	g.connsMu.RLock()
	defer g.connsMu.RUnlock()

	out := make([]KnownConnection, 0, len(g.conns))
	for _, c := range g.conns {
		out = append(out, *c)
	}
	return out
}

// EvictStale drops nodes whose last activity exceeds nodeStaleness and
// edges whose last activity exceeds edgeStaleness. A node with a live
// connection is never dropped, no matter how long it has been silent:
// connected is the caller's current set of connected listening addresses,
// and staleness only applies once the connection is gone. It is called
// from the snapshot/metric loop, never from the hot message-handling path.
func (g *Graph) EvictStale(nodeStaleness, edgeStaleness time.Duration, connected map[string]bool) {
	now := time.Now()

	g.nodesMu.Lock()
	for key, n := range g.nodes {
		if connected[key] {
			continue
		}
		if now.Sub(n.LastSeen) > nodeStaleness && now.Sub(n.FirstSeen) > nodeStaleness {
			delete(g.nodes, key)
		}
	}
	g.nodesMu.Unlock()

	g.connsMu.Lock()
	for key, c := range g.conns {
		if now.Sub(c.LastSeen) > edgeStaleness {
			delete(g.conns, key)
		}
	}
	g.connsMu.Unlock()
}

// SampleHandshaked draws a uniformly random sample of up to n listening
// addresses from nodes the crawler has itself handshaked (HasState),
// used to answer PeerRequest without ever leaking stateless rumor-only
// addresses.
func (g *Graph) SampleHandshaked(n int) []netaddr.Addr {
	g.nodesMu.RLock()
	candidates := make([]netaddr.Addr, 0, len(g.nodes))
	for _, node := range g.nodes {
		if node.HasState {
			candidates = append(candidates, node.ListeningAddr)
		}
	}
	g.nodesMu.RUnlock()

	return sampleUniform(candidates, n)
}

func sampleUniform(pool []netaddr.Addr, n int) []netaddr.Addr {
	if n >= len(pool) {
		out := make([]netaddr.Addr, len(pool))
		copy(out, pool)
		return out
	}
	shuffled := make([]netaddr.Addr, len(pool))
	copy(shuffled, pool)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	return shuffled[:n]
}
