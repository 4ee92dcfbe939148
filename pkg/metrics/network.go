// Package metrics derives summary statistics from a known-network snapshot
// and exposes them as Prometheus gauges, optionally served over HTTP.
package metrics

import (
	"github.com/nspcc-dev/node-crawler/pkg/knownnetwork"
	"github.com/prometheus/client_golang/prometheus"
)

// NetworkMetrics is the derived-statistics row the snapshot/metric loop
// computes once per round, entirely outside any lock.
type NetworkMetrics struct {
	NodeCount           int
	EdgeCount           int
	MinDegree           int
	MaxDegree           int
	MeanDegree          float64
	Density             float64
	ConnectedComponents int
}

// Compute derives NetworkMetrics from cloned node/connection snapshots. It
// does no locking of its own and is safe to run on a blocking-task-pool
// equivalent goroutine off the engine's I/O path.
func Compute(nodes []knownnetwork.KnownNode, conns []knownnetwork.KnownConnection) NetworkMetrics {
	m := NetworkMetrics{NodeCount: len(nodes), EdgeCount: len(conns)}
	if m.NodeCount == 0 {
		return m
	}

	degree := make(map[string]int, len(nodes))
	adjacency := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		degree[n.ListeningAddr.String()] = 0
	}
	for _, c := range conns {
		s, t := c.Source.String(), c.Target.String()
		degree[s]++
		degree[t]++
		adjacency[s] = append(adjacency[s], t)
		adjacency[t] = append(adjacency[t], s)
	}

	min, max, sum := -1, 0, 0
	for _, d := range degree {
		if min == -1 || d < min {
			min = d
		}
		if d > max {
			max = d
		}
		sum += d
	}
	if min == -1 {
		min = 0
	}
	m.MinDegree = min
	m.MaxDegree = max
	m.MeanDegree = float64(sum) / float64(m.NodeCount)

	maxEdges := float64(m.NodeCount) * float64(m.NodeCount-1)
	if maxEdges > 0 {
		m.Density = float64(m.EdgeCount) / maxEdges
	}

	m.ConnectedComponents = countComponents(nodes, adjacency)
	return m
}

func countComponents(nodes []knownnetwork.KnownNode, adjacency map[string][]string) int {
	visited := make(map[string]bool, len(nodes))
	components := 0

	for _, n := range nodes {
		key := n.ListeningAddr.String()
		if visited[key] {
			continue
		}
		components++
		stack := []string{key}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[cur] {
				continue
			}
			visited[cur] = true
			stack = append(stack, adjacency[cur]...)
		}
	}
	return components
}

// Gauges is the crawler's Prometheus registry: known-node count, known-edge
// count, connected-peer count and dial outcome counters, updated once per
// snapshot round.
type Gauges struct {
	NodeCount      prometheus.Gauge
	EdgeCount      prometheus.Gauge
	ConnectedPeers prometheus.Gauge
	Density        prometheus.Gauge
	DialSuccesses  prometheus.Counter
	DialFailures   prometheus.Counter
}

// NewGauges registers a fresh set of crawler gauges on reg.
func NewGauges(reg prometheus.Registerer) *Gauges {
	g := &Gauges{
		NodeCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crawler", Name: "known_nodes", Help: "Number of nodes in the known-network graph.",
		}),
		EdgeCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crawler", Name: "known_edges", Help: "Number of edges in the known-network graph.",
		}),
		ConnectedPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crawler", Name: "connected_peers", Help: "Number of currently live connections.",
		}),
		Density: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crawler", Name: "graph_density", Help: "Edge count over max possible edges.",
		}),
		DialSuccesses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crawler", Name: "dial_successes_total", Help: "Outbound dial attempts that completed a handshake.",
		}),
		DialFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crawler", Name: "dial_failures_total", Help: "Outbound dial attempts that failed.",
		}),
	}
	reg.MustRegister(g.NodeCount, g.EdgeCount, g.ConnectedPeers, g.Density, g.DialSuccesses, g.DialFailures)
	return g
}

// Update applies a freshly computed NetworkMetrics row plus the live
// connected-peer count to the registered gauges.
func (g *Gauges) Update(m NetworkMetrics, connectedPeers int) {
	g.NodeCount.Set(float64(m.NodeCount))
	g.EdgeCount.Set(float64(m.EdgeCount))
	g.ConnectedPeers.Set(float64(connectedPeers))
	g.Density.Set(m.Density)
}
