package metrics

import (
	"testing"

	"github.com/nspcc-dev/node-crawler/pkg/knownnetwork"
	"github.com/nspcc-dev/node-crawler/pkg/netaddr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestComputeEmptyGraph(t *testing.T) {
	m := Compute(nil, nil)
	require.Equal(t, NetworkMetrics{}, m)
}

func TestComputeTriangle(t *testing.T) {
	a := netaddr.MustParse("127.0.0.1:4200")
	b := netaddr.MustParse("127.0.0.1:4201")
	c := netaddr.MustParse("127.0.0.1:4202")

	nodes := []knownnetwork.KnownNode{{ListeningAddr: a}, {ListeningAddr: b}, {ListeningAddr: c}}
	conns := []knownnetwork.KnownConnection{
		{Source: a, Target: b},
		{Source: b, Target: c},
		{Source: c, Target: a},
	}

	m := Compute(nodes, conns)
	require.Equal(t, 3, m.NodeCount)
	require.Equal(t, 3, m.EdgeCount)
	require.Equal(t, 1, m.ConnectedComponents)
	require.Equal(t, 2, m.MinDegree)
	require.Equal(t, 2, m.MaxDegree)
}

func TestComputeDisconnectedComponents(t *testing.T) {
	a := netaddr.MustParse("127.0.0.1:4200")
	b := netaddr.MustParse("127.0.0.1:4201")
	c := netaddr.MustParse("127.0.0.1:4202")

	nodes := []knownnetwork.KnownNode{{ListeningAddr: a}, {ListeningAddr: b}, {ListeningAddr: c}}
	conns := []knownnetwork.KnownConnection{{Source: a, Target: b}}

	m := Compute(nodes, conns)
	require.Equal(t, 2, m.ConnectedComponents)
}

func TestGaugesUpdate(t *testing.T) {
	reg := prometheus.NewRegistry()
	g := NewGauges(reg)
	g.Update(NetworkMetrics{NodeCount: 5, EdgeCount: 3, Density: 0.5}, 2)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}
