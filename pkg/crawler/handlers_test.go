package crawler

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/nspcc-dev/node-crawler/pkg/knownnetwork"
	"github.com/nspcc-dev/node-crawler/pkg/netaddr"
	"github.com/nspcc-dev/node-crawler/pkg/peer"
	"github.com/nspcc-dev/node-crawler/pkg/wire"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testEngineWithConn(t *testing.T, peerListening string) (*Engine, *connection) {
	t.Helper()
	cfg := Config{
		ListenAddr:       netaddr.MustParse("127.0.0.1:4132"),
		Version:          1,
		Genesis:          wire.BlockHeader{Height: 0, Hash: [32]byte{1}},
		Policy:           knownnetwork.Policy{DialFanOut: 1, ReprobeInterval: time.Minute},
		SharedPeerCount:  16,
		HandshakeTimeout: time.Second,
	}
	e := New(cfg, zap.NewNop(), knownnetwork.New(cfg.ListenAddr), nil, nil)

	id := peer.Identity{
		ListeningAddr: netaddr.MustParse(peerListening),
		ConnectedAddr: netaddr.MustParse("127.0.0.1:51000"),
	}
	require.NoError(t, e.registry.Register(id))

	conn := &connection{id: id, outCh: make(chan wire.Message, 16)}
	e.conns[id.ConnectedAddr.String()] = conn
	return e, conn
}

func TestHandlePeerRequestOnlyReturnsHandshaked(t *testing.T) {
	e, conn := testEngineWithConn(t, "127.0.0.1:4200")
	e.graph.ReceivedPing(netaddr.MustParse("127.0.0.1:4300"), wire.NodeTypeClient, 1, wire.StateReady, 1)
	e.graph.ReceivedPeers(netaddr.MustParse("127.0.0.1:4400"), []netaddr.Addr{netaddr.MustParse("127.0.0.1:4500")})

	e.handlePeerRequest(conn)

	select {
	case m := <-conn.outCh:
		resp, ok := m.(*wire.PeerResponse)
		require.True(t, ok)
		require.Len(t, resp.Addrs, 1)
		require.True(t, resp.Addrs[0].Equal(netaddr.MustParse("127.0.0.1:4300")))
	default:
		t.Fatal("expected a PeerResponse to be queued")
	}
}

func TestHandlePeerResponseFiltersOwnAddressAndMerges(t *testing.T) {
	e, conn := testEngineWithConn(t, "127.0.0.1:4200")

	resp := &wire.PeerResponse{Addrs: []netaddr.Addr{
		netaddr.MustParse("127.0.0.1:4201"),
		netaddr.MustParse("127.0.0.1:4202"),
		e.cfg.ListenAddr,
	}}
	e.handlePeerResponse(conn, resp)

	nodes := e.graph.Nodes()
	require.Len(t, nodes, 2)
	for _, n := range nodes {
		require.False(t, n.ListeningAddr.Equal(e.cfg.ListenAddr))
	}
}

func TestHandlePingUpdatesGraphAndRepliesPong(t *testing.T) {
	e, conn := testEngineWithConn(t, "127.0.0.1:4200")

	header := wire.RawHeaderFrom(wire.BlockHeader{Height: 42})
	e.handlePing(conn, &wire.Ping{NodeType: wire.NodeTypeMiner, Version: 2, State: wire.StateMining, Header: header})

	nodes := e.graph.Nodes()
	require.Len(t, nodes, 1)
	require.Equal(t, uint32(42), nodes[0].Height)
	require.Equal(t, wire.StateMining, nodes[0].State)

	select {
	case m := <-conn.outCh:
		pong, ok := m.(*wire.Pong)
		require.True(t, ok)
		require.Equal(t, e.pongLocators, pong.Locators)
	default:
		t.Fatal("expected a Pong to be queued")
	}
}

// TestServeDisconnectCleanup covers the disconnect-cleanup scenario: once
// the peer side closes, both registry maps drop the entry and the engine's
// connection table forgets the socket, while the graph keeps the node
// until the staleness threshold elapses.
func TestServeDisconnectCleanup(t *testing.T) {
	cfg := Config{
		ListenAddr:       netaddr.MustParse("127.0.0.1:4132"),
		Version:          1,
		Genesis:          wire.BlockHeader{Height: 0, Hash: [32]byte{1}},
		Policy:           knownnetwork.Policy{DialFanOut: 1, ReprobeInterval: time.Minute},
		SharedPeerCount:  16,
		HandshakeTimeout: time.Second,
	}
	e := New(cfg, zap.NewNop(), knownnetwork.New(cfg.ListenAddr), nil, nil)

	id := peer.Identity{
		ListeningAddr: netaddr.MustParse("127.0.0.1:4200"),
		ConnectedAddr: netaddr.MustParse("127.0.0.1:51000"),
	}
	require.NoError(t, e.registry.Register(id))
	e.graph.ReceivedPing(id.ListeningAddr, wire.NodeTypeClient, 1, wire.StateReady, 1)

	ours, theirs := net.Pipe()
	done := make(chan struct{})
	go func() {
		e.serve(context.Background(), ours, id)
		close(done)
	}()

	require.NoError(t, theirs.Close())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after the peer closed")
	}

	require.Equal(t, 0, e.registry.Len())
	require.False(t, e.registry.HasListening(id.ListeningAddr))
	e.mu.Lock()
	require.Empty(t, e.conns)
	e.mu.Unlock()
	require.Len(t, e.graph.Nodes(), 1)
}
