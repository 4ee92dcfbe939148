package crawler

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/nspcc-dev/node-crawler/pkg/knownnetwork"
	"github.com/nspcc-dev/node-crawler/pkg/netaddr"
	"github.com/nspcc-dev/node-crawler/pkg/wire"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testEngine(t *testing.T, listenAddr string) *Engine {
	t.Helper()
	cfg := Config{
		ListenAddr:         netaddr.MustParse(listenAddr),
		Version:            1,
		MaxForkDepth:       100,
		Genesis:            wire.BlockHeader{Height: 0, Hash: [32]byte{1}},
		Policy:             knownnetwork.Policy{DialFanOut: 1, ReprobeInterval: time.Minute},
		MaxConnections:     10,
		MaxConcurrentDials: 4,
		HandshakeTimeout:   2 * time.Second,
		SharedPeerCount:    16,
	}
	return New(cfg, zap.NewNop(), knownnetwork.New(cfg.ListenAddr), nil, nil)
}

// fakePeer implements just enough of the wire protocol by hand to drive the
// engine's handshakeInbound through every step. It returns an error rather
// than failing a *testing.T, since it always runs on a background goroutine
// racing the real assertions on the main one.
func fakePeer(c net.Conn, listeningPort uint16, version uint32, genesis wire.BlockHeader) error {
	frame, err := wire.ReadFrame(c, 0)
	if err != nil {
		return err
	}
	if frame.Kind != wire.KindChallengeRequest {
		return errors.New("fakePeer: expected ChallengeRequest")
	}

	if err := wire.WriteFrame(c, &wire.ChallengeRequest{
		Version:       version,
		ListeningPort: listeningPort,
		Nonce:         99,
	}); err != nil {
		return err
	}

	frame, err = wire.ReadFrame(c, 0)
	if err != nil {
		return err
	}
	if frame.Kind != wire.KindChallengeResponse {
		return errors.New("fakePeer: expected ChallengeResponse")
	}

	return wire.WriteFrame(c, &wire.ChallengeResponse{Genesis: genesis})
}

func TestHandshakeInboundHappyPath(t *testing.T) {
	e := testEngine(t, "127.0.0.1:4132")
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	clientErr := make(chan error, 1)
	go func() {
		c, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			clientErr <- err
			return
		}
		defer c.Close()
		clientErr <- fakePeer(c, 4200, 1, e.cfg.Genesis)
	}()

	c, err := ln.Accept()
	require.NoError(t, err)
	defer c.Close()

	id, err := e.handshakeInbound(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, uint16(4200), id.ListeningAddr.Port)
	require.True(t, e.registry.HasListening(id.ListeningAddr))
	require.NoError(t, <-clientErr)
}

func TestHandshakeInboundVersionSkewTolerated(t *testing.T) {
	e := testEngine(t, "127.0.0.1:4132")
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	clientErr := make(chan error, 1)
	go func() {
		c, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			clientErr <- err
			return
		}
		defer c.Close()
		clientErr <- fakePeer(c, 4200, e.cfg.Version-1, e.cfg.Genesis)
	}()

	c, err := ln.Accept()
	require.NoError(t, err)
	defer c.Close()

	id, err := e.handshakeInbound(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, e.cfg.Version-1, id.Version)
	require.NoError(t, <-clientErr)
}

func TestHandshakeInboundWrongGenesisRejected(t *testing.T) {
	e := testEngine(t, "127.0.0.1:4132")
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	clientErr := make(chan error, 1)
	go func() {
		c, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			clientErr <- err
			return
		}
		defer c.Close()
		clientErr <- fakePeer(c, 4200, 1, wire.BlockHeader{Height: 0, Hash: [32]byte{0xFF}})
	}()

	c, err := ln.Accept()
	require.NoError(t, err)
	defer c.Close()

	_, err = e.handshakeInbound(context.Background(), c)
	require.ErrorIs(t, err, ErrWrongGenesis)
	<-clientErr
}

func TestHandshakeInboundDuplicateRejected(t *testing.T) {
	e := testEngine(t, "127.0.0.1:4132")
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	firstErr := make(chan error, 1)
	go func() {
		c, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			firstErr <- err
			return
		}
		defer c.Close()
		firstErr <- fakePeer(c, 4200, 1, e.cfg.Genesis)
	}()
	c1, err := ln.Accept()
	require.NoError(t, err)
	defer c1.Close()
	_, err = e.handshakeInbound(context.Background(), c1)
	require.NoError(t, err)
	require.NoError(t, <-firstErr)

	secondErr := make(chan error, 1)
	go func() {
		c, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			secondErr <- err
			return
		}
		defer c.Close()
		// Second peer announces the same listening port, simulating a
		// duplicate from the crawler's point of view.
		frame, err := wire.ReadFrame(c, 0)
		if err != nil || frame.Kind != wire.KindChallengeRequest {
			secondErr <- err
			return
		}
		secondErr <- wire.WriteFrame(c, &wire.ChallengeRequest{Version: 1, ListeningPort: 4200, Nonce: 1})
	}()
	c2, err := ln.Accept()
	require.NoError(t, err)
	defer c2.Close()

	_, err = e.handshakeInbound(context.Background(), c2)
	require.ErrorIs(t, err, ErrAlreadyConnected)
	<-secondErr
}
