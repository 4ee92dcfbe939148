package crawler

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/nspcc-dev/node-crawler/pkg/netaddr"
	"github.com/nspcc-dev/node-crawler/pkg/peer"
	"github.com/nspcc-dev/node-crawler/pkg/wire"
)

// Handshake failure kinds, local to the connection that raised them — none
// of these ever propagate past the connection goroutine that owns them.
var (
	ErrAlreadyConnected = errors.New("crawler: already connected")
	ErrNotConnected     = errors.New("crawler: peer sent disconnect during handshake")
	ErrInvalidData      = errors.New("crawler: invalid handshake message")
	ErrWrongGenesis     = errors.New("crawler: genesis header mismatch")
)

func (e *Engine) connectedAddrOf(c net.Conn) (netaddr.Addr, error) {
	tcp, ok := c.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return netaddr.Addr{}, errors.New("crawler: non-TCP remote address")
	}
	return netaddr.FromTCPAddr(tcp)
}

// handshakeInbound runs the handshake on a freshly accepted socket.
func (e *Engine) handshakeInbound(ctx context.Context, c net.Conn) (peer.Identity, error) {
	connected, err := e.connectedAddrOf(c)
	if err != nil {
		return peer.Identity{}, err
	}
	return e.handshake(ctx, c, connected)
}

// handshakeOutbound runs the handshake on a socket we just dialed; dialed
// is the listening address we targeted, which seeds the duplicate check
// before the peer has told us anything.
func (e *Engine) handshakeOutbound(ctx context.Context, c net.Conn, dialed netaddr.Addr) (peer.Identity, error) {
	connected, err := e.connectedAddrOf(c)
	if err != nil {
		return peer.Identity{}, err
	}
	return e.handshake(ctx, c, connected, dialed)
}

func (e *Engine) handshake(ctx context.Context, c net.Conn, connected netaddr.Addr, preknownListening ...netaddr.Addr) (peer.Identity, error) {
	deadline := time.Now().Add(e.cfg.HandshakeTimeout)
	_ = c.SetDeadline(deadline)
	defer c.SetDeadline(time.Time{})

	// Step 1: pre-handshake duplicate check on the connected address.
	if e.registry.HasConnected(connected) {
		return peer.Identity{}, ErrAlreadyConnected
	}
	if len(preknownListening) > 0 && e.registry.HasListening(preknownListening[0]) {
		return peer.Identity{}, ErrAlreadyConnected
	}

	nonce := randomNonce()

	// Step 2: send our challenge-request (pipelined: write before read).
	ourReq := &wire.ChallengeRequest{
		Version:       e.cfg.Version,
		MaxForkDepth:  e.cfg.MaxForkDepth,
		NodeType:      wire.NodeTypeClient,
		State:         wire.StateReady,
		ListeningPort: e.cfg.ListenAddr.Port,
		Nonce:         nonce,
	}
	if err := wire.WriteFrame(c, ourReq); err != nil {
		return peer.Identity{}, err
	}

	// Step 3: receive the peer's challenge-request.
	frame, err := wire.ReadFrame(c, e.cfg.MaxFrameBody)
	if err != nil {
		return peer.Identity{}, err
	}
	if frame.Kind == wire.KindDisconnect {
		return peer.Identity{}, ErrNotConnected
	}
	if frame.Kind != wire.KindChallengeRequest || !frame.Handled {
		return peer.Identity{}, ErrInvalidData
	}
	msg, err := wire.Decode(frame.Kind, frame.Body)
	if err != nil {
		return peer.Identity{}, ErrInvalidData
	}
	peerReq, ok := msg.(*wire.ChallengeRequest)
	if !ok {
		return peer.Identity{}, ErrInvalidData
	}

	peerListening, err := netaddr.New(connected.IP, peerReq.ListeningPort)
	if err != nil {
		return peer.Identity{}, ErrInvalidData
	}

	// Step 4: second duplicate check, now on the advertised listening address.
	if e.registry.HasListening(peerListening) {
		return peer.Identity{}, ErrAlreadyConnected
	}

	// Step 5: send our challenge-response carrying the local genesis header.
	if err := wire.WriteFrame(c, &wire.ChallengeResponse{Genesis: e.cfg.Genesis}); err != nil {
		return peer.Identity{}, err
	}

	// Step 6: receive the peer's challenge-response and verify the genesis.
	frame, err = wire.ReadFrame(c, e.cfg.MaxFrameBody)
	if err != nil {
		return peer.Identity{}, err
	}
	if frame.Kind != wire.KindChallengeResponse || !frame.Handled {
		return peer.Identity{}, ErrInvalidData
	}
	msg, err = wire.Decode(frame.Kind, frame.Body)
	if err != nil {
		return peer.Identity{}, ErrInvalidData
	}
	peerResp, ok := msg.(*wire.ChallengeResponse)
	if !ok {
		return peer.Identity{}, ErrInvalidData
	}
	if !peerResp.Genesis.Equal(e.cfg.Genesis) {
		return peer.Identity{}, ErrWrongGenesis
	}

	id := peer.Identity{
		ListeningAddr:    peerListening,
		ConnectedAddr:    connected,
		Nonce:            peerReq.Nonce,
		NodeType:         peerReq.NodeType,
		Version:          peerReq.Version,
		CumulativeWeight: peerReq.CumulativeWeight,
	}

	// Step 7: register under a single critical section, re-checking for races.
	if err := e.registry.Register(id); err != nil {
		return peer.Identity{}, err
	}
	return id, nil
}
