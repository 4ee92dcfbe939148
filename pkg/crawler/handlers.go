package crawler

import (
	"context"
	"net"

	"github.com/nspcc-dev/node-crawler/pkg/netaddr"
	"github.com/nspcc-dev/node-crawler/pkg/peer"
	"github.com/nspcc-dev/node-crawler/pkg/wire"
	"go.uber.org/zap"
)

// serve runs a handshaken connection's reader and writer goroutines until
// either side closes or ctx is cancelled, then performs disconnect cleanup.
// Any initial messages (e.g. the follow-up PeerRequest a successful dial
// sends immediately) are queued only once the connection is registered in
// e.conns, so sendBestEffort-style delivery never races the registration.
func (e *Engine) serve(ctx context.Context, c net.Conn, id peer.Identity, initial ...wire.Message) {
	conn := &connection{id: id, conn: c, outCh: make(chan wire.Message, 16), closed: make(chan struct{})}

	e.mu.Lock()
	e.conns[id.ConnectedAddr.String()] = conn
	e.mu.Unlock()

	for _, m := range initial {
		select {
		case conn.outCh <- m:
		default:
			e.log.Warn("dropping initial outbound message, writer queue full", zap.Stringer("peer", conn.id.ListeningAddr))
		}
	}

	defer func() {
		e.mu.Lock()
		delete(e.conns, id.ConnectedAddr.String())
		e.mu.Unlock()
		e.registry.Disconnect(id.ConnectedAddr)
		close(conn.closed)
	}()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go e.writerLoop(connCtx, conn)
	e.readerLoop(connCtx, conn)
}

func (e *Engine) writerLoop(ctx context.Context, conn *connection) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-conn.outCh:
			if !ok {
				return
			}
			if err := wire.WriteFrame(conn.conn, m); err != nil {
				e.log.Debug("write failed", zap.Stringer("peer", conn.id.ListeningAddr), zap.Error(err))
				return
			}
		}
	}
}

func (e *Engine) readerLoop(ctx context.Context, conn *connection) {
	for {
		frame, err := wire.ReadFrame(conn.conn, e.cfg.MaxFrameBody)
		if err != nil {
			e.log.Debug("read failed", zap.Stringer("peer", conn.id.ListeningAddr), zap.Error(err))
			return
		}
		if !frame.Handled {
			continue
		}
		msg, err := wire.Decode(frame.Kind, frame.Body)
		if err != nil {
			e.log.Error("deserialization failed for a wanted message", zap.Stringer("peer", conn.id.ListeningAddr), zap.Error(err))
			return
		}
		if !e.dispatch(conn, msg) {
			return
		}
	}
}

// dispatch processes one inbound message. It returns false when the
// connection must be torn down as a result (Disconnect).
func (e *Engine) dispatch(conn *connection, msg wire.Message) bool {
	switch m := msg.(type) {
	case *wire.Disconnect:
		e.log.Info("peer disconnected", zap.Stringer("peer", conn.id.ListeningAddr), zap.String("reason", m.Reason))
		return false
	case *wire.PeerRequest:
		e.handlePeerRequest(conn)
	case *wire.PeerResponse:
		e.handlePeerResponse(conn, m)
	case *wire.Ping:
		e.handlePing(conn, m)
	default:
		// Any other kind reaching here indicates a codec/handler mismatch:
		// the accepted set and this switch must stay in sync.
		e.log.Warn("unreachable handler branch", zap.String("kind", msg.Kind().String()))
	}
	return true
}

func (e *Engine) handlePeerRequest(conn *connection) {
	sample := e.graph.SampleHandshaked(e.cfg.SharedPeerCount)
	e.sendBestEffort(conn.id.ConnectedAddr, &wire.PeerResponse{Addrs: sample})
}

func (e *Engine) handlePeerResponse(conn *connection, m *wire.PeerResponse) {
	filtered := make([]netaddr.Addr, 0, len(m.Addrs))
	for _, a := range m.Addrs {
		if !a.Equal(e.cfg.ListenAddr) {
			filtered = append(filtered, a)
		}
	}
	e.graph.ReceivedPeers(conn.id.ListeningAddr, filtered)

	for _, a := range filtered {
		if e.registry.HasListening(a) {
			continue
		}
		if !e.graph.ShouldBeConnectedTo(a, e.cfg.Policy) {
			continue
		}
		e.scheduleDial(a)
	}
}

func (e *Engine) handlePing(conn *connection, m *wire.Ping) {
	height := m.Header.Height()
	e.graph.ReceivedPing(conn.id.ListeningAddr, m.NodeType, m.Version, m.State, height)
	e.sendBestEffort(conn.id.ConnectedAddr, &wire.Pong{Locators: e.pongLocators})
}

// sendBestEffort enqueues a message for a connection's writer goroutine,
// logging and dropping it if the peer's outbound queue is full or the
// connection is gone rather than failing the caller.
func (e *Engine) sendBestEffort(connected netaddr.Addr, m wire.Message) {
	e.mu.Lock()
	conn, ok := e.conns[connected.String()]
	e.mu.Unlock()
	if !ok {
		return
	}
	select {
	case conn.outCh <- m:
	default:
		e.log.Warn("dropping outbound message, writer queue full", zap.Stringer("peer", conn.id.ListeningAddr))
	}
}
