// Package crawler ties the frame codec, handshake, peer registry,
// known-network graph and crawl policy together into the engine that
// actually runs the crawl: accepting and dialing connections, running the
// handshake, dispatching inbound messages to handlers, and driving the
// periodic control loops. One accept loop, one reader/writer goroutine
// pair per connection, and a handful of independent background loops, all
// cancelled by a shared context.
package crawler

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/nspcc-dev/node-crawler/pkg/knownnetwork"
	"github.com/nspcc-dev/node-crawler/pkg/metrics"
	"github.com/nspcc-dev/node-crawler/pkg/netaddr"
	"github.com/nspcc-dev/node-crawler/pkg/peer"
	"github.com/nspcc-dev/node-crawler/pkg/storage"
	"github.com/nspcc-dev/node-crawler/pkg/wire"
	"go.uber.org/zap"
)

// Config carries everything the engine needs beyond the process-wide YAML
// config: protocol-level identity and the crawl policy thresholds.
type Config struct {
	ListenAddr         netaddr.Addr
	Version            uint32
	MaxForkDepth       uint32
	Genesis            wire.BlockHeader
	Policy             knownnetwork.Policy
	MaxConnections     int
	MaxConcurrentDials int
	SharedPeerCount    int
	HandshakeTimeout   time.Duration
	MaxFrameBody       uint32
}

// connection is the engine's bookkeeping for one live peer: its identity,
// the socket, and a channel the writer goroutine drains.
type connection struct {
	id     peer.Identity
	conn   net.Conn
	outCh  chan wire.Message
	closed chan struct{}
}

// Engine is the crawler. One Engine instance corresponds to one crawl
// command invocation.
type Engine struct {
	cfg Config
	log *zap.Logger

	registry *peer.Registry
	graph    *knownnetwork.Graph
	sink     storage.Sink
	gauges   *metrics.Gauges

	pongLocators wire.BlockLocators

	mu         sync.Mutex
	conns      map[string]*connection // keyed by connected addr
	connecting map[string]bool        // keyed by listening addr
	dialSlots  chan struct{}
	connSlots  chan struct{}
}

// New builds an Engine ready to Run.
func New(cfg Config, log *zap.Logger, graph *knownnetwork.Graph, sink storage.Sink, gauges *metrics.Gauges) *Engine {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 200
	}
	if cfg.MaxConcurrentDials <= 0 {
		cfg.MaxConcurrentDials = 16
	}
	if cfg.Policy.PeerUpdateInterval <= 0 {
		cfg.Policy.PeerUpdateInterval = 30 * time.Second
	}
	if cfg.Policy.SnapshotInterval <= 0 {
		cfg.Policy.SnapshotInterval = time.Minute
	}
	return &Engine{
		cfg:      cfg,
		log:      log,
		registry: peer.New(),
		graph:    graph,
		sink:     sink,
		gauges:   gauges,
		pongLocators: wire.BlockLocators{Locators: []wire.Locator{
			{Height: cfg.Genesis.Height, Hash: cfg.Genesis.Hash},
		}},
		conns:      make(map[string]*connection),
		connecting: make(map[string]bool),
		dialSlots:  make(chan struct{}, cfg.MaxConcurrentDials),
		connSlots:  make(chan struct{}, cfg.MaxConnections),
	}
}

// Run starts the accept loop and the control loops, blocking until ctx is
// cancelled. In-flight per-connection goroutines are allowed to drain their
// current operation; Run returns once every background loop has stopped.
func (e *Engine) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", e.cfg.ListenAddr.String())
	if err != nil {
		return fmt.Errorf("crawler: listen: %w", err)
	}
	e.log.Info("crawler listening", zap.Stringer("addr", e.cfg.ListenAddr))

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); e.acceptLoop(ctx, ln) }()
	go func() { defer wg.Done(); e.peerUpdateLoop(ctx) }()
	go func() { defer wg.Done(); e.snapshotLoop(ctx) }()

	<-ctx.Done()
	ln.Close()
	wg.Wait()
	return nil
}

func (e *Engine) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				e.log.Warn("accept failed", zap.Error(err))
				continue
			}
		}
		select {
		case e.connSlots <- struct{}{}:
			go e.handleInbound(ctx, conn)
		default:
			e.log.Debug("rejecting connection, MAX_CONNECTIONS reached")
			conn.Close()
		}
	}
}

func (e *Engine) handleInbound(ctx context.Context, c net.Conn) {
	defer func() { <-e.connSlots }()
	defer c.Close()

	id, err := e.handshakeInbound(ctx, c)
	if err != nil {
		e.log.Debug("inbound handshake failed", zap.Error(err), zap.String("remote", c.RemoteAddr().String()))
		return
	}
	e.serve(ctx, c, id)
}

// dial connects and handshakes with addr, then hands the live connection
// off to a dedicated goroutine for its reader/writer lifetime. dial itself
// returns as soon as the handshake concludes (success or failure): the
// caller (scheduleDial) holds this attempt's dialSlots/connecting entry
// only across dial's return, so NUM_CONCURRENT_CONNECTION_ATTEMPTS bounds
// in-flight connect+handshake attempts, not the long-lived connections
// they produce. MAX_CONNECTIONS (connSlots) is the one that must span the
// whole connection lifetime, so it is released from the spawned goroutine
// instead, alongside the socket close, mirroring how handleInbound already
// ties its connSlots release to its own per-connection goroutine.
func (e *Engine) dial(ctx context.Context, addr netaddr.Addr) {
	select {
	case e.connSlots <- struct{}{}:
	default:
		return
	}

	start := time.Now()
	d := net.Dialer{Timeout: e.cfg.HandshakeTimeout}
	c, err := d.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		<-e.connSlots
		e.graph.ConnectedToNode(addr, start, false)
		if e.gauges != nil {
			e.gauges.DialFailures.Inc()
		}
		e.log.Debug("dial failed", zap.Stringer("addr", addr), zap.Error(err))
		return
	}

	id, err := e.handshakeOutbound(ctx, c, addr)
	if err != nil {
		c.Close()
		<-e.connSlots
		e.graph.ConnectedToNode(addr, start, false)
		if e.gauges != nil {
			e.gauges.DialFailures.Inc()
		}
		e.log.Debug("outbound handshake failed", zap.Stringer("addr", addr), zap.Error(err))
		return
	}
	e.graph.ConnectedToNode(addr, start, true)
	if e.gauges != nil {
		e.gauges.DialSuccesses.Inc()
	}

	go func() {
		defer func() {
			<-e.connSlots
			c.Close()
		}()
		// serve registers the connection before queuing this initial
		// PeerRequest, so the gossip round-trip that follows a successful
		// dial actually reaches the writer goroutine instead of finding
		// no registered connection yet.
		e.serve(ctx, c, id, &wire.PeerRequest{})
	}()
}

func randomNonce() uint64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}
