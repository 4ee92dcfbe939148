// Package crawl wires the crawler engine into a small urfave/cli command
// tree: a NewCommands() []*cli.Command entry point, flag groups borrowed
// from cli/options, a graceful SIGINT/SIGTERM shutdown context, and a
// startup banner.
package crawl

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nspcc-dev/node-crawler/cli/options"
	"github.com/nspcc-dev/node-crawler/pkg/config"
	"github.com/nspcc-dev/node-crawler/pkg/crawler"
	"github.com/nspcc-dev/node-crawler/pkg/knownnetwork"
	"github.com/nspcc-dev/node-crawler/pkg/metrics"
	"github.com/nspcc-dev/node-crawler/pkg/netaddr"
	"github.com/nspcc-dev/node-crawler/pkg/storage"
	"github.com/nspcc-dev/node-crawler/pkg/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// protocolVersion and maxForkDepth are the values the crawler advertises in
// its own challenge-request; they do not need to match any particular
// overlay release since the handshake never rejects a peer on version skew.
const (
	protocolVersion = uint32(1)
	maxForkDepth    = uint32(100)
)

// genesis is the crawler's own notion of the overlay's genesis block, used
// only for the handshake's byte-for-byte comparison. A real deployment
// would load this from the chain config it is crawling; a fixed value is
// enough for a crawler that never validates blocks.
var genesis = wire.BlockHeader{Height: 0, Hash: [32]byte{0xCA, 0xFE}}

// banner is printed once at startup.
const banner = `
   ___________ ___ _       _____ ____
  / ____/ __ \/   | |     / / // ____/____
 / /   / /_/ / /| | | /| / / / / __/ / ___/
/ /___/ _, _/ ___ | |/ |/ / / / /___/ /
\____/_/ |_/_/  |_|__/|__/_/_/_____/_/
`

// NewCommands returns the crawler's command tree: "crawl" starts the
// engine, "version" prints a version banner.
func NewCommands() []*cli.Command {
	flags := []cli.Flag{
		options.Addr,
		options.ConfigFile,
		options.RelativePath,
		options.Debug,
		options.ForceTimestampLogs,
		options.LogEncoding,
		options.LogPath,
	}
	flags = append(flags, options.DB...)

	return []*cli.Command{
		{
			Name:      "crawl",
			Usage:     "Join the overlay and crawl its peer topology",
			UsageText: "node-crawler crawl [--addr ip:port] [--config-file file] [--db-driver mysql ...]",
			Action:    runCrawl,
			Flags:     flags,
		},
		{
			Name:   "version",
			Usage:  "Print version information",
			Action: func(ctx *cli.Context) error { fmt.Fprint(ctx.App.Writer, options.VersionString(config.Version)); return nil },
		},
	}
}

func runCrawl(ctx *cli.Context) error {
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.Exit(err, 1)
	}

	log, _, err := options.HandleLoggingParams(ctx, cfg.Logger)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer func() { _ = log.Sync() }()

	listenAddr, err := netaddr.Parse(cfg.ListenAddr)
	if err != nil {
		return cli.Exit(fmt.Errorf("invalid --addr %q: %w", cfg.ListenAddr, err), 1)
	}

	sink, err := openSink(cfg.DB, log)
	if err != nil {
		return cli.Exit(fmt.Errorf("opening snapshot sink: %w", err), 1)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			log.Warn("closing snapshot sink", zap.Error(err))
		}
	}()

	registry := prometheus.NewRegistry()
	gauges := metrics.NewGauges(registry)
	prom := metrics.NewPrometheusService(cfg.Prometheus, registry, log)
	prom.Start()
	defer prom.ShutDown()

	graph := knownnetwork.New(listenAddr)

	policy := knownnetwork.Policy{
		PeerUpdateInterval: cfg.P2P.PeerUpdateInterval,
		SnapshotInterval:   cfg.P2P.SnapshotInterval,
		NodeStaleness:      cfg.P2P.NodeStaleness,
		EdgeStaleness:      cfg.P2P.EdgeStaleness,
		ReprobeInterval:    cfg.P2P.ReprobeInterval,
		DialFanOut:         cfg.P2P.DialFanOut,
		UnresponsiveWindow: cfg.P2P.UnresponsiveWindow,
	}
	if cfg.DB.Driver != "" && cfg.DB.WriteInterval > 0 {
		// The sink's write cadence is the snapshot round's cadence.
		policy.SnapshotInterval = cfg.DB.WriteInterval
	}

	engine := crawler.New(crawler.Config{
		ListenAddr:         listenAddr,
		Version:            protocolVersion,
		MaxForkDepth:       maxForkDepth,
		Genesis:            genesis,
		Policy:             policy,
		MaxConnections:     cfg.P2P.MaxConnections,
		MaxConcurrentDials: cfg.P2P.MaxConcurrentDials,
		SharedPeerCount:    cfg.P2P.SharedPeerCount,
		HandshakeTimeout:   cfg.P2P.HandshakeTimeout,
		MaxFrameBody:       1 << 20,
	}, log, graph, sink, gauges)

	fmt.Fprint(ctx.App.Writer, banner, "\n")
	fmt.Fprintf(ctx.App.Writer, "node-crawler %s listening on %s\n\n", config.Version, listenAddr)
	log.Info("starting crawl",
		zap.Stringer("addr", listenAddr),
		zap.String("version", config.Version),
		zap.Bool("persistence", cfg.DB.Driver != ""),
	)

	runCtx := newGraceContext()
	if err := engine.Run(runCtx); err != nil {
		return cli.Exit(err, 1)
	}
	log.Info("crawl stopped cleanly")
	return nil
}

// openSink returns a NopSink if persistence is disabled, or a connected
// MySQL-backed sink otherwise.
func openSink(cfg config.DB, log *zap.Logger) (storage.Sink, error) {
	if cfg.Driver == "" {
		return storage.NopSink{}, nil
	}
	return storage.Open(cfg, log)
}

// newGraceContext returns a context cancelled on SIGINT/SIGTERM.
func newGraceContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()
	return ctx
}
