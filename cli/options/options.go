/*
Package options contains a set of common CLI options and helper functions to
use them.
*/
package options

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/nspcc-dev/node-crawler/pkg/config"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// repeatWindow bounds how often an identical log message (message text plus
// level) may repeat before it is dropped, keeping a crawl of hundreds of
// flaky peers from flooding the log with "dial failed"/"dropping outbound
// message" warnings at the same instant.
const repeatWindow = time.Second

// dedupeFilter returns a FilterFunc that admits an entry the first time its
// (level, message) pair is seen within repeatWindow and drops repeats,
// using options.FilteringCore as the middleware.
func dedupeFilter() FilterFunc {
	var mu sync.Mutex
	last := make(map[string]time.Time)
	return func(e zapcore.Entry) bool {
		key := e.Level.String() + ":" + e.Message
		mu.Lock()
		defer mu.Unlock()
		if t, ok := last[key]; ok && e.Time.Sub(t) < repeatWindow {
			return false
		}
		last[key] = e.Time
		return true
	}
}

// Flags shared by the crawl command.
var (
	// Addr is the crawler's own listen address flag.
	Addr = &cli.StringFlag{
		Name:    "addr",
		Aliases: []string{"a"},
		Usage:   "Listen address for the crawler's own overlay socket",
		Value:   config.DefaultListenAddr,
	}
	// ConfigFile points at an optional YAML config file.
	ConfigFile = &cli.StringFlag{
		Name:    "config-file",
		Aliases: []string{"c"},
		Usage:   "Path to a YAML config file to load before flag overrides",
	}
	// RelativePath is the base directory relative paths in the config
	// file (currently just Logger.LogPath) are resolved against.
	RelativePath = &cli.StringFlag{
		Name:  "relative-path",
		Usage: "Path prefix to use for paths stored in the config file",
	}
	// Debug forces debug-level logging regardless of Logger.LogLevel.
	Debug = &cli.BoolFlag{
		Name:    "debug",
		Aliases: []string{"d"},
		Usage:   "Enable debug logging",
	}
	// ForceTimestampLogs forces ISO8601 timestamps in log output even
	// when stdout is not a TTY (useful under a log collector that adds
	// its own timestamp otherwise).
	ForceTimestampLogs = &cli.BoolFlag{
		Name:  "force-timestamp-logs",
		Usage: "Force timestamps in logs even if the output is not a TTY",
	}
	// LogEncoding selects zap's "console" or "json" encoder.
	LogEncoding = &cli.StringFlag{
		Name:  "log-encoding",
		Usage: `Log encoding ("console" or "json")`,
	}
	// LogPath redirects log output to a file instead of stderr.
	LogPath = &cli.StringFlag{
		Name:  "log-path",
		Usage: "Write logs to this file instead of stderr",
	}
)

// DB is the snapshot sink's connection settings, flattened into individual
// flags.
var DB = []cli.Flag{
	&cli.StringFlag{Name: "db-driver", Usage: `Snapshot sink driver ("mysql" or empty to disable persistence)`},
	&cli.StringFlag{Name: "db-host", Usage: "Snapshot sink database host"},
	&cli.IntFlag{Name: "db-port", Usage: "Snapshot sink database port", Value: 3306},
	&cli.StringFlag{Name: "db-user", Usage: "Snapshot sink database user"},
	&cli.StringFlag{Name: "db-password", Usage: "Snapshot sink database password"},
	&cli.StringFlag{Name: "db-name", Usage: "Snapshot sink database name"},
	&cli.DurationFlag{Name: "db-write-interval", Usage: "Snapshot write cadence", Value: time.Minute},
}

// GetConfigFromContext loads the YAML config file named by --config-file (if
// any), then applies the crawler's own flags as overrides on top of it.
func GetConfigFromContext(ctx *cli.Context) (config.Config, error) {
	cfg, err := config.Load(ctx.String(ConfigFile.Name), ctx.String(RelativePath.Name))
	if err != nil {
		return config.Config{}, err
	}

	if ctx.IsSet(Addr.Name) {
		cfg.ListenAddr = ctx.String(Addr.Name)
	}
	if ctx.IsSet(LogEncoding.Name) {
		cfg.Logger.LogEncoding = ctx.String(LogEncoding.Name)
	}
	if ctx.IsSet(LogPath.Name) {
		cfg.Logger.LogPath = ctx.String(LogPath.Name)
	}
	if ctx.IsSet("db-driver") {
		cfg.DB.Driver = ctx.String("db-driver")
	}
	if ctx.IsSet("db-host") {
		cfg.DB.Host = ctx.String("db-host")
	}
	if ctx.IsSet("db-port") {
		cfg.DB.Port = ctx.Int("db-port")
	}
	if ctx.IsSet("db-user") {
		cfg.DB.User = ctx.String("db-user")
	}
	if ctx.IsSet("db-password") {
		cfg.DB.Password = ctx.String("db-password")
	}
	if ctx.IsSet("db-name") {
		cfg.DB.Name = ctx.String("db-name")
	}
	if ctx.IsSet("db-write-interval") {
		cfg.DB.WriteInterval = ctx.Duration("db-write-interval")
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// HandleLoggingParams builds a zap.Logger from the loaded Logger config and
// the --debug/--force-timestamp-logs flags: level and encoding resolution,
// TTY timestamp detection, optional redirection to a log file.
func HandleLoggingParams(ctx *cli.Context, cfg config.Logger) (*zap.Logger, *zap.AtomicLevel, error) {
	level := zapcore.InfoLevel
	encoding := "console"
	var err error

	if cfg.LogLevel != "" {
		level, err = zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, nil, fmt.Errorf("log setting: %w", err)
		}
	}
	if cfg.LogEncoding != "" {
		encoding = cfg.LogEncoding
	}
	if ctx.Bool(Debug.Name) {
		level = zapcore.DebugLevel
	}

	cc := zap.NewProductionConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if term.IsTerminal(int(os.Stdout.Fd())) || ctx.Bool(ForceTimestampLogs.Name) {
		cc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cc.EncoderConfig.EncodeTime = func(time.Time, zapcore.PrimitiveArrayEncoder) {}
	}
	cc.Encoding = encoding
	cc.Level = zap.NewAtomicLevelAt(level)
	cc.Sampling = nil

	if cfg.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0755); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
		cc.OutputPaths = []string{cfg.LogPath}
	}

	log, err := cc.Build(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return NewFilteringCore(core, dedupeFilter())
	}))
	if err != nil {
		return nil, nil, err
	}
	return log, &cc.Level, nil
}

// VersionString renders the version banner for the version command.
func VersionString(appVersion string) string {
	return fmt.Sprintf("node-crawler\nVersion: %s\nGoVersion: %s\n", appVersion, runtime.Version())
}
