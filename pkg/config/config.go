package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultListenAddr is used when neither a flag nor a config file supplies
// one.
const DefaultListenAddr = "0.0.0.0:4132"

// Version is the crawler's own release version, printed by the version
// command and the startup banner. The handshake advertises the separate
// protocol version set in cli/crawl, not this string.
const Version = "0.1.0"

// Config is the crawler's top-level configuration, loaded from an optional
// YAML file with CLI flags applied as overrides on top.
type Config struct {
	ListenAddr string `yaml:"ListenAddr"`

	P2P        P2P          `yaml:"P2P"`
	Logger     Logger       `yaml:"Logger"`
	DB         DB           `yaml:"DB"`
	Prometheus BasicService `yaml:"Prometheus"`
}

// Validate checks that the loaded configuration is internally consistent.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("ListenAddr must not be empty")
	}
	if err := c.Logger.Validate(); err != nil {
		return err
	}
	return c.DB.Validate()
}

// Load reads and validates a YAML config file. A relative Logger.LogPath is
// resolved against relativePath when one is given.
func Load(configPath string, relativePath ...string) (Config, error) {
	cfg := Config{
		ListenAddr: DefaultListenAddr,
		P2P: P2P{
			PeerUpdateInterval: 30 * time.Second,
			SnapshotInterval:   time.Minute,
			NodeStaleness:      24 * time.Hour,
			EdgeStaleness:      6 * time.Hour,
			ReprobeInterval:    5 * time.Minute,
			UnresponsiveWindow: 2 * time.Minute,
			DialFanOut:         8,
			MaxConnections:     200,
			MaxConcurrentDials: 16,
			SharedPeerCount:    16,
			HandshakeTimeout:   10 * time.Second,
		},
	}

	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	if len(relativePath) == 1 && relativePath[0] != "" && cfg.Logger.LogPath != "" && !filepath.IsAbs(cfg.Logger.LogPath) {
		cfg.Logger.LogPath = filepath.Join(relativePath[0], cfg.Logger.LogPath)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
