package config

import "time"

// P2P holds the crawl policy's thresholds and connection limits, mapped
// onto pkg/knownnetwork.Policy and the engine's own bounds at startup.
type P2P struct {
	PeerUpdateInterval time.Duration `yaml:"PeerUpdateInterval"`
	SnapshotInterval   time.Duration `yaml:"SnapshotInterval"`
	NodeStaleness      time.Duration `yaml:"NodeStaleness"`
	EdgeStaleness      time.Duration `yaml:"EdgeStaleness"`
	ReprobeInterval    time.Duration `yaml:"ReprobeInterval"`
	UnresponsiveWindow time.Duration `yaml:"UnresponsiveWindow"`
	DialFanOut         int           `yaml:"DialFanOut"`
	MaxConnections     int           `yaml:"MaxConnections"`
	MaxConcurrentDials int           `yaml:"MaxConcurrentDials"`
	SharedPeerCount    int           `yaml:"SharedPeerCount"`
	HandshakeTimeout   time.Duration `yaml:"HandshakeTimeout"`
}
