// Package storage implements the optional snapshot sink: a MySQL-backed
// (gorm) persistence layer for the known-network graph and its derived
// metrics.
package storage

import "time"

// nodeRow is the gorm model backing the known-network graph's nodes table.
type nodeRow struct {
	ListeningAddr string `gorm:"primary_key;column:listening_addr"`
	FirstSeen     time.Time
	LastSeen      time.Time
	HasState      bool
	State         uint8
	NodeType      uint8
	Version       uint32
	Height        uint32
	LastAttempt   time.Time
	LastSuccess   bool
	Tries         uint32
	Failures      uint32
}

func (nodeRow) TableName() string { return "nodes" }

// connectionRow is the gorm model backing the known-network graph's directed
// edges.
type connectionRow struct {
	ID       uint64 `gorm:"primary_key"`
	Source   string `gorm:"column:source_addr;index"`
	Target   string `gorm:"column:target_addr;index"`
	LastSeen time.Time
}

func (connectionRow) TableName() string { return "connections" }

// metricSnapshotRow stores one derived NetworkMetrics row per snapshot
// round.
type metricSnapshotRow struct {
	ID                  uint64 `gorm:"primary_key"`
	TakenAt             time.Time
	NodeCount           int
	EdgeCount           int
	MinDegree           int
	MaxDegree           int
	MeanDegree          float64
	Density             float64
	ConnectedComponents int
}

func (metricSnapshotRow) TableName() string { return "metric_snapshots" }
