package storage

import (
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jinzhu/gorm"
	"github.com/nspcc-dev/node-crawler/pkg/config"
	"github.com/nspcc-dev/node-crawler/pkg/knownnetwork"
	"github.com/nspcc-dev/node-crawler/pkg/metrics"
	"go.uber.org/zap"
)

// Sink is the engine's abstract view of persistence.
type Sink interface {
	WriteSnapshot(nodes []knownnetwork.KnownNode, conns []knownnetwork.KnownConnection, m metrics.NetworkMetrics) error
	Close() error
}

// NopSink is used when persistence is disabled (DB.Driver is empty).
type NopSink struct{}

// WriteSnapshot implements Sink.
func (NopSink) WriteSnapshot([]knownnetwork.KnownNode, []knownnetwork.KnownConnection, metrics.NetworkMetrics) error {
	return nil
}

// Close implements Sink.
func (NopSink) Close() error { return nil }

// gormSink is the MySQL-backed implementation.
type gormSink struct {
	db  *gorm.DB
	log *zap.Logger
}

// Open connects to the configured MySQL database, migrates the sink's
// tables, and returns a ready-to-use Sink. Callers should fall back to
// NopSink when cfg.Driver is empty; Open is only called once that check has
// passed.
func Open(cfg config.DB, log *zap.Logger) (Sink, error) {
	db, err := gorm.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, err
	}
	db.AutoMigrate(&nodeRow{}, &connectionRow{}, &metricSnapshotRow{})
	return &gormSink{db: db, log: log}, nil
}

// WriteSnapshot upserts the current node rows, replaces the whole
// connections table with the current edge snapshot, and appends a new
// metric-snapshot row, inside a single transaction so a partial write is
// never observable to readers of the tables. Node rows for nodes no longer
// in the graph are not deleted.
func (s *gormSink) WriteSnapshot(nodes []knownnetwork.KnownNode, conns []knownnetwork.KnownConnection, m metrics.NetworkMetrics) error {
	tx := s.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	for _, n := range nodes {
		row := nodeRow{
			ListeningAddr: n.ListeningAddr.String(),
			FirstSeen:     n.FirstSeen,
			LastSeen:      n.LastSeen,
			HasState:      n.HasState,
			State:         uint8(n.State),
			NodeType:      uint8(n.NodeType),
			Version:       n.Version,
			Height:        n.Height,
			LastAttempt:   n.LastAttempt,
			LastSuccess:   n.LastSuccess,
			Tries:         n.Tries,
			Failures:      n.Failures,
		}
		if err := tx.Save(&row).Error; err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Where("1 = 1").Delete(&connectionRow{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	for _, c := range conns {
		row := connectionRow{Source: c.Source.String(), Target: c.Target.String(), LastSeen: c.LastSeen}
		if err := tx.Create(&row).Error; err != nil {
			tx.Rollback()
			return err
		}
	}

	snap := metricSnapshotRow{
		TakenAt:             time.Now(),
		NodeCount:           m.NodeCount,
		EdgeCount:           m.EdgeCount,
		MinDegree:           m.MinDegree,
		MaxDegree:           m.MaxDegree,
		MeanDegree:          m.MeanDegree,
		Density:             m.Density,
		ConnectedComponents: m.ConnectedComponents,
	}
	if err := tx.Create(&snap).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// Close releases the underlying database connection.
func (s *gormSink) Close() error {
	return s.db.Close()
}
