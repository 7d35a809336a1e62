// Package server manages the MinerPulse database layer.
// It initializes GORM with pure-Go SQLite and exposes the append-only
// sample store used by the ingest and query handlers.
package server

import (
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/minerpulse/minerpulse/internal/config"
	"github.com/minerpulse/minerpulse/internal/models"
)

// OpenDB opens the database and runs AutoMigrate.
func OpenDB(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite", "":
		dialector = sqlite.Open(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unsupported db_driver %q (use 'sqlite')", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.AutoMigrate(&models.Sample{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	return db, nil
}

// Store provides sample persistence. Samples are immutable once inserted:
// there is no update or delete path, and no retention policy — pruning is
// left to database administration.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store backed by the given DB handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// InsertSample appends exactly one row. Duplicate (miner_id, ts) pairs are
// accepted; concurrent identical submissions produce duplicate rows.
func (s *Store) InsertSample(sample *models.Sample) error {
	return s.db.Create(sample).Error
}

// LatestSample returns the row with the maximum ts for the miner, or
// (nil, nil) when the miner has no samples. Tie-break among equal ts values
// is whatever the store returns first.
func (s *Store) LatestSample(minerID string) (*models.Sample, error) {
	var sample models.Sample
	err := s.db.Where("miner_id = ?", minerID).Order("ts DESC").First(&sample).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sample, nil
}

// RangeSamples returns the reduced column set for the miner where ts >= fromTs,
// ascending by ts. There is no upper time bound and no row cap.
func (s *Store) RangeSamples(minerID string, fromTs int64) ([]models.RangePoint, error) {
	points := make([]models.RangePoint, 0)
	err := s.db.Model(&models.Sample{}).
		Select("ts", "temp", "vr_temp", "power", "hash_rate_1m", "fanrpm", "error_percentage", "best_diff").
		Where("miner_id = ? AND ts >= ?", minerID, fromTs).
		Order("ts ASC").
		Scan(&points).Error
	if err != nil {
		return nil, err
	}
	return points, nil
}
