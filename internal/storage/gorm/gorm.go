// Package gormstorage implements the storage.Backend interface on GORM.
// It works against both Postgres and the pure-Go SQLite driver; the upsert
// increments are plain SQL arithmetic so concurrent uploads for the same
// user cannot lose a contribution.
package gormstorage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ravenlog/ravenlog/internal/model"
	"github.com/ravenlog/ravenlog/internal/storage"
	"github.com/ravenlog/ravenlog/pkg/core"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger zerolog.Logger
}

// Backend implements storage.Backend using GORM.
type Backend struct {
	deps Dependencies
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	return &Backend{deps: deps}
}

// Init runs schema migration.
func (b *Backend) Init() error {
	if err := b.deps.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	b.deps.Logger.Info().Msg("Storage schema migrated")
	return nil
}

// Close is a no-op; the DB connection is owned by the database manager.
func (b *Backend) Close() error {
	return nil
}

// SaveUpload inserts the log file row and applies the summary's counters to
// the user and weapon aggregates inside one transaction. A unique-constraint
// conflict on (user_id, file_hash) surfaces as storage.ErrDuplicate.
func (b *Backend) SaveUpload(ctx context.Context, file *model.LogFile, summary core.Summary) error {
	err := b.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(file).Error; err != nil {
			return err
		}
		if err := b.applyUserStatistics(tx, file.UserID, summary); err != nil {
			return fmt.Errorf("failed to apply user statistics: %w", err)
		}
		if err := b.applyWeaponStatistics(tx, file.UserID, summary); err != nil {
			return fmt.Errorf("failed to apply weapon statistics: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return storage.ErrDuplicate
		}
		return err
	}

	b.deps.Logger.Debug().
		Str("userId", file.UserID).
		Uint("logFileId", file.ID).
		Uint("events", file.TotalEvents).
		Msg("Saved upload")
	return nil
}

// applyUserStatistics upserts the per-user totals row. Increments happen in
// SQL so the merge is atomic against concurrent uploads.
func (b *Backend) applyUserStatistics(tx *gorm.DB, userID string, s core.Summary) error {
	now := time.Now()
	row := model.UserStatistics{
		UserID:                userID,
		TotalMissions:         s.Missions,
		TotalTakeoffs:         s.Takeoffs,
		TotalLandings:         s.Landings,
		TotalShots:            s.Shots,
		TotalHits:             s.Hits,
		TotalKills:            s.Kills,
		TotalDeaths:           s.Deaths,
		TotalFlightTimeSecond: s.FlightTimeSeconds,
		LastUpdated:           now,
	}

	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_missions":            gorm.Expr("user_statistics.total_missions + ?", s.Missions),
			"total_takeoffs":            gorm.Expr("user_statistics.total_takeoffs + ?", s.Takeoffs),
			"total_landings":            gorm.Expr("user_statistics.total_landings + ?", s.Landings),
			"total_shots":               gorm.Expr("user_statistics.total_shots + ?", s.Shots),
			"total_hits":                gorm.Expr("user_statistics.total_hits + ?", s.Hits),
			"total_kills":               gorm.Expr("user_statistics.total_kills + ?", s.Kills),
			"total_deaths":              gorm.Expr("user_statistics.total_deaths + ?", s.Deaths),
			"total_flight_time_seconds": gorm.Expr("user_statistics.total_flight_time_seconds + ?", s.FlightTimeSeconds),
			"last_updated":              now,
			"updated_at":                now,
		}),
	}).Create(&row).Error
}

// applyWeaponStatistics upserts one row per weapon in the summary.
// Weapon names are processed in sorted order for deterministic behavior.
func (b *Backend) applyWeaponStatistics(tx *gorm.DB, userID string, s core.Summary) error {
	if len(s.WeaponStats) == 0 {
		return nil
	}

	weapons := make([]string, 0, len(s.WeaponStats))
	for name := range s.WeaponStats {
		weapons = append(weapons, name)
	}
	sort.Strings(weapons)

	now := time.Now()
	for _, name := range weapons {
		tally := s.WeaponStats[name]
		row := model.WeaponStatistics{
			UserID:     userID,
			WeaponName: name,
			Shots:      tally.Shots,
			Hits:       tally.Hits,
			Kills:      tally.Kills,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "weapon_name"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"shots":      gorm.Expr("weapon_statistics.shots + ?", tally.Shots),
				"hits":       gorm.Expr("weapon_statistics.hits + ?", tally.Hits),
				"kills":      gorm.Expr("weapon_statistics.kills + ?", tally.Kills),
				"updated_at": now,
			}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("weapon %s: %w", name, err)
		}
	}
	return nil
}

// FindLogFileByHash looks up a previously ingested file for the fast-path
// duplicate check. Soft-deleted rows still count: a deleted file's
// contribution stays in the aggregates, so re-ingesting it would double count.
func (b *Backend) FindLogFileByHash(ctx context.Context, userID, fileHash string) (*model.LogFile, error) {
	var file model.LogFile
	err := b.deps.DB.WithContext(ctx).Unscoped().
		Where("user_id = ? AND file_hash = ?", userID, fileHash).
		First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &file, nil
}

// GetLogFile returns one log file row scoped to its owner.
func (b *Backend) GetLogFile(ctx context.Context, userID string, id uint) (*model.LogFile, error) {
	var file model.LogFile
	err := b.deps.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &file, nil
}

// ListLogFiles returns the user's upload history, newest first.
func (b *Backend) ListLogFiles(ctx context.Context, userID string) ([]model.LogFile, error) {
	var files []model.LogFile
	err := b.deps.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("processed_at DESC").
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}

// DeleteLogFile removes a log file row by id, scoped to its owner.
// Aggregated statistics are left untouched; history and aggregates are
// allowed to diverge after deletion.
func (b *Backend) DeleteLogFile(ctx context.Context, userID string, id uint) error {
	result := b.deps.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.LogFile{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetUserStatistics returns the user's totals row, or storage.ErrNotFound if
// the user has never completed an upload.
func (b *Backend) GetUserStatistics(ctx context.Context, userID string) (*model.UserStatistics, error) {
	var stats model.UserStatistics
	err := b.deps.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&stats).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &stats, nil
}

// GetWeaponStatistics returns the user's per-weapon rows sorted by
// descending shot count.
func (b *Backend) GetWeaponStatistics(ctx context.Context, userID string) ([]model.WeaponStatistics, error) {
	var rows []model.WeaponStatistics
	err := b.deps.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("shots DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
