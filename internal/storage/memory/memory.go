// internal/storage/memory/memory.go
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/ravenlog/ravenlog/internal/model"
	"github.com/ravenlog/ravenlog/internal/storage"
	"github.com/ravenlog/ravenlog/pkg/core"
)

// Backend stores everything in memory. Used by tests and by the agent's
// dry-run mode where nothing should touch a database.
type Backend struct {
	mu        sync.RWMutex
	files     map[uint]*model.LogFile
	userStats map[string]*model.UserStatistics
	// keyed by userID, then weapon name
	weaponStats map[string]map[string]*model.WeaponStatistics
	idCounter   uint
}

// New creates a new memory backend.
func New() *Backend {
	return &Backend{
		files:       make(map[uint]*model.LogFile),
		userStats:   make(map[string]*model.UserStatistics),
		weaponStats: make(map[string]map[string]*model.WeaponStatistics),
	}
}

// Init initializes the backend.
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources.
func (b *Backend) Close() error {
	return nil
}

// SaveUpload stores the file row and folds the summary into the aggregates
// under one lock, mirroring the transactional semantics of the GORM backend.
func (b *Backend) SaveUpload(ctx context.Context, file *model.LogFile, summary core.Summary) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.files {
		if existing.UserID == file.UserID && existing.FileHash == file.FileHash {
			return storage.ErrDuplicate
		}
	}

	b.idCounter++
	file.ID = b.idCounter
	file.CreatedAt = time.Now()
	copied := *file
	b.files[file.ID] = &copied

	stats, ok := b.userStats[file.UserID]
	if !ok {
		stats = &model.UserStatistics{UserID: file.UserID}
		b.userStats[file.UserID] = stats
	}
	stats.TotalMissions += summary.Missions
	stats.TotalTakeoffs += summary.Takeoffs
	stats.TotalLandings += summary.Landings
	stats.TotalShots += summary.Shots
	stats.TotalHits += summary.Hits
	stats.TotalKills += summary.Kills
	stats.TotalDeaths += summary.Deaths
	stats.TotalFlightTimeSecond += summary.FlightTimeSeconds
	stats.LastUpdated = time.Now()

	byWeapon, ok := b.weaponStats[file.UserID]
	if !ok {
		byWeapon = make(map[string]*model.WeaponStatistics)
		b.weaponStats[file.UserID] = byWeapon
	}
	for name, tally := range summary.WeaponStats {
		row, ok := byWeapon[name]
		if !ok {
			row = &model.WeaponStatistics{UserID: file.UserID, WeaponName: name}
			byWeapon[name] = row
		}
		row.Shots += tally.Shots
		row.Hits += tally.Hits
		row.Kills += tally.Kills
	}

	return nil
}

// FindLogFileByHash returns a stored file matching (user, hash).
func (b *Backend) FindLogFileByHash(ctx context.Context, userID, fileHash string) (*model.LogFile, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, file := range b.files {
		if file.UserID == userID && file.FileHash == fileHash {
			copied := *file
			return &copied, nil
		}
	}
	return nil, storage.ErrNotFound
}

// GetLogFile returns one owned log file row.
func (b *Backend) GetLogFile(ctx context.Context, userID string, id uint) (*model.LogFile, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	file, ok := b.files[id]
	if !ok || file.UserID != userID || file.DeletedAt.Valid {
		return nil, storage.ErrNotFound
	}
	copied := *file
	return &copied, nil
}

// ListLogFiles returns the user's uploads, newest first.
func (b *Backend) ListLogFiles(ctx context.Context, userID string) ([]model.LogFile, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var files []model.LogFile
	for _, file := range b.files {
		if file.UserID == userID && !file.DeletedAt.Valid {
			files = append(files, *file)
		}
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].ProcessedAt.After(files[j].ProcessedAt)
	})
	return files, nil
}

// DeleteLogFile soft-deletes an owned row. Aggregates are left untouched,
// and the hash stays visible to the duplicate check so a deleted file cannot
// be re-ingested and double counted.
func (b *Backend) DeleteLogFile(ctx context.Context, userID string, id uint) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	file, ok := b.files[id]
	if !ok || file.UserID != userID || file.DeletedAt.Valid {
		return storage.ErrNotFound
	}
	file.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	return nil
}

// GetUserStatistics returns the user's totals row.
func (b *Backend) GetUserStatistics(ctx context.Context, userID string) (*model.UserStatistics, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats, ok := b.userStats[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *stats
	return &copied, nil
}

// GetWeaponStatistics returns per-weapon rows sorted by descending shots.
func (b *Backend) GetWeaponStatistics(ctx context.Context, userID string) ([]model.WeaponStatistics, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var rows []model.WeaponStatistics
	for _, row := range b.weaponStats[userID] {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Shots != rows[j].Shots {
			return rows[i].Shots > rows[j].Shots
		}
		return rows[i].WeaponName < rows[j].WeaponName
	})
	return rows, nil
}
