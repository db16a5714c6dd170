// Package stats is the read side of the flight statistics. Derived ratios
// are never stored; they are recomputed from the raw counters on every read.
package stats

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ravenlog/ravenlog/internal/model"
	"github.com/ravenlog/ravenlog/internal/storage"
)

// UserStatisticsView is the user totals row plus derived metrics.
type UserStatisticsView struct {
	UserID                 string    `json:"userId"`
	TotalMissions          uint      `json:"totalMissions"`
	TotalTakeoffs          uint      `json:"totalTakeoffs"`
	TotalLandings          uint      `json:"totalLandings"`
	TotalShots             uint      `json:"totalShots"`
	TotalHits              uint      `json:"totalHits"`
	TotalKills             uint      `json:"totalKills"`
	TotalDeaths            uint      `json:"totalDeaths"`
	TotalFlightTimeSeconds uint      `json:"totalFlightTimeSeconds"`
	OverallAccuracy        float64   `json:"overallAccuracy"`
	KDRatio                float64   `json:"kdRatio"`
	FormattedFlightTime    string    `json:"formattedFlightTime"`
	LastUpdated            time.Time `json:"lastUpdated"`
}

// WeaponStatisticView is one weapon's counters plus its derived accuracy.
type WeaponStatisticView struct {
	WeaponName string  `json:"weaponName"`
	Shots      uint    `json:"shots"`
	Hits       uint    `json:"hits"`
	Kills      uint    `json:"kills"`
	Accuracy   float64 `json:"accuracy"`
}

// LogHistoryEntry is one uploaded file with its snapshot and a
// human-readable description of what it added.
type LogHistoryEntry struct {
	ID                uint                `json:"id"`
	Filename          string              `json:"filename"`
	SizeBytes         uint                `json:"sizeBytes"`
	ProcessedAt       time.Time           `json:"processedAt"`
	TotalEvents       uint                `json:"totalEvents"`
	Status            model.LogFileStatus `json:"status"`
	ErrorMessage      string              `json:"errorMessage,omitempty"`
	Missions          uint                `json:"missions"`
	Takeoffs          uint                `json:"takeoffs"`
	Landings          uint                `json:"landings"`
	Shots             uint                `json:"shots"`
	Hits              uint                `json:"hits"`
	Kills             uint                `json:"kills"`
	Deaths            uint                `json:"deaths"`
	FlightTimeSeconds uint                `json:"flightTimeSeconds"`
	Description       string              `json:"description"`
}

// Reader serves the statistics and history read models.
type Reader struct {
	store  storage.Backend
	logger zerolog.Logger
}

// NewReader creates a Reader on top of a storage backend.
func NewReader(store storage.Backend, logger zerolog.Logger) *Reader {
	return &Reader{store: store, logger: logger}
}

// UserStatistics returns the user's lifetime totals with derived metrics.
// A user with no uploads gets all-zero defaults, not an error.
func (r *Reader) UserStatistics(ctx context.Context, userID string) (UserStatisticsView, error) {
	row, err := r.store.GetUserStatistics(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return UserStatisticsView{
				UserID:              userID,
				FormattedFlightTime: FormatFlightTime(0),
			}, nil
		}
		return UserStatisticsView{}, fmt.Errorf("failed to read user statistics: %w", err)
	}

	return UserStatisticsView{
		UserID:                 row.UserID,
		TotalMissions:          row.TotalMissions,
		TotalTakeoffs:          row.TotalTakeoffs,
		TotalLandings:          row.TotalLandings,
		TotalShots:             row.TotalShots,
		TotalHits:              row.TotalHits,
		TotalKills:             row.TotalKills,
		TotalDeaths:            row.TotalDeaths,
		TotalFlightTimeSeconds: row.TotalFlightTimeSecond,
		OverallAccuracy:        accuracy(row.TotalHits, row.TotalShots),
		KDRatio:                kdRatio(row.TotalKills, row.TotalDeaths),
		FormattedFlightTime:    FormatFlightTime(row.TotalFlightTimeSecond),
		LastUpdated:            row.LastUpdated,
	}, nil
}

// WeaponStatistics returns the per-weapon breakdown, ordered by descending
// shot count.
func (r *Reader) WeaponStatistics(ctx context.Context, userID string) ([]WeaponStatisticView, error) {
	rows, err := r.store.GetWeaponStatistics(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read weapon statistics: %w", err)
	}

	views := make([]WeaponStatisticView, 0, len(rows))
	for _, row := range rows {
		views = append(views, WeaponStatisticView{
			WeaponName: row.WeaponName,
			Shots:      row.Shots,
			Hits:       row.Hits,
			Kills:      row.Kills,
			Accuracy:   accuracy(row.Hits, row.Shots),
		})
	}
	return views, nil
}

// LogHistory returns the user's uploads, newest first.
func (r *Reader) LogHistory(ctx context.Context, userID string) ([]LogHistoryEntry, error) {
	files, err := r.store.ListLogFiles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read log history: %w", err)
	}

	entries := make([]LogHistoryEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, LogHistoryEntry{
			ID:                f.ID,
			Filename:          f.Filename,
			SizeBytes:         f.SizeBytes,
			ProcessedAt:       f.ProcessedAt,
			TotalEvents:       f.TotalEvents,
			Status:            f.Status,
			ErrorMessage:      f.ErrorMessage,
			Missions:          f.Missions,
			Takeoffs:          f.Takeoffs,
			Landings:          f.Landings,
			Shots:             f.Shots,
			Hits:              f.Hits,
			Kills:             f.Kills,
			Deaths:            f.Deaths,
			FlightTimeSeconds: f.FlightTimeSeconds,
			Description:       DescribeDelta(f),
		})
	}
	return entries, nil
}

// accuracy is hits/shots as a percentage, rounded to 2 decimal places.
// Zero shots means zero accuracy, not a division error.
func accuracy(hits, shots uint) float64 {
	if shots == 0 {
		return 0
	}
	return round2(float64(hits) / float64(shots) * 100)
}

// kdRatio is kills/deaths rounded to 2 decimal places. With zero deaths it
// falls back to the raw kill count.
func kdRatio(kills, deaths uint) float64 {
	if deaths == 0 {
		return float64(kills)
	}
	return round2(float64(kills) / float64(deaths))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatFlightTime renders a duration in seconds as HH:MM:SS.
func FormatFlightTime(seconds uint) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// DescribeDelta builds a human-readable sentence for what one upload added,
// omitting zero-valued categories.
func DescribeDelta(f model.LogFile) string {
	var parts []string

	add := func(count uint, singular string) {
		if count == 0 {
			return
		}
		parts = append(parts, pluralize(count, singular))
	}

	add(f.Missions, "mission")
	add(f.Takeoffs, "takeoff")
	add(f.Landings, "landing")
	add(f.Shots, "shot")
	add(f.Hits, "hit")
	add(f.Kills, "kill")
	add(f.Deaths, "death")
	if f.FlightTimeSeconds > 0 {
		parts = append(parts, fmt.Sprintf("%s of flight time", FormatFlightTime(f.FlightTimeSeconds)))
	}

	if len(parts) == 0 {
		return "No new activity"
	}
	if len(parts) == 1 {
		return "Added " + parts[0]
	}
	return "Added " + strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}

func pluralize(count uint, singular string) string {
	if count == 1 {
		return fmt.Sprintf("1 %s", singular)
	}
	return fmt.Sprintf("%d %ss", count, singular)
}
