package stats

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravenlog/ravenlog/internal/model"
	"github.com/ravenlog/ravenlog/internal/storage/memory"
	"github.com/ravenlog/ravenlog/pkg/core"
)

func newTestReader(t *testing.T) (*Reader, *memory.Backend) {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.Init())
	return NewReader(store, zerolog.Nop()), store
}

func seedUpload(t *testing.T, store *memory.Backend, userID string, summary core.Summary, hash string) *model.LogFile {
	t.Helper()
	file := &model.LogFile{
		UserID:            userID,
		Filename:          "dcs.log",
		FileHash:          hash,
		ProcessedAt:       time.Now(),
		TotalEvents:       summary.TotalEvents,
		Status:            model.StatusProcessed,
		Missions:          summary.Missions,
		Takeoffs:          summary.Takeoffs,
		Landings:          summary.Landings,
		Shots:             summary.Shots,
		Hits:              summary.Hits,
		Kills:             summary.Kills,
		Deaths:            summary.Deaths,
		FlightTimeSeconds: summary.FlightTimeSeconds,
	}
	require.NoError(t, store.SaveUpload(context.Background(), file, summary))
	return file
}

func TestUserStatisticsDerivedMetrics(t *testing.T) {
	r, store := newTestReader(t)

	seedUpload(t, store, "u1", core.Summary{
		Shots:  40,
		Hits:   10,
		Kills:  6,
		Deaths: 0,
	}, "h1")

	view, err := r.UserStatistics(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 25.0, view.OverallAccuracy)
	// With zero deaths the ratio falls back to raw kills.
	assert.Equal(t, 6.0, view.KDRatio)
}

func TestUserStatisticsRounding(t *testing.T) {
	r, store := newTestReader(t)

	seedUpload(t, store, "u1", core.Summary{
		Shots:  3,
		Hits:   1,
		Kills:  7,
		Deaths: 3,
	}, "h1")

	view, err := r.UserStatistics(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 33.33, view.OverallAccuracy)
	assert.Equal(t, 2.33, view.KDRatio)
}

func TestUserStatisticsAbsentUserGetsZeroDefaults(t *testing.T) {
	r, _ := newTestReader(t)

	view, err := r.UserStatistics(context.Background(), "nobody")
	require.NoError(t, err)

	assert.Equal(t, "nobody", view.UserID)
	assert.Equal(t, uint(0), view.TotalShots)
	assert.Equal(t, 0.0, view.OverallAccuracy)
	assert.Equal(t, 0.0, view.KDRatio)
	assert.Equal(t, "00:00:00", view.FormattedFlightTime)
}

func TestWeaponStatisticsOrderAndAccuracy(t *testing.T) {
	r, store := newTestReader(t)

	seedUpload(t, store, "u1", core.Summary{
		Shots: 30,
		Hits:  12,
		WeaponStats: map[string]core.WeaponTally{
			"GAU-8":    {Shots: 20, Hits: 10},
			"AGM-65D":  {Shots: 4, Hits: 4, Kills: 4},
			"Hydra-70": {Shots: 6, Hits: 1},
		},
	}, "h1")

	views, err := r.WeaponStatistics(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, views, 3)

	assert.Equal(t, "GAU-8", views[0].WeaponName)
	assert.Equal(t, 50.0, views[0].Accuracy)
	assert.Equal(t, "Hydra-70", views[1].WeaponName)
	assert.Equal(t, 16.67, views[1].Accuracy)
	assert.Equal(t, "AGM-65D", views[2].WeaponName)
	assert.Equal(t, 100.0, views[2].Accuracy)
}

func TestFormatFlightTime(t *testing.T) {
	tests := []struct {
		seconds uint
		want    string
	}{
		{0, "00:00:00"},
		{59, "00:00:59"},
		{3725, "01:02:05"},
		{86400, "24:00:00"},
		{90061, "25:01:01"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatFlightTime(tt.seconds))
	}
}

func TestDescribeDelta(t *testing.T) {
	tests := []struct {
		name string
		file model.LogFile
		want string
	}{
		{
			name: "all zero",
			file: model.LogFile{},
			want: "No new activity",
		},
		{
			name: "single category singular",
			file: model.LogFile{Missions: 1},
			want: "Added 1 mission",
		},
		{
			name: "single category plural",
			file: model.LogFile{Kills: 3},
			want: "Added 3 kills",
		},
		{
			name: "two categories joined with and",
			file: model.LogFile{Missions: 1, Takeoffs: 2},
			want: "Added 1 mission and 2 takeoffs",
		},
		{
			name: "many categories with flight time",
			file: model.LogFile{Missions: 2, Shots: 40, Kills: 1, FlightTimeSeconds: 3725},
			want: "Added 2 missions, 40 shots, 1 kill and 01:02:05 of flight time",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DescribeDelta(tt.file))
		})
	}
}

func TestLogHistoryIncludesDescription(t *testing.T) {
	r, store := newTestReader(t)

	seedUpload(t, store, "u1", core.Summary{TotalEvents: 5, Missions: 1, Takeoffs: 1}, "h1")

	entries, err := r.LogHistory(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, model.StatusProcessed, entries[0].Status)
	assert.Equal(t, uint(5), entries[0].TotalEvents)
	assert.Equal(t, "Added 1 mission and 1 takeoff", entries[0].Description)
}
