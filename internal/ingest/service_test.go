package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravenlog/ravenlog/internal/parser"
	"github.com/ravenlog/ravenlog/internal/storage/memory"
)

const validLog = `=== Log opened UTC 2024-03-15 18:42:00
2024-03-15 18:42:07.123 INFO NET: connected to server. Server name: Blue Flag
2024-03-15 18:43:00.001 INFO APP: loading mission from: "C:\Missions\caucasus_cap.miz"
2024-03-15 18:45:12.500 INFO APP: MissionSpawn:spawnLocalPlayer 17,FA_18C_hornet
2024-03-15 19:02:10.250 INFO EXPORT: EVENT: shot, weapon=AIM-120C
2024-03-15 19:02:45.100 INFO EXPORT: EVENT: hit, weapon=AIM-120C, target=MiG-29S
2024-03-15 20:45:12.500 INFO NET: disconnected from server
`

func newTestService(t *testing.T) (*Service, *memory.Backend) {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.Init())
	p := parser.New(zerolog.Nop())
	svc, err := New(p, store, zerolog.Nop(), Options{})
	require.NoError(t, err)
	return svc, store
}

func TestUploadHappyPath(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	result, err := svc.Upload(ctx, "u1", "dcs.log", validLog)
	require.NoError(t, err)

	assert.False(t, result.IsDuplicate)
	assert.NotZero(t, result.LogFileID)
	assert.Equal(t, uint(6), result.Summary.TotalEvents)

	stats, err := store.GetUserStatistics(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, uint(1), stats.TotalMissions)
	assert.Equal(t, uint(1), stats.TotalShots)
	assert.Equal(t, uint(1), stats.TotalHits)

	file, err := store.GetLogFile(ctx, "u1", result.LogFileID)
	require.NoError(t, err)
	assert.Equal(t, parser.FileHash(validLog), file.FileHash)
	assert.Equal(t, uint(len(validLog)), file.SizeBytes)
}

func TestUploadDuplicateIsIdempotentNoOp(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	first, err := svc.Upload(ctx, "u1", "dcs.log", validLog)
	require.NoError(t, err)
	require.False(t, first.IsDuplicate)

	statsBefore, err := store.GetUserStatistics(ctx, "u1")
	require.NoError(t, err)

	// Same content under a different filename is still the same file.
	second, err := svc.Upload(ctx, "u1", "renamed.log", validLog)
	require.NoError(t, err)
	assert.True(t, second.IsDuplicate)

	statsAfter, err := store.GetUserStatistics(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, *statsBefore, *statsAfter)
}

func TestUploadDuplicateScopedPerUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Upload(ctx, "u1", "dcs.log", validLog)
	require.NoError(t, err)
	assert.False(t, first.IsDuplicate)

	second, err := svc.Upload(ctx, "u2", "dcs.log", validLog)
	require.NoError(t, err)
	assert.False(t, second.IsDuplicate)
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Upload(context.Background(), "u1", "dcs.txt", validLog)
	assert.ErrorIs(t, err, ErrUnsupportedExtension)
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	store := memory.New()
	p := parser.New(zerolog.Nop())
	svc, err := New(p, store, zerolog.Nop(), Options{MaxSizeBytes: 64})
	require.NoError(t, err)

	_, err = svc.Upload(context.Background(), "u1", "dcs.log", validLog)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestUploadRejectsInvalidContent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		content string
	}{
		{"empty file", ""},
		{"no DCS signatures", "2024-03-15 18:42:07.123 not a dcs log at all\n"},
		{"signature without timestamps", "=== Log opened\nDCS/2.9.4\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, "u1", "dcs.log", tt.content)
			assert.ErrorIs(t, err, parser.ErrInvalidLog)
		})
	}
}

func TestUploadFailsWhenNothingSalvaged(t *testing.T) {
	svc, _ := newTestService(t)

	// Signature and timestamps present, but every timestamped line has
	// garbage values, so classification yields zero events and 2 errors.
	content := strings.Join([]string{
		"DCS/2.9.4.53627",
		"2024-03-15 18:42:07.123 filler line establishing the timestamp format",
		"2024-99-99 18:42:07.123 INFO NET: connected to server",
		"2024-13-13 18:42:07.123 INFO NET: connected to server",
	}, "\n")

	// The filler line carries a valid timestamp but no marker, so it is
	// noise, not an event: total events stay zero.
	_, err := svc.Upload(context.Background(), "u1", "dcs.log", content)
	assert.ErrorIs(t, err, ErrNothingParsed)
}

func TestUploadToleratesPartialErrors(t *testing.T) {
	svc, _ := newTestService(t)

	content := validLog + "2024-99-99 18:42:07.123 INFO NET: connected to server\n"
	result, err := svc.Upload(context.Background(), "u1", "dcs.log", content)
	require.NoError(t, err)

	assert.Len(t, result.Summary.Errors, 1)
	assert.Equal(t, uint(6), result.Summary.TotalEvents)
}

func TestUploadCancelled(t *testing.T) {
	svc, _ := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Upload(ctx, "u1", "dcs.log", validLog)
	assert.ErrorIs(t, err, context.Canceled)
}
