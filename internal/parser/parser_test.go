package parser

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravenlog/ravenlog/pkg/core"
)

func newTestParser() *Parser {
	return New(zerolog.Nop())
}

// sampleSession is a minimal but complete session: connect, mission load,
// spawn, combat, disconnect.
const sampleSession = `=== Log opened UTC 2024-03-15 18:42:00
2024-03-15 18:42:07.123 INFO NET: connected to server. Server name: Blue Flag
2024-03-15 18:43:00.001 INFO APP: loading mission from: "C:\Missions\caucasus_cap.miz"
2024-03-15 18:45:12.500 INFO APP: MissionSpawn:spawnLocalPlayer 17,FA_18C_hornet
2024-03-15 19:02:10.250 INFO EXPORT: EVENT: shot, weapon=AIM-120C
2024-03-15 19:02:45.100 INFO EXPORT: EVENT: hit, weapon=AIM-120C, target=MiG-29S
2024-03-15 19:02:46.000 INFO EXPORT: EVENT: kill, weapon=AIM-120C, target=MiG-29S
2024-03-15 20:45:12.500 INFO NET: disconnected from server
`

func TestParseSampleSession(t *testing.T) {
	p := newTestParser()

	summary, err := p.Parse(context.Background(), sampleSession)
	require.NoError(t, err)

	assert.Equal(t, uint(7), summary.TotalEvents)
	assert.Empty(t, summary.Errors)
	assert.Equal(t, uint(1), summary.Missions)
	assert.Equal(t, "Blue Flag", summary.ServerName)
	assert.Equal(t, []string{"FA-18C-hornet"}, summary.AircraftTypes)

	// One takeoff per spawn, one landing per clean disconnect.
	assert.Equal(t, uint(1), summary.Takeoffs)
	assert.Equal(t, uint(1), summary.Landings)

	// 18:45:12.500 -> 20:45:12.500 = 7200s
	assert.Equal(t, uint(7200), summary.FlightTimeSeconds)

	assert.Equal(t, uint(1), summary.Shots)
	assert.Equal(t, uint(1), summary.Hits)
	assert.Equal(t, uint(1), summary.Kills)
	assert.Equal(t, uint(0), summary.Deaths)
	assert.Equal(t, core.WeaponTally{Shots: 1, Hits: 1, Kills: 1}, summary.WeaponStats["AIM-120C"])
}

func TestParseLineErrorTolerance(t *testing.T) {
	p := newTestParser()

	// 100 well-formed spawn lines and 3 timestamp-prefixed garbage lines.
	var b strings.Builder
	for i := 0; i < 100; i++ {
		fmt.Fprintf(&b, "2024-03-15 18:45:%02d.000 INFO APP: MissionSpawn:spawnLocalPlayer %d,Su_27\n", i%60, i)
	}
	b.WriteString("2024-99-99 18:45:00.000 INFO NET: connected to server\n")
	b.WriteString("2024-00-00 25:61:61.000 INFO NET: connected to server\n")
	b.WriteString("2024-13-01 18:45:00.000 INFO NET: connected to server\n")

	summary, err := p.Parse(context.Background(), b.String())
	require.NoError(t, err)

	assert.Len(t, summary.Errors, 3)
	assert.Equal(t, uint(100), summary.TotalEvents)
	for _, msg := range summary.Errors {
		assert.Regexp(t, `^Line \d+: `, msg)
	}
}

func TestParseNoiseOnlyFile(t *testing.T) {
	p := newTestParser()

	content := strings.Repeat("random noise without any timestamp\n", 50)
	summary, err := p.Parse(context.Background(), content)
	require.NoError(t, err)

	assert.Equal(t, uint(0), summary.TotalEvents)
	assert.Empty(t, summary.Errors)
}

func TestParseFlightTimeMissingEndpoints(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "spawn but no mission end",
			content: "2024-03-15 18:45:12.500 INFO APP: MissionSpawn:spawnLocalPlayer 17,F_16C\n",
		},
		{
			name:    "mission end but no spawn",
			content: "2024-03-15 20:45:12.500 INFO NET: disconnected from server\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, err := p.Parse(context.Background(), tt.content)
			require.NoError(t, err)
			assert.Equal(t, uint(0), summary.FlightTimeSeconds)
		})
	}
}

func TestParseLandingsCappedBySpawns(t *testing.T) {
	p := newTestParser()

	content := strings.Join([]string{
		"2024-03-15 18:45:12.500 INFO APP: MissionSpawn:spawnLocalPlayer 17,F_16C",
		"2024-03-15 19:00:00.000 INFO NET: disconnected from server",
		"2024-03-15 19:30:00.000 INFO NET: Session was closed",
		"2024-03-15 20:00:00.000 INFO NET: disconnected from server",
	}, "\n")

	summary, err := p.Parse(context.Background(), content)
	require.NoError(t, err)

	assert.Equal(t, uint(1), summary.Takeoffs)
	assert.Equal(t, uint(1), summary.Landings)
}

func TestParseStateResetsOnMissionStart(t *testing.T) {
	p := newTestParser()

	content := strings.Join([]string{
		`2024-03-15 18:43:00.001 INFO APP: loading mission from: "/m/first.miz"`,
		"2024-03-15 18:45:00.000 INFO APP: MissionSpawn:spawnLocalPlayer 1,F_16C",
		`2024-03-15 19:43:00.001 INFO APP: loading mission from: "/m/second.miz"`,
		"2024-03-15 19:45:00.000 INFO APP: MissionSpawn:spawnLocalPlayer 2,AH_64D",
		"2024-03-15 20:00:00.000 INFO NET: disconnected from server",
	}, "\n")

	summary, err := p.Parse(context.Background(), content)
	require.NoError(t, err)

	assert.Equal(t, uint(2), summary.Missions)
	assert.Equal(t, uint(2), summary.Takeoffs)
	assert.Equal(t, []string{"AH-64D", "F-16C"}, summary.AircraftTypes)
}

func TestParseCancellation(t *testing.T) {
	p := newTestParser()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Parse(ctx, sampleSession)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseFirstServerNameWins(t *testing.T) {
	p := newTestParser()

	content := strings.Join([]string{
		"2024-03-15 18:42:07.123 INFO NET: connected to server. Server name: First",
		"2024-03-15 19:42:07.123 INFO NET: connected to server. Server name: Second",
	}, "\n")

	summary, err := p.Parse(context.Background(), content)
	require.NoError(t, err)
	assert.Equal(t, "First", summary.ServerName)
}
