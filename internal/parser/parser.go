// Package parser turns raw DCS client log text into a pure core.Summary.
// It performs no I/O; persistence and aggregation live elsewhere.
package parser

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ravenlog/ravenlog/pkg/core"
)

// checkInterval is how many lines are processed between context checks.
// Parsing is pure and cheaply abortable at line granularity.
const checkInterval = 512

// Parser folds a line-classified event stream into a core.Summary.
type Parser struct {
	logger zerolog.Logger
}

// New creates a parser with an injected logger.
func New(logger zerolog.Logger) *Parser {
	return &Parser{logger: logger}
}

// parseState is the mutable cross-line state carried through one pass.
// It resets whenever a mission_start event occurs.
type parseState struct {
	currentMission   string
	missionStartTime time.Time
	playerSpawned    bool
}

// Parse classifies every line of content and folds the event stream into a
// summary. Malformed individual lines never fail the pass; each is recorded
// as "Line N: msg" in the summary's error list and parsing continues.
// The only returned error is context cancellation.
func (p *Parser) Parse(ctx context.Context, content string) (core.Summary, error) {
	summary := core.Summary{
		WeaponStats: map[string]core.WeaponTally{},
	}

	lines := strings.Split(content, "\n")
	events := make([]core.Event, 0, 256)
	state := parseState{}

	for i, line := range lines {
		if i%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return core.Summary{}, fmt.Errorf("parse cancelled at line %d: %w", i+1, err)
			}
		}

		event, ok, err := Classify(strings.TrimRight(line, "\r"))
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("Line %d: %v", i+1, err))
			continue
		}
		if !ok {
			continue
		}

		if event.Kind == core.EventMissionStart {
			state = parseState{
				currentMission:   event.Get("mission"),
				missionStartTime: event.Time,
			}
		}
		if event.Kind == core.EventSpawn {
			state.playerSpawned = true
		}

		events = append(events, event)
	}

	p.fold(&summary, events)

	p.logger.Debug().
		Uint("events", summary.TotalEvents).
		Uint("missions", summary.Missions).
		Int("lineErrors", len(summary.Errors)).
		Str("mission", state.currentMission).
		Msg("parsed log content")

	return summary, nil
}

// fold computes the summary counters from the collected event stream.
func (p *Parser) fold(summary *core.Summary, events []core.Event) {
	summary.TotalEvents = uint(len(events))

	var (
		spawnCount      uint
		disconnectCount uint
		firstSpawn      time.Time
		lastMissionEnd  time.Time
		aircraft        = map[string]struct{}{}
	)

	for _, event := range events {
		switch event.Kind {
		case core.EventMissionStart:
			summary.Missions++
		case core.EventConnection:
			if summary.ServerName == "" {
				summary.ServerName = event.Get("server")
			}
			if summary.PlayerName == "" {
				summary.PlayerName = event.Get("player")
			}
		case core.EventSpawn:
			spawnCount++
			if firstSpawn.IsZero() {
				firstSpawn = event.Time
			}
			if ac := event.Get("aircraft"); ac != "" {
				aircraft[ac] = struct{}{}
			}
		case core.EventMissionEnd:
			lastMissionEnd = event.Time
			if event.Get("reason") == "disconnected" {
				disconnectCount++
			}
		case core.EventShot:
			// Combat counters only accumulate from events that carry a
			// weapon field; weaponless combat lines are ignored.
			if tallyWeapon(summary, event, func(t *core.WeaponTally) { t.Shots++ }) {
				summary.Shots++
			}
		case core.EventHit:
			if tallyWeapon(summary, event, func(t *core.WeaponTally) { t.Hits++ }) {
				summary.Hits++
			}
		case core.EventKill:
			if tallyWeapon(summary, event, func(t *core.WeaponTally) { t.Kills++ }) {
				summary.Kills++
			}
		case core.EventDeath:
			summary.Deaths++
		}
	}

	// Flight activity is inferred: the client log has no explicit
	// takeoff/landing telemetry. One takeoff is assumed per spawn; a
	// landing is assumed for each clean disconnect, capped at the spawn
	// count; flight time spans first spawn to last mission end.
	if spawnCount > 0 {
		summary.Takeoffs = spawnCount
		summary.Landings = min(disconnectCount, spawnCount)
	}
	if !firstSpawn.IsZero() && !lastMissionEnd.IsZero() && lastMissionEnd.After(firstSpawn) {
		summary.FlightTimeSeconds = uint(lastMissionEnd.Sub(firstSpawn).Seconds())
	}

	summary.AircraftTypes = make([]string, 0, len(aircraft))
	for ac := range aircraft {
		summary.AircraftTypes = append(summary.AircraftTypes, ac)
	}
	sort.Strings(summary.AircraftTypes)
}

// tallyWeapon applies a counter update to the event's weapon entry.
// Returns false for events without a weapon field.
func tallyWeapon(summary *core.Summary, event core.Event, update func(*core.WeaponTally)) bool {
	weapon := event.Get("weapon")
	if weapon == "" {
		return false
	}
	tally := summary.WeaponStats[weapon]
	update(&tally)
	summary.WeaponStats[weapon] = tally
	return true
}
