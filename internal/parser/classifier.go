package parser

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/ravenlog/ravenlog/pkg/core"
)

// Timestamp layout used by the DCS client log: 2024-03-15 18:42:07.123
const timestampLayout = "2006-01-02 15:04:05.000"

var (
	reTimestamp     = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3})\s*(.*)$`)
	reServerName    = regexp.MustCompile(`Server name: (.+)`)
	rePlayerName    = regexp.MustCompile(`Player name: (.+)`)
	reMissionPath   = regexp.MustCompile(`loading mission from: "(.+)"`)
	reSpawnAircraft = regexp.MustCompile(`spawnLocalPlayer (\d+),\s*(\S+)`)
	reEventWeapon   = regexp.MustCompile(`weapon=([^,]+)`)
	reEventTarget   = regexp.MustCompile(`target=([^,]+)`)
)

// benignErrorMarkers are ERROR lines the DCS client emits constantly that
// carry no diagnostic value for flight statistics.
var benignErrorMarkers = []string{
	"Can't open file",
	"texture",
}

// classifierRule matches the remainder of a timestamped line and builds an event.
// Rules are evaluated in order; the first match wins.
type classifierRule struct {
	name  string
	match func(rest string) bool
	build func(ts time.Time, rest string) core.Event
}

// rules is the classification table. New event patterns (e.g. additional
// combat telemetry emitted by export scripts) are added here and flow into
// the summary fold without touching aggregation.
var rules = []classifierRule{
	{
		name:  "connection",
		match: func(rest string) bool { return strings.Contains(rest, "connected to server") },
		build: func(ts time.Time, rest string) core.Event {
			server := "Unknown Server"
			if m := reServerName.FindStringSubmatch(rest); m != nil {
				server = strings.TrimSpace(m[1])
			}
			data := map[string]string{"server": server}
			if m := rePlayerName.FindStringSubmatch(rest); m != nil {
				data["player"] = strings.TrimSpace(m[1])
			}
			return core.Event{Time: ts, Kind: core.EventConnection, Data: data}
		},
	},
	{
		name: "mission_start",
		match: func(rest string) bool {
			return strings.Contains(rest, "loadMission") || strings.Contains(rest, "loading mission")
		},
		build: func(ts time.Time, rest string) core.Event {
			mission := "Unknown Mission"
			if m := reMissionPath.FindStringSubmatch(rest); m != nil {
				mission = humanizeMissionName(m[1])
			}
			return core.Event{Time: ts, Kind: core.EventMissionStart, Data: map[string]string{"mission": mission}}
		},
	},
	{
		name:  "spawn",
		match: func(rest string) bool { return strings.Contains(rest, "MissionSpawn:spawnLocalPlayer") },
		build: func(ts time.Time, rest string) core.Event {
			data := map[string]string{}
			if m := reSpawnAircraft.FindStringSubmatch(rest); m != nil {
				data["aircraft"] = strings.ReplaceAll(m[2], "_", "-")
			}
			return core.Event{Time: ts, Kind: core.EventSpawn, Data: data}
		},
	},
	{
		name: "mission_end",
		match: func(rest string) bool {
			return strings.Contains(rest, "disconnected from server") || strings.Contains(rest, "Session was closed")
		},
		build: func(ts time.Time, rest string) core.Event {
			return core.Event{Time: ts, Kind: core.EventMissionEnd, Data: map[string]string{"reason": "disconnected"}}
		},
	},

	// Combat telemetry. The stock client log carries no weapon lines, but
	// export scripts commonly inject "EVENT: ..." markers. These rules are
	// the extension point for combat-enabled log configurations.
	{
		name:  "shot",
		match: func(rest string) bool { return strings.Contains(rest, "EVENT: shot") },
		build: func(ts time.Time, rest string) core.Event {
			return core.Event{Time: ts, Kind: core.EventShot, Data: combatData(rest)}
		},
	},
	{
		name:  "hit",
		match: func(rest string) bool { return strings.Contains(rest, "EVENT: hit") },
		build: func(ts time.Time, rest string) core.Event {
			return core.Event{Time: ts, Kind: core.EventHit, Data: combatData(rest)}
		},
	},
	{
		name:  "kill",
		match: func(rest string) bool { return strings.Contains(rest, "EVENT: kill") },
		build: func(ts time.Time, rest string) core.Event {
			return core.Event{Time: ts, Kind: core.EventKill, Data: combatData(rest)}
		},
	},
	{
		name:  "death",
		match: func(rest string) bool { return strings.Contains(rest, "EVENT: pilot death") },
		build: func(ts time.Time, rest string) core.Event {
			return core.Event{Time: ts, Kind: core.EventDeath, Data: map[string]string{}}
		},
	},

	{
		name: "error",
		match: func(rest string) bool {
			if !strings.Contains(rest, "ERROR") {
				return false
			}
			for _, marker := range benignErrorMarkers {
				if strings.Contains(rest, marker) {
					return false
				}
			}
			return true
		},
		build: func(ts time.Time, rest string) core.Event {
			return core.Event{Time: ts, Kind: core.EventOther, Data: map[string]string{
				"eventType": "error",
				"message":   rest,
			}}
		},
	},
}

// Classify parses one raw log line into at most one typed event.
// Lines without a timestamp prefix are noise, not errors: ok is false and
// err is nil. A line with a well-formed prefix shape but invalid timestamp
// values is a line-level error.
func Classify(line string) (core.Event, bool, error) {
	m := reTimestamp.FindStringSubmatch(line)
	if m == nil {
		return core.Event{}, false, nil
	}

	ts, err := time.Parse(timestampLayout, m[1])
	if err != nil {
		return core.Event{}, false, fmt.Errorf("invalid timestamp %q: %w", m[1], err)
	}

	rest := m[2]
	for _, rule := range rules {
		if rule.match(rest) {
			return rule.build(ts, rest), true, nil
		}
	}
	return core.Event{}, false, nil
}

// combatData extracts weapon/target fields from a combat telemetry line.
func combatData(rest string) map[string]string {
	data := map[string]string{}
	if m := reEventWeapon.FindStringSubmatch(rest); m != nil {
		data["weapon"] = strings.TrimSpace(m[1])
	}
	if m := reEventTarget.FindStringSubmatch(rest); m != nil {
		data["target"] = strings.TrimSpace(m[1])
	}
	return data
}

// humanizeMissionName derives a display name from a mission file path:
// final path segment, .trk/.miz stripped, dashes and underscores spaced.
func humanizeMissionName(missionPath string) string {
	name := path.Base(strings.ReplaceAll(missionPath, `\`, "/"))
	name = strings.TrimSuffix(name, ".trk")
	name = strings.TrimSuffix(name, ".miz")
	name = strings.ReplaceAll(name, "-", " ")
	name = strings.ReplaceAll(name, "_", " ")
	return name
}
