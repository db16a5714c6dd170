// pkg/core/events.go
package core

import "time"

// EventKind identifies the type of a parsed log event.
type EventKind string

const (
	EventTakeoff      EventKind = "takeoff"
	EventLanding      EventKind = "landing"
	EventShot         EventKind = "shot"
	EventHit          EventKind = "hit"
	EventKill         EventKind = "kill"
	EventDeath        EventKind = "death"
	EventMissionStart EventKind = "mission_start"
	EventMissionEnd   EventKind = "mission_end"
	EventConnection   EventKind = "connection"
	EventSpawn        EventKind = "spawn"
	EventOther        EventKind = "other"
)

// Event is one typed event extracted from a single log line.
// Events only live for the duration of a parse pass and are never persisted.
type Event struct {
	Time time.Time
	Kind EventKind
	Data map[string]string
}

// Get returns the named data field, or "" if absent.
func (e Event) Get(key string) string {
	if e.Data == nil {
		return ""
	}
	return e.Data[key]
}
