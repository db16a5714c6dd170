// pkg/core/summary.go
package core

// WeaponTally holds per-weapon counters extracted from a single log file.
type WeaponTally struct {
	Shots uint `json:"shots"`
	Hits  uint `json:"hits"`
	Kills uint `json:"kills"`
}

// Summary is the pure result of parsing one log file. It is constructed once
// per parse pass, immutable afterwards, and discarded after its counters have
// been folded into the persisted aggregates.
type Summary struct {
	TotalEvents       uint                   `json:"totalEvents"`
	Missions          uint                   `json:"missions"`
	Takeoffs          uint                   `json:"takeoffs"`
	Landings          uint                   `json:"landings"`
	Shots             uint                   `json:"shots"`
	Hits              uint                   `json:"hits"`
	Kills             uint                   `json:"kills"`
	Deaths            uint                   `json:"deaths"`
	FlightTimeSeconds uint                   `json:"flightTimeSeconds"`
	WeaponStats       map[string]WeaponTally `json:"weaponStats"`
	AircraftTypes     []string               `json:"aircraftTypes"`
	ServerName        string                 `json:"serverName"`
	PlayerName        string                 `json:"playerName"`

	// Errors holds one message per malformed line, in line order.
	// Line-level errors are non-fatal; parsing always continues.
	Errors []string `json:"errors"`
}
