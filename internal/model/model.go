package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&LogFile{},
	&UserStatistics{},
	&WeaponStatistics{},
}

// LogFileStatus is the terminal processing state of an uploaded log file.
// Once set to processed/error/duplicate a row is never mutated again.
type LogFileStatus string

const (
	StatusProcessing LogFileStatus = "processing"
	StatusProcessed  LogFileStatus = "processed"
	StatusError      LogFileStatus = "error"
	StatusDuplicate  LogFileStatus = "duplicate"
)

// LogFile is one uploaded log file. The (user_id, file_hash) unique index is
// the deduplication authority; the application-level check is only a
// fast-path for a friendly early exit.
type LogFile struct {
	gorm.Model
	UserID       string        `json:"userId" gorm:"size:64;index;uniqueIndex:idx_user_hash"`
	Filename     string        `json:"filename" gorm:"size:255"`
	SizeBytes    uint          `json:"sizeBytes"`
	FileHash     string        `json:"fileHash" gorm:"size:64;uniqueIndex:idx_user_hash"`
	ProcessedAt  time.Time     `json:"processedAt"`
	TotalEvents  uint          `json:"totalEvents"`
	Status       LogFileStatus `json:"status" gorm:"size:20"`
	ErrorMessage string        `json:"errorMessage" gorm:"size:512"`

	// Denormalized summary snapshot for history display. Also the exact
	// per-counter delta this file contributed to the aggregates.
	Missions          uint `json:"missions"`
	Takeoffs          uint `json:"takeoffs"`
	Landings          uint `json:"landings"`
	Shots             uint `json:"shots"`
	Hits              uint `json:"hits"`
	Kills             uint `json:"kills"`
	Deaths            uint `json:"deaths"`
	FlightTimeSeconds uint `json:"flightTimeSeconds"`

	AircraftTypes datatypes.JSON `json:"aircraftTypes"`
	ParseErrors   datatypes.JSON `json:"parseErrors"`
}

func (*LogFile) TableName() string {
	return "log_files"
}

// UserStatistics is the running lifetime totals for one user. Every counter
// is monotonically non-decreasing: merges are additive, never overwrites.
type UserStatistics struct {
	gorm.Model
	UserID                string    `json:"userId" gorm:"size:64;uniqueIndex"`
	TotalMissions         uint      `json:"totalMissions"`
	TotalTakeoffs         uint      `json:"totalTakeoffs"`
	TotalLandings         uint      `json:"totalLandings"`
	TotalShots            uint      `json:"totalShots"`
	TotalHits             uint      `json:"totalHits"`
	TotalKills            uint      `json:"totalKills"`
	TotalDeaths           uint      `json:"totalDeaths"`
	TotalFlightTimeSecond uint      `json:"totalFlightTimeSeconds" gorm:"column:total_flight_time_seconds"`
	LastUpdated           time.Time `json:"lastUpdated"`
}

func (*UserStatistics) TableName() string {
	return "user_statistics"
}

// WeaponStatistics is one row per (user, weapon) pair, created lazily the
// first time a weapon name appears for a user.
type WeaponStatistics struct {
	gorm.Model
	UserID     string `json:"userId" gorm:"size:64;uniqueIndex:idx_user_weapon"`
	WeaponName string `json:"weaponName" gorm:"size:127;uniqueIndex:idx_user_weapon"`
	Shots      uint   `json:"shots"`
	Hits       uint   `json:"hits"`
	Kills      uint   `json:"kills"`
}

func (*WeaponStatistics) TableName() string {
	return "weapon_statistics"
}
