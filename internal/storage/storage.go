// internal/storage/storage.go
package storage

import (
	"context"
	"errors"

	"github.com/ravenlog/ravenlog/internal/model"
	"github.com/ravenlog/ravenlog/pkg/core"
)

var (
	// ErrNotFound is returned when a requested row does not exist or is
	// not owned by the requesting user.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when the (user, file hash) unique
	// constraint rejects an insert. The constraint is the deduplication
	// authority; callers treat this as the duplicate outcome, not a failure.
	ErrDuplicate = errors.New("duplicate log file")
)

// Backend is the interface all storage implementations must satisfy.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Ingestion. SaveUpload persists the log file row and folds the
	// summary's counters into the user and per-weapon aggregates as one
	// atomic unit: either both happen or neither does.
	SaveUpload(ctx context.Context, file *model.LogFile, summary core.Summary) error
	FindLogFileByHash(ctx context.Context, userID, fileHash string) (*model.LogFile, error)

	// History
	GetLogFile(ctx context.Context, userID string, id uint) (*model.LogFile, error)
	ListLogFiles(ctx context.Context, userID string) ([]model.LogFile, error)
	DeleteLogFile(ctx context.Context, userID string, id uint) error

	// Aggregates
	GetUserStatistics(ctx context.Context, userID string) (*model.UserStatistics, error)
	GetWeaponStatistics(ctx context.Context, userID string) ([]model.WeaponStatistics, error)
}
