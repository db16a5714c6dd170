// Package ingest orchestrates the upload flow: validation, parsing,
// deduplication, persistence and aggregation.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ravenlog/ravenlog/internal/model"
	"github.com/ravenlog/ravenlog/internal/parser"
	"github.com/ravenlog/ravenlog/internal/storage"
	"github.com/ravenlog/ravenlog/pkg/core"
)

// DefaultMaxSizeBytes caps uploads at 50MB.
const DefaultMaxSizeBytes = 50 * 1024 * 1024

var (
	// ErrTooLarge is returned for uploads over the size cap.
	ErrTooLarge = errors.New("file exceeds maximum upload size")

	// ErrUnsupportedExtension is returned for files that are not
	// .log, .json or .jsonl.
	ErrUnsupportedExtension = errors.New("unsupported file extension")

	// ErrNothingParsed is returned when a file produced zero events and at
	// least one line-level error: nothing useful was salvaged.
	ErrNothingParsed = errors.New("no events could be extracted from file")
)

var allowedExtensions = map[string]bool{
	".log":   true,
	".json":  true,
	".jsonl": true,
}

// Reporter receives a measurement for every completed upload attempt.
// Implementations must be safe for concurrent use.
type Reporter interface {
	ReportUpload(userID, outcome string, summary core.Summary, duration time.Duration)
}

// Result is the outcome of one upload.
type Result struct {
	IsDuplicate bool         `json:"isDuplicate"`
	LogFileID   uint         `json:"logFileId,omitempty"`
	Summary     core.Summary `json:"summary"`
}

// Service is the upload orchestrator.
type Service struct {
	parser       *parser.Parser
	store        storage.Backend
	reporter     Reporter
	logger       zerolog.Logger
	maxSizeBytes int

	processed     metric.Int64Counter
	duplicates    metric.Int64Counter
	failures      metric.Int64Counter
	parseDuration metric.Float64Histogram
}

// Options configures optional service behavior.
type Options struct {
	// Reporter may be nil, disabling per-upload measurements.
	Reporter Reporter
	// MaxSizeBytes defaults to DefaultMaxSizeBytes when zero.
	MaxSizeBytes int
}

// New creates an upload service. Uses the global OTel meter for metrics
// (no-op if not configured).
func New(p *parser.Parser, store storage.Backend, logger zerolog.Logger, opts Options) (*Service, error) {
	s := &Service{
		parser:       p,
		store:        store,
		reporter:     opts.Reporter,
		logger:       logger,
		maxSizeBytes: opts.MaxSizeBytes,
	}
	if s.maxSizeBytes == 0 {
		s.maxSizeBytes = DefaultMaxSizeBytes
	}

	m := meter()
	var err error

	s.processed, err = m.Int64Counter(
		"ingest.uploads.processed",
		metric.WithDescription("Uploads successfully parsed and aggregated"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	s.duplicates, err = m.Int64Counter(
		"ingest.uploads.duplicates",
		metric.WithDescription("Uploads rejected as already-ingested content"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duplicates counter: %w", err)
	}

	s.failures, err = m.Int64Counter(
		"ingest.uploads.failures",
		metric.WithDescription("Uploads that failed validation, parsing or persistence"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}

	s.parseDuration, err = m.Float64Histogram(
		"ingest.parse.duration",
		metric.WithDescription("Wall-clock duration of one parse pass"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating parse duration histogram: %w", err)
	}

	return s, nil
}

// Upload runs the full ingestion flow for one file. Any client-side summary
// is ignored: the hash is recomputed and the content re-validated here.
//
// A duplicate is a successful no-op, not an error: the result carries
// IsDuplicate=true and nothing is written.
func (s *Service) Upload(ctx context.Context, userID, filename, content string) (Result, error) {
	start := time.Now()

	if err := s.checkFile(filename, content); err != nil {
		s.fail(ctx, userID, "rejected")
		return Result{}, err
	}

	fileHash := parser.FileHash(content)

	// Fast-path duplicate check for a friendly early exit. The unique
	// (user, hash) index at the storage layer is the actual authority.
	if _, err := s.store.FindLogFileByHash(ctx, userID, fileHash); err == nil {
		return s.duplicate(ctx, userID, fileHash), nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		s.fail(ctx, userID, "storage")
		return Result{}, fmt.Errorf("duplicate check failed: %w", err)
	}

	if err := parser.ValidateLog(content); err != nil {
		s.fail(ctx, userID, "invalid")
		return Result{}, err
	}

	parseStart := time.Now()
	summary, err := s.parser.Parse(ctx, content)
	if err != nil {
		s.fail(ctx, userID, "cancelled")
		return Result{}, err
	}
	s.parseDuration.Record(ctx, time.Since(parseStart).Seconds())

	if summary.TotalEvents == 0 && len(summary.Errors) > 0 {
		s.fail(ctx, userID, "unparseable")
		return Result{}, fmt.Errorf("%w: %d line errors", ErrNothingParsed, len(summary.Errors))
	}

	file, err := buildLogFile(userID, filename, fileHash, content, summary)
	if err != nil {
		s.fail(ctx, userID, "encoding")
		return Result{}, err
	}

	if err := s.store.SaveUpload(ctx, file, summary); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			// Lost the check-then-act race; the constraint decided.
			return s.duplicate(ctx, userID, fileHash), nil
		}
		s.fail(ctx, userID, "storage")
		return Result{}, fmt.Errorf("failed to persist upload: %w", err)
	}

	s.processed.Add(ctx, 1)
	if s.reporter != nil {
		s.reporter.ReportUpload(userID, "processed", summary, time.Since(start))
	}

	s.logger.Info().
		Str("userId", userID).
		Str("filename", filename).
		Uint("logFileId", file.ID).
		Uint("events", summary.TotalEvents).
		Int("lineErrors", len(summary.Errors)).
		Msg("Upload processed")

	return Result{LogFileID: file.ID, Summary: summary}, nil
}

func (s *Service) checkFile(filename, content string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return fmt.Errorf("%w: %q", ErrUnsupportedExtension, ext)
	}
	if len(content) > s.maxSizeBytes {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(content))
	}
	return nil
}

func (s *Service) duplicate(ctx context.Context, userID, fileHash string) Result {
	s.duplicates.Add(ctx, 1)
	if s.reporter != nil {
		s.reporter.ReportUpload(userID, "duplicate", core.Summary{}, 0)
	}
	s.logger.Info().
		Str("userId", userID).
		Str("fileHash", fileHash).
		Msg("Duplicate upload skipped")
	return Result{IsDuplicate: true}
}

func (s *Service) fail(ctx context.Context, userID, reason string) {
	s.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	if s.reporter != nil {
		s.reporter.ReportUpload(userID, "failed", core.Summary{}, 0)
	}
}

// buildLogFile assembles the persisted row with its denormalized snapshot.
func buildLogFile(userID, filename, fileHash, content string, summary core.Summary) (*model.LogFile, error) {
	aircraft, err := json.Marshal(summary.AircraftTypes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode aircraft types: %w", err)
	}
	parseErrors, err := json.Marshal(summary.Errors)
	if err != nil {
		return nil, fmt.Errorf("failed to encode parse errors: %w", err)
	}

	return &model.LogFile{
		UserID:            userID,
		Filename:          filepath.Base(filename),
		SizeBytes:         uint(len(content)),
		FileHash:          fileHash,
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
		AircraftTypes:     aircraft,
		ParseErrors:       parseErrors,
	}, nil
}
