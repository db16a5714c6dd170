// Package logging builds the zerolog logger used across the service.
// The logger is constructed once in main and passed by dependency injection;
// there is no package-level logger and no environment-gated verbosity check.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
)

// Config holds logging settings resolved from configuration at startup.
type Config struct {
	Level          string
	ConsolePretty  bool
	LogFile        io.Writer // optional
	GraylogEnabled bool
	GraylogAddress string
}

// New builds a zerolog.Logger writing to stdout plus the optional file and
// GELF sinks.
func New(cfg Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var console io.Writer = os.Stdout
	if cfg.ConsolePretty {
		console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	writers := []io.Writer{console}
	if cfg.LogFile != nil {
		writers = append(writers, cfg.LogFile)
	}

	if cfg.GraylogEnabled {
		gelfWriter, err := gelf.NewWriter(cfg.GraylogAddress)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("failed to create GELF writer: %w", err)
		}
		writers = append(writers, gelfWriter)
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()

	return logger, nil
}

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, name string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", name, sessionStart.Format("20060102_150405")),
	)
}
