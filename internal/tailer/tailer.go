// Package tailer follows a live DCS log file and ships completed sessions to
// the service. A session is considered complete when the game disconnects
// from a server or when the file goes quiet for the configured idle window.
package tailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nxadm/tail"
	"github.com/rs/zerolog"
)

// Uploader receives the buffered session content when the tailer decides a
// session is complete.
type Uploader interface {
	Upload(filename string, content []byte) error
}

// Config holds the tailer settings.
type Config struct {
	LogPath     string
	IdleTimeout time.Duration
}

// Tailer follows one log file.
type Tailer struct {
	cfg      Config
	uploader Uploader
	logger   zerolog.Logger

	buffer   strings.Builder
	sessions uint
}

// New creates a tailer.
func New(cfg Config, uploader Uploader, logger zerolog.Logger) *Tailer {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 5 * time.Minute
	}
	return &Tailer{
		cfg:      cfg,
		uploader: uploader,
		logger:   logger,
	}
}

// sessionBoundary reports whether a line marks the end of a play session.
func sessionBoundary(line string) bool {
	return strings.Contains(line, "disconnected from server") ||
		strings.Contains(line, "=== Log closed")
}

// Run follows the log file until the context is cancelled. Whatever is
// buffered at cancellation time is flushed as a final session.
func (t *Tailer) Run(ctx context.Context) error {
	tf, err := tail.TailFile(t.cfg.LogPath, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Poll:      true,
	})
	if err != nil {
		return fmt.Errorf("failed to tail %s: %w", t.cfg.LogPath, err)
	}
	defer tf.Cleanup()

	t.logger.Info().Str("path", t.cfg.LogPath).Msg("Following log file")

	idle := time.NewTimer(t.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			tf.Stop()
			t.flush("shutdown")
			return ctx.Err()

		case line, ok := <-tf.Lines:
			if !ok {
				t.flush("log closed")
				return nil
			}
			if line.Err != nil {
				t.logger.Warn().Err(line.Err).Msg("Error reading line")
				continue
			}

			t.buffer.WriteString(line.Text)
			t.buffer.WriteString("\n")

			if sessionBoundary(line.Text) {
				t.flush("session ended")
			}

			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(t.cfg.IdleTimeout)

		case <-idle.C:
			t.flush("idle timeout")
			idle.Reset(t.cfg.IdleTimeout)
		}
	}
}

// flush uploads the buffered session and resets the buffer. Upload failures
// keep the buffer so the next boundary retries with the full content.
func (t *Tailer) flush(reason string) {
	if t.buffer.Len() == 0 {
		return
	}

	t.sessions++
	filename := fmt.Sprintf("dcs-session-%d.log", t.sessions)

	t.logger.Info().
		Str("reason", reason).
		Int("bytes", t.buffer.Len()).
		Msg("Uploading session")

	if err := t.uploader.Upload(filename, []byte(t.buffer.String())); err != nil {
		t.logger.Error().Err(err).Msg("Failed to upload session; will retry on next boundary")
		t.sessions--
		return
	}

	t.buffer.Reset()
}
