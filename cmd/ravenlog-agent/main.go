// Command ravenlog-agent follows a live DCS World log file and uploads each
// completed play session to a ravenlog server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/ravenlog/ravenlog/internal/api"
	"github.com/ravenlog/ravenlog/internal/config"
	"github.com/ravenlog/ravenlog/internal/logging"
	"github.com/ravenlog/ravenlog/internal/tailer"
)

var version = "dev"

// clientUploader adapts the API client to the tailer's Uploader interface,
// treating a duplicate response as success.
type clientUploader struct {
	client *api.Client
}

func (u *clientUploader) Upload(filename string, content []byte) error {
	outcome, err := u.client.Upload(filename, content)
	if err != nil {
		return err
	}
	if !outcome.Success {
		return fmt.Errorf("server rejected upload: %s", outcome.Error)
	}
	return nil
}

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "ravenlog-agent: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configDir := flag.String("config", ".", "directory containing ravenlog.cfg.json")
	userID := flag.String("user", "", "user identity for uploads (overrides agent.apiKey)")
	logPath := flag.String("log", "", "path to dcs.log (overrides agent.logPath)")
	flag.Parse()

	if err := config.Load(*configDir); err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:         viper.GetString("logLevel"),
		ConsolePretty: true,
	})
	if err != nil {
		return err
	}
	logger.Info().Str("version", version).Msg("Starting ravenlog-agent")

	identity := *userID
	if identity == "" {
		identity = viper.GetString("agent.apiKey")
	}
	if identity == "" {
		return errors.New("no user identity: set -user or agent.apiKey")
	}

	path := *logPath
	if path == "" {
		path = viper.GetString("agent.logPath")
	}
	if path == "" {
		return errors.New("no log file to follow: set -log or agent.logPath")
	}

	client := api.NewClient(viper.GetString("agent.serverUrl"), identity)
	if err := client.Healthcheck(); err != nil {
		logger.Warn().Err(err).Msg("Server not reachable yet; uploads will retry")
	}

	t := tailer.New(tailer.Config{
		LogPath:     path,
		IdleTimeout: time.Duration(viper.GetInt("agent.idleUploadSeconds")) * time.Second,
	}, &clientUploader{client: client}, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := t.Run(ctx); err != nil {
		return err
	}
	logger.Info().Msg("Stopped")
	return nil
}
