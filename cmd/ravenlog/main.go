// Command ravenlog runs the flight log statistics service: it accepts DCS
// World log uploads over HTTP, parses them into flight statistics, and
// serves the aggregated results back.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/ravenlog/ravenlog/internal/api"
	"github.com/ravenlog/ravenlog/internal/config"
	"github.com/ravenlog/ravenlog/internal/database"
	"github.com/ravenlog/ravenlog/internal/influx"
	"github.com/ravenlog/ravenlog/internal/ingest"
	"github.com/ravenlog/ravenlog/internal/logging"
	"github.com/ravenlog/ravenlog/internal/parser"
	"github.com/ravenlog/ravenlog/internal/stats"
	gormstorage "github.com/ravenlog/ravenlog/internal/storage/gorm"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ravenlog: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configDir := flag.String("config", ".", "directory containing ravenlog.cfg.json")
	flag.Parse()

	if err := config.Load(*configDir); err != nil {
		return err
	}

	sessionStart := time.Now()
	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	logFile, err := os.OpenFile(
		logging.LogFilePath(logsDir, "ravenlog", sessionStart),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644,
	)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	logger, err := logging.New(logging.Config{
		Level:          viper.GetString("logLevel"),
		ConsolePretty:  true,
		LogFile:        logFile,
		GraylogEnabled: viper.GetBool("graylog.enabled"),
		GraylogAddress: viper.GetString("graylog.address"),
	})
	if err != nil {
		return err
	}
	logger.Info().Str("version", version).Msg("Starting ravenlog")

	dbManager := database.NewManager(logger)
	if err := dbManager.Connect(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbManager.SqlDB.Close()

	store := gormstorage.New(gormstorage.Dependencies{
		DB:     dbManager.DB,
		Logger: logger,
	})
	if err := store.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	var reporter ingest.Reporter
	if viper.GetBool("influx.enabled") {
		influxManager := influx.NewManager(logger, logging.LogFilePath(logsDir, "influx_backup", sessionStart)+".gz")
		if err := influxManager.Connect(); err != nil {
			logger.Warn().Err(err).Msg("InfluxDB reporting disabled")
		} else {
			reporter = influxManager
			defer influxManager.Close()
		}
	}

	uploads, err := ingest.New(parser.New(logger), store, logger, ingest.Options{
		Reporter:     reporter,
		MaxSizeBytes: viper.GetInt("upload.maxSizeBytes"),
	})
	if err != nil {
		return fmt.Errorf("failed to create upload service: %w", err)
	}

	reader := stats.NewReader(store, logger)
	server := api.NewServer(uploads, reader, store, logger)

	httpServer := &http.Server{
		Addr:              viper.GetString("server.listenAddr"),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("Listening")
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}

	logger.Info().Msg("Stopped")
	return nil
}
