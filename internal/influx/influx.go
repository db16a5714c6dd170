package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/ravenlog/ravenlog/pkg/core"
)

// Manager handles InfluxDB connections and per-upload measurement writes.
// It implements ingest.Reporter.
type Manager struct {
	Client       influxdb2.Client
	Writer       influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	Bucket       string
	Logger       zerolog.Logger
	BackupPath   string
}

// NewManager creates a new InfluxDB manager.
func NewManager(log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		IsValid:    false,
		Bucket:     viper.GetString("influx.bucket"),
		Logger:     log,
		BackupPath: backupPath,
	}
}

// Connect establishes a connection to InfluxDB. If the server is not
// reachable, points are appended to a gzip backup file instead.
func (m *Manager) Connect() error {
	if !viper.GetBool("influx.enabled") {
		return errors.New("influx.enabled is false")
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf(
			"%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		viper.GetString("influx.token"),
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.Client.Ping(context.Background())

	if err != nil || !running {
		m.IsValid = false
		if m.BackupWriter == nil && m.BackupPath != "" {
			m.Logger.Info().Str("backupPath", m.BackupPath).
				Msg("Failed to initialize InfluxDB client, writing to backup file")

			file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("error creating backup file: %v", err)
			}
			m.BackupWriter = gzip.NewWriter(file)
		}
	} else {
		m.IsValid = true
		m.Writer = m.Client.WriteAPI(viper.GetString("influx.org"), m.Bucket)
		m.Logger.Info().Msg("InfluxDB client initialized")
	}

	return nil
}

// ReportUpload writes one measurement point per upload attempt.
func (m *Manager) ReportUpload(userID, outcome string, summary core.Summary, duration time.Duration) {
	point := influxdb2_write.NewPoint(
		"flight_log_uploads",
		map[string]string{
			"user":    userID,
			"outcome": outcome,
		},
		map[string]interface{}{
			"events":            int64(summary.TotalEvents),
			"missions":          int64(summary.Missions),
			"shots":             int64(summary.Shots),
			"kills":             int64(summary.Kills),
			"flightTimeSeconds": int64(summary.FlightTimeSeconds),
			"lineErrors":        int64(len(summary.Errors)),
			"durationMs":        duration.Milliseconds(),
		},
		time.Now(),
	)

	if m.IsValid && m.Writer != nil {
		m.Writer.WritePoint(point)
		return
	}

	if m.BackupWriter != nil {
		line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
		if _, err := m.BackupWriter.Write([]byte(line)); err != nil {
			m.Logger.Error().Err(err).Msg("Failed to write point to backup file")
		}
	}
}

// Close flushes pending writes and shuts down the client.
func (m *Manager) Close() {
	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}
	if m.BackupWriter != nil {
		if err := m.BackupWriter.Close(); err != nil {
			m.Logger.Error().Err(err).Msg("Failed to close backup writer")
		}
	}
}
