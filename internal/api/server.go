// Package api is the JSON HTTP surface of the service. Authentication is an
// external collaborator: the authenticated user id arrives in the X-User-ID
// header and is trusted as-is.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ravenlog/ravenlog/internal/ingest"
	"github.com/ravenlog/ravenlog/internal/parser"
	"github.com/ravenlog/ravenlog/internal/stats"
	"github.com/ravenlog/ravenlog/internal/storage"
)

// userIDHeader carries the caller identity established by the auth layer.
const userIDHeader = "X-User-ID"

// Server wires the upload service and statistics readers into a chi router.
type Server struct {
	uploads *ingest.Service
	reader  *stats.Reader
	store   storage.Backend
	logger  zerolog.Logger
}

// NewServer creates the API server.
func NewServer(uploads *ingest.Service, reader *stats.Reader, store storage.Backend, logger zerolog.Logger) *Server {
	return &Server{
		uploads: uploads,
		reader:  reader,
		store:   store,
		logger:  logger,
	}
}

// Router builds the HTTP route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthcheck", s.handleHealthcheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.requireUser)

		r.Post("/logs", s.handleUpload)
		r.Get("/logs", s.handleLogHistory)
		r.Get("/logs/{id}", s.handleGetLogFile)
		r.Delete("/logs/{id}", s.handleDeleteLogFile)

		r.Get("/stats", s.handleUserStatistics)
		r.Get("/stats/weapons", s.handleWeaponStatistics)
	})

	return r
}

type ctxKey int

const userIDKey ctxKey = iota

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

// requireUser rejects requests without a caller identity.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(userIDHeader)
		if id == "" {
			s.writeError(w, http.StatusUnauthorized, "missing user identity")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, id)))
	})
}

// requestID tags every request with a UUID for log correlation.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), middleware.RequestIDKey, id)))
	})
}

// requestLogger emits one access log line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// uploadResponse is the body returned for POST /logs.
type uploadResponse struct {
	Success     bool           `json:"success"`
	IsDuplicate bool           `json:"isDuplicate"`
	LogFileID   uint           `json:"logFileId,omitempty"`
	Message     string         `json:"message"`
	Summary     *summaryDigest `json:"summary,omitempty"`
}

type summaryDigest struct {
	TotalEvents       uint     `json:"totalEvents"`
	Missions          uint     `json:"missions"`
	Takeoffs          uint     `json:"takeoffs"`
	Landings          uint     `json:"landings"`
	Shots             uint     `json:"shots"`
	Hits              uint     `json:"hits"`
	Kills             uint     `json:"kills"`
	Deaths            uint     `json:"deaths"`
	FlightTimeSeconds uint     `json:"flightTimeSeconds"`
	AircraftTypes     []string `json:"aircraftTypes"`
	Warnings          []string `json:"warnings,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, ingest.DefaultMaxSizeBytes+1024*1024)

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	result, err := s.uploads.Upload(r.Context(), userID(r), header.Filename, string(content))
	if err != nil {
		s.writeUploadError(w, err)
		return
	}

	if result.IsDuplicate {
		s.writeJSON(w, http.StatusOK, uploadResponse{
			Success:     true,
			IsDuplicate: true,
			Message:     "This file was already uploaded; your statistics did not change.",
		})
		return
	}

	s.writeJSON(w, http.StatusCreated, uploadResponse{
		Success:   true,
		LogFileID: result.LogFileID,
		Message:   "Log file processed.",
		Summary: &summaryDigest{
			TotalEvents:       result.Summary.TotalEvents,
			Missions:          result.Summary.Missions,
			Takeoffs:          result.Summary.Takeoffs,
			Landings:          result.Summary.Landings,
			Shots:             result.Summary.Shots,
			Hits:              result.Summary.Hits,
			Kills:             result.Summary.Kills,
			Deaths:            result.Summary.Deaths,
			FlightTimeSeconds: result.Summary.FlightTimeSeconds,
			AircraftTypes:     result.Summary.AircraftTypes,
			Warnings:          result.Summary.Errors,
		},
	})
}

// writeUploadError maps upload failures to HTTP statuses. Validation and
// size problems carry their specific reason; infrastructure failures get a
// generic message without internal detail.
func (s *Server) writeUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, parser.ErrInvalidLog),
		errors.Is(err, ingest.ErrUnsupportedExtension),
		errors.Is(err, ingest.ErrNothingParsed):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ingest.ErrTooLarge):
		s.writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, context.Canceled):
		// client went away; nothing meaningful to write
		s.writeError(w, http.StatusBadRequest, "upload cancelled")
	default:
		s.logger.Error().Err(err).Msg("upload failed")
		s.writeError(w, http.StatusInternalServerError, "failed to process upload")
	}
}

func (s *Server) handleUserStatistics(w http.ResponseWriter, r *http.Request) {
	view, err := s.reader.UserStatistics(r.Context(), userID(r))
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read user statistics")
		s.writeError(w, http.StatusInternalServerError, "failed to read statistics")
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleWeaponStatistics(w http.ResponseWriter, r *http.Request) {
	views, err := s.reader.WeaponStatistics(r.Context(), userID(r))
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read weapon statistics")
		s.writeError(w, http.StatusInternalServerError, "failed to read statistics")
		return
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleLogHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.reader.LogHistory(r.Context(), userID(r))
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read log history")
		s.writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetLogFile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid log file id")
		return
	}

	file, err := s.store.GetLogFile(r.Context(), userID(r), uint(id))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "log file not found")
			return
		}
		s.logger.Error().Err(err).Msg("failed to read log file")
		s.writeError(w, http.StatusInternalServerError, "failed to read log file")
		return
	}
	s.writeJSON(w, http.StatusOK, file)
}

func (s *Server) handleDeleteLogFile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid log file id")
		return
	}

	if err := s.store.DeleteLogFile(r.Context(), userID(r), uint(id)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "log file not found")
			return
		}
		s.logger.Error().Err(err).Msg("failed to delete log file")
		s.writeError(w, http.StatusInternalServerError, "failed to delete log file")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}
