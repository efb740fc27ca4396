package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aldehir/cache-service/cache"
	"github.com/aldehir/cache-service/types"
)

const (
	addMsg       = "Entry added successfully."
	removeMsg    = "Entry removed from cache and DB successfully."
	removeAllMsg = "All entries removed from cache and DB successfully."
	clearMsg     = "All entries cleared from cache successfully."
)

// maxRecordBytes caps the size of a request body.
const maxRecordBytes = 1 << 20

// CacheService is the set of cache operations the HTTP layer exposes.
type CacheService interface {
	Add(ctx context.Context, rec types.Record) error
	Get(ctx context.Context, id int64) (types.Record, error)
	Remove(ctx context.Context, rec types.Record) error
	RemoveAll(ctx context.Context) error
	Clear()
	Snapshot() (cache.Stats, []int64)
}

type ErrorResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
}

type StatsResponse struct {
	cache.Stats
	HitRate float64 `json:"hit_rate"`
	Keys    []int64 `json:"keys"`
}

type Server struct {
	cache  CacheService
	logger *slog.Logger
	mux    *http.ServeMux
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func NewServer(c CacheService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	mux := http.NewServeMux()
	server := &Server{
		cache:  c,
		logger: logger,
		mux:    mux,
	}

	mux.HandleFunc("POST /cache/add", server.handleAdd)
	mux.HandleFunc("DELETE /cache/remove", server.handleRemove)
	mux.HandleFunc("DELETE /cache/removeAll", server.handleRemoveAll)
	mux.HandleFunc("DELETE /cache/clear", server.handleClear)
	mux.HandleFunc("GET /cache/get/{id}", server.handleGet)
	mux.HandleFunc("GET /cache/stats", server.handleStats)
	mux.HandleFunc("GET /healthz", server.handleHealth)

	return server
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.decodeRecord(w, r)
	if !ok {
		return
	}

	s.logger.Info("Adding new entry to cache", "id", rec.ID)
	if err := s.cache.Add(r.Context(), rec); err != nil {
		s.writeError(w, err)
		return
	}
	writeText(w, addMsg)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.decodeRecord(w, r)
	if !ok {
		return
	}

	s.logger.Info("Removing entry from cache and store", "id", rec.ID)
	if err := s.cache.Remove(r.Context(), rec); err != nil {
		s.writeError(w, err)
		return
	}
	writeText(w, removeMsg)
}

func (s *Server) handleRemoveAll(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("Removing all entries from cache and store")
	if err := s.cache.RemoveAll(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeText(w, removeAllMsg)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("Clearing entries from cache")
	s.cache.Clear()
	writeText(w, clearMsg)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, newErrorResponse(http.StatusBadRequest, "Bad Request", "id must be an integer"))
		return
	}

	s.logger.Info("Getting entry from cache or store", "id", id)
	rec, err := s.cache.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, keys := s.cache.Snapshot()
	s.writeJSON(w, http.StatusOK, StatsResponse{
		Stats:   stats,
		HitRate: stats.HitRate(),
		Keys:    keys,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeText(w, "ok")
}

func (s *Server) decodeRecord(w http.ResponseWriter, r *http.Request) (types.Record, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRecordBytes)

	var rec types.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeJSON(w, http.StatusRequestEntityTooLarge,
				newErrorResponse(http.StatusRequestEntityTooLarge, "Payload Too Large", "Request body too large"))
			return types.Record{}, false
		}
		s.writeJSON(w, http.StatusBadRequest, newErrorResponse(http.StatusBadRequest, "Bad Request", "Invalid JSON"))
		return types.Record{}, false
	}
	return rec, true
}

// writeError maps not-found to 404 and anything else to a generic 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var nf *cache.NotFoundError
	if errors.As(err, &nf) {
		s.writeJSON(w, http.StatusNotFound, newErrorResponse(http.StatusNotFound, "Resource Not found", nf.Error()))
		return
	}

	s.logger.Error("Request failed", "error", err)
	s.writeJSON(w, http.StatusInternalServerError,
		newErrorResponse(http.StatusInternalServerError, "An Error Occured", "The request could not be completed"))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", "error", err)
	}
}

func writeText(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, msg)
}

func newErrorResponse(status int, title, msg string) ErrorResponse {
	return ErrorResponse{
		Timestamp: time.Now(),
		Status:    status,
		Error:     title,
		Message:   msg,
	}
}
