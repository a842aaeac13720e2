// Package api provides the read-only HTTP API for querying stored runs.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/floodsim/internal/agents"
	"github.com/talgya/floodsim/internal/persistence"
	"github.com/talgya/floodsim/internal/record"
)

// Server serves stored runs over HTTP.
type Server struct {
	DB   *persistence.DB
	Port int

	// RateLimit is the request budget per client per minute. Zero disables limiting.
	RateLimit int
}

// Handler builds the routed handler with its middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/runs", s.handleRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", s.handleRun)
	mux.HandleFunc("GET /api/v1/runs/{id}/stats", s.handleStats)
	mux.HandleFunc("GET /api/v1/runs/{id}/value", s.handleValue)
	mux.HandleFunc("GET /api/v1/runs/{id}/years/{year}", s.handleYear)
	mux.HandleFunc("GET /api/v1/runs/{id}/agents/{agent}", s.handleSeries)

	var handler http.Handler = mux
	if s.RateLimit > 0 {
		handler = RateLimitMiddleware(NewRateLimiter(s.RateLimit, time.Minute), handler)
	}
	return corsMiddleware(handler)
}

// ListenAndServe serves the API until the server fails.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "rate_limit", s.RateLimit)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.DB.Runs()
	if err != nil {
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []persistence.Run{}
	}
	writeJSON(w, runs)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.DB.GetRun(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, run)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.DB.GetRun(id); err != nil {
		writeError(w, err)
		return
	}
	stats, err := s.DB.Stats(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"run": id, "years": stats})
}

// handleValue answers GET /api/v1/runs/{id}/value?attr=damage&agent=3&year=7.
func (s *Server) handleValue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	attr, err := record.ParseAttribute(q.Get("attr"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	agent, err := strconv.ParseUint(q.Get("agent"), 10, 64)
	if err != nil {
		http.Error(w, "invalid agent", http.StatusBadRequest)
		return
	}
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		http.Error(w, "invalid year", http.StatusBadRequest)
		return
	}

	v, err := s.DB.Value(r.PathValue("id"), attr, agents.HouseholdID(agent), year)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"attr":  attr,
		"agent": agent,
		"year":  year,
		"value": v,
	})
}

func (s *Server) handleYear(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		http.Error(w, "invalid year", http.StatusBadRequest)
		return
	}
	rows, err := s.DB.Year(r.PathValue("id"), year)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(rows) == 0 {
		http.Error(w, "year not recorded", http.StatusNotFound)
		return
	}
	writeJSON(w, rows)
}

// handleSeries answers GET /api/v1/runs/{id}/agents/{agent}?attr=fear.
// attr defaults to damage.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	agent, err := strconv.ParseUint(r.PathValue("agent"), 10, 64)
	if err != nil {
		http.Error(w, "invalid agent", http.StatusBadRequest)
		return
	}
	name := r.URL.Query().Get("attr")
	if name == "" {
		name = string(record.AttrDamage)
	}
	attr, err := record.ParseAttribute(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	points, err := s.DB.Series(r.PathValue("id"), attr, agents.HouseholdID(agent))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"agent":  agent,
		"attr":   attr,
		"series": points,
	})
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, persistence.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	slog.Error("api query failed", "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
