// Package api provides the read-only HTTP API for inspecting finished
// simulation runs. All endpoints are GET; the simulation itself is never
// mutated over HTTP.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/bazaar/internal/evaluation"
	"github.com/talgya/bazaar/internal/persistence"
	"github.com/talgya/bazaar/internal/trade"
)

// Server serves run results over HTTP.
type Server struct {
	Store *persistence.Store // nil disables DB-backed endpoints
	Port  int

	RunID     string
	Metrics   evaluation.Metrics
	TickStats []trade.MarketTickStats
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	// The results endpoint pages through the database; keep scrapers polite.
	resultsLimiter := NewRateLimiter(120, time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/summary", s.handleSummary)
	mux.HandleFunc("/api/v1/ticks", s.handleTicks)
	mux.HandleFunc("/api/v1/results", RateLimitMiddleware(resultsLimiter, s.handleResults))
	mux.HandleFunc("/api/v1/runs", s.handleRuns)

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "run_id", s.RunID)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/summary", s.handleSummary)
	mux.HandleFunc("/api/v1/ticks", s.handleTicks)
	mux.HandleFunc("/api/v1/results", s.handleResults)
	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"run_id":       s.RunID,
		"negotiations": s.Metrics.TotalNegotiations,
		"deals":        s.Metrics.DealsMade,
		"ticks":        len(s.TickStats),
		"db":           s.Store != nil,
	}
	writeJSON(w, status)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Metrics)
}

func (s *Server) handleTicks(w http.ResponseWriter, r *http.Request) {
	// Prefer the database (supports querying past runs); fall back to the
	// in-memory stats of the current run.
	runID := r.URL.Query().Get("run")
	if runID == "" {
		runID = s.RunID
	}

	if s.Store != nil {
		stats, err := s.Store.TickStatsForRun(runID)
		if err != nil {
			slog.Error("tick stats query failed", "error", err, "run_id", runID)
			http.Error(w, "query failed", http.StatusInternalServerError)
			return
		}
		if len(stats) > 0 || runID != s.RunID {
			writeJSON(w, stats)
			return
		}
	}
	writeJSON(w, s.TickStats)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	runID := r.URL.Query().Get("run")
	if runID == "" {
		runID = s.RunID
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	rows, err := s.Store.ResultsForRun(runID, limit)
	if err != nil {
		slog.Error("results query failed", "error", err, "run_id", runID)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []persistence.ResultRow{}
	}

	// Optional outcome filter: ?deal=true or ?deal=false.
	if d := r.URL.Query().Get("deal"); d != "" {
		want := d == "true"
		filtered := rows[:0]
		for _, row := range rows {
			if row.DealMade == want {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	writeJSON(w, rows)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	runs, err := s.Store.Runs(limit)
	if err != nil {
		slog.Error("runs query failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []persistence.RunRecord{}
	}
	writeJSON(w, runs)
}

func clientIP(r *http.Request) string {
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx >= 0 {
		ip = ip[:idx]
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip = xff
		if idx := strings.Index(xff, ","); idx >= 0 {
			ip = xff[:idx]
		}
	}
	return ip
}
