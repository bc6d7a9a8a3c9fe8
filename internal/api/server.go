// Package api serves the simulation over HTTP and WebSocket. GET
// endpoints are read-only queries against coordinator snapshots; POST
// endpoints drive the command surface (create/remove/start/stop/reset/
// config). The WebSocket endpoint carries the scheduler's broadcast.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/oscillon/internal/engine"
	"github.com/talgya/oscillon/internal/osc"
)

// defaultHistoryCount is returned when a history query omits last_n.
const defaultHistoryCount = 100

// Server serves the simulation state over HTTP.
type Server struct {
	Coord *engine.Coordinator
	Hub   *Hub
	Port  int

	started time.Time
}

// Routes builds the HTTP handler. Split from Start so tests can mount it
// on httptest.
func (s *Server) Routes() http.Handler {
	if s.started.IsZero() {
		s.started = time.Now()
	}

	historyLimiter := NewRateLimiter(120, time.Minute)
	analyticsLimiter := NewRateLimiter(60, time.Minute)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/simulation/state", s.handleSimulationState)
	mux.HandleFunc("/api/simulation/start", s.handleStart)
	mux.HandleFunc("/api/simulation/stop", s.handleStop)
	mux.HandleFunc("/api/simulation/reset", s.handleReset)
	mux.HandleFunc("/api/simulation/config", s.handleConfig)

	mux.HandleFunc("/api/oscillators/create", s.handleCreate)
	mux.HandleFunc("/api/oscillators", s.handleOscillators)
	mux.HandleFunc("/api/oscillators/", s.handleOscillatorRoutes(historyLimiter))

	mux.HandleFunc("/api/visualization/data", s.handleVisualization)
	mux.HandleFunc("/api/analytics/system", RateLimitMiddleware(analyticsLimiter, s.handleAnalytics))

	if s.Hub != nil {
		mux.HandleFunc("/api/ws", s.Hub.handleWS)
	}

	mux.HandleFunc("/health", s.handleHealth)

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	handler := s.Routes()
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr)

	go func() {
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins. Set
// CORS_ORIGINS to a comma-separated list of allowed origins; localhost
// dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
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
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.Coord.Snapshot()
	subscribers := 0
	if s.Hub != nil {
		subscribers = s.Hub.SubscriberCount()
	}
	writeJSON(w, map[string]any{
		"service":          "oscillon",
		"started":          s.started.UTC().Format(time.RFC3339),
		"uptime":           humanize.Time(s.started),
		"running":          snap.Running,
		"oscillator_count": snap.OscillatorCount,
		"simulation_time":  snap.SimulationTime,
		"fps":              snap.GlobalMetrics.FPS,
		"subscribers":      subscribers,
	})
}

func (s *Server) handleSimulationState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Coord.Snapshot())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	s.Coord.Start()
	writeJSON(w, map[string]any{"message": "simulation started"})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	s.Coord.Stop()
	writeJSON(w, map[string]any{"message": "simulation stopped"})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	s.Coord.Reset()
	writeJSON(w, map[string]any{"message": "simulation reset"})
}

// handleConfig applies a partial configuration update. Out-of-range
// values are clamped; the response carries the effective configuration so
// callers learn what was actually applied.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var patch engine.ConfigPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	effective := s.Coord.UpdateConfig(patch)
	writeJSON(w, map[string]any{
		"message": "configuration updated",
		"config":  effective,
	})
}

type createRequest struct {
	ID         string          `json:"id"`
	Parameters *osc.Parameters `json:"parameters"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	// An empty body is allowed: it means a synthesized id with randomized
	// parameters.
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	id, err := s.Coord.Create(req.ID, req.Parameters)
	if errors.Is(err, engine.ErrAlreadyExists) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	view, _ := s.Coord.OscillatorSnapshot(id)
	writeJSON(w, map[string]any{
		"message":    "oscillator created",
		"id":         id,
		"parameters": view.Parameters,
	})
}

func (s *Server) handleOscillators(w http.ResponseWriter, r *http.Request) {
	snap := s.Coord.Snapshot()
	writeJSON(w, map[string]any{
		"oscillator_count": snap.OscillatorCount,
		"oscillators":      snap.Oscillators,
	})
}

// handleOscillatorRoutes dispatches /api/oscillators/{id} and
// /api/oscillators/{id}/history.
func (s *Server) handleOscillatorRoutes(historyLimiter *RateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/oscillators/")
		if path == "" {
			s.handleOscillators(w, r)
			return
		}

		if id, ok := strings.CutSuffix(path, "/history"); ok {
			RateLimitMiddleware(historyLimiter, func(w http.ResponseWriter, r *http.Request) {
				s.handleHistory(w, r, id)
			})(w, r)
			return
		}

		switch r.Method {
		case http.MethodGet:
			s.handleOscillatorDetail(w, r, path)
		case http.MethodDelete:
			s.handleRemove(w, r, path)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func (s *Server) handleOscillatorDetail(w http.ResponseWriter, r *http.Request, id string) {
	view, err := s.Coord.OscillatorSnapshot(id)
	if errors.Is(err, engine.ErrNotFound) {
		http.Error(w, "oscillator not found", http.StatusNotFound)
		return
	}
	writeJSON(w, view)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request, id string) {
	if !s.Coord.Remove(id) {
		http.Error(w, "oscillator not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{
		"message": "oscillator removed",
		"id":      id,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, id string) {
	lastN := defaultHistoryCount
	if raw := r.URL.Query().Get("last_n"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "invalid last_n", http.StatusBadRequest)
			return
		}
		lastN = n
	}

	entries, err := s.Coord.History(id, lastN)
	if errors.Is(err, engine.ErrNotFound) {
		http.Error(w, "oscillator not found", http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]any{
		"id":             id,
		"history_length": len(entries),
		"history":        entries,
	})
}

func (s *Server) handleVisualization(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Coord.VisualizationSnapshot())
}

// axisStats summarizes one axis across the registry.
type axisStats struct {
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Range float64 `json:"range"`
}

// handleAnalytics serves system-wide per-axis statistics and a stability
// distribution over the registry.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	snap := s.Coord.Snapshot()
	if snap.OscillatorCount == 0 {
		writeJSON(w, map[string]any{"message": "no oscillators in simulation"})
		return
	}

	axes := [4][]float64{}
	var high, medium, low int
	for _, view := range snap.Oscillators {
		axes[0] = append(axes[0], view.State.A1)
		axes[1] = append(axes[1], view.State.A2)
		axes[2] = append(axes[2], view.State.A3)
		axes[3] = append(axes[3], view.State.A4)

		switch stab := view.Derived.Stability; {
		case stab > 0.8:
			high++
		case stab >= 0.5:
			medium++
		default:
			low++
		}
	}

	writeJSON(w, map[string]any{
		"system_metrics": snap.GlobalMetrics,
		"axis_statistics": map[string]axisStats{
			"a1_projection": statsOf(axes[0]),
			"a2_energy":     statsOf(axes[1]),
			"a3_spin":       statsOf(axes[2]),
			"a4_mass":       statsOf(axes[3]),
		},
		"stability_distribution": map[string]int{
			"high_stability":   high,
			"medium_stability": medium,
			"low_stability":    low,
		},
	})
}

func statsOf(values []float64) axisStats {
	min, max := math.Inf(1), math.Inf(-1)
	var sum float64
	for _, v := range values {
		sum += v
		min = math.Min(min, v)
		max = math.Max(max, v)
	}
	return axisStats{
		Mean:  sum / float64(len(values)),
		Min:   min,
		Max:   max,
		Range: max - min,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	subscribers := 0
	if s.Hub != nil {
		subscribers = s.Hub.SubscriberCount()
	}
	writeJSON(w, map[string]any{
		"status":             "healthy",
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
		"simulation_active":  s.Coord.Running(),
		"active_connections": subscribers,
	})
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
