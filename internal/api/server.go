// Package api provides the HTTP API for the game.
// GET endpoints are public. Player commands are rate limited per IP.
// Admin endpoints (speed, save, world events) require a bearer token.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/archipelago/internal/catalog"
	"github.com/talgya/archipelago/internal/city"
	"github.com/talgya/archipelago/internal/engine"
	"github.com/talgya/archipelago/internal/validation"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Saver persists a game state. *persistence.DB satisfies it.
type Saver interface {
	SaveState(s *engine.GameState) error
}

// Server serves the game over HTTP.
type Server struct {
	Game     *engine.Game
	Eng      *engine.Engine // Optional; speed endpoints answer 503 without it
	Saver    Saver          // Optional; save answers 503 without it
	Port     int
	AdminKey string // Bearer token for admin endpoints. Empty = admin disabled.
	Limiter  *RateLimiter

	// Active stream connection count (atomic).
	streamConns int32
	upgrader    websocket.Upgrader
}

// Handler builds the routing table.
func (s *Server) Handler() http.Handler {
	limiter := s.Limiter
	if limiter == nil {
		limiter = NewRateLimiter(10, 20)
		s.Limiter = limiter
	}
	cmd := func(h http.HandlerFunc) http.HandlerFunc { return RateLimitMiddleware(limiter, h) }
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4 * 1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()

	// Public reads.
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/state", s.handleState)
	mux.HandleFunc("GET /api/v1/islands", s.handleIslands)
	mux.HandleFunc("GET /api/v1/cities", s.handleCities)
	mux.HandleFunc("GET /api/v1/cities/{id}", s.handleCity)
	mux.HandleFunc("GET /api/v1/cities/{id}/resources", s.handleResources)
	mux.HandleFunc("GET /api/v1/technologies", s.handleTechnologies)
	mux.HandleFunc("GET /api/v1/market/{resource}", s.handleMarket)
	mux.HandleFunc("GET /api/v1/orders/{id}", s.handleOrder)

	// Player commands.
	mux.HandleFunc("POST /api/v1/cities/{id}/build", cmd(s.handleBuild))
	mux.HandleFunc("DELETE /api/v1/cities/{id}/build/{entry}", cmd(s.handleCancelBuild))
	mux.HandleFunc("POST /api/v1/cities/{id}/recruit", cmd(s.handleRecruit))
	mux.HandleFunc("DELETE /api/v1/cities/{id}/recruit/{entry}", cmd(s.handleCancelRecruit))
	mux.HandleFunc("POST /api/v1/cities/{id}/research", cmd(s.handleResearch))
	mux.HandleFunc("DELETE /api/v1/research/{entry}", cmd(s.handleCancelResearch))
	mux.HandleFunc("POST /api/v1/cities/{id}/attack", cmd(s.handleAttack))
	mux.HandleFunc("POST /api/v1/combat/simulate", cmd(s.handleSimulate))
	mux.HandleFunc("POST /api/v1/orders", cmd(s.handlePlaceOrder))
	mux.HandleFunc("DELETE /api/v1/orders/{id}", cmd(s.handleCancelOrder))

	// Event stream (websocket).
	mux.HandleFunc("GET /api/v1/stream", s.handleStream)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/save", s.adminOnly(s.handleSave))
	mux.HandleFunc("/api/v1/world-events", s.adminOnly(s.handleWorldEvent))

	return corsMiddleware(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		prune := time.NewTicker(10 * time.Minute)
		defer prune.Stop()
		for {
			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					slog.Error("HTTP shutdown error", "error", err)
				}
				return
			case <-prune.C:
				s.Limiter.Prune(time.Hour)
			}
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
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

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no ARCHIPELAGO_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

type statusResponse struct {
	engine.Status
	Speed   float64 `json:"speed"`
	Tick    uint64  `json:"tick"`
	Running bool    `json:"running"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Status: s.Game.Status()}
	if s.Eng != nil {
		resp.Speed = s.Eng.Speed()
		resp.Tick = s.Eng.Tick()
		resp.Running = s.Eng.Running()
	}
	writeJSON(w, resp)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Game.State())
}

func (s *Server) handleIslands(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Game.Islands())
}

type citySummary struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Owner      string  `json:"owner"`
	IslandID   string  `json:"island_id"`
	Population float64 `json:"population"`
}

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	cities := s.Game.Cities()
	out := make([]citySummary, 0, len(cities))
	for _, c := range cities {
		out = append(out, citySummary{
			ID:         c.ID,
			Name:       c.Name,
			Owner:      c.Owner,
			IslandID:   c.IslandID,
			Population: c.Population,
		})
	}
	writeJSON(w, out)
}

func (s *Server) handleCity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, err := s.Game.City(id)
	if err != nil {
		writeError(w, err)
		return
	}
	econ, err := s.Game.Economy(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"city": c, "economy": econ})
}

func (s *Server) handleResources(w http.ResponseWriter, r *http.Request) {
	pool, err := s.Game.Resources(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, pool)
}

func (s *Server) handleTechnologies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Game.Technologies())
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	view, err := s.Game.Market(catalog.ResourceKind(r.PathValue("resource")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, view)
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.Game.Order(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, o)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "engine not running", http.StatusServiceUnavailable)
		return
	}
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var req struct {
			Speed float64 `json:"speed"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Speed < 0 || req.Speed > 10000 {
			http.Error(w, "speed must be 0-10000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.Saver == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	state := s.Game.State()
	if err := s.Saver.SaveState(state); err != nil {
		slog.Error("save failed", "error", err)
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"game_time": state.LastUpdate,
		"cities":    len(state.Cities),
		"message":   "game saved",
	})
}

// handleWorldEvent lists active world events, or forces one to start.
func (s *Server) handleWorldEvent(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, s.Game.Status().WorldEvents)
	case http.MethodPost:
		var req struct {
			Kind string `json:"kind"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		ev, err := s.Game.StartWorldEvent(req.Kind)
		if err != nil {
			writeError(w, err)
			return
		}
		slog.Info("world event forced", "kind", ev.Kind, "ends", ev.EndsAt)
		writeJSON(w, ev)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

// statusFor maps a rejection code to an HTTP status.
func statusFor(code validation.Code) int {
	switch code {
	case validation.NotFound:
		return http.StatusNotFound
	case validation.UnknownKind, validation.InvalidArgument:
		return http.StatusBadRequest
	case validation.QueueFull, validation.AlreadyDone:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

// writeError answers a rejected action with its code, or 500 for anything
// else.
func writeError(w http.ResponseWriter, err error) {
	if ve, ok := validation.As(err); ok {
		writeJSONStatus(w, statusFor(ve.Code), ve)
		return
	}
	slog.Error("request failed", "error", err)
	writeJSONStatus(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

// armyParam decodes a unit map from a request.
type armyParam map[catalog.UnitKind]int

func (a armyParam) stack() city.UnitStack {
	out := make(city.UnitStack, len(a))
	for k, n := range a {
		out[k] = n
	}
	return out
}
