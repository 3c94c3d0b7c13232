// Package api exposes the simulation control surface over HTTP:
// start/stop/burst/list plus room observation, health, metrics, and the
// websocket message feed.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kindledapp/agentsim/internal/backend"
	"github.com/kindledapp/agentsim/internal/sim"
)

// Control is the simulation registry surface the API depends on.
type Control interface {
	Start(ctx context.Context, cfg sim.Config) (string, error)
	Stop(id string) error
	TriggerBurst()
	Active() []sim.Status
}

// RoomReader is the read-only store view for observation endpoints.
type RoomReader interface {
	Rooms(ctx context.Context) ([]backend.Room, error)
}

// Server routes the control API.
type Server struct {
	Control  Control
	Rooms    RoomReader
	WS       http.HandlerFunc // websocket feed; nil disables /ws
	AdminKey string           // Bearer token for mutating endpoints. Empty = open.
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	burstLimiter := NewRateLimiter(6, time.Minute)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	if s.WS != nil {
		r.Get("/ws", s.WS)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/simulations", s.handleList)
		r.Get("/rooms", s.handleRooms)

		r.Group(func(r chi.Router) {
			r.Use(s.adminOnly)
			r.Post("/simulations", s.handleStart)
			r.Delete("/simulations/{id}", s.handleStop)
			r.Post("/simulations/burst", burstLimiter.Middleware(s.handleBurst))
		})
	})
	return r
}

// adminOnly enforces the bearer admin key on mutating endpoints when one
// is configured.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey != "" && r.Header.Get("Authorization") != "Bearer "+s.AdminKey {
			writeError(w, http.StatusUnauthorized, "admin key required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// startRequest is the wire form of a simulation config.
type startRequest struct {
	Population int `json:"population"`
	Center     struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"center"`
	RadiusM       float64            `json:"radius_m"`
	ResponseSpeed string             `json:"response_speed"`
	ActivityLevel string             `json:"activity_level"`
	Mix           sim.PersonalityMix `json:"personality_mix"`
	Behaviors     sim.BehaviorFlags  `json:"behaviors"`
}

func (req startRequest) toConfig() (sim.Config, error) {
	speed := sim.SpeedRealistic
	if req.ResponseSpeed != "" {
		var err error
		if speed, err = sim.ParseResponseSpeed(req.ResponseSpeed); err != nil {
			return sim.Config{}, err
		}
	}
	activity := sim.ActivityMedium
	if req.ActivityLevel != "" {
		var err error
		if activity, err = sim.ParseActivityLevel(req.ActivityLevel); err != nil {
			return sim.Config{}, err
		}
	}

	return sim.Config{
		Population: req.Population,
		CenterLat:  req.Center.Lat,
		CenterLng:  req.Center.Lng,
		RadiusM:    req.RadiusM,
		Speed:      speed,
		Activity:   activity,
		Mix:        req.Mix,
		Behaviors:  req.Behaviors,
	}, nil
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cfg, err := req.toConfig()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.Control.Start(r.Context(), cfg)
	if err != nil {
		// Invalid input is the only error surfaced to the UI.
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"simulation_id": id})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Control.Stop(id); err != nil {
		if errors.Is(err, sim.ErrSimulationNotFound) {
			writeError(w, http.StatusNotFound, "simulation not found")
			return
		}
		slog.Error("stop failed", "simulation", id, "error", err)
		writeError(w, http.StatusInternalServerError, "stop failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"stopped": id})
}

func (s *Server) handleBurst(w http.ResponseWriter, r *http.Request) {
	s.Control.TriggerBurst()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "burst triggered"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"simulations": s.Control.Active()})
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.Rooms.Rooms(r.Context())
	if err != nil {
		slog.Error("room read failed", "error", err)
		writeError(w, http.StatusInternalServerError, "room read failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
