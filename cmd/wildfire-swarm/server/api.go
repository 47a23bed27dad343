package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Shybit1/drone-swarm-comms/cmd/wildfire-swarm/core"
	"github.com/Shybit1/drone-swarm-comms/pkg/logger"
)

// APIServer serves the REST monitoring surface. It talks to the kernel
// exclusively through the command inbox and the snapshot outbox, so the
// tick thread never shares mutable state with HTTP handlers.
type APIServer struct {
	kernel *core.Kernel
	server *http.Server
}

// NewAPIServer builds the server on the given port.
func NewAPIServer(kernel *core.Kernel, port int) *APIServer {
	s := &APIServer{kernel: kernel}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/health", s.handleHealth)
	mux.HandleFunc("/api/v1/simulation/state", s.handleState)
	mux.HandleFunc("/api/v1/simulation/start", s.handleStart)
	mux.HandleFunc("/api/v1/simulation/stop", s.handleStop)
	mux.HandleFunc("/api/v1/drones", s.handleDrones)
	mux.HandleFunc("/api/v1/drones/", s.handleDroneByID)
	mux.HandleFunc("/api/v1/fire/ignite", s.handleIgnite)
	mux.HandleFunc("/api/v1/fire/suppress", s.handleSuppress)
	mux.HandleFunc("/api/v1/fire/state", s.handleFireState)
	mux.HandleFunc("/api/v1/metrics", s.handleMetrics)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	return s
}

// Handler exposes the mux for tests.
func (s *APIServer) Handler() http.Handler { return s.server.Handler }

// Start runs the server until Shutdown.
func (s *APIServer) Start() error {
	logger.Infof("API server listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *APIServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *APIServer) submit(w http.ResponseWriter, r *http.Request, cmd core.KernelCommand) (core.CommandResult, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := s.kernel.Submit(ctx, cmd)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "kernel unavailable")
		return core.CommandResult{}, false
	}
	return res, true
}

func (s *APIServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *APIServer) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	snap, _ := s.kernel.Outbox().Latest()
	writeJSON(w, http.StatusOK, snap)
}

func (s *APIServer) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	res, ok := s.submit(w, r, core.KernelCommand{Kind: core.CmdStart})
	if !ok {
		return
	}
	if res.AlreadyInState {
		writeError(w, http.StatusConflict, "simulation already running")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{})
}

func (s *APIServer) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	if _, ok := s.submit(w, r, core.KernelCommand{Kind: core.CmdStop}); !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{})
}

func (s *APIServer) handleDrones(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	snap, _ := s.kernel.Outbox().Latest()
	drones := snap.Drones
	if drones == nil {
		drones = []core.DroneSnapshot{}
	}
	writeJSON(w, http.StatusOK, drones)
}

func (s *APIServer) handleDroneByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	idStr := strings.TrimPrefix(r.URL.Path, "/api/v1/drones/")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid drone id")
		return
	}

	snap, _ := s.kernel.Outbox().Latest()
	for _, d := range snap.Drones {
		if d.ID == id {
			writeJSON(w, http.StatusOK, d)
			return
		}
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("drone %d not found", id))
}

type igniteRequest struct {
	X         float64  `json:"x"`
	Y         float64  `json:"y"`
	Intensity *float64 `json:"intensity"`
}

func (s *APIServer) handleIgnite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req igniteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	intensity := 1.0
	if req.Intensity != nil {
		intensity = *req.Intensity
	}

	res, ok := s.submit(w, r, core.KernelCommand{
		Kind: core.CmdIgnite, X: req.X, Y: req.Y, Intensity: intensity,
	})
	if !ok {
		return
	}
	if res.Err != nil {
		writeError(w, http.StatusBadRequest, res.Err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

type suppressRequest struct {
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Strength *float64 `json:"strength"`
}

func (s *APIServer) handleSuppress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req suppressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	strength := 1.0
	if req.Strength != nil {
		strength = *req.Strength
	}

	res, ok := s.submit(w, r, core.KernelCommand{
		Kind: core.CmdSuppress, X: req.X, Y: req.Y, Strength: strength,
	})
	if !ok {
		return
	}
	if res.Err != nil {
		writeError(w, http.StatusBadRequest, res.Err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":             true,
		"cells_affected": res.CellsAffected,
	})
}

func (s *APIServer) handleFireState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	snap, _ := s.kernel.Outbox().Latest()
	burning := snap.BurningCells
	if burning == nil {
		burning = []core.BurningCell{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary":       snap.FireSummary,
		"wind":          snap.Wind,
		"burning_cells": burning,
	})
}

func (s *APIServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	m, ok := s.kernel.Metrics().Latest()
	if !ok {
		writeJSON(w, http.StatusOK, core.MetricsSnapshot{})
		return
	}
	writeJSON(w, http.StatusOK, m)
}
