package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nicheradar/nicheradar/internal/store"
	"github.com/nicheradar/nicheradar/pkg/discovery"
)

// Server provides the HTTP API over the discovery engine. It is a
// thin serialization layer; all pipeline logic lives in the engine.
type Server struct {
	store store.Store
	orch  *discovery.Orchestrator
	port  int
}

// New creates a new HTTP server.
func New(s store.Store, orch *discovery.Orchestrator, port int) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{
		store: s,
		orch:  orch,
		port:  port,
	}
}

// Handler returns the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/niches", s.handleNiches)
	mux.HandleFunc("/api/v1/niches/", s.handleNicheTrend)
	mux.HandleFunc("/api/v1/discover", s.handleDiscover)
	mux.HandleFunc("/api/v1/sources", s.handleSources)
	return mux
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.port)
	fmt.Printf("nicheradar server listening on %s\n", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"state":  string(s.orch.State()),
	})
}

func (s *Server) handleNiches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	opts := store.NicheListOpts{Limit: 100, ActiveOnly: true}
	if min := r.URL.Query().Get("min_score"); min != "" {
		fmt.Sscanf(min, "%f", &opts.MinScore)
	}
	if r.URL.Query().Get("include_inactive") == "true" {
		opts.ActiveOnly = false
	}

	niches, err := s.store.ListNiches(r.Context(), opts)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  niches,
		"count": len(niches),
	})
}

// handleNicheTrend serves GET /api/v1/niches/{id}/trend.
func (s *Server) handleNicheTrend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/niches/")
	nicheID, ok := strings.CutSuffix(rest, "/trend")
	if !ok || nicheID == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	window := 0
	if win := r.URL.Query().Get("window"); win != "" {
		fmt.Sscanf(win, "%d", &window)
	}

	series, err := s.orch.Trend(r.Context(), nicheID, window)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, series)
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Seeds  []string `json:"seeds"`
		Target int      `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := s.orch.Discover(r.Context(), req.Seeds, req.Target)
	switch {
	case errors.Is(err, discovery.ErrRunInProgress):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	case errors.Is(err, discovery.ErrEmptySeeds):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	case err != nil:
		resp := map[string]any{"error": err.Error()}
		if result != nil {
			resp["result"] = result
		}
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	src, err := s.store.GetSource(r.Context(), "youtube")
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{"data": []store.Source{}, "count": 0})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  []store.Source{*src},
		"count": 1,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
