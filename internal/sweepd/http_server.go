package sweepd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cae-assist/cae-cli/pkg/logger"
)

type HTTPServer struct {
	mux      *http.ServeMux
	store    *SweepStore
	Executor *Executor
}

func NewHTTPServer(store *SweepStore, executor *Executor) *HTTPServer {
	s := &HTTPServer{
		mux:      http.NewServeMux(),
		store:    store,
		Executor: executor,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/sweeps", s.handleSweeps)
	s.mux.HandleFunc("/v1/sweeps/", s.handleSweepByID)

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleSweeps handles /v1/sweeps
func (s *HTTPServer) handleSweeps(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateSweep(w, r)
	case http.MethodGet:
		s.handleListSweeps(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleSweepByID handles /v1/sweeps/{id}, /v1/sweeps/{id}:cancel and
// /v1/sweeps/{id}/result
func (s *HTTPServer) handleSweepByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/sweeps/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "sweep ID is required")
		return
	}

	if strings.HasSuffix(path, ":cancel") {
		sweepID := strings.TrimSuffix(path, ":cancel")
		if r.Method == http.MethodPost {
			s.handleCancelSweep(w, r, sweepID)
		} else {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if strings.HasSuffix(path, "/result") {
		sweepID := strings.TrimSuffix(path, "/result")
		if r.Method == http.MethodGet {
			s.handleGetResult(w, r, sweepID)
		} else {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if r.Method == http.MethodGet {
		s.handleGetSweep(w, r, path)
	} else {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleCreateSweep handles POST /v1/sweeps: it registers the sweep and
// starts it immediately.
func (s *HTTPServer) handleCreateSweep(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SweepID string        `json:"sweep_id,omitempty"`
		Sweep   *SweepRequest `json:"sweep"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Sweep == nil {
		s.writeError(w, http.StatusBadRequest, "sweep is required")
		return
	}
	if _, err := req.Sweep.Spec(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.store.Create(req.SweepID, req.Sweep)
	if err != nil {
		switch {
		case strings.Contains(err.Error(), "already exists"):
			s.writeError(w, http.StatusConflict, err.Error())
		case strings.Contains(err.Error(), "cannot contain"):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	started, err := s.Executor.Start(rec.ID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("sweep created (HTTP)", "sweep_id", started.ID)
	s.writeJSON(w, http.StatusCreated, map[string]any{"sweep": started})
}

// handleListSweeps handles GET /v1/sweeps with optional limit and
// status filtering.
func (s *HTTPServer) handleListSweeps(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
			if limit > 1000 {
				limit = 1000
			}
		}
	}

	statusFilter := Status(strings.ToLower(r.URL.Query().Get("status")))

	sweeps := s.store.List(limit)
	out := make([]*SweepRecord, 0, len(sweeps))
	for _, rec := range sweeps {
		if statusFilter != "" && rec.Status != statusFilter {
			continue
		}
		out = append(out, rec)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"sweeps": out,
		"pagination": map[string]any{
			"limit": limit,
			"count": len(out),
		},
	})
}

// handleGetSweep handles GET /v1/sweeps/{id}
func (s *HTTPServer) handleGetSweep(w http.ResponseWriter, _ *http.Request, sweepID string) {
	rec, ok := s.store.Get(sweepID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "sweep not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sweep": rec})
}

// handleGetResult handles GET /v1/sweeps/{id}/result
func (s *HTTPServer) handleGetResult(w http.ResponseWriter, _ *http.Request, sweepID string) {
	rec, ok := s.store.Get(sweepID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "sweep not found")
		return
	}
	if rec.Result == nil {
		s.writeError(w, http.StatusPreconditionFailed, "result not available")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"result": rec.Result})
}

// handleCancelSweep handles POST /v1/sweeps/{id}:cancel
func (s *HTTPServer) handleCancelSweep(w http.ResponseWriter, _ *http.Request, sweepID string) {
	updated, err := s.Executor.Stop(sweepID)
	if err != nil {
		switch {
		case errors.Is(err, ErrSweepNotFound):
			s.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, ErrSweepIDMissing):
			s.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrSweepTerminal):
			s.writeError(w, http.StatusConflict, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	logger.Info("sweep cancelled (HTTP)", "sweep_id", sweepID)
	s.writeJSON(w, http.StatusOK, map[string]any{"sweep": updated})
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{"error": message})
}
