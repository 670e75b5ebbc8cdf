// Package httpapi exposes the research orchestrator over HTTP: async session
// submission, result retrieval, listings, health, and live event streaming
// via SSE and WebSocket.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/praxis-labs/deepresearch/internal/research"
	"github.com/praxis-labs/deepresearch/internal/session"
)

// Runner starts research sessions. Implemented by research.Orchestrator.
type Runner interface {
	ConductResearchWithID(ctx context.Context, id, query string, maxIterations int) *research.Result
}

// ResearchHandler serves the /api/research endpoints.
type ResearchHandler struct {
	runner        Runner
	store         session.Store
	logger        *zap.Logger
	defaultMaxIts int

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewResearchHandler creates the handler. defaultMaxIterations applies when a
// submit omits max_iterations.
func NewResearchHandler(runner Runner, store session.Store, logger *zap.Logger, defaultMaxIterations int) *ResearchHandler {
	return &ResearchHandler{
		runner:        runner,
		store:         store,
		logger:        logger,
		defaultMaxIts: defaultMaxIterations,
		inFlight:      make(map[string]struct{}),
	}
}

// RegisterRoutes registers the research routes on the provided mux.
func (h *ResearchHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/research", h.handleResearch)
	mux.HandleFunc("/api/research/", h.handleResearchByID)
	mux.HandleFunc("/healthz", h.handleHealth)
}

type submitRequest struct {
	Query         string `json:"query"`
	MaxIterations *int   `json:"max_iterations,omitempty"`
}

type submitResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	StreamURL string `json:"stream_url"`
}

func (h *ResearchHandler) handleResearch(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleSubmit(w, r)
	case http.MethodGet:
		h.handleList(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *ResearchHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	maxIterations := h.defaultMaxIts
	if req.MaxIterations != nil {
		if *req.MaxIterations < 0 {
			writeError(w, http.StatusBadRequest, "max_iterations must be >= 0")
			return
		}
		maxIterations = *req.MaxIterations
	}

	id := uuid.New().String()
	h.mu.Lock()
	h.inFlight[id] = struct{}{}
	h.mu.Unlock()

	// The session outlives the submit request; it carries its own deadline.
	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.inFlight, id)
			h.mu.Unlock()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		h.runner.ConductResearchWithID(ctx, id, req.Query, maxIterations)
	}()

	h.logger.Info("Research session submitted",
		zap.String("research_id", id),
		zap.String("query", req.Query),
		zap.Int("max_iterations", maxIterations),
	)
	writeJSON(w, http.StatusAccepted, submitResponse{
		ID:        id,
		Status:    "running",
		StreamURL: "/stream/sse?research_id=" + id,
	})
}

func (h *ResearchHandler) handleResearchByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/research/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "research result not found")
		return
	}

	res, err := h.store.Get(r.Context(), id)
	if err == nil {
		writeJSON(w, http.StatusOK, res)
		return
	}
	if !errors.Is(err, session.ErrNotFound) {
		h.logger.Error("Failed to fetch research result",
			zap.String("research_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}

	h.mu.Lock()
	_, running := h.inFlight[id]
	h.mu.Unlock()
	if running {
		writeJSON(w, http.StatusOK, submitResponse{
			ID:        id,
			Status:    "running",
			StreamURL: "/stream/sse?research_id=" + id,
		})
		return
	}
	writeError(w, http.StatusNotFound, "research result not found")
}

func (h *ResearchHandler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	sums, err := h.store.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list research results", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	if sums == nil {
		sums = []research.Summary{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": sums})
}

func (h *ResearchHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
