package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

const readyTimeout = 5 * time.Second

// Checker reports whether a dependency is reachable.
type Checker func(ctx context.Context) error

// ReadyEnvelope lists the state of every registered dependency.
type ReadyEnvelope struct {
	Status  bool              `json:"status"`
	Message string            `json:"message"`
	Checks  map[string]string `json:"checks"`
}

// HealthHandler handles liveness and readiness checks.
type HealthHandler struct {
	mu       sync.RWMutex
	checkers map[string]Checker
}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{checkers: make(map[string]Checker)}
}

// Register adds a named readiness check.
func (h *HealthHandler) Register(name string, c Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = c
}

func (h *HealthHandler) Action(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "ping":
		writeMessage(w, "pong")
	case "ready":
		h.ready(w, r)
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}

func (h *HealthHandler) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	h.mu.RLock()
	checkers := make(map[string]Checker, len(h.checkers))
	for k, v := range h.checkers {
		checkers[k] = v
	}
	h.mu.RUnlock()

	resp := ReadyEnvelope{Status: true, Message: "ready", Checks: make(map[string]string, len(checkers))}
	for name, check := range checkers {
		if err := check(ctx); err != nil {
			resp.Checks[name] = "down"
			resp.Status = false
			resp.Message = "not ready"
			continue
		}
		resp.Checks[name] = "up"
	}

	status := http.StatusOK
	if !resp.Status {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
