package http

import (
	"context"
	"log/slog"
	"net/http"
)

// ReadinessChecker reports why the service is not ready, or nil when it is.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// OpsHandler serves the liveness and readiness probes.
type OpsHandler struct {
	readiness ReadinessChecker
	responder responder
	logger    *slog.Logger
}

// NewOpsHandler wires the operational endpoints.
func NewOpsHandler(readiness ReadinessChecker, logger *slog.Logger) *OpsHandler {
	base := defaultLogger(logger)
	return &OpsHandler{readiness: readiness, responder: newResponder(base), logger: base}
}

// Health always reports healthy while the process is up.
func (h *OpsHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports 503 with a reason while the service cannot serve its
// purpose yet.
func (h *OpsHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.readiness != nil {
		if err := h.readiness.Ready(r.Context()); err != nil {
			h.responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"reason": err.Error(),
			})
			return
		}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ready"})
}
