package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/kart-io/summaryhub/pkg/recovery"
	"github.com/kart-io/summaryhub/transport/http/middleware"
)

// HealthHandler exposes system health and batch recovery
type HealthHandler struct {
	recovery *recovery.Service
}

// NewHealthHandler creates a health handler
func NewHealthHandler(rec *recovery.Service) *HealthHandler {
	return &HealthHandler{recovery: rec}
}

// Health runs the component health checks. Degraded systems still
// answer 200; only an unhealthy or critical overall state maps to 503
// so load balancers drain the instance.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.recovery.HealthCheck(r.Context())

	status := http.StatusOK
	if report.Overall == recovery.StatusUnhealthy || report.Overall == recovery.StatusCritical {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// RecoverRequest names why recovery was triggered
type RecoverRequest struct {
	Reason string `json:"reason,omitempty"`
}

// Recover runs the recovery steps for an abandoned batch
func (h *HealthHandler) Recover(w http.ResponseWriter, r *http.Request) {
	var req RecoverRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body: "+err.Error())
			return
		}
	}
	reason := req.Reason
	if reason == "" {
		reason = "operator request by " + middleware.GetOwner(r.Context())
	}

	record, err := h.recovery.Recover(r.Context(), r.PathValue("id"), reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// RequiresRecovery reports whether a batch looks abandoned
func (h *HealthHandler) RequiresRecovery(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"batch_id":          batchID,
		"requires_recovery": h.recovery.RequiresRecovery(r.Context(), batchID),
	})
}
