package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/kart-io/summaryhub/pkg/errors"
	"github.com/kart-io/summaryhub/pkg/partial"
	"github.com/kart-io/summaryhub/transport/http/middleware"
)

// PartialHandler exposes partial-result queries and user decisions
type PartialHandler struct {
	partials *partial.Handler
}

// NewPartialHandler creates a partial-result handler
func NewPartialHandler(partials *partial.Handler) *PartialHandler {
	return &PartialHandler{partials: partials}
}

// Get returns one partial result. Only the owner may read it.
func (h *PartialHandler) Get(w http.ResponseWriter, r *http.Request) {
	result, err := h.partials.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if result.Owner != middleware.GetOwner(r.Context()) {
		writeError(w, errors.New(errors.ErrPermissionDenied, "partial result belongs to another owner"))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// List returns the caller's partial results, most recent first
func (h *PartialHandler) List(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetOwner(r.Context())
	page := queryInt(r, "page", 1)
	size := queryInt(r, "size", 20)

	results, total, err := h.partials.ListByOwner(r.Context(), owner, page, size)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"partial_results": results,
		"total":           total,
		"page":            page,
		"size":            size,
	})
}

// DecisionRequest carries an optional comment with an accept or reject
type DecisionRequest struct {
	Comment string `json:"comment,omitempty"`
}

// Accept marks a pending partial result as accepted by its owner
func (h *PartialHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, partial.StatusAccepted)
}

// Reject marks a pending partial result as rejected by its owner
func (h *PartialHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, partial.StatusRejected)
}

func (h *PartialHandler) decide(w http.ResponseWriter, r *http.Request, status partial.Status) {
	var req DecisionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body: "+err.Error())
			return
		}
	}

	result, err := h.partials.UpdateStatus(r.Context(), r.PathValue("id"), middleware.GetOwner(r.Context()), status, req.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Continuable reports whether a partial result is good enough to resume
// summarization from
func (h *PartialHandler) Continuable(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ok, err := h.partials.CanContinueFrom(r.Context(), id, middleware.GetOwner(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"partial_result_id": id,
		"can_continue":      ok,
	})
}
