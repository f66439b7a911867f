package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/kart-io/summaryhub/pkg/batch"
	"github.com/kart-io/summaryhub/pkg/orchestrator"
	"github.com/kart-io/summaryhub/pkg/segmenter"
	"github.com/kart-io/summaryhub/transport/http/middleware"
)

// BatchHandler exposes batch lifecycle operations
type BatchHandler struct {
	orchestrator *orchestrator.Orchestrator
	segmenter    *segmenter.Segmenter
}

// NewBatchHandler creates a batch handler
func NewBatchHandler(orc *orchestrator.Orchestrator, seg *segmenter.Segmenter) *BatchHandler {
	return &BatchHandler{orchestrator: orc, segmenter: seg}
}

// CreateBatchRequest submits a document for summarization
type CreateBatchRequest struct {
	Text             string `json:"text"`
	ConcurrencyLimit int    `json:"concurrency_limit,omitempty"`
	MaxSegmentLength int    `json:"max_segment_length,omitempty"`
	GenerateTitles   *bool  `json:"generate_titles,omitempty"`
}

// CreateBatchResponse acknowledges an accepted batch
type CreateBatchResponse struct {
	BatchID             string  `json:"batch_id"`
	TotalSegments       int     `json:"total_segments"`
	SegmentationMethod  string  `json:"segmentation_method"`
	SegmentationQuality float64 `json:"segmentation_quality"`
}

// Create segments the submitted text and starts a batch. Short texts
// below the segmentation trigger become a single-segment batch, whose
// final summary equals a direct summarization of the text.
func (h *BatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	owner := middleware.GetOwner(r.Context())

	response := CreateBatchResponse{SegmentationMethod: "none"}
	var segments []batch.Segment
	if h.segmenter.NeedsSegmentation(req.Text) {
		titles := true
		if req.GenerateTitles != nil {
			titles = *req.GenerateTitles
		}
		result, err := h.segmenter.Segment(r.Context(), segmenter.Request{
			Text:               req.Text,
			MaxSegmentLength:   req.MaxSegmentLength,
			PreserveParagraphs: true,
			GenerateTitles:     titles,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		segments = result.Segments
		response.SegmentationMethod = result.Method
		response.SegmentationQuality = result.Quality.Overall
	} else {
		segments = []batch.Segment{singleSegment(req.Text)}
		response.SegmentationQuality = 1.0
	}

	batchID, err := h.orchestrator.StartBatch(segments, req.Text, owner, req.ConcurrencyLimit)
	if err != nil {
		writeError(w, err)
		return
	}

	response.BatchID = batchID
	response.TotalSegments = len(segments)
	writeJSON(w, http.StatusAccepted, response)
}

// singleSegment wraps a short text in one segment. Offsets count bytes
// like segmenter output does; CharCount counts runes.
func singleSegment(text string) batch.Segment {
	normalized := segmenter.Normalize(text)
	return batch.Segment{
		Index:     0,
		Content:   normalized,
		CharCount: utf8.RuneCountInString(normalized),
		EndOffset: len(normalized),
		Type:      segmenter.TypeParagraph,
	}
}

// Progress returns the latest progress snapshot for a batch
func (h *BatchHandler) Progress(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")
	snapshot := h.orchestrator.Progress(batchID)
	if snapshot == nil {
		writeNotFound(w, batchID)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// Get returns the full batch view including the final summary once the
// batch completed
func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")
	view := h.orchestrator.Result(batchID)
	if view == nil {
		writeNotFound(w, batchID)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// List returns the caller's batches, most recent first
func (h *BatchHandler) List(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetOwner(r.Context())
	page := queryInt(r, "page", 1)
	size := queryInt(r, "size", 20)

	snapshots := h.orchestrator.ListByOwner(owner, page, size)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"batches": snapshots,
		"page":    page,
		"size":    size,
	})
}

// Pause suspends new segment dispatch for a batch
func (h *BatchHandler) Pause(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")
	if !h.orchestrator.Pause(batchID) {
		writeNotFound(w, batchID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"batch_id": batchID,
		"status":   string(batch.StatusPaused),
	})
}

// Resume restarts a paused batch
func (h *BatchHandler) Resume(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")
	if !h.orchestrator.Resume(batchID) {
		writeNotFound(w, batchID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"batch_id": batchID,
		"status":   string(batch.StatusProcessing),
	})
}

// CancelBatchRequest carries the cancellation options
type CancelBatchRequest struct {
	SavePartial bool   `json:"save_partial"`
	Force       bool   `json:"force"`
	Reason      string `json:"reason,omitempty"`
	Comment     string `json:"comment,omitempty"`
}

// Cancel requests cancellation of a running batch. Graceful requests
// wait for the workers to reach a safe point; forced requests terminate
// immediately and never save a partial result.
func (h *BatchHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")

	var req CancelBatchRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body: "+err.Error())
			return
		}
	}

	reason := batch.CancelReason(req.Reason)
	if reason == "" {
		reason = batch.CancelUserInitiated
	}

	result, err := h.orchestrator.Cancel(r.Context(), batch.CancellationRequest{
		BatchID:     batchID,
		Owner:       middleware.GetOwner(r.Context()),
		Reason:      reason,
		SavePartial: req.SavePartial,
		Force:       req.Force,
		Comment:     req.Comment,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeNotFound(w http.ResponseWriter, batchID string) {
	writeJSON(w, http.StatusNotFound, errorBody{Error: errorDetail{
		Code:    "BATCH_NOT_FOUND",
		Message: "unknown batch: " + batchID,
	}})
}

// queryInt parses an integer query parameter with a fallback
func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
