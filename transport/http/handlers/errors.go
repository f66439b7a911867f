// Package handlers implements the HTTP request handlers for the
// SummaryHub API: batch lifecycle, partial-result decisions, recovery,
// and health.
package handlers

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/kart-io/summaryhub/pkg/errors"
)

// errorBody is the JSON error envelope shared by all endpoints
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON serializes a response body with the given status
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError maps service errors onto HTTP statuses. Unrecognized
// errors become opaque 500s so internal details never leak.
func writeError(w http.ResponseWriter, err error) {
	var serr *errors.SummaryError
	if !stderrors.As(err, &serr) {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{
			Code:    string(errors.ErrInternal),
			Message: "internal error",
		}})
		return
	}

	writeJSON(w, statusFor(serr.Code), errorBody{Error: errorDetail{
		Code:    string(serr.Code),
		Message: serr.UserMessage(),
	}})
}

// writeBadRequest reports a malformed request without a service error
func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
		Code:    string(errors.ErrInvalidInput),
		Message: message,
	}})
}

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrInvalidInput, errors.ErrEmptyText, errors.ErrEmptySegments,
		errors.ErrTextTooLarge, errors.ErrInvalidConfig:
		return http.StatusBadRequest
	case errors.ErrUnauthenticated:
		return http.StatusUnauthorized
	case errors.ErrPermissionDenied:
		return http.StatusForbidden
	case errors.ErrNotFound, errors.ErrBatchNotFound:
		return http.StatusNotFound
	case errors.ErrAlreadyExists, errors.ErrIllegalTransition:
		return http.StatusConflict
	case errors.ErrRateLimitExceeded:
		return http.StatusTooManyRequests
	case errors.ErrCancelTimeout, errors.ErrDeadlineExceeded, errors.ErrSummarizeTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrServiceUnavailable, errors.ErrConnectionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
