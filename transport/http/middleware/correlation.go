// Package middleware provides HTTP middleware for the SummaryHub
// transport layer: correlation ids, request logging, identity
// extraction, and CORS.
package middleware

import (
	"context"
	"net/http"

	"github.com/kart-io/summaryhub/pkg/utils/idgen"
)

type contextKey string

const (
	correlationKey contextKey = "correlation_id"
	ownerKey       contextKey = "owner"

	// CorrelationHeader carries the correlation id on requests and
	// responses
	CorrelationHeader = "X-Correlation-ID"
)

// Correlation assigns every request a correlation id. An id supplied by
// the caller is kept so distributed traces line up; otherwise one is
// generated. The id is echoed back on the response.
func Correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationHeader)
		if id == "" {
			id = idgen.GenerateCorrelationID()
		}

		w.Header().Set(CorrelationHeader, id)
		ctx := context.WithValue(r.Context(), correlationKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetCorrelationID returns the request's correlation id, or "" when the
// middleware did not run
func GetCorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey).(string)
	return id
}
