package middleware

import (
	"context"
	"encoding/json"
	"net/http"
)

// OwnerHeader identifies the caller on API requests. Ownership checks
// throughout the service compare against this value.
const OwnerHeader = "X-Owner-ID"

// Identity extracts the caller identity from the owner header and
// stores it in the request context. Requests without an identity are
// rejected; anonymous batches would be unreachable for cancellation
// and partial-result decisions.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := r.Header.Get(OwnerHeader)
		if owner == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]string{
					"code":    "UNAUTHENTICATED",
					"message": "missing " + OwnerHeader + " header",
				},
			})
			return
		}

		ctx := context.WithValue(r.Context(), ownerKey, owner)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetOwner returns the caller identity set by Identity, or "" when the
// middleware did not run
func GetOwner(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey).(string)
	return owner
}
