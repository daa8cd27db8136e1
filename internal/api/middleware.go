/**
 * @description
 * This file contains custom middleware for the HTTP router. Middlewares are used
 * to process requests before they reach the final handler, perfect for tasks like
 * authentication, logging, or adding context to a request.
 *
 * @dependencies
 * - crypto/subtle, net/http, strings: Standard Go libraries.
 */

package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// InternalKeyHeader carries the shared secret for operator endpoints.
const InternalKeyHeader = "X-Internal-API-Key"

// InternalKeyMiddleware creates a middleware that validates the shared internal
// API key. Requests without a matching key are rejected before they reach the
// handler. An empty configured key disables the guarded endpoints entirely
// rather than leaving them open.
func InternalKeyMiddleware(internalAPIKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if internalAPIKey == "" {
				writeErrorBody(w, http.StatusServiceUnavailable, "Unavailable", "Internal endpoints are not configured")
				return
			}

			presented := strings.TrimSpace(r.Header.Get(InternalKeyHeader))
			if presented == "" {
				writeErrorBody(w, http.StatusUnauthorized, "Unauthorized", "Internal API key required")
				return
			}
			if subtle.ConstantTimeCompare([]byte(presented), []byte(internalAPIKey)) != 1 {
				writeErrorBody(w, http.StatusForbidden, "Forbidden", "Invalid internal API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeErrorBody(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": kind, "message": message})
}
