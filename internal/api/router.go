/**
 * @description
 * This file sets up the HTTP router for the redemption-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for internal authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// BridgeRoutes creates and returns a new router for the redemption service.
// trustProxyHeaders enables chi's real-IP middleware, which rewrites
// RemoteAddr from forwarding headers. Only enable it when a trusted proxy is
// the sole path to the service; a directly reachable instance would let
// callers pick their own rate-limit identity.
func BridgeRoutes(h *BridgeHandlers, internalAPIKey string, trustProxyHeaders bool) http.Handler {
	r := chi.NewRouter()

	if trustProxyHeaders {
		r.Use(middleware.RealIP)
	}

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/bridge/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Public bridge endpoints.
	r.Post("/bridge/redeem", h.RedeemHandler)
	r.Get("/bridge/balance/{account}", h.BalanceHandler)
	r.Get("/bridge/transfers", h.ListTransfersHandler)
	r.Get("/bridge/transfers/{id}", h.TransferDetailHandler)
	r.Get("/bridge/redemptions/{paymentRef}", h.RedemptionLookupHandler)

	// Operator endpoints guarded by the shared internal key.
	r.Group(func(r chi.Router) {
		r.Use(InternalKeyMiddleware(internalAPIKey))

		r.Post("/bridge/transfer", h.DirectTransferHandler)
		r.Post("/bridge/internal/reconcile", h.ReconcileHandler)
	})

	return r
}
