/**
 * @description
 * This file contains the HTTP handlers for the redemption-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mintbridge/redemption-service/internal/app"
	"github.com/mintbridge/redemption-service/internal/domain"
	"github.com/mintbridge/redemption-service/internal/store"
)

// BridgeHandlers holds the application service that handlers will use.
type BridgeHandlers struct {
	service *app.Service
}

// NewBridgeHandlers creates a new instance of BridgeHandlers.
func NewBridgeHandlers(service *app.Service) *BridgeHandlers {
	return &BridgeHandlers{service: service}
}

// redemptionResponse mirrors the success body documented for the redeem endpoint.
type redemptionResponse struct {
	RecordID     string `json:"record_id"`
	RewardAmount string `json:"reward_amount"`
	RewardUnits  int64  `json:"reward_units"`
	TargetTxHash string `json:"target_tx_hash"`
}

type balanceResponse struct {
	Account      string `json:"account"`
	BalanceUnits int64  `json:"balance_units"`
}

type transferListResponse struct {
	Transfers []domain.TransferRecord `json:"transfers"`
	Count     int                     `json:"count"`
}

// RedeemHandler handles requests to redeem a source-chain payment for a reward
// transfer on the target ledger.
func (h *BridgeHandlers) RedeemHandler(w http.ResponseWriter, r *http.Request) {
	caller := clientAddr(r)
	retryAfter, err := h.service.CheckRedeemRateLimit(r.Context(), caller)
	if err != nil {
		log.Printf("level=warn component=api endpoint=redeem outcome=reject reason=rate_limited caller=%s retry_after=%d", caller, retryAfter)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		h.writeError(w, http.StatusTooManyRequests, "RateLimited", "Too many redemption attempts. Please retry later.")
		return
	}

	var req domain.RedemptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=redeem outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "ValidationError", "Invalid request body")
		return
	}

	result, err := h.service.Redeem(r.Context(), req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=redeem outcome=failed payment_ref=%s err=%v", req.SourcePaymentRef, err)
		h.writeServiceError(w, err)
		return
	}

	log.Printf("level=info component=api endpoint=redeem outcome=success record_id=%s reward_units=%d", result.RecordID, result.RewardUnits)
	h.writeJSON(w, http.StatusOK, redemptionResponse{
		RecordID:     result.RecordID.String(),
		RewardAmount: result.RewardAmount,
		RewardUnits:  result.RewardUnits,
		TargetTxHash: result.TargetTxHash,
	})
}

// DirectTransferHandler handles operator-initiated treasury transfers that are
// not tied to an inbound payment.
func (h *BridgeHandlers) DirectTransferHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.DirectTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=transfer outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "ValidationError", "Invalid request body")
		return
	}

	result, err := h.service.DirectTransfer(r.Context(), req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=transfer outcome=failed destination=%s err=%v", req.DestinationAccount, err)
		h.writeServiceError(w, err)
		return
	}

	log.Printf("level=info component=api endpoint=transfer outcome=success record_id=%s units=%d", result.RecordID, result.RewardUnits)
	h.writeJSON(w, http.StatusOK, redemptionResponse{
		RecordID:     result.RecordID.String(),
		RewardAmount: result.RewardAmount,
		RewardUnits:  result.RewardUnits,
		TargetTxHash: result.TargetTxHash,
	})
}

// BalanceHandler returns the target-ledger balance of an account.
func (h *BridgeHandlers) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")

	validated, units, err := h.service.AccountBalance(r.Context(), account)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, balanceResponse{Account: validated, BalanceUnits: units})
}

// ListTransfersHandler returns transfer records filtered by sender and/or receiver.
func (h *BridgeHandlers) ListTransfersHandler(w http.ResponseWriter, r *http.Request) {
	sender := strings.TrimSpace(r.URL.Query().Get("sender"))
	receiver := strings.TrimSpace(r.URL.Query().Get("receiver"))

	limit := 50
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "ValidationError", "Invalid limit")
			return
		}
		limit = parsed
	}

	transfers, err := h.service.ListTransfers(r.Context(), sender, receiver, limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, transferListResponse{Transfers: transfers, Count: len(transfers)})
}

// TransferDetailHandler returns a single transfer record by id.
func (h *BridgeHandlers) TransferDetailHandler(w http.ResponseWriter, r *http.Request) {
	recordID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "ValidationError", "Invalid record id")
		return
	}

	record, err := h.service.TransferByID(r.Context(), recordID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, record)
}

// RedemptionLookupHandler returns the live record for a source payment
// reference, so callers can check whether a payment was already redeemed.
func (h *BridgeHandlers) RedemptionLookupHandler(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.RedemptionByPaymentRef(r.Context(), chi.URLParam(r, "paymentRef"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, record)
}

// ReconcileHandler triggers one reconciliation pass over in-flight reservations.
func (h *BridgeHandlers) ReconcileHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "ValidationError", "Invalid limit")
			return
		}
		limit = parsed
	}

	summary, err := h.service.ReconcileInFlight(r.Context(), limit)
	if err != nil {
		log.Printf("level=error component=api endpoint=reconcile outcome=failed err=%v", err)
		h.writeServiceError(w, err)
		return
	}

	log.Printf("level=info component=api endpoint=reconcile outcome=success scanned=%d committed=%d released=%d indeterminate=%d",
		summary.Scanned, summary.Committed, summary.Released, summary.Indeterminate)
	h.writeJSON(w, http.StatusOK, summary)
}

// writeServiceError translates application errors into the documented HTTP
// status codes and error kinds.
func (h *BridgeHandlers) writeServiceError(w http.ResponseWriter, err error) {
	var mismatchErr *app.AddressMismatchError
	if errors.As(err, &mismatchErr) {
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":    "AddressMismatch",
			"message":  mismatchErr.Error(),
			"expected": mismatchErr.Expected,
			"observed": mismatchErr.Observed,
		})
		return
	}
	var paymentErr *app.InsufficientPaymentError
	if errors.As(err, &paymentErr) {
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":    "InsufficientPayment",
			"message":  paymentErr.Error(),
			"expected": paymentErr.ExpectedSats,
			"observed": paymentErr.ObservedSats,
		})
		return
	}
	var treasuryErr *app.InsufficientTreasuryBalanceError
	if errors.As(err, &treasuryErr) {
		h.writeJSON(w, http.StatusPaymentRequired, map[string]interface{}{
			"error":     "InsufficientTreasuryBalance",
			"message":   treasuryErr.Error(),
			"requested": treasuryErr.RequestedUnits,
			"available": treasuryErr.AvailableUnits,
		})
		return
	}

	switch {
	case errors.Is(err, app.ErrValidation):
		h.writeError(w, http.StatusBadRequest, "ValidationError", err.Error())
	case errors.Is(err, store.ErrDuplicateRedemption):
		h.writeError(w, http.StatusBadRequest, "DuplicateRedemption", "This payment has already been redeemed or is being redeemed")
	case errors.Is(err, app.ErrUnconfirmedPayment):
		h.writeError(w, http.StatusBadRequest, "UnconfirmedPayment", "The source payment is not yet confirmed")
	case errors.Is(err, store.ErrRecordNotFound):
		h.writeError(w, http.StatusNotFound, "NotFound", "Transfer record not found")
	case errors.Is(err, app.ErrUpstreamNotFound):
		h.writeError(w, http.StatusNotFound, "UpstreamNotFound", err.Error())
	case errors.Is(err, app.ErrUpstreamTimeout):
		h.writeError(w, http.StatusGatewayTimeout, "UpstreamTimeout", "Upstream service did not respond in time")
	case errors.Is(err, app.ErrChainSubmission):
		h.writeError(w, http.StatusInternalServerError, "ChainSubmissionError", err.Error())
	case errors.Is(err, app.ErrAmbiguousSubmission):
		h.writeError(w, http.StatusInternalServerError, "AmbiguousSubmissionError", "Transfer outcome is unknown and will be reconciled")
	case errors.Is(err, app.ErrUnavailable), errors.Is(err, store.ErrStoreUnavailable):
		h.writeError(w, http.StatusServiceUnavailable, "Unavailable", "A required backend is unavailable")
	default:
		h.writeError(w, http.StatusInternalServerError, "InternalError", "Internal server error")
	}
}

// clientAddr extracts the caller identity used for rate limiting. Forwarding
// headers are never read here; when a trusted proxy fronts the service the
// router installs the real-IP middleware, which rewrites RemoteAddr before
// the handler runs.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeJSON is a helper for writing JSON responses.
func (h *BridgeHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *BridgeHandlers) writeError(w http.ResponseWriter, status int, kind, message string) {
	h.writeJSON(w, status, map[string]string{"error": kind, "message": message})
}
