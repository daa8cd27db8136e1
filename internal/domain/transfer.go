/**
 * @description
 * This file defines the core domain models for the redemption-service.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Using distinct types for API requests, database models, and external service
 *   payloads ensures clear separation of concerns and type safety.
 * - Amounts are stored as `int64` in the smallest unit of the relevant ledger
 *   (satoshi on the source chain, the configured smallest unit on the target
 *   ledger), which avoids floating-point inaccuracies with financial data.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transfer record statuses. A record is created `in_flight` when a payment
// reference is reserved, and is finalized exactly once: `completed` records are
// immutable, `failed` records free their payment reference for a fresh attempt.
const (
	TransferStatusInFlight  = "in_flight"
	TransferStatusCompleted = "completed"
	TransferStatusFailed    = "failed"
)

// TransferRecord is the system-of-record row for a reward transfer on the target
// ledger. This struct maps directly to the `transfer_records` table.
type TransferRecord struct {
	ID               uuid.UUID `json:"id"`
	SenderAccount    string    `json:"sender_account"`
	ReceiverAccount  string    `json:"receiver_account"`
	AmountUnits      int64     `json:"amount_units"`
	TargetTxHash     *string   `json:"target_tx_hash,omitempty"`
	SourcePaymentRef *string   `json:"source_payment_ref,omitempty"`
	AttemptID        uuid.UUID `json:"attempt_id"`
	Status           string    `json:"status"`
	FailureReason    *string   `json:"failure_reason,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// RedemptionRequest is the DTO for incoming redemption API requests. Amounts
// arrive as decimal strings in whole source-chain units (e.g. "0.5") and are
// validated and converted before any external call is made.
type RedemptionRequest struct {
	SourcePaymentRef   string `json:"source_payment_ref"`
	DestinationAccount string `json:"destination_account"`
	ClaimedAmount      string `json:"claimed_amount"`
}

// DirectTransferRequest is the DTO for treasury-initiated transfers that are not
// tied to an inbound payment (operational top-ups, compensations).
type DirectTransferRequest struct {
	DestinationAccount string `json:"destination_account"`
	Amount             string `json:"amount"`
}

// RedemptionResult is returned to the caller after a successful redemption.
type RedemptionResult struct {
	RecordID     uuid.UUID `json:"record_id"`
	RewardAmount string    `json:"reward_amount"`
	RewardUnits  int64     `json:"reward_units"`
	TargetTxHash string    `json:"target_tx_hash"`
}

// PaymentOutput is a single output of an inspected source-chain transaction.
type PaymentOutput struct {
	Address   string `json:"address"`
	ValueSats int64  `json:"value_sats"`
}

// PaymentProof is the ephemeral, verified view of a source-chain payment. It is
// fetched per request from the inspection service and never persisted.
type PaymentProof struct {
	TxID        string          `json:"tx_id"`
	Confirmed   bool            `json:"confirmed"`
	Outputs     []PaymentOutput `json:"outputs"`
	MatchedSats int64           `json:"matched_sats"`
}

// RedemptionCompletedEvent is published after a redemption commits.
type RedemptionCompletedEvent struct {
	RecordID         uuid.UUID `json:"record_id"`
	SourcePaymentRef string    `json:"source_payment_ref"`
	ReceiverAccount  string    `json:"receiver_account"`
	RewardUnits      int64     `json:"reward_units"`
	TargetTxHash     string    `json:"target_tx_hash"`
	Timestamp        time.Time `json:"timestamp"`
}

// RedemptionAmbiguousEvent is published when a submission outcome is unknown and
// the reservation has been left in flight for reconciliation.
type RedemptionAmbiguousEvent struct {
	RecordID         uuid.UUID `json:"record_id"`
	SourcePaymentRef string    `json:"source_payment_ref"`
	AttemptID        uuid.UUID `json:"attempt_id"`
	Timestamp        time.Time `json:"timestamp"`
}

// TransferCompletedEvent is published after a direct treasury transfer commits.
type TransferCompletedEvent struct {
	RecordID        uuid.UUID `json:"record_id"`
	ReceiverAccount string    `json:"receiver_account"`
	AmountUnits     int64     `json:"amount_units"`
	TargetTxHash    string    `json:"target_tx_hash"`
	Timestamp       time.Time `json:"timestamp"`
}
