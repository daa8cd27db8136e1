/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the redemption-service. By defining an interface,
 * we decouple the application's business logic from the specific database implementation
 * (e.g., PostgreSQL), making the code more modular and easier to test.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation and handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mintbridge/redemption-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// ReserveRedemption atomically inserts an in-flight record keyed by the
	// source payment reference. A unique violation on the reference returns
	// ErrDuplicateRedemption; the caller must stop before submitting any transfer.
	ReserveRedemption(ctx context.Context, record *domain.TransferRecord) error

	// CreateTransferRecord inserts an in-flight record with no payment
	// reference (direct treasury transfers).
	CreateTransferRecord(ctx context.Context, record *domain.TransferRecord) error

	// CommitTransfer finalizes an in-flight record with the confirmed target
	// ledger transaction hash. Completed records are never modified again.
	CommitTransfer(ctx context.Context, recordID uuid.UUID, targetTxHash string) error

	// ReleaseReservation marks an in-flight record failed, freeing its payment
	// reference for a fresh attempt.
	ReleaseReservation(ctx context.Context, recordID uuid.UUID, reason string) error

	// FindInFlightBefore returns in-flight records created before the cutoff,
	// oldest first, for the reconciliation pass.
	FindInFlightBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.TransferRecord, error)

	// FindTransferRecords returns records filtered by sender and/or receiver
	// account, most recent first.
	FindTransferRecords(ctx context.Context, sender, receiver string, limit int) ([]domain.TransferRecord, error)

	// FindTransferRecordByID returns a single record by its id.
	FindTransferRecordByID(ctx context.Context, recordID uuid.UUID) (*domain.TransferRecord, error)

	// FindTransferRecordByPaymentRef returns the non-failed record holding the
	// given source payment reference, if any.
	FindTransferRecordByPaymentRef(ctx context.Context, paymentRef string) (*domain.TransferRecord, error)
}
