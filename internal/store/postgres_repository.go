/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the necessary SQL queries to interact with the `transfer_records`
 * table, including the atomic unique-insert reservation that closes the
 * check-then-act race on the source payment reference.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mintbridge/redemption-service/internal/domain"
)

var (
	ErrDuplicateRedemption = errors.New("payment reference already redeemed")
	ErrRecordNotFound      = errors.New("transfer record not found")
	ErrRecordNotInFlight   = errors.New("transfer record is not in flight")
	ErrStoreUnavailable    = errors.New("redemption ledger unavailable")
)

const pgUniqueViolationCode = "23505"

// isUniqueViolation reports whether err is a unique-index violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode
}

// isConnectivityError reports whether err looks like the database being
// unreachable rather than a query-level failure. The query service maps these
// to a typed Unavailable response instead of a generic server error.
func isConnectivityError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const transferRecordColumns = `
	id, sender_account, receiver_account, amount_units, target_tx_hash,
	source_payment_ref, attempt_id, status, failure_reason, created_at, updated_at
`

// ReserveRedemption inserts the in-flight placeholder row. The partial unique
// index on source_payment_ref (non-null, status <> 'failed') is what makes the
// reservation atomic across concurrent callers and service instances.
func (r *PostgresRepository) ReserveRedemption(ctx context.Context, record *domain.TransferRecord) error {
	if record.SourcePaymentRef == nil || *record.SourcePaymentRef == "" {
		return errors.New("reservation requires a source payment reference")
	}
	return r.insertRecord(ctx, record)
}

// CreateTransferRecord inserts an in-flight row with no payment reference.
func (r *PostgresRepository) CreateTransferRecord(ctx context.Context, record *domain.TransferRecord) error {
	return r.insertRecord(ctx, record)
}

func (r *PostgresRepository) insertRecord(ctx context.Context, record *domain.TransferRecord) error {
	query := `
		INSERT INTO transfer_records
			(id, sender_account, receiver_account, amount_units, source_payment_ref, attempt_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		record.ID,
		record.SenderAccount,
		record.ReceiverAccount,
		record.AmountUnits,
		record.SourcePaymentRef,
		record.AttemptID,
		domain.TransferStatusInFlight,
	).Scan(&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateRedemption
		}
		if isConnectivityError(err) {
			return ErrStoreUnavailable
		}
		return err
	}
	record.Status = domain.TransferStatusInFlight
	return nil
}

// CommitTransfer finalizes an in-flight row. The status guard keeps completed
// rows immutable even if commit is retried by the reconciliation pass.
func (r *PostgresRepository) CommitTransfer(ctx context.Context, recordID uuid.UUID, targetTxHash string) error {
	query := `
		UPDATE transfer_records
		SET status = $2, target_tx_hash = $3, failure_reason = NULL, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`
	result, err := r.db.Exec(ctx, query, recordID, domain.TransferStatusCompleted, targetTxHash, domain.TransferStatusInFlight)
	if err != nil {
		if isConnectivityError(err) {
			return ErrStoreUnavailable
		}
		return err
	}
	if result.RowsAffected() == 0 {
		return r.classifyMissedUpdate(ctx, recordID)
	}
	return nil
}

// ReleaseReservation marks an in-flight row failed. Failed rows are excluded
// from the partial unique index, so the payment reference becomes claimable again.
func (r *PostgresRepository) ReleaseReservation(ctx context.Context, recordID uuid.UUID, reason string) error {
	query := `
		UPDATE transfer_records
		SET status = $2, failure_reason = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`
	result, err := r.db.Exec(ctx, query, recordID, domain.TransferStatusFailed, reason, domain.TransferStatusInFlight)
	if err != nil {
		if isConnectivityError(err) {
			return ErrStoreUnavailable
		}
		return err
	}
	if result.RowsAffected() == 0 {
		return r.classifyMissedUpdate(ctx, recordID)
	}
	return nil
}

func (r *PostgresRepository) classifyMissedUpdate(ctx context.Context, recordID uuid.UUID) error {
	var status string
	err := r.db.QueryRow(ctx, `SELECT status FROM transfer_records WHERE id = $1`, recordID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRecordNotFound
		}
		return err
	}
	return ErrRecordNotInFlight
}

// FindInFlightBefore returns in-flight rows older than the cutoff, oldest first.
func (r *PostgresRepository) FindInFlightBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.TransferRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + transferRecordColumns + `
		FROM transfer_records
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC
		LIMIT $3
	`
	rows, err := r.db.Query(ctx, query, domain.TransferStatusInFlight, cutoff, limit)
	if err != nil {
		if isConnectivityError(err) {
			return nil, ErrStoreUnavailable
		}
		return nil, err
	}
	defer rows.Close()
	return scanTransferRecords(rows)
}

// FindTransferRecords returns records filtered by sender and/or receiver,
// most recent first. Empty filters match everything.
func (r *PostgresRepository) FindTransferRecords(ctx context.Context, sender, receiver string, limit int) ([]domain.TransferRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	query := `
		SELECT ` + transferRecordColumns + `
		FROM transfer_records
		WHERE ($1 = '' OR sender_account = $1)
		  AND ($2 = '' OR receiver_account = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := r.db.Query(ctx, query, sender, receiver, limit)
	if err != nil {
		if isConnectivityError(err) {
			return nil, ErrStoreUnavailable
		}
		return nil, err
	}
	defer rows.Close()
	return scanTransferRecords(rows)
}

// FindTransferRecordByID retrieves a single record by id.
func (r *PostgresRepository) FindTransferRecordByID(ctx context.Context, recordID uuid.UUID) (*domain.TransferRecord, error) {
	query := `SELECT ` + transferRecordColumns + ` FROM transfer_records WHERE id = $1`
	record, err := r.scanOne(ctx, query, recordID)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// FindTransferRecordByPaymentRef retrieves the non-failed record for a payment
// reference. At most one such record can exist under the partial unique index.
func (r *PostgresRepository) FindTransferRecordByPaymentRef(ctx context.Context, paymentRef string) (*domain.TransferRecord, error) {
	query := `
		SELECT ` + transferRecordColumns + `
		FROM transfer_records
		WHERE source_payment_ref = $1 AND status <> $2
	`
	record, err := r.scanOneArgs(ctx, query, paymentRef, domain.TransferStatusFailed)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *PostgresRepository) scanOne(ctx context.Context, query string, recordID uuid.UUID) (*domain.TransferRecord, error) {
	return r.scanOneArgs(ctx, query, recordID)
}

func (r *PostgresRepository) scanOneArgs(ctx context.Context, query string, args ...interface{}) (*domain.TransferRecord, error) {
	var record domain.TransferRecord
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&record.ID, &record.SenderAccount, &record.ReceiverAccount, &record.AmountUnits,
		&record.TargetTxHash, &record.SourcePaymentRef, &record.AttemptID, &record.Status,
		&record.FailureReason, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		if isConnectivityError(err) {
			return nil, ErrStoreUnavailable
		}
		return nil, err
	}
	return &record, nil
}

func scanTransferRecords(rows pgx.Rows) ([]domain.TransferRecord, error) {
	var records []domain.TransferRecord
	for rows.Next() {
		var record domain.TransferRecord
		err := rows.Scan(
			&record.ID, &record.SenderAccount, &record.ReceiverAccount, &record.AmountUnits,
			&record.TargetTxHash, &record.SourcePaymentRef, &record.AttemptID, &record.Status,
			&record.FailureReason, &record.CreatedAt, &record.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		if isConnectivityError(err) {
			return nil, ErrStoreUnavailable
		}
		return nil, err
	}
	return records, nil
}
