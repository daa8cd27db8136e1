/**
 * @description
 * This file implements the reconciliation pass for in-flight reservations. A
 * reservation is left in flight whenever a transfer's outcome could not be
 * determined at submission time (ambiguous failures, crashes between broadcast
 * and commit). Reconciliation rereads the transfer's status from the target
 * ledger by the reservation's attempt reference and resolves each row exactly
 * one of three ways: commit (transfer landed), release (provably never
 * landed), or leave for the next pass (still indeterminate).
 *
 * @dependencies
 * - context, errors, log, time: Standard Go libraries.
 * - internal/domain, internal/store, pkg/ledgerclient.
 */

package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/mintbridge/redemption-service/internal/domain"
	"github.com/mintbridge/redemption-service/pkg/ledgerclient"
)

const (
	defaultReconcileLimit = 100
	maxReconcileLimit     = 500
)

// ReconcileSummary reports what one reconciliation pass did.
type ReconcileSummary struct {
	Scanned       int `json:"scanned"`
	Committed     int `json:"committed"`
	Released      int `json:"released"`
	Indeterminate int `json:"indeterminate"`
}

// ReconcileInFlight resolves in-flight reservations older than the configured
// minimum age. Safe to run concurrently with redemptions: commit and release
// are guarded by the in-flight status check, so a row resolved twice is a no-op.
func (s *Service) ReconcileInFlight(ctx context.Context, limit int) (*ReconcileSummary, error) {
	if limit <= 0 {
		limit = defaultReconcileLimit
	}
	if limit > maxReconcileLimit {
		limit = maxReconcileLimit
	}

	cutoff := time.Now().UTC().Add(-s.cfg.ReconcileMinAge)
	records, err := s.repo.FindInFlightBefore(ctx, cutoff, limit)
	if err != nil {
		return nil, err
	}

	summary := &ReconcileSummary{Scanned: len(records)}
	for i := range records {
		record := &records[i]
		s.reconcileRecord(ctx, record, summary)
	}

	if summary.Scanned > 0 {
		log.Printf("level=info component=service op=reconcile scanned=%d committed=%d released=%d indeterminate=%d",
			summary.Scanned, summary.Committed, summary.Released, summary.Indeterminate)
	}
	return summary, nil
}

func (s *Service) reconcileRecord(ctx context.Context, record *domain.TransferRecord, summary *ReconcileSummary) {
	transfer, err := s.treasury.Lookup(ctx, record.AttemptID)
	if err != nil {
		if errors.Is(err, ledgerclient.ErrNotFound) {
			// The ledger has never seen this reference. Only treat that as
			// proof of a lost submission once the record is old enough that a
			// broadcast would certainly have been indexed by now.
			if time.Since(record.CreatedAt) > s.cfg.ReconcileAbandonAge {
				s.releaseReconciled(ctx, record, "transfer never observed on target ledger", summary)
				return
			}
		} else {
			log.Printf("level=warn component=service op=reconcile msg=\"ledger lookup failed; leaving in flight\" record_id=%s attempt_id=%s err=%v", record.ID, record.AttemptID, err)
		}
		summary.Indeterminate++
		return
	}

	switch transfer.State {
	case ledgerclient.TransferStateConfirmed:
		if err := s.repo.CommitTransfer(ctx, record.ID, transfer.TxHash); err != nil {
			log.Printf("level=error component=service op=reconcile msg=\"commit of confirmed transfer failed\" record_id=%s err=%v", record.ID, err)
			summary.Indeterminate++
			return
		}
		summary.Committed++
		if record.SourcePaymentRef != nil {
			s.publish(ctx, "redemption.completed", domain.RedemptionCompletedEvent{
				RecordID:         record.ID,
				SourcePaymentRef: *record.SourcePaymentRef,
				ReceiverAccount:  record.ReceiverAccount,
				RewardUnits:      record.AmountUnits,
				TargetTxHash:     transfer.TxHash,
				Timestamp:        time.Now().UTC(),
			})
		}
	case ledgerclient.TransferStateFailed:
		reason := transfer.Reason
		if reason == "" {
			reason = "transfer failed on target ledger"
		}
		s.releaseReconciled(ctx, record, reason, summary)
	default:
		summary.Indeterminate++
	}
}

func (s *Service) releaseReconciled(ctx context.Context, record *domain.TransferRecord, reason string, summary *ReconcileSummary) {
	if err := s.repo.ReleaseReservation(ctx, record.ID, reason); err != nil {
		log.Printf("level=error component=service op=reconcile msg=\"release of failed transfer failed\" record_id=%s err=%v", record.ID, err)
		summary.Indeterminate++
		return
	}
	summary.Released++
	log.Printf("level=info component=service op=reconcile outcome=released record_id=%s reason=%q", record.ID, reason)
}

// RunReconcileLoop runs ReconcileInFlight on the given interval until the
// context is cancelled. Intended to be started from main as a goroutine.
func (s *Service) RunReconcileLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ReconcileInFlight(ctx, defaultReconcileLimit); err != nil {
				log.Printf("level=warn component=service op=reconcile msg=\"pass failed\" err=%v", err)
			}
		}
	}
}
