/**
 * @description
 * This file contains the core business logic for the redemption-service. The
 * `Service` struct orchestrates the redemption pipeline, coordinating the
 * payment verifier, reward calculator, redemption ledger (repository), and the
 * serialized treasury executor.
 *
 * The pipeline order is the design's safety argument: validate → verify →
 * derive reward → reserve the payment reference (atomic unique insert) →
 * execute the transfer → commit. Reserving before submission closes the
 * check-then-act race that would otherwise allow a payment to be redeemed
 * twice by concurrent callers.
 *
 * @dependencies
 * - context, errors, log, time: Standard Go libraries.
 * - github.com/google/uuid: Record and attempt ids.
 * - internal/domain, internal/store: Domain models and data access.
 * - pkg/priceclient, pkg/rabbitmq: Informational price sidecar and event producer.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/mintbridge/redemption-service/internal/domain"
	"github.com/mintbridge/redemption-service/internal/store"
	"github.com/mintbridge/redemption-service/pkg/priceclient"
	"github.com/mintbridge/redemption-service/pkg/rabbitmq"
)

// PriceSource is the informational reference-price feed. It is logging-only
// and must never influence the reward formula.
type PriceSource interface {
	GetSpotPrice(ctx context.Context, pair string) (*priceclient.Quote, error)
}

// ServiceConfig carries the tunables the pipeline needs beyond its collaborators.
type ServiceConfig struct {
	// ReconcileMinAge is how old an in-flight reservation must be before the
	// reconciliation pass will touch it.
	ReconcileMinAge time.Duration
	// ReconcileAbandonAge is how old an in-flight reservation must be before a
	// ledger "not found" is treated as proof the transfer never broadcast.
	ReconcileAbandonAge time.Duration
	// PricePair is the pair quoted by the informational price sidecar.
	PricePair string
	// RedeemRateLimitPerMinute caps redemption attempts per caller; zero
	// disables limiting.
	RedeemRateLimitPerMinute int
}

// Service provides the core business logic for redemptions and transfers.
type Service struct {
	repo        store.Repository
	verifier    *PaymentVerifier
	calc        *RewardCalculator
	treasury    *Treasury
	events      rabbitmq.Publisher
	prices      PriceSource
	rateLimiter *RedisRateLimiter
	cfg         ServiceConfig
}

// NewService creates a new redemption service instance.
func NewService(repo store.Repository, verifier *PaymentVerifier, calc *RewardCalculator, treasury *Treasury, events rabbitmq.Publisher, prices PriceSource, cfg ServiceConfig) *Service {
	if cfg.ReconcileMinAge <= 0 {
		cfg.ReconcileMinAge = 2 * time.Minute
	}
	if cfg.ReconcileAbandonAge < cfg.ReconcileMinAge {
		cfg.ReconcileAbandonAge = 10 * cfg.ReconcileMinAge
	}
	if cfg.PricePair == "" {
		cfg.PricePair = "BTC-USD"
	}
	return &Service{
		repo:     repo,
		verifier: verifier,
		calc:     calc,
		treasury: treasury,
		events:   events,
		prices:   prices,
		cfg:      cfg,
	}
}

// SetRedeemRateLimiter installs the optional distributed rate limiter.
func (s *Service) SetRedeemRateLimiter(limiter *RedisRateLimiter) {
	s.rateLimiter = limiter
}

// CheckRedeemRateLimit enforces the per-caller redemption rate limit. Returns
// the retry-after seconds alongside ErrRateLimited when the limit is exceeded.
// A limiter failure never blocks redemptions; it is logged and waved through.
func (s *Service) CheckRedeemRateLimit(ctx context.Context, subject string) (int, error) {
	if s.rateLimiter == nil || s.cfg.RedeemRateLimitPerMinute <= 0 {
		return 0, nil
	}
	count, retryAfter, err := s.rateLimiter.ConsumeRateLimit(ctx, "redeem", subject, s.cfg.RedeemRateLimitPerMinute, time.Minute)
	if err != nil {
		log.Printf("level=warn component=service op=rate_limit msg=\"limiter unavailable; allowing request\" err=%v", err)
		return 0, nil
	}
	if count > s.cfg.RedeemRateLimitPerMinute {
		return retryAfter, ErrRateLimited
	}
	return 0, nil
}

// Redeem runs the full redemption pipeline for an external payment.
func (s *Service) Redeem(ctx context.Context, req domain.RedemptionRequest) (*domain.RedemptionResult, error) {
	// 1. Validate everything before any external call.
	paymentRef, err := validatePaymentRef(req.SourcePaymentRef)
	if err != nil {
		return nil, err
	}
	destination, err := validateAccountID("destination_account", req.DestinationAccount)
	if err != nil {
		return nil, err
	}
	claimed, claimedSats, err := parseSourceAmount("claimed_amount", req.ClaimedAmount)
	if err != nil {
		return nil, err
	}

	// 2. Verify the payment against the inspection service.
	proof, err := s.verifier.Verify(ctx, paymentRef, claimedSats)
	if err != nil {
		log.Printf("level=warn component=service op=redeem outcome=reject ref=%s err=%v", paymentRef, err)
		return nil, err
	}
	log.Printf("level=info component=service op=redeem stage=verified ref=%s matched_sats=%d", paymentRef, proof.MatchedSats)

	// Informational only: the quote is logged for audit dashboards and has no
	// bearing on the reward below.
	s.logReferencePrice(ctx, paymentRef)

	// 3. Derive the reward server-side; the caller's fields are never trusted
	// beyond the claimed amount the verification was run against.
	reward, err := s.calc.ForPayment(claimed)
	if err != nil {
		return nil, err
	}
	if reward.Units == 0 {
		return nil, &ValidationError{Field: "claimed_amount", Reason: "reward rounds down to zero target units"}
	}

	// 4. Reserve the payment reference before touching the treasury.
	ref := paymentRef
	record := &domain.TransferRecord{
		ID:               uuid.New(),
		SenderAccount:    s.treasury.Account(),
		ReceiverAccount:  destination,
		AmountUnits:      reward.Units,
		SourcePaymentRef: &ref,
		AttemptID:        uuid.New(),
	}
	if err := s.repo.ReserveRedemption(ctx, record); err != nil {
		if errors.Is(err, store.ErrDuplicateRedemption) {
			log.Printf("level=warn component=service op=redeem outcome=duplicate ref=%s", paymentRef)
			return nil, err
		}
		if errors.Is(err, store.ErrStoreUnavailable) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, fmt.Errorf("failed to reserve payment reference: %w", err)
	}

	// 5. Execute the serialized treasury transfer.
	memo := "redeem_ref:" + paymentRef
	txHash, err := s.treasury.Execute(ctx, destination, reward.Units, record.AttemptID, memo)
	if err != nil {
		return nil, s.handleExecuteFailure(ctx, record, paymentRef, err)
	}

	// 6. Commit. If the commit itself fails the transfer has still happened;
	// the reservation stays in flight and reconciliation finalizes it later.
	if err := s.repo.CommitTransfer(ctx, record.ID, txHash); err != nil {
		log.Printf("level=error component=service op=redeem msg=\"CRITICAL: transfer confirmed but commit failed; reconciliation will finalize\" record_id=%s tx_hash=%s err=%v", record.ID, txHash, err)
	} else {
		s.publish(ctx, "redemption.completed", domain.RedemptionCompletedEvent{
			RecordID:         record.ID,
			SourcePaymentRef: paymentRef,
			ReceiverAccount:  destination,
			RewardUnits:      reward.Units,
			TargetTxHash:     txHash,
			Timestamp:        time.Now().UTC(),
		})
	}

	log.Printf("level=info component=service op=redeem outcome=committed ref=%s record_id=%s reward_units=%d tx_hash=%s", paymentRef, record.ID, reward.Units, txHash)
	return &domain.RedemptionResult{
		RecordID:     record.ID,
		RewardAmount: reward.Amount.String(),
		RewardUnits:  reward.Units,
		TargetTxHash: txHash,
	}, nil
}

// handleExecuteFailure resolves a failed treasury execution against the
// reservation: definite failures release it, ambiguous ones leave it in flight.
func (s *Service) handleExecuteFailure(ctx context.Context, record *domain.TransferRecord, paymentRef string, execErr error) error {
	if errors.Is(execErr, ErrAmbiguousSubmission) {
		log.Printf("level=error component=service op=redeem outcome=ambiguous ref=%s record_id=%s attempt_id=%s", paymentRef, record.ID, record.AttemptID)
		s.publish(ctx, "redemption.ambiguous", domain.RedemptionAmbiguousEvent{
			RecordID:         record.ID,
			SourcePaymentRef: paymentRef,
			AttemptID:        record.AttemptID,
			Timestamp:        time.Now().UTC(),
		})
		return execErr
	}

	if err := s.repo.ReleaseReservation(ctx, record.ID, execErr.Error()); err != nil {
		log.Printf("level=error component=service op=redeem msg=\"CRITICAL: failed to release reservation after definite failure\" record_id=%s err=%v", record.ID, err)
	}
	log.Printf("level=warn component=service op=redeem outcome=failed ref=%s record_id=%s err=%v", paymentRef, record.ID, execErr)
	return execErr
}

// DirectTransfer moves reward tokens from the treasury without an inbound
// payment (operational top-ups, compensating records).
func (s *Service) DirectTransfer(ctx context.Context, req domain.DirectTransferRequest) (*domain.RedemptionResult, error) {
	destination, err := validateAccountID("destination_account", req.DestinationAccount)
	if err != nil {
		return nil, err
	}
	amount, err := parseTargetAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	units, err := s.calc.UnitsForAmount(amount)
	if err != nil {
		return nil, err
	}

	record := &domain.TransferRecord{
		ID:              uuid.New(),
		SenderAccount:   s.treasury.Account(),
		ReceiverAccount: destination,
		AmountUnits:     units,
		AttemptID:       uuid.New(),
	}
	if err := s.repo.CreateTransferRecord(ctx, record); err != nil {
		if errors.Is(err, store.ErrStoreUnavailable) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, fmt.Errorf("failed to create transfer record: %w", err)
	}

	txHash, err := s.treasury.Execute(ctx, destination, units, record.AttemptID, "direct_transfer")
	if err != nil {
		return nil, s.handleExecuteFailure(ctx, record, "", err)
	}

	if err := s.repo.CommitTransfer(ctx, record.ID, txHash); err != nil {
		log.Printf("level=error component=service op=transfer msg=\"CRITICAL: transfer confirmed but commit failed; reconciliation will finalize\" record_id=%s tx_hash=%s err=%v", record.ID, txHash, err)
	} else {
		s.publish(ctx, "transfer.completed", domain.TransferCompletedEvent{
			RecordID:        record.ID,
			ReceiverAccount: destination,
			AmountUnits:     units,
			TargetTxHash:    txHash,
			Timestamp:       time.Now().UTC(),
		})
	}

	log.Printf("level=info component=service op=transfer outcome=committed record_id=%s amount_units=%d tx_hash=%s", record.ID, units, txHash)
	return &domain.RedemptionResult{
		RecordID:     record.ID,
		RewardAmount: amount.String(),
		RewardUnits:  units,
		TargetTxHash: txHash,
	}, nil
}

// ListTransfers returns transfer records filtered by sender/receiver,
// most recent first. Purely a projection; never mutates the ledger.
func (s *Service) ListTransfers(ctx context.Context, sender, receiver string, limit int) ([]domain.TransferRecord, error) {
	records, err := s.repo.FindTransferRecords(ctx, sender, receiver, limit)
	if err != nil {
		if errors.Is(err, store.ErrStoreUnavailable) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	return records, nil
}

// TransferByID returns a single transfer record.
func (s *Service) TransferByID(ctx context.Context, recordID uuid.UUID) (*domain.TransferRecord, error) {
	record, err := s.repo.FindTransferRecordByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, store.ErrStoreUnavailable) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	return record, nil
}

// RedemptionByPaymentRef returns the live (non-failed) record holding a source
// payment reference, letting callers check whether a payment was redeemed.
func (s *Service) RedemptionByPaymentRef(ctx context.Context, paymentRef string) (*domain.TransferRecord, error) {
	ref, err := validatePaymentRef(paymentRef)
	if err != nil {
		return nil, err
	}
	record, err := s.repo.FindTransferRecordByPaymentRef(ctx, ref)
	if err != nil {
		if errors.Is(err, store.ErrStoreUnavailable) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	return record, nil
}

// AccountBalance returns the target-ledger balance for an account.
func (s *Service) AccountBalance(ctx context.Context, account string) (string, int64, error) {
	validated, err := validateAccountID("account", account)
	if err != nil {
		return "", 0, err
	}
	units, err := s.treasury.BalanceOf(ctx, validated)
	if err != nil {
		return "", 0, err
	}
	return validated, units, nil
}

func (s *Service) logReferencePrice(ctx context.Context, paymentRef string) {
	if s.prices == nil {
		return
	}
	quote, err := s.prices.GetSpotPrice(ctx, s.cfg.PricePair)
	if err != nil {
		log.Printf("level=warn component=service op=price_sidecar msg=\"reference price unavailable\" err=%v", err)
		return
	}
	log.Printf("level=info component=service op=price_sidecar ref=%s pair=%s spot=%s", paymentRef, quote.Pair, quote.Amount)
}

func (s *Service) publish(ctx context.Context, routingKey string, body interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, rabbitmq.BridgeEventsExchange, routingKey, body); err != nil {
		log.Printf("level=warn component=service op=publish msg=\"event publish failed\" routing_key=%s err=%v", routingKey, err)
	}
}
