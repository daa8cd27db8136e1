/**
 * @description
 * This file implements the transfer executor: the single component allowed to
 * move reward tokens from the custodial signing identity. Because that
 * identity's sequence number is a strictly ordered shared resource, the whole
 * check-balance → submit → await-receipt sequence is serialized behind one
 * mutex; concurrent redemptions queue here rather than racing the signer.
 *
 * Failure classification is the load-bearing part: a structured ledger
 * rejection before broadcast maps to ErrChainSubmission (retryable), while any
 * failure after the submission was sent (transport errors, receipt-poll
 * timeouts) maps to ErrAmbiguousSubmission and leaves resolution to the
 * reconciliation pass.
 *
 * @dependencies
 * - context, errors, log, sync, time: Standard Go libraries.
 * - github.com/google/uuid: Attempt references.
 * - pkg/ledgerclient: Target ledger node client.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mintbridge/redemption-service/pkg/ledgerclient"
)

// TreasuryLedger is the subset of the ledger client the executor needs.
type TreasuryLedger interface {
	GetBalance(ctx context.Context, account string) (*ledgerclient.Balance, error)
	SubmitTransfer(ctx context.Context, req ledgerclient.TransferRequest) (*ledgerclient.Transfer, error)
	GetTransferByReference(ctx context.Context, reference uuid.UUID) (*ledgerclient.Transfer, error)
}

// Treasury executes reward transfers from the custodial signing identity.
type Treasury struct {
	mu                  sync.Mutex
	ledger              TreasuryLedger
	account             string
	receiptPollInterval time.Duration
	receiptTimeout      time.Duration
}

// NewTreasury creates the executor for the given signing account.
func NewTreasury(ledger TreasuryLedger, account string, receiptPollInterval, receiptTimeout time.Duration) *Treasury {
	if receiptPollInterval <= 0 {
		receiptPollInterval = 500 * time.Millisecond
	}
	if receiptTimeout <= 0 {
		receiptTimeout = 30 * time.Second
	}
	return &Treasury{
		ledger:              ledger,
		account:             account,
		receiptPollInterval: receiptPollInterval,
		receiptTimeout:      receiptTimeout,
	}
}

// Account returns the signing identity's account id.
func (t *Treasury) Account() string { return t.account }

// BalanceOf reads any account's balance. Reads do not touch the signer's
// sequence number, so no serialization is needed.
func (t *Treasury) BalanceOf(ctx context.Context, account string) (int64, error) {
	balance, err := t.ledger.GetBalance(ctx, account)
	if err != nil {
		return 0, mapLedgerReadError(err)
	}
	return balance.Units, nil
}

// Execute submits a transfer of amountUnits to destination and waits for the
// ledger's receipt, returning the confirmed transaction hash. The reference is
// the reservation's attempt id; the ledger deduplicates on it, which is what
// makes reconciliation of ambiguous outcomes possible.
func (t *Treasury) Execute(ctx context.Context, destination string, amountUnits int64, reference uuid.UUID, memo string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	balance, err := t.ledger.GetBalance(ctx, t.account)
	if err != nil {
		return "", mapLedgerReadError(err)
	}
	if balance.Units < amountUnits {
		return "", &InsufficientTreasuryBalanceError{RequestedUnits: amountUnits, AvailableUnits: balance.Units}
	}

	transfer, err := t.ledger.SubmitTransfer(ctx, ledgerclient.TransferRequest{
		Reference:   reference,
		Source:      t.account,
		Destination: destination,
		AmountUnits: amountUnits,
		Memo:        memo,
	})
	if err != nil {
		var rejection *ledgerclient.RejectionError
		if errors.As(err, &rejection) {
			return "", fmt.Errorf("%w: %s", ErrChainSubmission, rejection.Message)
		}
		if errors.Is(err, ledgerclient.ErrSubmissionAmbiguous) {
			log.Printf("level=warn component=treasury op=submit reference=%s msg=\"ambiguous submission\" err=%v", reference, err)
			return "", ErrAmbiguousSubmission
		}
		// The client reports every post-send uncertainty as
		// ErrSubmissionAmbiguous, so anything else failed before the request
		// was written and the attempt is safely retryable.
		return "", fmt.Errorf("%w: %v", ErrChainSubmission, err)
	}

	return t.awaitReceipt(ctx, reference, transfer)
}

// Lookup queries the ledger for a transfer by its attempt reference. Used by
// the reconciliation pass; does not hold the serialization lock.
func (t *Treasury) Lookup(ctx context.Context, reference uuid.UUID) (*ledgerclient.Transfer, error) {
	return t.ledger.GetTransferByReference(ctx, reference)
}

func (t *Treasury) awaitReceipt(ctx context.Context, reference uuid.UUID, transfer *ledgerclient.Transfer) (string, error) {
	deadline := time.NewTimer(t.receiptTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(t.receiptPollInterval)
	defer ticker.Stop()

	current := transfer
	for {
		switch current.State {
		case ledgerclient.TransferStateConfirmed:
			return current.TxHash, nil
		case ledgerclient.TransferStateFailed:
			// A definitive on-ledger failure means no funds moved.
			reason := current.Reason
			if reason == "" {
				reason = "transfer failed on target ledger"
			}
			return "", fmt.Errorf("%w: %s", ErrChainSubmission, reason)
		}

		select {
		case <-ctx.Done():
			log.Printf("level=warn component=treasury op=await_receipt reference=%s msg=\"context cancelled while awaiting receipt\"", reference)
			return "", ErrAmbiguousSubmission
		case <-deadline.C:
			log.Printf("level=warn component=treasury op=await_receipt reference=%s msg=\"receipt wait timed out\"", reference)
			return "", ErrAmbiguousSubmission
		case <-ticker.C:
		}

		polled, err := t.ledger.GetTransferByReference(ctx, reference)
		if err != nil {
			// The transfer was already broadcast; a failed poll proves nothing.
			log.Printf("level=warn component=treasury op=await_receipt reference=%s msg=\"receipt poll failed\" err=%v", reference, err)
			return "", ErrAmbiguousSubmission
		}
		current = polled
	}
}

func mapLedgerReadError(err error) error {
	switch {
	case errors.Is(err, ledgerclient.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrUpstreamTimeout
	case errors.Is(err, ledgerclient.ErrNotFound):
		return ErrUpstreamNotFound
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}
