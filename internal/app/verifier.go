/**
 * @description
 * This file implements the payment verifier: a pure read against the source
 * chain's inspection service that validates confirmation, destination, and
 * amount for a submitted payment reference. It has no side effects; every
 * rejection is typed and carries the expected-vs-observed context the caller
 * needs to diagnose the failure.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - internal/domain, pkg/chainclient: Proof model and inspection client.
 */

package app

import (
	"context"
	"errors"
	"time"

	"github.com/mintbridge/redemption-service/internal/domain"
	"github.com/mintbridge/redemption-service/pkg/chainclient"
)

// ChainInspector is the subset of the inspection client the verifier needs.
type ChainInspector interface {
	GetTransaction(ctx context.Context, txID string) (*chainclient.Transaction, error)
}

// PaymentVerifier validates inbound payments against the inspection service.
type PaymentVerifier struct {
	inspector        ChainInspector
	receivingAddress string
	timeout          time.Duration
}

// NewPaymentVerifier creates a verifier bound to the configured receiving address.
func NewPaymentVerifier(inspector ChainInspector, receivingAddress string, timeout time.Duration) *PaymentVerifier {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PaymentVerifier{
		inspector:        inspector,
		receivingAddress: receivingAddress,
		timeout:          timeout,
	}
}

// ReceivingAddress returns the configured inbound payment address.
func (v *PaymentVerifier) ReceivingAddress() string { return v.receivingAddress }

// Verify fetches the transaction and checks confirmation, destination, and
// amount. claimedSats is the minimum value the payment must carry to the
// receiving address.
func (v *PaymentVerifier) Verify(ctx context.Context, txID string, claimedSats int64) (*domain.PaymentProof, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	tx, err := v.inspector.GetTransaction(ctx, txID)
	if err != nil {
		switch {
		case errors.Is(err, chainclient.ErrTxNotFound):
			return nil, ErrUpstreamNotFound
		case errors.Is(err, chainclient.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
			return nil, ErrUpstreamTimeout
		default:
			return nil, err
		}
	}

	if !tx.Status.Confirmed {
		return nil, ErrUnconfirmedPayment
	}

	var matchedSats int64
	var observed []string
	matched := false
	for _, out := range tx.Outputs {
		if out.Address == v.receivingAddress {
			matched = true
			matchedSats += out.ValueSats
			continue
		}
		if out.Address != "" {
			observed = append(observed, out.Address)
		}
	}
	if !matched {
		return nil, &AddressMismatchError{Expected: v.receivingAddress, Observed: observed}
	}
	if matchedSats < claimedSats {
		return nil, &InsufficientPaymentError{ExpectedSats: claimedSats, ObservedSats: matchedSats}
	}

	proof := &domain.PaymentProof{
		TxID:        tx.TxID,
		Confirmed:   true,
		MatchedSats: matchedSats,
	}
	for _, out := range tx.Outputs {
		proof.Outputs = append(proof.Outputs, domain.PaymentOutput{
			Address:   out.Address,
			ValueSats: out.ValueSats,
		})
	}
	return proof, nil
}
