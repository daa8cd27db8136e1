/**
 * @description
 * This file defines the error taxonomy for the redemption pipeline. Sentinel
 * errors are what handlers and callers branch on via errors.Is; the richer
 * error structs carry the expected-vs-observed context the API includes in
 * responses, and unwrap to their sentinel. No error in this file ever carries
 * credentials or infrastructure detail.
 */

package app

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks malformed input, always rejected before any external call.
	ErrValidation = errors.New("validation failed")
	// ErrUnconfirmedPayment means the source transaction exists but is not yet confirmed.
	ErrUnconfirmedPayment = errors.New("payment is not yet confirmed")
	// ErrAddressMismatch means no output of the payment pays the configured receiving address.
	ErrAddressMismatch = errors.New("payment does not pay the receiving address")
	// ErrInsufficientPayment means the value paid to the receiving address is below the claim.
	ErrInsufficientPayment = errors.New("verified payment is below the claimed amount")
	// ErrInsufficientTreasuryBalance means the signing identity cannot cover the reward.
	ErrInsufficientTreasuryBalance = errors.New("treasury balance below requested amount")
	// ErrUpstreamTimeout means an external call exceeded its bounded timeout.
	ErrUpstreamTimeout = errors.New("upstream call timed out")
	// ErrUpstreamNotFound means the inspection service has no such transaction.
	ErrUpstreamNotFound = errors.New("source transaction not found")
	// ErrChainSubmission is a pre-broadcast submission failure; safely retryable.
	ErrChainSubmission = errors.New("transfer submission failed before broadcast")
	// ErrAmbiguousSubmission is a post-broadcast, pre-confirmation failure; the
	// transfer may or may not have landed and the reservation stays in flight
	// until reconciliation resolves it. Never blindly retryable.
	ErrAmbiguousSubmission = errors.New("transfer submission outcome unknown")
	// ErrUnavailable means the ledger store or an upstream is temporarily unreachable.
	ErrUnavailable = errors.New("backing store unavailable")
	// ErrRateLimited means the caller exceeded the redemption rate limit.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// ValidationError describes a single malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// AddressMismatchError lists the destinations actually observed on the payment
// so the caller can diagnose which address they paid.
type AddressMismatchError struct {
	Expected string
	Observed []string
}

func (e *AddressMismatchError) Error() string {
	return fmt.Sprintf("no output pays %s (observed destinations: %s)", e.Expected, strings.Join(e.Observed, ", "))
}

func (e *AddressMismatchError) Unwrap() error { return ErrAddressMismatch }

// InsufficientPaymentError carries expected vs observed value in satoshi.
type InsufficientPaymentError struct {
	ExpectedSats int64
	ObservedSats int64
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("payment of %d sats is below the claimed %d sats", e.ObservedSats, e.ExpectedSats)
}

func (e *InsufficientPaymentError) Unwrap() error { return ErrInsufficientPayment }

// InsufficientTreasuryBalanceError carries requested vs available units.
type InsufficientTreasuryBalanceError struct {
	RequestedUnits int64
	AvailableUnits int64
}

func (e *InsufficientTreasuryBalanceError) Error() string {
	return fmt.Sprintf("treasury holds %d units, %d requested", e.AvailableUnits, e.RequestedUnits)
}

func (e *InsufficientTreasuryBalanceError) Unwrap() error { return ErrInsufficientTreasuryBalance }
