/**
 * @description
 * Request validation helpers for the redemption pipeline. Every rule here runs
 * before any external call is made, so malformed input is rejected without
 * touching the inspection service or ledger node.
 */

package app

import (
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// maxLedgerUnits bounds every smallest-unit quantity to what int64 can carry.
// decimal's IntPart wraps silently past this, so the bound is checked on the
// shifted decimal before conversion.
var maxLedgerUnits = decimal.NewFromInt(math.MaxInt64)

var (
	// Source-chain transaction ids are 64 hex characters.
	paymentRefPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
	// Target-ledger account ids: lowercase alphanumeric with _ or -, 8-64 chars,
	// starting with a letter or digit.
	accountIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{7,63}$`)
)

func validatePaymentRef(raw string) (string, error) {
	ref := strings.TrimSpace(raw)
	if ref == "" {
		return "", &ValidationError{Field: "source_payment_ref", Reason: "is required"}
	}
	if !paymentRefPattern.MatchString(ref) {
		return "", &ValidationError{Field: "source_payment_ref", Reason: "must be a 64-character hex transaction id"}
	}
	return strings.ToLower(ref), nil
}

func validateAccountID(field, raw string) (string, error) {
	account := strings.TrimSpace(raw)
	if account == "" {
		return "", &ValidationError{Field: field, Reason: "is required"}
	}
	if !accountIDPattern.MatchString(account) {
		return "", &ValidationError{Field: field, Reason: "must be 8-64 lowercase alphanumeric characters"}
	}
	return account, nil
}

// parseSourceAmount parses a whole-unit decimal string from the source chain
// and returns both the decimal and its satoshi value. Non-numeric,
// non-positive, and sub-satoshi precision inputs are rejected, never clamped.
func parseSourceAmount(field, raw string) (decimal.Decimal, int64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, 0, &ValidationError{Field: field, Reason: "is required"}
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, 0, &ValidationError{Field: field, Reason: "must be a decimal number"}
	}
	if !amount.IsPositive() {
		return decimal.Zero, 0, &ValidationError{Field: field, Reason: "must be positive"}
	}
	sats := amount.Shift(SourceDecimals)
	if !sats.Equal(sats.Truncate(0)) {
		return decimal.Zero, 0, &ValidationError{Field: field, Reason: "has more than 8 decimal places"}
	}
	if sats.GreaterThan(maxLedgerUnits) {
		return decimal.Zero, 0, &ValidationError{Field: field, Reason: "exceeds the maximum representable amount"}
	}
	return amount, sats.IntPart(), nil
}

// parseTargetAmount parses a whole-token decimal string for the target ledger.
func parseTargetAmount(field, raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, &ValidationError{Field: field, Reason: "is required"}
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: field, Reason: "must be a decimal number"}
	}
	if !amount.IsPositive() {
		return decimal.Zero, &ValidationError{Field: field, Reason: "must be positive"}
	}
	return amount, nil
}
