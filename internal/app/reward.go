/**
 * @description
 * This file implements the reward calculator: a pure mapping from a verified
 * payment amount to a reward quantity under the fixed collateralization ratio.
 * The formula is reward = claimed / ratio, quantized downward at the target
 * ledger's smallest-unit precision. The calculation is deterministic and
 * side-effect-free; the live reference price never feeds it, so any redemption
 * can be replayed and audited from the record alone.
 *
 * @dependencies
 * - github.com/shopspring/decimal: Exact fixed-point arithmetic; no floats
 *   touch the reward formula.
 */

package app

import (
	"github.com/shopspring/decimal"
)

// SourceDecimals is the smallest-unit precision of the source chain (satoshi).
const SourceDecimals = 8

// Reward is a computed reward quantity, carried both as an exact decimal in
// whole token units and as int64 smallest units for the target ledger.
type Reward struct {
	Amount decimal.Decimal
	Units  int64
}

// RewardCalculator applies the fixed collateralization ratio.
type RewardCalculator struct {
	ratio          decimal.Decimal
	targetDecimals int32
}

// NewRewardCalculator builds a calculator for the given ratio and target-ledger
// precision. The ratio must be a positive rational.
func NewRewardCalculator(ratio decimal.Decimal, targetDecimals int) (*RewardCalculator, error) {
	if !ratio.IsPositive() {
		return nil, &ValidationError{Field: "collateral_ratio", Reason: "must be positive"}
	}
	if targetDecimals < 0 || targetDecimals > 18 {
		return nil, &ValidationError{Field: "target_decimals", Reason: "must be between 0 and 18"}
	}
	return &RewardCalculator{ratio: ratio, targetDecimals: int32(targetDecimals)}, nil
}

// TargetDecimals returns the smallest-unit precision of the target ledger.
func (c *RewardCalculator) TargetDecimals() int32 { return c.targetDecimals }

// ForPayment maps a claimed payment amount (whole source-chain units) to the
// reward. Rounding is always downward at the target precision, so a reward is
// never overstated; sub-unit remainders are dropped. A reward of zero units is
// returned as-is; callers decide whether dust claims are acceptable.
func (c *RewardCalculator) ForPayment(claimed decimal.Decimal) (Reward, error) {
	if !claimed.IsPositive() {
		return Reward{}, &ValidationError{Field: "claimed_amount", Reason: "must be positive"}
	}
	// QuoRem gives the exact truncated quotient at the target precision; both
	// operands are positive, so truncation is a true floor with no half-up
	// rounding anywhere in the division.
	quotient, _ := claimed.QuoRem(c.ratio, c.targetDecimals)
	units := quotient.Shift(c.targetDecimals)
	if units.GreaterThan(maxLedgerUnits) {
		return Reward{}, &ValidationError{Field: "claimed_amount", Reason: "exceeds the maximum representable reward"}
	}
	return Reward{
		Amount: quotient,
		Units:  units.IntPart(),
	}, nil
}

// UnitsForAmount converts a whole-token amount to target-ledger smallest units,
// rejecting values with more precision than the ledger can represent.
func (c *RewardCalculator) UnitsForAmount(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	shifted := amount.Shift(c.targetDecimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, &ValidationError{Field: "amount", Reason: "exceeds target ledger precision"}
	}
	if shifted.GreaterThan(maxLedgerUnits) {
		return 0, &ValidationError{Field: "amount", Reason: "exceeds the maximum representable amount"}
	}
	return shifted.IntPart(), nil
}
