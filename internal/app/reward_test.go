package app

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestRewardCalculator_ForPayment(t *testing.T) {
	tests := []struct {
		name           string
		ratio          string
		targetDecimals int
		claimed        string
		wantAmount     string
		wantUnits      int64
	}{
		{
			name:           "halves the claimed amount at ratio 2",
			ratio:          "2",
			targetDecimals: 8,
			claimed:        "0.1",
			wantAmount:     "0.05",
			wantUnits:      5000000,
		},
		{
			name:           "whole coin at ratio 2",
			ratio:          "2",
			targetDecimals: 8,
			claimed:        "1",
			wantAmount:     "0.5",
			wantUnits:      50000000,
		},
		{
			name:           "non-terminating quotient truncates downward",
			ratio:          "3",
			targetDecimals: 8,
			claimed:        "1",
			wantAmount:     "0.33333333",
			wantUnits:      33333333,
		},
		{
			name:           "single smallest unit rounds down to zero",
			ratio:          "2",
			targetDecimals: 8,
			claimed:        "0.00000001",
			wantAmount:     "0",
			wantUnits:      0,
		},
		{
			name:           "fractional ratio",
			ratio:          "1.5",
			targetDecimals: 8,
			claimed:        "3",
			wantAmount:     "2",
			wantUnits:      200000000,
		},
		{
			name:           "zero target decimals truncates to whole tokens",
			ratio:          "2",
			targetDecimals: 0,
			claimed:        "5",
			wantAmount:     "2",
			wantUnits:      2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc, err := NewRewardCalculator(decimal.RequireFromString(tt.ratio), tt.targetDecimals)
			if err != nil {
				t.Fatalf("NewRewardCalculator returned error: %v", err)
			}
			reward, err := calc.ForPayment(decimal.RequireFromString(tt.claimed))
			if err != nil {
				t.Fatalf("ForPayment returned error: %v", err)
			}
			if !reward.Amount.Equal(decimal.RequireFromString(tt.wantAmount)) {
				t.Fatalf("expected amount %s, got %s", tt.wantAmount, reward.Amount)
			}
			if reward.Units != tt.wantUnits {
				t.Fatalf("expected %d units, got %d", tt.wantUnits, reward.Units)
			}
		})
	}
}

func TestRewardCalculator_NeverRoundsUp(t *testing.T) {
	calc, err := NewRewardCalculator(decimal.RequireFromString("2"), 8)
	if err != nil {
		t.Fatalf("NewRewardCalculator returned error: %v", err)
	}

	// 0.00000003 / 2 = 0.000000015, which sits exactly between two
	// representable units. The reward must drop the remainder.
	reward, err := calc.ForPayment(decimal.RequireFromString("0.00000003"))
	if err != nil {
		t.Fatalf("ForPayment returned error: %v", err)
	}
	if reward.Units != 1 {
		t.Fatalf("expected exactly 1 unit, got %d", reward.Units)
	}
}

func TestRewardCalculator_RejectsNonPositiveClaim(t *testing.T) {
	calc, err := NewRewardCalculator(decimal.RequireFromString("2"), 8)
	if err != nil {
		t.Fatalf("NewRewardCalculator returned error: %v", err)
	}

	for _, claimed := range []string{"0", "-0.5"} {
		if _, err := calc.ForPayment(decimal.RequireFromString(claimed)); err == nil {
			t.Fatalf("expected ForPayment to reject claimed amount %s", claimed)
		}
	}
}

func TestNewRewardCalculator_RejectsInvalidInputs(t *testing.T) {
	if _, err := NewRewardCalculator(decimal.Zero, 8); err == nil {
		t.Fatal("expected zero ratio to be rejected")
	}
	if _, err := NewRewardCalculator(decimal.RequireFromString("-2"), 8); err == nil {
		t.Fatal("expected negative ratio to be rejected")
	}
	if _, err := NewRewardCalculator(decimal.RequireFromString("2"), 19); err == nil {
		t.Fatal("expected out-of-range target decimals to be rejected")
	}
}

func TestRewardCalculator_UnitsForAmount(t *testing.T) {
	calc, err := NewRewardCalculator(decimal.RequireFromString("2"), 8)
	if err != nil {
		t.Fatalf("NewRewardCalculator returned error: %v", err)
	}

	units, err := calc.UnitsForAmount(decimal.RequireFromString("1.5"))
	if err != nil {
		t.Fatalf("UnitsForAmount returned error: %v", err)
	}
	if units != 150000000 {
		t.Fatalf("expected 150000000 units, got %d", units)
	}

	if _, err := calc.UnitsForAmount(decimal.RequireFromString("0.000000001")); err == nil {
		t.Fatal("expected sub-unit precision to be rejected")
	}
	if _, err := calc.UnitsForAmount(decimal.Zero); err == nil {
		t.Fatal("expected zero amount to be rejected")
	}
	if _, err := calc.UnitsForAmount(decimal.RequireFromString("92233720368.54775808")); err == nil {
		t.Fatal("expected amount past the int64 unit ceiling to be rejected")
	}
}

func TestRewardCalculator_RejectsOverflowingReward(t *testing.T) {
	calc, err := NewRewardCalculator(decimal.RequireFromString("1"), 8)
	if err != nil {
		t.Fatalf("NewRewardCalculator returned error: %v", err)
	}

	// At ratio 1 this claim maps to 2^63 smallest units, one past what int64
	// can carry. Without the bound the unit count wraps negative.
	if _, err := calc.ForPayment(decimal.RequireFromString("92233720368.54775808")); err == nil {
		t.Fatal("expected overflowing reward to be rejected")
	}

	reward, err := calc.ForPayment(decimal.RequireFromString("92233720368.54775807"))
	if err != nil {
		t.Fatalf("ForPayment returned error at the ceiling: %v", err)
	}
	if reward.Units != math.MaxInt64 {
		t.Fatalf("expected %d units at the ceiling, got %d", int64(math.MaxInt64), reward.Units)
	}
}
