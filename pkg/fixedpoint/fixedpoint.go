// Package fixedpoint implements the overflow-checked integer arithmetic used
// by the dividend accumulator. Accumulator values are 256-bit unsigned
// integers scaled by Precision; balances and payout amounts are int64.
package fixedpoint

import (
	"errors"
	"fmt"
	"math"

	"github.com/holiman/uint256"
)

// PrecisionDecimals is the number of decimal places carried by the accumulator.
const PrecisionDecimals = 18

// ErrOverflow is returned whenever a result does not fit its target width.
var ErrOverflow = errors.New("fixedpoint: arithmetic overflow")

// Precision is the accumulator scale factor (1e18). Treat as read-only.
var Precision = uint256.NewInt(1_000_000_000_000_000_000)

// Zero returns a fresh zero accumulator.
func Zero() *uint256.Int {
	return new(uint256.Int)
}

// Accumulate returns acc + amount*Precision/supply.
// The division floors, so every round loses strictly less than one scaled unit per share.
func Accumulate(acc *uint256.Int, amount, supply int64) (*uint256.Int, error) {
	if amount < 0 || supply <= 0 {
		return nil, fmt.Errorf("accumulate amount=%d supply=%d: %w", amount, supply, ErrOverflow)
	}
	scaled, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(uint64(amount)), Precision)
	if overflow {
		return nil, ErrOverflow
	}
	inc := scaled.Div(scaled, uint256.NewInt(uint64(supply)))

	next, overflow := new(uint256.Int).AddOverflow(acc, inc)
	if overflow {
		return nil, ErrOverflow
	}
	return next, nil
}

// Scaled returns balance*acc, the amount a balance has earned against the
// accumulator since it was zero, still scaled by Precision.
func Scaled(balance int64, acc *uint256.Int) (*uint256.Int, error) {
	if balance < 0 {
		return nil, fmt.Errorf("scale negative balance %d: %w", balance, ErrOverflow)
	}
	if balance == 0 || acc == nil || acc.IsZero() {
		return Zero(), nil
	}
	prod, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(uint64(balance)), acc)
	if overflow {
		return nil, ErrOverflow
	}
	return prod, nil
}

// Units returns floor(scaled/Precision) as whole payout units.
func Units(scaled *uint256.Int) (int64, error) {
	if scaled == nil {
		return 0, nil
	}
	q := new(uint256.Int).Div(scaled, Precision)
	if !q.IsUint64() || q.Uint64() > math.MaxInt64 {
		return 0, ErrOverflow
	}
	return int64(q.Uint64()), nil
}

// AddUnits returns scaled + units*Precision.
func AddUnits(scaled *uint256.Int, units int64) (*uint256.Int, error) {
	if units < 0 {
		return nil, fmt.Errorf("add negative units %d: %w", units, ErrOverflow)
	}
	inc, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(uint64(units)), Precision)
	if overflow {
		return nil, ErrOverflow
	}
	base := scaled
	if base == nil {
		base = Zero()
	}
	sum, overflow := new(uint256.Int).AddOverflow(base, inc)
	if overflow {
		return nil, ErrOverflow
	}
	return sum, nil
}

// Accrued returns floor(balance*acc/Precision), the payout units a balance
// has earned against the accumulator since it was zero.
func Accrued(balance int64, acc *uint256.Int) (int64, error) {
	scaled, err := Scaled(balance, acc)
	if err != nil {
		return 0, err
	}
	return Units(scaled)
}

// Parse reads a base-10 accumulator value.
func Parse(s string) (*uint256.Int, error) {
	if s == "" {
		return Zero(), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("parse accumulator %q: %w", s, err)
	}
	return v, nil
}

// Format renders an accumulator value in base 10.
func Format(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

// Add returns a+b, failing instead of wrapping.
func Add(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// Sub returns a-b, failing instead of wrapping.
func Sub(a, b int64) (int64, error) {
	if (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b) {
		return 0, ErrOverflow
	}
	return a - b, nil
}

// Mul returns a*b, failing instead of wrapping.
func Mul(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	c := a * b
	if c/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, ErrOverflow
	}
	return c, nil
}
