package fixedpoint

import (
	"math"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulate_SplitsProportionally(t *testing.T) {
	acc, err := Accumulate(Zero(), 100, 1000)
	require.NoError(t, err)
	assert.Equal(t, "100000000000000000", Format(acc)) // 0.1 per share

	x, err := Accrued(300, acc)
	require.NoError(t, err)
	y, err := Accrued(700, acc)
	require.NoError(t, err)

	assert.Equal(t, int64(30), x)
	assert.Equal(t, int64(70), y)
}

func TestAccumulate_RoundsDown(t *testing.T) {
	// 10 units over 3 shares: each share earns 3.333... units.
	acc, err := Accumulate(Zero(), 10, 3)
	require.NoError(t, err)

	one, err := Accrued(1, acc)
	require.NoError(t, err)
	all, err := Accrued(3, acc)
	require.NoError(t, err)

	assert.Equal(t, int64(3), one)
	assert.Equal(t, int64(9), all, "residual stays unclaimable, never over-paid")
}

func TestAccumulate_IsMonotonic(t *testing.T) {
	acc := Zero()
	var err error
	for i := 0; i < 50; i++ {
		prev := acc.Clone()
		acc, err = Accumulate(acc, 7, 13)
		require.NoError(t, err)
		assert.True(t, acc.Gt(prev))
	}

	total, err := Accrued(13, acc)
	require.NoError(t, err)
	assert.LessOrEqual(t, total, int64(50*7))
	assert.GreaterOrEqual(t, total, int64(50*7-1))
}

func TestAccumulate_RejectsBadInput(t *testing.T) {
	_, err := Accumulate(Zero(), 1, 0)
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = Accumulate(Zero(), -1, 10)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestAccumulate_Overflow(t *testing.T) {
	huge := new(uint256.Int).SetAllOne()
	_, err := Accumulate(huge, 1, 1)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestAccrued_OverflowsInt64(t *testing.T) {
	acc, err := Accumulate(Zero(), math.MaxInt64, 1)
	require.NoError(t, err)

	_, err = Accrued(2, acc)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestAccrued_ZeroCases(t *testing.T) {
	got, err := Accrued(0, uint256.NewInt(5))
	require.NoError(t, err)
	assert.Zero(t, got)

	got, err = Accrued(10, Zero())
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestParseFormat(t *testing.T) {
	v, err := Parse("123456789012345678901234567890")
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901234567890", Format(v))

	v, err = Parse("")
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	_, err = Parse("not-a-number")
	assert.Error(t, err)

	assert.Equal(t, "0", Format(nil))
}

func TestCheckedInt64(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(a, b int64) (int64, error)
		a, b    int64
		want    int64
		wantErr bool
	}{
		{"add", Add, 2, 3, 5, false},
		{"add overflow", Add, math.MaxInt64, 1, 0, true},
		{"add underflow", Add, math.MinInt64, -1, 0, true},
		{"sub", Sub, 5, 3, 2, false},
		{"sub underflow", Sub, math.MinInt64, 1, 0, true},
		{"sub overflow", Sub, math.MaxInt64, -1, 0, true},
		{"mul", Mul, 6, 7, 42, false},
		{"mul zero", Mul, 0, math.MaxInt64, 0, false},
		{"mul overflow", Mul, math.MaxInt64, 2, 0, true},
		{"mul min", Mul, math.MinInt64, -1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.a, tt.b)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrOverflow)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScaledUnits_KeepRemainder(t *testing.T) {
	acc, err := Accumulate(Zero(), 10, 4) // 2.5 per share
	require.NoError(t, err)

	scaled, err := Scaled(1, acc)
	require.NoError(t, err)
	units, err := Units(scaled)
	require.NoError(t, err)
	assert.Equal(t, int64(2), units)

	debt, err := AddUnits(Zero(), units)
	require.NoError(t, err)
	rest := new(uint256.Int).Sub(scaled, debt)
	assert.Equal(t, "500000000000000000", Format(rest))
}

func TestScaled_RejectsNegative(t *testing.T) {
	_, err := Scaled(-1, uint256.NewInt(1))
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = AddUnits(Zero(), -1)
	assert.ErrorIs(t, err, ErrOverflow)
}
