package domain

import (
	"testing"
	"time"

	"solarchain-ledger/pkg/fixedpoint"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func accAfter(t *testing.T, supply int64, amounts ...int64) *uint256.Int {
	t.Helper()
	acc := fixedpoint.Zero()
	for _, a := range amounts {
		var err error
		acc, err = fixedpoint.Accumulate(acc, a, supply)
		require.NoError(t, err)
	}
	return acc
}

func TestAsset_IsActive(t *testing.T) {
	tests := []struct {
		name   string
		status AssetStatus
		want   bool
	}{
		{"active", AssetStatusActive, true},
		{"inactive", AssetStatusInactive, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Asset{Status: tt.status}
			assert.Equal(t, tt.want, a.IsActive())
		})
	}
}

func TestEnums_Valid(t *testing.T) {
	assert.True(t, AssetStatusActive.Valid())
	assert.False(t, AssetStatus("PENDING").Valid())

	assert.True(t, CapabilityDistributor.Valid())
	assert.False(t, Capability("investor").Valid())

	assert.True(t, PaymentKindDividendPayout.Valid())
	assert.False(t, PaymentKind("").Valid())
}

func TestHolding_PendingAndClaim(t *testing.T) {
	acc := accAfter(t, 1000, 100)
	h := &Holding{HolderID: "x", Balance: 300}

	pending, err := h.Pending(acc)
	require.NoError(t, err)
	assert.Equal(t, int64(30), pending)

	claimed, err := h.Claim(acc)
	require.NoError(t, err)
	assert.Equal(t, int64(30), claimed)
	assert.Equal(t, "30000000000000000000", h.RewardDebtString())
	assert.Equal(t, int64(30), h.TotalClaimed)

	again, err := h.Claim(acc)
	require.NoError(t, err)
	assert.Zero(t, again, "second claim without a new distribution pays nothing")
	assert.Equal(t, int64(30), h.TotalClaimed)
}

func TestHolding_RebalanceKeepsEarnedCredit(t *testing.T) {
	acc := accAfter(t, 1000, 100)
	seller := &Holding{HolderID: "a", Balance: 1000}
	buyer := NewHolding(uuid.New(), "b")

	require.NoError(t, seller.Rebalance(acc, 0))
	require.NoError(t, buyer.Rebalance(acc, 1000))

	sellerPending, err := seller.Pending(acc)
	require.NoError(t, err)
	buyerPending, err := buyer.Pending(acc)
	require.NoError(t, err)

	assert.Equal(t, int64(100), sellerPending, "seller keeps pre-transfer entitlement")
	assert.Zero(t, buyerPending, "buyer earns nothing from the earlier round")

	acc = accAfter(t, 1000, 100, 50)
	sellerPending, err = seller.Pending(acc)
	require.NoError(t, err)
	buyerPending, err = buyer.Pending(acc)
	require.NoError(t, err)

	assert.Equal(t, int64(100), sellerPending)
	assert.Equal(t, int64(50), buyerPending)
}

func TestHolding_SplitNeverOwesMoreThanDeposited(t *testing.T) {
	// Two shares, one unit per round: after the split each half is owed
	// half a unit per round, which must never round up into a whole unit.
	acc := accAfter(t, 2, 1)
	x := &Holding{HolderID: "x", Balance: 2}
	z := NewHolding(uuid.New(), "z")

	require.NoError(t, x.Rebalance(acc, 1))
	require.NoError(t, z.Rebalance(acc, 1))

	acc = accAfter(t, 2, 1, 1)
	xOwed, err := x.Pending(acc)
	require.NoError(t, err)
	zOwed, err := z.Pending(acc)
	require.NoError(t, err)

	assert.Equal(t, int64(1), xOwed)
	assert.Zero(t, zOwed)
	assert.LessOrEqual(t, xOwed+zOwed, int64(2))
}

func TestHolding_ClaimKeepsSubUnitRemainder(t *testing.T) {
	// 10 units over 4 shares: a single share earns 2.5 per round.
	h := &Holding{HolderID: "a", Balance: 1}

	got, err := h.Claim(accAfter(t, 4, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(2), got)

	got, err = h.Claim(accAfter(t, 4, 10, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(3), got, "the half unit left over from the first round is paid later")
	assert.Equal(t, int64(5), h.TotalClaimed)
}

func TestHolding_RebalanceRejectsNegative(t *testing.T) {
	h := &Holding{HolderID: "a", Balance: 5}
	err := h.Rebalance(fixedpoint.Zero(), -1)
	assert.ErrorIs(t, err, fixedpoint.ErrOverflow)
	assert.Equal(t, int64(5), h.Balance)
}

func TestHolding_CorruptDebt(t *testing.T) {
	h := &Holding{HolderID: "a", Balance: 10, RewardDebt: uint256.MustFromDecimal("99000000000000000000")}
	_, err := h.Pending(accAfter(t, 10, 10))
	assert.ErrorIs(t, err, ErrDebtExceedsAccrued)
}

func TestOwnershipPercent(t *testing.T) {
	tests := []struct {
		balance, supply int64
		want            string
	}{
		{300, 1000, "30.0000"},
		{1, 3, "33.3333"},
		{0, 1000, "0.0000"},
		{5, 0, "0.0000"},
		{1000, 1000, "100.0000"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, OwnershipPercent(tt.balance, tt.supply))
	}
}

func TestSaleOffer_State(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		offer SaleOffer
		want  SaleState
	}{
		{"active", SaleOffer{SharesRemaining: 10, EndsAt: now.Add(time.Hour)}, SaleStateActive},
		{"exhausted before deadline", SaleOffer{SharesRemaining: 0, EndsAt: now.Add(time.Hour)}, SaleStateEnded},
		{"deadline reached", SaleOffer{SharesRemaining: 10, EndsAt: now}, SaleStateEnded},
		{"closed", SaleOffer{SharesRemaining: 10, EndsAt: now.Add(time.Hour), Closed: true}, SaleStateEnded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.offer.State(now))
		})
	}
}

func TestSystemHolderIDs(t *testing.T) {
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	assert.Equal(t, "sale-pool:550e8400-e29b-41d4-a716-446655440000", SalePoolHolder(id))
	assert.Equal(t, "sale-proceeds:550e8400-e29b-41d4-a716-446655440000", SaleProceedsAccount(id))
	assert.Equal(t, "dividend-pool:550e8400-e29b-41d4-a716-446655440000", DividendPoolAccount(id))
}

func TestBuildPurchaseKey(t *testing.T) {
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000:alice:k-1", BuildPurchaseKey(id, "alice", "k-1"))
}
