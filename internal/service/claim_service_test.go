package service

import (
	"context"
	"testing"
	"time"

	"solarchain-ledger/internal/core/domain"
	"solarchain-ledger/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==================== Claim Tests ====================

func TestClaimService_WalkthroughWithTransferBetweenRounds(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	assetID := f.issuedAsset(t, "owner", 1000)
	f.transfer(t, assetID, "owner", "x", 300)
	f.transfer(t, assetID, "owner", "y", 700)
	f.fund(t, "owner", 200)

	f.distribute(t, assetID, "owner", 100)
	assert.Equal(t, int64(30), f.unclaimed(t, assetID, "x"))
	assert.Equal(t, int64(70), f.unclaimed(t, assetID, "y"))

	rec, err := f.claims.Claim(ctx, ports.ClaimRequest{AssetID: assetID, Caller: "x"})
	require.NoError(t, err)
	assert.Equal(t, int64(30), rec.Amount)
	assert.Equal(t, "x", rec.Beneficiary)
	assert.Equal(t, int64(0), f.unclaimed(t, assetID, "x"))
	assert.Equal(t, int64(30), f.cash(t, "x"))

	f.transfer(t, assetID, "x", "z", 300)
	f.distribute(t, assetID, "owner", 100)

	// y never claimed, so both rounds are still owed to it.
	assert.Equal(t, int64(140), f.unclaimed(t, assetID, "y"))
	assert.Equal(t, int64(30), f.unclaimed(t, assetID, "z"))
	assert.Equal(t, int64(0), f.unclaimed(t, assetID, "x"))

	summary, err := f.reporting.AssetSummary(ctx, assetID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Distributions)
	assert.Equal(t, int64(200), summary.CumulativeDistributed)
	assert.Equal(t, int64(30), summary.TotalClaimed)
	assert.Equal(t, int64(170), summary.Outstanding)
	assert.Equal(t, int64(170), summary.DividendPoolBalance)
}

func TestClaimService_SplitBalancesNeverOverdrawPool(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	assetID := f.issuedAsset(t, "x", 2)
	f.fund(t, "x", 2)

	f.distribute(t, assetID, "x", 1)
	f.transfer(t, assetID, "x", "z", 1)
	f.distribute(t, assetID, "x", 1)

	owedX, owedZ := f.unclaimed(t, assetID, "x"), f.unclaimed(t, assetID, "z")
	assert.LessOrEqual(t, owedX+owedZ, int64(2))

	for _, holder := range []string{"x", "z"} {
		if f.unclaimed(t, assetID, holder) == 0 {
			continue
		}
		_, err := f.claims.Claim(ctx, ports.ClaimRequest{AssetID: assetID, Caller: holder})
		require.NoError(t, err, "claim by %s", holder)
	}
}

func TestClaimService_ChurnPaysOutAtMostDeposited(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	holders := []string{"owner", "a", "b", "c"}
	assetID := f.issuedAsset(t, "owner", 7)
	f.fund(t, "owner", 1000)

	var deposited int64
	for round := int64(1); round <= 12; round++ {
		from := holders[round%int64(len(holders))]
		to := holders[(round+1)%int64(len(holders))]
		if f.balance(t, assetID, from) > 0 {
			f.transfer(t, assetID, from, to, 1)
		}
		amount := 3 + round%5
		f.distribute(t, assetID, "owner", amount)
		deposited += amount
	}

	var owed int64
	for _, h := range holders {
		owed += f.unclaimed(t, assetID, h)
	}
	assert.LessOrEqual(t, owed, deposited)

	var paid int64
	for _, h := range holders {
		if f.unclaimed(t, assetID, h) == 0 {
			continue
		}
		rec, err := f.claims.Claim(ctx, ports.ClaimRequest{AssetID: assetID, Caller: h})
		require.NoError(t, err, "claim by %s", h)
		paid += rec.Amount
	}
	assert.Equal(t, owed, paid)
	assert.GreaterOrEqual(t, f.cash(t, domain.DividendPoolAccount(assetID)), int64(0))
}

func TestClaimService_SellerKeepsEarnedDividends(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	assetID := f.issuedAsset(t, "owner", 1000)
	f.transfer(t, assetID, "owner", "seller", 300)
	f.fund(t, "owner", 100)
	f.distribute(t, assetID, "owner", 100)

	f.transfer(t, assetID, "seller", "buyer", 300)
	assert.Equal(t, int64(30), f.unclaimed(t, assetID, "seller"))
	assert.Equal(t, int64(0), f.unclaimed(t, assetID, "buyer"))

	rec, err := f.claims.Claim(ctx, ports.ClaimRequest{AssetID: assetID, Caller: "seller"})
	require.NoError(t, err)
	assert.Equal(t, int64(30), rec.Amount)

	_, err = f.claims.Claim(ctx, ports.ClaimRequest{AssetID: assetID, Caller: "buyer"})
	assertAppError(t, err, "CLAIM_001")
}

func TestClaimService_NoDoubleClaim(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	assetID := f.issuedAsset(t, "owner", 1000)
	f.transfer(t, assetID, "owner", "alice", 500)
	f.fund(t, "owner", 100)
	f.distribute(t, assetID, "owner", 100)

	_, err := f.claims.Claim(ctx, ports.ClaimRequest{AssetID: assetID, Caller: "alice"})
	require.NoError(t, err)

	_, err = f.claims.Claim(ctx, ports.ClaimRequest{AssetID: assetID, Caller: "alice"})
	require.Error(t, err)
	assertAppError(t, err, "CLAIM_001")
	assert.Equal(t, int64(50), f.cash(t, "alice"))

	records, err := f.claims.ListClaims(ctx, assetID, "alice", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(50), records[0].Amount)
}

func TestClaimService_UnknownHolder(t *testing.T) {
	f := newLedgerFixture(t)
	assetID := f.issuedAsset(t, "owner", 1000)

	_, err := f.claims.Claim(context.Background(), ports.ClaimRequest{AssetID: assetID, Caller: "ghost"})
	assertAppError(t, err, "CLAIM_001")
	assert.Equal(t, int64(0), f.unclaimed(t, assetID, "ghost"))
}

func TestClaimService_RoundingNeverOverdrawsPool(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	assetID := f.issuedAsset(t, "owner", 3)
	f.transfer(t, assetID, "owner", "a", 1)
	f.transfer(t, assetID, "owner", "b", 1)
	f.transfer(t, assetID, "owner", "c", 1)
	f.fund(t, "funder", 10)
	_, err := f.assets.GrantRole(ctx, "owner", ports.GrantRoleRequest{AssetID: assetID, Subject: "funder", Capability: domain.CapabilityDistributor})
	require.NoError(t, err)
	f.distribute(t, assetID, "funder", 10)

	var paid int64
	for _, h := range []string{"a", "b", "c"} {
		assert.Equal(t, int64(3), f.unclaimed(t, assetID, h))
		rec, err := f.claims.Claim(ctx, ports.ClaimRequest{AssetID: assetID, Caller: h})
		require.NoError(t, err)
		paid += rec.Amount
	}
	assert.Equal(t, int64(9), paid)
	assert.Equal(t, int64(1), f.cash(t, domain.DividendPoolAccount(assetID)))
}

func TestClaimService_ForeignHolderRejected(t *testing.T) {
	f := newLedgerFixture(t)
	assetID := f.issuedAsset(t, "owner", 1000)
	f.transfer(t, assetID, "owner", "alice", 500)

	_, err := f.claims.Claim(context.Background(), ports.ClaimRequest{AssetID: assetID, Caller: "owner", HolderID: "alice"})
	assertAppError(t, err, "AUTH_001")
}

func TestClaimService_OwnerClaimsSalePoolDividends(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	assetID := f.issuedAsset(t, "owner", 1000)
	_, err := f.sales.Open(ctx, ports.OpenSaleRequest{
		AssetID: assetID, Caller: "owner", Quantity: 400, PricePerShare: 5,
		EndsAt: f.clock.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	f.fund(t, "owner", 100)
	f.distribute(t, assetID, "owner", 100)

	pool := domain.SalePoolHolder(assetID)
	assert.Equal(t, int64(40), f.unclaimed(t, assetID, pool))

	_, err = f.claims.Claim(ctx, ports.ClaimRequest{AssetID: assetID, Caller: "mallory", HolderID: pool})
	assertAppError(t, err, "AUTH_001")

	rec, err := f.claims.Claim(ctx, ports.ClaimRequest{AssetID: assetID, Caller: "owner", HolderID: pool})
	require.NoError(t, err)
	assert.Equal(t, int64(40), rec.Amount)
	assert.Equal(t, pool, rec.HolderID)
	assert.Equal(t, "owner", rec.Beneficiary)
	assert.Equal(t, int64(40), f.cash(t, "owner"))
}

func TestClaimService_InactiveAsset(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	assetID := f.issuedAsset(t, "owner", 1000)
	f.fund(t, "owner", 100)
	f.distribute(t, assetID, "owner", 100)
	_, err := f.assets.SetStatus(ctx, testAdmin, assetID, domain.AssetStatusInactive)
	require.NoError(t, err)

	_, err = f.claims.Claim(ctx, ports.ClaimRequest{AssetID: assetID, Caller: "owner"})
	assertAppError(t, err, "ASSET_001")
	assert.Equal(t, int64(100), f.unclaimed(t, assetID, "owner"))
}
