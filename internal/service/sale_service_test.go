package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"solarchain-ledger/internal/core/domain"
	"solarchain-ledger/internal/core/ports"
	"solarchain-ledger/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func openSale(t *testing.T, f *ledgerFixture, assetID uuid.UUID, quantity, price int64) *domain.SaleView {
	t.Helper()
	view, err := f.sales.Open(context.Background(), ports.OpenSaleRequest{
		AssetID:       assetID,
		Caller:        "owner",
		Quantity:      quantity,
		PricePerShare: price,
		EndsAt:        f.clock.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	return view
}

// ==================== Open Tests ====================

func TestSaleService_Open_EscrowsShares(t *testing.T) {
	f := newLedgerFixture(t)
	assetID := f.issuedAsset(t, "owner", 1000)

	view := openSale(t, f, assetID, 400, 25)
	assert.Equal(t, domain.SaleStateActive, view.State)
	assert.Equal(t, int64(400), view.SharesRemaining)
	assert.Equal(t, "0.0000", view.SoldPct)
	assert.Equal(t, int64(600), f.balance(t, assetID, "owner"))
	assert.Equal(t, int64(400), f.balance(t, assetID, domain.SalePoolHolder(assetID)))
	require.NoError(t, f.ledger.VerifySupply(context.Background(), assetID))
}

func TestSaleService_Open_Validation(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	assetID := f.issuedAsset(t, "owner", 1000)

	_, err := f.sales.Open(ctx, ports.OpenSaleRequest{AssetID: assetID, Caller: "owner", Quantity: 0, PricePerShare: 1, EndsAt: f.clock.Now().Add(time.Hour)})
	assertAppError(t, err, "LEDGER_002")

	_, err = f.sales.Open(ctx, ports.OpenSaleRequest{AssetID: assetID, Caller: "owner", Quantity: 1, PricePerShare: 1, EndsAt: f.clock.Now()})
	assertAppError(t, err, "REQ_001")

	_, err = f.sales.Open(ctx, ports.OpenSaleRequest{AssetID: assetID, Caller: "mallory", Quantity: 1, PricePerShare: 1, EndsAt: f.clock.Now().Add(time.Hour)})
	assertAppError(t, err, "AUTH_001")

	_, err = f.sales.Open(ctx, ports.OpenSaleRequest{AssetID: assetID, Caller: "owner", Quantity: 1001, PricePerShare: 1, EndsAt: f.clock.Now().Add(time.Hour)})
	assertAppError(t, err, "LEDGER_001")
}

func TestSaleService_Open_OnlyOncePerAsset(t *testing.T) {
	f := newLedgerFixture(t)
	assetID := f.issuedAsset(t, "owner", 1000)
	openSale(t, f, assetID, 100, 1)

	_, err := f.sales.Open(context.Background(), ports.OpenSaleRequest{AssetID: assetID, Caller: "owner", Quantity: 100, PricePerShare: 1, EndsAt: f.clock.Now().Add(time.Hour)})
	assertAppError(t, err, "SALE_004")
	assert.Equal(t, int64(900), f.balance(t, assetID, "owner"))
}

// ==================== Purchase Tests ====================

func TestSaleService_Purchase_Success(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	assetID := f.issuedAsset(t, "owner", 1000)
	openSale(t, f, assetID, 400, 25)
	f.fund(t, "buyer", 10_000)

	p, err := f.sales.Purchase(ctx, ports.PurchaseRequest{AssetID: assetID, BuyerID: "buyer", Quantity: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(2500), p.TotalCost)
	assert.NotEqual(t, uuid.Nil, p.PaymentTransferID)

	assert.Equal(t, int64(100), f.balance(t, assetID, "buyer"))
	assert.Equal(t, int64(7500), f.cash(t, "buyer"))
	assert.Equal(t, int64(2500), f.cash(t, domain.SaleProceedsAccount(assetID)))

	view, err := f.sales.State(ctx, assetID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), view.SharesRemaining)
	assert.Equal(t, int64(100), view.SharesSold)
	assert.Equal(t, int64(2500), view.ProceedsBalance)
	assert.Equal(t, "25.0000", view.SoldPct)
}

func TestSaleService_Purchase_PaymentFailureRollsBack(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	assetID := f.issuedAsset(t, "owner", 1000)
	openSale(t, f, assetID, 400, 25)
	f.fund(t, "buyer", 2499)

	_, err := f.sales.Purchase(ctx, ports.PurchaseRequest{AssetID: assetID, BuyerID: "buyer", Quantity: 100})
	require.Error(t, err)
	assertAppError(t, err, "PAY_001")

	assert.Equal(t, int64(0), f.balance(t, assetID, "buyer"))
	assert.Equal(t, int64(400), f.balance(t, assetID, domain.SalePoolHolder(assetID)))
	assert.Equal(t, int64(2499), f.cash(t, "buyer"))
	view, err := f.sales.State(ctx, assetID)
	require.NoError(t, err)
	assert.Equal(t, int64(400), view.SharesRemaining)
}

func TestSaleService_Purchase_Exhaustion(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	assetID := f.issuedAsset(t, "owner", 1000)
	openSale(t, f, assetID, 10, 1)
	f.fund(t, "buyer", 100)

	_, err := f.sales.Purchase(ctx, ports.PurchaseRequest{AssetID: assetID, BuyerID: "buyer", Quantity: 11})
	assertAppError(t, err, "SALE_002")

	_, err = f.sales.Purchase(ctx, ports.PurchaseRequest{AssetID: assetID, BuyerID: "buyer", Quantity: 10})
	require.NoError(t, err)

	view, err := f.sales.State(ctx, assetID)
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStateEnded, view.State)
	assert.True(t, view.Closed)

	_, err = f.sales.Purchase(ctx, ports.PurchaseRequest{AssetID: assetID, BuyerID: "buyer", Quantity: 1})
	assertAppError(t, err, "SALE_001")
}

func TestSaleService_Purchase_AfterEndsAt(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	assetID := f.issuedAsset(t, "owner", 1000)
	openSale(t, f, assetID, 10, 1)
	f.fund(t, "buyer", 100)

	f.clock.Advance(time.Hour)
	_, err := f.sales.Purchase(ctx, ports.PurchaseRequest{AssetID: assetID, BuyerID: "buyer", Quantity: 1})
	assertAppError(t, err, "SALE_001")
}

func TestSaleService_Purchase_NoSale(t *testing.T) {
	f := newLedgerFixture(t)
	assetID := f.issuedAsset(t, "owner", 1000)

	_, err := f.sales.Purchase(context.Background(), ports.PurchaseRequest{AssetID: assetID, BuyerID: "buyer", Quantity: 1})
	assertAppError(t, err, "RES_001")
}

func TestSaleService_Purchase_IdempotentReplay(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	assetID := f.issuedAsset(t, "owner", 1000)
	openSale(t, f, assetID, 100, 3)
	f.fund(t, "buyer", 100)

	req := ports.PurchaseRequest{AssetID: assetID, BuyerID: "buyer", Quantity: 10, IdempotencyKey: "order-1"}
	first, err := f.sales.Purchase(ctx, req)
	require.NoError(t, err)
	second, err := f.sales.Purchase(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(10), f.balance(t, assetID, "buyer"))
	assert.Equal(t, int64(70), f.cash(t, "buyer"))
}

func TestSaleService_Purchase_IdempotentRedisHit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cache := mocks.NewMockIdempotencyCache(ctrl)
	svc := NewSaleService(LedgerDeps{}, cache, nil, time.Hour, newTestLogger())

	ctx := context.Background()
	assetID := uuid.New()
	cached := &domain.Purchase{ID: uuid.New(), AssetID: assetID, BuyerID: "buyer", Quantity: 5}
	data, err := json.Marshal(cached)
	require.NoError(t, err)
	cache.EXPECT().Get(ctx, domain.BuildPurchaseKey(assetID, "buyer", "k1")).Return(data, nil)

	p, err := svc.Purchase(ctx, ports.PurchaseRequest{AssetID: assetID, BuyerID: "buyer", Quantity: 5, IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.Equal(t, cached.ID, p.ID)
}

// ==================== Withdraw / Reclaim Tests ====================

func TestSaleService_WithdrawProceeds(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	assetID := f.issuedAsset(t, "owner", 1000)
	openSale(t, f, assetID, 100, 4)
	f.fund(t, "buyer", 100)

	_, err := f.sales.WithdrawProceeds(ctx, ports.WithdrawRequest{AssetID: assetID, Caller: "owner"})
	assertAppError(t, err, "SALE_003")

	_, err = f.sales.Purchase(ctx, ports.PurchaseRequest{AssetID: assetID, BuyerID: "buyer", Quantity: 25})
	require.NoError(t, err)

	_, err = f.sales.WithdrawProceeds(ctx, ports.WithdrawRequest{AssetID: assetID, Caller: "buyer"})
	assertAppError(t, err, "AUTH_001")

	transfer, err := f.sales.WithdrawProceeds(ctx, ports.WithdrawRequest{AssetID: assetID, Caller: "owner", To: "treasury"})
	require.NoError(t, err)
	assert.Equal(t, int64(100), transfer.Amount)
	assert.Equal(t, domain.PaymentKindProceedsWithdrawal, transfer.Kind)
	assert.Equal(t, int64(100), f.cash(t, "treasury"))
	assert.Equal(t, int64(0), f.cash(t, domain.SaleProceedsAccount(assetID)))

	view, err := f.sales.State(ctx, assetID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), view.ProceedsBalance)
	assert.Equal(t, int64(100), view.TotalProceeds)
}

func TestSaleService_ReclaimUnsold(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	assetID := f.issuedAsset(t, "owner", 1000)
	openSale(t, f, assetID, 100, 1)
	f.fund(t, "buyer", 100)
	_, err := f.sales.Purchase(ctx, ports.PurchaseRequest{AssetID: assetID, BuyerID: "buyer", Quantity: 30})
	require.NoError(t, err)

	_, err = f.sales.ReclaimUnsold(ctx, "owner", assetID)
	assertAppError(t, err, "SALE_005")

	f.clock.Advance(2 * time.Hour)
	view, err := f.sales.ReclaimUnsold(ctx, "owner", assetID)
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStateEnded, view.State)
	assert.Equal(t, int64(0), view.SharesRemaining)
	assert.Equal(t, int64(30), view.SharesSold)

	assert.Equal(t, int64(970), f.balance(t, assetID, "owner"))
	assert.Equal(t, int64(0), f.balance(t, assetID, domain.SalePoolHolder(assetID)))
	require.NoError(t, f.ledger.VerifySupply(ctx, assetID))

	_, err = f.sales.ReclaimUnsold(ctx, "owner", assetID)
	assertAppError(t, err, "SALE_003")
}

func TestSaleService_BuyerEarnsOnlyAfterPurchase(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	assetID := f.issuedAsset(t, "owner", 1000)
	openSale(t, f, assetID, 500, 1)
	f.fund(t, "owner", 200)
	f.fund(t, "buyer", 500)

	f.distribute(t, assetID, "owner", 100)
	_, err := f.sales.Purchase(ctx, ports.PurchaseRequest{AssetID: assetID, BuyerID: "buyer", Quantity: 500})
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.unclaimed(t, assetID, "buyer"))
	assert.Equal(t, int64(50), f.unclaimed(t, assetID, domain.SalePoolHolder(assetID)))

	f.distribute(t, assetID, "owner", 100)
	assert.Equal(t, int64(50), f.unclaimed(t, assetID, "buyer"))
	assert.Equal(t, int64(100), f.unclaimed(t, assetID, "owner"))
}
