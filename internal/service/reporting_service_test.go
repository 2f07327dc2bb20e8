package service

import (
	"context"
	"errors"
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

func TestReportingService_AssetSummary_WithSale(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	assetID := f.issuedAsset(t, "owner", 1000)
	f.transfer(t, assetID, "owner", "alice", 500)
	_, err := f.sales.Open(ctx, ports.OpenSaleRequest{
		AssetID: assetID, Caller: "owner", Quantity: 200, PricePerShare: 2, EndsAt: f.clock.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	f.fund(t, "owner", 100)
	f.distribute(t, assetID, "owner", 100)
	_, err = f.claims.Claim(ctx, ports.ClaimRequest{AssetID: assetID, Caller: "alice"})
	require.NoError(t, err)

	summary, err := f.reporting.AssetSummary(ctx, assetID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssetStatusActive, summary.Status)
	assert.Equal(t, int64(1000), summary.TotalSupply)
	assert.Equal(t, int64(1), summary.Distributions)
	assert.Equal(t, int64(50), summary.TotalClaimed)
	assert.Equal(t, int64(50), summary.Outstanding)
	assert.Equal(t, int64(50), summary.DividendPoolBalance)
	assert.Equal(t, "100000000000000000", summary.AccPerShare)
	require.NotNil(t, summary.Sale)
	assert.Equal(t, domain.SaleStateActive, summary.Sale.State)
	assert.Equal(t, int64(200), summary.Sale.SharesOffered)
}

func TestReportingService_AssetSummary_NotIssued(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	asset, err := f.assets.Register(ctx, ports.RegisterAssetRequest{OwnerID: "owner", Name: "Farm 7", TotalSupply: 1000})
	require.NoError(t, err)

	summary, err := f.reporting.AssetSummary(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), summary.TotalSupply)
	assert.Equal(t, "0", summary.AccPerShare)
	assert.Nil(t, summary.Sale)
}

func TestReportingService_AssetSummary_NotFound(t *testing.T) {
	f := newLedgerFixture(t)

	_, err := f.reporting.AssetSummary(context.Background(), uuid.New())
	assertAppError(t, err, "RES_001")
}

func TestReportingService_AssetSummary_RepoError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	assets := mocks.NewMockAssetRepository(ctrl)
	svc := NewReportingService(LedgerDeps{Assets: assets}, nil)
	assetID := uuid.New()
	assets.EXPECT().GetByID(gomock.Any(), assetID).Return(nil, errors.New("db error"))

	_, err := svc.AssetSummary(context.Background(), assetID)
	assertAppError(t, err, "SYS_001")
}
