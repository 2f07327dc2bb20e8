package service

import (
	"context"

	"solarchain-ledger/internal/core/domain"
	"solarchain-ledger/internal/core/ports"
	"solarchain-ledger/pkg/apperror"

	"github.com/google/uuid"
)

// reportingService implements ports.ReportingService.
type reportingService struct {
	assets   ports.AssetRepository
	ledgers  ports.ShareLedgerRepository
	claims   ports.ClaimRepository
	sales    ports.SaleRepository
	accounts ports.PaymentAccountRepository
	clock    ports.Clock
}

// NewReportingService creates a new reporting service.
func NewReportingService(deps LedgerDeps, accounts ports.PaymentAccountRepository) ports.ReportingService {
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	return &reportingService{
		assets:   deps.Assets,
		ledgers:  deps.Ledgers,
		claims:   deps.Claims,
		sales:    deps.Sales,
		accounts: accounts,
		clock:    clock,
	}
}

// AssetSummary aggregates distributions, claims, the dividend pool and the
// sale of one asset.
func (s *reportingService) AssetSummary(ctx context.Context, assetID uuid.UUID) (*ports.AssetSummary, error) {
	asset, err := s.assets.GetByID(ctx, assetID)
	if err != nil {
		return nil, storageError("get asset", err)
	}
	if asset == nil {
		return nil, apperror.ErrNotFound("asset")
	}

	summary := &ports.AssetSummary{
		AssetID:     assetID,
		Status:      asset.Status,
		TotalSupply: asset.TotalSupply,
		AccPerShare: "0",
	}

	ledger, err := s.ledgers.GetByAssetID(ctx, assetID)
	if err != nil {
		return nil, storageError("get ledger", err)
	}
	if ledger == nil {
		return summary, nil
	}
	summary.TotalSupply = ledger.TotalSupply
	summary.Distributions = ledger.LastSequence
	summary.CumulativeDistributed = ledger.CumulativeDistributed
	summary.AccPerShare = ledger.AccPerShareString()

	claimed, err := s.claims.SumByAsset(ctx, assetID)
	if err != nil {
		return nil, storageError("sum claims", err)
	}
	summary.TotalClaimed = claimed
	summary.Outstanding = ledger.CumulativeDistributed - claimed

	pool, err := s.accounts.Get(ctx, domain.DividendPoolAccount(assetID))
	if err != nil {
		return nil, storageError("get dividend pool", err)
	}
	if pool != nil {
		summary.DividendPoolBalance = pool.Balance
	}

	offer, err := s.sales.GetByAssetID(ctx, assetID)
	if err != nil {
		return nil, storageError("get sale", err)
	}
	if offer != nil {
		summary.Sale = saleView(offer, s.clock.Now().UTC())
	}
	return summary, nil
}
