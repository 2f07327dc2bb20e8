package service

import (
	"context"
	"fmt"

	"solarchain-ledger/internal/core/domain"
	"solarchain-ledger/internal/core/ports"
	"solarchain-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultClaimListLimit = 50
	maxClaimListLimit     = 200
)

// ClaimServiceImpl implements ports.ClaimService.
type ClaimServiceImpl struct {
	core       *ledgerCore
	claims     ports.ClaimRepository
	payments   ports.PaymentAsset
	transactor ports.DBTransactor
	notifier   ports.EventNotifier // nil = disabled
	log        zerolog.Logger
}

// NewClaimService creates a new ClaimServiceImpl.
func NewClaimService(deps LedgerDeps, notifier ports.EventNotifier, log zerolog.Logger) *ClaimServiceImpl {
	return &ClaimServiceImpl{
		core:       newLedgerCore(deps),
		claims:     deps.Claims,
		payments:   deps.Payments,
		transactor: deps.Transactor,
		notifier:   notifier,
		log:        log,
	}
}

// Claim pays out everything owed to a holder and resets its bookkeeping.
// Holders claim for themselves; an asset OWNER may additionally claim what
// the sale pool has accrued, which is paid to the OWNER.
func (s *ClaimServiceImpl) Claim(ctx context.Context, req ports.ClaimRequest) (*domain.ClaimRecord, error) {
	holderID := req.HolderID
	if holderID == "" {
		holderID = req.Caller
	}
	beneficiary := req.Caller
	if holderID != req.Caller {
		if holderID != domain.SalePoolHolder(req.AssetID) {
			return nil, apperror.ErrUnauthorized()
		}
		if err := s.core.requireRole(ctx, req.Caller, req.AssetID, domain.CapabilityOwner); err != nil {
			return nil, err
		}
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	ledger, err := s.core.lockActiveLedger(ctx, dbTx, req.AssetID)
	if err != nil {
		return nil, err
	}

	holding, err := s.core.holdings.GetForUpdate(ctx, dbTx, req.AssetID, holderID)
	if err != nil {
		return nil, storageError("lock holding", err)
	}
	if holding == nil {
		return nil, apperror.ErrNoUnclaimedDividends()
	}

	amount, err := holding.Claim(ledger.AccPerShare)
	if err != nil {
		return nil, arithmeticError("settle claim", err)
	}
	if amount == 0 {
		return nil, apperror.ErrNoUnclaimedDividends()
	}

	now := s.core.now()
	holding.UpdatedAt = now
	if err := s.core.holdings.Upsert(ctx, dbTx, holding); err != nil {
		return nil, storageError("save holding", err)
	}

	record := &domain.ClaimRecord{
		ID:          uuid.New(),
		AssetID:     req.AssetID,
		HolderID:    holderID,
		Beneficiary: beneficiary,
		Amount:      amount,
		ClaimedAt:   now,
	}
	if _, err := s.payments.Transfer(ctx, dbTx, ports.PaymentTransferRequest{
		FromID:    domain.DividendPoolAccount(req.AssetID),
		ToID:      beneficiary,
		Amount:    amount,
		Kind:      domain.PaymentKindDividendPayout,
		Reference: "claim:" + record.ID.String(),
	}); err != nil {
		return nil, paymentError(err)
	}
	if err := s.claims.Create(ctx, dbTx, record); err != nil {
		return nil, storageError("create claim", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("asset_id", req.AssetID.String()).
		Str("holder_id", holderID).
		Str("beneficiary", beneficiary).
		Int64("amount", amount).
		Msg("dividends claimed")

	publish(ctx, s.notifier, s.log, &domain.LedgerEvent{
		ID:         uuid.New(),
		Type:       domain.EventDividendClaimed,
		AssetID:    req.AssetID,
		HolderID:   holderID,
		Amount:     amount,
		OccurredAt: now,
	})

	return record, nil
}

// Unclaimed returns what holderID could claim right now.
func (s *ClaimServiceImpl) Unclaimed(ctx context.Context, assetID uuid.UUID, holderID string) (int64, error) {
	ledger, h, err := s.core.snapshot(ctx, assetID, holderID)
	if err != nil {
		return 0, err
	}
	pending, err := h.Pending(ledger.AccPerShare)
	if err != nil {
		return 0, arithmeticError("pending", err)
	}
	return pending, nil
}

// ListClaims returns a holder's claims, newest first.
func (s *ClaimServiceImpl) ListClaims(ctx context.Context, assetID uuid.UUID, holderID string, limit int) ([]domain.ClaimRecord, error) {
	if limit <= 0 {
		limit = defaultClaimListLimit
	}
	limit = min(limit, maxClaimListLimit)

	records, err := s.claims.ListByHolder(ctx, assetID, holderID, limit)
	if err != nil {
		return nil, storageError("list claims", err)
	}
	return records, nil
}
