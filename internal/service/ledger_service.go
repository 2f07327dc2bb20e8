package service

import (
	"context"
	"errors"
	"fmt"

	"solarchain-ledger/internal/core/domain"
	"solarchain-ledger/internal/core/ports"
	"solarchain-ledger/pkg/apperror"
	"solarchain-ledger/pkg/fixedpoint"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LedgerServiceImpl implements ports.ShareLedgerService.
type LedgerServiceImpl struct {
	core       *ledgerCore
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(deps LedgerDeps, log zerolog.Logger) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		core:       newLedgerCore(deps),
		transactor: deps.Transactor,
		log:        log,
	}
}

// Issue creates the share ledger with the registry's declared supply and
// assigns all of it to the initial holder. It can succeed once per asset.
func (s *LedgerServiceImpl) Issue(ctx context.Context, req ports.IssueRequest) (*domain.ShareLedger, error) {
	holder := req.InitialHolder
	if holder == "" {
		holder = req.Caller
	}
	if err := s.core.requireRole(ctx, req.Caller, req.AssetID, domain.CapabilityOwner); err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	asset, err := s.core.assets.GetByIDTx(ctx, dbTx, req.AssetID)
	if err != nil {
		return nil, storageError("load asset", err)
	}
	if asset == nil {
		return nil, apperror.ErrNotFound("asset")
	}
	if !asset.IsActive() {
		return nil, apperror.ErrAssetInactive()
	}
	if asset.TotalSupply <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	existing, err := s.core.ledgers.GetForUpdate(ctx, dbTx, req.AssetID)
	if err != nil {
		return nil, storageError("lock ledger", err)
	}
	if existing != nil {
		return nil, apperror.ErrAlreadyIssued()
	}

	now := s.core.now()
	ledger := &domain.ShareLedger{
		AssetID:     req.AssetID,
		TotalSupply: asset.TotalSupply,
		AccPerShare: fixedpoint.Zero(),
		IssuedAt:    now,
		UpdatedAt:   now,
	}
	if err := s.core.ledgers.Create(ctx, dbTx, ledger); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return nil, apperror.ErrAlreadyIssued()
		}
		return nil, storageError("create ledger", err)
	}

	initial := domain.NewHolding(req.AssetID, holder)
	initial.Balance = asset.TotalSupply
	initial.UpdatedAt = now
	if err := s.core.holdings.Upsert(ctx, dbTx, initial); err != nil {
		return nil, storageError("create initial holding", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("asset_id", req.AssetID.String()).
		Str("holder_id", holder).
		Int64("total_supply", ledger.TotalSupply).
		Msg("shares issued")

	return ledger, nil
}

// Transfer moves shares between holders, settling both holders' claim
// bookkeeping in the same transaction.
func (s *LedgerServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*ports.TransferResult, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.From == "" || req.To == "" {
		return nil, apperror.Validation("from and to are required")
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

	src, dst, err := s.core.moveShares(ctx, dbTx, ledger, req.From, req.To, req.Amount)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("asset_id", req.AssetID.String()).
		Str("from", req.From).
		Str("to", req.To).
		Int64("amount", req.Amount).
		Msg("shares transferred")

	return &ports.TransferResult{
		AssetID:     req.AssetID,
		From:        req.From,
		To:          req.To,
		Amount:      req.Amount,
		FromBalance: src.Balance,
		ToBalance:   dst.Balance,
	}, nil
}

// BalanceOf returns the share balance of holderID; unknown holders hold zero.
func (s *LedgerServiceImpl) BalanceOf(ctx context.Context, assetID uuid.UUID, holderID string) (int64, error) {
	if _, err := s.core.readLedger(ctx, assetID); err != nil {
		return 0, err
	}
	h, err := s.core.holdings.Get(ctx, assetID, holderID)
	if err != nil {
		return 0, storageError("get holding", err)
	}
	if h == nil {
		return 0, nil
	}
	return h.Balance, nil
}

// TotalSupply returns the supply fixed at issuance.
func (s *LedgerServiceImpl) TotalSupply(ctx context.Context, assetID uuid.UUID) (int64, error) {
	ledger, err := s.core.readLedger(ctx, assetID)
	if err != nil {
		return 0, err
	}
	return ledger.TotalSupply, nil
}

// Position returns the holder's balance, ownership share and claim status.
func (s *LedgerServiceImpl) Position(ctx context.Context, assetID uuid.UUID, holderID string) (*domain.Position, error) {
	ledger, h, err := s.core.snapshot(ctx, assetID, holderID)
	if err != nil {
		return nil, err
	}
	return buildPosition(ledger, h)
}

// CapTable lists holdings ordered by balance, largest first.
func (s *LedgerServiceImpl) CapTable(ctx context.Context, params ports.HoldingListParams) ([]domain.Position, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}

	holdings, total, err := s.core.holdings.List(ctx, params)
	if err != nil {
		return nil, 0, storageError("list holdings", err)
	}
	ledger, err := s.core.readLedger(ctx, params.AssetID)
	if err != nil {
		return nil, 0, err
	}

	positions := make([]domain.Position, 0, len(holdings))
	for i := range holdings {
		p, err := buildPosition(ledger, &holdings[i])
		if err != nil {
			return nil, 0, err
		}
		positions = append(positions, *p)
	}
	return positions, total, nil
}

// VerifySupply checks that stored balances still add up to the total supply.
func (s *LedgerServiceImpl) VerifySupply(ctx context.Context, assetID uuid.UUID) error {
	ledger, err := s.core.readLedger(ctx, assetID)
	if err != nil {
		return err
	}
	sum, err := s.core.holdings.SumBalances(ctx, assetID)
	if err != nil {
		return storageError("sum balances", err)
	}
	if sum != ledger.TotalSupply {
		s.log.Error().
			Str("asset_id", assetID.String()).
			Int64("sum", sum).
			Int64("total_supply", ledger.TotalSupply).
			Msg("supply conservation violated")
		return apperror.InternalError(fmt.Errorf("balances sum to %d, supply is %d", sum, ledger.TotalSupply))
	}
	return nil
}

func buildPosition(ledger *domain.ShareLedger, h *domain.Holding) (*domain.Position, error) {
	pending, err := h.Pending(ledger.AccPerShare)
	if err != nil {
		return nil, arithmeticError("pending", err)
	}
	return &domain.Position{
		AssetID:      ledger.AssetID,
		HolderID:     h.HolderID,
		Balance:      h.Balance,
		TotalSupply:  ledger.TotalSupply,
		OwnershipPct: domain.OwnershipPercent(h.Balance, ledger.TotalSupply),
		Unclaimed:    pending,
		TotalClaimed: h.TotalClaimed,
	}, nil
}
