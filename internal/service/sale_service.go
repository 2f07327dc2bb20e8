package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"solarchain-ledger/internal/core/domain"
	"solarchain-ledger/internal/core/ports"
	"solarchain-ledger/pkg/apperror"
	"solarchain-ledger/pkg/fixedpoint"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultIdempotencyTTL = 24 * time.Hour

// SaleServiceImpl implements ports.SaleService.
type SaleServiceImpl struct {
	core        *ledgerCore
	sales       ports.SaleRepository
	idempRepo   ports.IdempotencyRepository
	idempCache  ports.IdempotencyCache // nil = disabled
	payments    ports.PaymentAsset
	transactor  ports.DBTransactor
	notifier    ports.EventNotifier // nil = disabled
	idempotency time.Duration
	log         zerolog.Logger
}

// NewSaleService creates a new SaleServiceImpl.
func NewSaleService(
	deps LedgerDeps,
	idempCache ports.IdempotencyCache,
	notifier ports.EventNotifier,
	idempotencyTTL time.Duration,
	log zerolog.Logger,
) *SaleServiceImpl {
	if idempotencyTTL <= 0 {
		idempotencyTTL = defaultIdempotencyTTL
	}
	return &SaleServiceImpl{
		core:        newLedgerCore(deps),
		sales:       deps.Sales,
		idempRepo:   deps.Idempotency,
		idempCache:  idempCache,
		payments:    deps.Payments,
		transactor:  deps.Transactor,
		notifier:    notifier,
		idempotency: idempotencyTTL,
		log:         log,
	}
}

// Open escrows quantity shares of the caller in the sale pool and starts a
// fixed-price sale that runs until endsAt.
func (s *SaleServiceImpl) Open(ctx context.Context, req ports.OpenSaleRequest) (*domain.SaleView, error) {
	if req.Quantity <= 0 || req.PricePerShare <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	now := s.core.now()
	if !req.EndsAt.After(now) {
		return nil, apperror.Validation("ends_at must be in the future")
	}
	if err := s.core.requireRole(ctx, req.Caller, req.AssetID, domain.CapabilityOwner); err != nil {
		return nil, err
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
	existing, err := s.sales.GetForUpdate(ctx, dbTx, req.AssetID)
	if err != nil {
		return nil, storageError("lock sale", err)
	}
	if existing != nil {
		return nil, apperror.ErrSaleAlreadyOpen()
	}

	if _, _, err := s.core.moveShares(ctx, dbTx, ledger, req.Caller, domain.SalePoolHolder(req.AssetID), req.Quantity); err != nil {
		return nil, err
	}

	offer := &domain.SaleOffer{
		ID:              uuid.New(),
		AssetID:         req.AssetID,
		SellerID:        req.Caller,
		PricePerShare:   req.PricePerShare,
		SharesOffered:   req.Quantity,
		SharesRemaining: req.Quantity,
		EndsAt:          req.EndsAt.UTC(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.sales.Create(ctx, dbTx, offer); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return nil, apperror.ErrSaleAlreadyOpen()
		}
		return nil, storageError("create sale", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("asset_id", req.AssetID.String()).
		Str("sale_id", offer.ID.String()).
		Int64("quantity", offer.SharesOffered).
		Int64("price_per_share", offer.PricePerShare).
		Time("ends_at", offer.EndsAt).
		Msg("sale opened")

	return saleView(offer, now), nil
}

// Purchase buys quantity shares from the sale pool. A repeated
// IdempotencyKey from the same buyer returns the original purchase.
func (s *SaleServiceImpl) Purchase(ctx context.Context, req ports.PurchaseRequest) (*domain.Purchase, error) {
	if req.Quantity <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	idempKey := ""
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		idempKey = domain.BuildPurchaseKey(req.AssetID, req.BuyerID, key)
		if p, err := s.replay(ctx, idempKey); p != nil || err != nil {
			return p, err
		}
	}

	purchase, respJSON, err := s.purchase(ctx, req, idempKey)
	if err != nil {
		if idempKey != "" && errors.Is(err, ports.ErrDuplicate) {
			// A concurrent request with the same key committed first.
			if p, rerr := s.replay(ctx, idempKey); p != nil || rerr != nil {
				return p, rerr
			}
		}
		if errors.Is(err, ports.ErrDuplicate) {
			return nil, storageError("save purchase", err)
		}
		return nil, err
	}

	if idempKey != "" && s.idempCache != nil {
		if err := s.idempCache.Set(ctx, idempKey, respJSON, s.idempotency); err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache idempotency in redis")
		}
	}

	s.log.Info().
		Str("asset_id", req.AssetID.String()).
		Str("buyer_id", req.BuyerID).
		Int64("quantity", purchase.Quantity).
		Int64("total_cost", purchase.TotalCost).
		Msg("shares purchased")

	publish(ctx, s.notifier, s.log, &domain.LedgerEvent{
		ID:         uuid.New(),
		Type:       domain.EventSharesPurchased,
		AssetID:    req.AssetID,
		HolderID:   req.BuyerID,
		Amount:     purchase.TotalCost,
		Quantity:   purchase.Quantity,
		OccurredAt: purchase.CreatedAt,
	})

	return purchase, nil
}

// purchase runs the purchase transaction. A duplicate idempotency record is
// returned unwrapped as ports.ErrDuplicate.
func (s *SaleServiceImpl) purchase(ctx context.Context, req ports.PurchaseRequest, idempKey string) (*domain.Purchase, []byte, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	ledger, err := s.core.lockActiveLedger(ctx, dbTx, req.AssetID)
	if err != nil {
		return nil, nil, err
	}
	offer, err := s.sales.GetForUpdate(ctx, dbTx, req.AssetID)
	if err != nil {
		return nil, nil, storageError("lock sale", err)
	}
	if offer == nil {
		return nil, nil, apperror.ErrNotFound("sale")
	}

	now := s.core.now()
	if offer.State(now) == domain.SaleStateEnded {
		return nil, nil, apperror.ErrSaleNotActive()
	}
	if req.Quantity > offer.SharesRemaining {
		return nil, nil, apperror.ErrInsufficientInventory()
	}

	cost, err := fixedpoint.Mul(req.Quantity, offer.PricePerShare)
	if err != nil {
		return nil, nil, arithmeticError("purchase cost", err)
	}
	proceeds, err := fixedpoint.Add(offer.ProceedsBalance, cost)
	if err != nil {
		return nil, nil, arithmeticError("proceeds balance", err)
	}
	total, err := fixedpoint.Add(offer.TotalProceeds, cost)
	if err != nil {
		return nil, nil, arithmeticError("total proceeds", err)
	}

	if _, _, err := s.core.moveShares(ctx, dbTx, ledger, domain.SalePoolHolder(req.AssetID), req.BuyerID, req.Quantity); err != nil {
		return nil, nil, err
	}

	purchase := &domain.Purchase{
		ID:            uuid.New(),
		AssetID:       req.AssetID,
		SaleID:        offer.ID,
		BuyerID:       req.BuyerID,
		Quantity:      req.Quantity,
		PricePerShare: offer.PricePerShare,
		TotalCost:     cost,
		CreatedAt:     now,
	}
	payment, err := s.payments.Transfer(ctx, dbTx, ports.PaymentTransferRequest{
		FromID:    req.BuyerID,
		ToID:      domain.SaleProceedsAccount(req.AssetID),
		Amount:    cost,
		Kind:      domain.PaymentKindSharePurchase,
		Reference: "purchase:" + purchase.ID.String(),
	})
	if err != nil {
		return nil, nil, paymentError(err)
	}
	purchase.PaymentTransferID = payment.ID

	offer.SharesRemaining -= req.Quantity
	offer.SharesSold += req.Quantity
	offer.ProceedsBalance = proceeds
	offer.TotalProceeds = total
	offer.UpdatedAt = now
	if offer.SharesRemaining == 0 {
		offer.Closed = true
	}
	if err := s.sales.Update(ctx, dbTx, offer); err != nil {
		return nil, nil, storageError("update sale", err)
	}
	if err := s.sales.CreatePurchase(ctx, dbTx, purchase); err != nil {
		return nil, nil, storageError("create purchase", err)
	}

	respJSON, err := json.Marshal(purchase)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("marshal response: %w", err))
	}
	if idempKey != "" {
		if err := s.idempRepo.Create(ctx, dbTx, &domain.IdempotencyLog{
			Key:          idempKey,
			ResourceID:   purchase.ID,
			ResponseJSON: respJSON,
			CreatedAt:    now,
		}); err != nil {
			if errors.Is(err, ports.ErrDuplicate) {
				return nil, nil, err
			}
			return nil, nil, storageError("save idempotency log", err)
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return purchase, respJSON, nil
}

// replay returns the stored purchase for idempKey, or nil when there is none.
func (s *SaleServiceImpl) replay(ctx context.Context, idempKey string) (*domain.Purchase, error) {
	// Layer 1: Redis idempotency check
	if s.idempCache != nil {
		cached, err := s.idempCache.Get(ctx, idempKey)
		if err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("redis idempotency check failed, falling through to DB")
		}
		if cached != nil {
			return unmarshalPurchase(cached)
		}
	}

	// Layer 2: DB idempotency check
	idempLog, err := s.idempRepo.Get(ctx, idempKey)
	if err != nil {
		return nil, storageError("db idempotency check", err)
	}
	if idempLog == nil {
		return nil, nil
	}
	return unmarshalPurchase(idempLog.ResponseJSON)
}

func unmarshalPurchase(data []byte) (*domain.Purchase, error) {
	p := &domain.Purchase{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached purchase: %w", err))
	}
	return p, nil
}

// WithdrawProceeds pays the accumulated sale proceeds to req.To. It works in
// any sale state and on inactive assets.
func (s *SaleServiceImpl) WithdrawProceeds(ctx context.Context, req ports.WithdrawRequest) (*domain.PaymentTransfer, error) {
	to := req.To
	if to == "" {
		to = req.Caller
	}
	if err := s.core.requireRole(ctx, req.Caller, req.AssetID, domain.CapabilityOwner); err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if _, _, err := s.core.lockLedger(ctx, dbTx, req.AssetID); err != nil {
		return nil, err
	}
	offer, err := s.sales.GetForUpdate(ctx, dbTx, req.AssetID)
	if err != nil {
		return nil, storageError("lock sale", err)
	}
	if offer == nil {
		return nil, apperror.ErrNotFound("sale")
	}
	if offer.ProceedsBalance == 0 {
		return nil, apperror.ErrNothingToWithdraw()
	}

	amount := offer.ProceedsBalance
	now := s.core.now()
	transfer, err := s.payments.Transfer(ctx, dbTx, ports.PaymentTransferRequest{
		FromID:    domain.SaleProceedsAccount(req.AssetID),
		ToID:      to,
		Amount:    amount,
		Kind:      domain.PaymentKindProceedsWithdrawal,
		Reference: "withdrawal:" + offer.ID.String(),
	})
	if err != nil {
		return nil, paymentError(err)
	}

	offer.ProceedsBalance = 0
	offer.UpdatedAt = now
	if err := s.sales.Update(ctx, dbTx, offer); err != nil {
		return nil, storageError("update sale", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("asset_id", req.AssetID.String()).
		Str("to", to).
		Int64("amount", amount).
		Msg("sale proceeds withdrawn")

	publish(ctx, s.notifier, s.log, &domain.LedgerEvent{
		ID:         uuid.New(),
		Type:       domain.EventProceedsWithdrawn,
		AssetID:    req.AssetID,
		HolderID:   to,
		Amount:     amount,
		OccurredAt: now,
	})

	return transfer, nil
}

// ReclaimUnsold returns the unsold inventory of an ended sale to the seller.
func (s *SaleServiceImpl) ReclaimUnsold(ctx context.Context, caller string, assetID uuid.UUID) (*domain.SaleView, error) {
	if err := s.core.requireRole(ctx, caller, assetID, domain.CapabilityOwner); err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	ledger, err := s.core.lockActiveLedger(ctx, dbTx, assetID)
	if err != nil {
		return nil, err
	}
	offer, err := s.sales.GetForUpdate(ctx, dbTx, assetID)
	if err != nil {
		return nil, storageError("lock sale", err)
	}
	if offer == nil {
		return nil, apperror.ErrNotFound("sale")
	}

	now := s.core.now()
	if offer.State(now) != domain.SaleStateEnded {
		return nil, apperror.ErrSaleStillActive()
	}
	if offer.SharesRemaining == 0 {
		return nil, apperror.ErrNothingToWithdraw()
	}

	reclaimed := offer.SharesRemaining
	if _, _, err := s.core.moveShares(ctx, dbTx, ledger, domain.SalePoolHolder(assetID), offer.SellerID, reclaimed); err != nil {
		return nil, err
	}

	offer.SharesRemaining = 0
	offer.Closed = true
	offer.UpdatedAt = now
	if err := s.sales.Update(ctx, dbTx, offer); err != nil {
		return nil, storageError("update sale", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("asset_id", assetID.String()).
		Str("seller_id", offer.SellerID).
		Int64("shares", reclaimed).
		Msg("unsold shares reclaimed")

	return saleView(offer, now), nil
}

// State returns the sale of assetID as seen now.
func (s *SaleServiceImpl) State(ctx context.Context, assetID uuid.UUID) (*domain.SaleView, error) {
	offer, err := s.sales.GetByAssetID(ctx, assetID)
	if err != nil {
		return nil, storageError("get sale", err)
	}
	if offer == nil {
		return nil, apperror.ErrNotFound("sale")
	}
	return saleView(offer, s.core.now()), nil
}

func saleView(offer *domain.SaleOffer, now time.Time) *domain.SaleView {
	return &domain.SaleView{
		SaleOffer: *offer,
		State:     offer.State(now),
		SoldPct:   domain.OwnershipPercent(offer.SharesSold, offer.SharesOffered),
	}
}
