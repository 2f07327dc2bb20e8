package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solarchain-ledger/internal/core/domain"
	"solarchain-ledger/internal/core/ports"
	"solarchain-ledger/pkg/apperror"
	"solarchain-ledger/pkg/fixedpoint"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SystemClock implements ports.Clock with the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// LedgerDeps groups the collaborators shared by the ledger services.
type LedgerDeps struct {
	Assets        ports.AssetRepository
	Ledgers       ports.ShareLedgerRepository
	Holdings      ports.HoldingRepository
	Distributions ports.DistributionRepository
	Claims        ports.ClaimRepository
	Sales         ports.SaleRepository
	Idempotency   ports.IdempotencyRepository
	Transactor    ports.DBTransactor
	Access        ports.AccessControl
	Payments      ports.PaymentAsset
	Clock         ports.Clock
}

// ledgerCore holds the row-locking and settlement steps every mutating
// ledger operation is built from. All methods taking a pgx.Tx must run
// after the asset's ledger row has been locked in that transaction.
type ledgerCore struct {
	assets   ports.AssetRepository
	ledgers  ports.ShareLedgerRepository
	holdings ports.HoldingRepository
	access   ports.AccessControl
	clock    ports.Clock
}

func newLedgerCore(d LedgerDeps) *ledgerCore {
	clock := d.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	return &ledgerCore{
		assets:   d.Assets,
		ledgers:  d.Ledgers,
		holdings: d.Holdings,
		access:   d.Access,
		clock:    clock,
	}
}

func (c *ledgerCore) now() time.Time {
	return c.clock.Now().UTC()
}

// lockLedger locks the ledger row of assetID. It reports NotFound for an
// unknown asset and NotIssued for a registered asset without shares.
func (c *ledgerCore) lockLedger(ctx context.Context, tx pgx.Tx, assetID uuid.UUID) (*domain.ShareLedger, *domain.Asset, error) {
	ledger, err := c.ledgers.GetForUpdate(ctx, tx, assetID)
	if err != nil {
		return nil, nil, storageError("lock ledger", err)
	}
	asset, err := c.assets.GetByIDTx(ctx, tx, assetID)
	if err != nil {
		return nil, nil, storageError("load asset", err)
	}
	if asset == nil {
		return nil, nil, apperror.ErrNotFound("asset")
	}
	if ledger == nil {
		return nil, nil, apperror.ErrNotIssued()
	}
	return ledger, asset, nil
}

// lockActiveLedger is lockLedger plus the registry's active gate.
func (c *ledgerCore) lockActiveLedger(ctx context.Context, tx pgx.Tx, assetID uuid.UUID) (*domain.ShareLedger, error) {
	ledger, asset, err := c.lockLedger(ctx, tx, assetID)
	if err != nil {
		return nil, err
	}
	if !asset.IsActive() {
		return nil, apperror.ErrAssetInactive()
	}
	return ledger, nil
}

// loadHolding locks a holding, returning a fresh zero holding for holders
// seen for the first time.
func (c *ledgerCore) loadHolding(ctx context.Context, tx pgx.Tx, assetID uuid.UUID, holderID string) (*domain.Holding, error) {
	h, err := c.holdings.GetForUpdate(ctx, tx, assetID, holderID)
	if err != nil {
		return nil, storageError("lock holding", err)
	}
	if h == nil {
		h = domain.NewHolding(assetID, holderID)
	}
	return h, nil
}

// moveShares debits from and credits to, settling both holders against the
// current accumulator in the same transaction. A self-transfer only checks
// the balance.
func (c *ledgerCore) moveShares(ctx context.Context, tx pgx.Tx, ledger *domain.ShareLedger, from, to string, amount int64) (*domain.Holding, *domain.Holding, error) {
	if amount <= 0 {
		return nil, nil, apperror.ErrInvalidAmount()
	}

	src, err := c.loadHolding(ctx, tx, ledger.AssetID, from)
	if err != nil {
		return nil, nil, err
	}
	if src.Balance < amount {
		return nil, nil, apperror.ErrInsufficientBalance()
	}
	if from == to {
		return src, src, nil
	}

	dst, err := c.loadHolding(ctx, tx, ledger.AssetID, to)
	if err != nil {
		return nil, nil, err
	}

	newSrc, err := fixedpoint.Sub(src.Balance, amount)
	if err != nil {
		return nil, nil, arithmeticError("debit", err)
	}
	newDst, err := fixedpoint.Add(dst.Balance, amount)
	if err != nil {
		return nil, nil, arithmeticError("credit", err)
	}
	if err := src.Rebalance(ledger.AccPerShare, newSrc); err != nil {
		return nil, nil, arithmeticError("settle sender", err)
	}
	if err := dst.Rebalance(ledger.AccPerShare, newDst); err != nil {
		return nil, nil, arithmeticError("settle receiver", err)
	}

	now := c.now()
	src.UpdatedAt, dst.UpdatedAt = now, now
	if err := c.holdings.Upsert(ctx, tx, src); err != nil {
		return nil, nil, storageError("save sender holding", err)
	}
	if err := c.holdings.Upsert(ctx, tx, dst); err != nil {
		return nil, nil, storageError("save receiver holding", err)
	}
	return src, dst, nil
}

// snapshot reads a holding and its ledger without locks. The holding is read
// first: its reward debt was computed against an accumulator no newer than
// the one read afterwards, so pending can never come out negative.
func (c *ledgerCore) snapshot(ctx context.Context, assetID uuid.UUID, holderID string) (*domain.ShareLedger, *domain.Holding, error) {
	h, err := c.holdings.Get(ctx, assetID, holderID)
	if err != nil {
		return nil, nil, storageError("get holding", err)
	}
	ledger, err := c.readLedger(ctx, assetID)
	if err != nil {
		return nil, nil, err
	}
	if h == nil {
		h = domain.NewHolding(assetID, holderID)
	}
	return ledger, h, nil
}

func (c *ledgerCore) readLedger(ctx context.Context, assetID uuid.UUID) (*domain.ShareLedger, error) {
	ledger, err := c.ledgers.GetByAssetID(ctx, assetID)
	if err != nil {
		return nil, storageError("get ledger", err)
	}
	if ledger == nil {
		return nil, apperror.ErrNotFound("share ledger")
	}
	return ledger, nil
}

// requireRole passes when subject holds any of caps on assetID.
func (c *ledgerCore) requireRole(ctx context.Context, subject string, assetID uuid.UUID, caps ...domain.Capability) error {
	return requireRole(ctx, c.access, subject, assetID, caps...)
}

func requireRole(ctx context.Context, access ports.AccessControl, subject string, assetID uuid.UUID, caps ...domain.Capability) error {
	for _, capability := range caps {
		ok, err := access.HasRole(ctx, subject, capability, assetID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("access check %s: %w", capability, err))
		}
		if ok {
			return nil
		}
	}
	return apperror.ErrUnauthorized()
}

// storageError converts a repository failure into an AppError.
func storageError(op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, ports.ErrLockTimeout) {
		return apperror.ErrLockTimeout(fmt.Errorf("%s: %w", op, err))
	}
	return apperror.InternalError(fmt.Errorf("%s: %w", op, err))
}

// arithmeticError converts a fixed-point failure into an AppError.
func arithmeticError(op string, err error) error {
	if errors.Is(err, fixedpoint.ErrOverflow) {
		return apperror.ErrArithmeticOverflow(fmt.Errorf("%s: %w", op, err))
	}
	return apperror.InternalError(fmt.Errorf("%s: %w", op, err))
}

// paymentError keeps AppErrors from the payment collaborator and reports
// anything else as a failed payment.
func paymentError(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperror.ErrPaymentFailed(err)
}
