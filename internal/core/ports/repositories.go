package ports

import (
	"context"
	"errors"
	"time"

	"solarchain-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Sentinel errors returned by repository implementations.
var (
	// ErrDuplicate is returned when an insert hits a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrLockTimeout is returned when a row lock could not be acquired in time.
	ErrLockTimeout = errors.New("lock acquisition timeout")
)

// AssetRepository defines persistence operations for the asset registry.
type AssetRepository interface {
	Create(ctx context.Context, tx pgx.Tx, asset *domain.Asset) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Asset, error)
	// GetByIDTx reads the asset inside tx so its status gate is evaluated
	// against the same snapshot the mutation commits to.
	GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Asset, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.AssetStatus) error
}

// RoleRepository stores capability grants.
type RoleRepository interface {
	Grant(ctx context.Context, tx pgx.Tx, grant *domain.RoleGrant) error
	Has(ctx context.Context, subject string, capability domain.Capability, assetID uuid.UUID) (bool, error)
}

// ShareLedgerRepository persists the per-asset supply and accumulator row.
// Every mutating operation locks this row first.
type ShareLedgerRepository interface {
	Create(ctx context.Context, tx pgx.Tx, ledger *domain.ShareLedger) error
	GetByAssetID(ctx context.Context, assetID uuid.UUID) (*domain.ShareLedger, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, assetID uuid.UUID) (*domain.ShareLedger, error)
	Update(ctx context.Context, tx pgx.Tx, ledger *domain.ShareLedger) error
}

// HoldingRepository persists per-holder balances and claim bookkeeping.
// Get methods return nil when the holder has never interacted with the asset.
type HoldingRepository interface {
	Get(ctx context.Context, assetID uuid.UUID, holderID string) (*domain.Holding, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, assetID uuid.UUID, holderID string) (*domain.Holding, error)
	Upsert(ctx context.Context, tx pgx.Tx, holding *domain.Holding) error
	List(ctx context.Context, params HoldingListParams) ([]domain.Holding, int64, error)
	SumBalances(ctx context.Context, assetID uuid.UUID) (int64, error)
}

// HoldingListParams holds filter + pagination for the cap table.
type HoldingListParams struct {
	AssetID  uuid.UUID
	Page     int
	PageSize int
}

// DistributionRepository is the append-only distribution log.
type DistributionRepository interface {
	Append(ctx context.Context, tx pgx.Tx, entry *domain.DistributionEntry) error
	// ListAfter returns up to limit entries with sequence > afterSequence, ascending.
	ListAfter(ctx context.Context, assetID uuid.UUID, afterSequence int64, limit int) ([]domain.DistributionEntry, error)
}

// ClaimRepository stores claim records.
type ClaimRepository interface {
	Create(ctx context.Context, tx pgx.Tx, record *domain.ClaimRecord) error
	ListByHolder(ctx context.Context, assetID uuid.UUID, holderID string, limit int) ([]domain.ClaimRecord, error)
	SumByAsset(ctx context.Context, assetID uuid.UUID) (int64, error)
}

// SaleRepository stores sale offers and purchases.
type SaleRepository interface {
	Create(ctx context.Context, tx pgx.Tx, offer *domain.SaleOffer) error
	GetByAssetID(ctx context.Context, assetID uuid.UUID) (*domain.SaleOffer, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, assetID uuid.UUID) (*domain.SaleOffer, error)
	Update(ctx context.Context, tx pgx.Tx, offer *domain.SaleOffer) error
	CreatePurchase(ctx context.Context, tx pgx.Tx, purchase *domain.Purchase) error
}

// PaymentAccountRepository persists balances of the payout-denomination asset.
type PaymentAccountRepository interface {
	Get(ctx context.Context, holderID string) (*domain.PaymentAccount, error)
	// LockOrCreate locks the holder's account, creating an empty one first
	// if needed, so concurrent first credits serialize on the same row.
	LockOrCreate(ctx context.Context, tx pgx.Tx, holderID string, now time.Time) (*domain.PaymentAccount, error)
	Upsert(ctx context.Context, tx pgx.Tx, account *domain.PaymentAccount) error
}

// PaymentTransferRepository is the journal of payment movements.
type PaymentTransferRepository interface {
	Create(ctx context.Context, tx pgx.Tx, transfer *domain.PaymentTransfer) error
	List(ctx context.Context, params PaymentTransferListParams) ([]domain.PaymentTransfer, int64, error)
}

// PaymentTransferListParams holds filter + pagination for a holder statement.
type PaymentTransferListParams struct {
	HolderID string
	Kind     *domain.PaymentKind
	From     *int64 // Unix timestamp
	To       *int64 // Unix timestamp
	Page     int
	PageSize int
}

// IdempotencyRepository defines persistence for idempotency logs (DB backup).
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error
	Get(ctx context.Context, key string) (*domain.IdempotencyLog, error)
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// EventDeliveryRepository records outbound event delivery attempts.
type EventDeliveryRepository interface {
	Create(ctx context.Context, log *domain.EventDeliveryLog) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DeliveryStatus, httpStatus *int, attempt int, lastErr *string) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
