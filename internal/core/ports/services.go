package ports

import (
	"context"
	"iter"
	"time"

	"solarchain-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(subject string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Subject string
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ReadCache caches serialized read models. Callers only store values that
// are immutable or explicitly invalidated on change.
type ReadCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // nil on miss
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// --- Collaborators consumed by the ledger core ---

// AccessControl answers capability questions. Errors abort the caller's operation.
type AccessControl interface {
	HasRole(ctx context.Context, subject string, capability domain.Capability, assetID uuid.UUID) (bool, error)
}

// PaymentAsset moves payout-denomination units inside the caller's transaction.
// An insufficient balance is reported as apperror PAY_001.
type PaymentAsset interface {
	Transfer(ctx context.Context, tx pgx.Tx, req PaymentTransferRequest) (*domain.PaymentTransfer, error)
}

// PaymentTransferRequest describes one movement of payout units.
type PaymentTransferRequest struct {
	FromID    string
	ToID      string
	Amount    int64
	Kind      domain.PaymentKind
	Reference string
}

// --- Service Ports (Business Logic) ---

// AssetRegistryService manages asset records and capability grants.
type AssetRegistryService interface {
	Register(ctx context.Context, req RegisterAssetRequest) (*domain.Asset, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Asset, error)
	SetStatus(ctx context.Context, caller string, id uuid.UUID, status domain.AssetStatus) (*domain.Asset, error)
	GrantRole(ctx context.Context, caller string, grant GrantRoleRequest) (*domain.RoleGrant, error)
}

// RegisterAssetRequest holds validated input for asset registration.
type RegisterAssetRequest struct {
	OwnerID     string
	Name        string
	TotalSupply int64
}

// GrantRoleRequest holds validated input for a capability grant.
type GrantRoleRequest struct {
	AssetID    uuid.UUID
	Subject    string
	Capability domain.Capability
}

// ShareLedgerService is the share ledger's public surface.
type ShareLedgerService interface {
	Issue(ctx context.Context, req IssueRequest) (*domain.ShareLedger, error)
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
	BalanceOf(ctx context.Context, assetID uuid.UUID, holderID string) (int64, error)
	TotalSupply(ctx context.Context, assetID uuid.UUID) (int64, error)
	Position(ctx context.Context, assetID uuid.UUID, holderID string) (*domain.Position, error)
	CapTable(ctx context.Context, params HoldingListParams) ([]domain.Position, int64, error)
	VerifySupply(ctx context.Context, assetID uuid.UUID) error
}

// IssueRequest holds validated input for the one-time issuance.
type IssueRequest struct {
	AssetID       uuid.UUID
	Caller        string
	InitialHolder string
}

// TransferRequest holds validated input for a share transfer.
type TransferRequest struct {
	AssetID uuid.UUID
	From    string
	To      string
	Amount  int64
}

// TransferResult reports both balances after a transfer.
type TransferResult struct {
	AssetID     uuid.UUID `json:"asset_id"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Amount      int64     `json:"amount"`
	FromBalance int64     `json:"from_balance"`
	ToBalance   int64     `json:"to_balance"`
}

// DistributionService records payouts and exposes their history.
type DistributionService interface {
	Record(ctx context.Context, req DistributionRequest) (*domain.DistributionEntry, error)
	History(ctx context.Context, assetID uuid.UUID) iter.Seq2[domain.DistributionEntry, error]
	HistoryPage(ctx context.Context, assetID uuid.UUID, afterSequence int64, limit int) ([]domain.DistributionEntry, error)
}

// DistributionRequest holds validated input for a distribution.
type DistributionRequest struct {
	AssetID uuid.UUID
	Caller  string
	Amount  int64
}

// ClaimService settles holder entitlements.
type ClaimService interface {
	Claim(ctx context.Context, req ClaimRequest) (*domain.ClaimRecord, error)
	Unclaimed(ctx context.Context, assetID uuid.UUID, holderID string) (int64, error)
	ListClaims(ctx context.Context, assetID uuid.UUID, holderID string, limit int) ([]domain.ClaimRecord, error)
}

// ClaimRequest holds validated input for a claim. HolderID defaults to Caller.
type ClaimRequest struct {
	AssetID  uuid.UUID
	Caller   string
	HolderID string
}

// SaleService runs the primary issuance sale.
type SaleService interface {
	Open(ctx context.Context, req OpenSaleRequest) (*domain.SaleView, error)
	Purchase(ctx context.Context, req PurchaseRequest) (*domain.Purchase, error)
	WithdrawProceeds(ctx context.Context, req WithdrawRequest) (*domain.PaymentTransfer, error)
	ReclaimUnsold(ctx context.Context, caller string, assetID uuid.UUID) (*domain.SaleView, error)
	State(ctx context.Context, assetID uuid.UUID) (*domain.SaleView, error)
}

// OpenSaleRequest holds validated input for opening a sale.
type OpenSaleRequest struct {
	AssetID       uuid.UUID
	Caller        string
	Quantity      int64
	PricePerShare int64
	EndsAt        time.Time
}

// PurchaseRequest holds validated input for a purchase.
type PurchaseRequest struct {
	AssetID        uuid.UUID
	BuyerID        string
	Quantity       int64
	IdempotencyKey string // optional
}

// WithdrawRequest holds validated input for a proceeds withdrawal. To defaults to Caller.
type WithdrawRequest struct {
	AssetID uuid.UUID
	Caller  string
	To      string
}

// PaymentService is the payout-denomination ledger's public surface.
type PaymentService interface {
	PaymentAsset
	Topup(ctx context.Context, req TopupRequest) (*domain.PaymentTransfer, error)
	Balance(ctx context.Context, holderID string) (int64, error)
	Statement(ctx context.Context, params PaymentTransferListParams) ([]domain.PaymentTransfer, int64, error)
}

// TopupRequest holds validated input for minting payout units.
type TopupRequest struct {
	Caller   string
	HolderID string
	Amount   int64
}

// ReportingService builds aggregate read models.
type ReportingService interface {
	AssetSummary(ctx context.Context, assetID uuid.UUID) (*AssetSummary, error)
}

// AssetSummary aggregates the ledger state of one asset.
type AssetSummary struct {
	AssetID               uuid.UUID          `json:"asset_id"`
	Status                domain.AssetStatus `json:"status"`
	TotalSupply           int64              `json:"total_supply"`
	Distributions         int64              `json:"distributions"`
	CumulativeDistributed int64              `json:"cumulative_distributed"`
	TotalClaimed          int64              `json:"total_claimed"`
	Outstanding           int64              `json:"outstanding"`
	DividendPoolBalance   int64              `json:"dividend_pool_balance"`
	AccPerShare           string             `json:"acc_per_share"`
	Sale                  *domain.SaleView   `json:"sale,omitempty"`
}

// AuditService records audit entries.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// EventNotifier publishes committed ledger events. Delivery is best-effort
// and never affects the outcome of the operation that produced the event.
type EventNotifier interface {
	Publish(ctx context.Context, event *domain.LedgerEvent) error
	// Close abandons pending retries and waits for in-flight deliveries
	// until ctx is done.
	Close(ctx context.Context) error
}
