package postgres

import (
	"context"
	"errors"
	"fmt"

	"solarchain-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const saleColumns = `id, asset_id, seller_id, price_per_share, shares_offered, shares_remaining, shares_sold,
	proceeds_balance, total_proceeds, ends_at, closed, created_at, updated_at`

// SaleRepo implements ports.SaleRepository.
type SaleRepo struct {
	pool Pool
}

// NewSaleRepo creates a new SaleRepo.
func NewSaleRepo(pool Pool) *SaleRepo {
	return &SaleRepo{pool: pool}
}

// Create inserts a sale offer. The unique asset_id column limits each asset
// to one offer and reports a second one as ports.ErrDuplicate.
func (r *SaleRepo) Create(ctx context.Context, tx pgx.Tx, o *domain.SaleOffer) error {
	query := `INSERT INTO sale_offers (` + saleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := tx.Exec(ctx, query,
		o.ID, o.AssetID, o.SellerID, o.PricePerShare, o.SharesOffered, o.SharesRemaining, o.SharesSold,
		o.ProceedsBalance, o.TotalProceeds, o.EndsAt, o.Closed, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return wrapErr("insert sale offer", err)
	}
	return nil
}

// GetByAssetID fetches the asset's offer without locking.
func (r *SaleRepo) GetByAssetID(ctx context.Context, assetID uuid.UUID) (*domain.SaleOffer, error) {
	query := `SELECT ` + saleColumns + ` FROM sale_offers WHERE asset_id = $1`
	return scanSale(r.pool.QueryRow(ctx, query, assetID))
}

// GetForUpdate fetches the asset's offer with pessimistic locking.
// This MUST be called within a transaction.
func (r *SaleRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, assetID uuid.UUID) (*domain.SaleOffer, error) {
	query := `SELECT ` + saleColumns + ` FROM sale_offers WHERE asset_id = $1 FOR UPDATE`
	return scanSale(tx.QueryRow(ctx, query, assetID))
}

// Update writes back inventory and proceeds counters.
func (r *SaleRepo) Update(ctx context.Context, tx pgx.Tx, o *domain.SaleOffer) error {
	query := `UPDATE sale_offers SET shares_remaining = $1, shares_sold = $2, proceeds_balance = $3,
		total_proceeds = $4, closed = $5, updated_at = $6
		WHERE id = $7`

	tag, err := tx.Exec(ctx, query,
		o.SharesRemaining, o.SharesSold, o.ProceedsBalance, o.TotalProceeds, o.Closed, o.UpdatedAt, o.ID,
	)
	if err != nil {
		return wrapErr("update sale offer", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sale offer not found: %s", o.ID)
	}
	return nil
}

// CreatePurchase records one purchase against an offer.
func (r *SaleRepo) CreatePurchase(ctx context.Context, tx pgx.Tx, p *domain.Purchase) error {
	query := `INSERT INTO purchases (id, asset_id, sale_id, buyer_id, quantity, price_per_share, total_cost,
		payment_transfer_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		p.ID, p.AssetID, p.SaleID, p.BuyerID, p.Quantity, p.PricePerShare, p.TotalCost,
		p.PaymentTransferID, p.CreatedAt,
	)
	if err != nil {
		return wrapErr("insert purchase", err)
	}
	return nil
}

func scanSale(row pgx.Row) (*domain.SaleOffer, error) {
	o := &domain.SaleOffer{}
	err := row.Scan(
		&o.ID, &o.AssetID, &o.SellerID, &o.PricePerShare, &o.SharesOffered, &o.SharesRemaining, &o.SharesSold,
		&o.ProceedsBalance, &o.TotalProceeds, &o.EndsAt, &o.Closed, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("scan sale offer", err)
	}
	return o, nil
}
