package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solarchain-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const assetColumns = `id, name, owner_id, total_supply, status, created_at, updated_at`

// AssetRepo implements ports.AssetRepository.
type AssetRepo struct {
	pool Pool
}

// NewAssetRepo creates a new AssetRepo.
func NewAssetRepo(pool Pool) *AssetRepo {
	return &AssetRepo{pool: pool}
}

// Create inserts a newly registered asset.
func (r *AssetRepo) Create(ctx context.Context, tx pgx.Tx, a *domain.Asset) error {
	query := `INSERT INTO assets (` + assetColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query,
		a.ID, a.Name, a.OwnerID, a.TotalSupply, a.Status, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return wrapErr("insert asset", err)
	}
	return nil
}

// GetByID fetches an asset without locking.
func (r *AssetRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1`
	return scanAsset(r.pool.QueryRow(ctx, query, id))
}

// GetByIDTx reads the asset row inside tx.
func (r *AssetRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1`
	return scanAsset(tx.QueryRow(ctx, query, id))
}

// UpdateStatus toggles the asset's active flag.
func (r *AssetRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.AssetStatus) error {
	query := `UPDATE assets SET status = $1, updated_at = $2 WHERE id = $3`

	tag, err := tx.Exec(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return wrapErr("update asset status", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("asset not found: %s", id)
	}
	return nil
}

func scanAsset(row pgx.Row) (*domain.Asset, error) {
	a := &domain.Asset{}
	err := row.Scan(&a.ID, &a.Name, &a.OwnerID, &a.TotalSupply, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan asset: %w", err)
	}
	return a, nil
}

// RoleRepo implements ports.RoleRepository.
type RoleRepo struct {
	pool Pool
}

// NewRoleRepo creates a new RoleRepo.
func NewRoleRepo(pool Pool) *RoleRepo {
	return &RoleRepo{pool: pool}
}

// Grant records a capability. Re-granting an existing capability is a no-op.
func (r *RoleRepo) Grant(ctx context.Context, tx pgx.Tx, g *domain.RoleGrant) error {
	query := `INSERT INTO role_grants (subject, capability, asset_id, granted_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (subject, capability, asset_id) DO NOTHING`

	_, err := tx.Exec(ctx, query, g.Subject, g.Capability, g.AssetID, g.GrantedBy, g.CreatedAt)
	if err != nil {
		return wrapErr("insert role grant", err)
	}
	return nil
}

// Has reports whether subject holds capability on assetID.
func (r *RoleRepo) Has(ctx context.Context, subject string, capability domain.Capability, assetID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM role_grants WHERE subject = $1 AND capability = $2 AND asset_id = $3)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, subject, capability, assetID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check role grant: %w", err)
	}
	return exists, nil
}
