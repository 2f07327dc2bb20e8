package postgres

import (
	"context"
	"fmt"

	"solarchain-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DistributionRepo implements ports.DistributionRepository.
type DistributionRepo struct {
	pool Pool
}

// NewDistributionRepo creates a new DistributionRepo.
func NewDistributionRepo(pool Pool) *DistributionRepo {
	return &DistributionRepo{pool: pool}
}

// Append writes one log entry. A repeated (asset_id, sequence) pair fails
// with ports.ErrDuplicate.
func (r *DistributionRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.DistributionEntry) error {
	query := `INSERT INTO distributions (id, asset_id, sequence, amount, cumulative_before, cumulative_after,
		acc_per_share, recorded_by, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.AssetID, e.Sequence, e.Amount, e.CumulativeBefore, e.CumulativeAfter,
		e.AccPerShareAfter, e.RecordedBy, e.RecordedAt,
	)
	if err != nil {
		return wrapErr("insert distribution", err)
	}
	return nil
}

// ListAfter returns up to limit entries with sequence > afterSequence, ascending.
func (r *DistributionRepo) ListAfter(ctx context.Context, assetID uuid.UUID, afterSequence int64, limit int) ([]domain.DistributionEntry, error) {
	query := `SELECT id, asset_id, sequence, amount, cumulative_before, cumulative_after,
		acc_per_share::text, recorded_by, recorded_at
		FROM distributions WHERE asset_id = $1 AND sequence > $2
		ORDER BY sequence ASC LIMIT $3`

	rows, err := r.pool.Query(ctx, query, assetID, afterSequence, limit)
	if err != nil {
		return nil, fmt.Errorf("list distributions: %w", err)
	}
	defer rows.Close()

	entries := []domain.DistributionEntry{}
	for rows.Next() {
		e := domain.DistributionEntry{}
		err := rows.Scan(
			&e.ID, &e.AssetID, &e.Sequence, &e.Amount, &e.CumulativeBefore, &e.CumulativeAfter,
			&e.AccPerShareAfter, &e.RecordedBy, &e.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan distribution row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate distribution rows: %w", err)
	}
	return entries, nil
}

// ClaimRepo implements ports.ClaimRepository.
type ClaimRepo struct {
	pool Pool
}

// NewClaimRepo creates a new ClaimRepo.
func NewClaimRepo(pool Pool) *ClaimRepo {
	return &ClaimRepo{pool: pool}
}

// Create inserts a claim record within a database transaction.
func (r *ClaimRepo) Create(ctx context.Context, tx pgx.Tx, c *domain.ClaimRecord) error {
	query := `INSERT INTO claims (id, asset_id, holder_id, beneficiary, amount, claimed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := tx.Exec(ctx, query, c.ID, c.AssetID, c.HolderID, c.Beneficiary, c.Amount, c.ClaimedAt)
	if err != nil {
		return wrapErr("insert claim", err)
	}
	return nil
}

// ListByHolder returns the most recent claims first.
func (r *ClaimRepo) ListByHolder(ctx context.Context, assetID uuid.UUID, holderID string, limit int) ([]domain.ClaimRecord, error) {
	query := `SELECT id, asset_id, holder_id, beneficiary, amount, claimed_at
		FROM claims WHERE asset_id = $1 AND holder_id = $2
		ORDER BY claimed_at DESC LIMIT $3`

	rows, err := r.pool.Query(ctx, query, assetID, holderID, limit)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	records := []domain.ClaimRecord{}
	for rows.Next() {
		c := domain.ClaimRecord{}
		if err := rows.Scan(&c.ID, &c.AssetID, &c.HolderID, &c.Beneficiary, &c.Amount, &c.ClaimedAt); err != nil {
			return nil, fmt.Errorf("scan claim row: %w", err)
		}
		records = append(records, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claim rows: %w", err)
	}
	return records, nil
}

// SumByAsset totals every payout made for an asset.
func (r *ClaimRepo) SumByAsset(ctx context.Context, assetID uuid.UUID) (int64, error) {
	var sum int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)::bigint FROM claims WHERE asset_id = $1`, assetID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum claims: %w", err)
	}
	return sum, nil
}
