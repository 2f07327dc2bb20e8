package postgres

import (
	"context"
	"errors"
	"fmt"

	"solarchain-ledger/internal/core/domain"
	"solarchain-ledger/internal/core/ports"
	"solarchain-ledger/pkg/fixedpoint"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// acc_per_share is NUMERIC(78,0) and crosses the wire as base-10 text.
const ledgerColumns = `asset_id, total_supply, acc_per_share::text, cumulative_distributed, last_sequence, issued_at, updated_at`

// ShareLedgerRepo implements ports.ShareLedgerRepository.
type ShareLedgerRepo struct {
	pool Pool
}

// NewShareLedgerRepo creates a new ShareLedgerRepo.
func NewShareLedgerRepo(pool Pool) *ShareLedgerRepo {
	return &ShareLedgerRepo{pool: pool}
}

// Create inserts the ledger row written at issuance.
func (r *ShareLedgerRepo) Create(ctx context.Context, tx pgx.Tx, l *domain.ShareLedger) error {
	query := `INSERT INTO share_ledgers (asset_id, total_supply, acc_per_share, cumulative_distributed, last_sequence, issued_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query,
		l.AssetID, l.TotalSupply, fixedpoint.Format(l.AccPerShare),
		l.CumulativeDistributed, l.LastSequence, l.IssuedAt, l.UpdatedAt,
	)
	if err != nil {
		return wrapErr("insert share ledger", err)
	}
	return nil
}

// GetByAssetID fetches the ledger without locking.
func (r *ShareLedgerRepo) GetByAssetID(ctx context.Context, assetID uuid.UUID) (*domain.ShareLedger, error) {
	query := `SELECT ` + ledgerColumns + ` FROM share_ledgers WHERE asset_id = $1`
	return scanLedger(r.pool.QueryRow(ctx, query, assetID))
}

// GetForUpdate fetches the ledger with pessimistic locking.
// This MUST be called within a transaction.
func (r *ShareLedgerRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, assetID uuid.UUID) (*domain.ShareLedger, error) {
	query := `SELECT ` + ledgerColumns + ` FROM share_ledgers WHERE asset_id = $1 FOR UPDATE`
	return scanLedger(tx.QueryRow(ctx, query, assetID))
}

// Update writes back the accumulator and distribution counters.
func (r *ShareLedgerRepo) Update(ctx context.Context, tx pgx.Tx, l *domain.ShareLedger) error {
	query := `UPDATE share_ledgers
		SET acc_per_share = $1::numeric, cumulative_distributed = $2, last_sequence = $3, updated_at = $4
		WHERE asset_id = $5`

	tag, err := tx.Exec(ctx, query,
		fixedpoint.Format(l.AccPerShare), l.CumulativeDistributed, l.LastSequence, l.UpdatedAt, l.AssetID,
	)
	if err != nil {
		return wrapErr("update share ledger", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ledger not found: %s", l.AssetID)
	}
	return nil
}

func scanLedger(row pgx.Row) (*domain.ShareLedger, error) {
	l := &domain.ShareLedger{}
	var acc string
	err := row.Scan(&l.AssetID, &l.TotalSupply, &acc, &l.CumulativeDistributed, &l.LastSequence, &l.IssuedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("scan share ledger", err)
	}
	if l.AccPerShare, err = fixedpoint.Parse(acc); err != nil {
		return nil, err
	}
	return l, nil
}

// reward_debt is NUMERIC(78,0) scaled like acc_per_share.
const holdingColumns = `asset_id, holder_id, balance, reward_debt::text, credit, total_claimed, updated_at`

// HoldingRepo implements ports.HoldingRepository.
type HoldingRepo struct {
	pool Pool
}

// NewHoldingRepo creates a new HoldingRepo.
func NewHoldingRepo(pool Pool) *HoldingRepo {
	return &HoldingRepo{pool: pool}
}

// Get fetches a holding without locking.
func (r *HoldingRepo) Get(ctx context.Context, assetID uuid.UUID, holderID string) (*domain.Holding, error) {
	query := `SELECT ` + holdingColumns + ` FROM holdings WHERE asset_id = $1 AND holder_id = $2`
	return scanHolding(r.pool.QueryRow(ctx, query, assetID, holderID))
}

// GetForUpdate fetches a holding with pessimistic locking.
// This MUST be called within a transaction.
func (r *HoldingRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, assetID uuid.UUID, holderID string) (*domain.Holding, error) {
	query := `SELECT ` + holdingColumns + ` FROM holdings WHERE asset_id = $1 AND holder_id = $2 FOR UPDATE`
	return scanHolding(tx.QueryRow(ctx, query, assetID, holderID))
}

// Upsert inserts or overwrites a holding row.
func (r *HoldingRepo) Upsert(ctx context.Context, tx pgx.Tx, h *domain.Holding) error {
	query := `INSERT INTO holdings (asset_id, holder_id, balance, reward_debt, credit, total_claimed, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)
		ON CONFLICT (asset_id, holder_id) DO UPDATE SET
			balance = EXCLUDED.balance,
			reward_debt = EXCLUDED.reward_debt,
			credit = EXCLUDED.credit,
			total_claimed = EXCLUDED.total_claimed,
			updated_at = EXCLUDED.updated_at`

	_, err := tx.Exec(ctx, query,
		h.AssetID, h.HolderID, h.Balance, h.RewardDebtString(), h.Credit, h.TotalClaimed, h.UpdatedAt,
	)
	if err != nil {
		return wrapErr("upsert holding", err)
	}
	return nil
}

// List pages through the cap table, largest balances first.
func (r *HoldingRepo) List(ctx context.Context, params ports.HoldingListParams) ([]domain.Holding, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM holdings WHERE asset_id = $1`, params.AssetID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count holdings: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	query := `SELECT ` + holdingColumns + ` FROM holdings WHERE asset_id = $1
		ORDER BY balance DESC, holder_id ASC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, params.AssetID, params.PageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list holdings: %w", err)
	}
	defer rows.Close()

	holdings := []domain.Holding{}
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan holding row: %w", err)
		}
		holdings = append(holdings, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate holding rows: %w", err)
	}
	return holdings, total, nil
}

// SumBalances totals all balances of an asset, including the sale pool.
func (r *HoldingRepo) SumBalances(ctx context.Context, assetID uuid.UUID) (int64, error) {
	var sum int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(balance), 0)::bigint FROM holdings WHERE asset_id = $1`, assetID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum holdings: %w", err)
	}
	return sum, nil
}

func scanHolding(row pgx.Row) (*domain.Holding, error) {
	h := &domain.Holding{}
	var debt string
	err := row.Scan(&h.AssetID, &h.HolderID, &h.Balance, &debt, &h.Credit, &h.TotalClaimed, &h.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("scan holding", err)
	}
	if h.RewardDebt, err = fixedpoint.Parse(debt); err != nil {
		return nil, err
	}
	return h, nil
}
