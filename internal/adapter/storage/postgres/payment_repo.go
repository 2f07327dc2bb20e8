package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"solarchain-ledger/internal/core/domain"
	"solarchain-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// PaymentAccountRepo implements ports.PaymentAccountRepository.
type PaymentAccountRepo struct {
	pool Pool
}

// NewPaymentAccountRepo creates a new PaymentAccountRepo.
func NewPaymentAccountRepo(pool Pool) *PaymentAccountRepo {
	return &PaymentAccountRepo{pool: pool}
}

// Get fetches an account without locking.
func (r *PaymentAccountRepo) Get(ctx context.Context, holderID string) (*domain.PaymentAccount, error) {
	query := `SELECT holder_id, balance, created_at, updated_at FROM payment_accounts WHERE holder_id = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, holderID))
}

// LockOrCreate inserts an empty account unless one exists, then locks it,
// so there is always a row for FOR UPDATE to hold.
// This MUST be called within a transaction.
func (r *PaymentAccountRepo) LockOrCreate(ctx context.Context, tx pgx.Tx, holderID string, now time.Time) (*domain.PaymentAccount, error) {
	insert := `INSERT INTO payment_accounts (holder_id, balance, created_at, updated_at)
		VALUES ($1, 0, $2, $2)
		ON CONFLICT (holder_id) DO NOTHING`
	if _, err := tx.Exec(ctx, insert, holderID, now); err != nil {
		return nil, wrapErr("create payment account", err)
	}

	query := `SELECT holder_id, balance, created_at, updated_at FROM payment_accounts WHERE holder_id = $1 FOR UPDATE`
	acct, err := scanAccount(tx.QueryRow(ctx, query, holderID))
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, fmt.Errorf("payment account %s vanished after insert", holderID)
	}
	return acct, nil
}

// Upsert writes back an account locked by LockOrCreate.
func (r *PaymentAccountRepo) Upsert(ctx context.Context, tx pgx.Tx, a *domain.PaymentAccount) error {
	query := `INSERT INTO payment_accounts (holder_id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (holder_id) DO UPDATE SET balance = EXCLUDED.balance, updated_at = EXCLUDED.updated_at`

	_, err := tx.Exec(ctx, query, a.HolderID, a.Balance, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return wrapErr("upsert payment account", err)
	}
	return nil
}

func scanAccount(row pgx.Row) (*domain.PaymentAccount, error) {
	a := &domain.PaymentAccount{}
	if err := row.Scan(&a.HolderID, &a.Balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("scan payment account", err)
	}
	return a, nil
}

// PaymentTransferRepo implements ports.PaymentTransferRepository.
type PaymentTransferRepo struct {
	pool Pool
}

// NewPaymentTransferRepo creates a new PaymentTransferRepo.
func NewPaymentTransferRepo(pool Pool) *PaymentTransferRepo {
	return &PaymentTransferRepo{pool: pool}
}

// Create journals a transfer. Mints have no source and store NULL.
func (r *PaymentTransferRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.PaymentTransfer) error {
	query := `INSERT INTO payment_transfers (id, reference, from_id, to_id, amount, kind, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query, t.ID, t.Reference, t.FromID, t.ToID, t.Amount, t.Kind, t.CreatedAt)
	if err != nil {
		return wrapErr("insert payment transfer", err)
	}
	return nil
}

// List fetches a holder's transfers, in either direction, newest first.
func (r *PaymentTransferRepo) List(ctx context.Context, params ports.PaymentTransferListParams) ([]domain.PaymentTransfer, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("(from_id = $%d OR to_id = $%d)", argIdx, argIdx))
	args = append(args, params.HolderID)
	argIdx++

	if params.Kind != nil {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argIdx))
		args = append(args, *params.Kind)
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= to_timestamp($%d)", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= to_timestamp($%d)", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	// Count total
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM payment_transfers %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count payment transfers: %w", err)
	}

	// Fetch page
	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT id, reference, COALESCE(from_id, ''), to_id, amount, kind, created_at
		FROM payment_transfers %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list payment transfers: %w", err)
	}
	defer rows.Close()

	transfers := []domain.PaymentTransfer{}
	for rows.Next() {
		t := domain.PaymentTransfer{}
		if err := rows.Scan(&t.ID, &t.Reference, &t.FromID, &t.ToID, &t.Amount, &t.Kind, &t.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan payment transfer row: %w", err)
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate payment transfer rows: %w", err)
	}
	return transfers, total, nil
}
