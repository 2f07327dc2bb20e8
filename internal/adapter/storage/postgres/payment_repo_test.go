package postgres

import (
	"context"
	"testing"
	"time"

	"solarchain-ledger/internal/core/domain"
	"solarchain-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transferColumnNames() []string {
	return []string{"id", "reference", "from_id", "to_id", "amount", "kind", "created_at"}
}

func TestPaymentAccountRepo_LockOrCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentAccountRepo(mock)
	now := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payment_accounts .+ ON CONFLICT \\(holder_id\\) DO NOTHING").
		WithArgs("alice", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("FROM payment_accounts WHERE holder_id = .+ FOR UPDATE").
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows([]string{"holder_id", "balance", "created_at", "updated_at"}).
			AddRow("alice", int64(500), now, now))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	acct, err := repo.LockOrCreate(context.Background(), tx, "alice", now)
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.Equal(t, int64(500), acct.Balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentAccountRepo_LockOrCreate_InsertFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentAccountRepo(mock)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payment_accounts").
		WithArgs("alice", now).
		WillReturnError(&pgconn.PgError{Code: "55P03"})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	_, err = repo.LockOrCreate(context.Background(), tx, "alice", now)
	assert.ErrorIs(t, err, ports.ErrLockTimeout)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentAccountRepo_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentAccountRepo(mock)
	now := time.Now().UTC().Truncate(time.Microsecond)
	acct := &domain.PaymentAccount{HolderID: "alice", Balance: 450, CreatedAt: now, UpdatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payment_accounts .+ ON CONFLICT \\(holder_id\\) DO UPDATE").
		WithArgs(acct.HolderID, acct.Balance, acct.CreatedAt, acct.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Upsert(context.Background(), tx, acct))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentTransferRepo_Create_MintHasNoSource(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentTransferRepo(mock)
	tr := &domain.PaymentTransfer{
		ID:        uuid.New(),
		Reference: "topup:admin",
		ToID:      "alice",
		Amount:    1000,
		Kind:      domain.PaymentKindTopup,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payment_transfers .+ NULLIF").
		WithArgs(tr.ID, tr.Reference, "", tr.ToID, tr.Amount, tr.Kind, tr.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Create(context.Background(), tx, tr))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentTransferRepo_List_WithFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentTransferRepo(mock)
	kind := domain.PaymentKindDividendPayout
	from := int64(1700000000)
	now := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM payment_transfers WHERE \\(from_id = \\$1 OR to_id = \\$1\\) AND kind = \\$2 AND created_at >= to_timestamp\\(\\$3\\)").
		WithArgs("alice", kind, from).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("FROM payment_transfers .+ ORDER BY created_at DESC LIMIT \\$4 OFFSET \\$5").
		WithArgs("alice", kind, from, 20, 0).
		WillReturnRows(pgxmock.NewRows(transferColumnNames()).
			AddRow(uuid.New(), "claim:x", "dividend-pool:x", "alice", int64(30), kind, now))

	transfers, total, err := repo.List(context.Background(), ports.PaymentTransferListParams{
		HolderID: "alice",
		Kind:     &kind,
		From:     &from,
		Page:     1,
		PageSize: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, transfers, 1)
	assert.Equal(t, int64(30), transfers[0].Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentTransferRepo_List_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentTransferRepo(mock)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("nobody").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery("FROM payment_transfers").
		WithArgs("nobody", 20, 20).
		WillReturnRows(pgxmock.NewRows(transferColumnNames()))

	transfers, total, err := repo.List(context.Background(), ports.PaymentTransferListParams{
		HolderID: "nobody", Page: 2, PageSize: 20,
	})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, transfers)
	assert.Empty(t, transfers)
}
