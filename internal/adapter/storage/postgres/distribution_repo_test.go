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

func TestDistributionRepo_Append_DuplicateSequence(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewDistributionRepo(mock)
	e := &domain.DistributionEntry{
		ID:               uuid.New(),
		AssetID:          uuid.New(),
		Sequence:         1,
		Amount:           100,
		CumulativeAfter:  100,
		AccPerShareAfter: "100000000000000000",
		RecordedBy:       "owner-1",
		RecordedAt:       time.Now().UTC().Truncate(time.Microsecond),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO distributions").
		WithArgs(e.ID, e.AssetID, e.Sequence, e.Amount, e.CumulativeBefore, e.CumulativeAfter,
			e.AccPerShareAfter, e.RecordedBy, e.RecordedAt).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "distributions_asset_id_sequence_key"})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Append(context.Background(), tx, e)
	assert.ErrorIs(t, err, ports.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDistributionRepo_ListAfter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewDistributionRepo(mock)
	assetID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	cols := []string{"id", "asset_id", "sequence", "amount", "cumulative_before", "cumulative_after",
		"acc_per_share", "recorded_by", "recorded_at"}
	mock.ExpectQuery("FROM distributions WHERE asset_id = .+ AND sequence > .+ ORDER BY sequence ASC LIMIT").
		WithArgs(assetID, int64(1), 2).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(uuid.New(), assetID, int64(2), int64(50), int64(100), int64(150), "150000000000000000", "owner-1", now).
			AddRow(uuid.New(), assetID, int64(3), int64(10), int64(150), int64(160), "160000000000000000", "dist-1", now))

	entries, err := repo.ListAfter(context.Background(), assetID, 1, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[0].Sequence)
	assert.Equal(t, int64(3), entries[1].Sequence)
	assert.Equal(t, "160000000000000000", entries[1].AccPerShareAfter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimRepo_ListByHolder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewClaimRepo(mock)
	assetID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectQuery("FROM claims WHERE asset_id = .+ AND holder_id = .+ ORDER BY claimed_at DESC").
		WithArgs(assetID, "alice", 50).
		WillReturnRows(pgxmock.NewRows([]string{"id", "asset_id", "holder_id", "beneficiary", "amount", "claimed_at"}).
			AddRow(uuid.New(), assetID, "alice", "alice", int64(30), now))

	records, err := repo.ListByHolder(context.Background(), assetID, "alice", 50)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(30), records[0].Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimRepo_SumByAsset(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewClaimRepo(mock)
	assetID := uuid.New()

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\)").
		WithArgs(assetID).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(int64(0)))

	sum, err := repo.SumByAsset(context.Background(), assetID)
	require.NoError(t, err)
	assert.Zero(t, sum)
}
