package memory

import (
	"context"
	"testing"
	"time"

	"solarchain-ledger/internal/core/domain"
	"solarchain-ledger/internal/core/ports"
	"solarchain-ledger/pkg/fixedpoint"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTx_CommitPublishesWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	repo := NewHoldingRepo(s)
	assetID := uuid.New()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, tx, &domain.Holding{AssetID: assetID, HolderID: "alice", Balance: 10}))

	before, err := repo.Get(ctx, assetID, "alice")
	require.NoError(t, err)
	assert.Nil(t, before, "uncommitted write must not be visible")

	require.NoError(t, tx.Commit(ctx))

	after, err := repo.Get(ctx, assetID, "alice")
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.Equal(t, int64(10), after.Balance)
}

func TestTx_RollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	dist := NewDistributionRepo(s)
	assetID := uuid.New()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, dist.Append(ctx, tx, &domain.DistributionEntry{AssetID: assetID, Sequence: 1, Amount: 5}))
	require.NoError(t, tx.Commit(ctx))

	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, dist.Append(ctx, tx, &domain.DistributionEntry{AssetID: assetID, Sequence: 2, Amount: 7}))
	require.NoError(t, tx.Rollback(ctx))

	entries, err := dist.ListAfter(ctx, assetID, 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].Sequence)

	// the rolled-back append must not leak into the next transaction
	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, dist.Append(ctx, tx, &domain.DistributionEntry{AssetID: assetID, Sequence: 2, Amount: 9}))
	require.NoError(t, tx.Commit(ctx))

	entries, err = dist.ListAfter(ctx, assetID, 1, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(9), entries[0].Amount)
}

func TestTx_ClosedTransactionRejected(t *testing.T) {
	ctx := context.Background()
	s := New()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	assert.ErrorIs(t, tx.Rollback(ctx), pgx.ErrTxClosed)
	assert.ErrorIs(t, tx.Commit(ctx), pgx.ErrTxClosed)

	err = NewAssetRepo(s).Create(ctx, tx, &domain.Asset{ID: uuid.New()})
	assert.ErrorIs(t, err, errForeignTx)

	other := New()
	otherTx, err := other.Begin(ctx)
	require.NoError(t, err)
	defer otherTx.Rollback(ctx) //nolint:errcheck
	err = NewAssetRepo(s).Create(ctx, otherTx, &domain.Asset{ID: uuid.New()})
	assert.ErrorIs(t, err, errForeignTx)
}

func TestBegin_SerializesWriters(t *testing.T) {
	ctx := context.Background()
	s := New()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = s.Begin(waitCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, tx.Rollback(ctx))

	tx2, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx2.Rollback(ctx))
}

func TestShareLedgerRepo_AccumulatorIsDetached(t *testing.T) {
	ctx := context.Background()
	s := New()
	repo := NewShareLedgerRepo(s)
	assetID := uuid.New()

	acc, err := fixedpoint.Accumulate(fixedpoint.Zero(), 10, 100)
	require.NoError(t, err)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, tx, &domain.ShareLedger{AssetID: assetID, TotalSupply: 100, AccPerShare: acc}))
	require.NoError(t, tx.Commit(ctx))

	acc.SetUint64(0)

	got, err := repo.GetByAssetID(ctx, assetID)
	require.NoError(t, err)
	assert.Equal(t, "100000000000000000", got.AccPerShareString())

	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	err = repo.Create(ctx, tx, &domain.ShareLedger{AssetID: assetID, TotalSupply: 1})
	assert.ErrorIs(t, err, ports.ErrDuplicate)
	require.NoError(t, tx.Rollback(ctx))
}

func TestHoldingRepo_ListAndSum(t *testing.T) {
	ctx := context.Background()
	s := New()
	repo := NewHoldingRepo(s)
	assetID := uuid.New()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	for holder, bal := range map[string]int64{"a": 10, "b": 30, "c": 20, "d": 30} {
		require.NoError(t, repo.Upsert(ctx, tx, &domain.Holding{AssetID: assetID, HolderID: holder, Balance: bal}))
	}
	require.NoError(t, repo.Upsert(ctx, tx, &domain.Holding{AssetID: uuid.New(), HolderID: "a", Balance: 999}))
	require.NoError(t, tx.Commit(ctx))

	page1, total, err := repo.List(ctx, ports.HoldingListParams{AssetID: assetID, Page: 1, PageSize: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, page1, 3)
	assert.Equal(t, []string{"b", "d", "c"}, []string{page1[0].HolderID, page1[1].HolderID, page1[2].HolderID})

	page2, _, err := repo.List(ctx, ports.HoldingListParams{AssetID: assetID, Page: 2, PageSize: 3})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "a", page2[0].HolderID)

	sum, err := repo.SumBalances(ctx, assetID)
	require.NoError(t, err)
	assert.Equal(t, int64(90), sum)
}

func TestPaymentTransferRepo_ListFilters(t *testing.T) {
	ctx := context.Background()
	s := New()
	repo := NewPaymentTransferRepo(s)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	rows := []domain.PaymentTransfer{
		{ID: uuid.New(), ToID: "alice", Amount: 100, Kind: domain.PaymentKindTopup, CreatedAt: base},
		{ID: uuid.New(), FromID: "alice", ToID: "pool", Amount: 40, Kind: domain.PaymentKindSharePurchase, CreatedAt: base.Add(time.Hour)},
		{ID: uuid.New(), FromID: "bob", ToID: "pool", Amount: 5, Kind: domain.PaymentKindSharePurchase, CreatedAt: base.Add(2 * time.Hour)},
	}
	for i := range rows {
		require.NoError(t, repo.Create(ctx, tx, &rows[i]))
	}
	require.NoError(t, tx.Commit(ctx))

	all, total, err := repo.List(ctx, ports.PaymentTransferListParams{HolderID: "alice", Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, int64(40), all[0].Amount, "newest first")

	kind := domain.PaymentKindTopup
	topups, total, err := repo.List(ctx, ports.PaymentTransferListParams{HolderID: "alice", Kind: &kind, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, int64(100), topups[0].Amount)
}

func TestIdempotencyRepo_DuplicateKey(t *testing.T) {
	ctx := context.Background()
	s := New()
	repo := NewIdempotencyRepo(s)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, tx, &domain.IdempotencyLog{Key: "k", ResponseJSON: []byte(`{}`)}))
	assert.ErrorIs(t, repo.Create(ctx, tx, &domain.IdempotencyLog{Key: "k"}), ports.ErrDuplicate)
	require.NoError(t, tx.Commit(ctx))

	got, err := repo.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{}`), got.ResponseJSON)
}

func TestEventDeliveryRepo_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewEventDeliveryRepo(New())
	id := uuid.New()

	require.NoError(t, repo.Create(ctx, &domain.EventDeliveryLog{ID: id, Status: domain.DeliveryStatusPending}))
	code := 200
	require.NoError(t, repo.UpdateStatus(ctx, id, domain.DeliveryStatusDelivered, &code, 1, nil))

	got, ok := repo.Get(id)
	require.True(t, ok)
	assert.Equal(t, domain.DeliveryStatusDelivered, got.Status)
	assert.Equal(t, 1, got.Attempt)

	assert.Error(t, repo.UpdateStatus(ctx, uuid.New(), domain.DeliveryStatusFailed, nil, 1, nil))
}
