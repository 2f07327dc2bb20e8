//go:build integration

package postgres

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"solarchain-ledger/config"
	"solarchain-ledger/internal/core/domain"
	"solarchain-ledger/internal/core/ports"
	"solarchain-ledger/internal/service"
	"solarchain-ledger/pkg/fixedpoint"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres runs a throwaway PostgreSQL server and returns a migrated pool.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "ledger",
				"POSTGRES_PASSWORD": "ledger",
				"POSTGRES_DB":       "solarchain_ledger",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	cfg := config.DatabaseConfig{
		Host:     host,
		Port:     portNum,
		User:     "ledger",
		Password: "ledger",
		DBName:   "solarchain_ledger",
		SSLMode:  "disable",
		MaxConns: 5,
		MinConns: 1,
	}
	pool, err := NewPool(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(pool, zerolog.Nop()))
	// Second run is a no-op.
	require.NoError(t, Migrate(pool, zerolog.Nop()))
	return pool
}

func TestIntegration_LedgerRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-based test in short mode")
	}
	pool := startPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	assets := NewAssetRepo(pool)
	ledgers := NewShareLedgerRepo(pool)
	holdings := NewHoldingRepo(pool)
	distributions := NewDistributionRepo(pool)
	transactor := NewTransactor(pool, 2*time.Second)

	asset := &domain.Asset{
		ID: uuid.New(), Name: "Array", OwnerID: "owner", TotalSupply: 3,
		Status: domain.AssetStatusActive, CreatedAt: now, UpdatedAt: now,
	}
	acc, err := fixedpoint.Accumulate(fixedpoint.Zero(), 10, 3)
	require.NoError(t, err)

	tx, err := transactor.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, assets.Create(ctx, tx, asset))
	require.NoError(t, ledgers.Create(ctx, tx, &domain.ShareLedger{
		AssetID: asset.ID, TotalSupply: 3, AccPerShare: acc, IssuedAt: now, UpdatedAt: now,
	}))
	debt, err := fixedpoint.Scaled(3, acc)
	require.NoError(t, err)
	require.NoError(t, holdings.Upsert(ctx, tx, &domain.Holding{AssetID: asset.ID, HolderID: "owner", Balance: 3, RewardDebt: debt, UpdatedAt: now}))
	entry := &domain.DistributionEntry{
		ID: uuid.New(), AssetID: asset.ID, Sequence: 1, Amount: 10, CumulativeAfter: 10,
		AccPerShareAfter: fixedpoint.Format(acc), RecordedBy: "owner", RecordedAt: now,
	}
	require.NoError(t, distributions.Append(ctx, tx, entry))
	require.NoError(t, tx.Commit(ctx))

	got, err := ledgers.GetByAssetID(ctx, asset.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "3333333333333333333", got.AccPerShareString())

	owner, err := holdings.Get(ctx, asset.ID, "owner")
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, "9999999999999999999", owner.RewardDebtString())

	sum, err := holdings.SumBalances(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), sum)

	// A repeated sequence is rejected by the unique key.
	tx, err = transactor.Begin(ctx)
	require.NoError(t, err)
	entry.ID = uuid.New()
	err = distributions.Append(ctx, tx, entry)
	assert.ErrorIs(t, err, ports.ErrDuplicate)
	require.NoError(t, tx.Rollback(ctx))
}

func TestIntegration_LockTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-based test in short mode")
	}
	pool := startPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	assets := NewAssetRepo(pool)
	ledgers := NewShareLedgerRepo(pool)
	transactor := NewTransactor(pool, 200*time.Millisecond)

	assetID := uuid.New()
	tx, err := transactor.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, assets.Create(ctx, tx, &domain.Asset{
		ID: assetID, Name: "A", OwnerID: "o", TotalSupply: 1, Status: domain.AssetStatusActive, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, ledgers.Create(ctx, tx, &domain.ShareLedger{
		AssetID: assetID, TotalSupply: 1, AccPerShare: fixedpoint.Zero(), IssuedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, tx.Commit(ctx))

	holder, err := transactor.Begin(ctx)
	require.NoError(t, err)
	defer holder.Rollback(ctx) //nolint:errcheck
	_, err = ledgers.GetForUpdate(ctx, holder, assetID)
	require.NoError(t, err)

	waiter, err := transactor.Begin(ctx)
	require.NoError(t, err)
	defer waiter.Rollback(ctx) //nolint:errcheck
	_, err = ledgers.GetForUpdate(ctx, waiter, assetID)
	assert.ErrorIs(t, err, ports.ErrLockTimeout)
}

func TestIntegration_ConcurrentFirstCreditsAreNotLost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-based test in short mode")
	}
	pool := startPostgres(t)
	ctx := context.Background()

	accounts := NewPaymentAccountRepo(pool)
	access := service.NewAccessControl(NewRoleRepo(pool), []string{"admin"})
	payments := service.NewPaymentService(accounts, NewPaymentTransferRepo(pool), access,
		NewTransactor(pool, 5*time.Second), nil, zerolog.Nop())

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := payments.Topup(ctx, ports.TopupRequest{Caller: "admin", HolderID: "fresh", Amount: 5})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	acct, err := accounts.Get(ctx, "fresh")
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.Equal(t, int64(5*workers), acct.Balance)
}
