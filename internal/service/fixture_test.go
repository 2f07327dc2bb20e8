package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"solarchain-ledger/internal/adapter/storage/memory"
	"solarchain-ledger/internal/core/domain"
	"solarchain-ledger/internal/core/ports"
	"solarchain-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdmin = "admin"

// testClock is a settable ports.Clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// ledgerFixture wires every ledger service over one in-memory store.
type ledgerFixture struct {
	store         *memory.Store
	clock         *testClock
	assets        *AssetServiceImpl
	ledger        *LedgerServiceImpl
	distributions *DistributionServiceImpl
	claims        *ClaimServiceImpl
	sales         *SaleServiceImpl
	payments      *PaymentServiceImpl
	reporting     ports.ReportingService
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	store := memory.New()
	clock := newTestClock()
	log := newTestLogger()

	roles := memory.NewRoleRepo(store)
	access := NewAccessControl(roles, []string{testAdmin})
	payments := NewPaymentService(
		memory.NewPaymentAccountRepo(store),
		memory.NewPaymentTransferRepo(store),
		access, store, clock, log,
	)
	deps := LedgerDeps{
		Assets:        memory.NewAssetRepo(store),
		Ledgers:       memory.NewShareLedgerRepo(store),
		Holdings:      memory.NewHoldingRepo(store),
		Distributions: memory.NewDistributionRepo(store),
		Claims:        memory.NewClaimRepo(store),
		Sales:         memory.NewSaleRepo(store),
		Idempotency:   memory.NewIdempotencyRepo(store),
		Transactor:    store,
		Access:        access,
		Payments:      payments,
		Clock:         clock,
	}

	return &ledgerFixture{
		store:         store,
		clock:         clock,
		assets:        NewAssetService(deps.Assets, roles, access, store, nil, 0, log),
		ledger:        NewLedgerService(deps, log),
		distributions: NewDistributionService(deps, nil, nil, 2, log),
		claims:        NewClaimService(deps, nil, log),
		sales:         NewSaleService(deps, nil, nil, time.Hour, log),
		payments:      payments,
		reporting:     NewReportingService(deps, memory.NewPaymentAccountRepo(store)),
	}
}

// issuedAsset registers an asset owned by owner and issues the full supply to it.
func (f *ledgerFixture) issuedAsset(t *testing.T, owner string, supply int64) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	asset, err := f.assets.Register(ctx, ports.RegisterAssetRequest{OwnerID: owner, Name: "Rooftop Array", TotalSupply: supply})
	require.NoError(t, err)
	_, err = f.ledger.Issue(ctx, ports.IssueRequest{AssetID: asset.ID, Caller: owner})
	require.NoError(t, err)
	return asset.ID
}

func (f *ledgerFixture) fund(t *testing.T, holder string, amount int64) {
	t.Helper()
	_, err := f.payments.Topup(context.Background(), ports.TopupRequest{Caller: testAdmin, HolderID: holder, Amount: amount})
	require.NoError(t, err)
}

func (f *ledgerFixture) transfer(t *testing.T, assetID uuid.UUID, from, to string, amount int64) {
	t.Helper()
	_, err := f.ledger.Transfer(context.Background(), ports.TransferRequest{AssetID: assetID, From: from, To: to, Amount: amount})
	require.NoError(t, err)
}

func (f *ledgerFixture) distribute(t *testing.T, assetID uuid.UUID, caller string, amount int64) *domain.DistributionEntry {
	t.Helper()
	entry, err := f.distributions.Record(context.Background(), ports.DistributionRequest{AssetID: assetID, Caller: caller, Amount: amount})
	require.NoError(t, err)
	return entry
}

func (f *ledgerFixture) unclaimed(t *testing.T, assetID uuid.UUID, holder string) int64 {
	t.Helper()
	v, err := f.claims.Unclaimed(context.Background(), assetID, holder)
	require.NoError(t, err)
	return v
}

func (f *ledgerFixture) balance(t *testing.T, assetID uuid.UUID, holder string) int64 {
	t.Helper()
	v, err := f.ledger.BalanceOf(context.Background(), assetID, holder)
	require.NoError(t, err)
	return v
}

func (f *ledgerFixture) cash(t *testing.T, holder string) int64 {
	t.Helper()
	v, err := f.payments.Balance(context.Background(), holder)
	require.NoError(t, err)
	return v
}

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}
