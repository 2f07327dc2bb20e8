// Package memory is a transactional in-process implementation of the
// storage ports. Write transactions are serialized and work on a private
// copy of the committed state, which Commit publishes atomically and
// Rollback discards.
package memory

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"solarchain-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var errForeignTx = errors.New("memory: transaction does not belong to this store or is closed")

type holdingKey struct {
	assetID  uuid.UUID
	holderID string
}

type roleKey struct {
	subject    string
	capability domain.Capability
	assetID    uuid.UUID
}

// state is everything that participates in transactions.
type state struct {
	assets        map[uuid.UUID]domain.Asset
	roles         map[roleKey]domain.RoleGrant
	ledgers       map[uuid.UUID]domain.ShareLedger
	holdings      map[holdingKey]domain.Holding
	distributions map[uuid.UUID][]domain.DistributionEntry
	claims        map[uuid.UUID][]domain.ClaimRecord
	sales         map[uuid.UUID]domain.SaleOffer
	purchases     map[uuid.UUID][]domain.Purchase
	accounts      map[string]domain.PaymentAccount
	transfers     []domain.PaymentTransfer
	idempotency   map[string]domain.IdempotencyLog
}

func newState() *state {
	return &state{
		assets:        make(map[uuid.UUID]domain.Asset),
		roles:         make(map[roleKey]domain.RoleGrant),
		ledgers:       make(map[uuid.UUID]domain.ShareLedger),
		holdings:      make(map[holdingKey]domain.Holding),
		distributions: make(map[uuid.UUID][]domain.DistributionEntry),
		claims:        make(map[uuid.UUID][]domain.ClaimRecord),
		sales:         make(map[uuid.UUID]domain.SaleOffer),
		purchases:     make(map[uuid.UUID][]domain.Purchase),
		accounts:      make(map[string]domain.PaymentAccount),
		idempotency:   make(map[string]domain.IdempotencyLog),
	}
}

// clone copies the maps. Slices are clipped so that appends in the copy
// always reallocate instead of writing into the committed backing array.
func (st *state) clone() *state {
	return &state{
		assets:        maps.Clone(st.assets),
		roles:         maps.Clone(st.roles),
		ledgers:       maps.Clone(st.ledgers),
		holdings:      maps.Clone(st.holdings),
		distributions: clipAll(st.distributions),
		claims:        clipAll(st.claims),
		sales:         maps.Clone(st.sales),
		purchases:     clipAll(st.purchases),
		accounts:      maps.Clone(st.accounts),
		transfers:     slices.Clip(st.transfers),
		idempotency:   maps.Clone(st.idempotency),
	}
}

func clipAll[K comparable, V any](m map[K][]V) map[K][]V {
	out := make(map[K][]V, len(m))
	for k, v := range m {
		out[k] = slices.Clip(v)
	}
	return out
}

// Store holds the committed state plus the non-transactional logs.
type Store struct {
	sem chan struct{} // one write transaction at a time

	mu         sync.RWMutex
	committed  *state
	audits     []domain.AuditLog
	deliveries map[uuid.UUID]domain.EventDeliveryLog
}

// New creates an empty store.
func New() *Store {
	return &Store{
		sem:        make(chan struct{}, 1),
		committed:  newState(),
		deliveries: make(map[uuid.UUID]domain.EventDeliveryLog),
	}
}

// Begin starts a write transaction, waiting for any running one to finish.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.RLock()
	work := s.committed.clone()
	s.mu.RUnlock()

	return &Tx{store: s, work: work}, nil
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "memory" }

// Ping implements ports.HealthChecker.
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// read runs fn against the committed state.
func (s *Store) read(fn func(st *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.committed)
}

// write resolves the working state of tx.
func (s *Store) write(tx pgx.Tx) (*state, error) {
	t, ok := tx.(*Tx)
	if !ok || t.store != s || t.closed {
		return nil, errForeignTx
	}
	return t.work, nil
}

// Tx is a write transaction on a Store. It satisfies pgx.Tx so services can
// stay storage-agnostic; the SQL-level methods are unsupported.
type Tx struct {
	store  *Store
	work   *state
	closed bool
}

func (t *Tx) Commit(ctx context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.store.mu.Lock()
	t.store.committed = t.work
	t.store.mu.Unlock()
	t.release()
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.release()
	return nil
}

func (t *Tx) release() {
	t.closed = true
	t.work = nil
	<-t.store.sem
}

var errUnsupported = errors.New("memory: SQL access is not supported")

func (t *Tx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, errUnsupported }
func (t *Tx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errUnsupported
}
func (t *Tx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *Tx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *Tx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errUnsupported
}
func (t *Tx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), errUnsupported
}
func (t *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errUnsupported
}
func (t *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *Tx) Conn() *pgx.Conn                                           { return nil }
