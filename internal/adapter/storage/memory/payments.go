package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"solarchain-ledger/internal/core/domain"
	"solarchain-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// PaymentAccountRepo implements ports.PaymentAccountRepository.
type PaymentAccountRepo struct{ s *Store }

// NewPaymentAccountRepo creates a PaymentAccountRepo.
func NewPaymentAccountRepo(s *Store) *PaymentAccountRepo { return &PaymentAccountRepo{s: s} }

func (r *PaymentAccountRepo) Get(ctx context.Context, holderID string) (*domain.PaymentAccount, error) {
	var out *domain.PaymentAccount
	r.s.read(func(st *state) {
		if a, ok := st.accounts[holderID]; ok {
			out = &a
		}
	})
	return out, nil
}

// LockOrCreate returns a zero account for unknown holders. The store admits
// one writer at a time, so nothing needs to be inserted up front.
func (r *PaymentAccountRepo) LockOrCreate(ctx context.Context, tx pgx.Tx, holderID string, now time.Time) (*domain.PaymentAccount, error) {
	st, err := r.s.write(tx)
	if err != nil {
		return nil, err
	}
	a, ok := st.accounts[holderID]
	if !ok {
		return &domain.PaymentAccount{HolderID: holderID, CreatedAt: now, UpdatedAt: now}, nil
	}
	return &a, nil
}

func (r *PaymentAccountRepo) Upsert(ctx context.Context, tx pgx.Tx, account *domain.PaymentAccount) error {
	st, err := r.s.write(tx)
	if err != nil {
		return err
	}
	st.accounts[account.HolderID] = *account
	return nil
}

// PaymentTransferRepo implements ports.PaymentTransferRepository.
type PaymentTransferRepo struct{ s *Store }

// NewPaymentTransferRepo creates a PaymentTransferRepo.
func NewPaymentTransferRepo(s *Store) *PaymentTransferRepo { return &PaymentTransferRepo{s: s} }

func (r *PaymentTransferRepo) Create(ctx context.Context, tx pgx.Tx, transfer *domain.PaymentTransfer) error {
	st, err := r.s.write(tx)
	if err != nil {
		return err
	}
	st.transfers = append(st.transfers, *transfer)
	return nil
}

// List returns newest first, matching the SQL adapter.
func (r *PaymentTransferRepo) List(ctx context.Context, params ports.PaymentTransferListParams) ([]domain.PaymentTransfer, int64, error) {
	var matched []domain.PaymentTransfer
	r.s.read(func(st *state) {
		for _, t := range st.transfers {
			if t.FromID != params.HolderID && t.ToID != params.HolderID {
				continue
			}
			if params.Kind != nil && t.Kind != *params.Kind {
				continue
			}
			if params.From != nil && t.CreatedAt.Unix() < *params.From {
				continue
			}
			if params.To != nil && t.CreatedAt.Unix() > *params.To {
				continue
			}
			matched = append(matched, t)
		}
	})
	slices.SortStableFunc(matched, func(a, b domain.PaymentTransfer) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})

	total := int64(len(matched))
	offset := (params.Page - 1) * params.PageSize
	if offset < 0 || offset >= len(matched) {
		return []domain.PaymentTransfer{}, total, nil
	}
	end := min(offset+params.PageSize, len(matched))
	return matched[offset:end], total, nil
}

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct{ s *Store }

// NewIdempotencyRepo creates an IdempotencyRepo.
func NewIdempotencyRepo(s *Store) *IdempotencyRepo { return &IdempotencyRepo{s: s} }

func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	st, err := r.s.write(tx)
	if err != nil {
		return err
	}
	if _, exists := st.idempotency[log.Key]; exists {
		return fmt.Errorf("idempotency key %q: %w", log.Key, ports.ErrDuplicate)
	}
	st.idempotency[log.Key] = *log
	return nil
}

func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyLog, error) {
	var out *domain.IdempotencyLog
	r.s.read(func(st *state) {
		if l, ok := st.idempotency[key]; ok {
			out = &l
		}
	})
	return out, nil
}
