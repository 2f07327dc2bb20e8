package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"solarchain-ledger/internal/core/domain"
	"solarchain-ledger/internal/core/ports"
	"solarchain-ledger/pkg/fixedpoint"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ShareLedgerRepo implements ports.ShareLedgerRepository.
type ShareLedgerRepo struct{ s *Store }

// NewShareLedgerRepo creates a ShareLedgerRepo.
func NewShareLedgerRepo(s *Store) *ShareLedgerRepo { return &ShareLedgerRepo{s: s} }

// copyLedger detaches the accumulator so stored and returned values never alias.
func copyLedger(l domain.ShareLedger) *domain.ShareLedger {
	if l.AccPerShare == nil {
		l.AccPerShare = fixedpoint.Zero()
	} else {
		l.AccPerShare = l.AccPerShare.Clone()
	}
	return &l
}

func (r *ShareLedgerRepo) Create(ctx context.Context, tx pgx.Tx, ledger *domain.ShareLedger) error {
	st, err := r.s.write(tx)
	if err != nil {
		return err
	}
	if _, exists := st.ledgers[ledger.AssetID]; exists {
		return fmt.Errorf("create ledger %s: %w", ledger.AssetID, ports.ErrDuplicate)
	}
	st.ledgers[ledger.AssetID] = *copyLedger(*ledger)
	return nil
}

func (r *ShareLedgerRepo) GetByAssetID(ctx context.Context, assetID uuid.UUID) (*domain.ShareLedger, error) {
	var out *domain.ShareLedger
	r.s.read(func(st *state) {
		if l, ok := st.ledgers[assetID]; ok {
			out = copyLedger(l)
		}
	})
	return out, nil
}

func (r *ShareLedgerRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, assetID uuid.UUID) (*domain.ShareLedger, error) {
	st, err := r.s.write(tx)
	if err != nil {
		return nil, err
	}
	l, ok := st.ledgers[assetID]
	if !ok {
		return nil, nil
	}
	return copyLedger(l), nil
}

func (r *ShareLedgerRepo) Update(ctx context.Context, tx pgx.Tx, ledger *domain.ShareLedger) error {
	st, err := r.s.write(tx)
	if err != nil {
		return err
	}
	if _, ok := st.ledgers[ledger.AssetID]; !ok {
		return fmt.Errorf("ledger not found: %s", ledger.AssetID)
	}
	st.ledgers[ledger.AssetID] = *copyLedger(*ledger)
	return nil
}

// copyHolding detaches the reward debt in the same way as copyLedger.
func copyHolding(h domain.Holding) *domain.Holding {
	if h.RewardDebt == nil {
		h.RewardDebt = fixedpoint.Zero()
	} else {
		h.RewardDebt = h.RewardDebt.Clone()
	}
	return &h
}

// HoldingRepo implements ports.HoldingRepository.
type HoldingRepo struct{ s *Store }

// NewHoldingRepo creates a HoldingRepo.
func NewHoldingRepo(s *Store) *HoldingRepo { return &HoldingRepo{s: s} }

func (r *HoldingRepo) Get(ctx context.Context, assetID uuid.UUID, holderID string) (*domain.Holding, error) {
	var out *domain.Holding
	r.s.read(func(st *state) {
		if h, ok := st.holdings[holdingKey{assetID, holderID}]; ok {
			out = copyHolding(h)
		}
	})
	return out, nil
}

func (r *HoldingRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, assetID uuid.UUID, holderID string) (*domain.Holding, error) {
	st, err := r.s.write(tx)
	if err != nil {
		return nil, err
	}
	h, ok := st.holdings[holdingKey{assetID, holderID}]
	if !ok {
		return nil, nil
	}
	return copyHolding(h), nil
}

func (r *HoldingRepo) Upsert(ctx context.Context, tx pgx.Tx, holding *domain.Holding) error {
	st, err := r.s.write(tx)
	if err != nil {
		return err
	}
	st.holdings[holdingKey{holding.AssetID, holding.HolderID}] = *copyHolding(*holding)
	return nil
}

// List orders by balance descending, then holder id, matching the SQL adapter.
func (r *HoldingRepo) List(ctx context.Context, params ports.HoldingListParams) ([]domain.Holding, int64, error) {
	var all []domain.Holding
	r.s.read(func(st *state) {
		for k, h := range st.holdings {
			if k.assetID == params.AssetID {
				all = append(all, *copyHolding(h))
			}
		}
	})
	slices.SortFunc(all, func(a, b domain.Holding) int {
		if c := cmp.Compare(b.Balance, a.Balance); c != 0 {
			return c
		}
		return cmp.Compare(a.HolderID, b.HolderID)
	})

	total := int64(len(all))
	offset := (params.Page - 1) * params.PageSize
	if offset < 0 || offset >= len(all) {
		return []domain.Holding{}, total, nil
	}
	end := min(offset+params.PageSize, len(all))
	return all[offset:end], total, nil
}

func (r *HoldingRepo) SumBalances(ctx context.Context, assetID uuid.UUID) (int64, error) {
	var (
		sum int64
		err error
	)
	r.s.read(func(st *state) {
		for k, h := range st.holdings {
			if k.assetID != assetID {
				continue
			}
			if sum, err = fixedpoint.Add(sum, h.Balance); err != nil {
				return
			}
		}
	})
	return sum, err
}
