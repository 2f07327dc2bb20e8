package memory

import (
	"context"
	"fmt"

	"solarchain-ledger/internal/core/domain"
	"solarchain-ledger/internal/core/ports"
	"solarchain-ledger/pkg/fixedpoint"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DistributionRepo implements ports.DistributionRepository.
type DistributionRepo struct{ s *Store }

// NewDistributionRepo creates a DistributionRepo.
func NewDistributionRepo(s *Store) *DistributionRepo { return &DistributionRepo{s: s} }

func (r *DistributionRepo) Append(ctx context.Context, tx pgx.Tx, entry *domain.DistributionEntry) error {
	st, err := r.s.write(tx)
	if err != nil {
		return err
	}
	log := st.distributions[entry.AssetID]
	if n := len(log); n > 0 && log[n-1].Sequence >= entry.Sequence {
		return fmt.Errorf("append distribution seq %d: %w", entry.Sequence, ports.ErrDuplicate)
	}
	st.distributions[entry.AssetID] = append(log, *entry)
	return nil
}

func (r *DistributionRepo) ListAfter(ctx context.Context, assetID uuid.UUID, afterSequence int64, limit int) ([]domain.DistributionEntry, error) {
	out := []domain.DistributionEntry{}
	r.s.read(func(st *state) {
		for _, e := range st.distributions[assetID] {
			if len(out) == limit {
				return
			}
			if e.Sequence > afterSequence {
				out = append(out, e)
			}
		}
	})
	return out, nil
}

// ClaimRepo implements ports.ClaimRepository.
type ClaimRepo struct{ s *Store }

// NewClaimRepo creates a ClaimRepo.
func NewClaimRepo(s *Store) *ClaimRepo { return &ClaimRepo{s: s} }

func (r *ClaimRepo) Create(ctx context.Context, tx pgx.Tx, record *domain.ClaimRecord) error {
	st, err := r.s.write(tx)
	if err != nil {
		return err
	}
	st.claims[record.AssetID] = append(st.claims[record.AssetID], *record)
	return nil
}

// ListByHolder returns the most recent claims first.
func (r *ClaimRepo) ListByHolder(ctx context.Context, assetID uuid.UUID, holderID string, limit int) ([]domain.ClaimRecord, error) {
	out := []domain.ClaimRecord{}
	r.s.read(func(st *state) {
		records := st.claims[assetID]
		for i := len(records) - 1; i >= 0 && len(out) < limit; i-- {
			if records[i].HolderID == holderID {
				out = append(out, records[i])
			}
		}
	})
	return out, nil
}

func (r *ClaimRepo) SumByAsset(ctx context.Context, assetID uuid.UUID) (int64, error) {
	var (
		sum int64
		err error
	)
	r.s.read(func(st *state) {
		for _, c := range st.claims[assetID] {
			if sum, err = fixedpoint.Add(sum, c.Amount); err != nil {
				return
			}
		}
	})
	return sum, err
}
