package memory

import (
	"context"
	"fmt"
	"time"

	"solarchain-ledger/internal/core/domain"
	"solarchain-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AssetRepo implements ports.AssetRepository.
type AssetRepo struct{ s *Store }

// NewAssetRepo creates an AssetRepo.
func NewAssetRepo(s *Store) *AssetRepo { return &AssetRepo{s: s} }

func (r *AssetRepo) Create(ctx context.Context, tx pgx.Tx, asset *domain.Asset) error {
	st, err := r.s.write(tx)
	if err != nil {
		return err
	}
	if _, exists := st.assets[asset.ID]; exists {
		return fmt.Errorf("create asset %s: %w", asset.ID, ports.ErrDuplicate)
	}
	st.assets[asset.ID] = *asset
	return nil
}

func (r *AssetRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	var out *domain.Asset
	r.s.read(func(st *state) {
		if a, ok := st.assets[id]; ok {
			out = &a
		}
	})
	return out, nil
}

func (r *AssetRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Asset, error) {
	st, err := r.s.write(tx)
	if err != nil {
		return nil, err
	}
	a, ok := st.assets[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *AssetRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.AssetStatus) error {
	st, err := r.s.write(tx)
	if err != nil {
		return err
	}
	a, ok := st.assets[id]
	if !ok {
		return fmt.Errorf("asset not found: %s", id)
	}
	a.Status = status
	a.UpdatedAt = time.Now().UTC()
	st.assets[id] = a
	return nil
}

// RoleRepo implements ports.RoleRepository.
type RoleRepo struct{ s *Store }

// NewRoleRepo creates a RoleRepo.
func NewRoleRepo(s *Store) *RoleRepo { return &RoleRepo{s: s} }

func (r *RoleRepo) Grant(ctx context.Context, tx pgx.Tx, grant *domain.RoleGrant) error {
	st, err := r.s.write(tx)
	if err != nil {
		return err
	}
	k := roleKey{subject: grant.Subject, capability: grant.Capability, assetID: grant.AssetID}
	if _, exists := st.roles[k]; !exists {
		st.roles[k] = *grant
	}
	return nil
}

func (r *RoleRepo) Has(ctx context.Context, subject string, capability domain.Capability, assetID uuid.UUID) (bool, error) {
	var ok bool
	r.s.read(func(st *state) {
		_, ok = st.roles[roleKey{subject: subject, capability: capability, assetID: assetID}]
	})
	return ok, nil
}
