package memory

import (
	"context"
	"fmt"

	"solarchain-ledger/internal/core/domain"
	"solarchain-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SaleRepo implements ports.SaleRepository.
type SaleRepo struct{ s *Store }

// NewSaleRepo creates a SaleRepo.
func NewSaleRepo(s *Store) *SaleRepo { return &SaleRepo{s: s} }

func (r *SaleRepo) Create(ctx context.Context, tx pgx.Tx, offer *domain.SaleOffer) error {
	st, err := r.s.write(tx)
	if err != nil {
		return err
	}
	if _, exists := st.sales[offer.AssetID]; exists {
		return fmt.Errorf("create sale %s: %w", offer.AssetID, ports.ErrDuplicate)
	}
	st.sales[offer.AssetID] = *offer
	return nil
}

func (r *SaleRepo) GetByAssetID(ctx context.Context, assetID uuid.UUID) (*domain.SaleOffer, error) {
	var out *domain.SaleOffer
	r.s.read(func(st *state) {
		if o, ok := st.sales[assetID]; ok {
			out = &o
		}
	})
	return out, nil
}

func (r *SaleRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, assetID uuid.UUID) (*domain.SaleOffer, error) {
	st, err := r.s.write(tx)
	if err != nil {
		return nil, err
	}
	o, ok := st.sales[assetID]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (r *SaleRepo) Update(ctx context.Context, tx pgx.Tx, offer *domain.SaleOffer) error {
	st, err := r.s.write(tx)
	if err != nil {
		return err
	}
	if _, ok := st.sales[offer.AssetID]; !ok {
		return fmt.Errorf("sale not found: %s", offer.AssetID)
	}
	st.sales[offer.AssetID] = *offer
	return nil
}

func (r *SaleRepo) CreatePurchase(ctx context.Context, tx pgx.Tx, purchase *domain.Purchase) error {
	st, err := r.s.write(tx)
	if err != nil {
		return err
	}
	st.purchases[purchase.AssetID] = append(st.purchases[purchase.AssetID], *purchase)
	return nil
}
