package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"solarchain-ledger/internal/core/domain"
	"solarchain-ledger/internal/core/ports"
	"solarchain-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultAssetCacheTTL = 30 * time.Second

// AssetServiceImpl implements ports.AssetRegistryService.
type AssetServiceImpl struct {
	assets     ports.AssetRepository
	roles      ports.RoleRepository
	access     ports.AccessControl
	transactor ports.DBTransactor
	cache      ports.ReadCache // nil = disabled
	cacheTTL   time.Duration
	log        zerolog.Logger
}

// NewAssetService creates a new AssetServiceImpl.
func NewAssetService(
	assets ports.AssetRepository,
	roles ports.RoleRepository,
	access ports.AccessControl,
	transactor ports.DBTransactor,
	cache ports.ReadCache,
	cacheTTL time.Duration,
	log zerolog.Logger,
) *AssetServiceImpl {
	if cacheTTL <= 0 {
		cacheTTL = defaultAssetCacheTTL
	}
	return &AssetServiceImpl{
		assets:     assets,
		roles:      roles,
		access:     access,
		transactor: transactor,
		cache:      cache,
		cacheTTL:   cacheTTL,
		log:        log,
	}
}

func assetCacheKey(id uuid.UUID) string {
	return "asset:" + id.String()
}

// Register creates the registry record and makes the caller its OWNER.
func (s *AssetServiceImpl) Register(ctx context.Context, req ports.RegisterAssetRequest) (*domain.Asset, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.Validation("asset name is required")
	}
	if req.TotalSupply <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	now := time.Now().UTC()
	asset := &domain.Asset{
		ID:          uuid.New(),
		Name:        name,
		OwnerID:     req.OwnerID,
		TotalSupply: req.TotalSupply,
		Status:      domain.AssetStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.assets.Create(ctx, dbTx, asset); err != nil {
		return nil, storageError("create asset", err)
	}
	if err := s.roles.Grant(ctx, dbTx, &domain.RoleGrant{
		Subject:    req.OwnerID,
		Capability: domain.CapabilityOwner,
		AssetID:    asset.ID,
		GrantedBy:  req.OwnerID,
		CreatedAt:  now,
	}); err != nil {
		return nil, storageError("grant owner", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("asset_id", asset.ID.String()).
		Str("owner_id", asset.OwnerID).
		Int64("total_supply", asset.TotalSupply).
		Msg("asset registered")

	return asset, nil
}

// Get returns an asset, served from the read cache when possible.
func (s *AssetServiceImpl) Get(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	key := assetCacheKey(id)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("asset cache read failed, falling through to DB")
		}
		if cached != nil {
			asset := &domain.Asset{}
			if err := json.Unmarshal(cached, asset); err == nil {
				return asset, nil
			}
		}
	}

	asset, err := s.assets.GetByID(ctx, id)
	if err != nil {
		return nil, storageError("get asset", err)
	}
	if asset == nil {
		return nil, apperror.ErrNotFound("asset")
	}

	if s.cache != nil {
		if data, err := json.Marshal(asset); err == nil {
			if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
				s.log.Warn().Err(err).Str("key", key).Msg("failed to cache asset")
			}
		}
	}
	return asset, nil
}

// SetStatus flips the registry's active gate. ADMIN only.
func (s *AssetServiceImpl) SetStatus(ctx context.Context, caller string, id uuid.UUID, status domain.AssetStatus) (*domain.Asset, error) {
	if !status.Valid() {
		return nil, apperror.Validation("unknown asset status")
	}
	if err := requireRole(ctx, s.access, caller, uuid.Nil, domain.CapabilityAdmin); err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	asset, err := s.assets.GetByIDTx(ctx, dbTx, id)
	if err != nil {
		return nil, storageError("get asset", err)
	}
	if asset == nil {
		return nil, apperror.ErrNotFound("asset")
	}
	if err := s.assets.UpdateStatus(ctx, dbTx, id, status); err != nil {
		return nil, storageError("update status", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, assetCacheKey(id)); err != nil {
			s.log.Warn().Err(err).Str("asset_id", id.String()).Msg("failed to invalidate asset cache")
		}
	}

	asset.Status = status
	asset.UpdatedAt = time.Now().UTC()
	s.log.Info().Str("asset_id", id.String()).Str("status", string(status)).Msg("asset status changed")
	return asset, nil
}

// GrantRole records a capability grant. Owners may grant DISTRIBUTOR and
// OWNER on their asset; only ADMIN may grant ADMIN.
func (s *AssetServiceImpl) GrantRole(ctx context.Context, caller string, req ports.GrantRoleRequest) (*domain.RoleGrant, error) {
	if !req.Capability.Valid() {
		return nil, apperror.Validation("unknown capability")
	}
	if strings.TrimSpace(req.Subject) == "" {
		return nil, apperror.Validation("subject is required")
	}

	assetID := req.AssetID
	if req.Capability == domain.CapabilityAdmin {
		assetID = uuid.Nil
		if err := requireRole(ctx, s.access, caller, uuid.Nil, domain.CapabilityAdmin); err != nil {
			return nil, err
		}
	} else if err := requireRole(ctx, s.access, caller, assetID, domain.CapabilityOwner); err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if assetID != uuid.Nil {
		asset, err := s.assets.GetByIDTx(ctx, dbTx, assetID)
		if err != nil {
			return nil, storageError("get asset", err)
		}
		if asset == nil {
			return nil, apperror.ErrNotFound("asset")
		}
	}

	grant := &domain.RoleGrant{
		Subject:    req.Subject,
		Capability: req.Capability,
		AssetID:    assetID,
		GrantedBy:  caller,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.roles.Grant(ctx, dbTx, grant); err != nil && !errors.Is(err, ports.ErrDuplicate) {
		return nil, storageError("grant role", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("asset_id", assetID.String()).
		Str("subject", req.Subject).
		Str("capability", string(req.Capability)).
		Msg("role granted")
	return grant, nil
}
