package service

import (
	"context"
	"fmt"

	"solarchain-ledger/internal/core/domain"
	"solarchain-ledger/internal/core/ports"

	"github.com/google/uuid"
)

type accessControl struct {
	roles  ports.RoleRepository
	admins map[string]struct{}
}

// NewAccessControl creates the role-backed AccessControl. Subjects listed in
// admins hold the global ADMIN capability without a stored grant.
func NewAccessControl(roles ports.RoleRepository, admins []string) ports.AccessControl {
	set := make(map[string]struct{}, len(admins))
	for _, a := range admins {
		if a != "" {
			set[a] = struct{}{}
		}
	}
	return &accessControl{roles: roles, admins: set}
}

// HasRole reports whether subject holds capability on assetID. ADMIN
// satisfies every capability on every asset.
func (a *accessControl) HasRole(ctx context.Context, subject string, capability domain.Capability, assetID uuid.UUID) (bool, error) {
	if subject == "" {
		return false, nil
	}
	if _, ok := a.admins[subject]; ok {
		return true, nil
	}

	if capability != domain.CapabilityAdmin {
		ok, err := a.roles.Has(ctx, subject, capability, assetID)
		if err != nil {
			return false, fmt.Errorf("lookup %s grant: %w", capability, err)
		}
		if ok {
			return true, nil
		}
	}

	ok, err := a.roles.Has(ctx, subject, domain.CapabilityAdmin, uuid.Nil)
	if err != nil {
		return false, fmt.Errorf("lookup admin grant: %w", err)
	}
	return ok, nil
}
