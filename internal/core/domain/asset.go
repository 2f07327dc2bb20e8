package domain

import (
	"time"

	"github.com/google/uuid"
)

// AssetStatus represents the registry state of a tokenized asset.
type AssetStatus string

const (
	AssetStatusActive   AssetStatus = "ACTIVE"
	AssetStatusInactive AssetStatus = "INACTIVE"
)

// Valid reports whether s is one of the known statuses.
func (s AssetStatus) Valid() bool {
	switch s {
	case AssetStatusActive, AssetStatusInactive:
		return true
	}
	return false
}

// Asset is a revenue-generating asset registered for tokenization.
type Asset struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	OwnerID     string      `json:"owner_id"`
	TotalSupply int64       `json:"total_supply"` // declared at registration, fixed at issuance
	Status      AssetStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// IsActive returns true if transfers, claims and purchases are permitted.
func (a *Asset) IsActive() bool {
	return a.Status == AssetStatusActive
}

// Capability is a role a subject can hold on an asset.
type Capability string

const (
	CapabilityOwner       Capability = "OWNER"
	CapabilityDistributor Capability = "DISTRIBUTOR"
	// CapabilityAdmin is global; grants carry uuid.Nil as the asset id.
	CapabilityAdmin Capability = "ADMIN"
)

// Valid reports whether c is one of the known capabilities.
func (c Capability) Valid() bool {
	switch c {
	case CapabilityOwner, CapabilityDistributor, CapabilityAdmin:
		return true
	}
	return false
}

// RoleGrant records that Subject holds Capability on AssetID.
type RoleGrant struct {
	Subject    string     `json:"subject"`
	Capability Capability `json:"capability"`
	AssetID    uuid.UUID  `json:"asset_id"`
	GrantedBy  string     `json:"granted_by"`
	CreatedAt  time.Time  `json:"created_at"`
}
