package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionRegisterAsset AuditAction = "REGISTER_ASSET"
	AuditActionSetStatus     AuditAction = "SET_STATUS"
	AuditActionGrantRole     AuditAction = "GRANT_ROLE"
	AuditActionIssue         AuditAction = "ISSUE"
	AuditActionTransfer      AuditAction = "TRANSFER"
	AuditActionDistribution  AuditAction = "DISTRIBUTION"
	AuditActionClaim         AuditAction = "CLAIM"
	AuditActionOpenSale      AuditAction = "OPEN_SALE"
	AuditActionPurchase      AuditAction = "PURCHASE"
	AuditActionWithdraw      AuditAction = "WITHDRAW"
	AuditActionReclaimUnsold AuditAction = "RECLAIM_UNSOLD"
	AuditActionTopup         AuditAction = "TOPUP"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	Subject      *string     `json:"subject,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
