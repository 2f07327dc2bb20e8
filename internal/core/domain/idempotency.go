package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyLog stores the response of a completed request keyed by the
// client-supplied idempotency key.
type IdempotencyLog struct {
	Key          string    `json:"key"` // Format: "asset_id:buyer_id:client_key"
	ResourceID   uuid.UUID `json:"resource_id"`
	ResponseJSON []byte    `json:"response_json"`
	CreatedAt    time.Time `json:"created_at"`
}

// BuildPurchaseKey constructs the idempotency key of a sale purchase.
func BuildPurchaseKey(assetID uuid.UUID, buyerID, clientKey string) string {
	return assetID.String() + ":" + buyerID + ":" + clientKey
}
