package domain

import (
	"time"

	"github.com/google/uuid"
)

// DistributionEntry is one immutable payout event in an asset's log.
type DistributionEntry struct {
	ID               uuid.UUID `json:"id"`
	AssetID          uuid.UUID `json:"asset_id"`
	Sequence         int64     `json:"sequence"`
	Amount           int64     `json:"amount"`
	CumulativeBefore int64     `json:"cumulative_total_before"`
	CumulativeAfter  int64     `json:"cumulative_total_after"`
	AccPerShareAfter string    `json:"acc_per_share_after"`
	RecordedBy       string    `json:"recorded_by"`
	RecordedAt       time.Time `json:"recorded_at"`
}

// ClaimRecord is emitted for every successful claim.
type ClaimRecord struct {
	ID          uuid.UUID `json:"id"`
	AssetID     uuid.UUID `json:"asset_id"`
	HolderID    string    `json:"holder_id"`
	Beneficiary string    `json:"beneficiary"`
	Amount      int64     `json:"amount"`
	ClaimedAt   time.Time `json:"claimed_at"`
}
