package domain

import (
	"time"

	"github.com/google/uuid"
)

// SaleState is the lifecycle state of an issuance sale. ENDED is terminal.
type SaleState string

const (
	SaleStateActive SaleState = "ACTIVE"
	SaleStateEnded  SaleState = "ENDED"
)

// SaleOffer is the fixed-price primary sale for one asset.
type SaleOffer struct {
	ID              uuid.UUID `json:"id"`
	AssetID         uuid.UUID `json:"asset_id"`
	SellerID        string    `json:"seller_id"`
	PricePerShare   int64     `json:"price_per_share"`
	SharesOffered   int64     `json:"shares_offered"`
	SharesRemaining int64     `json:"shares_remaining"`
	SharesSold      int64     `json:"shares_sold"`
	ProceedsBalance int64     `json:"proceeds_balance"`
	TotalProceeds   int64     `json:"total_proceeds"`
	EndsAt          time.Time `json:"ends_at"`
	Closed          bool      `json:"closed"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// State derives the sale state at now. Once ended a sale never reopens:
// inventory only decreases, ends_at is immutable and Closed is never cleared.
func (o *SaleOffer) State(now time.Time) SaleState {
	if o.Closed || o.SharesRemaining == 0 || !now.Before(o.EndsAt) {
		return SaleStateEnded
	}
	return SaleStateActive
}

// SaleView is the read model returned by sale queries.
type SaleView struct {
	SaleOffer
	State   SaleState `json:"state"`
	SoldPct string    `json:"sold_pct"`
}

// Purchase records shares bought from a sale.
type Purchase struct {
	ID                uuid.UUID `json:"id"`
	AssetID           uuid.UUID `json:"asset_id"`
	SaleID            uuid.UUID `json:"sale_id"`
	BuyerID           string    `json:"buyer_id"`
	Quantity          int64     `json:"quantity"`
	PricePerShare     int64     `json:"price_per_share"`
	TotalCost         int64     `json:"total_cost"`
	PaymentTransferID uuid.UUID `json:"payment_transfer_id"`
	CreatedAt         time.Time `json:"created_at"`
}
