package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentKind classifies a movement of payout-denomination units.
type PaymentKind string

const (
	PaymentKindTopup               PaymentKind = "TOPUP"
	PaymentKindDistributionDeposit PaymentKind = "DISTRIBUTION_DEPOSIT"
	PaymentKindDividendPayout      PaymentKind = "DIVIDEND_PAYOUT"
	PaymentKindSharePurchase       PaymentKind = "SHARE_PURCHASE"
	PaymentKindProceedsWithdrawal  PaymentKind = "PROCEEDS_WITHDRAWAL"
)

// Valid reports whether k is one of the known kinds.
func (k PaymentKind) Valid() bool {
	switch k {
	case PaymentKindTopup, PaymentKindDistributionDeposit, PaymentKindDividendPayout,
		PaymentKindSharePurchase, PaymentKindProceedsWithdrawal:
		return true
	}
	return false
}

// PaymentAccount is a balance in the payout-denomination asset.
type PaymentAccount struct {
	HolderID  string    `json:"holder_id"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PaymentTransfer is an immutable entry for one movement of funds.
// FromID is empty for topups, which mint new units.
type PaymentTransfer struct {
	ID        uuid.UUID   `json:"id"`
	Reference string      `json:"reference"`
	FromID    string      `json:"from_id,omitempty"`
	ToID      string      `json:"to_id"`
	Amount    int64       `json:"amount"`
	Kind      PaymentKind `json:"kind"`
	CreatedAt time.Time   `json:"created_at"`
}
