package domain

import (
	"errors"
	"fmt"
	"time"

	"solarchain-ledger/pkg/fixedpoint"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// ErrDebtExceedsAccrued signals a corrupted holding: reward debt may never
// exceed what the balance has accrued against the accumulator.
var ErrDebtExceedsAccrued = errors.New("reward debt exceeds accrued amount")

// ShareLedger is the per-asset supply record and dividend accumulator.
type ShareLedger struct {
	AssetID               uuid.UUID    `json:"asset_id"`
	TotalSupply           int64        `json:"total_supply"`
	AccPerShare           *uint256.Int `json:"-"` // scaled by fixedpoint.Precision
	CumulativeDistributed int64        `json:"cumulative_distributed"`
	LastSequence          int64        `json:"last_sequence"`
	IssuedAt              time.Time    `json:"issued_at"`
	UpdatedAt             time.Time    `json:"updated_at"`
}

// AccPerShareString renders the accumulator for storage and JSON views.
func (l *ShareLedger) AccPerShareString() string {
	return fixedpoint.Format(l.AccPerShare)
}

// Holding is a holder's share balance together with its claim bookkeeping.
// RewardDebt keeps full accumulator precision so that splitting a balance
// between holders never rounds any of them up.
type Holding struct {
	AssetID      uuid.UUID    `json:"asset_id"`
	HolderID     string       `json:"holder_id"`
	Balance      int64        `json:"balance"`
	RewardDebt   *uint256.Int `json:"-"` // scaled by fixedpoint.Precision
	Credit       int64        `json:"credit"` // settled entitlement not yet claimed
	TotalClaimed int64        `json:"total_claimed"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// NewHolding returns the zero holding used for holders seen for the first time.
func NewHolding(assetID uuid.UUID, holderID string) *Holding {
	return &Holding{AssetID: assetID, HolderID: holderID, RewardDebt: fixedpoint.Zero()}
}

// RewardDebtString renders the scaled reward debt for storage.
func (h *Holding) RewardDebtString() string {
	return fixedpoint.Format(h.RewardDebt)
}

// accrued returns the whole units earned since the last settlement.
func (h *Holding) accrued(acc *uint256.Int) (int64, error) {
	scaled, err := fixedpoint.Scaled(h.Balance, acc)
	if err != nil {
		return 0, err
	}
	debt := h.RewardDebt
	if debt == nil {
		debt = fixedpoint.Zero()
	}
	if debt.Gt(scaled) {
		return 0, fmt.Errorf("holder %s: %w", h.HolderID, ErrDebtExceedsAccrued)
	}
	return fixedpoint.Units(new(uint256.Int).Sub(scaled, debt))
}

// Pending returns floor((balance*acc - reward_debt)/Precision) + credit.
func (h *Holding) Pending(acc *uint256.Int) (int64, error) {
	owed, err := h.accrued(acc)
	if err != nil {
		return 0, err
	}
	return fixedpoint.Add(owed, h.Credit)
}

// Rebalance moves the holding to newBalance. Whole units earned so far are
// folded into Credit and RewardDebt is reset against the new balance, so
// later accumulator growth is attributed only to shares held from now on.
// The sub-unit remainder is forfeited.
func (h *Holding) Rebalance(acc *uint256.Int, newBalance int64) error {
	if newBalance < 0 {
		return fmt.Errorf("holder %s balance %d: %w", h.HolderID, newBalance, fixedpoint.ErrOverflow)
	}
	owed, err := h.accrued(acc)
	if err != nil {
		return err
	}
	credit, err := fixedpoint.Add(h.Credit, owed)
	if err != nil {
		return err
	}
	debt, err := fixedpoint.Scaled(newBalance, acc)
	if err != nil {
		return err
	}
	h.Balance = newBalance
	h.RewardDebt = debt
	h.Credit = credit
	return nil
}

// Claim settles the holding and returns the amount now owed to the holder.
// Only whole units move into RewardDebt, so the sub-unit remainder keeps
// accruing toward the next claim. A zero result leaves the holding untouched.
func (h *Holding) Claim(acc *uint256.Int) (int64, error) {
	owed, err := h.accrued(acc)
	if err != nil {
		return 0, err
	}
	pending, err := fixedpoint.Add(owed, h.Credit)
	if err != nil || pending <= 0 {
		return 0, err
	}
	debt, err := fixedpoint.AddUnits(h.RewardDebt, owed)
	if err != nil {
		return 0, err
	}
	claimed, err := fixedpoint.Add(h.TotalClaimed, pending)
	if err != nil {
		return 0, err
	}
	h.RewardDebt = debt
	h.Credit = 0
	h.TotalClaimed = claimed
	return pending, nil
}

// Position is the read view of one holder in one asset.
type Position struct {
	AssetID      uuid.UUID `json:"asset_id"`
	HolderID     string    `json:"holder_id"`
	Balance      int64     `json:"balance"`
	TotalSupply  int64     `json:"total_supply"`
	OwnershipPct string    `json:"ownership_pct"`
	Unclaimed    int64     `json:"unclaimed"`
	TotalClaimed int64     `json:"total_claimed"`
}

// OwnershipPercent renders balance/supply as a percentage with four decimals.
func OwnershipPercent(balance, supply int64) string {
	if supply <= 0 {
		return decimal.Zero.StringFixed(4)
	}
	return decimal.NewFromInt(balance).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(supply), 8).
		StringFixed(4)
}

// System holder ids contain a colon, which user subjects may not.
const (
	salePoolPrefix     = "sale-pool:"
	saleProceedsPrefix = "sale-proceeds:"
	dividendPoolPrefix = "dividend-pool:"
)

// SalePoolHolder is the share holder that escrows shares offered in a sale.
func SalePoolHolder(assetID uuid.UUID) string {
	return salePoolPrefix + assetID.String()
}

// SaleProceedsAccount is the payment account collecting sale proceeds.
func SaleProceedsAccount(assetID uuid.UUID) string {
	return saleProceedsPrefix + assetID.String()
}

// DividendPoolAccount is the payment account holding deposited distributions.
func DividendPoolAccount(assetID uuid.UUID) string {
	return dividendPoolPrefix + assetID.String()
}
