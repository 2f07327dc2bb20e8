package dto

import (
	"time"

	"solarchain-ledger/internal/core/domain"
)

// Amount and quantity fields carry no binding tags: the services reject
// non-positive values with LEDGER_002 rather than a request error.

// RegisterAssetRequest is the request body for asset registration.
type RegisterAssetRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=100"`
	TotalSupply int64  `json:"total_supply"`
}

// SetStatusRequest is the request body for an admin status change.
type SetStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=ACTIVE INACTIVE"`
}

// GrantRoleRequest is the request body for a capability grant.
type GrantRoleRequest struct {
	Subject    string `json:"subject" binding:"required,max=64,safe_id"`
	Capability string `json:"capability" binding:"required,oneof=OWNER DISTRIBUTOR ADMIN"`
}

// IssueRequest is the optional request body for issuance.
// InitialHolder defaults to the asset owner.
type IssueRequest struct {
	InitialHolder string `json:"initial_holder" binding:"omitempty,max=64,safe_id"`
}

// TransferRequest is the request body for a share transfer from the caller.
type TransferRequest struct {
	To     string `json:"to" binding:"required,max=64,safe_id"`
	Amount int64  `json:"amount"`
}

// DistributionRequest is the request body for recording a distribution.
type DistributionRequest struct {
	Amount int64 `json:"amount"`
}

// ClaimRequest is the optional request body for a claim. SalePool lets the
// asset owner claim the sale pool's dividends.
type ClaimRequest struct {
	SalePool bool `json:"sale_pool"`
}

// OpenSaleRequest is the request body for opening the issuance sale.
type OpenSaleRequest struct {
	Quantity      int64     `json:"quantity"`
	PricePerShare int64     `json:"price_per_share"`
	EndsAt        time.Time `json:"ends_at" binding:"required"`
}

// PurchaseRequest is the request body for buying shares from the sale.
type PurchaseRequest struct {
	Quantity int64 `json:"quantity"`
}

// WithdrawRequest is the optional request body for a proceeds withdrawal.
// To defaults to the caller.
type WithdrawRequest struct {
	To string `json:"to" binding:"omitempty,max=64,safe_id"`
}

// TopupRequest is the request body for minting payout units.
type TopupRequest struct {
	HolderID string `json:"holder_id" binding:"required,max=64,safe_id"`
	Amount   int64  `json:"amount"`
}

// AssetResponse is an asset with its ledger supply figures.
type AssetResponse struct {
	*domain.Asset
	Issued       bool  `json:"issued"`
	IssuedSupply int64 `json:"issued_supply"`
}

// HistoryResponse is one page of the distribution log.
// NextAfterSequence is the cursor for the following page.
type HistoryResponse struct {
	Items             []domain.DistributionEntry `json:"items"`
	NextAfterSequence int64                      `json:"next_after_sequence"`
	HasMore           bool                       `json:"has_more"`
}

// BalanceResponse is a single holder balance.
type BalanceResponse struct {
	HolderID string `json:"holder_id"`
	Balance  int64  `json:"balance"`
}

// ClaimsResponse lists a holder's claims with their current entitlement.
type ClaimsResponse struct {
	HolderID  string               `json:"holder_id"`
	Unclaimed int64                `json:"unclaimed"`
	Items     []domain.ClaimRecord `json:"items"`
}
