package handler

import (
	"solarchain-ledger/internal/adapter/http/dto"
	"solarchain-ledger/internal/core/ports"
	"solarchain-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// LedgerHandler handles share ledger endpoints.
type LedgerHandler struct {
	ledgerSvc ports.ShareLedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerSvc ports.ShareLedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerSvc: ledgerSvc}
}

// Issue handles POST /api/v1/assets/:asset_id/issue.
func (h *LedgerHandler) Issue(c *gin.Context) {
	subject, ok := caller(c)
	if !ok {
		return
	}
	assetID, ok := assetIDParam(c)
	if !ok {
		return
	}

	var req dto.IssueRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	ledger, err := h.ledgerSvc.Issue(c.Request.Context(), ports.IssueRequest{
		AssetID:       assetID,
		Caller:        subject,
		InitialHolder: req.InitialHolder,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, ledger)
}

// Transfer handles POST /api/v1/assets/:asset_id/transfers. Shares always
// move out of the caller's own holding.
func (h *LedgerHandler) Transfer(c *gin.Context) {
	subject, ok := caller(c)
	if !ok {
		return
	}
	assetID, ok := assetIDParam(c)
	if !ok {
		return
	}

	var req dto.TransferRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.ledgerSvc.Transfer(c.Request.Context(), ports.TransferRequest{
		AssetID: assetID,
		From:    subject,
		To:      req.To,
		Amount:  req.Amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, result)
}

// CapTable handles GET /api/v1/assets/:asset_id/holders.
func (h *LedgerHandler) CapTable(c *gin.Context) {
	assetID, ok := assetIDParam(c)
	if !ok {
		return
	}
	page, pageSize := pageParams(c)

	positions, total, err := h.ledgerSvc.CapTable(c.Request.Context(), ports.HoldingListParams{
		AssetID:  assetID,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, positions, total, page, pageSize)
}

// Position handles GET /api/v1/assets/:asset_id/holders/:holder_id.
func (h *LedgerHandler) Position(c *gin.Context) {
	assetID, ok := assetIDParam(c)
	if !ok {
		return
	}

	position, err := h.ledgerSvc.Position(c.Request.Context(), assetID, c.Param("holder_id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, position)
}
