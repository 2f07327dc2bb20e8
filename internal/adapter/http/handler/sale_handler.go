package handler

import (
	"solarchain-ledger/internal/adapter/http/dto"
	"solarchain-ledger/internal/core/ports"
	"solarchain-ledger/pkg/apperror"
	"solarchain-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey makes a purchase safe to retry.
const HeaderIdempotencyKey = "Idempotency-Key"

const maxIdempotencyKeyLen = 128

// SaleHandler handles issuance sale endpoints.
type SaleHandler struct {
	saleSvc ports.SaleService
}

// NewSaleHandler creates a new SaleHandler.
func NewSaleHandler(saleSvc ports.SaleService) *SaleHandler {
	return &SaleHandler{saleSvc: saleSvc}
}

// Open handles POST /api/v1/assets/:asset_id/sale.
func (h *SaleHandler) Open(c *gin.Context) {
	subject, ok := caller(c)
	if !ok {
		return
	}
	assetID, ok := assetIDParam(c)
	if !ok {
		return
	}

	var req dto.OpenSaleRequest
	if !bindJSON(c, &req) {
		return
	}

	view, err := h.saleSvc.Open(c.Request.Context(), ports.OpenSaleRequest{
		AssetID:       assetID,
		Caller:        subject,
		Quantity:      req.Quantity,
		PricePerShare: req.PricePerShare,
		EndsAt:        req.EndsAt,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, view)
}

// State handles GET /api/v1/assets/:asset_id/sale.
func (h *SaleHandler) State(c *gin.Context) {
	assetID, ok := assetIDParam(c)
	if !ok {
		return
	}

	view, err := h.saleSvc.State(c.Request.Context(), assetID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, view)
}

// Purchase handles POST /api/v1/assets/:asset_id/sale/purchases.
func (h *SaleHandler) Purchase(c *gin.Context) {
	subject, ok := caller(c)
	if !ok {
		return
	}
	assetID, ok := assetIDParam(c)
	if !ok {
		return
	}

	key := c.GetHeader(HeaderIdempotencyKey)
	if key != "" && (len(key) > maxIdempotencyKeyLen || !dto.IsSafeID(key)) {
		response.Error(c, apperror.Validation("invalid Idempotency-Key header"))
		return
	}

	var req dto.PurchaseRequest
	if !bindJSON(c, &req) {
		return
	}

	purchase, err := h.saleSvc.Purchase(c.Request.Context(), ports.PurchaseRequest{
		AssetID:        assetID,
		BuyerID:        subject,
		Quantity:       req.Quantity,
		IdempotencyKey: key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, purchase)
}

// WithdrawProceeds handles POST /api/v1/assets/:asset_id/sale/withdrawals.
func (h *SaleHandler) WithdrawProceeds(c *gin.Context) {
	subject, ok := caller(c)
	if !ok {
		return
	}
	assetID, ok := assetIDParam(c)
	if !ok {
		return
	}

	var req dto.WithdrawRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	transfer, err := h.saleSvc.WithdrawProceeds(c.Request.Context(), ports.WithdrawRequest{
		AssetID: assetID,
		Caller:  subject,
		To:      req.To,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, transfer)
}

// ReclaimUnsold handles POST /api/v1/assets/:asset_id/sale/reclaim.
func (h *SaleHandler) ReclaimUnsold(c *gin.Context) {
	subject, ok := caller(c)
	if !ok {
		return
	}
	assetID, ok := assetIDParam(c)
	if !ok {
		return
	}

	view, err := h.saleSvc.ReclaimUnsold(c.Request.Context(), subject, assetID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, view)
}
