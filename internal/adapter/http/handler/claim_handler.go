package handler

import (
	"strconv"

	"solarchain-ledger/internal/adapter/http/dto"
	"solarchain-ledger/internal/core/domain"
	"solarchain-ledger/internal/core/ports"
	"solarchain-ledger/pkg/apperror"
	"solarchain-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// ClaimHandler handles dividend claim endpoints.
type ClaimHandler struct {
	claimSvc ports.ClaimService
}

// NewClaimHandler creates a new ClaimHandler.
func NewClaimHandler(claimSvc ports.ClaimService) *ClaimHandler {
	return &ClaimHandler{claimSvc: claimSvc}
}

// Claim handles POST /api/v1/assets/:asset_id/claims.
func (h *ClaimHandler) Claim(c *gin.Context) {
	subject, ok := caller(c)
	if !ok {
		return
	}
	assetID, ok := assetIDParam(c)
	if !ok {
		return
	}

	var req dto.ClaimRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	claimReq := ports.ClaimRequest{AssetID: assetID, Caller: subject}
	if req.SalePool {
		claimReq.HolderID = domain.SalePoolHolder(assetID)
	}

	record, err := h.claimSvc.Claim(c.Request.Context(), claimReq)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, record)
}

// ListClaims handles GET /api/v1/assets/:asset_id/claims. It lists the
// caller's claims, or the sale pool's with ?sale_pool=true.
func (h *ClaimHandler) ListClaims(c *gin.Context) {
	subject, ok := caller(c)
	if !ok {
		return
	}
	assetID, ok := assetIDParam(c)
	if !ok {
		return
	}

	holderID := subject
	if pool, _ := strconv.ParseBool(c.Query("sale_pool")); pool {
		holderID = domain.SalePoolHolder(assetID)
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			response.Error(c, apperror.Validation("limit must be a positive integer"))
			return
		}
		limit = v
	}

	ctx := c.Request.Context()
	unclaimed, err := h.claimSvc.Unclaimed(ctx, assetID, holderID)
	if err != nil {
		response.Error(c, err)
		return
	}
	records, err := h.claimSvc.ListClaims(ctx, assetID, holderID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	if records == nil {
		records = []domain.ClaimRecord{}
	}

	response.OK(c, dto.ClaimsResponse{HolderID: holderID, Unclaimed: unclaimed, Items: records})
}
