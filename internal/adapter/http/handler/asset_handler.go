package handler

import (
	"solarchain-ledger/internal/adapter/http/dto"
	"solarchain-ledger/internal/core/domain"
	"solarchain-ledger/internal/core/ports"
	"solarchain-ledger/pkg/apperror"
	"solarchain-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// AssetHandler handles asset registry endpoints.
type AssetHandler struct {
	assetSvc  ports.AssetRegistryService
	ledgerSvc ports.ShareLedgerService
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(assetSvc ports.AssetRegistryService, ledgerSvc ports.ShareLedgerService) *AssetHandler {
	return &AssetHandler{assetSvc: assetSvc, ledgerSvc: ledgerSvc}
}

// Register handles POST /api/v1/assets.
func (h *AssetHandler) Register(c *gin.Context) {
	subject, ok := caller(c)
	if !ok {
		return
	}

	var req dto.RegisterAssetRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	asset, err := h.assetSvc.Register(c.Request.Context(), ports.RegisterAssetRequest{
		OwnerID:     subject,
		Name:        req.Name,
		TotalSupply: req.TotalSupply,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.AssetResponse{Asset: asset})
}

// Get handles GET /api/v1/assets/:asset_id.
func (h *AssetHandler) Get(c *gin.Context) {
	assetID, ok := assetIDParam(c)
	if !ok {
		return
	}

	asset, err := h.assetSvc.Get(c.Request.Context(), assetID)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.AssetResponse{Asset: asset}
	supply, err := h.ledgerSvc.TotalSupply(c.Request.Context(), assetID)
	switch {
	case err == nil:
		resp.Issued = true
		resp.IssuedSupply = supply
	case apperror.HasCode(err, "LEDGER_005"):
		// registered, not yet issued
	default:
		response.Error(c, err)
		return
	}

	response.OK(c, resp)
}

// SetStatus handles PATCH /api/v1/assets/:asset_id/status.
func (h *AssetHandler) SetStatus(c *gin.Context) {
	subject, ok := caller(c)
	if !ok {
		return
	}
	assetID, ok := assetIDParam(c)
	if !ok {
		return
	}

	var req dto.SetStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	asset, err := h.assetSvc.SetStatus(c.Request.Context(), subject, assetID, domain.AssetStatus(req.Status))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.AssetResponse{Asset: asset})
}

// GrantRole handles POST /api/v1/assets/:asset_id/roles.
func (h *AssetHandler) GrantRole(c *gin.Context) {
	subject, ok := caller(c)
	if !ok {
		return
	}
	assetID, ok := assetIDParam(c)
	if !ok {
		return
	}

	var req dto.GrantRoleRequest
	if !bindJSON(c, &req) {
		return
	}

	grant, err := h.assetSvc.GrantRole(c.Request.Context(), subject, ports.GrantRoleRequest{
		AssetID:    assetID,
		Subject:    req.Subject,
		Capability: domain.Capability(req.Capability),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, grant)
}
