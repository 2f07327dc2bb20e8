package handler

import (
	"solarchain-ledger/internal/core/ports"
	"solarchain-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// ReportingHandler serves aggregate read models.
type ReportingHandler struct {
	reportingSvc ports.ReportingService
}

// NewReportingHandler creates a new ReportingHandler.
func NewReportingHandler(reportingSvc ports.ReportingService) *ReportingHandler {
	return &ReportingHandler{reportingSvc: reportingSvc}
}

// Summary handles GET /api/v1/assets/:asset_id/summary.
func (h *ReportingHandler) Summary(c *gin.Context) {
	assetID, ok := assetIDParam(c)
	if !ok {
		return
	}

	summary, err := h.reportingSvc.AssetSummary(c.Request.Context(), assetID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, summary)
}
