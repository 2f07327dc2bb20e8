package handler

import (
	"strconv"

	"solarchain-ledger/internal/adapter/http/dto"
	"solarchain-ledger/internal/core/ports"
	"solarchain-ledger/pkg/apperror"
	"solarchain-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// DistributionHandler handles distribution log endpoints.
type DistributionHandler struct {
	distributionSvc ports.DistributionService
	pageSize        int
	maxPage         int
}

// NewDistributionHandler creates a new DistributionHandler. History pages
// default to pageSize entries and never exceed maxPage.
func NewDistributionHandler(distributionSvc ports.DistributionService, pageSize, maxPage int) *DistributionHandler {
	if pageSize < 1 {
		pageSize = 100
	}
	if maxPage < pageSize {
		maxPage = pageSize
	}
	return &DistributionHandler{distributionSvc: distributionSvc, pageSize: pageSize, maxPage: maxPage}
}

// Record handles POST /api/v1/assets/:asset_id/distributions.
func (h *DistributionHandler) Record(c *gin.Context) {
	subject, ok := caller(c)
	if !ok {
		return
	}
	assetID, ok := assetIDParam(c)
	if !ok {
		return
	}

	var req dto.DistributionRequest
	if !bindJSON(c, &req) {
		return
	}

	entry, err := h.distributionSvc.Record(c.Request.Context(), ports.DistributionRequest{
		AssetID: assetID,
		Caller:  subject,
		Amount:  req.Amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, entry)
}

// History handles GET /api/v1/assets/:asset_id/distributions?after_sequence=&limit=.
func (h *DistributionHandler) History(c *gin.Context) {
	assetID, ok := assetIDParam(c)
	if !ok {
		return
	}

	after, err := strconv.ParseInt(c.DefaultQuery("after_sequence", "0"), 10, 64)
	if err != nil {
		response.Error(c, apperror.Validation("after_sequence must be an integer"))
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(h.pageSize)))
	if err != nil || limit < 1 {
		response.Error(c, apperror.Validation("limit must be a positive integer"))
		return
	}
	limit = min(limit, h.maxPage)

	entries, err := h.distributionSvc.HistoryPage(c.Request.Context(), assetID, after, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	next := after
	if len(entries) > 0 {
		next = entries[len(entries)-1].Sequence
	}
	response.OK(c, dto.HistoryResponse{
		Items:             entries,
		NextAfterSequence: next,
		HasMore:           len(entries) == limit,
	})
}
