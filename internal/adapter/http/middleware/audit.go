package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"solarchain-ledger/internal/core/domain"
	"solarchain-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type auditRoute struct {
	action       domain.AuditAction
	resourceType string
}

// auditRoutes maps "METHOD route-template" to the audited action.
var auditRoutes = map[string]auditRoute{
	"POST /api/v1/assets":                            {domain.AuditActionRegisterAsset, "asset"},
	"PATCH /api/v1/assets/:asset_id/status":          {domain.AuditActionSetStatus, "asset"},
	"POST /api/v1/assets/:asset_id/roles":            {domain.AuditActionGrantRole, "role"},
	"POST /api/v1/assets/:asset_id/issue":            {domain.AuditActionIssue, "ledger"},
	"POST /api/v1/assets/:asset_id/transfers":        {domain.AuditActionTransfer, "ledger"},
	"POST /api/v1/assets/:asset_id/distributions":    {domain.AuditActionDistribution, "distribution"},
	"POST /api/v1/assets/:asset_id/claims":           {domain.AuditActionClaim, "claim"},
	"POST /api/v1/assets/:asset_id/sale":             {domain.AuditActionOpenSale, "sale"},
	"POST /api/v1/assets/:asset_id/sale/purchases":   {domain.AuditActionPurchase, "purchase"},
	"POST /api/v1/assets/:asset_id/sale/withdrawals": {domain.AuditActionWithdraw, "sale"},
	"POST /api/v1/assets/:asset_id/sale/reclaim":     {domain.AuditActionReclaimUnsold, "sale"},
	"POST /api/v1/payments/topups":                   {domain.AuditActionTopup, "payment_account"},
}

// AuditLog creates an audit middleware that logs successful write operations.
// Routes are matched by their registered template, so it must run on the
// engine rather than inside a group.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		action, resourceType := mapPathToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		var subject *string
		if s, ok := Subject(c); ok {
			subject = &s
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"request_id": c.GetString(CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			Subject:      subject,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.Param("asset_id"),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

func mapPathToAction(route, method string) (domain.AuditAction, string) {
	r, ok := auditRoutes[method+" "+route]
	if !ok {
		return "", ""
	}
	return r.action, r.resourceType
}
