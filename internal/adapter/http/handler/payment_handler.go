package handler

import (
	"solarchain-ledger/internal/adapter/http/dto"
	"solarchain-ledger/internal/core/domain"
	"solarchain-ledger/internal/core/ports"
	"solarchain-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentHandler handles payout-asset endpoints.
type PaymentHandler struct {
	paymentSvc ports.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentSvc ports.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

// Topup handles POST /api/v1/payments/topups.
func (h *PaymentHandler) Topup(c *gin.Context) {
	subject, ok := caller(c)
	if !ok {
		return
	}

	var req dto.TopupRequest
	if !bindJSON(c, &req) {
		return
	}

	transfer, err := h.paymentSvc.Topup(c.Request.Context(), ports.TopupRequest{
		Caller:   subject,
		HolderID: req.HolderID,
		Amount:   req.Amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, transfer)
}

// Balance handles GET /api/v1/payments/balance.
func (h *PaymentHandler) Balance(c *gin.Context) {
	subject, ok := caller(c)
	if !ok {
		return
	}

	balance, err := h.paymentSvc.Balance(c.Request.Context(), subject)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{HolderID: subject, Balance: balance})
}

// Statement handles GET /api/v1/payments/transfers.
func (h *PaymentHandler) Statement(c *gin.Context) {
	subject, ok := caller(c)
	if !ok {
		return
	}
	page, pageSize := pageParams(c)

	params := ports.PaymentTransferListParams{
		HolderID: subject,
		Page:     page,
		PageSize: pageSize,
	}
	if k := c.Query("kind"); k != "" {
		kind := domain.PaymentKind(k)
		params.Kind = &kind
	}
	var err error
	if params.From, err = int64Query(c, "from"); err != nil {
		response.Error(c, err)
		return
	}
	if params.To, err = int64Query(c, "to"); err != nil {
		response.Error(c, err)
		return
	}

	transfers, total, err := h.paymentSvc.Statement(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	if transfers == nil {
		transfers = []domain.PaymentTransfer{}
	}

	response.Paginated(c, transfers, total, page, pageSize)
}
