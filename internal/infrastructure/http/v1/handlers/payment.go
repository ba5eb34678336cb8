package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"condo/internal/core/apperror"
	"condo/internal/core/id"
	"condo/internal/domain/payment"
	"condo/internal/infrastructure/http/v1/dto"
)

// PaymentHandler serves online and manual payments.
type PaymentHandler struct {
	*BaseHandler
	payments *payment.Service
	loc      *time.Location
}

// NewPaymentHandler creates a payment handler. Manual paid dates are read in loc.
func NewPaymentHandler(base *BaseHandler, payments *payment.Service, loc *time.Location) *PaymentHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &PaymentHandler{BaseHandler: base, payments: payments, loc: loc}
}

// Request opens a gateway session for a charge.
// POST /api/v1/payments/:chargeId/request
func (h *PaymentHandler) Request(c *gin.Context) {
	chargeID, ok := h.ParamID(c, "chargeId")
	if !ok {
		return
	}

	auth, err := h.payments.Request(c.Request.Context(), chargeID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, auth)
}

// Callback completes a payment when the payer returns from the bank.
// GET /api/v1/payments/callback
func (h *PaymentHandler) Callback(c *gin.Context) {
	var q dto.CallbackQuery
	if !h.BindQuery(c, &q) {
		return
	}
	chargeID, err := id.Parse(q.ChargeID)
	if err != nil {
		h.Error(c, apperror.NewFieldValidation("chargeId", "must be a UUID"))
		return
	}
	if q.Canceled() {
		h.Error(c, apperror.NewExternalService("payment", "payment was canceled at the bank").
			WithDetail("chargeId", q.ChargeID))
		return
	}

	paid, err := h.payments.Complete(c.Request.Context(), chargeID, q.Authority)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, paid)
}

// Manual records a bank receipt entered by the manager.
// POST /api/v1/payments/:chargeId/manual
func (h *PaymentHandler) Manual(c *gin.Context) {
	chargeID, ok := h.ParamID(c, "chargeId")
	if !ok {
		return
	}
	var req dto.ManualPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	p, err := req.ToManual(h.loc)
	if err != nil {
		h.Error(c, err)
		return
	}

	paid, err := h.payments.RecordManual(c.Request.Context(), chargeID, p)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, paid)
}
