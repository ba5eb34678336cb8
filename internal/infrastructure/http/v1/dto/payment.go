package dto

import (
	"time"

	"condo/internal/core/apperror"
	"condo/internal/core/id"
	"condo/internal/core/types"
	"condo/internal/domain/payment"
)

// ManualPaymentRequest is the body of POST /payments/:chargeId/manual.
type ManualPaymentRequest struct {
	BankID    *id.ID `json:"bankId"`
	Reference string `json:"reference" binding:"required,max=64"`
	PaidAt    string `json:"paidAt"` // YYYY-MM-DD, defaults to today
}

// ToManual converts the request. The paid date is read in loc.
func (r *ManualPaymentRequest) ToManual(loc *time.Location) (payment.ManualPayment, error) {
	p := payment.ManualPayment{BankID: r.BankID, Reference: r.Reference}
	if r.PaidAt == "" {
		return p, nil
	}
	day, err := types.ParseDate(r.PaidAt)
	if err != nil {
		return p, apperror.NewFieldValidation("paidAt", "date must look like YYYY-MM-DD")
	}
	p.PaidAt = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	return p, nil
}

// CallbackQuery is what the gateway appends when the payer returns.
type CallbackQuery struct {
	ChargeID  string `form:"chargeId" binding:"required"`
	Authority string `form:"Authority" binding:"required"`
	Status    string `form:"Status"`
}

// Canceled reports whether the payer abandoned the payment at the bank.
func (q CallbackQuery) Canceled() bool {
	return q.Status != "" && q.Status != "OK"
}

// SweepRequest is the body of POST /admin/penalties/sweep.
type SweepRequest struct {
	Date string `json:"date"` // YYYY-MM-DD, defaults to today
}
