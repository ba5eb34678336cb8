// Package payment settles unified charges through the online gateway or a
// manual bank receipt.
package payment

import (
	"context"

	"condo/internal/core/id"
)

// Request asks the gateway to open a payment session for one charge.
type Request struct {
	ChargeID    id.ID
	Amount      int64 // Rials
	Description string
	Mobile      string
	CallbackURL string
}

// Authorization is the gateway's answer to a Request.
type Authorization struct {
	Authority   string `json:"authority"`
	RedirectURL string `json:"redirectUrl"`
}

// Verification is the gateway's verdict on a returning payer.
type Verification struct {
	Success   bool
	Reference string // bank reference code, set on success
	Amount    int64
	Message   string
}

// Gateway is the online payment provider. It is never retried by the core;
// a non-success verdict leaves the charge unpaid.
type Gateway interface {
	RequestPayment(ctx context.Context, req Request) (Authorization, error)
	Verify(ctx context.Context, authority string) (Verification, error)
}
