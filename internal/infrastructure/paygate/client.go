// Package paygate is the HTTP client of the online payment gateway.
//
// The gateway speaks JSON over HTTPS: a request call returns an authority
// the payer is redirected with, a verify call confirms the authority once
// the payer returns to the callback URL.
package paygate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"condo/internal/domain/payment"
	"condo/pkg/logger"
)

// Result codes of the gateway.
const (
	codeSuccess         = 100
	codeAlreadyVerified = 101
)

// Config addresses the gateway.
type Config struct {
	BaseURL    string // e.g. https://gateway.example/pg/v4/payment
	StartURL   string // payer redirect prefix; defaults to BaseURL + "/start/"
	MerchantID string
	Timeout    time.Duration
}

// Client implements payment.Gateway.
type Client struct {
	cfg  Config
	http *http.Client
}

var _ payment.Gateway = (*Client)(nil)

// New creates a gateway client.
func New(cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.StartURL == "" {
		cfg.StartURL = cfg.BaseURL + "/start/"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

type requestBody struct {
	MerchantID  string `json:"merchant_id"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	CallbackURL string `json:"callback_url"`
	Mobile      string `json:"mobile,omitempty"`
	OrderID     string `json:"order_id"`
}

type verifyBody struct {
	MerchantID string `json:"merchant_id"`
	Authority  string `json:"authority"`
}

type envelope struct {
	Data struct {
		Code      int    `json:"code"`
		Message   string `json:"message"`
		Authority string `json:"authority"`
		RefID     string `json:"ref_id"`
		Amount    int64  `json:"amount"`
	} `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

// RequestPayment opens a payment session.
func (c *Client) RequestPayment(ctx context.Context, req payment.Request) (payment.Authorization, error) {
	var out envelope
	err := c.post(ctx, "/request.json", requestBody{
		MerchantID:  c.cfg.MerchantID,
		Amount:      req.Amount,
		Description: req.Description,
		CallbackURL: req.CallbackURL,
		Mobile:      req.Mobile,
		OrderID:     req.ChargeID.String(),
	}, &out)
	if err != nil {
		return payment.Authorization{}, err
	}
	if out.Data.Code != codeSuccess || out.Data.Authority == "" {
		return payment.Authorization{}, fmt.Errorf("gateway rejected request: code %d: %s", out.Data.Code, out.Data.Message)
	}

	logger.Debug(ctx, "payment session opened", "charge_id", req.ChargeID, "authority", out.Data.Authority)
	return payment.Authorization{
		Authority:   out.Data.Authority,
		RedirectURL: c.cfg.StartURL + out.Data.Authority,
	}, nil
}

// Verify confirms a returning payer. A verdict other than success is not
// an error: it is reported through Verification.Success.
func (c *Client) Verify(ctx context.Context, authority string) (payment.Verification, error) {
	var out envelope
	if err := c.post(ctx, "/verify.json", verifyBody{MerchantID: c.cfg.MerchantID, Authority: authority}, &out); err != nil {
		return payment.Verification{}, err
	}

	switch out.Data.Code {
	case codeSuccess, codeAlreadyVerified:
		return payment.Verification{
			Success:   true,
			Reference: out.Data.RefID,
			Amount:    out.Data.Amount,
			Message:   out.Data.Message,
		}, nil
	default:
		return payment.Verification{Success: false, Message: out.Data.Message}, nil
	}
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call gateway %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read gateway response: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("gateway %s returned %d", path, resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode gateway response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}
