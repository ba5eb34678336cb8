// Package sms sends charge notifications through the SMS provider.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Sender delivers one text message.
type Sender interface {
	Send(ctx context.Context, mobile, text string) error
}

// Config addresses the SMS provider.
type Config struct {
	URL     string
	APIKey  string
	Sender  string // originating line number
	Timeout time.Duration
}

// Client posts messages to the provider's send endpoint.
type Client struct {
	cfg  Config
	http *http.Client
}

var _ Sender = (*Client)(nil)

// NewClient creates an SMS client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

type sendRequest struct {
	Sender   string `json:"sender"`
	Receptor string `json:"receptor"`
	Message  string `json:"message"`
}

type sendResponse struct {
	Return struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"return"`
}

// Send delivers text to mobile. Any non-2xx answer or provider status other
// than 200 is an error.
func (c *Client) Send(ctx context.Context, mobile, text string) error {
	payload, err := json.Marshal(sendRequest{Sender: c.cfg.Sender, Receptor: mobile, Message: text})
	if err != nil {
		return fmt.Errorf("encode sms: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms provider returned %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	var out sendResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode sms response: %w", err)
	}
	if out.Return.Status != http.StatusOK {
		return fmt.Errorf("sms provider status %d: %s", out.Return.Status, out.Return.Message)
	}
	return nil
}
