package sms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"condo/internal/core/id"
	"condo/internal/domain"
	"condo/internal/infrastructure/storage/postgres"
)

type recordingSender struct {
	sent []string
	err  error
}

func (s *recordingSender) Send(_ context.Context, mobile, text string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, mobile+"|"+text)
	return nil
}

func issuedMessage(t *testing.T, notice domain.ChargeNotice) *postgres.OutboxMessage {
	t.Helper()
	payload, err := json.Marshal(notice)
	require.NoError(t, err)
	return &postgres.OutboxMessage{ID: id.New(), EventType: domain.EventChargeIssued, Payload: payload}
}

func TestNotifier_SendsIssuedCharge(t *testing.T) {
	sender := &recordingSender{}
	mux := postgres.NewOutboxMux()
	NewNotifier(sender).Register(mux)

	err := mux.Dispatch(context.Background(), issuedMessage(t, domain.ChargeNotice{
		Mobile: "09121234567", Name: "Sara", ChargeTitle: "Esfand", Amount: 1200000,
	}))

	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, `09121234567|Dear Sara, the charge "Esfand" of 1,200,000 Rials has been issued for your unit.`, sender.sent[0])
}

func TestNotifier_SkipsMissingMobile(t *testing.T) {
	sender := &recordingSender{}
	mux := postgres.NewOutboxMux()
	NewNotifier(sender).Register(mux)

	err := mux.Dispatch(context.Background(), issuedMessage(t, domain.ChargeNotice{ChargeTitle: "Esfand"}))

	require.NoError(t, err)
	assert.Empty(t, sender.sent)
}

func TestNotifier_PropagatesDeliveryFailure(t *testing.T) {
	sender := &recordingSender{err: errors.New("provider down")}
	mux := postgres.NewOutboxMux()
	NewNotifier(sender).Register(mux)

	err := mux.Dispatch(context.Background(), issuedMessage(t, domain.ChargeNotice{Mobile: "09121234567"}))

	assert.ErrorContains(t, err, "provider down")
}

func TestGroupDigits(t *testing.T) {
	assert.Equal(t, "0", groupDigits(0))
	assert.Equal(t, "999", groupDigits(999))
	assert.Equal(t, "1,000", groupDigits(1000))
	assert.Equal(t, "1,200,000", groupDigits(1200000))
	assert.Equal(t, "-12,345", groupDigits(-12345))
}

func TestClient_Send(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("apikey"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"return":{"status":200,"message":"ok"}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, APIKey: "secret", Sender: "3000"})
	require.NoError(t, c.Send(context.Background(), "09121234567", "hello"))
	assert.Equal(t, sendRequest{Sender: "3000", Receptor: "09121234567", Message: "hello"}, got)
}

func TestClient_ProviderRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"return":{"status":418,"message":"invalid receptor"}}`))
	}))
	defer srv.Close()

	err := NewClient(Config{URL: srv.URL}).Send(context.Background(), "0912", "hello")

	assert.ErrorContains(t, err, "invalid receptor")
}
