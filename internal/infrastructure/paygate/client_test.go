package paygate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"condo/internal/core/id"
	"condo/internal/domain/payment"
)

func newServer(t *testing.T, handler func(path string, body map[string]any) (int, string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		status, resp := handler(r.URL.Path, body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRequestPayment(t *testing.T) {
	var got map[string]any
	srv := newServer(t, func(path string, body map[string]any) (int, string) {
		assert.Equal(t, "/request.json", path)
		got = body
		return http.StatusOK, `{"data":{"code":100,"message":"Success","authority":"A0001"},"errors":[]}`
	})
	c := New(Config{BaseURL: srv.URL, MerchantID: "m-1"})
	chargeID := id.New()

	auth, err := c.RequestPayment(context.Background(), payment.Request{
		ChargeID:    chargeID,
		Amount:      1200000,
		Description: "Esfand",
		CallbackURL: "https://condo.example/cb",
	})

	require.NoError(t, err)
	assert.Equal(t, "A0001", auth.Authority)
	assert.Equal(t, srv.URL+"/start/A0001", auth.RedirectURL)
	assert.Equal(t, "m-1", got["merchant_id"])
	assert.Equal(t, float64(1200000), got["amount"])
	assert.Equal(t, chargeID.String(), got["order_id"])
}

func TestRequestPayment_Rejected(t *testing.T) {
	srv := newServer(t, func(string, map[string]any) (int, string) {
		return http.StatusOK, `{"data":{"code":-11,"message":"merchant inactive"}}`
	})

	_, err := New(Config{BaseURL: srv.URL}).RequestPayment(context.Background(), payment.Request{ChargeID: id.New(), Amount: 1})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "merchant inactive")
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		resp    string
		success bool
		ref     string
	}{
		{"success", `{"data":{"code":100,"ref_id":"R-9","amount":1200000}}`, true, "R-9"},
		{"already verified", `{"data":{"code":101,"ref_id":"R-9"}}`, true, "R-9"},
		{"canceled", `{"data":{"code":-51,"message":"canceled by payer"}}`, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, func(path string, body map[string]any) (int, string) {
				assert.Equal(t, "/verify.json", path)
				assert.Equal(t, "A0001", body["authority"])
				return http.StatusOK, tt.resp
			})

			v, err := New(Config{BaseURL: srv.URL}).Verify(context.Background(), "A0001")

			require.NoError(t, err)
			assert.Equal(t, tt.success, v.Success)
			assert.Equal(t, tt.ref, v.Reference)
		})
	}
}

func TestVerify_ServerError(t *testing.T) {
	srv := newServer(t, func(string, map[string]any) (int, string) {
		return http.StatusBadGateway, "upstream down"
	})

	_, err := New(Config{BaseURL: srv.URL}).Verify(context.Background(), "A0001")

	assert.Error(t, err)
}
