package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"condo/internal/domain"
)

func TestBackoff(t *testing.T) {
	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, time.Minute},
		{1, 2 * time.Minute},
		{3, 8 * time.Minute},
		{6, time.Hour},
		{40, time.Hour},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Backoff(time.Minute, time.Hour, tt.retry), "retry %d", tt.retry)
	}
}

func TestOutboxMux_Dispatch(t *testing.T) {
	var seen []string
	boom := errors.New("sms down")
	mux := NewOutboxMux().
		Handle(domain.EventChargeIssued, OutboxHandlerFunc(func(_ context.Context, msg *OutboxMessage) error {
			var n domain.ChargeNotice
			if err := msg.Decode(&n); err != nil {
				return err
			}
			seen = append(seen, n.Mobile)
			return nil
		})).
		Handle(domain.EventChargePaid, OutboxHandlerFunc(func(context.Context, *OutboxMessage) error {
			return boom
		}))

	ctx := context.Background()
	err := mux.Dispatch(ctx, &OutboxMessage{EventType: domain.EventChargeIssued, Payload: []byte(`{"mobile":"09121111111"}`)})
	require.NoError(t, err)
	assert.Equal(t, []string{"09121111111"}, seen)

	assert.ErrorIs(t, mux.Dispatch(ctx, &OutboxMessage{EventType: domain.EventChargePaid}), boom)
	assert.NoError(t, mux.Dispatch(ctx, &OutboxMessage{EventType: "unit.created"}), "unrouted events are acknowledged")
}

func TestOutboxMessage_DecodeError(t *testing.T) {
	msg := &OutboxMessage{EventType: domain.EventChargeIssued, Payload: []byte(`{`)}

	var n domain.ChargeNotice
	err := msg.Decode(&n)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "charge.issued")
}

func TestNewOutboxRelay_Defaults(t *testing.T) {
	r := NewOutboxRelay(nil, RelayConfig{BatchSize: 10}, NewOutboxMux())

	assert.Equal(t, 10, r.cfg.BatchSize)
	assert.Equal(t, 5, r.cfg.MaxRetries)
	assert.Equal(t, time.Minute, r.cfg.BaseBackoff)
}
