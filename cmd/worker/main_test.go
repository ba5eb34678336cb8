package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"condo/internal/config"
	"condo/internal/core/id"
	"condo/internal/core/types"
	"condo/internal/domain/charge"
	"condo/internal/domain/memstore"
	"condo/pkg/logger"
)

func TestWorker_SweepsOnStartup(t *testing.T) {
	store := memstore.New()
	managerID := id.New()

	def := charge.NewDefinition(managerID, "Esfand", charge.KindFix)
	deadline := types.Date(time.Now().UTC()).AddDate(0, 0, -10)
	def.PaymentDeadlineDate = &deadline
	def.PaymentPenaltyPercent = types.MustPercent("2")
	late := charge.NewUnifiedCharge(def, id.New(), 1000000, deadline)
	_, err := store.Charges().InsertMany(context.Background(), []*charge.UnifiedCharge{late})
	require.NoError(t, err)

	// The next scheduled sweep is hours away; only the startup run can fire.
	cfg := &config.Config{
		SweepAt:  config.ClockTime{Hour: time.Now().UTC().Add(12 * time.Hour).Hour()},
		Location: time.UTC,
	}
	w := NewWorker(charge.NewSweeper(store.Charges(), store.Tx(), 0), nil, cfg, logger.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.RunSweeps(ctx)
	}()

	assert.Eventually(t, func() bool {
		c, err := store.Charges().GetByID(context.Background(), late.ID)
		return err == nil && c.PenaltyAmount > 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
