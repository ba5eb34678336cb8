package charge_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"condo/internal/core/id"
	"condo/internal/core/types"
	"condo/internal/domain/charge"
	"condo/internal/domain/memstore"
)

func seedOverdue(t *testing.T, store *memstore.Store, n int) []*charge.UnifiedCharge {
	t.Helper()
	def := charge.NewDefinition(id.New(), "Esfand", charge.KindFix)
	deadline := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	def.PaymentDeadlineDate = &deadline
	def.PaymentPenaltyPercent = types.MustPercent("2")

	issued := time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)
	var out []*charge.UnifiedCharge
	for range n {
		out = append(out, charge.NewUnifiedCharge(def, id.New(), 1000000, issued))
	}
	_, err := store.Charges().InsertMany(context.Background(), out)
	require.NoError(t, err)
	return out
}

func TestSweep_UpdatesOnceThenConverges(t *testing.T) {
	store := memstore.New()
	seeded := seedOverdue(t, store, 5)
	sweeper := charge.NewSweeper(store.Charges(), store.Tx(), 2)
	today := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)

	first, err := sweeper.Run(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, 5, first.Scanned)
	assert.Equal(t, int64(5), first.Updated)
	assert.Equal(t, 3, first.Chunks)

	c, err := store.Charges().GetByID(context.Background(), seeded[0].ID)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(200000), c.PenaltyAmount)
	assert.Equal(t, types.Amount(1200000), c.TotalChargeMonth)

	second, err := sweeper.Run(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, int64(0), second.Updated)
}

func TestSweep_SkipsPaidCharges(t *testing.T) {
	store := memstore.New()
	seeded := seedOverdue(t, store, 2)

	paid, err := store.Charges().GetByID(context.Background(), seeded[0].ID)
	require.NoError(t, err)
	_, err = paid.MarkPaid("REF-9", time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, store.Charges().Update(context.Background(), paid))

	res, err := charge.NewSweeper(store.Charges(), store.Tx(), 0).Run(context.Background(), time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Equal(t, 1, res.Scanned)
	assert.Equal(t, int64(1), res.Updated)

	paid, err = store.Charges().GetByID(context.Background(), seeded[0].ID)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(0), paid.PenaltyAmount)
}

func TestSweep_NothingOverdue(t *testing.T) {
	store := memstore.New()
	seedOverdue(t, store, 3)

	res, err := charge.NewSweeper(store.Charges(), store.Tx(), 0).Run(context.Background(), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Zero(t, res.Scanned)
	assert.Zero(t, res.Chunks)
}
