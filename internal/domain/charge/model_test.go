package charge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"condo/internal/core/apperror"
	"condo/internal/core/id"
	"condo/internal/core/types"
)

func lateDefinition() *Definition {
	def := NewDefinition(id.New(), "Esfand", KindFix)
	def.FixAmount = amt(1000000)
	deadline := date("2024-03-01")
	def.PaymentDeadlineDate = &deadline
	def.PaymentPenaltyPercent = types.MustPercent("2")
	return def
}

func assertTotal(t *testing.T, c *UnifiedCharge) {
	t.Helper()
	assert.Equal(t, c.BaseCharge+c.PenaltyAmount+c.OtherCostAmount+c.Civil, c.TotalChargeMonth)
}

func TestUnifiedCharge_PenaltyScenario(t *testing.T) {
	c := NewUnifiedCharge(lateDefinition(), id.New(), 1000000, date("2024-02-20"))
	assert.Equal(t, types.Amount(0), c.PenaltyAmount)
	assert.Equal(t, types.Amount(1000000), c.TotalChargeMonth)

	assert.True(t, c.RecomputePenalty(date("2024-03-11")))
	assert.Equal(t, types.Amount(200000), c.PenaltyAmount)
	assert.Equal(t, types.Amount(1200000), c.TotalChargeMonth)

	assert.False(t, c.RecomputePenalty(date("2024-03-11")), "recompute on the same day is a no-op")
	assert.Equal(t, types.Amount(1200000), c.TotalChargeMonth)
}

func TestUnifiedCharge_TotalIncludesExtras(t *testing.T) {
	def := lateDefinition()
	def.OtherCostAmount = 30000
	def.Civil = 15000

	c := NewUnifiedCharge(def, id.New(), 1000000, date("2024-03-06"))

	assert.Equal(t, types.Amount(100000), c.PenaltyAmount)
	assert.Equal(t, types.Amount(1145000), c.TotalChargeMonth)
	assertTotal(t, c)
}

func TestUnifiedCharge_MarkPaidFreezesPenalty(t *testing.T) {
	c := NewUnifiedCharge(lateDefinition(), id.New(), 1000000, date("2024-02-20"))

	applied, err := c.MarkPaid("REF-1", date("2024-03-06"))
	require.NoError(t, err)
	assert.True(t, applied)
	assert.True(t, c.IsPaid)
	assert.Equal(t, types.Amount(100000), c.PenaltyAmount)

	// Later recomputes keep measuring at the paid date.
	assert.False(t, c.RecomputePenalty(date("2024-06-01")))
	assert.Equal(t, types.Amount(100000), c.PenaltyAmount)
	assertTotal(t, c)
}

func TestUnifiedCharge_MarkPaidUsesLocalDay(t *testing.T) {
	c := NewUnifiedCharge(lateDefinition(), id.New(), 1000000, date("2024-02-20"))
	irst := time.FixedZone("IRST", 3*3600+30*60)

	_, err := c.MarkPaid("REF-1", time.Date(2024, 3, 6, 1, 0, 0, 0, irst))

	require.NoError(t, err)
	assert.Equal(t, date("2024-03-06"), *c.PaidAt)
	assert.Equal(t, types.Amount(100000), c.PenaltyAmount)
}

func TestUnifiedCharge_OpensSession(t *testing.T) {
	c := NewUnifiedCharge(lateDefinition(), id.New(), 1000000, date("2024-02-20"))
	assert.False(t, c.OpensSession("A-1"))

	authority := "A-1"
	c.PaymentAuthority = &authority
	assert.True(t, c.OpensSession("A-1"))
	assert.False(t, c.OpensSession("A-2"))
}

func TestUnifiedCharge_MarkPaidTwice(t *testing.T) {
	c := NewUnifiedCharge(lateDefinition(), id.New(), 1000000, date("2024-02-20"))
	_, err := c.MarkPaid("REF-1", date("2024-02-25"))
	require.NoError(t, err)

	applied, err := c.MarkPaid("REF-1", date("2024-02-26"))
	require.NoError(t, err)
	assert.False(t, applied)

	_, err = c.MarkPaid("REF-2", date("2024-02-26"))
	assert.True(t, apperror.HasCode(err, apperror.CodeChargeAlreadyPaid))

	_, err = NewUnifiedCharge(lateDefinition(), id.New(), 10, time.Now()).MarkPaid("  ", time.Now())
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestDefinition_Validate(t *testing.T) {
	ctx := context.Background()

	def := lateDefinition()
	require.NoError(t, def.Validate(ctx))

	def.AreaAmount = amt(-5)
	err := def.Validate(ctx)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Details["fields"], "areaAmount")

	def = lateDefinition()
	def.Kind = "weird"
	assert.Error(t, def.Validate(ctx))

	def = lateDefinition()
	def.PaymentPenaltyPercent = types.MustPercent("150")
	assert.Error(t, def.Validate(ctx))
}
