package charge

import (
	"time"

	"github.com/shopspring/decimal"

	"condo/internal/core/types"
)

var hundred = decimal.NewFromInt(100)

// ComputePenalty returns the simple per-day late penalty on base.
//
// No deadline, a non-positive rate, or checkDate on or before the deadline
// yields zero. Otherwise penalty = floor(base × percent / 100 × days late),
// where days are whole calendar days between the deadline and checkDate.
func ComputePenalty(base types.Amount, deadline *time.Time, percent types.Percent, checkDate time.Time) types.Amount {
	if deadline == nil || !percent.IsPositive() || base <= 0 {
		return 0
	}
	days := types.DaysBetween(*deadline, checkDate)
	if days <= 0 {
		return 0
	}
	p := base.Decimal().
		Mul(percent).
		Mul(decimal.NewFromInt(int64(days))).
		Div(hundred)
	return types.FloorAmount(p)
}
