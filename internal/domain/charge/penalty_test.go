package charge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"condo/internal/core/types"
)

func date(s string) time.Time {
	t, err := types.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestComputePenalty(t *testing.T) {
	deadline := date("2024-03-01")

	tests := []struct {
		name     string
		base     types.Amount
		deadline *time.Time
		percent  types.Percent
		check    time.Time
		want     types.Amount
	}{
		{"ten days late", 1000000, &deadline, types.MustPercent("2"), date("2024-03-11"), 200000},
		{"on deadline", 1000000, &deadline, types.MustPercent("2"), deadline, 0},
		{"before deadline", 1000000, &deadline, types.MustPercent("2"), date("2024-02-20"), 0},
		{"no deadline", 1000000, nil, types.MustPercent("2"), date("2024-03-11"), 0},
		{"zero rate", 1000000, &deadline, types.MustPercent("0"), date("2024-03-11"), 0},
		{"zero base", 0, &deadline, types.MustPercent("2"), date("2024-03-11"), 0},
		{"fractional truncates", 333333, &deadline, types.MustPercent("1.5"), date("2024-03-02"), 4999},
		{"time of day ignored", 1000000, &deadline, types.MustPercent("2"), date("2024-03-11").Add(23 * time.Hour), 200000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputePenalty(tt.base, tt.deadline, tt.percent, tt.check))
		})
	}
}
