package numerator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corenumerator "condo/internal/core/numerator"
)

// Mock objects
type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier simulates sys_sequences keyed rows.
type mockQuerier struct {
	mu   sync.Mutex
	vals map[string]int64
	keys []string
	err  error
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return &mockRow{err: m.err}
	}
	if m.vals == nil {
		m.vals = make(map[string]int64)
	}

	key := args[0].(string)
	m.keys = append(m.keys, key)
	if len(args) == 2 {
		// SetNextNumber passes the explicit value
		m.vals[key] = args[1].(int64)
	} else {
		m.vals[key]++
	}
	return &mockRow{val: m.vals[key]}
}

func TestGetNextNumber_Sequential(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig("FND")
	period := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	num, err := svc.GetNextNumber(ctx, cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "FND-2024-00001", num)

	num, err = svc.GetNextNumber(ctx, cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "FND-2024-00002", num)

	assert.Equal(t, []string{"FND_2024", "FND_2024"}, q.keys)
}

func TestGetNextNumber_YearReset(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	cfg := corenumerator.DefaultConfig("FND")

	_, err := svc.GetNextNumber(context.Background(), cfg, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	num, err := svc.GetNextNumber(context.Background(), cfg, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, "FND-2025-00001", num)
}

func TestGetNextNumber_ResolverIsUsedPerCall(t *testing.T) {
	q := &mockQuerier{}
	calls := 0
	svc := NewWithResolver(func(ctx context.Context) Querier {
		calls++
		return q
	})

	_, err := svc.GetNextNumber(context.Background(), corenumerator.DefaultConfig("FND"), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestGetNextNumber_Error(t *testing.T) {
	svc := New(&mockQuerier{err: errors.New("boom")})

	_, err := svc.GetNextNumber(context.Background(), corenumerator.DefaultConfig("FND"), time.Now())
	assert.ErrorContains(t, err, "boom")
}

func TestSetNextNumber(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	cfg := corenumerator.DefaultConfig("FND")
	period := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, svc.SetNextNumber(context.Background(), cfg, period, int64(41)))
	num, err := svc.GetNextNumber(context.Background(), cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "FND-2024-00042", num)
}

func TestFormatAndParseNumber(t *testing.T) {
	period := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	noYear := corenumerator.Config{Prefix: "RCP", PadWidth: 3, ResetPeriod: "never"}

	assert.Equal(t, "RCP-007", formatNumber(noYear, period, 7))
	assert.Equal(t, "RCP", buildKey(noYear, period))
	assert.Equal(t, "FND_2024_01", buildKey(corenumerator.Config{Prefix: "FND", ResetPeriod: "month"}, period))

	assert.Equal(t, int64(12), ParseNumber("FND-2024-00012"))
	assert.Equal(t, int64(7), ParseNumber("RCP-007"))
	assert.Equal(t, int64(-1), ParseNumber("garbage"))
}
