package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/condo")
	t.Setenv("SWEEP_AT", "")
	t.Setenv("SWEEP_BATCH_SIZE", "")
	t.Setenv("TIMEZONE", "")
	t.Setenv("OUTBOX_POLL_INTERVAL", "")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 500, cfg.SweepBatchSize)
	assert.Equal(t, ClockTime{Hour: 1}, cfg.SweepAt)
	assert.Equal(t, "Asia/Tehran", cfg.Location.String())
	assert.Equal(t, 10*time.Second, cfg.OutboxPollInterval)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/condo")
	t.Setenv("SWEEP_AT", "03:30")
	t.Setenv("SWEEP_BATCH_SIZE", "50")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("SMS_API_URL", "https://sms.example/send")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 50, cfg.SweepBatchSize)
	assert.Equal(t, "03:30", cfg.SweepAt.String())
	assert.Equal(t, time.UTC, cfg.Location)
	assert.True(t, cfg.SMS.Enabled())
}

func TestLoad_RequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()

	assert.Error(t, err)
}

func TestLoad_BadSweepTime(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/condo")
	t.Setenv("SWEEP_AT", "25:99")

	_, err := Load()

	assert.Error(t, err)
}

func TestClockTime_Next(t *testing.T) {
	c := ClockTime{Hour: 1}
	loc := time.FixedZone("IRST", 3*3600+1800)

	before := time.Date(2024, 3, 10, 0, 30, 0, 0, loc)
	assert.Equal(t, time.Date(2024, 3, 10, 1, 0, 0, 0, loc), c.Next(before))

	after := time.Date(2024, 3, 10, 1, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2024, 3, 11, 1, 0, 0, 0, loc), c.Next(after))
}
