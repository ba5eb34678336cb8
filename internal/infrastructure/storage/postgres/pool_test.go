package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPoolConfig(t *testing.T) {
	cfg := DefaultPoolConfig("postgres://condo@localhost/condo")

	assert.Equal(t, "postgres://condo@localhost/condo", cfg.DSN)
	assert.Equal(t, int32(20), cfg.MaxConns)
	assert.Equal(t, time.Hour, cfg.MaxConnLifetime)
}

func TestPoolStats_Saturated(t *testing.T) {
	assert.True(t, PoolStats{MaxConns: 4, AcquiredConns: 4}.Saturated())
	assert.False(t, PoolStats{MaxConns: 4, AcquiredConns: 3}.Saturated())
	assert.False(t, PoolStats{}.Saturated())
}
