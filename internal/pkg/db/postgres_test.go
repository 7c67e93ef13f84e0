package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino-gateway/internal/config"
)

func TestPoolConfigDefaults(t *testing.T) {
	cfg := &config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "casino", PoolSize: 2}

	pc, err := PoolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, int32(2), pc.MaxConns)
	assert.Equal(t, int32(1), pc.MinConns)
	assert.Equal(t, 10*time.Second, pc.ConnConfig.ConnectTimeout)
	assert.Equal(t, time.Hour, pc.MaxConnLifetime)
	assert.Equal(t, 30*time.Minute, pc.MaxConnIdleTime)
	assert.Equal(t, "db", pc.ConnConfig.Host)
	assert.Equal(t, "casino", pc.ConnConfig.Database)
}

func TestPoolConfigOverrides(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Host:            "db",
		Port:            5432,
		Name:            "casino",
		PoolSize:        40,
		ConnectTimeout:  3 * time.Second,
		MaxConnLifetime: time.Minute,
		MaxConnIdleTime: time.Second,
	}

	pc, err := PoolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, int32(40), pc.MaxConns)
	assert.Equal(t, int32(10), pc.MinConns)
	assert.Equal(t, 3*time.Second, pc.ConnConfig.ConnectTimeout)
	assert.Equal(t, time.Minute, pc.MaxConnLifetime)
	assert.Equal(t, time.Second, pc.MaxConnIdleTime)
}
