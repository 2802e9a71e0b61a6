package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
	assert.Equal(t, TickModeServer, cfg.TickMode)
	assert.True(t, cfg.ServerTicks())
	assert.Equal(t, time.Second, cfg.TickInterval)
	assert.Equal(t, BackendMemory, cfg.SessionStore)
	assert.Equal(t, BackendMemory, cfg.CompletionStore)
	assert.Equal(t, 10, cfg.PointsPerStep)
	assert.Equal(t, []string{"localhost:9042"}, cfg.Cassandra.Hosts)
	assert.Equal(t, 5*time.Second, cfg.Cassandra.Timeout)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("TICK_MODE", TickModeClient)
	t.Setenv("TICK_INTERVAL_MS", "250")
	t.Setenv("SESSION_STORE", BackendRedis)
	t.Setenv("COMPLETION_STORE", BackendCassandra)
	t.Setenv("REDIS_DB", "3")
	t.Setenv("CASSANDRA_HOSTS", "a:9042, b:9042,,")
	t.Setenv("SESSION_TTL_SECONDS", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.False(t, cfg.ServerTicks())
	assert.Equal(t, 250*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, BackendRedis, cfg.SessionStore)
	assert.Equal(t, BackendCassandra, cfg.CompletionStore)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, []string{"a:9042", "b:9042"}, cfg.Cassandra.Hosts)
	assert.Zero(t, cfg.SessionTTL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "tick mode", key: "TICK_MODE", value: "browser"},
		{name: "tick interval not a number", key: "TICK_INTERVAL_MS", value: "fast"},
		{name: "tick interval zero", key: "TICK_INTERVAL_MS", value: "0"},
		{name: "session store", key: "SESSION_STORE", value: "postgres"},
		{name: "completion store", key: "COMPLETION_STORE", value: "redis"},
		{name: "points negative", key: "POINTS_PER_STEP", value: "-1"},
		{name: "redis db", key: "REDIS_DB", value: "zero"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
