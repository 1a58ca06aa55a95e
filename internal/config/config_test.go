package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("COORD_TOLERANCE", "")
	t.Setenv("SUBMISSION_WINDOW", "")
	t.Setenv("MIGRATE_ON_START", "")
	cfg := FromEnv()
	assert.Equal(t, 0.004, cfg.CoordTolerance)
	assert.Equal(t, 15*time.Minute, cfg.SubmissionWindow)
	assert.Equal(t, "attendance:audit", cfg.AuditQueueKey)
	assert.True(t, cfg.MigrateOnStart)
	assert.False(t, cfg.Production())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("COORD_TOLERANCE", "0.002")
	t.Setenv("SUBMISSION_WINDOW", "10m")
	t.Setenv("RATE_LIMIT_PER_MIN", "30")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("MIGRATE_ON_START", "false")

	cfg := FromEnv()
	assert.True(t, cfg.Production())
	assert.Equal(t, 0.002, cfg.CoordTolerance)
	assert.Equal(t, 10*time.Minute, cfg.SubmissionWindow)
	assert.Equal(t, 30, cfg.RateLimitPerMin)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.False(t, cfg.MigrateOnStart)
}

func TestFromEnvInvalidValuesFallBack(t *testing.T) {
	t.Setenv("COORD_TOLERANCE", "wide")
	t.Setenv("LOCK_TTL", "soon")
	t.Setenv("RATE_LIMIT_PER_MIN", "many")
	t.Setenv("MIGRATE_ON_START", "maybe")

	cfg := FromEnv()
	assert.Equal(t, 0.004, cfg.CoordTolerance)
	assert.Equal(t, 10*time.Second, cfg.LockTTL)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
	assert.True(t, cfg.MigrateOnStart)
}

func TestValidateBackends(t *testing.T) {
	cfg := FromEnv()
	cfg.StoreBackend, cfg.QueueBackend, cfg.LockBackend, cfg.RateLimitBackend = "postgres", "redis", "redis", "memory"
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.QueueBackend = "kafka"
	assert.ErrorContains(t, bad.Validate(), "QUEUE_BACKEND")
	bad = cfg
	bad.StoreBackend = "sqlite"
	assert.ErrorContains(t, bad.Validate(), "STORE_BACKEND")
}

func TestMemoryStoreForcesMemoryAuditQueue(t *testing.T) {
	cfg := App{StoreBackend: "memory", QueueBackend: "redis"}
	assert.Equal(t, "memory", cfg.AuditQueue())

	cfg.StoreBackend = "postgres"
	assert.Equal(t, "redis", cfg.AuditQueue())
	cfg.QueueBackend = "memory"
	assert.Equal(t, "memory", cfg.AuditQueue())
}
