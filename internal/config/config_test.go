package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearArqonbusEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ARQONBUS_ENVIRONMENT", "ARQONBUS_WIRE_FORMAT", "ARQONBUS_DEBUG_BYPASS",
		"ARQONBUS_HOT_STATE_URL", "ARQONBUS_DURABLE_STATE_URL",
		"ARQONBUS_STORAGE_MODE", "ARQONBUS_STORAGE_BACKEND",
		"ARQONBUS_REDIS_URL", "ARQONBUS_POSTGRES_URL",
		"ARQONBUS_AUTH_ENABLED", "ARQONBUS_AUTH_SECRET",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_DefaultsAreDevFriendly(t *testing.T) {
	clearArqonbusEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.True(t, cfg.AllowJSONWire)
	assert.Equal(t, BackendMemory, cfg.StorageBackend)
}

// TestPreflight_ProdMissingDualStack verifies prod refuses to start
// without the hot/durable state URLs.
func TestPreflight_ProdMissingDualStack(t *testing.T) {
	clearArqonbusEnv(t)
	t.Setenv("ARQONBUS_ENVIRONMENT", "prod")
	t.Setenv("ARQONBUS_WIRE_FORMAT", "binary")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ARQONBUS_HOT_STATE_URL")
}

func TestPreflight_ProdRejectsJSONWire(t *testing.T) {
	clearArqonbusEnv(t)
	t.Setenv("ARQONBUS_ENVIRONMENT", "prod")
	t.Setenv("ARQONBUS_WIRE_FORMAT", "json")
	t.Setenv("ARQONBUS_HOT_STATE_URL", "redis://prod-redis:6379")
	t.Setenv("ARQONBUS_DURABLE_STATE_URL", "postgres://prod-pg/db")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JSON wire")
}

func TestPreflight_ProdRejectsDebugBypass(t *testing.T) {
	clearArqonbusEnv(t)
	t.Setenv("ARQONBUS_ENVIRONMENT", "prod")
	t.Setenv("ARQONBUS_WIRE_FORMAT", "binary")
	t.Setenv("ARQONBUS_HOT_STATE_URL", "redis://prod-redis:6379")
	t.Setenv("ARQONBUS_DURABLE_STATE_URL", "postgres://prod-pg/db")
	t.Setenv("ARQONBUS_DEBUG_BYPASS", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEBUG_BYPASS")
}

func TestPreflight_ProdHappyPath(t *testing.T) {
	clearArqonbusEnv(t)
	t.Setenv("ARQONBUS_ENVIRONMENT", "prod")
	t.Setenv("ARQONBUS_WIRE_FORMAT", "binary")
	t.Setenv("ARQONBUS_HOT_STATE_URL", "redis://prod-redis:6379")
	t.Setenv("ARQONBUS_DURABLE_STATE_URL", "postgres://prod-pg/db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvProduction, cfg.Environment)
}

func TestPreflight_StrictStorageRequiresBackendURL(t *testing.T) {
	clearArqonbusEnv(t)
	t.Setenv("ARQONBUS_ENVIRONMENT", "staging")
	t.Setenv("ARQONBUS_WIRE_FORMAT", "binary")
	t.Setenv("ARQONBUS_HOT_STATE_URL", "redis://staging-redis:6379")
	t.Setenv("ARQONBUS_DURABLE_STATE_URL", "postgres://staging-pg/db")
	t.Setenv("ARQONBUS_STORAGE_MODE", "strict")
	t.Setenv("ARQONBUS_STORAGE_BACKEND", "sql")
	t.Setenv("ARQONBUS_POSTGRES_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ARQONBUS_POSTGRES_URL")
}

func TestPreflight_AuthEnabledRequiresSecret(t *testing.T) {
	clearArqonbusEnv(t)
	t.Setenv("ARQONBUS_ENVIRONMENT", "staging")
	t.Setenv("ARQONBUS_WIRE_FORMAT", "binary")
	t.Setenv("ARQONBUS_HOT_STATE_URL", "redis://staging-redis:6379")
	t.Setenv("ARQONBUS_DURABLE_STATE_URL", "postgres://staging-pg/db")
	t.Setenv("ARQONBUS_AUTH_ENABLED", "true")
	t.Setenv("ARQONBUS_AUTH_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ARQONBUS_AUTH_SECRET")
}
