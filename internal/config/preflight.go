package config

import "fmt"

// Preflight enforces the invariants that staging and production must not
// violate before the broker is allowed to start. Development is
// permissive: it is the only profile where the JSON wire, an empty auth
// secret, and an in-memory backend are all acceptable.
func Preflight(cfg *Config) error {
	switch cfg.Environment {
	case EnvDevelopment:
		return nil
	case EnvStaging, EnvProduction:
		// fall through to the checks below
	default:
		return fmt.Errorf("config: unknown ARQONBUS_ENVIRONMENT %q", cfg.Environment)
	}

	if cfg.DebugBypass {
		return fmt.Errorf("config: ARQONBUS_DEBUG_BYPASS must not be set in %s", cfg.Environment)
	}
	if cfg.AllowJSONWire {
		return fmt.Errorf("config: JSON wire is forbidden in %s; set ARQONBUS_WIRE_FORMAT=binary", cfg.Environment)
	}
	if cfg.StorageMode == StorageStrict {
		if cfg.StorageBackend == BackendRedis && cfg.RedisURL == "" {
			return fmt.Errorf("config: strict storage requires ARQONBUS_REDIS_URL")
		}
		if cfg.StorageBackend == BackendSQL && cfg.PostgresURL == "" {
			return fmt.Errorf("config: strict storage requires ARQONBUS_POSTGRES_URL")
		}
	}
	if cfg.HotStateURL == "" {
		return fmt.Errorf("config: ARQONBUS_HOT_STATE_URL is required in %s", cfg.Environment)
	}
	if cfg.DurableStateURL == "" {
		return fmt.Errorf("config: ARQONBUS_DURABLE_STATE_URL is required in %s", cfg.Environment)
	}
	if cfg.AuthEnabled && cfg.AuthSecret == "" {
		return fmt.Errorf("config: ARQONBUS_AUTH_SECRET is required when auth is enabled in %s", cfg.Environment)
	}

	return nil
}
