// Package config loads the ArqonBus runtime profile from environment
// variables and enforces the production/staging preflight invariants.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment identifies the runtime profile.
type Environment string

const (
	EnvDevelopment Environment = "dev"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "prod"
)

// StorageMode controls whether a backend failure is fatal (strict) or
// transparently degrades to the in-memory ring (degraded).
type StorageMode string

const (
	StorageDegraded StorageMode = "degraded"
	StorageStrict   StorageMode = "strict"
)

// StorageBackend selects the durable storage implementation.
type StorageBackend string

const (
	BackendMemory StorageBackend = "memory"
	BackendRedis  StorageBackend = "redis"
	BackendSQL    StorageBackend = "sql"
)

// InspectMode controls whether the CASIL gate blocks or only observes.
type InspectMode string

const (
	InspectObserve InspectMode = "observe"
	InspectEnforce InspectMode = "enforce"
)

// Config holds all broker configuration loaded from ARQONBUS_* env vars.
type Config struct {
	Environment Environment

	Host           string
	Port           string
	MaxConnections int

	WireFormat    string // "json" or "binary"
	AllowJSONWire bool

	StorageBackend StorageBackend
	StorageMode    StorageMode
	RedisURL       string
	PostgresURL    string

	HotStateURL     string
	DurableStateURL string

	AuthEnabled bool
	AuthSecret  string

	InspectEnabled          bool
	InspectMode             InspectMode
	InspectIncludes         []string
	InspectExcludes         []string
	InspectSecretPatterns   []string
	InspectTruncateBytes    int
	InspectMaxPayloadBytes  int
	InspectBlockOnSecret    bool
	InspectNeverLog         []string
	InspectAnnotateMetadata bool

	TelemetryBufferSize int
	TelemetryDrainEvery int // milliseconds

	OperatorAuthRequired bool
	OperatorAuthToken    string

	LogLevel string

	// DebugBypass has no effect in dev; Preflight refuses to start in
	// staging or production when it is set.
	DebugBypass bool
}

// Load reads configuration from environment variables and runs Preflight.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: Environment(getEnv("ARQONBUS_ENVIRONMENT", "dev")),

		Host:           getEnv("ARQONBUS_HOST", "0.0.0.0"),
		Port:           getEnv("ARQONBUS_PORT", "8765"),
		MaxConnections: getEnvInt("ARQONBUS_MAX_CONNECTIONS", 10000),

		WireFormat: getEnv("ARQONBUS_WIRE_FORMAT", "json"),

		StorageBackend: StorageBackend(getEnv("ARQONBUS_STORAGE_BACKEND", "memory")),
		StorageMode:    StorageMode(getEnv("ARQONBUS_STORAGE_MODE", "degraded")),
		RedisURL:       getEnv("ARQONBUS_REDIS_URL", "redis://localhost:6379"),
		PostgresURL:    getEnv("ARQONBUS_POSTGRES_URL", ""),

		HotStateURL:     getEnv("ARQONBUS_HOT_STATE_URL", ""),
		DurableStateURL: getEnv("ARQONBUS_DURABLE_STATE_URL", ""),

		AuthEnabled: getEnvBool("ARQONBUS_AUTH_ENABLED", false),
		AuthSecret:  getEnv("ARQONBUS_AUTH_SECRET", ""),

		InspectEnabled:          getEnvBool("ARQONBUS_INSPECT_ENABLED", false),
		InspectMode:             InspectMode(getEnv("ARQONBUS_INSPECT_MODE", "observe")),
		InspectIncludes:         getEnvList("ARQONBUS_INSPECT_INCLUDES", []string{"*:*"}),
		InspectExcludes:         getEnvList("ARQONBUS_INSPECT_EXCLUDES", nil),
		InspectSecretPatterns:   getEnvList("ARQONBUS_INSPECT_SECRET_PATTERNS", []string{`(?i)token[-_ ]?[:=][-_ ]?[a-z0-9]{6,}`}),
		InspectTruncateBytes:    getEnvInt("ARQONBUS_INSPECT_TRUNCATE_BYTES", 4096),
		InspectMaxPayloadBytes:  getEnvInt("ARQONBUS_INSPECT_MAX_PAYLOAD_BYTES", 65536),
		InspectBlockOnSecret:    getEnvBool("ARQONBUS_INSPECT_BLOCK_ON_SECRET", false),
		InspectNeverLog:         getEnvList("ARQONBUS_INSPECT_NEVER_LOG", nil),
		InspectAnnotateMetadata: getEnvBool("ARQONBUS_INSPECT_ANNOTATE_METADATA", true),

		TelemetryBufferSize: getEnvInt("ARQONBUS_TELEMETRY_BUFFER_SIZE", 4096),
		TelemetryDrainEvery: getEnvInt("ARQONBUS_TELEMETRY_DRAIN_MS", 200),

		OperatorAuthRequired: getEnvBool("ARQONBUS_OPERATOR_AUTH_REQUIRED", false),
		OperatorAuthToken:    getEnv("ARQONBUS_OPERATOR_AUTH_TOKEN", ""),

		LogLevel: getEnv("ARQONBUS_LOG_LEVEL", "info"),

		DebugBypass: getEnvBool("ARQONBUS_DEBUG_BYPASS", false),
	}
	cfg.AllowJSONWire = cfg.WireFormat == "json"

	if err := Preflight(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDevelopment reports whether the broker is running in the dev profile.
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
