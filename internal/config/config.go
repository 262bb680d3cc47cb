// Package config loads flat environment configuration for the core,
// following the same .env-then-.secret loading shape as the rest of the
// corpus: read once at startup, accessed via typed getters over
// os.Getenv, never cached behind a singleton.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file named by KARI_ENV (or .env by default), then
// the corresponding .secret sidecar if present. Missing files are not an
// error: every setting has a sensible default (spec §6).
func Load() error {
	envFile := os.Getenv("KARI_ENV")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")
	return nil
}

func RedisURL() string { return getEnvDefault("REDIS_URL", "redis://localhost:6379/0") }

func ElasticHost() string     { return getEnvDefault("ELASTIC_HOST", "") }
func ElasticPort() string     { return getEnvDefault("ELASTIC_PORT", "9200") }
func ElasticIndex() string    { return getEnvDefault("ELASTIC_INDEX", "kari-memory") }
func ElasticUser() string     { return os.Getenv("ELASTIC_USER") }
func ElasticPassword() string { return os.Getenv("ELASTIC_PASSWORD") }

func DuckDBPath() string { return getEnvDefault("DUCKDB_PATH", "kari_analytics.duckdb") }

func PostgresHost() string     { return getEnvDefault("POSTGRES_HOST", "localhost") }
func PostgresPort() string     { return getEnvDefault("POSTGRES_PORT", "5432") }
func PostgresDB() string       { return getEnvDefault("POSTGRES_DB", "kari") }
func PostgresUser() string     { return getEnvDefault("POSTGRES_USER", "kari") }
func PostgresPassword() string { return os.Getenv("POSTGRES_PASSWORD") }

// PostgresURL assembles a libpq connection string from the discrete
// POSTGRES_* vars, or returns DATABASE_URL directly when set.
func PostgresURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		PostgresUser(), PostgresPassword(), PostgresHost(), PostgresPort(), PostgresDB())
}

// ServerPort is the port the ambient /healthz and /metrics server binds.
func ServerPort() int {
	p, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil || p <= 0 {
		return 8090
	}
	return p
}

func ServerAddr() string { return fmt.Sprintf(":%d", ServerPort()) }

// RecallTimeout is the per-adapter recall timeout (spec §4.1 default 5s).
func RecallTimeout() time.Duration { return durationOrDefault("ADAPTER_RECALL_TIMEOUT", 5*time.Second) }

// StoreTimeout is the per-adapter store timeout (spec §4.1 default 10s).
func StoreTimeout() time.Duration { return durationOrDefault("ADAPTER_STORE_TIMEOUT", 10*time.Second) }

// ReconcileInterval is the reconciler tick period (spec §4.3 default 5s).
func ReconcileInterval() time.Duration {
	return durationOrDefault("RECONCILE_INTERVAL", 5*time.Second)
}

// DrainBudget bounds buffered entries replayed per reconciler tick (spec
// §4.3 default 200).
func DrainBudget() int {
	n, err := strconv.Atoi(os.Getenv("RECONCILE_DRAIN_BUDGET"))
	if err != nil || n <= 0 {
		return 200
	}
	return n
}

// ProviderCallTimeout is the per-provider dispatch timeout (spec §4.7
// default 30s).
func ProviderCallTimeout() time.Duration {
	return durationOrDefault("PROVIDER_CALL_TIMEOUT", 30*time.Second)
}

// HealthCheckTimeout is the per health-check RPC timeout (spec §5 default 2s).
func HealthCheckTimeout() time.Duration {
	return durationOrDefault("HEALTH_CHECK_TIMEOUT", 2*time.Second)
}

// RateLimitRPS/RateLimitBurst configure the ambient HTTP surface's per-IP
// limiter (kept from the teacher's middleware; the provider router has its
// own per-provider token buckets, configured in internal/router).
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

func LogLevel() string { return getEnvDefault("LOG_LEVEL", "info") }

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOrDefault(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
