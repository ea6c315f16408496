// Package config loads runtime configuration from environment variables,
// in the style of cocomgroup-hub-hrms/internal/config, crossed with the
// teacher's DSN assembly (SPEC_FULL.md §10).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full set of environment-driven settings the core's worker
// processes (orchestrator run compute, backpay sweep, bulk import execute)
// read directly — there is no HTTP server in this module's scope, but the
// config struct is still owned here since those workers read it directly.
type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DatabaseURL string

	// Multi-tenancy
	SchemaPerTenant     bool
	DefaultTenantSchema string

	// Logging
	LogLevel    string
	Environment string

	// Worker tuning
	ProgressTTL       time.Duration
	RunComputeTimeout time.Duration

	// Auth boundary (read here even though the HTTP surface is out of
	// scope for this module, per SPEC_FULL.md §10)
	JWTSecret string
}

// Load reads Config from the environment, falling back to development
// defaults for anything unset.
func Load() *Config {
	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBName:     getEnv("DB_NAME", "payroll_core"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DatabaseURL: getEnv("DATABASE_URL", getDatabaseURL()),

		SchemaPerTenant:     getEnvBool("SCHEMA_PER_TENANT", true),
		DefaultTenantSchema: getEnv("DEFAULT_TENANT_SCHEMA", "public"),

		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Environment: getEnv("ENVIRONMENT", "development"),

		ProgressTTL:       getEnvDuration("PROGRESS_TTL", 30*time.Minute),
		RunComputeTimeout: getEnvDuration("RUN_COMPUTE_TIMEOUT", 20*time.Minute),

		JWTSecret: getEnv("JWT_SECRET", "change-this-secret-key"),
	}
}

func getDatabaseURL() string {
	dbPort := getEnv("DB_PORT", "5432")
	dbHost := getEnv("DB_HOST", "localhost")
	dbUser := getEnv("DB_USER", "postgres")
	dbPassword := getEnv("DB_PASSWORD", "postgres")
	dbName := getEnv("DB_NAME", "payroll_core")

	sslMode := "disable"
	if dbHost != "localhost" {
		sslMode = "require"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbUser, dbPassword, dbHost, dbPort, dbName, sslMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
