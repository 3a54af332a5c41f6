// Package config resolves process configuration from environment variables,
// optionally seeded from a .env file. Grounded on the teacher's
// db/sqlite.go (MORFX_LIBSQL_AUTH_TOKEN) and core/fileprocessor.go
// (MORFX_WORKERS) env-var reads, and on its test-only use of
// github.com/joho/godotenv, promoted here to a real startup path since
// SPEC_FULL.md's CLI needs the same values outside of tests.
package config

import (
	"os"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the set of values the CLI and plan interpreter read at startup.
type Config struct {
	// DatabaseURL is the plan-run history store DSN: a local sqlite file
	// path, or an https://.../libsql:// Turso URL.
	DatabaseURL string
	// LibSQLAuthToken authenticates a remote Turso connection.
	LibSQLAuthToken string
	// Workers is read from MORFX_WORKERS; 0 or less means runtime.NumCPU().
	// No package in this module reads it: graph building and discovery run
	// sequentially.
	Workers int
	// Verbose enables gorm's Info-level query logging.
	Verbose bool
}

// Load reads .env (if present, silently ignored otherwise) and returns a
// Config populated from the environment, matching the teacher's MORFX_*
// variable names.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:     envOr("MORFX_DATABASE_URL", "morfx.db"),
		LibSQLAuthToken: os.Getenv("MORFX_LIBSQL_AUTH_TOKEN"),
		Workers:         envInt("MORFX_WORKERS", 0),
		Verbose:         envBool("MORFX_VERBOSE", false),
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
