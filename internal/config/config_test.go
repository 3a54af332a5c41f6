package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"MORFX_DATABASE_URL", "MORFX_LIBSQL_AUTH_TOKEN", "MORFX_WORKERS", "MORFX_VERBOSE"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.DatabaseURL != "morfx.db" {
		t.Errorf("DatabaseURL = %q, want morfx.db", cfg.DatabaseURL)
	}
	if cfg.LibSQLAuthToken != "" {
		t.Errorf("LibSQLAuthToken = %q, want empty", cfg.LibSQLAuthToken)
	}
	if cfg.Workers <= 0 {
		t.Errorf("Workers = %d, want > 0 (NumCPU fallback)", cfg.Workers)
	}
	if cfg.Verbose {
		t.Errorf("Verbose = true, want false")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MORFX_DATABASE_URL", "libsql://example.turso.io")
	t.Setenv("MORFX_LIBSQL_AUTH_TOKEN", "secret-token")
	t.Setenv("MORFX_WORKERS", "4")
	t.Setenv("MORFX_VERBOSE", "true")

	cfg := Load()

	if cfg.DatabaseURL != "libsql://example.turso.io" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.LibSQLAuthToken != "secret-token" {
		t.Errorf("LibSQLAuthToken = %q", cfg.LibSQLAuthToken)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}
	if !cfg.Verbose {
		t.Errorf("Verbose = false, want true")
	}
}

func TestLoadIgnoresInvalidInt(t *testing.T) {
	t.Setenv("MORFX_WORKERS", "not-a-number")

	cfg := Load()

	if cfg.Workers <= 0 {
		t.Errorf("Workers = %d, want fallback > 0 for invalid input", cfg.Workers)
	}
}
