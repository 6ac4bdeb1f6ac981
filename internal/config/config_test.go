package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"DB_DRIVER", "DATABASE_URL", "STORE_TIMEOUT", "BATCH_CONCURRENCY", "MIN_BODY_LENGTH", "INVALID_POLICY", "ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}
	cfg := Load()

	if cfg.DBDriver != DriverSQLite || cfg.DatabaseURL != "examkb.db" {
		t.Errorf("driver = %s url = %s", cfg.DBDriver, cfg.DatabaseURL)
	}
	if cfg.StoreTimeout != 5*time.Second {
		t.Errorf("StoreTimeout = %v", cfg.StoreTimeout)
	}
	if cfg.MinBodyLength != 10 || cfg.InvalidPolicy != "drop" {
		t.Errorf("MinBodyLength = %d InvalidPolicy = %s", cfg.MinBodyLength, cfg.InvalidPolicy)
	}
	if cfg.AllowedOrigins != nil {
		t.Errorf("AllowedOrigins = %v, want nil", cfg.AllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORE_TIMEOUT", "250ms")
	t.Setenv("BATCH_CONCURRENCY", "2")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, ,http://b.test")

	cfg := Load()
	if cfg.DBDriver != DriverPostgres {
		t.Errorf("DBDriver = %s", cfg.DBDriver)
	}
	if cfg.DatabaseURL == "examkb.db" {
		t.Error("postgres driver should default to a postgres URL")
	}
	if cfg.StoreTimeout != 250*time.Millisecond || cfg.BatchConcurrency != 2 {
		t.Errorf("StoreTimeout = %v BatchConcurrency = %d", cfg.StoreTimeout, cfg.BatchConcurrency)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		val  string
		want time.Duration
	}{
		{"", time.Minute},
		{"3s", 3 * time.Second},
		{"7", 7 * time.Second},
		{"junk", time.Minute},
	}
	for _, tt := range tests {
		t.Setenv("X_DURATION", tt.val)
		if got := getEnvDuration("X_DURATION", time.Minute); got != tt.want {
			t.Errorf("getEnvDuration(%q) = %v, want %v", tt.val, got, tt.want)
		}
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		val  string
		want bool
	}{
		{"", true},
		{"false", false},
		{"0", false},
		{"TRUE", true},
		{"maybe", true},
	}
	for _, tt := range tests {
		t.Setenv("X_BOOL", tt.val)
		if got := getEnvBool("X_BOOL", true); got != tt.want {
			t.Errorf("getEnvBool(%q) = %v, want %v", tt.val, got, tt.want)
		}
	}
}
