package storage

import "testing"

func TestLoadConfigFromEnv_AppliesDefaultsAndRequiresPassword(t *testing.T) {
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_PORT", "")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_NAME", "")
	t.Setenv("DB_SSLMODE", "")
	t.Setenv("DB_MAX_CONNS", "")
	t.Setenv("DB_MIN_CONNS", "")
	t.Setenv("DB_PASSWORD", "")

	if _, err := LoadConfigFromEnv(); err == nil {
		t.Fatal("expected error when DB_PASSWORD is unset")
	}

	t.Setenv("DB_PASSWORD", "secret")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Host != "localhost" {
		t.Errorf("Host = %q, want %q", cfg.Host, "localhost")
	}
	if cfg.Port != 5432 {
		t.Errorf("Port = %d, want 5432", cfg.Port)
	}
	if cfg.MaxConns != 25 {
		t.Errorf("MaxConns = %d, want 25", cfg.MaxConns)
	}
	if cfg.MinConns != 2 {
		t.Errorf("MinConns = %d, want 2", cfg.MinConns)
	}
}

func TestConfig_Validate_RejectsMinExceedingMax(t *testing.T) {
	cfg := Config{Password: "secret", MaxConns: 2, MinConns: 5}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when MinConns exceeds MaxConns")
	}
}

func TestConfig_DSN_IncludesAllFields(t *testing.T) {
	cfg := Config{
		Host: "db.internal", Port: 5432, User: "gateway",
		Password: "secret", Database: "gateway", SSLMode: "disable",
	}
	dsn := cfg.DSN()
	want := "host=db.internal port=5432 user=gateway password=secret dbname=gateway sslmode=disable"
	if dsn != want {
		t.Errorf("DSN() = %q, want %q", dsn, want)
	}
}
