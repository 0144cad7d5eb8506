package config

import (
	"errors"
	"testing"
)

func validConfig() GatewayConfig {
	cfg := GatewayConfig{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Storage: StorageConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "gateway",
			Password: "secret",
			Database: "gateway",
		},
	}
	ApplyDefaults(&cfg)
	return cfg
}

func TestValidate_AcceptsFullyDefaultedConfig(t *testing.T) {
	cfg := validConfig()
	if err := Validate(&cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_RejectsMissingStoragePassword(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.Password = ""

	err := Validate(&cfg)
	if err == nil {
		t.Fatal("expected validation error for missing password")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if !errors.Is(err, ErrMissingRequiredField) {
		t.Fatalf("expected ErrMissingRequiredField, got %v", err)
	}
}

func TestValidate_RejectsInvalidRotationStrategy(t *testing.T) {
	cfg := validConfig()
	cfg.Rotation.DefaultStrategy = "not_a_strategy"

	if err := Validate(&cfg); err == nil {
		t.Fatal("expected validation error for invalid rotation strategy")
	}
}

func TestValidate_RejectsOutOfRangePort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 70000

	err := Validate(&cfg)
	if err == nil {
		t.Fatal("expected validation error for out-of-range port")
	}
	if !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
}
