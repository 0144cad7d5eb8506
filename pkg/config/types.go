package config

// GatewayConfig is the top-level configuration for the gateway process,
// loaded from YAML with environment variable expansion applied first.
type GatewayConfig struct {
	Server   ServerConfig   `yaml:"server" validate:"required"`
	Batcher  BatcherConfig  `yaml:"batcher"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Rotation RotationConfig `yaml:"rotation"`
	Storage  StorageConfig  `yaml:"storage" validate:"required"`
}

// ServerConfig controls the HTTP/WebSocket listener.
type ServerConfig struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required,min=1,max=65535"`
}

// BatcherConfig mirrors pkg/batcher.Config.
type BatcherConfig struct {
	BatchWindowMs     int `yaml:"batch_window_ms" validate:"min=0"`
	MaxEventsPerBatch int `yaml:"max_events_per_batch" validate:"min=0"`
	DebounceMs        int `yaml:"debounce_ms" validate:"min=0"`
}

// LifecycleConfig controls the terminal-state cleanup job.
type LifecycleConfig struct {
	CleanupIntervalSeconds int `yaml:"cleanup_interval_seconds" validate:"min=0"`
	TerminalTTLSeconds     int `yaml:"terminal_ttl_seconds" validate:"min=0"`
}

// RotationConfig holds account-pool rotation settings. Only
// DefaultStrategy reaches pool provisioning (through
// account.NewSQLStore); storage.Client.EnsurePool creates new pools with
// a 15 minute cooldown and 3 retries regardless of
// CooldownMinutesDefault and MaxRetries.
type RotationConfig struct {
	DefaultStrategy        string `yaml:"default_strategy" validate:"omitempty,oneof=round_robin least_recent random smart"`
	CooldownMinutesDefault int    `yaml:"cooldown_minutes_default" validate:"min=0"`
	MaxRetries             int    `yaml:"max_retries" validate:"min=0"`
}

// StorageConfig mirrors the fields pkg/storage.Config accepts, kept
// separate so YAML and env-var loading stay independent of the
// storage package's own internal shape.
type StorageConfig struct {
	Host     string `yaml:"host" validate:"required"`
	Port     int    `yaml:"port" validate:"required"`
	User     string `yaml:"user" validate:"required"`
	Password string `yaml:"password" validate:"required"`
	Database string `yaml:"database" validate:"required"`
	SSLMode  string `yaml:"sslmode"`
}
