package config

// Default values applied by ApplyDefaults to zero-valued fields. The
// batcher defaults mirror pkg/batcher's own constants exactly, so both
// packages describe the same default window, batch size and debounce.
const (
	DefaultServerHost = "0.0.0.0"
	DefaultServerPort = 8080

	DefaultBatchWindowMs     = 100
	DefaultMaxEventsPerBatch = 50
	DefaultDebounceMs        = 50

	DefaultCleanupIntervalSeconds = 300
	DefaultTerminalTTLSeconds     = 3600

	DefaultRotationStrategy        = "smart"
	DefaultCooldownMinutesDefault  = 15
	DefaultMaxRetries              = 3

	DefaultStorageSSLMode = "disable"
)

// ApplyDefaults fills zero-valued fields of cfg in place with the
// package defaults above, so a YAML file only needs to specify
// overrides.
func ApplyDefaults(cfg *GatewayConfig) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}

	if cfg.Batcher.BatchWindowMs == 0 {
		cfg.Batcher.BatchWindowMs = DefaultBatchWindowMs
	}
	if cfg.Batcher.MaxEventsPerBatch == 0 {
		cfg.Batcher.MaxEventsPerBatch = DefaultMaxEventsPerBatch
	}
	if cfg.Batcher.DebounceMs == 0 {
		cfg.Batcher.DebounceMs = DefaultDebounceMs
	}

	if cfg.Lifecycle.CleanupIntervalSeconds == 0 {
		cfg.Lifecycle.CleanupIntervalSeconds = DefaultCleanupIntervalSeconds
	}
	if cfg.Lifecycle.TerminalTTLSeconds == 0 {
		cfg.Lifecycle.TerminalTTLSeconds = DefaultTerminalTTLSeconds
	}

	if cfg.Rotation.DefaultStrategy == "" {
		cfg.Rotation.DefaultStrategy = DefaultRotationStrategy
	}
	if cfg.Rotation.CooldownMinutesDefault == 0 {
		cfg.Rotation.CooldownMinutesDefault = DefaultCooldownMinutesDefault
	}
	if cfg.Rotation.MaxRetries == 0 {
		cfg.Rotation.MaxRetries = DefaultMaxRetries
	}

	if cfg.Storage.SSLMode == "" {
		cfg.Storage.SSLMode = DefaultStorageSSLMode
	}
}
