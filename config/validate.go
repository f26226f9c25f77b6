package config

import "fmt"

// Validate checks the configuration for inconsistent settings.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	switch cfg.Contract.Auth {
	case AuthSignature, AuthAllowAll:
	default:
		return fmt.Errorf("contract: unknown auth mode %q", cfg.Contract.Auth)
	}
	if err := cfg.Storage.validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := cfg.Logging.validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if (cfg.Telemetry.Traces || cfg.Telemetry.Metrics) && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry: endpoint required when traces or metrics are exported")
	}
	return nil
}

func (cfg StorageConfig) validate() error {
	switch cfg.Backend {
	case BackendMemory:
	case BackendLevelDB:
		if cfg.Path == "" {
			return fmt.Errorf("path required for %s backend", cfg.Backend)
		}
	case BackendSQLite, BackendPostgres:
		if cfg.DSN == "" {
			return fmt.Errorf("dsn required for %s backend", cfg.Backend)
		}
	default:
		return fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	return nil
}

func (cfg LoggingConfig) validate() error {
	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown level %q", cfg.Level)
	}
	if cfg.MaxSizeMB < 0 || cfg.MaxBackups < 0 || cfg.MaxAgeDays < 0 {
		return fmt.Errorf("rotation limits must not be negative")
	}
	return nil
}
