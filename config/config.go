package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Storage backends understood by core.Open.
const (
	BackendMemory   = "memory"
	BackendLevelDB  = "leveldb"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Authentication modes for contract principals.
const (
	AuthSignature = "signature"
	AuthAllowAll  = "allow_all"
)

// Config is the runtime configuration of a shade contract host.
type Config struct {
	Contract  ContractConfig  `toml:"contract" yaml:"contract"`
	Storage   StorageConfig   `toml:"storage" yaml:"storage"`
	Logging   LoggingConfig   `toml:"logging" yaml:"logging"`
	Metrics   MetricsConfig   `toml:"metrics" yaml:"metrics"`
	Telemetry TelemetryConfig `toml:"telemetry" yaml:"telemetry"`
}

// ContractConfig names the contract instance and its call policies.
type ContractConfig struct {
	Name    string        `toml:"name" yaml:"name"`
	Auth    string        `toml:"auth" yaml:"auth"`
	Invoice InvoicePolicy `toml:"invoice" yaml:"invoice"`
}

// InvoicePolicy gates invoice issuing on merchant flags.
type InvoicePolicy struct {
	RequireActiveMerchant   bool `toml:"require_active_merchant" yaml:"require_active_merchant"`
	RequireVerifiedMerchant bool `toml:"require_verified_merchant" yaml:"require_verified_merchant"`
}

// StorageConfig selects the key-value backend.
type StorageConfig struct {
	Backend string `toml:"backend" yaml:"backend"`
	Path    string `toml:"path" yaml:"path"`
	DSN     string `toml:"dsn" yaml:"dsn"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Service    string `toml:"service" yaml:"service"`
	Env        string `toml:"env" yaml:"env"`
	Level      string `toml:"level" yaml:"level"`
	File       string `toml:"file" yaml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `toml:"compress" yaml:"compress"`
}

// MetricsConfig toggles the Prometheus collectors.
type MetricsConfig struct {
	Enabled bool `toml:"enabled" yaml:"enabled"`
}

// TelemetryConfig configures the OTLP exporters.
type TelemetryConfig struct {
	Endpoint string `toml:"endpoint" yaml:"endpoint"`
	Insecure bool   `toml:"insecure" yaml:"insecure"`
	Headers  string `toml:"headers" yaml:"headers"`
	Traces   bool   `toml:"traces" yaml:"traces"`
	Metrics  bool   `toml:"metrics" yaml:"metrics"`
}

// Default returns a configuration suitable for an in-memory contract.
func Default() *Config {
	return &Config{
		Contract: ContractConfig{
			Name: "shade",
			Auth: AuthSignature,
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
		},
		Logging: LoggingConfig{
			Service:    "shade",
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load reads the configuration at path. Files ending in .toml are decoded as
// TOML and files ending in .yaml or .yml as YAML.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path required")
	}
	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	case ".yaml", ".yml":
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	if cfg == nil {
		return
	}
	cfg.Contract.Name = strings.TrimSpace(cfg.Contract.Name)
	if cfg.Contract.Name == "" {
		cfg.Contract.Name = "shade"
	}
	cfg.Contract.Auth = strings.ToLower(strings.TrimSpace(cfg.Contract.Auth))
	if cfg.Contract.Auth == "" {
		cfg.Contract.Auth = AuthSignature
	}
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendMemory
	}
	cfg.Storage.Path = strings.TrimSpace(cfg.Storage.Path)
	cfg.Storage.DSN = strings.TrimSpace(cfg.Storage.DSN)
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	cfg.Logging.File = strings.TrimSpace(cfg.Logging.File)
	cfg.Telemetry.Endpoint = strings.TrimSpace(cfg.Telemetry.Endpoint)
}
