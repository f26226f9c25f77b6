package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"shade/config"
	"shade/core/events"
	"shade/crypto"
	"shade/native/invoice"
	"shade/native/tokens"
	"shade/observability/logging"
	"shade/observability/metrics"
	telemetry "shade/observability/otel"
	"shade/storage"
)

// initTelemetry starts the OTLP providers for Open.
var initTelemetry = telemetry.Init

// OpenDatabase opens the storage backend selected by cfg.
func OpenDatabase(cfg config.StorageConfig) (storage.Database, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return storage.NewMemDB(), nil
	case config.BackendLevelDB:
		db, err := storage.NewLevelDB(cfg.Path)
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.BackendSQLite, config.BackendPostgres:
		db, err := storage.NewSQLDB(cfg.Backend, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("core: unknown storage backend %q", cfg.Backend)
	}
}

// Authenticator returns the principal authenticator for mode.
func Authenticator(mode string) (crypto.Authenticator, error) {
	switch mode {
	case config.AuthSignature, "":
		return crypto.SignatureAuthenticator{}, nil
	case config.AuthAllowAll:
		return crypto.AllowAll{}, nil
	default:
		return nil, fmt.Errorf("core: unknown auth mode %q", mode)
	}
}

// Open builds a contract from cfg. The token prober and the event sink belong
// to the embedding host. A nil logger is built from the logging section of
// cfg. The telemetry providers and the log file are released by Close.
func Open(ctx context.Context, cfg *config.Config, prober tokens.Prober, sink events.Emitter, logger *slog.Logger) (*Contract, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	auth, err := Authenticator(cfg.Contract.Auth)
	if err != nil {
		return nil, err
	}

	var teardown []func(context.Context) error
	release := func() {
		for i := len(teardown) - 1; i >= 0; i-- {
			_ = teardown[i](context.Background())
		}
	}
	if logger == nil {
		var closer io.Closer
		logger, closer = logging.Setup(logging.Options{
			Service:    cfg.Logging.Service,
			Env:        cfg.Logging.Env,
			Level:      cfg.Logging.Level,
			File:       cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		})
		teardown = append(teardown, func(context.Context) error { return closer.Close() })
	}
	shutdown, err := initTelemetry(ctx, telemetry.FromConfig(cfg))
	if err != nil {
		release()
		return nil, fmt.Errorf("core: init telemetry: %w", err)
	}
	teardown = append(teardown, shutdown)

	db, err := OpenDatabase(cfg.Storage)
	if err != nil {
		release()
		return nil, fmt.Errorf("core: open storage: %w", err)
	}
	opts := Options{
		Name:          cfg.Contract.Name,
		Authenticator: auth,
		Prober:        prober,
		Events:        sink,
		Logger:        logger,
		InvoicePolicy: invoice.Policy{
			RequireActiveMerchant:   cfg.Contract.Invoice.RequireActiveMerchant,
			RequireVerifiedMerchant: cfg.Contract.Invoice.RequireVerifiedMerchant,
		},
	}
	if cfg.Metrics.Enabled {
		opts.Metrics = metrics.Contract()
	}
	contract, err := NewContract(db, opts)
	if err != nil {
		db.Close()
		release()
		return nil, err
	}
	for _, fn := range teardown {
		contract.onClose(fn)
	}
	logger.Info("contract opened",
		slog.String("backend", cfg.Storage.Backend),
		slog.String("auth", cfg.Contract.Auth))
	return contract, nil
}
