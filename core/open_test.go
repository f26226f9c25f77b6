package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"shade/config"
	"shade/core/events"
	"shade/crypto"
	"shade/native/common"
	"shade/native/tokens"
	telemetry "shade/observability/otel"
)

// restoreLogDefaults undoes the process-wide logger changes made by Open when
// it builds its own logger.
func restoreLogDefaults(t *testing.T) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() {
		slog.SetDefault(prev)
		log.SetOutput(os.Stderr)
		log.SetFlags(log.LstdFlags)
	})
}

func TestOpenDatabaseBackends(t *testing.T) {
	mem, err := OpenDatabase(config.StorageConfig{Backend: config.BackendMemory})
	require.NoError(t, err)
	mem.Close()

	ldb, err := OpenDatabase(config.StorageConfig{Backend: config.BackendLevelDB, Path: filepath.Join(t.TempDir(), "db")})
	require.NoError(t, err)
	ldb.Close()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqlDB, err := OpenDatabase(config.StorageConfig{Backend: config.BackendSQLite, DSN: dsn})
	require.NoError(t, err)
	sqlDB.Close()

	_, err = OpenDatabase(config.StorageConfig{Backend: "redis"})
	require.Error(t, err)
}

func TestAuthenticatorModes(t *testing.T) {
	auth, err := Authenticator(config.AuthSignature)
	require.NoError(t, err)
	require.IsType(t, crypto.SignatureAuthenticator{}, auth)
	auth, err = Authenticator(config.AuthAllowAll)
	require.NoError(t, err)
	require.IsType(t, crypto.AllowAll{}, auth)
	_, err = Authenticator("none")
	require.Error(t, err)
}

func TestOpenPersistsAcrossRestarts(t *testing.T) {
	restoreLogDefaults(t)
	cfg := config.Default()
	cfg.Contract.Auth = config.AuthAllowAll
	cfg.Contract.Invoice.RequireActiveMerchant = true
	cfg.Storage = config.StorageConfig{Backend: config.BackendLevelDB, Path: filepath.Join(t.TempDir(), "shade")}
	cfg.Metrics.Enabled = false

	admin := crypto.Address{0xAD}
	token := crypto.Address{0x70, 0x01}
	prober := tokens.NewStaticProber()
	require.NoError(t, prober.Register(token, "usd"))
	ctx := context.Background()

	contract, err := Open(ctx, cfg, prober, events.NewLog(), nil)
	require.NoError(t, err)
	require.True(t, contract.InvoicePolicy().RequireActiveMerchant)
	require.NoError(t, contract.Initialize(ctx, admin))
	require.NoError(t, contract.AddAcceptedToken(ctx, admin, token))
	require.NoError(t, contract.SetFee(ctx, admin, token, big.NewInt(-3)))
	contract.Close()

	reopened, err := Open(ctx, cfg, prober, nil, nil)
	require.NoError(t, err)
	defer reopened.Close()
	require.ErrorIs(t, reopened.Initialize(ctx, crypto.Address{0x01}), common.ErrAlreadyInitialized)
	fee, err := reopened.Fee(ctx, token)
	require.NoError(t, err)
	require.Equal(t, int64(-3), fee.Int64())
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = config.BackendPostgres
	_, err := Open(context.Background(), cfg, nil, nil, nil)
	require.Error(t, err)
}

func TestOpenWiresLoggingAndTelemetry(t *testing.T) {
	restoreLogDefaults(t)
	var started telemetry.Config
	shutdowns := 0
	prev := initTelemetry
	initTelemetry = func(_ context.Context, cfg telemetry.Config) (func(context.Context) error, error) {
		started = cfg
		return func(context.Context) error {
			shutdowns++
			return nil
		}, nil
	}
	t.Cleanup(func() { initTelemetry = prev })

	logFile := filepath.Join(t.TempDir(), "shade.log")
	cfg := config.Default()
	cfg.Contract.Auth = config.AuthAllowAll
	cfg.Metrics.Enabled = false
	cfg.Logging.Env = "test"
	cfg.Logging.Level = "debug"
	cfg.Logging.File = logFile
	cfg.Telemetry = config.TelemetryConfig{Endpoint: "collector:4318", Traces: true, Headers: "x-team=payments"}

	ctx := context.Background()
	contract, err := Open(ctx, cfg, nil, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "shade", started.ServiceName)
	require.Equal(t, "collector:4318", started.Endpoint)
	require.True(t, started.Traces)
	require.Equal(t, map[string]string{"x-team": "payments"}, started.Headers)

	require.NoError(t, contract.Initialize(ctx, crypto.Address{0xAD}))
	require.Zero(t, shutdowns)
	contract.Close()
	require.Equal(t, 1, shutdowns)

	raw, err := os.ReadFile(logFile)
	require.NoError(t, err)
	var methods []string
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		require.Equal(t, "test", entry["env"])
		if method, ok := entry["method"].(string); ok {
			methods = append(methods, method)
		}
	}
	require.Contains(t, string(raw), `"message":"contract opened"`)
	require.Equal(t, []string{"Initialize"}, methods)
}

func TestOpenReleasesLoggingWhenTelemetryFails(t *testing.T) {
	restoreLogDefaults(t)
	prev := initTelemetry
	initTelemetry = func(context.Context, telemetry.Config) (func(context.Context) error, error) {
		return nil, fmt.Errorf("collector unreachable")
	}
	t.Cleanup(func() { initTelemetry = prev })

	cfg := config.Default()
	cfg.Logging.File = filepath.Join(t.TempDir(), "shade.log")
	_, err := Open(context.Background(), cfg, nil, nil, nil)
	require.ErrorContains(t, err, "collector unreachable")
}
