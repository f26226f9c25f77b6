package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"shade/core/events"
	"shade/core/state"
	"shade/crypto"
	"shade/native/common"
	"shade/storage"
)

func newTestCore(t *testing.T, auth crypto.Authenticator) (*Core, *events.Log) {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB(), state.ContractNamespace("access-test"))
	core := NewCore(mgr, auth, new(common.Guard))
	log := events.NewLog()
	core.SetEmitter(log)
	core.SetNowFunc(func() time.Time { return time.Unix(1_700_000_000, 0) })
	return core, log
}

func TestInitializeExactlyOnce(t *testing.T) {
	core, log := newTestCore(t, crypto.AllowAll{})
	first := crypto.Address{1}
	second := crypto.Address{2}

	if _, err := core.Admin(); !errors.Is(err, common.ErrNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if err := core.Initialize(first); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := core.Initialize(second); !errors.Is(err, common.ErrAlreadyInitialized) {
		t.Fatalf("expected already initialized, got %v", err)
	}

	admin, err := core.Admin()
	if err != nil || admin != first {
		t.Fatalf("unexpected admin %s (err %v)", admin, err)
	}
	info, err := core.Info()
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.Admin != first || info.Timestamp != 1_700_000_000 {
		t.Fatalf("unexpected info: %+v", info)
	}
	if log.Len() != 1 || log.Last().EventType() != events.TypeInitialized {
		t.Fatalf("expected a single initialized event, got %d", log.Len())
	}
}

func TestAssertAdmin(t *testing.T) {
	admin := crypto.Address{1}
	intruder := crypto.Address{2}
	allow := crypto.NewAllowlist(admin, intruder)
	core, _ := newTestCore(t, allow)

	if err := core.AssertAdmin(context.Background(), admin); !errors.Is(err, common.ErrNotInitialized) {
		t.Fatalf("expected not initialized before setup, got %v", err)
	}
	if err := core.Initialize(admin); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := core.AssertAdmin(context.Background(), admin); err != nil {
		t.Fatalf("admin rejected: %v", err)
	}
	if err := core.AssertAdmin(context.Background(), intruder); !errors.Is(err, common.ErrNotAuthorized) {
		t.Fatalf("expected not authorized for intruder, got %v", err)
	}

	allow.Revoke(admin)
	if err := core.AssertAdmin(context.Background(), admin); !errors.Is(err, common.ErrNotAuthorized) {
		t.Fatalf("expected not authorized without proof, got %v", err)
	}
}

func TestRequireAuthWithoutAuthenticator(t *testing.T) {
	if err := RequireAuth(context.Background(), nil, crypto.Address{1}); !errors.Is(err, common.ErrNotAuthorized) {
		t.Fatalf("expected not authorized, got %v", err)
	}
}
