package invoice

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"shade/core/events"
	"shade/core/state"
	"shade/crypto"
	"shade/native/access"
	"shade/native/common"
	"shade/native/merchant"
	"shade/storage"
)

type fixture struct {
	ledger    *Ledger
	merchants *merchant.Registry
	guard     *common.Guard
	log       *events.Log
	admin     crypto.Address
	token     crypto.Address
}

func newFixture(t *testing.T, auth crypto.Authenticator) *fixture {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB(), state.ContractNamespace("invoice-test"))
	guard := new(common.Guard)
	admin := crypto.Address{0xAD}
	core := access.NewCore(mgr, crypto.AllowAll{}, guard)
	require.NoError(t, core.Initialize(admin))

	merchants := merchant.NewRegistry(mgr, crypto.AllowAll{}, core, guard)
	ledger := NewLedger(mgr, auth, merchants, guard)
	log := events.NewLog()
	ledger.SetEmitter(log)
	ledger.SetNowFunc(func() time.Time { return time.Unix(900, 0) })
	return &fixture{
		ledger:    ledger,
		merchants: merchants,
		guard:     guard,
		log:       log,
		admin:     admin,
		token:     crypto.Address{0x70, 0x01},
	}
}

func (f *fixture) register(t *testing.T, b byte) crypto.Address {
	t.Helper()
	addr := crypto.Address{b}
	_, err := f.merchants.Register(context.Background(), addr)
	require.NoError(t, err)
	return addr
}

func TestCreateSharesCounterAcrossMerchants(t *testing.T) {
	f := newFixture(t, crypto.AllowAll{})
	ctx := context.Background()
	m1 := f.register(t, 1)
	m2 := f.register(t, 2)

	id, err := f.ledger.Create(ctx, m1, "first", big.NewInt(100), f.token)
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)
	id, err = f.ledger.Create(ctx, m2, "second", big.NewInt(200), f.token)
	require.NoError(t, err)
	require.Equal(t, uint64(2), id)
	id, err = f.ledger.Create(ctx, m1, "third", big.NewInt(300), f.token)
	require.NoError(t, err)
	require.Equal(t, uint64(3), id)

	count, err := f.ledger.Count()
	require.NoError(t, err)
	require.Equal(t, uint64(3), count)

	record, err := f.ledger.Invoice(2)
	require.NoError(t, err)
	require.Equal(t, "second", record.Description)
	require.Equal(t, int64(200), record.Amount.Int64())
	require.Equal(t, f.token, record.Token)
	require.Equal(t, StatusPending, record.Status)
	require.Equal(t, uint64(2), record.MerchantID)
	require.Nil(t, record.Payer)
	require.Equal(t, uint64(900), record.DateCreated)
	require.Zero(t, record.DatePaid)

	created := f.log.OfType(events.TypeInvoiceCreated)
	require.Len(t, created, 3)
	evt := created[0].Event()
	require.Equal(t, "1", evt.Attribute("invoiceId"))
	require.Equal(t, m1.String(), evt.Attribute("merchantAddress"))
	require.Equal(t, "100", evt.Attribute("amount"))
	require.False(t, f.guard.Locked())
}

func TestCreateRejectsNonPositiveAmounts(t *testing.T) {
	f := newFixture(t, crypto.AllowAll{})
	m := f.register(t, 1)
	ctx := context.Background()

	for _, amount := range []*big.Int{nil, big.NewInt(0), big.NewInt(-5), new(big.Int).Lsh(big.NewInt(1), 127)} {
		_, err := f.ledger.Create(ctx, m, "bad", amount, f.token)
		require.ErrorIs(t, err, common.ErrInvalidAmount)
	}
	count, err := f.ledger.Count()
	require.NoError(t, err)
	require.Zero(t, count)
	require.Zero(t, f.log.Len())
}

func TestCreateRequiresRegisteredMerchant(t *testing.T) {
	f := newFixture(t, crypto.AllowAll{})
	_, err := f.ledger.Create(context.Background(), crypto.Address{0x42}, "stranger", big.NewInt(10), f.token)
	require.ErrorIs(t, err, common.ErrNotAuthorized)
}

func TestCreateRequiresMerchantProof(t *testing.T) {
	allow := crypto.NewAllowlist()
	f := newFixture(t, allow)
	m := f.register(t, 1)

	_, err := f.ledger.Create(context.Background(), m, "unsigned", big.NewInt(10), f.token)
	require.ErrorIs(t, err, common.ErrNotAuthorized)

	allow.Allow(m)
	id, err := f.ledger.Create(context.Background(), m, "signed", big.NewInt(10), f.token)
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)
}

func TestInvoiceNotFound(t *testing.T) {
	f := newFixture(t, crypto.AllowAll{})
	for _, id := range []uint64{0, 1, 77} {
		_, err := f.ledger.Invoice(id)
		require.ErrorIs(t, err, common.ErrInvoiceNotFound)
	}
}

func TestPolicyBlocksInactiveAndUnverifiedMerchants(t *testing.T) {
	f := newFixture(t, crypto.AllowAll{})
	ctx := context.Background()
	m := f.register(t, 1)
	require.NoError(t, f.merchants.SetStatus(ctx, f.admin, 1, false))

	// Default policy ignores the flags.
	_, err := f.ledger.Create(ctx, m, "inactive ok", big.NewInt(10), f.token)
	require.NoError(t, err)

	f.ledger.SetPolicy(Policy{RequireActiveMerchant: true})
	_, err = f.ledger.Create(ctx, m, "inactive blocked", big.NewInt(10), f.token)
	require.ErrorIs(t, err, common.ErrNotAuthorized)
	require.Contains(t, err.Error(), "inactive")

	require.NoError(t, f.merchants.SetStatus(ctx, f.admin, 1, true))
	f.ledger.SetPolicy(Policy{RequireActiveMerchant: true, RequireVerifiedMerchant: true})
	_, err = f.ledger.Create(ctx, m, "unverified blocked", big.NewInt(10), f.token)
	require.ErrorIs(t, err, common.ErrNotAuthorized)
	require.Contains(t, err.Error(), "unverified")

	require.NoError(t, f.merchants.SetVerified(ctx, f.admin, 1, true))
	id, err := f.ledger.Create(ctx, m, "allowed", big.NewInt(10), f.token)
	require.NoError(t, err)
	require.Equal(t, uint64(2), id)
}

func TestStatusString(t *testing.T) {
	require.Equal(t, "pending", StatusPending.String())
	require.Equal(t, "paid", StatusPaid.String())
	require.Equal(t, "cancelled", StatusCancelled.String())
	require.Equal(t, "status(9)", Status(9).String())
}
