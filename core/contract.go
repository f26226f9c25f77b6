package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"shade/core/events"
	"shade/core/state"
	"shade/crypto"
	"shade/native/access"
	"shade/native/common"
	"shade/native/invoice"
	"shade/native/merchant"
	"shade/native/tokens"
	"shade/observability/logging"
	"shade/observability/metrics"
	"shade/storage"
)

const tracerName = "shade/core"

// Options wires a Contract to its collaborators. Zero values fall back to
// safe defaults: events are dropped, logs discarded and metrics skipped.
type Options struct {
	// Name selects the state namespace of the instance.
	Name          string
	Authenticator crypto.Authenticator
	Prober        tokens.Prober
	Events        events.Emitter
	Logger        *slog.Logger
	Metrics       *metrics.ContractMetrics
	InvoicePolicy invoice.Policy
	Now           func() time.Time
}

// Contract is the entry surface of one shade instance. Every entry point runs
// as a single all-or-nothing call: state writes are committed as one batch
// and events reach the configured emitter only when the call succeeds.
type Contract struct {
	exec      *executor
	db        storage.Database
	auth      crypto.Authenticator
	guard     *common.Guard
	now       func() time.Time
	access    *access.Core
	tokens    *tokens.Registry
	merchants *merchant.Registry
	invoices  *invoice.Ledger

	accountsMu sync.Mutex
	accounts   map[crypto.Address]*Account

	closers []func(context.Context) error
}

const closeTimeout = 5 * time.Second

// NewContract constructs a contract over db.
func NewContract(db storage.Database, opts Options) (*Contract, error) {
	if db == nil {
		return nil, errors.New("core: database required")
	}
	name := opts.Name
	if name == "" {
		name = "shade"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	logger = logger.With(slog.String("component", "contract"), logging.MaskField("namespace", name))
	sink := opts.Events
	if sink == nil {
		sink = events.NoopEmitter{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	mgr := state.NewManager(db, state.ContractNamespace(name))
	buffer := &events.Buffer{}
	guard := new(common.Guard)

	accessCore := access.NewCore(mgr, opts.Authenticator, guard)
	tokenRegistry := tokens.NewRegistry(mgr, accessCore, guard, opts.Prober)
	merchantRegistry := merchant.NewRegistry(mgr, opts.Authenticator, accessCore, guard)
	ledger := invoice.NewLedger(mgr, opts.Authenticator, merchantRegistry, guard)
	ledger.SetPolicy(opts.InvoicePolicy)

	accessCore.SetEmitter(buffer)
	accessCore.SetNowFunc(now)
	tokenRegistry.SetEmitter(buffer)
	tokenRegistry.SetNowFunc(now)
	merchantRegistry.SetEmitter(buffer)
	merchantRegistry.SetNowFunc(now)
	ledger.SetEmitter(buffer)
	ledger.SetNowFunc(now)

	return &Contract{
		exec: &executor{
			guard:   guard,
			state:   mgr,
			buffer:  buffer,
			sink:    sink,
			logger:  logger,
			metrics: opts.Metrics,
			tracer:  otel.Tracer(tracerName),
		},
		db:        db,
		auth:      opts.Authenticator,
		guard:     guard,
		now:       now,
		access:    accessCore,
		tokens:    tokenRegistry,
		merchants: merchantRegistry,
		invoices:  ledger,
		accounts:  make(map[crypto.Address]*Account),
	}, nil
}

// onClose registers fn to run when the contract is closed. Hooks run in
// reverse registration order after the database is released.
func (c *Contract) onClose(fn func(context.Context) error) {
	c.closers = append(c.closers, fn)
}

// Close releases the underlying database and runs the teardown hooks.
func (c *Contract) Close() {
	c.db.Close()
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			c.exec.logger.Warn("teardown failed", slog.Any("error", err))
		}
	}
	c.closers = nil
}

// Locked reports whether a guarded operation is in flight.
func (c *Contract) Locked() bool {
	return c.guard.Locked()
}

// Initialize stores the administrator. It succeeds once per instance.
func (c *Contract) Initialize(ctx context.Context, admin crypto.Address) error {
	return c.exec.run(ctx, "Initialize", func(context.Context) error {
		return c.access.Initialize(admin)
	})
}

// Admin returns the administrator principal.
func (c *Contract) Admin(ctx context.Context) (crypto.Address, error) {
	return query(c.exec, ctx, "Admin", c.access.Admin)
}

// ContractInfo returns the admin and creation time recorded by Initialize.
func (c *Contract) ContractInfo(ctx context.Context) (*access.ContractInfo, error) {
	return query(c.exec, ctx, "ContractInfo", c.access.Info)
}

// AddAcceptedToken probes token and adds it to the accepted list.
func (c *Contract) AddAcceptedToken(ctx context.Context, admin, token crypto.Address) error {
	return c.exec.run(ctx, "AddAcceptedToken", func(ctx context.Context) error {
		return c.tokens.AddAcceptedToken(ctx, admin, token)
	})
}

// RemoveAcceptedToken drops token from the accepted list.
func (c *Contract) RemoveAcceptedToken(ctx context.Context, admin, token crypto.Address) error {
	return c.exec.run(ctx, "RemoveAcceptedToken", func(ctx context.Context) error {
		return c.tokens.RemoveAcceptedToken(ctx, admin, token)
	})
}

func (c *Contract) IsAcceptedToken(ctx context.Context, token crypto.Address) (bool, error) {
	return query(c.exec, ctx, "IsAcceptedToken", func() (bool, error) {
		return c.tokens.IsAcceptedToken(token)
	})
}

func (c *Contract) AcceptedTokens(ctx context.Context) ([]crypto.Address, error) {
	return query(c.exec, ctx, "AcceptedTokens", c.tokens.AcceptedTokens)
}

// SetFee stores the fee charged for an accepted token.
func (c *Contract) SetFee(ctx context.Context, admin, token crypto.Address, fee *big.Int) error {
	return c.exec.run(ctx, "SetFee", func(ctx context.Context) error {
		return c.tokens.SetFee(ctx, admin, token, fee)
	})
}

// Fee returns the fee of token, zero when never set.
func (c *Contract) Fee(ctx context.Context, token crypto.Address) (*big.Int, error) {
	return query(c.exec, ctx, "Fee", func() (*big.Int, error) {
		return c.tokens.Fee(token)
	})
}

// RegisterMerchant registers the calling principal as a merchant and
// returns the new merchant id.
func (c *Contract) RegisterMerchant(ctx context.Context, addr crypto.Address) (uint64, error) {
	var id uint64
	err := c.exec.run(ctx, "RegisterMerchant", func(ctx context.Context) error {
		var err error
		id, err = c.merchants.Register(ctx, addr)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (c *Contract) Merchant(ctx context.Context, id uint64) (*merchant.Merchant, error) {
	return query(c.exec, ctx, "Merchant", func() (*merchant.Merchant, error) {
		return c.merchants.Merchant(id)
	})
}

func (c *Contract) IsMerchant(ctx context.Context, addr crypto.Address) (bool, error) {
	return query(c.exec, ctx, "IsMerchant", func() (bool, error) {
		return c.merchants.IsMerchant(addr)
	})
}

func (c *Contract) MerchantCount(ctx context.Context) (uint64, error) {
	return query(c.exec, ctx, "MerchantCount", c.merchants.Count)
}

// SetMerchantStatus activates or deactivates merchant id.
func (c *Contract) SetMerchantStatus(ctx context.Context, admin crypto.Address, id uint64, active bool) error {
	return c.exec.run(ctx, "SetMerchantStatus", func(ctx context.Context) error {
		return c.merchants.SetStatus(ctx, admin, id, active)
	})
}

// VerifyMerchant sets the verified flag of merchant id.
func (c *Contract) VerifyMerchant(ctx context.Context, admin crypto.Address, id uint64, status bool) error {
	return c.exec.run(ctx, "VerifyMerchant", func(ctx context.Context) error {
		return c.merchants.SetVerified(ctx, admin, id, status)
	})
}

func (c *Contract) IsMerchantActive(ctx context.Context, id uint64) (bool, error) {
	return query(c.exec, ctx, "IsMerchantActive", func() (bool, error) {
		return c.merchants.IsActive(id)
	})
}

func (c *Contract) IsMerchantVerified(ctx context.Context, id uint64) (bool, error) {
	return query(c.exec, ctx, "IsMerchantVerified", func() (bool, error) {
		return c.merchants.IsVerified(id)
	})
}

// CreateInvoice issues a pending invoice on behalf of merchantAddr.
func (c *Contract) CreateInvoice(ctx context.Context, merchantAddr crypto.Address, description string, amount *big.Int, token crypto.Address) (uint64, error) {
	var id uint64
	err := c.exec.run(ctx, "CreateInvoice", func(ctx context.Context) error {
		c.exec.logger.Debug("issuing invoice", logging.MaskField("description", description))
		var err error
		id, err = c.invoices.Create(ctx, merchantAddr, description, amount, token)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (c *Contract) Invoice(ctx context.Context, id uint64) (*invoice.Invoice, error) {
	return query(c.exec, ctx, "Invoice", func() (*invoice.Invoice, error) {
		return c.invoices.Invoice(id)
	})
}

func (c *Contract) InvoiceCount(ctx context.Context) (uint64, error) {
	return query(c.exec, ctx, "InvoiceCount", c.invoices.Count)
}

// InvoicePolicy returns the issuing policy in force.
func (c *Contract) InvoicePolicy() invoice.Policy {
	return c.invoices.Policy()
}
