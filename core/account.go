package core

import (
	"context"
	"log/slog"

	"shade/core/events"
	"shade/core/state"
	"shade/crypto"
	"shade/native/account"
	"shade/native/common"
)

// Account is the binder instance of one merchant. It lives in its own state
// namespace with its own guard, so accounts never observe each other.
type Account struct {
	exec     *executor
	merchant crypto.Address
	guard    *common.Guard
	binder   *account.Binder
}

// OpenAccount returns the account instance of merchant. The instance shares
// the contract's database but nothing else. Repeated calls for the same
// merchant return the same instance.
func (c *Contract) OpenAccount(merchant crypto.Address) *Account {
	c.accountsMu.Lock()
	defer c.accountsMu.Unlock()
	if acct, ok := c.accounts[merchant]; ok {
		return acct
	}
	mgr := state.NewManager(c.db, state.AccountNamespace(merchant))
	guard := new(common.Guard)
	binder := account.NewBinder(mgr, guard)
	binder.SetNowFunc(c.now)
	acct := &Account{
		exec: &executor{
			guard:   guard,
			state:   mgr,
			buffer:  &events.Buffer{},
			sink:    events.NoopEmitter{},
			logger:  c.exec.logger.With(slog.String("account", merchant.String())),
			metrics: c.exec.metrics,
			tracer:  c.exec.tracer,
		},
		merchant: merchant,
		guard:    guard,
		binder:   binder,
	}
	c.accounts[merchant] = acct
	return acct
}

// NewAccount opens the account of merchant and binds it to manager.
func (c *Contract) NewAccount(ctx context.Context, merchant, manager crypto.Address, merchantID uint64) (*Account, error) {
	acct := c.OpenAccount(merchant)
	if err := acct.Initialize(ctx, merchant, manager, merchantID); err != nil {
		return nil, err
	}
	return acct, nil
}

// Address returns the merchant principal the instance was opened for.
func (a *Account) Address() crypto.Address {
	return a.merchant
}

// Locked reports whether a guarded account operation is in flight.
func (a *Account) Locked() bool {
	return a.guard.Locked()
}

// Initialize writes the one-time binding.
func (a *Account) Initialize(ctx context.Context, merchant, manager crypto.Address, merchantID uint64) error {
	return a.exec.run(ctx, "Account.Initialize", func(context.Context) error {
		return a.binder.Initialize(merchant, manager, merchantID)
	})
}

// Merchant returns the bound merchant principal.
func (a *Account) Merchant(ctx context.Context) (crypto.Address, error) {
	return query(a.exec, ctx, "Account.Merchant", a.binder.Merchant)
}

// Manager returns the bound manager principal.
func (a *Account) Manager(ctx context.Context) (crypto.Address, error) {
	return query(a.exec, ctx, "Account.Manager", a.binder.Manager)
}

// Info returns the stored binding.
func (a *Account) Info(ctx context.Context) (*account.Info, error) {
	return query(a.exec, ctx, "Account.Info", a.binder.Info)
}
