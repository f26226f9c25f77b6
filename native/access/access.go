package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shade/core/events"
	"shade/core/state"
	"shade/crypto"
	"shade/native/common"
)

type accessState interface {
	KVGet(key state.Key, out interface{}) (bool, error)
	KVPut(key state.Key, value interface{}) error
}

// ContractInfo is written once by Initialize and never mutated.
type ContractInfo struct {
	Admin     crypto.Address
	Timestamp uint64
}

// Core resolves the single administrator and gates privileged operations.
type Core struct {
	state   accessState
	auth    crypto.Authenticator
	guard   *common.Guard
	emitter events.Emitter
	nowFn   func() time.Time
}

// NewCore constructs the access core over the provided state. The guard is
// shared with the other components of the same contract instance.
func NewCore(st accessState, auth crypto.Authenticator, guard *common.Guard) *Core {
	return &Core{
		state:   st,
		auth:    auth,
		guard:   guard,
		emitter: events.NoopEmitter{},
		nowFn:   time.Now,
	}
}

// SetEmitter configures the event emitter. Passing nil discards events.
func (c *Core) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		c.emitter = events.NoopEmitter{}
		return
	}
	c.emitter = emitter
}

// SetNowFunc overrides the ledger clock. Passing nil restores time.Now.
func (c *Core) SetNowFunc(now func() time.Time) {
	if now == nil {
		c.nowFn = time.Now
		return
	}
	c.nowFn = now
}

func (c *Core) now() uint64 {
	return uint64(c.nowFn().Unix())
}

// Initialize stores the admin and the contract info. It succeeds exactly once
// per contract instance.
func (c *Core) Initialize(admin crypto.Address) error {
	release, err := c.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	exists, err := c.state.KVGet(state.AdminKey(), nil)
	if err != nil {
		return err
	}
	if exists {
		return common.ErrAlreadyInitialized
	}
	now := c.now()
	if err := c.state.KVPut(state.AdminKey(), admin); err != nil {
		return err
	}
	if err := c.state.KVPut(state.ContractInfoKey(), &ContractInfo{Admin: admin, Timestamp: now}); err != nil {
		return err
	}
	c.emitter.Emit(events.Initialized{Admin: admin, Timestamp: now})
	return nil
}

// Admin returns the stored administrator.
func (c *Core) Admin() (crypto.Address, error) {
	var admin crypto.Address
	ok, err := c.state.KVGet(state.AdminKey(), &admin)
	if err != nil {
		return crypto.Address{}, err
	}
	if !ok {
		return crypto.Address{}, common.ErrNotInitialized
	}
	return admin, nil
}

// Info returns the contract info written by Initialize.
func (c *Core) Info() (*ContractInfo, error) {
	info := new(ContractInfo)
	ok, err := c.state.KVGet(state.ContractInfoKey(), info)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrNotInitialized
	}
	return info, nil
}

// AssertAdmin requires proof that caller authorized the call and that caller
// is the stored admin.
func (c *Core) AssertAdmin(ctx context.Context, caller crypto.Address) error {
	if err := RequireAuth(ctx, c.auth, caller); err != nil {
		return err
	}
	admin, err := c.Admin()
	if err != nil {
		return err
	}
	if caller != admin {
		return fmt.Errorf("%w: %s is not the admin", common.ErrNotAuthorized, caller)
	}
	return nil
}

// RequireAuth asks the authenticator for proof that principal authorized the
// call and maps any refusal onto ErrNotAuthorized.
func RequireAuth(ctx context.Context, auth crypto.Authenticator, principal crypto.Address) error {
	if auth == nil {
		return errors.Join(common.ErrNotAuthorized, errors.New("access: no authenticator configured"))
	}
	if err := auth.RequireAuth(ctx, principal); err != nil {
		return fmt.Errorf("%w: %v", common.ErrNotAuthorized, err)
	}
	return nil
}
