package account

import (
	"time"

	"shade/core/state"
	"shade/crypto"
	"shade/native/common"
)

type binderState interface {
	KVGet(key state.Key, out interface{}) (bool, error)
	KVPut(key state.Key, value interface{}) error
}

// Info is the one-time binding stored by an account instance.
type Info struct {
	Manager     crypto.Address
	MerchantID  uint64
	Merchant    crypto.Address
	DateCreated uint64
}

// Binder binds one manager principal to one merchant. Each merchant gets its
// own binder over an isolated state namespace.
type Binder struct {
	state binderState
	guard *common.Guard
	nowFn func() time.Time
}

// NewBinder constructs a binder over the account's own state.
func NewBinder(st binderState, guard *common.Guard) *Binder {
	return &Binder{state: st, guard: guard, nowFn: time.Now}
}

// SetNowFunc overrides the ledger clock. Passing nil restores time.Now.
func (b *Binder) SetNowFunc(now func() time.Time) {
	if now == nil {
		b.nowFn = time.Now
		return
	}
	b.nowFn = now
}

// Initialize writes the binding. A second call fails with
// ErrAlreadyInitialized.
func (b *Binder) Initialize(merchant, manager crypto.Address, merchantID uint64) error {
	release, err := b.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	exists, err := b.state.KVGet(state.ManagerKey(), nil)
	if err != nil {
		return err
	}
	if exists {
		return common.ErrAlreadyInitialized
	}
	info := &Info{
		Manager:     manager,
		MerchantID:  merchantID,
		Merchant:    merchant,
		DateCreated: uint64(b.nowFn().Unix()),
	}
	if err := b.state.KVPut(state.ManagerKey(), manager); err != nil {
		return err
	}
	if err := b.state.KVPut(state.AccountMerchantKey(), merchant); err != nil {
		return err
	}
	return b.state.KVPut(state.AccountInfoKey(), info)
}

// Merchant returns the bound merchant principal.
func (b *Binder) Merchant() (crypto.Address, error) {
	return b.address(state.AccountMerchantKey())
}

// Manager returns the bound manager principal.
func (b *Binder) Manager() (crypto.Address, error) {
	return b.address(state.ManagerKey())
}

// Info returns the full binding.
func (b *Binder) Info() (*Info, error) {
	info := new(Info)
	ok, err := b.state.KVGet(state.AccountInfoKey(), info)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrNotInitialized
	}
	return info, nil
}

func (b *Binder) address(key state.Key) (crypto.Address, error) {
	var addr crypto.Address
	ok, err := b.state.KVGet(key, &addr)
	if err != nil {
		return crypto.Address{}, err
	}
	if !ok {
		return crypto.Address{}, common.ErrNotInitialized
	}
	return addr, nil
}
