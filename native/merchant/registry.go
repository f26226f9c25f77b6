package merchant

import (
	"context"
	"fmt"
	"time"

	"shade/core/events"
	"shade/core/state"
	"shade/crypto"
	"shade/native/access"
	"shade/native/common"
)

type registryState interface {
	KVGet(key state.Key, out interface{}) (bool, error)
	KVPut(key state.Key, value interface{}) error
}

// AdminGate authorizes privileged calls.
type AdminGate interface {
	AssertAdmin(ctx context.Context, caller crypto.Address) error
}

// Merchant is the registry record of one merchant principal.
type Merchant struct {
	ID             uint64
	Address        crypto.Address
	Active         bool
	Verified       bool
	DateRegistered uint64
}

// Registry persists merchant identities and their activation and
// verification flags.
type Registry struct {
	state   registryState
	auth    crypto.Authenticator
	admin   AdminGate
	guard   *common.Guard
	emitter events.Emitter
	nowFn   func() time.Time
}

// NewRegistry constructs a registry backed by the provided state accessor.
func NewRegistry(st registryState, auth crypto.Authenticator, admin AdminGate, guard *common.Guard) *Registry {
	return &Registry{
		state:   st,
		auth:    auth,
		admin:   admin,
		guard:   guard,
		emitter: events.NoopEmitter{},
		nowFn:   time.Now,
	}
}

// SetEmitter configures the event emitter. Passing nil discards events.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetNowFunc overrides the ledger clock. Passing nil restores time.Now.
func (r *Registry) SetNowFunc(now func() time.Time) {
	if now == nil {
		r.nowFn = time.Now
		return
	}
	r.nowFn = now
}

func (r *Registry) now() uint64 {
	return uint64(r.nowFn().Unix())
}

// Register allocates the next merchant id for addr. The new merchant starts
// active and unverified.
func (r *Registry) Register(ctx context.Context, addr crypto.Address) (uint64, error) {
	release, err := r.guard.Enter()
	if err != nil {
		return 0, err
	}
	defer release()

	if err := access.RequireAuth(ctx, r.auth, addr); err != nil {
		return 0, err
	}
	if _, registered, err := r.MerchantID(addr); err != nil {
		return 0, err
	} else if registered {
		return 0, fmt.Errorf("%w: %s", common.ErrMerchantAlreadyRegistered, addr)
	}
	id, err := r.nextMerchantID()
	if err != nil {
		return 0, err
	}
	now := r.now()
	record := &Merchant{
		ID:             id,
		Address:        addr,
		Active:         true,
		Verified:       false,
		DateRegistered: now,
	}
	if err := r.state.KVPut(state.MerchantKey(id), record); err != nil {
		return 0, err
	}
	if err := r.state.KVPut(state.MerchantIDKey(addr), id); err != nil {
		return 0, err
	}
	r.emitter.Emit(events.MerchantRegistered{MerchantID: id, Merchant: addr, Timestamp: now})
	return id, nil
}

// Merchant loads the record for id. Zero and unknown ids fail with
// ErrMerchantNotFound.
func (r *Registry) Merchant(id uint64) (*Merchant, error) {
	if id == 0 {
		return nil, fmt.Errorf("%w: id 0", common.ErrMerchantNotFound)
	}
	record := new(Merchant)
	ok, err := r.state.KVGet(state.MerchantKey(id), record)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: id %d", common.ErrMerchantNotFound, id)
	}
	return record, nil
}

// MerchantID resolves the id registered for addr.
func (r *Registry) MerchantID(addr crypto.Address) (uint64, bool, error) {
	var id uint64
	ok, err := r.state.KVGet(state.MerchantIDKey(addr), &id)
	if err != nil || !ok {
		return 0, false, err
	}
	return id, true, nil
}

// IsMerchant reports whether addr has a merchant id.
func (r *Registry) IsMerchant(addr crypto.Address) (bool, error) {
	_, ok, err := r.MerchantID(addr)
	return ok, err
}

// Count returns the number of registered merchants, which is also the
// highest id handed out.
func (r *Registry) Count() (uint64, error) {
	var counter uint64
	if _, err := r.state.KVGet(state.MerchantCountKey(), &counter); err != nil {
		return 0, err
	}
	return counter, nil
}

// SetStatus overwrites the active flag. The event is emitted even when the
// flag already had the requested value.
func (r *Registry) SetStatus(ctx context.Context, admin crypto.Address, id uint64, active bool) error {
	release, err := r.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	record, err := r.adminRecord(ctx, admin, id)
	if err != nil {
		return err
	}

	record.Active = active
	if err := r.state.KVPut(state.MerchantKey(id), record); err != nil {
		return err
	}
	r.emitter.Emit(events.MerchantStatusChanged{MerchantID: id, Active: active, Timestamp: r.now()})
	return nil
}

// SetVerified overwrites the verified flag and always emits an event.
func (r *Registry) SetVerified(ctx context.Context, admin crypto.Address, id uint64, status bool) error {
	release, err := r.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	record, err := r.adminRecord(ctx, admin, id)
	if err != nil {
		return err
	}

	record.Verified = status
	if err := r.state.KVPut(state.MerchantKey(id), record); err != nil {
		return err
	}
	r.emitter.Emit(events.MerchantVerified{MerchantID: id, Status: status, Timestamp: r.now()})
	return nil
}

// IsActive returns the active flag of merchant id.
func (r *Registry) IsActive(id uint64) (bool, error) {
	record, err := r.Merchant(id)
	if err != nil {
		return false, err
	}
	return record.Active, nil
}

// IsVerified returns the verified flag of merchant id.
func (r *Registry) IsVerified(id uint64) (bool, error) {
	record, err := r.Merchant(id)
	if err != nil {
		return false, err
	}
	return record.Verified, nil
}

// adminRecord asserts the admin and loads merchant id.
func (r *Registry) adminRecord(ctx context.Context, admin crypto.Address, id uint64) (*Merchant, error) {
	if err := r.admin.AssertAdmin(ctx, admin); err != nil {
		return nil, err
	}
	return r.Merchant(id)
}

func (r *Registry) nextMerchantID() (uint64, error) {
	counter, err := r.Count()
	if err != nil {
		return 0, err
	}
	counter++
	if err := r.state.KVPut(state.MerchantCountKey(), counter); err != nil {
		return 0, err
	}
	return counter, nil
}
