package tokens

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/holiman/uint256"

	"shade/core/events"
	"shade/core/state"
	"shade/crypto"
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

// Prober reads a trivial property from a token contract to check that it
// behaves like a token. Implementations run outside the contract and may call
// back into it with the supplied context.
type Prober interface {
	Symbol(ctx context.Context, token crypto.Address) (string, error)
}

// storedFee is the RLP form of a signed fee.
type storedFee struct {
	Negative  bool
	Magnitude *uint256.Int
}

// Registry keeps the accepted-token allow-list and the per-token fee schedule.
type Registry struct {
	state   registryState
	admin   AdminGate
	guard   *common.Guard
	prober  Prober
	emitter events.Emitter
	nowFn   func() time.Time
}

// NewRegistry constructs a token registry backed by the provided state.
func NewRegistry(st registryState, admin AdminGate, guard *common.Guard, prober Prober) *Registry {
	return &Registry{
		state:   st,
		admin:   admin,
		guard:   guard,
		prober:  prober,
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

// AddAcceptedToken probes the token and appends it to the accepted list when
// absent. Adding a token that is already accepted emits nothing.
func (r *Registry) AddAcceptedToken(ctx context.Context, admin, token crypto.Address) error {
	release, err := r.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	if err := r.admin.AssertAdmin(ctx, admin); err != nil {
		return err
	}
	if r.prober == nil {
		return common.External("symbol", fmt.Errorf("tokens: no prober configured"))
	}
	if _, err := r.prober.Symbol(ctx, token); err != nil {
		return common.External("symbol", err)
	}

	accepted, err := r.AcceptedTokens()
	if err != nil {
		return err
	}
	if containsToken(accepted, token) {
		return nil
	}
	accepted = append(accepted, token)
	if err := r.state.KVPut(state.AcceptedTokensKey(), accepted); err != nil {
		return err
	}
	r.emitter.Emit(events.TokenAdded{Token: token, Timestamp: r.now()})
	return nil
}

// RemoveAcceptedToken rebuilds the accepted list without token. Removing an
// unknown token is a silent no-op.
func (r *Registry) RemoveAcceptedToken(ctx context.Context, admin, token crypto.Address) error {
	release, err := r.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	if err := r.admin.AssertAdmin(ctx, admin); err != nil {
		return err
	}
	accepted, err := r.AcceptedTokens()
	if err != nil {
		return err
	}
	updated := make([]crypto.Address, 0, len(accepted))
	removed := false
	for _, existing := range accepted {
		if existing == token {
			removed = true
			continue
		}
		updated = append(updated, existing)
	}
	if !removed {
		return nil
	}
	if err := r.state.KVPut(state.AcceptedTokensKey(), updated); err != nil {
		return err
	}
	r.emitter.Emit(events.TokenRemoved{Token: token, Timestamp: r.now()})
	return nil
}

// IsAcceptedToken reports whether token is on the accepted list.
func (r *Registry) IsAcceptedToken(token crypto.Address) (bool, error) {
	accepted, err := r.AcceptedTokens()
	if err != nil {
		return false, err
	}
	return containsToken(accepted, token), nil
}

// AcceptedTokens returns the accepted list in insertion order.
func (r *Registry) AcceptedTokens() ([]crypto.Address, error) {
	var accepted []crypto.Address
	if _, err := r.state.KVGet(state.AcceptedTokensKey(), &accepted); err != nil {
		return nil, err
	}
	if accepted == nil {
		accepted = []crypto.Address{}
	}
	return accepted, nil
}

// SetFee stores the fee for an accepted token. Any signed value that fits in
// 128 bits is allowed, including zero and negative fees.
func (r *Registry) SetFee(ctx context.Context, admin, token crypto.Address, fee *big.Int) error {
	release, err := r.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	if err := r.admin.AssertAdmin(ctx, admin); err != nil {
		return err
	}
	accepted, err := r.IsAcceptedToken(token)
	if err != nil {
		return err
	}
	if !accepted {
		return fmt.Errorf("%w: %s", common.ErrTokenNotAccepted, token)
	}
	if !common.FitsInt128(fee) {
		return fmt.Errorf("%w: fee outside int128 range", common.ErrInvalidAmount)
	}
	magnitude, _ := uint256.FromBig(new(big.Int).Abs(fee))
	stored := storedFee{Negative: fee.Sign() < 0, Magnitude: magnitude}
	if err := r.state.KVPut(state.TokenFeeKey(token), &stored); err != nil {
		return err
	}
	r.emitter.Emit(events.FeeSet{Token: token, Fee: common.CloneBigInt(fee), Timestamp: r.now()})
	return nil
}

// Fee returns the configured fee for token, or zero when never set.
func (r *Registry) Fee(token crypto.Address) (*big.Int, error) {
	var stored storedFee
	ok, err := r.state.KVGet(state.TokenFeeKey(token), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	fee := new(big.Int)
	if stored.Magnitude != nil {
		fee = stored.Magnitude.ToBig()
	}
	if stored.Negative {
		fee.Neg(fee)
	}
	return fee, nil
}

func containsToken(accepted []crypto.Address, token crypto.Address) bool {
	for _, existing := range accepted {
		if existing == token {
			return true
		}
	}
	return false
}
