package invoice

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"shade/core/events"
	"shade/core/state"
	"shade/crypto"
	"shade/native/access"
	"shade/native/common"
	"shade/native/merchant"
)

type ledgerState interface {
	KVGet(key state.Key, out interface{}) (bool, error)
	KVPut(key state.Key, value interface{}) error
}

// MerchantDirectory resolves merchant principals for the ledger.
type MerchantDirectory interface {
	MerchantID(addr crypto.Address) (uint64, bool, error)
	Merchant(id uint64) (*merchant.Merchant, error)
}

// Status is the lifecycle state of an invoice.
type Status uint8

const (
	StatusPending Status = iota
	StatusPaid
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusPaid:
		return "paid"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Invoice is a payment request issued by a merchant. Payer stays nil and
// DatePaid zero until the invoice is settled.
type Invoice struct {
	ID          uint64
	Description string
	Amount      *big.Int
	Token       crypto.Address
	Status      Status
	MerchantID  uint64
	Payer       *crypto.Address `rlp:"nil"`
	DateCreated uint64
	DatePaid    uint64
}

// Policy restricts which merchants may issue invoices. The zero value lets
// every registered merchant issue.
type Policy struct {
	RequireActiveMerchant   bool
	RequireVerifiedMerchant bool
}

// Ledger records invoices under a counter shared by all merchants.
type Ledger struct {
	state     ledgerState
	auth      crypto.Authenticator
	merchants MerchantDirectory
	guard     *common.Guard
	policy    Policy
	emitter   events.Emitter
	nowFn     func() time.Time
}

// NewLedger constructs an invoice ledger.
func NewLedger(st ledgerState, auth crypto.Authenticator, merchants MerchantDirectory, guard *common.Guard) *Ledger {
	return &Ledger{
		state:     st,
		auth:      auth,
		merchants: merchants,
		guard:     guard,
		emitter:   events.NoopEmitter{},
		nowFn:     time.Now,
	}
}

// SetEmitter configures the event emitter. Passing nil discards events.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetNowFunc overrides the ledger clock. Passing nil restores time.Now.
func (l *Ledger) SetNowFunc(now func() time.Time) {
	if now == nil {
		l.nowFn = time.Now
		return
	}
	l.nowFn = now
}

// SetPolicy replaces the issuing policy.
func (l *Ledger) SetPolicy(policy Policy) {
	l.policy = policy
}

// Policy returns the issuing policy in force.
func (l *Ledger) Policy() Policy {
	return l.policy
}

func (l *Ledger) now() uint64 {
	return uint64(l.nowFn().Unix())
}

// Create issues a pending invoice for the merchant at merchantAddr and
// returns its id.
func (l *Ledger) Create(ctx context.Context, merchantAddr crypto.Address, description string, amount *big.Int, token crypto.Address) (uint64, error) {
	release, err := l.guard.Enter()
	if err != nil {
		return 0, err
	}
	defer release()

	if err := access.RequireAuth(ctx, l.auth, merchantAddr); err != nil {
		return 0, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, fmt.Errorf("%w: amount must be positive", common.ErrInvalidAmount)
	}
	if !common.FitsInt128(amount) {
		return 0, fmt.Errorf("%w: amount outside int128 range", common.ErrInvalidAmount)
	}
	merchantID, registered, err := l.merchants.MerchantID(merchantAddr)
	if err != nil {
		return 0, err
	}
	if !registered {
		return 0, fmt.Errorf("%w: %s is not a merchant", common.ErrNotAuthorized, merchantAddr)
	}
	if err := l.checkPolicy(merchantID); err != nil {
		return 0, err
	}

	id, err := l.nextInvoiceID()
	if err != nil {
		return 0, err
	}
	now := l.now()
	record := &Invoice{
		ID:          id,
		Description: description,
		Amount:      common.CloneBigInt(amount),
		Token:       token,
		Status:      StatusPending,
		MerchantID:  merchantID,
		DateCreated: now,
	}
	if err := l.state.KVPut(state.InvoiceKey(id), record); err != nil {
		return 0, err
	}
	l.emitter.Emit(events.InvoiceCreated{
		InvoiceID:       id,
		MerchantAddress: merchantAddr,
		Amount:          common.CloneBigInt(amount),
		Token:           token,
		Timestamp:       now,
	})
	return id, nil
}

func (l *Ledger) checkPolicy(merchantID uint64) error {
	if !l.policy.RequireActiveMerchant && !l.policy.RequireVerifiedMerchant {
		return nil
	}
	record, err := l.merchants.Merchant(merchantID)
	if err != nil {
		return err
	}
	if l.policy.RequireActiveMerchant && !record.Active {
		return fmt.Errorf("%w: merchant %d is inactive", common.ErrNotAuthorized, merchantID)
	}
	if l.policy.RequireVerifiedMerchant && !record.Verified {
		return fmt.Errorf("%w: merchant %d is unverified", common.ErrNotAuthorized, merchantID)
	}
	return nil
}

// Invoice loads invoice id.
func (l *Ledger) Invoice(id uint64) (*Invoice, error) {
	if id == 0 {
		return nil, fmt.Errorf("%w: id 0", common.ErrInvoiceNotFound)
	}
	record := new(Invoice)
	ok, err := l.state.KVGet(state.InvoiceKey(id), record)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: id %d", common.ErrInvoiceNotFound, id)
	}
	return record, nil
}

// Count returns the number of invoices issued so far.
func (l *Ledger) Count() (uint64, error) {
	var counter uint64
	if _, err := l.state.KVGet(state.InvoiceCountKey(), &counter); err != nil {
		return 0, err
	}
	return counter, nil
}

func (l *Ledger) nextInvoiceID() (uint64, error) {
	counter, err := l.Count()
	if err != nil {
		return 0, err
	}
	counter++
	if err := l.state.KVPut(state.InvoiceCountKey(), counter); err != nil {
		return 0, err
	}
	return counter, nil
}
