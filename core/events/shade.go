package events

import (
	"math/big"
	"strconv"

	"shade/core/types"
	"shade/crypto"
)

const (
	// TypeInitialized is emitted once when the contract admin is set.
	TypeInitialized = "shade.initialized"
	// TypeTokenAdded is emitted when a token joins the accepted list.
	TypeTokenAdded = "shade.token.added"
	// TypeTokenRemoved is emitted when a token leaves the accepted list.
	TypeTokenRemoved = "shade.token.removed"
	// TypeFeeSet is emitted on every fee update for an accepted token.
	TypeFeeSet = "shade.fee.set"
	// TypeMerchantRegistered is emitted when a merchant id is allocated.
	TypeMerchantRegistered = "shade.merchant.registered"
	// TypeMerchantStatusChanged is emitted on every active flag write, even
	// when the value did not change.
	TypeMerchantStatusChanged = "shade.merchant.status_changed"
	// TypeMerchantVerified is emitted on every verified flag write.
	TypeMerchantVerified = "shade.merchant.verified"
	// TypeInvoiceCreated is emitted when an invoice is recorded.
	TypeInvoiceCreated = "shade.invoice.created"
)

type Initialized struct {
	Admin     crypto.Address
	Timestamp uint64
}

func (Initialized) EventType() string { return TypeInitialized }

func (e Initialized) Event() *types.Event {
	return &types.Event{
		Type: TypeInitialized,
		Attributes: map[string]string{
			"admin":     e.Admin.String(),
			"timestamp": uintToString(e.Timestamp),
		},
	}
}

type TokenAdded struct {
	Token     crypto.Address
	Timestamp uint64
}

func (TokenAdded) EventType() string { return TypeTokenAdded }

func (e TokenAdded) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenAdded,
		Attributes: map[string]string{
			"token":     e.Token.String(),
			"timestamp": uintToString(e.Timestamp),
		},
	}
}

type TokenRemoved struct {
	Token     crypto.Address
	Timestamp uint64
}

func (TokenRemoved) EventType() string { return TypeTokenRemoved }

func (e TokenRemoved) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenRemoved,
		Attributes: map[string]string{
			"token":     e.Token.String(),
			"timestamp": uintToString(e.Timestamp),
		},
	}
}

// FeeSet carries the signed fee now configured for the token.
type FeeSet struct {
	Token     crypto.Address
	Fee       *big.Int
	Timestamp uint64
}

func (FeeSet) EventType() string { return TypeFeeSet }

func (e FeeSet) Event() *types.Event {
	return &types.Event{
		Type: TypeFeeSet,
		Attributes: map[string]string{
			"token":     e.Token.String(),
			"fee":       formatAmount(e.Fee),
			"timestamp": uintToString(e.Timestamp),
		},
	}
}

type MerchantRegistered struct {
	MerchantID uint64
	Merchant   crypto.Address
	Timestamp  uint64
}

func (MerchantRegistered) EventType() string { return TypeMerchantRegistered }

func (e MerchantRegistered) Event() *types.Event {
	return &types.Event{
		Type: TypeMerchantRegistered,
		Attributes: map[string]string{
			"merchantId": uintToString(e.MerchantID),
			"merchant":   e.Merchant.String(),
			"timestamp":  uintToString(e.Timestamp),
		},
	}
}

type MerchantStatusChanged struct {
	MerchantID uint64
	Active     bool
	Timestamp  uint64
}

func (MerchantStatusChanged) EventType() string { return TypeMerchantStatusChanged }

func (e MerchantStatusChanged) Event() *types.Event {
	return &types.Event{
		Type: TypeMerchantStatusChanged,
		Attributes: map[string]string{
			"merchantId": uintToString(e.MerchantID),
			"active":     strconv.FormatBool(e.Active),
			"timestamp":  uintToString(e.Timestamp),
		},
	}
}

type MerchantVerified struct {
	MerchantID uint64
	Status     bool
	Timestamp  uint64
}

func (MerchantVerified) EventType() string { return TypeMerchantVerified }

func (e MerchantVerified) Event() *types.Event {
	return &types.Event{
		Type: TypeMerchantVerified,
		Attributes: map[string]string{
			"merchantId": uintToString(e.MerchantID),
			"status":     strconv.FormatBool(e.Status),
			"timestamp":  uintToString(e.Timestamp),
		},
	}
}

type InvoiceCreated struct {
	InvoiceID       uint64
	MerchantAddress crypto.Address
	Amount          *big.Int
	Token           crypto.Address
	Timestamp       uint64
}

func (InvoiceCreated) EventType() string { return TypeInvoiceCreated }

func (e InvoiceCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeInvoiceCreated,
		Attributes: map[string]string{
			"invoiceId":       uintToString(e.InvoiceID),
			"merchantAddress": e.MerchantAddress.String(),
			"amount":          formatAmount(e.Amount),
			"token":           e.Token.String(),
			"timestamp":       uintToString(e.Timestamp),
		},
	}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func uintToString(v uint64) string {
	return strconv.FormatUint(v, 10)
}
