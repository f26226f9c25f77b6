package state

import (
	"encoding/binary"
	"fmt"

	"shade/crypto"
)

// KeyKind discriminates the logical collection a Key addresses.
type KeyKind uint8

const (
	KindAdmin KeyKind = iota + 1
	KindContractInfo
	KindAcceptedTokens
	KindTokenFee
	KindMerchantID
	KindMerchant
	KindMerchantCount
	KindInvoiceCount
	KindInvoice
	// Account Binder namespace.
	KindManager
	KindAccountMerchant
	KindAccountInfo
)

var kindNames = map[KeyKind]string{
	KindAdmin:           "Admin",
	KindContractInfo:    "ContractInfo",
	KindAcceptedTokens:  "AcceptedTokens",
	KindTokenFee:        "TokenFee",
	KindMerchantID:      "MerchantId",
	KindMerchant:        "Merchant",
	KindMerchantCount:   "MerchantCount",
	KindInvoiceCount:    "InvoiceCount",
	KindInvoice:         "Invoice",
	KindManager:         "Manager",
	KindAccountMerchant: "AccountMerchant",
	KindAccountInfo:     "AccountInfo",
}

func (k KeyKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("KeyKind(%d)", uint8(k))
}

// Key addresses one stored record. Only the payload relevant to the kind is
// populated; use the constructors below.
type Key struct {
	kind KeyKind
	addr crypto.Address
	id   uint64
}

func AdminKey() Key          { return Key{kind: KindAdmin} }
func ContractInfoKey() Key   { return Key{kind: KindContractInfo} }
func AcceptedTokensKey() Key { return Key{kind: KindAcceptedTokens} }
func MerchantCountKey() Key  { return Key{kind: KindMerchantCount} }
func InvoiceCountKey() Key   { return Key{kind: KindInvoiceCount} }

func TokenFeeKey(token crypto.Address) Key {
	return Key{kind: KindTokenFee, addr: token}
}

func MerchantIDKey(merchant crypto.Address) Key {
	return Key{kind: KindMerchantID, addr: merchant}
}

func MerchantKey(id uint64) Key { return Key{kind: KindMerchant, id: id} }
func InvoiceKey(id uint64) Key  { return Key{kind: KindInvoice, id: id} }

func ManagerKey() Key         { return Key{kind: KindManager} }
func AccountMerchantKey() Key { return Key{kind: KindAccountMerchant} }
func AccountInfoKey() Key     { return Key{kind: KindAccountInfo} }

// Kind returns the collection discriminator.
func (k Key) Kind() KeyKind { return k.kind }

// Bytes returns the canonical encoding: the kind byte followed by the
// address or big-endian id payload when the kind carries one.
func (k Key) Bytes() []byte {
	switch k.kind {
	case KindTokenFee, KindMerchantID:
		buf := make([]byte, 1+crypto.AddressLength)
		buf[0] = byte(k.kind)
		copy(buf[1:], k.addr[:])
		return buf
	case KindMerchant, KindInvoice:
		buf := make([]byte, 9)
		buf[0] = byte(k.kind)
		binary.BigEndian.PutUint64(buf[1:], k.id)
		return buf
	default:
		return []byte{byte(k.kind)}
	}
}

func (k Key) String() string {
	switch k.kind {
	case KindTokenFee, KindMerchantID:
		return fmt.Sprintf("%s(%s)", k.kind, k.addr)
	case KindMerchant, KindInvoice:
		return fmt.Sprintf("%s(%d)", k.kind, k.id)
	default:
		return k.kind.String()
	}
}

// ContractNamespace is the default namespace of a deployed contract instance.
func ContractNamespace(name string) []byte {
	return []byte("shade/" + name + "/")
}

// AccountNamespace isolates the Account Binder instance of one merchant.
func AccountNamespace(merchant crypto.Address) []byte {
	return []byte("account/" + merchant.String() + "/")
}
