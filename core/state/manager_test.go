package state

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"shade/crypto"
	"shade/storage"
)

type record struct {
	ID     uint64
	Active bool
	Note   string
}

func TestKeyEncodingIsDistinctPerVariant(t *testing.T) {
	var token crypto.Address
	token[19] = 0x01

	keys := []Key{
		AdminKey(),
		ContractInfoKey(),
		AcceptedTokensKey(),
		TokenFeeKey(token),
		MerchantIDKey(token),
		MerchantKey(1),
		MerchantCountKey(),
		InvoiceCountKey(),
		InvoiceKey(1),
		ManagerKey(),
		AccountMerchantKey(),
		AccountInfoKey(),
	}
	seen := make(map[string]Key)
	for _, key := range keys {
		encoded := string(key.Bytes())
		if prior, ok := seen[encoded]; ok {
			t.Fatalf("key %s collides with %s", key, prior)
		}
		seen[encoded] = key
	}

	if !bytes.Equal(MerchantKey(7).Bytes(), []byte{byte(KindMerchant), 0, 0, 0, 0, 0, 0, 0, 7}) {
		t.Fatalf("unexpected merchant key encoding: %x", MerchantKey(7).Bytes())
	}
	if MerchantKey(7).String() != "Merchant(7)" {
		t.Fatalf("unexpected key name: %s", MerchantKey(7))
	}
	if MerchantIDKey(token).Kind() != KindMerchantID {
		t.Fatalf("unexpected kind")
	}
}

func TestManagerStagesUntilCommit(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db, ContractNamespace("test"))

	require.NoError(t, mgr.KVPut(MerchantKey(1), record{ID: 1, Active: true, Note: "first"}))
	require.True(t, mgr.Dirty())
	require.Equal(t, 0, db.Len())

	var got record
	ok, err := mgr.KVGet(MerchantKey(1), &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, record{ID: 1, Active: true, Note: "first"}, got)

	require.NoError(t, mgr.Commit())
	require.False(t, mgr.Dirty())
	require.Equal(t, 1, db.Len())

	reopened := NewManager(db, ContractNamespace("test"))
	ok, err = reopened.KVGet(MerchantKey(1), &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), got.ID)
}

func TestManagerDiscardDropsStagedWrites(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db, ContractNamespace("test"))

	require.NoError(t, mgr.KVPut(InvoiceCountKey(), uint64(3)))
	require.NoError(t, mgr.Commit())

	require.NoError(t, mgr.KVPut(InvoiceCountKey(), uint64(4)))
	require.NoError(t, mgr.KVDelete(AdminKey()))
	mgr.Discard()

	var count uint64
	ok, err := mgr.KVGet(InvoiceCountKey(), &count)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(3), count)
}

func TestManagerDeleteHidesCommittedValue(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db, ContractNamespace("test"))

	require.NoError(t, mgr.KVPut(AdminKey(), crypto.Address{1}))
	require.NoError(t, mgr.Commit())

	require.NoError(t, mgr.KVDelete(AdminKey()))
	has, err := mgr.KVHas(AdminKey())
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, mgr.Commit())
	require.Equal(t, 0, db.Len())
}

func TestManagerNamespacesAreIsolated(t *testing.T) {
	db := storage.NewMemDB()
	first := NewManager(db, AccountNamespace(crypto.Address{1}))
	second := NewManager(db, AccountNamespace(crypto.Address{2}))

	require.NoError(t, first.KVPut(ManagerKey(), crypto.Address{9}))
	require.NoError(t, first.Commit())

	has, err := second.KVHas(ManagerKey())
	require.NoError(t, err)
	require.False(t, has)
	require.True(t, bytes.HasPrefix(first.Namespace(), []byte("account/shd")))
}
