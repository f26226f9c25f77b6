package state

import (
	"errors"
	"fmt"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"shade/storage"
)

type pendingWrite struct {
	value   []byte
	deleted bool
}

// Manager reads and writes RLP-encoded records for one contract instance.
//
// Writes are staged in memory and only reach the database on Commit, which
// applies them as one atomic batch. Discard drops everything staged since the
// last commit, so a failed entry point leaves no trace.
//
// Manager is not safe for concurrent use.
type Manager struct {
	db        storage.Database
	namespace []byte
	pending   map[string]pendingWrite
}

// NewManager creates a state manager scoped to namespace within db.
func NewManager(db storage.Database, namespace []byte) *Manager {
	return &Manager{
		db:        db,
		namespace: append([]byte(nil), namespace...),
		pending:   make(map[string]pendingWrite),
	}
}

// Namespace returns the key prefix of this instance.
func (m *Manager) Namespace() []byte {
	return append([]byte(nil), m.namespace...)
}

// kvKey hashes the logical key with keccak256 and prefixes the namespace.
func (m *Manager) kvKey(key Key) []byte {
	hashed := ethcrypto.Keccak256(key.Bytes())
	buf := make([]byte, 0, len(m.namespace)+len(hashed))
	buf = append(buf, m.namespace...)
	return append(buf, hashed...)
}

func (m *Manager) load(key Key) ([]byte, error) {
	if m == nil || m.db == nil {
		return nil, errors.New("state: manager not initialised")
	}
	storageKey := m.kvKey(key)
	if staged, ok := m.pending[string(storageKey)]; ok {
		if staged.deleted {
			return nil, nil
		}
		return staged.value, nil
	}
	data, err := m.db.Get(storageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: read %s: %w", key, err)
	}
	return data, nil
}

// KVPut stages the RLP encoding of value under key.
func (m *Manager) KVPut(key Key, value interface{}) error {
	if m == nil || m.db == nil {
		return errors.New("state: manager not initialised")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", key, err)
	}
	m.pending[string(m.kvKey(key))] = pendingWrite{value: encoded}
	return nil
}

// KVGet decodes the value stored under key into out. The boolean reports
// whether the key existed.
func (m *Manager) KVGet(key Key, out interface{}) (bool, error) {
	data, err := m.load(key)
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode %s: %w", key, err)
	}
	return true, nil
}

// KVHas reports whether a value is stored under key.
func (m *Manager) KVHas(key Key) (bool, error) {
	return m.KVGet(key, nil)
}

// KVDelete stages the removal of key.
func (m *Manager) KVDelete(key Key) error {
	if m == nil || m.db == nil {
		return errors.New("state: manager not initialised")
	}
	m.pending[string(m.kvKey(key))] = pendingWrite{deleted: true}
	return nil
}

// Dirty reports whether there are staged writes.
func (m *Manager) Dirty() bool {
	return m != nil && len(m.pending) > 0
}

// Commit writes all staged changes as a single batch. Staged changes are
// kept when the write fails so the caller can Discard them explicitly.
func (m *Manager) Commit() error {
	if m == nil || m.db == nil {
		return errors.New("state: manager not initialised")
	}
	if len(m.pending) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m.pending))
	for k := range m.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	batch := storage.NewBatch()
	for _, k := range keys {
		staged := m.pending[k]
		if staged.deleted {
			batch.Delete([]byte(k))
			continue
		}
		batch.Put([]byte(k), staged.value)
	}
	if err := m.db.Write(batch); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.pending = make(map[string]pendingWrite)
	return nil
}

// Discard drops every staged change.
func (m *Manager) Discard() {
	if m == nil {
		return
	}
	m.pending = make(map[string]pendingWrite)
}
