package state

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"shark/storage"
)

var errReadOnly = errors.New("state: manager is read-only")

// Manager reads and writes typed records on top of a key/value view. Keys are
// hashed with keccak256 and values are RLP encoded. A Manager built over a
// transaction sees its own uncommitted writes.
type Manager struct {
	r storage.Reader
	w storage.KV
}

// NewManager creates a state manager operating on the provided transaction.
func NewManager(kv storage.KV) *Manager {
	return &Manager{r: kv, w: kv}
}

// NewReader creates a manager that can only read. Writes fail.
func NewReader(r storage.Reader) *Manager {
	return &Manager{r: r}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) writer() (storage.KV, error) {
	if m == nil || m.w == nil {
		return nil, errReadOnly
	}
	return m.w, nil
}

// KVPut stores the provided value under the supplied key using RLP encoding.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	w, err := m.writer()
	if err != nil {
		return err
	}
	return storage.KVPut(w, kvKey(key), value)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean reports whether the key existed.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	if m == nil || m.r == nil {
		return false, fmt.Errorf("state: manager unavailable")
	}
	return storage.KVGet(m.r, kvKey(key), out)
}

// KVDelete removes the value stored under key.
func (m *Manager) KVDelete(key []byte) error {
	w, err := m.writer()
	if err != nil {
		return err
	}
	return w.Delete(kvKey(key))
}

// KVAppend appends value to the RLP-encoded byte slice list stored under key.
// Duplicates are ignored so the index stays deterministic.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	var list [][]byte
	if err := m.KVGetList(key, &list); err != nil {
		return err
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	return m.KVPut(key, list)
}

// KVGetList decodes an RLP-encoded slice stored under key into out, which must
// be a pointer to a slice. A missing key yields an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	val := reflect.ValueOf(out)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("kv: destination must be a non-nil pointer")
	}
	elem := val.Elem()
	if elem.Kind() != reflect.Slice {
		return fmt.Errorf("kv: destination must point to a slice")
	}
	ok, err := m.KVGet(key, out)
	if err != nil {
		return err
	}
	if !ok {
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
	}
	return nil
}

// ContractInfo is the name and version recorded at instantiation.
type ContractInfo struct {
	Name    string
	Version string
}

// PutContractInfo records the contract name and version.
func (m *Manager) PutContractInfo(name, version string) error {
	return m.KVPut(contractInfoKey, &ContractInfo{Name: name, Version: version})
}

// ContractInfo returns the stored contract version, or nil when absent.
func (m *Manager) ContractInfo() (*ContractInfo, error) {
	info := new(ContractInfo)
	ok, err := m.KVGet(contractInfoKey, info)
	if err != nil || !ok {
		return nil, err
	}
	return info, nil
}
