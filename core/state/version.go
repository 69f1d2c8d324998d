package state

import (
	"errors"
	"fmt"
	"math"

	"shark/storage"
)

// StateVersion identifies the on-disk record layout. Increment it whenever a
// stored structure changes incompatibly.
const StateVersion uint32 = 1

var (
	stateVersionKey = []byte("state/version")
	// ErrStateVersionMismatch indicates the stored schema version does not
	// match the version supported by the current binary.
	ErrStateVersionMismatch = errors.New("state: schema version mismatch")
)

// SetStateVersion records the provided schema version in state.
func (m *Manager) SetStateVersion(version uint32) error {
	if m == nil {
		return fmt.Errorf("state: manager unavailable")
	}
	return m.KVPut(stateVersionKey, uint64(version))
}

// StateVersion returns the stored schema version and whether it was present.
func (m *Manager) StateVersion() (uint32, bool, error) {
	if m == nil {
		return 0, false, fmt.Errorf("state: manager unavailable")
	}
	var stored uint64
	ok, err := m.KVGet(stateVersionKey, &stored)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, nil
	}
	if stored > uint64(math.MaxUint32) {
		return 0, false, fmt.Errorf("state: schema version overflow: %d", stored)
	}
	return uint32(stored), true, nil
}

// EnsureStateVersion stamps a fresh store with StateVersion and verifies an
// existing one matches it. When allowMigrate is true, mismatches are tolerated
// so operators can perform manual migrations.
func EnsureStateVersion(store *storage.Store, allowMigrate bool) error {
	if store == nil {
		return fmt.Errorf("state: store must not be nil")
	}
	return store.Update(func(kv storage.KV) error {
		manager := NewManager(kv)
		version, ok, err := manager.StateVersion()
		if err != nil {
			return err
		}
		if !ok {
			return manager.SetStateVersion(StateVersion)
		}
		if version == StateVersion || allowMigrate {
			return nil
		}
		return fmt.Errorf("%w: on-disk=%d expected=%d", ErrStateVersionMismatch, version, StateVersion)
	})
}
