package storage

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// KVGet decodes the RLP value stored under key into out. It reports false
// without error when the key is absent.
func KVGet(r Reader, key []byte, out interface{}) (bool, error) {
	if r == nil {
		return false, ErrNilReader
	}
	data, err := r.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("decode %x: %w", key, err)
	}
	return true, nil
}

// KVPut RLP-encodes value and stages it under key.
func KVPut(w KV, key []byte, value interface{}) error {
	if w == nil {
		return ErrNilWriter
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("encode %x: %w", key, err)
	}
	return w.Put(key, encoded)
}
