package crypto

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// AddressLength is the byte length of every account identity.
const AddressLength = 20

// DefaultPrefix is the human-readable part used when none is configured.
const DefaultPrefix = "osmo"

var (
	ErrInvalidAddress = errors.New("crypto: invalid address")
	ErrPrefixMismatch = errors.New("crypto: address prefix mismatch")
)

// Address is a validated account identity: a 20-byte payload rendered as
// bech32 under a human-readable prefix.
type Address struct {
	prefix string
	bytes  []byte
}

// NewAddress wraps raw bytes under the provided prefix. It panics when the
// payload is not AddressLength bytes, mirroring the invariant enforced by
// DecodeAddress.
func NewAddress(prefix string, b []byte) Address {
	if len(b) != AddressLength {
		panic("address must be 20 bytes long")
	}
	return Address{prefix: prefix, bytes: append([]byte(nil), b...)}
}

// ModuleAddress derives the deterministic account used by a module to hold
// funds, taken from the keccak hash of its name.
func ModuleAddress(prefix, name string) Address {
	sum := ethcrypto.Keccak256([]byte("module:" + name))
	return NewAddress(prefix, sum[:AddressLength])
}

func (a Address) String() string {
	if a.IsZero() {
		return ""
	}
	conv, err := bech32.ConvertBits(a.bytes, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(a.prefix, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	return a.bytes
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() string {
	return a.prefix
}

// IsZero reports whether the address carries no payload.
func (a Address) IsZero() bool {
	return len(a.bytes) == 0
}

// Equal compares prefix and payload.
func (a Address) Equal(other Address) bool {
	return a.prefix == other.prefix && bytes.Equal(a.bytes, other.bytes)
}

// DecodeAddress parses a bech32 address of any prefix.
func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(strings.TrimSpace(addrStr))
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("%w: converting bits: %v", ErrInvalidAddress, err)
	}
	if len(conv) != AddressLength {
		return Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, AddressLength, len(conv))
	}
	return NewAddress(prefix, conv), nil
}

// ValidateAddress decodes the address and, when prefix is non-empty, checks
// the human-readable part matches.
func ValidateAddress(addrStr, prefix string) (Address, error) {
	addr, err := DecodeAddress(addrStr)
	if err != nil {
		return Address{}, err
	}
	if prefix != "" && addr.prefix != prefix {
		return Address{}, fmt.Errorf("%w: expected %q, got %q", ErrPrefixMismatch, prefix, addr.prefix)
	}
	return addr, nil
}
