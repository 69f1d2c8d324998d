package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// AmountBits is the native width of every ledger amount. Values are carried in
// a uint256 but never allowed to exceed 128 bits so they match the width used
// by the bank and lending records.
const AmountBits = 128

var (
	ErrAmountOverflow  = errors.New("amount overflow")
	ErrAmountUnderflow = errors.New("amount underflow")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDenom    = errors.New("invalid denom")
)

// Coin pairs a denomination with a whole-unit amount.
type Coin struct {
	Denom  string
	Amount *uint256.Int
}

// Coins is the ordered set of coins attached to an action or carried by an
// outbound transfer.
type Coins []Coin

// NewCoin constructs a coin from a uint64 amount.
func NewCoin(denom string, amount uint64) Coin {
	return Coin{Denom: denom, Amount: uint256.NewInt(amount)}
}

// ZeroAmount returns a fresh zero amount.
func ZeroAmount() *uint256.Int {
	return new(uint256.Int)
}

// CloneAmount returns a copy of the provided amount, treating nil as zero.
func CloneAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}

// AddAmounts returns a+b, failing when the sum exceeds AmountBits.
func AddAmounts(a, b *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(CloneAmount(a), CloneAmount(b))
	if overflow || sum.BitLen() > AmountBits {
		return nil, ErrAmountOverflow
	}
	return sum, nil
}

// SubAmounts returns a-b, failing instead of wrapping when b > a.
func SubAmounts(a, b *uint256.Int) (*uint256.Int, error) {
	diff, underflow := new(uint256.Int).SubOverflow(CloneAmount(a), CloneAmount(b))
	if underflow {
		return nil, ErrAmountUnderflow
	}
	return diff, nil
}

// ParseAmount decodes a base-10 amount and enforces the ledger width.
func ParseAmount(raw string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	value, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if value.BitLen() > AmountBits {
		return nil, ErrAmountOverflow
	}
	return value, nil
}

// AmountFromBig converts a big integer into a bounded ledger amount.
func AmountFromBig(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, ErrAmountUnderflow
	}
	out, overflow := uint256.FromBig(v)
	if overflow || out.BitLen() > AmountBits {
		return nil, ErrAmountOverflow
	}
	return out, nil
}

// Validate checks the denom is well formed and the amount is in range.
func (c Coin) Validate() error {
	denom := strings.TrimSpace(c.Denom)
	if denom == "" || denom != c.Denom {
		return fmt.Errorf("%w: %q", ErrInvalidDenom, c.Denom)
	}
	if c.Amount != nil && c.Amount.BitLen() > AmountBits {
		return ErrAmountOverflow
	}
	return nil
}

// IsZero reports whether the coin carries no value.
func (c Coin) IsZero() bool {
	return c.Amount == nil || c.Amount.IsZero()
}

// String renders the coin as "<amount><denom>", e.g. "15gamm/pool/1".
func (c Coin) String() string {
	return CloneAmount(c.Amount).Dec() + c.Denom
}

// Clone returns a deep copy of the coin.
func (c Coin) Clone() Coin {
	return Coin{Denom: c.Denom, Amount: CloneAmount(c.Amount)}
}

type coinJSON struct {
	Denom  string      `json:"denom"`
	Amount json.Number `json:"amount"`
}

// MarshalJSON encodes the amount as a decimal string.
func (c Coin) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Denom  string `json:"denom"`
		Amount string `json:"amount"`
	}{Denom: c.Denom, Amount: CloneAmount(c.Amount).Dec()})
}

// UnmarshalJSON accepts the amount either as a JSON string or a bare number.
func (c *Coin) UnmarshalJSON(data []byte) error {
	var raw coinJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	amount, err := ParseAmount(raw.Amount.String())
	if err != nil {
		return err
	}
	c.Denom = raw.Denom
	c.Amount = amount
	return nil
}

// String joins the coins with commas.
func (cs Coins) String() string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, ",")
}

// Validate checks every coin in the set.
func (cs Coins) Validate() error {
	for _, c := range cs {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy of the set.
func (cs Coins) Clone() Coins {
	if cs == nil {
		return nil
	}
	out := make(Coins, len(cs))
	for i, c := range cs {
		out[i] = c.Clone()
	}
	return out
}
