package lending

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"shark/core/types"
	"shark/crypto"
)

// Attribute is a human-readable key/value emitted by an action.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Response is the result of a state transition: attributes describing what
// happened and the outbound instructions the host must perform once the
// state writes have committed.
type Response struct {
	Attributes []Attribute `json:"attributes"`
	Messages   []Message   `json:"messages"`
}

// NewResponse returns an empty response.
func NewResponse() *Response {
	return &Response{Attributes: []Attribute{}, Messages: []Message{}}
}

// AddAttribute appends an attribute and returns the response for chaining.
func (r *Response) AddAttribute(key, value string) *Response {
	r.Attributes = append(r.Attributes, Attribute{Key: key, Value: value})
	return r
}

// AddMessage appends an outbound instruction.
func (r *Response) AddMessage(msg Message) *Response {
	r.Messages = append(r.Messages, msg)
	return r
}

// Attribute returns the first value recorded under key.
func (r *Response) Attribute(key string) (string, bool) {
	if r == nil {
		return "", false
	}
	for _, attr := range r.Attributes {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}

// Message is a declarative outbound instruction. Exactly one field is set.
type Message struct {
	BankSend   *BankSend   `json:"bank_send,omitempty"`
	LockTokens *LockTokens `json:"lock_tokens,omitempty"`
}

// BankSend moves coins out of the module account to ToAddress.
type BankSend struct {
	ToAddress crypto.Address
	Amount    types.Coins
}

func (m BankSend) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ToAddress string      `json:"to_address"`
		Amount    types.Coins `json:"amount"`
	}{ToAddress: m.ToAddress.String(), Amount: m.Amount})
}

// LockTokens time-locks module-held coins for Duration.
type LockTokens struct {
	Denom    string
	Amount   *uint256.Int
	Duration time.Duration
}

func (m LockTokens) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Denom    string `json:"denom"`
		Amount   string `json:"amount"`
		Duration string `json:"duration"`
	}{Denom: m.Denom, Amount: types.CloneAmount(m.Amount).Dec(), Duration: formatDuration(m.Duration)})
}

// formatDuration renders whole hours as "336h" and anything else with
// time.Duration's own formatting.
func formatDuration(d time.Duration) string {
	if d > 0 && d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int64(d/time.Hour))
	}
	return d.String()
}
