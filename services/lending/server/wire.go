package server

import (
	"strings"
	"time"

	"github.com/holiman/uint256"

	"shark/core"
	"shark/core/state"
	"shark/core/types"
	"shark/native/lending"
	"shark/services/lending/journal"
)

// InstantiateRequest configures the pool. Sender is required for operator
// tokens and defaults to the JWT subject otherwise.
type InstantiateRequest struct {
	Sender          string `json:"sender,omitempty" validate:"omitempty,bech32"`
	Admin           string `json:"admin,omitempty" validate:"omitempty,bech32"`
	FundsDenom      string `json:"funds_denom" validate:"required,denom"`
	CollateralDenom string `json:"collateral_denom" validate:"required,denom"`
}

// ExecuteRequest carries one lending action and the funds attached to it.
type ExecuteRequest struct {
	Sender string              `json:"sender,omitempty" validate:"omitempty,bech32"`
	Funds  types.Coins         `json:"funds,omitempty"`
	Msg    *lending.ExecuteMsg `json:"msg" validate:"required"`
}

// MintRequest credits coins to an account. Only the admin may mint.
type MintRequest struct {
	Sender string      `json:"sender,omitempty" validate:"omitempty,bech32"`
	To     string      `json:"to" validate:"required,bech32"`
	Coins  types.Coins `json:"coins" validate:"required,min=1"`
}

// LockView is a collateral lock as served by the API.
type LockView struct {
	ID       string    `json:"id"`
	Owner    string    `json:"owner"`
	Denom    string    `json:"denom"`
	Amount   string    `json:"amount"`
	Duration string    `json:"duration"`
	LockedAt time.Time `json:"locked_at"`
	UnlockAt time.Time `json:"unlock_at"`
}

// ResultView is the response to a committed action.
type ResultView struct {
	EventID    string              `json:"event_id"`
	Attributes []lending.Attribute `json:"attributes"`
	Messages   []lending.Message   `json:"messages"`
	Locks      []LockView          `json:"locks,omitempty"`
}

type ConfigView struct {
	Admin           string `json:"admin"`
	FundsDenom      string `json:"funds_denom"`
	CollateralDenom string `json:"collateral_denom"`
}

type ContractView struct {
	Name    string `json:"contract"`
	Version string `json:"version"`
}

type PoolView struct {
	Available string `json:"available"`
	Used      string `json:"used"`
}

type LenderView struct {
	Address string `json:"address"`
	Value   string `json:"value"`
}

type BorrowerView struct {
	Address    string `json:"address"`
	Exists     bool   `json:"exists"`
	Debt       string `json:"debt"`
	Collateral string `json:"collateral"`
}

// CapacityView reports how much more an address may borrow.
type CapacityView struct {
	Address  string     `json:"address"`
	PoolID   uint64     `json:"pool_id"`
	Base     types.Coin `json:"base"`
	Other    types.Coin `json:"other"`
	Price    string     `json:"price"`
	Value    string     `json:"value"`
	Debt     string     `json:"debt"`
	Capacity string     `json:"capacity"`
}

type BalancesView struct {
	Address  string      `json:"address"`
	Balances types.Coins `json:"balances"`
}

type LocksView struct {
	Address string     `json:"address"`
	Locks   []LockView `json:"locks"`
}

// ActionView is one journal entry.
type ActionView struct {
	ID         string            `json:"id"`
	Action     string            `json:"action"`
	Sender     string            `json:"sender"`
	Funds      string            `json:"funds,omitempty"`
	Outcome    string            `json:"outcome"`
	Error      string            `json:"error,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	LockIDs    []string          `json:"lock_ids,omitempty"`
	At         time.Time         `json:"at"`
	DurationMS int64             `json:"duration_ms"`
}

func amountString(v *uint256.Int) string {
	return types.CloneAmount(v).Dec()
}

func toLockView(lock *state.TokenLock) LockView {
	return LockView{
		ID:       lock.ID,
		Owner:    lock.Owner.String(),
		Denom:    lock.Denom,
		Amount:   amountString(lock.Amount),
		Duration: lock.Duration.String(),
		LockedAt: lock.LockedAt.UTC(),
		UnlockAt: lock.UnlockAt().UTC(),
	}
}

func toLockViews(locks []*state.TokenLock) []LockView {
	out := make([]LockView, 0, len(locks))
	for _, lock := range locks {
		if lock != nil {
			out = append(out, toLockView(lock))
		}
	}
	return out
}

func toResultView(res *core.Result) ResultView {
	view := ResultView{EventID: res.EventID}
	if res.Response != nil {
		view.Attributes = res.Response.Attributes
		view.Messages = res.Response.Messages
	}
	if len(res.Locks) > 0 {
		view.Locks = toLockViews(res.Locks)
	}
	return view
}

func toCapacityView(address string, v *lending.Valuation) CapacityView {
	return CapacityView{
		Address:  address,
		PoolID:   v.PoolID,
		Base:     v.Base,
		Other:    v.Other,
		Price:    v.Price.String(),
		Value:    v.Value.String(),
		Debt:     amountString(v.Debt),
		Capacity: v.Capacity.String(),
	}
}

func toActionView(entry journal.Entry) ActionView {
	view := ActionView{
		ID:         entry.ID,
		Action:     entry.Action,
		Sender:     entry.Sender,
		Funds:      entry.Funds,
		Outcome:    entry.Outcome,
		Error:      entry.Error,
		At:         entry.At.UTC(),
		DurationMS: entry.DurationMS,
	}
	if attrs, err := entry.AttributeMap(); err == nil && len(attrs) > 0 {
		view.Attributes = attrs
	}
	if entry.LockIDs != "" {
		view.LockIDs = strings.Split(entry.LockIDs, ",")
	}
	return view
}
