package core

import (
	"context"

	"shark/core/state"
	"shark/core/types"
	"shark/crypto"
	"shark/native/lending"
	"shark/storage"
)

// BorrowerView is a borrower position and whether it has ever been opened.
type BorrowerView struct {
	Debt   *lending.Debt
	Exists bool
}

func (x *Executor) view(fn func(engine *lending.Engine, manager *state.Manager) error) error {
	return x.store.View(func(r storage.Reader) error {
		manager := state.NewReader(r)
		engine := lending.NewEngine(x.oracle)
		engine.SetState(manager)
		return fn(engine, manager)
	})
}

// Config returns the lending configuration.
func (x *Executor) Config(ctx context.Context) (*lending.Config, error) {
	var out *lending.Config
	err := x.view(func(engine *lending.Engine, _ *state.Manager) error {
		cfg, err := engine.Config()
		out = cfg
		return err
	})
	return out, err
}

// ContractInfo returns the recorded contract name and version.
func (x *Executor) ContractInfo(ctx context.Context) (*state.ContractInfo, error) {
	var out *state.ContractInfo
	err := x.view(func(_ *lending.Engine, manager *state.Manager) error {
		info, err := manager.ContractInfo()
		if err == nil && info == nil {
			return lending.ErrNotInstantiated
		}
		out = info
		return err
	})
	return out, err
}

// Pool returns the liquidity record.
func (x *Executor) Pool(ctx context.Context) (*lending.LendPool, error) {
	var out *lending.LendPool
	err := x.view(func(engine *lending.Engine, _ *state.Manager) error {
		pool, err := engine.Pool()
		out = pool
		return err
	})
	return out, err
}

// Lender returns the recorded deposit of addr.
func (x *Executor) Lender(ctx context.Context, addr crypto.Address) (*lending.Funds, error) {
	var out *lending.Funds
	err := x.view(func(engine *lending.Engine, _ *state.Manager) error {
		funds, err := engine.Lender(addr)
		out = funds
		return err
	})
	return out, err
}

// Borrower returns the position of addr.
func (x *Executor) Borrower(ctx context.Context, addr crypto.Address) (*BorrowerView, error) {
	var out *BorrowerView
	err := x.view(func(engine *lending.Engine, _ *state.Manager) error {
		debt, exists, err := engine.Borrower(addr)
		out = &BorrowerView{Debt: debt, Exists: exists}
		return err
	})
	return out, err
}

// Capacity values the position of addr against the current pool state.
func (x *Executor) Capacity(ctx context.Context, addr crypto.Address) (*lending.Valuation, error) {
	var out *lending.Valuation
	err := x.view(func(engine *lending.Engine, _ *state.Manager) error {
		valuation, err := engine.Capacity(ctx, addr)
		out = valuation
		return err
	})
	return out, err
}

// Balances returns the bank balances of addr.
func (x *Executor) Balances(ctx context.Context, addr crypto.Address) (types.Coins, error) {
	var out types.Coins
	err := x.view(func(_ *lending.Engine, manager *state.Manager) error {
		balances, err := manager.Balances(addr)
		out = balances
		return err
	})
	return out, err
}

// Locks returns the collateral locks recorded for addr.
func (x *Executor) Locks(ctx context.Context, addr crypto.Address) ([]*state.TokenLock, error) {
	var out []*state.TokenLock
	err := x.view(func(_ *lending.Engine, manager *state.Manager) error {
		locks, err := manager.Locks(addr)
		out = locks
		return err
	})
	return out, err
}
