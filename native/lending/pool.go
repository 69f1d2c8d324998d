package lending

import (
	"fmt"

	"shark/core/types"
	"shark/crypto"
)

// SupplyFunds records the attached funds-denom coin as the lender's deposit
// and credits the pool. A repeat deposit replaces the lender record while the
// pool keeps accumulating every deposit.
func (e *Engine) SupplyFunds(sender crypto.Address, funds types.Coins) (*Response, error) {
	cfg, err := e.begin(ActionSupplyFunds)
	if err != nil {
		return nil, err
	}
	deposit, err := MatchFunds(funds, cfg.FundsDenom)
	if err != nil {
		return nil, err
	}
	pool, err := e.loadPool()
	if err != nil {
		return nil, err
	}
	available, err := types.AddAmounts(pool.Available, deposit.Value)
	if err != nil {
		return nil, fmt.Errorf("pool available: %w", err)
	}
	pool.Available = available

	if err := e.state.PutLender(sender, deposit); err != nil {
		return nil, err
	}
	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}
	return NewResponse().
		AddAttribute("action", ActionSupplyFunds).
		AddAttribute("available_funds", pool.Available.Dec()), nil
}
