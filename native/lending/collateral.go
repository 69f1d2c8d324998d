package lending

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"shark/core/types"
	"shark/crypto"
)

// SupplyCollateral adds the attached pool shares to the borrower's position,
// creating it with zero debt on first deposit, and asks the host to lock the
// shares for CollateralLockDuration. A zero deposit is rejected with
// ErrInvalidAmount.
func (e *Engine) SupplyCollateral(sender crypto.Address, funds types.Coins) (*Response, error) {
	cfg, err := e.begin(ActionSupplyCollateral)
	if err != nil {
		return nil, err
	}
	deposit, err := MatchFunds(funds, cfg.CollateralDenom)
	if err != nil {
		return nil, err
	}
	// A zero deposit would ask the host to lock nothing.
	if isZero(deposit.Value) {
		return nil, ErrInvalidAmount
	}
	position, err := e.state.GetBorrower(sender)
	if err != nil {
		return nil, err
	}
	if position == nil {
		position = &Debt{Debt: types.ZeroAmount(), Collateral: deposit.Value}
	} else {
		position = position.Clone()
		collateral, err := types.AddAmounts(position.Collateral, deposit.Value)
		if err != nil {
			return nil, fmt.Errorf("collateral: %w", err)
		}
		position.Collateral = collateral
	}
	if err := e.state.PutBorrower(sender, position); err != nil {
		return nil, err
	}
	return NewResponse().
		AddMessage(Message{LockTokens: &LockTokens{
			Denom:    cfg.CollateralDenom,
			Amount:   types.CloneAmount(deposit.Value),
			Duration: CollateralLockDuration,
		}}).
		AddAttribute("action", ActionSupplyCollateral).
		AddAttribute("collateral", position.Collateral.Dec()).
		AddAttribute("debt", position.Debt.Dec()), nil
}

// Borrow lends amount of the funds denom to sender when the request fits the
// borrower's remaining capacity and the pool's available liquidity. The loan
// is recorded as debt and moved from available to used.
func (e *Engine) Borrow(ctx context.Context, sender crypto.Address, amount *uint256.Int) (*Response, error) {
	cfg, err := e.begin(ActionBorrow)
	if err != nil {
		return nil, err
	}
	if isZero(amount) {
		return nil, ErrInvalidAmount
	}
	if amount.BitLen() > types.AmountBits {
		return nil, types.ErrAmountOverflow
	}
	position, err := e.state.GetBorrower(sender)
	if err != nil {
		return nil, err
	}
	if position == nil {
		return nil, ErrInsufficientCollateral
	}
	valuation, err := e.valuate(ctx, cfg, position)
	if err != nil {
		return nil, err
	}
	if valuation.Capacity.IsZero() {
		return nil, ErrInsufficientCollateral
	}
	if amountDecimal(amount).GreaterThan(valuation.Capacity) {
		return nil, fmt.Errorf("%w: requested %s exceeds capacity %s", ErrInsufficientCollateral, amount.Dec(), valuation.Capacity)
	}

	pool, err := e.loadPool()
	if err != nil {
		return nil, err
	}
	available, err := types.SubAmounts(pool.Available, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: requested %s, available %s", ErrInsufficientLiquidity, amount.Dec(), types.CloneAmount(pool.Available).Dec())
	}
	used, err := types.AddAmounts(pool.Used, amount)
	if err != nil {
		return nil, fmt.Errorf("pool used: %w", err)
	}
	pool.Available, pool.Used = available, used

	position = position.Clone()
	debt, err := types.AddAmounts(position.Debt, amount)
	if err != nil {
		return nil, fmt.Errorf("debt: %w", err)
	}
	position.Debt = debt

	if err := e.state.PutBorrower(sender, position); err != nil {
		return nil, err
	}
	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}
	loan := types.Coin{Denom: cfg.FundsDenom, Amount: types.CloneAmount(amount)}
	return NewResponse().
		AddMessage(Message{BankSend: &BankSend{ToAddress: sender, Amount: types.Coins{loan}}}).
		AddAttribute("action", ActionBorrow).
		AddAttribute("borrowed_denom", cfg.FundsDenom).
		AddAttribute("borrowed_amount", amount.Dec()).
		AddAttribute("capacity", valuation.Capacity.String()).
		AddAttribute("debt", position.Debt.Dec()), nil
}
