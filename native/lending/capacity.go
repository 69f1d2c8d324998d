package lending

import (
	"context"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"shark/core/types"
)

// Valuation is the breakdown of a borrower's borrowing capacity.
type Valuation struct {
	PoolID   uint64
	Base     types.Coin
	Other    types.Coin
	Price    decimal.Decimal
	Value    decimal.Decimal
	Debt     *uint256.Int
	Capacity decimal.Decimal
}

// partitionReserves splits pool reserves into the single asset that is not
// the funds denom (base) and the single asset that is (other).
func partitionReserves(assets types.Coins, fundsDenom string) (types.Coin, types.Coin, error) {
	var bases, others types.Coins
	for _, asset := range assets {
		if asset.Denom == fundsDenom {
			others = append(others, asset)
		} else {
			bases = append(bases, asset)
		}
	}
	if len(bases) != 1 || len(others) != 1 {
		return types.Coin{}, types.Coin{}, &DiagnosticError{
			Msg: fmt.Sprintf("pool reserves [%s] must hold exactly one %s asset and one other asset", assets, fundsDenom),
		}
	}
	return bases[0].Clone(), others[0].Clone(), nil
}

// collateralValue prices posted pool shares in funds-denom units. The share of
// the pool held is collateral/base; half the value comes from the base leg and
// half from the funds leg converted at the spot price.
func collateralValue(collateral *uint256.Int, base, other types.Coin, price decimal.Decimal) (*big.Rat, error) {
	if price.IsNegative() {
		return nil, &DiagnosticError{Msg: fmt.Sprintf("negative spot price %s", price)}
	}
	if base.IsZero() {
		return nil, fmt.Errorf("%w: pool holds no %s", ErrInsufficientCollateral, base.Denom)
	}
	baseAmount := amountRat(base.Amount)
	ratio := new(big.Rat).Quo(amountRat(collateral), baseAmount)
	half := new(big.Rat).Quo(ratio, big.NewRat(2, 1))

	baseLeg := new(big.Rat).Mul(half, baseAmount)
	otherLeg := new(big.Rat).Mul(half, amountRat(other.Amount))
	otherLeg.Mul(otherLeg, price.Rat())
	return baseLeg.Add(baseLeg, otherLeg), nil
}

// capacityOf is max(0, value - debt), truncated to DecimalPlaces.
func capacityOf(value *big.Rat, debt *uint256.Int) decimal.Decimal {
	remaining := new(big.Rat).Sub(value, amountRat(debt))
	return ratToDecimal(remaining)
}

func (e *Engine) valuate(ctx context.Context, cfg *Config, debt *Debt) (*Valuation, error) {
	if e.oracle == nil {
		return nil, errNilOracle
	}
	poolID, err := ParsePoolID(cfg.CollateralDenom)
	if err != nil {
		return nil, err
	}
	state, err := e.oracle.PoolState(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("%w: pool %d state: %w", ErrOracle, poolID, err)
	}
	base, other, err := partitionReserves(state.Assets, cfg.FundsDenom)
	if err != nil {
		return nil, err
	}
	price, err := e.oracle.SpotPrice(ctx, poolID, base.Denom, cfg.FundsDenom)
	if err != nil {
		return nil, fmt.Errorf("%w: pool %d spot price: %w", ErrOracle, poolID, err)
	}
	value, err := collateralValue(debt.Collateral, base, other, price)
	if err != nil {
		return nil, err
	}
	return &Valuation{
		PoolID:   poolID,
		Base:     base,
		Other:    other,
		Price:    price,
		Value:    ratToDecimal(value),
		Debt:     types.CloneAmount(debt.Debt),
		Capacity: capacityOf(value, debt.Debt),
	}, nil
}
