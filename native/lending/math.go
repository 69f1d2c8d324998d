package lending

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"shark/core/types"
)

// DecimalPlaces is the fractional precision of collateral valuation.
// Intermediate values are exact; results are truncated to this many places.
const DecimalPlaces = 18

var decimalScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(DecimalPlaces), nil)

func amountRat(v *uint256.Int) *big.Rat {
	return new(big.Rat).SetInt(types.CloneAmount(v).ToBig())
}

// ratToDecimal truncates r toward zero at DecimalPlaces. Negative values clamp
// to zero.
func ratToDecimal(r *big.Rat) decimal.Decimal {
	if r == nil || r.Sign() <= 0 {
		return decimal.Zero
	}
	scaled := new(big.Int).Mul(r.Num(), decimalScale)
	scaled.Quo(scaled, r.Denom())
	return decimal.NewFromBigInt(scaled, -DecimalPlaces)
}

func amountDecimal(v *uint256.Int) decimal.Decimal {
	return decimal.NewFromBigInt(types.CloneAmount(v).ToBig(), 0)
}
