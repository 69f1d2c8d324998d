package lending

import "shark/core/types"

// MatchFunds checks that exactly one coin of the expected denom is attached
// and returns its amount. A zero amount is accepted here; callers decide
// whether zero is meaningful.
func MatchFunds(funds types.Coins, denom string) (*Funds, error) {
	if len(funds) != 1 {
		return nil, ErrFundsRequired
	}
	coin := funds[0]
	if coin.Denom != denom {
		offending := coin.Clone()
		return nil, &InvalidFundsError{Funds: &offending, Expected: denom}
	}
	return &Funds{Value: types.CloneAmount(coin.Amount)}, nil
}
