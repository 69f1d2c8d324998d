package lending

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"shark/core/types"
)

// PoolState is the reserve composition of an AMM pool.
type PoolState struct {
	PoolID uint64
	Assets types.Coins
}

// PoolOracle answers read-only queries against the external AMM. Both calls
// may block on I/O and must honour ctx cancellation.
type PoolOracle interface {
	PoolState(ctx context.Context, poolID uint64) (PoolState, error)
	// SpotPrice returns the price of one unit of base expressed in quote.
	SpotPrice(ctx context.Context, poolID uint64, base, quote string) (decimal.Decimal, error)
}

// ParsePoolID extracts the numeric pool id from a gamm/pool/<id> denom.
func ParsePoolID(denom string) (uint64, error) {
	parts := strings.Split(denom, "/")
	if len(parts) != 3 || parts[0] != "gamm" || parts[1] != "pool" {
		return 0, fmt.Errorf("%w: collateral denom %q is not gamm/pool/<id>", ErrInvalidConfig, denom)
	}
	id, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: collateral denom %q has non-numeric pool id", ErrInvalidConfig, denom)
	}
	return id, nil
}
