package oracle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"shark/core/types"
	"shark/native/lending"
	"shark/services/lending/config"
)

// ErrUnknownPool is returned by Static for pools it was not given.
var ErrUnknownPool = errors.New("oracle: unknown pool")

// ErrUnknownPair is returned by Static when no price was set for a pair.
var ErrUnknownPair = errors.New("oracle: unknown price pair")

type staticPool struct {
	assets types.Coins
	prices map[string]decimal.Decimal
}

// Static serves fixed pool compositions and prices. It backs development
// deployments and tests that have no LCD to talk to.
type Static struct {
	mu    sync.RWMutex
	pools map[uint64]*staticPool
}

var _ lending.PoolOracle = (*Static)(nil)

// NewStatic returns an empty static oracle.
func NewStatic() *Static {
	return &Static{pools: make(map[uint64]*staticPool)}
}

// SetPool replaces the reserves of poolID.
func (s *Static) SetPool(poolID uint64, assets types.Coins) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pool := s.pool(poolID)
	pool.assets = assets.Clone()
}

// SetPrice records the price of base in quote. The inverse pair is derived
// unless the price is zero.
func (s *Static) SetPrice(poolID uint64, base, quote string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pool := s.pool(poolID)
	pool.prices[pairKey(base, quote)] = price
	if !price.IsZero() {
		pool.prices[pairKey(quote, base)] = decimal.NewFromInt(1).DivRound(price, lending.DecimalPlaces)
	}
}

func (s *Static) pool(poolID uint64) *staticPool {
	pool, ok := s.pools[poolID]
	if !ok {
		pool = &staticPool{prices: make(map[string]decimal.Decimal)}
		s.pools[poolID] = pool
	}
	return pool
}

// PoolState implements lending.PoolOracle.
func (s *Static) PoolState(ctx context.Context, poolID uint64) (lending.PoolState, error) {
	if err := ctx.Err(); err != nil {
		return lending.PoolState{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	pool, ok := s.pools[poolID]
	if !ok {
		return lending.PoolState{}, fmt.Errorf("%w %d", ErrUnknownPool, poolID)
	}
	return lending.PoolState{PoolID: poolID, Assets: pool.assets.Clone()}, nil
}

// SpotPrice implements lending.PoolOracle.
func (s *Static) SpotPrice(ctx context.Context, poolID uint64, base, quote string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	pool, ok := s.pools[poolID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w %d", ErrUnknownPool, poolID)
	}
	price, ok := pool.prices[pairKey(base, quote)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w %s/%s in pool %d", ErrUnknownPair, base, quote, poolID)
	}
	return price, nil
}

func pairKey(base, quote string) string { return base + "/" + quote }

// FromConfig builds the oracle described by cfg. An endpoint selects the LCD
// client; otherwise the static pools are loaded, pricing each pool's
// non-funds asset in fundsDenom.
func FromConfig(cfg config.OracleConfig, fundsDenom string) (lending.PoolOracle, error) {
	if cfg.Endpoint != "" {
		return NewHTTP(cfg.Endpoint, Options{
			Timeout:           cfg.TimeoutDuration(),
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
		})
	}
	static := NewStatic()
	for _, sp := range cfg.Static {
		denoms := make([]string, 0, len(sp.Assets))
		for denom := range sp.Assets {
			denoms = append(denoms, denom)
		}
		sort.Strings(denoms)
		assets := make(types.Coins, 0, len(denoms))
		for _, denom := range denoms {
			amount, err := types.ParseAmount(sp.Assets[denom])
			if err != nil {
				return nil, fmt.Errorf("oracle: static pool %d asset %s: %w", sp.PoolID, denom, err)
			}
			assets = append(assets, types.Coin{Denom: denom, Amount: amount})
		}
		static.SetPool(sp.PoolID, assets)
		if sp.Price == "" {
			continue
		}
		price, err := decimal.NewFromString(sp.Price)
		if err != nil {
			return nil, fmt.Errorf("oracle: static pool %d price %q: %w", sp.PoolID, sp.Price, err)
		}
		for _, denom := range denoms {
			if denom != fundsDenom {
				static.SetPrice(sp.PoolID, denom, fundsDenom, price)
			}
		}
	}
	return static, nil
}
