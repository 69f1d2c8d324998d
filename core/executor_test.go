package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"shark/core/events"
	"shark/core/types"
	"shark/crypto"
	nativecommon "shark/native/common"
	"shark/native/lending"
	"shark/storage"
)

const (
	ownerAddr    = "osmo1t3gjpqadhhqcd29v64xa06z66mmz7kazsvkp69"
	borrowerAddr = "osmo1y244hh4g6ku4kznyy5c53adgu9m8jucf0kmz82"
)

type fixedOracle struct {
	assets types.Coins
	price  decimal.Decimal
}

func (o fixedOracle) PoolState(_ context.Context, poolID uint64) (lending.PoolState, error) {
	return lending.PoolState{PoolID: poolID, Assets: o.assets.Clone()}, nil
}

func (o fixedOracle) SpotPrice(context.Context, uint64, string, string) (decimal.Decimal, error) {
	return o.price, nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []events.LendingAction
}

func (r *recordingEmitter) Emit(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if action, ok := ev.(events.LendingAction); ok {
		r.events = append(r.events, action)
	}
}

func (r *recordingEmitter) last() events.LendingAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type fixture struct {
	exec     *Executor
	emitter  *recordingEmitter
	owner    crypto.Address
	borrower crypto.Address
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store, err := storage.NewMemStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	emitter := &recordingEmitter{}
	oracle := fixedOracle{
		assets: types.Coins{types.NewCoin("usdc", 100), types.NewCoin("uosmo", 50)},
		price:  decimal.NewFromInt(1),
	}
	clock := func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }
	opts = append([]Option{WithEmitter(emitter), WithClock(clock)}, opts...)
	exec, err := NewExecutor(store, oracle, opts...)
	require.NoError(t, err)

	owner, err := crypto.DecodeAddress(ownerAddr)
	require.NoError(t, err)
	borrower, err := crypto.DecodeAddress(borrowerAddr)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = exec.Instantiate(ctx, owner, lending.InstantiateMsg{FundsDenom: "usdc", CollateralDenom: "gamm/pool/1"})
	require.NoError(t, err)
	_, err = exec.Mint(ctx, owner, owner, types.Coins{types.NewCoin("usdc", 200), types.NewCoin("uosmo", 500)})
	require.NoError(t, err)
	_, err = exec.Mint(ctx, owner, borrower, types.Coins{types.NewCoin("gamm/pool/1", 15)})
	require.NoError(t, err)

	return &fixture{exec: exec, emitter: emitter, owner: owner, borrower: borrower}
}

func (f *fixture) balance(t *testing.T, addr crypto.Address, denom string) uint64 {
	t.Helper()
	balances, err := f.exec.Balances(context.Background(), addr)
	require.NoError(t, err)
	for _, coin := range balances {
		if coin.Denom == denom {
			return coin.Amount.Uint64()
		}
	}
	return 0
}

func TestExecutorEndToEndBorrow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	module := f.exec.ModuleAddress()

	_, err := f.exec.Execute(ctx, f.owner, types.Coins{types.NewCoin("usdc", 200)}, lending.ExecuteMsg{SupplyFunds: &lending.Empty{}})
	require.NoError(t, err)
	require.Equal(t, uint64(0), f.balance(t, f.owner, "usdc"))
	require.Equal(t, uint64(200), f.balance(t, module, "usdc"))

	res, err := f.exec.Execute(ctx, f.borrower, types.Coins{types.NewCoin("gamm/pool/1", 15)}, lending.ExecuteMsg{SupplyCollateral: &lending.Empty{}})
	require.NoError(t, err)
	require.Len(t, res.Locks, 1)
	require.Equal(t, uint64(15), f.balance(t, module, "gamm/pool/1"))

	locks, err := f.exec.Locks(ctx, f.borrower)
	require.NoError(t, err)
	require.Len(t, locks, 1)
	require.Equal(t, res.Locks[0].ID, locks[0].ID)
	require.Equal(t, 336*time.Hour, locks[0].Duration)

	res, err = f.exec.Execute(ctx, f.borrower, nil, lending.ExecuteMsg{Borrow: &lending.BorrowMsg{Amount: uint256.NewInt(6)}})
	require.NoError(t, err)
	require.Equal(t, uint64(6), f.balance(t, f.borrower, "usdc"))
	require.Equal(t, uint64(194), f.balance(t, module, "usdc"))
	borrowed, ok := res.Response.Attribute("borrowed_amount")
	require.True(t, ok)
	require.Equal(t, "6", borrowed)

	pool, err := f.exec.Pool(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(194), pool.Available.Uint64())
	require.Equal(t, uint64(6), pool.Used.Uint64())

	position, err := f.exec.Borrower(ctx, f.borrower)
	require.NoError(t, err)
	require.True(t, position.Exists)
	require.Equal(t, uint64(6), position.Debt.Debt.Uint64())

	valuation, err := f.exec.Capacity(ctx, f.borrower)
	require.NoError(t, err)
	require.Equal(t, "16.5", valuation.Capacity.String())

	last := f.emitter.last()
	require.Equal(t, lending.ActionBorrow, last.Action)
	require.True(t, last.Succeeded())
}

func TestExecutorRollsBackFailedAction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.exec.Execute(ctx, f.owner, types.Coins{types.NewCoin("uosmo", 10)}, lending.ExecuteMsg{SupplyFunds: &lending.Empty{}})
	require.ErrorIs(t, err, lending.ErrInvalidFunds)
	require.Equal(t, uint64(500), f.balance(t, f.owner, "uosmo"))
	require.Equal(t, uint64(0), f.balance(t, f.exec.ModuleAddress(), "uosmo"))

	last := f.emitter.last()
	require.Equal(t, "invalid_funds", last.Outcome)
	require.NotEmpty(t, last.Error)

	_, err = f.exec.Execute(ctx, f.borrower, nil, lending.ExecuteMsg{Borrow: &lending.BorrowMsg{Amount: uint256.NewInt(1)}})
	require.ErrorIs(t, err, lending.ErrInsufficientCollateral)

	pool, err := f.exec.Pool(ctx)
	require.NoError(t, err)
	require.True(t, pool.Available.IsZero())
}

func TestExecutorRejectsZeroCollateral(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.exec.Execute(ctx, f.borrower, types.Coins{types.NewCoin("gamm/pool/1", 0)}, lending.ExecuteMsg{SupplyCollateral: &lending.Empty{}})
	require.ErrorIs(t, err, lending.ErrInvalidAmount)
	require.Equal(t, "invalid_request", f.emitter.last().Outcome)

	locks, err := f.exec.Locks(ctx, f.borrower)
	require.NoError(t, err)
	require.Empty(t, locks)
	position, err := f.exec.Borrower(ctx, f.borrower)
	require.NoError(t, err)
	require.False(t, position.Exists)
	require.Equal(t, uint64(15), f.balance(t, f.borrower, "gamm/pool/1"))
}

func TestExecutorRejectsUnfundedDeposit(t *testing.T) {
	f := newFixture(t)
	_, err := f.exec.Execute(context.Background(), f.owner, types.Coins{types.NewCoin("usdc", 201)}, lending.ExecuteMsg{SupplyFunds: &lending.Empty{}})
	require.Error(t, err)
	require.Equal(t, "insufficient_balance", f.emitter.last().Outcome)
	require.Equal(t, uint64(200), f.balance(t, f.owner, "usdc"))
}

func TestExecutorMintRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	_, err := f.exec.Mint(context.Background(), f.borrower, f.borrower, types.Coins{types.NewCoin("usdc", 1)})
	require.ErrorIs(t, err, lending.ErrUnauthorized)
}

func TestExecutorHonoursPauses(t *testing.T) {
	f := newFixture(t, WithPauses(nativecommon.StaticPauses{"lending.borrow": true}))
	ctx := context.Background()
	_, err := f.exec.Execute(ctx, f.borrower, types.Coins{types.NewCoin("gamm/pool/1", 15)}, lending.ExecuteMsg{SupplyCollateral: &lending.Empty{}})
	require.NoError(t, err)
	_, err = f.exec.Execute(ctx, f.borrower, nil, lending.ExecuteMsg{Borrow: &lending.BorrowMsg{Amount: uint256.NewInt(1)}})
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)
}

func TestExecutorContractInfo(t *testing.T) {
	f := newFixture(t)
	info, err := f.exec.ContractInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, lending.ContractName, info.Name)
	require.Equal(t, lending.ContractVersion, info.Version)
}
