package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	coreerrors "shark/core/errors"
	"shark/core/events"
	"shark/core/state"
	"shark/core/types"
	"shark/crypto"
	"shark/native/bank"
	nativecommon "shark/native/common"
	"shark/native/lending"
	"shark/observability"
	"shark/storage"
)

// ModuleAccountName seeds the address of the account that holds supplied
// funds and locked collateral.
const ModuleAccountName = "lending"

const actionMint = "mint"

var tracer = otel.Tracer("shark/core")

// Result is what a committed action produced.
type Result struct {
	EventID  string
	Response *lending.Response
	Locks    []*state.TokenLock
}

// Executor runs lending actions one at a time. Each action executes inside a
// single store transaction: attached funds move into the module account, the
// engine updates its records and the returned messages are applied through
// the bank. Any failure discards every write of the action.
type Executor struct {
	mu      sync.Mutex
	store   *storage.Store
	oracle  lending.PoolOracle
	pauses  nativecommon.PauseView
	emitter events.Emitter
	logger  *slog.Logger
	metrics *observability.LendingMetrics
	now     func() time.Time
	prefix  string
	module  crypto.Address
}

// Option customises an Executor.
type Option func(*Executor)

func WithPauses(p nativecommon.PauseView) Option { return func(x *Executor) { x.pauses = p } }

func WithEmitter(e events.Emitter) Option { return func(x *Executor) { x.emitter = e } }

func WithLogger(l *slog.Logger) Option { return func(x *Executor) { x.logger = l } }

func WithMetrics(m *observability.LendingMetrics) Option { return func(x *Executor) { x.metrics = m } }

func WithClock(now func() time.Time) Option { return func(x *Executor) { x.now = now } }

// WithAddressPrefix sets the bech32 prefix of the module account.
func WithAddressPrefix(prefix string) Option { return func(x *Executor) { x.prefix = prefix } }

// NewExecutor constructs an executor over store that values collateral with
// oracle.
func NewExecutor(store *storage.Store, oracle lending.PoolOracle, opts ...Option) (*Executor, error) {
	if store == nil {
		return nil, fmt.Errorf("core: store required")
	}
	if oracle == nil {
		return nil, fmt.Errorf("core: oracle required")
	}
	x := &Executor{
		store:   store,
		oracle:  oracle,
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		now:     time.Now,
		prefix:  crypto.DefaultPrefix,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(x)
		}
	}
	if x.emitter == nil {
		x.emitter = events.NoopEmitter{}
	}
	if x.logger == nil {
		x.logger = slog.Default()
	}
	x.module = crypto.ModuleAddress(x.prefix, ModuleAccountName)
	return x, nil
}

// ModuleAddress is the account holding pooled funds and collateral.
func (x *Executor) ModuleAddress() crypto.Address { return x.module }

// Instantiate establishes the lending configuration.
func (x *Executor) Instantiate(ctx context.Context, sender crypto.Address, msg lending.InstantiateMsg) (*Result, error) {
	return x.run(ctx, lending.ActionInstantiate, sender, nil, func(ctx context.Context, engine *lending.Engine, _ *bank.Keeper) (*lending.Response, error) {
		return engine.Instantiate(sender, msg)
	})
}

// Execute runs one inbound action with the attached funds.
func (x *Executor) Execute(ctx context.Context, sender crypto.Address, funds types.Coins, msg lending.ExecuteMsg) (*Result, error) {
	action := msg.Name()
	if action == "" {
		action = "invalid"
	}
	return x.run(ctx, action, sender, funds, func(ctx context.Context, engine *lending.Engine, _ *bank.Keeper) (*lending.Response, error) {
		return engine.Execute(ctx, sender, funds, msg)
	})
}

// Mint creates coins for to. Only the configured admin may mint.
func (x *Executor) Mint(ctx context.Context, sender, to crypto.Address, coins types.Coins) (*Result, error) {
	return x.run(ctx, actionMint, sender, nil, func(_ context.Context, engine *lending.Engine, keeper *bank.Keeper) (*lending.Response, error) {
		cfg, err := engine.Config()
		if err != nil {
			return nil, err
		}
		if !cfg.Admin.Equal(sender) {
			return nil, lending.ErrUnauthorized
		}
		if len(coins) == 0 {
			return nil, lending.ErrFundsRequired
		}
		if err := keeper.Mint(to, coins); err != nil {
			return nil, err
		}
		return lending.NewResponse().
			AddAttribute("action", actionMint).
			AddAttribute("recipient", to.String()).
			AddAttribute("amount", coins.String()), nil
	})
}

type actionFunc func(ctx context.Context, engine *lending.Engine, keeper *bank.Keeper) (*lending.Response, error)

func (x *Executor) run(ctx context.Context, action string, sender crypto.Address, funds types.Coins, fn actionFunc) (*Result, error) {
	ctx, span := tracer.Start(ctx, "lending."+action)
	defer span.End()
	span.SetAttributes(attribute.String("lending.sender", sender.String()))

	x.mu.Lock()
	defer x.mu.Unlock()

	start := x.now()
	result := &Result{EventID: uuid.NewString()}
	var pool *lending.LendPool
	err := x.store.Update(func(kv storage.KV) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		manager := state.NewManager(kv)
		keeper := bank.NewKeeper(manager).WithClock(x.now)
		if len(funds) > 0 {
			if err := keeper.Send(sender, x.module, funds); err != nil {
				return err
			}
		}
		engine := lending.NewEngine(x.oracle)
		engine.SetState(manager)
		engine.SetPauses(x.pauses)

		resp, err := fn(ctx, engine, keeper)
		if err != nil {
			return err
		}
		locks, err := x.apply(keeper, sender, resp)
		if err != nil {
			return err
		}
		result.Response = resp
		result.Locks = locks
		pool, err = manager.GetPool()
		return err
	})
	elapsed := x.now().Sub(start)

	ev := events.LendingAction{
		ID:       result.EventID,
		Action:   action,
		Sender:   sender.String(),
		Funds:    funds.Clone(),
		Outcome:  events.OutcomeSuccess,
		At:       start.UTC(),
		Duration: elapsed,
	}
	if err != nil {
		class := coreerrors.Classify(err)
		ev.Outcome = string(class)
		ev.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, string(class))
		x.metrics.RecordAction(action, string(class), elapsed)
		x.logger.Warn("lending action rejected",
			"action", action, "outcome", class, "sender", sender.String(), "funds", funds.String(), "error", err)
		x.emitter.Emit(ev)
		return nil, err
	}

	ev.Attributes = result.Response.Attributes
	ev.Messages = result.Response.Messages
	for _, lock := range result.Locks {
		ev.LockIDs = append(ev.LockIDs, lock.ID)
	}
	x.metrics.RecordAction(action, events.OutcomeSuccess, elapsed)
	if pool != nil {
		x.metrics.SetPool(types.CloneAmount(pool.Available).ToBig(), types.CloneAmount(pool.Used).ToBig())
	}
	x.logger.Info("lending action executed",
		"action", action, "outcome", events.OutcomeSuccess, "sender", sender.String(),
		"funds", funds.String(), "messages", len(result.Response.Messages), "duration", elapsed)
	x.emitter.Emit(ev)
	return result, nil
}

// apply performs the outbound instructions of resp from the module account.
func (x *Executor) apply(keeper *bank.Keeper, sender crypto.Address, resp *lending.Response) ([]*state.TokenLock, error) {
	if resp == nil {
		return nil, nil
	}
	var locks []*state.TokenLock
	for _, msg := range resp.Messages {
		switch {
		case msg.BankSend != nil:
			if err := keeper.Send(x.module, msg.BankSend.ToAddress, msg.BankSend.Amount); err != nil {
				return nil, fmt.Errorf("apply bank send: %w", err)
			}
			x.metrics.RecordMessage("bank_send")
		case msg.LockTokens != nil:
			coin := types.Coin{Denom: msg.LockTokens.Denom, Amount: msg.LockTokens.Amount}
			lock, err := keeper.Lock(x.module, sender, coin, msg.LockTokens.Duration)
			if err != nil {
				return nil, fmt.Errorf("apply lock tokens: %w", err)
			}
			locks = append(locks, lock)
			x.metrics.RecordMessage("lock_tokens")
		default:
			return nil, fmt.Errorf("core: empty outbound message")
		}
	}
	return locks, nil
}
