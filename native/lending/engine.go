package lending

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/holiman/uint256"

	"shark/core/types"
	"shark/crypto"
	nativecommon "shark/native/common"
)

const (
	moduleName = "lending"

	// ContractName and ContractVersion are recorded at instantiation so a
	// later migration can tell which layout the stored records use.
	ContractName    = "crates.io:shark"
	ContractVersion = "0.1.0"

	// CollateralLockDuration is how long posted collateral stays locked.
	CollateralLockDuration = 336 * time.Hour
)

// Action names, used both as the "action" attribute and as pause flows.
const (
	ActionInstantiate       = "instantiate"
	ActionSupplyFunds       = "supply_funds"
	ActionSupplyCollateral  = "supply_collateral"
	ActionBorrow            = "borrow"
	ActionRepay             = "repay"
	ActionDistributeRewards = "distribute_rewards"
)

// FlowName returns the pause key guarding an action, e.g. "lending.borrow".
func FlowName(action string) string {
	return moduleName + "." + action
}

type engineState interface {
	GetConfig() (*Config, error)
	PutConfig(cfg *Config) error
	GetPool() (*LendPool, error)
	PutPool(pool *LendPool) error
	GetLender(addr crypto.Address) (*Funds, error)
	PutLender(addr crypto.Address, funds *Funds) error
	GetBorrower(addr crypto.Address) (*Debt, error)
	PutBorrower(addr crypto.Address, debt *Debt) error
	PutContractInfo(name, version string) error
}

// Engine applies the lending state transitions against a transactional state
// view. Getters return (nil, nil) for absent records. The engine performs no
// transfers itself; moving coins is described by the returned messages.
type Engine struct {
	state  engineState
	oracle PoolOracle
	pauses nativecommon.PauseView
}

// NewEngine constructs an engine that values collateral with oracle.
func NewEngine(oracle PoolOracle) *Engine {
	return &Engine{oracle: oracle}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// Instantiate validates msg and writes Config, an empty LendPool and the
// contract version. It may only run once per state.
func (e *Engine) Instantiate(sender crypto.Address, msg InstantiateMsg) (*Response, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	existing, err := e.state.GetConfig()
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyInstantiated
	}
	adminStr := strings.TrimSpace(msg.Admin)
	if adminStr == "" {
		adminStr = sender.String()
	}
	admin, err := crypto.ValidateAddress(adminStr, sender.Prefix())
	if err != nil {
		return nil, fmt.Errorf("%w: admin: %w", ErrInvalidConfig, err)
	}
	cfg := &Config{
		Admin:           admin,
		FundsDenom:      strings.TrimSpace(msg.FundsDenom),
		CollateralDenom: strings.TrimSpace(msg.CollateralDenom),
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if err := e.state.PutContractInfo(ContractName, ContractVersion); err != nil {
		return nil, err
	}
	if err := e.state.PutConfig(cfg); err != nil {
		return nil, err
	}
	if err := e.state.PutPool(&LendPool{Available: types.ZeroAmount(), Used: types.ZeroAmount()}); err != nil {
		return nil, err
	}
	return NewResponse().
		AddAttribute("action", ActionInstantiate).
		AddAttribute("admin", admin.String()).
		AddAttribute("contract_name", ContractName).
		AddAttribute("contract_version", ContractVersion), nil
}

func validateConfig(cfg *Config) error {
	if err := (types.Coin{Denom: cfg.FundsDenom}).Validate(); err != nil {
		return fmt.Errorf("%w: funds denom: %w", ErrInvalidConfig, err)
	}
	if err := (types.Coin{Denom: cfg.CollateralDenom}).Validate(); err != nil {
		return fmt.Errorf("%w: collateral denom: %w", ErrInvalidConfig, err)
	}
	if cfg.FundsDenom == cfg.CollateralDenom {
		return fmt.Errorf("%w: funds and collateral denoms must differ", ErrInvalidConfig)
	}
	if _, err := ParsePoolID(cfg.CollateralDenom); err != nil {
		return err
	}
	return nil
}

// Execute dispatches msg to the action it selects. funds are the coins the
// host has already moved into the module account on the sender's behalf.
func (e *Engine) Execute(ctx context.Context, sender crypto.Address, funds types.Coins, msg ExecuteMsg) (*Response, error) {
	switch msg.Name() {
	case ActionSupplyFunds:
		return e.SupplyFunds(sender, funds)
	case ActionSupplyCollateral:
		return e.SupplyCollateral(sender, funds)
	case ActionBorrow:
		if len(funds) != 0 {
			return nil, ErrUnexpectedFunds
		}
		return e.Borrow(ctx, sender, msg.Borrow.Amount)
	case ActionRepay, ActionDistributeRewards:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAction, msg.Name())
	default:
		return nil, ErrInvalidMessage
	}
}

// Config returns the stored configuration.
func (e *Engine) Config() (*Config, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	cfg, err := e.state.GetConfig()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrNotInstantiated
	}
	return cfg, nil
}

// Pool returns the liquidity record.
func (e *Engine) Pool() (*LendPool, error) {
	if _, err := e.Config(); err != nil {
		return nil, err
	}
	return e.loadPool()
}

// Lender returns the recorded deposit of addr, or a zero record.
func (e *Engine) Lender(addr crypto.Address) (*Funds, error) {
	if _, err := e.Config(); err != nil {
		return nil, err
	}
	funds, err := e.state.GetLender(addr)
	if err != nil {
		return nil, err
	}
	if funds == nil {
		return &Funds{Value: types.ZeroAmount()}, nil
	}
	return funds, nil
}

// Borrower returns the position of addr and whether one exists.
func (e *Engine) Borrower(addr crypto.Address) (*Debt, bool, error) {
	if _, err := e.Config(); err != nil {
		return nil, false, err
	}
	debt, err := e.state.GetBorrower(addr)
	if err != nil {
		return nil, false, err
	}
	if debt == nil {
		return &Debt{Debt: types.ZeroAmount(), Collateral: types.ZeroAmount()}, false, nil
	}
	return debt, true, nil
}

// Capacity values the position of addr without changing state.
func (e *Engine) Capacity(ctx context.Context, addr crypto.Address) (*Valuation, error) {
	cfg, err := e.Config()
	if err != nil {
		return nil, err
	}
	debt, err := e.state.GetBorrower(addr)
	if err != nil {
		return nil, err
	}
	if debt == nil {
		return nil, ErrInsufficientCollateral
	}
	return e.valuate(ctx, cfg, debt)
}

func (e *Engine) loadPool() (*LendPool, error) {
	pool, err := e.state.GetPool()
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, ErrNotInstantiated
	}
	return pool.Clone(), nil
}

func (e *Engine) begin(action string) (*Config, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, FlowName(action)); err != nil {
		return nil, err
	}
	return e.Config()
}

func isZero(v *uint256.Int) bool {
	return v == nil || v.IsZero()
}
