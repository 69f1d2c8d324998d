package state

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"shark/core/types"
	"shark/crypto"
	"shark/native/lending"
)

type storedLendingConfig struct {
	Admin           string
	FundsDenom      string
	CollateralDenom string
}

type storedLendPool struct {
	Available *big.Int
	Used      *big.Int
}

type storedFunds struct {
	Value *big.Int
}

type storedDebt struct {
	Debt       *big.Int
	Collateral *big.Int
}

func toBig(v *uint256.Int) *big.Int {
	return types.CloneAmount(v).ToBig()
}

func fromBig(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return types.ZeroAmount(), nil
	}
	out, err := types.AmountFromBig(v)
	if err != nil {
		return nil, fmt.Errorf("state: stored amount %s: %w", v, err)
	}
	return out, nil
}

func lenderKey(addr crypto.Address) []byte {
	return prefixedKey(lendingLenderPrefix, addr.Bytes())
}

func borrowerKey(addr crypto.Address) []byte {
	return prefixedKey(lendingBorrowerPrefix, addr.Bytes())
}

// GetConfig returns the lending configuration, or nil before instantiation.
func (m *Manager) GetConfig() (*lending.Config, error) {
	stored := new(storedLendingConfig)
	ok, err := m.KVGet(lendingConfigKey, stored)
	if err != nil || !ok {
		return nil, err
	}
	admin, err := crypto.DecodeAddress(stored.Admin)
	if err != nil {
		return nil, fmt.Errorf("state: stored admin: %w", err)
	}
	return &lending.Config{
		Admin:           admin,
		FundsDenom:      stored.FundsDenom,
		CollateralDenom: stored.CollateralDenom,
	}, nil
}

// PutConfig stores the lending configuration.
func (m *Manager) PutConfig(cfg *lending.Config) error {
	if cfg == nil {
		return fmt.Errorf("state: nil lending config")
	}
	return m.KVPut(lendingConfigKey, &storedLendingConfig{
		Admin:           cfg.Admin.String(),
		FundsDenom:      cfg.FundsDenom,
		CollateralDenom: cfg.CollateralDenom,
	})
}

// GetPool returns the liquidity record, or nil before instantiation.
func (m *Manager) GetPool() (*lending.LendPool, error) {
	stored := new(storedLendPool)
	ok, err := m.KVGet(lendingPoolKey, stored)
	if err != nil || !ok {
		return nil, err
	}
	available, err := fromBig(stored.Available)
	if err != nil {
		return nil, err
	}
	used, err := fromBig(stored.Used)
	if err != nil {
		return nil, err
	}
	return &lending.LendPool{Available: available, Used: used}, nil
}

// PutPool stores the liquidity record.
func (m *Manager) PutPool(pool *lending.LendPool) error {
	if pool == nil {
		return fmt.Errorf("state: nil lend pool")
	}
	return m.KVPut(lendingPoolKey, &storedLendPool{Available: toBig(pool.Available), Used: toBig(pool.Used)})
}

// GetLender returns the lender record of addr, or nil when absent.
func (m *Manager) GetLender(addr crypto.Address) (*lending.Funds, error) {
	stored := new(storedFunds)
	ok, err := m.KVGet(lenderKey(addr), stored)
	if err != nil || !ok {
		return nil, err
	}
	value, err := fromBig(stored.Value)
	if err != nil {
		return nil, err
	}
	return &lending.Funds{Value: value}, nil
}

// PutLender replaces the lender record of addr.
func (m *Manager) PutLender(addr crypto.Address, funds *lending.Funds) error {
	if funds == nil {
		return fmt.Errorf("state: nil lender record")
	}
	return m.KVPut(lenderKey(addr), &storedFunds{Value: toBig(funds.Value)})
}

// GetBorrower returns the borrower position of addr, or nil when absent.
func (m *Manager) GetBorrower(addr crypto.Address) (*lending.Debt, error) {
	stored := new(storedDebt)
	ok, err := m.KVGet(borrowerKey(addr), stored)
	if err != nil || !ok {
		return nil, err
	}
	debt, err := fromBig(stored.Debt)
	if err != nil {
		return nil, err
	}
	collateral, err := fromBig(stored.Collateral)
	if err != nil {
		return nil, err
	}
	return &lending.Debt{Debt: debt, Collateral: collateral}, nil
}

// PutBorrower replaces the borrower position of addr.
func (m *Manager) PutBorrower(addr crypto.Address, debt *lending.Debt) error {
	if debt == nil {
		return fmt.Errorf("state: nil borrower record")
	}
	return m.KVPut(borrowerKey(addr), &storedDebt{Debt: toBig(debt.Debt), Collateral: toBig(debt.Collateral)})
}
