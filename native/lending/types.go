package lending

import (
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"

	"shark/core/types"
	"shark/crypto"
)

// Config is fixed at instantiation and identifies the lendable asset and the
// accepted collateral.
type Config struct {
	// Admin is the validated account allowed to run privileged host actions.
	Admin crypto.Address
	// FundsDenom names the asset lenders supply and borrowers receive.
	FundsDenom string
	// CollateralDenom names the liquidity-pool share accepted as collateral,
	// in the form gamm/pool/<id>.
	CollateralDenom string
}

// LendPool is the process-wide liquidity record. Available plus Used always
// equals the sum of recorded lender contributions.
type LendPool struct {
	Available *uint256.Int
	Used      *uint256.Int
}

// Funds is a lender's most recently recorded deposit.
type Funds struct {
	Value *uint256.Int
}

// Debt is a borrower's position: outstanding debt and posted collateral.
type Debt struct {
	Debt       *uint256.Int
	Collateral *uint256.Int
}

// Clone returns a deep copy of the pool record.
func (p *LendPool) Clone() *LendPool {
	if p == nil {
		return nil
	}
	return &LendPool{Available: types.CloneAmount(p.Available), Used: types.CloneAmount(p.Used)}
}

// Clone returns a deep copy of the debt record.
func (d *Debt) Clone() *Debt {
	if d == nil {
		return nil
	}
	return &Debt{Debt: types.CloneAmount(d.Debt), Collateral: types.CloneAmount(d.Collateral)}
}

// InstantiateMsg establishes Config. Admin defaults to the caller when empty.
type InstantiateMsg struct {
	Admin           string `json:"admin,omitempty"`
	FundsDenom      string `json:"funds_denom"`
	CollateralDenom string `json:"collateral_denom"`
}

// Empty is the payload of actions that carry no arguments.
type Empty struct{}

// ExecuteMsg selects exactly one inbound action.
type ExecuteMsg struct {
	SupplyFunds       *Empty     `json:"supply_funds,omitempty"`
	SupplyCollateral  *Empty     `json:"supply_collateral,omitempty"`
	Borrow            *BorrowMsg `json:"borrow,omitempty"`
	Repay             *Empty     `json:"repay,omitempty"`
	DistributeRewards *Empty     `json:"distribute_rewards,omitempty"`
}

// Name returns the action name of the single selected variant, or "" when
// the message does not select exactly one.
func (m ExecuteMsg) Name() string {
	var names []string
	if m.SupplyFunds != nil {
		names = append(names, ActionSupplyFunds)
	}
	if m.SupplyCollateral != nil {
		names = append(names, ActionSupplyCollateral)
	}
	if m.Borrow != nil {
		names = append(names, ActionBorrow)
	}
	if m.Repay != nil {
		names = append(names, ActionRepay)
	}
	if m.DistributeRewards != nil {
		names = append(names, ActionDistributeRewards)
	}
	if len(names) != 1 {
		return ""
	}
	return names[0]
}

// BorrowMsg requests a loan of Amount units of the funds denom.
type BorrowMsg struct {
	Amount *uint256.Int
}

// MarshalJSON encodes the amount as a decimal string.
func (m BorrowMsg) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount string `json:"amount"`
	}{Amount: types.CloneAmount(m.Amount).Dec()})
}

// UnmarshalJSON accepts the amount as a JSON string or number.
func (m *BorrowMsg) UnmarshalJSON(data []byte) error {
	var raw struct {
		Amount json.Number `json:"amount"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	amount, err := types.ParseAmount(raw.Amount.String())
	if err != nil {
		return fmt.Errorf("borrow amount: %w", err)
	}
	m.Amount = amount
	return nil
}
