package bank

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shark/core/state"
	"shark/core/types"
	"shark/crypto"
)

var (
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrInvalidCoins        = errors.New("bank: invalid coins")
	ErrInvalidLock         = errors.New("bank: invalid lock")
)

// Keeper moves balances between accounts and records token locks. It writes
// through the supplied state manager, so its effects commit or roll back with
// the surrounding transaction.
type Keeper struct {
	manager *state.Manager
	now     func() time.Time
	newID   func() string
}

// NewKeeper constructs a keeper over manager using the wall clock.
func NewKeeper(manager *state.Manager) *Keeper {
	return &Keeper{
		manager: manager,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

// WithClock overrides the time source used to stamp locks.
func (k *Keeper) WithClock(now func() time.Time) *Keeper {
	if now != nil {
		k.now = now
	}
	return k
}

func (k *Keeper) ready() error {
	if k == nil || k.manager == nil {
		return fmt.Errorf("bank: state manager required")
	}
	return nil
}

// Balance returns the balance of addr in denom.
func (k *Keeper) Balance(addr crypto.Address, denom string) (*types.Coin, error) {
	if err := k.ready(); err != nil {
		return nil, err
	}
	amount, err := k.manager.Balance(addr, denom)
	if err != nil {
		return nil, err
	}
	return &types.Coin{Denom: denom, Amount: amount}, nil
}

// Send debits every coin from from and credits it to to. Any shortfall fails
// the whole send.
func (k *Keeper) Send(from, to crypto.Address, coins types.Coins) error {
	if err := k.ready(); err != nil {
		return err
	}
	if err := coins.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCoins, err)
	}
	for _, coin := range coins {
		if coin.IsZero() {
			continue
		}
		balance, err := k.manager.Balance(from, coin.Denom)
		if err != nil {
			return err
		}
		remaining, err := types.SubAmounts(balance, coin.Amount)
		if err != nil {
			return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from, types.Coin{Denom: coin.Denom, Amount: balance}, coin)
		}
		if err := k.manager.SetBalance(from, coin.Denom, remaining); err != nil {
			return err
		}
		credit, err := k.manager.Balance(to, coin.Denom)
		if err != nil {
			return err
		}
		credited, err := types.AddAmounts(credit, coin.Amount)
		if err != nil {
			return err
		}
		if err := k.manager.SetBalance(to, coin.Denom, credited); err != nil {
			return err
		}
	}
	return nil
}

// Mint creates coins in to and grows the tracked supply.
func (k *Keeper) Mint(to crypto.Address, coins types.Coins) error {
	if err := k.ready(); err != nil {
		return err
	}
	if err := coins.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCoins, err)
	}
	for _, coin := range coins {
		supply, err := k.manager.Supply(coin.Denom)
		if err != nil {
			return err
		}
		grown, err := types.AddAmounts(supply, coin.Amount)
		if err != nil {
			return err
		}
		balance, err := k.manager.Balance(to, coin.Denom)
		if err != nil {
			return err
		}
		credited, err := types.AddAmounts(balance, coin.Amount)
		if err != nil {
			return err
		}
		if err := k.manager.SetSupply(coin.Denom, grown); err != nil {
			return err
		}
		if err := k.manager.SetBalance(to, coin.Denom, credited); err != nil {
			return err
		}
	}
	return nil
}

// Lock records a time lock over coin, held in holder's account on behalf of
// owner. holder must cover the amount.
func (k *Keeper) Lock(holder, owner crypto.Address, coin types.Coin, duration time.Duration) (*state.TokenLock, error) {
	if err := k.ready(); err != nil {
		return nil, err
	}
	if err := coin.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLock, err)
	}
	if coin.IsZero() || duration <= 0 {
		return nil, fmt.Errorf("%w: amount and duration must be positive", ErrInvalidLock)
	}
	held, err := k.manager.Balance(holder, coin.Denom)
	if err != nil {
		return nil, err
	}
	if held.Lt(coin.Amount) {
		return nil, fmt.Errorf("%w: holder has %s, lock needs %s", ErrInsufficientBalance, types.Coin{Denom: coin.Denom, Amount: held}, coin)
	}
	lock := &state.TokenLock{
		ID:       k.newID(),
		Owner:    owner,
		Denom:    coin.Denom,
		Amount:   types.CloneAmount(coin.Amount),
		Duration: duration,
		LockedAt: k.now().UTC().Truncate(time.Second),
	}
	if err := k.manager.PutLock(lock); err != nil {
		return nil, err
	}
	return lock, nil
}

// Locks returns the locks recorded for owner.
func (k *Keeper) Locks(owner crypto.Address) ([]*state.TokenLock, error) {
	if err := k.ready(); err != nil {
		return nil, err
	}
	return k.manager.Locks(owner)
}
