package state

import (
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/holiman/uint256"

	"shark/core/types"
	"shark/crypto"
)

// TokenLock is a time lock over coins held by the module on behalf of Owner.
type TokenLock struct {
	ID       string
	Owner    crypto.Address
	Denom    string
	Amount   *uint256.Int
	Duration time.Duration
	LockedAt time.Time
}

// UnlockAt is the earliest time the lock may be released.
func (l *TokenLock) UnlockAt() time.Time {
	return l.LockedAt.Add(l.Duration)
}

type storedTokenLock struct {
	ID       string
	Owner    string
	Denom    string
	Amount   *big.Int
	Duration uint64
	LockedAt uint64
}

func balanceKey(addr crypto.Address, denom string) []byte {
	return prefixedKey(bankBalancePrefix, addr.Bytes(), []byte(denom))
}

func denomsKey(addr crypto.Address) []byte {
	return prefixedKey(bankDenomsPrefix, addr.Bytes())
}

func supplyKey(denom string) []byte {
	return prefixedKey(bankSupplyPrefix, []byte(denom))
}

func lockKey(id string) []byte {
	return prefixedKey(bankLockPrefix, []byte(id))
}

func lockIndexKey(owner crypto.Address) []byte {
	return prefixedKey(bankLockIndex, owner.Bytes())
}

// Balance returns the balance of addr in denom. Missing balances are zero.
func (m *Manager) Balance(addr crypto.Address, denom string) (*uint256.Int, error) {
	var stored big.Int
	ok, err := m.KVGet(balanceKey(addr, denom), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return types.ZeroAmount(), nil
	}
	return fromBig(&stored)
}

// SetBalance writes the balance of addr in denom and indexes the denom.
func (m *Manager) SetBalance(addr crypto.Address, denom string, amount *uint256.Int) error {
	if err := m.KVPut(balanceKey(addr, denom), toBig(amount)); err != nil {
		return err
	}
	return m.KVAppend(denomsKey(addr), []byte(denom))
}

// Balances returns every denom ever held by addr, sorted by denom.
func (m *Manager) Balances(addr crypto.Address) (types.Coins, error) {
	var denoms [][]byte
	if err := m.KVGetList(denomsKey(addr), &denoms); err != nil {
		return nil, err
	}
	out := make(types.Coins, 0, len(denoms))
	for _, raw := range denoms {
		denom := string(raw)
		amount, err := m.Balance(addr, denom)
		if err != nil {
			return nil, err
		}
		out = append(out, types.Coin{Denom: denom, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Denom < out[j].Denom })
	return out, nil
}

// Supply returns the total minted amount of denom.
func (m *Manager) Supply(denom string) (*uint256.Int, error) {
	var stored big.Int
	ok, err := m.KVGet(supplyKey(denom), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return types.ZeroAmount(), nil
	}
	return fromBig(&stored)
}

// SetSupply writes the total minted amount of denom.
func (m *Manager) SetSupply(denom string, amount *uint256.Int) error {
	return m.KVPut(supplyKey(denom), toBig(amount))
}

// PutLock stores lock and indexes it under its owner.
func (m *Manager) PutLock(lock *TokenLock) error {
	if lock == nil || lock.ID == "" {
		return fmt.Errorf("state: lock id required")
	}
	if lock.Duration < 0 {
		return fmt.Errorf("state: negative lock duration")
	}
	stored := &storedTokenLock{
		ID:       lock.ID,
		Owner:    lock.Owner.String(),
		Denom:    lock.Denom,
		Amount:   toBig(lock.Amount),
		Duration: uint64(lock.Duration / time.Second),
		LockedAt: uint64(lock.LockedAt.Unix()),
	}
	if err := m.KVPut(lockKey(lock.ID), stored); err != nil {
		return err
	}
	return m.KVAppend(lockIndexKey(lock.Owner), []byte(lock.ID))
}

// Lock returns the lock with id, or nil when absent.
func (m *Manager) Lock(id string) (*TokenLock, error) {
	stored := new(storedTokenLock)
	ok, err := m.KVGet(lockKey(id), stored)
	if err != nil || !ok {
		return nil, err
	}
	owner, err := crypto.DecodeAddress(stored.Owner)
	if err != nil {
		return nil, fmt.Errorf("state: lock owner: %w", err)
	}
	amount, err := fromBig(stored.Amount)
	if err != nil {
		return nil, err
	}
	return &TokenLock{
		ID:       stored.ID,
		Owner:    owner,
		Denom:    stored.Denom,
		Amount:   amount,
		Duration: time.Duration(stored.Duration) * time.Second,
		LockedAt: time.Unix(int64(stored.LockedAt), 0).UTC(),
	}, nil
}

// Locks returns every lock held for owner in creation order.
func (m *Manager) Locks(owner crypto.Address) ([]*TokenLock, error) {
	var ids [][]byte
	if err := m.KVGetList(lockIndexKey(owner), &ids); err != nil {
		return nil, err
	}
	out := make([]*TokenLock, 0, len(ids))
	for _, id := range ids {
		lock, err := m.Lock(string(id))
		if err != nil {
			return nil, err
		}
		if lock != nil {
			out = append(out, lock)
		}
	}
	return out, nil
}
