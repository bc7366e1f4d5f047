// Package balances is a persisted free-balance ledger with named locks. It
// backs relayer stakes in the dispute game.
package balances

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/eigerco/relayergame/internal/game"
	"github.com/eigerco/relayergame/internal/safemath"
	"github.com/eigerco/relayergame/internal/store"
	"github.com/eigerco/relayergame/pkg/db"
	"github.com/eigerco/relayergame/pkg/log"
)

// Ledger stores one record per account. Locks overlay each other: the
// usable balance is the free balance minus the largest lock.
type Ledger struct {
	mu       sync.Mutex
	kv       db.KVStore
	accounts *store.Accounts
	logger   zerolog.Logger
}

func NewLedger(kv db.KVStore) *Ledger {
	return &Ledger{kv: kv, accounts: store.NewAccounts(kv), logger: log.Store}
}

func (l *Ledger) load(who game.AccountID) store.Account {
	acc, err := l.accounts.Account(who)
	if err != nil {
		l.logger.Error().Err(err).Str("account", string(who)).Msg("load account")
	}
	return acc
}

func (l *Ledger) save(who game.AccountID, acc store.Account) {
	if err := l.accounts.PutAccount(who, acc); err != nil {
		l.logger.Error().Err(err).Str("account", string(who)).Msg("store account")
	}
}

// Account returns the stored record of who.
func (l *Ledger) Account(who game.AccountID) (store.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accounts.Account(who)
}

// Endow credits who with amount of fresh balance.
func (l *Ledger) Endow(who game.AccountID, amount game.Balance) {
	l.DepositCreating(who, amount)
}

func (l *Ledger) FreeBalance(who game.AccountID) game.Balance {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(who).Free
}

func (l *Ledger) UsableBalance(who game.AccountID) game.Balance {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.load(who)
	return game.Balance(safemath.SaturatingSub64(uint64(acc.Free), uint64(maxLock(acc))))
}

// Locked is the amount held by lock id, zero when absent.
func (l *Ledger) Locked(id store.LockID, who game.AccountID) game.Balance {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, lock := range l.load(who).Locks {
		if lock.ID == id {
			return lock.Amount
		}
	}
	return 0
}

// SetLock creates or replaces lock id on who.
func (l *Ledger) SetLock(id store.LockID, who game.AccountID, amount game.Balance) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc := l.load(who)
	for i := range acc.Locks {
		if acc.Locks[i].ID == id {
			acc.Locks[i].Amount = amount
			l.save(who, acc)
			return
		}
	}
	acc.Locks = append(acc.Locks, store.Lock{ID: id, Amount: amount})
	l.save(who, acc)
}

func (l *Ledger) RemoveLock(id store.LockID, who game.AccountID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc := l.load(who)
	kept := acc.Locks[:0]
	for _, lock := range acc.Locks {
		if lock.ID != id {
			kept = append(kept, lock)
		}
	}
	acc.Locks = kept
	l.save(who, acc)
}

// Slash burns up to amount of free balance, locked or not, and returns what
// was actually burnt.
func (l *Ledger) Slash(who game.AccountID, amount game.Balance) game.Balance {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc := l.load(who)
	slashed := min(acc.Free, amount)
	acc.Free -= slashed
	l.save(who, acc)

	l.logger.Debug().Str("account", string(who)).Uint64("amount", uint64(slashed)).Msg("slashed")
	return slashed
}

func (l *Ledger) DepositCreating(who game.AccountID, amount game.Balance) {
	if amount == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	acc := l.load(who)
	acc.Free = game.Balance(safemath.SaturatingAdd64(uint64(acc.Free), uint64(amount)))
	l.save(who, acc)
}

// TotalIssuance sums the free balance of every account.
func (l *Ledger) TotalIssuance() (game.Balance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total uint64
	err := store.AllAccounts(l.kv, func(_ game.AccountID, acc store.Account) error {
		total = safemath.SaturatingAdd64(total, uint64(acc.Free))
		return nil
	})
	return game.Balance(total), err
}

// Each visits every account in id order.
func (l *Ledger) Each(fn func(game.AccountID, store.Account) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return store.AllAccounts(l.kv, fn)
}

func maxLock(acc store.Account) game.Balance {
	var m game.Balance
	for _, lock := range acc.Locks {
		m = max(m, lock.Amount)
	}
	return m
}
