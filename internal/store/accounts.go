package store

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/blake2b"

	"github.com/eigerco/relayergame/internal/game"
	"github.com/eigerco/relayergame/pkg/db"
)

// LockID names a balance lock.
type LockID [8]byte

type Lock struct {
	ID     LockID
	Amount game.Balance
}

// Account is the persisted balance record of one account.
type Account struct {
	Free  game.Balance
	Locks []Lock
}

func (a Account) Empty() bool {
	return a.Free == 0 && len(a.Locks) == 0
}

// Accounts stores balance records keyed by account id.
type Accounts struct {
	rw ReadWriter
}

func NewAccounts(rw ReadWriter) *Accounts {
	return &Accounts{rw: rw}
}

// Account returns the zero record for unknown accounts.
func (a *Accounts) Account(id game.AccountID) (Account, error) {
	var acc Account
	_, err := getRLP(a.rw, makeKey(prefixAccount, []byte(id)), &acc)
	return acc, err
}

// PutAccount removes the record once it holds nothing.
func (a *Accounts) PutAccount(id game.AccountID, acc Account) error {
	key := makeKey(prefixAccount, []byte(id))
	if acc.Empty() {
		return a.rw.Delete(key)
	}
	return putRLP(a.rw, key, acc)
}

// AllAccounts walks every committed account in key order.
func AllAccounts(kv db.KVStore, fn func(game.AccountID, Account) error) error {
	prefix := []byte{prefixAccount}
	iter, err := kv.NewIterator(prefix, db.PrefixEnd(prefix))
	if err != nil {
		return fmt.Errorf("create iterator: %w", err)
	}
	defer iter.Close() //nolint:errcheck

	for iter.Next() {
		b, err := iter.Value()
		if err != nil {
			return err
		}
		var acc Account
		if err := rlp.DecodeBytes(b, &acc); err != nil {
			return fmt.Errorf("unmarshal account: %w", err)
		}
		if err := fn(game.AccountID(iter.Key()[1:]), acc); err != nil {
			return err
		}
	}
	return nil
}

// NewLockID derives a lock id from a human readable name.
func NewLockID(name string) LockID {
	sum := blake2b.Sum256([]byte(name))
	var id LockID
	copy(id[:], sum[:len(id)])
	return id
}
