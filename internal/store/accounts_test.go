package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/relayergame/internal/game"
)

func TestAccounts(t *testing.T) {
	kv := newKV(t)
	accounts := NewAccounts(kv)

	acc, err := accounts.Account("nobody")
	require.NoError(t, err)
	assert.True(t, acc.Empty())

	lock := LockID{'r', 'e', 'l', 'a', 'y'}
	require.NoError(t, accounts.PutAccount("bob", Account{Free: 50, Locks: []Lock{{ID: lock, Amount: 20}}}))
	require.NoError(t, accounts.PutAccount("alice", Account{Free: 100}))

	acc, err = accounts.Account("bob")
	require.NoError(t, err)
	assert.Equal(t, game.Balance(50), acc.Free)
	assert.Equal(t, []Lock{{ID: lock, Amount: 20}}, acc.Locks)

	var seen []game.AccountID
	require.NoError(t, AllAccounts(kv, func(id game.AccountID, _ Account) error {
		seen = append(seen, id)
		return nil
	}))
	assert.Equal(t, []game.AccountID{"alice", "bob"}, seen)

	// empty records are removed
	require.NoError(t, accounts.PutAccount("alice", Account{}))
	seen = nil
	require.NoError(t, AllAccounts(kv, func(id game.AccountID, _ Account) error {
		seen = append(seen, id)
		return nil
	}))
	assert.Equal(t, []game.AccountID{"bob"}, seen)
}

func TestRelay(t *testing.T) {
	relay := NewRelay(newKV(t))

	best, err := relay.BestConfirmed()
	require.NoError(t, err)
	assert.Zero(t, best)

	require.NoError(t, relay.PutConfirmedParcel(parcel(12, 3)))
	require.NoError(t, relay.PutBestConfirmed(12))

	p, ok, err := relay.ConfirmedParcel(12)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, parcel(12, 3), p)
	best, err = relay.BestConfirmed()
	require.NoError(t, err)
	assert.Equal(t, game.GameID(12), best)

	pending := []PendingParcel{{ConfirmAt: 40, Parcel: parcel(13, 1)}, {ConfirmAt: 41, Parcel: parcel(14, 1)}}
	require.NoError(t, relay.PutPending(pending))
	got, err := relay.Pending()
	require.NoError(t, err)
	assert.Equal(t, pending, got)

	require.NoError(t, relay.PutPending(nil))
	got, err = relay.Pending()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewLockID(t *testing.T) {
	assert.Equal(t, NewLockID("relayer-game"), NewLockID("relayer-game"))
	assert.NotEqual(t, NewLockID("relayer-game"), NewLockID("staking"))
}
