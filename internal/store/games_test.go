package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/relayergame/internal/game"
)

func parcel(id game.GameID, tag byte) game.Parcel {
	return game.Parcel{ID: id, Payload: []byte{tag, byte(id)}}
}

func TestGames_RoundTrip(t *testing.T) {
	games := NewGames(newKV(t))

	root := game.Affirmation{Relayer: "alice", Parcels: []game.Parcel{parcel(100, 1)}, Stake: 10, Verified: true}
	ext := game.Affirmation{
		Relayer: "bob",
		Parcels: []game.Parcel{parcel(99, 2)},
		Stake:   5,
		Extends: &game.AffirmationID{GameID: 100, Round: 0, Index: 0},
	}

	require.NoError(t, games.PutBestConfirmedAtOpen(100, 90))
	require.NoError(t, games.PutRoundCount(100, 2))
	require.NoError(t, games.PutDeadline(100, game.Deadline{At: 20, Round: 1}))
	require.NoError(t, games.PutSamplePoints(100, [][]game.GameID{{100}, {99}}))
	require.NoError(t, games.PutAffirmations(100, 0, []game.Affirmation{root}))
	require.NoError(t, games.PutAffirmations(100, 1, []game.Affirmation{ext}))
	require.NoError(t, games.PutOpenGames([]game.GameID{100}))

	g, ok, err := games.Load(100)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, game.GameID(90), g.BestConfirmedAtOpen)
	assert.Equal(t, uint32(2), g.RoundCount)
	assert.Equal(t, game.Deadline{At: 20, Round: 1}, g.Deadline)
	assert.Equal(t, [][]game.GameID{{100}, {99}}, g.SamplePoints)
	require.Len(t, g.Affirmations, 2)
	assert.Equal(t, root, g.Affirmations[0][0])
	assert.Nil(t, g.Affirmations[0][0].Extends)
	assert.Equal(t, ext, g.Affirmations[1][0])

	_, ok, err = games.Load(101)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGames_Purge(t *testing.T) {
	games := NewGames(newKV(t))

	for _, id := range []game.GameID{7, 8} {
		require.NoError(t, games.PutBestConfirmedAtOpen(id, 1))
		require.NoError(t, games.PutRoundCount(id, 1))
		require.NoError(t, games.PutAffirmations(id, 0, []game.Affirmation{{Relayer: "a", Parcels: []game.Parcel{parcel(id, 0)}, Stake: 1}}))
	}
	require.NoError(t, games.PutOpenGames([]game.GameID{7, 8}))

	require.NoError(t, games.Purge(7, 1))

	_, ok, err := games.Load(7)
	require.NoError(t, err)
	assert.False(t, ok)
	affs, err := games.Affirmations(7, 0)
	require.NoError(t, err)
	assert.Empty(t, affs)

	open, err := games.OpenGames()
	require.NoError(t, err)
	assert.Equal(t, []game.GameID{8}, open)

	require.NoError(t, games.Purge(8, 1))
	open, err = games.OpenGames()
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestGames_SchedulerAndStake(t *testing.T) {
	games := NewGames(newKV(t))

	due, err := games.Due(30)
	require.NoError(t, err)
	assert.Empty(t, due)

	require.NoError(t, games.PutDue(30, []game.GameID{5, 6}))
	due, err = games.Due(30)
	require.NoError(t, err)
	assert.Equal(t, []game.GameID{5, 6}, due)
	require.NoError(t, games.DeleteDue(30))
	due, err = games.Due(30)
	require.NoError(t, err)
	assert.Empty(t, due)

	stake, err := games.Stake("carol")
	require.NoError(t, err)
	assert.Zero(t, stake)
	require.NoError(t, games.PutStake("carol", 25))
	stake, err = games.Stake("carol")
	require.NoError(t, err)
	assert.Equal(t, game.Balance(25), stake)
	require.NoError(t, games.DeleteStake("carol"))
	stake, err = games.Stake("carol")
	require.NoError(t, err)
	assert.Zero(t, stake)
}

func TestGames_ThroughTx(t *testing.T) {
	kv := newKV(t)
	tx := NewTx(kv)

	require.NoError(t, NewGames(tx).PutRoundCount(3, 1))
	n, err := NewGames(kv).RoundCount(3)
	require.NoError(t, err)
	assert.Zero(t, n, "uncommitted write must not be visible")

	require.NoError(t, tx.Commit())
	n, err = NewGames(kv).RoundCount(3)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), n)
}

func TestParcelsDigest(t *testing.T) {
	a, err := ParcelsDigest([]game.Parcel{parcel(1, 1), parcel(2, 1)})
	require.NoError(t, err)
	b, err := ParcelsDigest([]game.Parcel{parcel(1, 1), parcel(2, 1)})
	require.NoError(t, err)
	c, err := ParcelsDigest([]game.Parcel{parcel(1, 1), parcel(2, 2)})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
