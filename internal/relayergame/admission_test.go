package relayergame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/relayergame/internal/policy"
	"github.com/eigerco/relayergame/internal/store"
)

func TestOpen(t *testing.T) {
	proof := validProof
	badProof := Proof("nope")

	tests := []struct {
		name    string
		setup   func(f *fixture)
		parcel  Parcel
		proof   *Proof
		wantErr error
	}{
		{
			name:   "verified with proof",
			parcel: tag(100, 'a'),
			proof:  &proof,
		},
		{
			name:   "unverified without proof",
			parcel: tag(100, 'a'),
		},
		{
			name:    "already confirmed",
			parcel:  tag(90, 'a'),
			wantErr: ErrAlreadyConfirmed,
		},
		{
			name:    "below confirmed",
			parcel:  tag(42, 'a'),
			wantErr: ErrAlreadyConfirmed,
		},
		{
			name: "duplicate game",
			setup: func(f *fixture) {
				f.bank.Endow("r2", 100)
				_, err := f.Open(1, "r2", tag(100, 'b'), nil)
				require.NoError(t, err)
			},
			parcel:  tag(100, 'a'),
			wantErr: ErrDuplicateGame,
		},
		{
			name: "later rounds exist",
			setup: func(f *fixture) {
				affs := []Affirmation{{Relayer: "x", Parcels: []Parcel{tag(99, 'x')}, Stake: 1}}
				require.NoError(t, store.NewGames(f.kv).PutAffirmations(100, 1, affs))
			},
			parcel:  tag(100, 'a'),
			wantErr: ErrRoundMismatch,
		},
		{
			name: "insufficient stake",
			setup: func(f *fixture) {
				f.bank.SetLock(store.NewLockID("other"), "r1", 95)
			},
			parcel:  tag(100, 'a'),
			wantErr: ErrInsufficientStake,
		},
		{
			name:    "bad proof",
			parcel:  tag(100, 'a'),
			proof:   &badProof,
			wantErr: errBadProof,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, 90, policy.Default())
			f.bank.Endow("r1", 100)
			if tc.setup != nil {
				tc.setup(f)
			}

			id, err := f.Open(1, "r1", tc.parcel, tc.proof)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				f.requireStake(t, "r1", 0)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.parcel.ID, id)
			f.requireStake(t, "r1", 10)
			assert.Equal(t, Balance(90), f.bank.UsableBalance("r1"))

			affs, err := f.AffirmationsAt(id, 0)
			require.NoError(t, err)
			require.Len(t, affs, 1)
			assert.Equal(t, tc.proof != nil, affs[0].Verified)
			assert.Nil(t, affs[0].Extends)
		})
	}
}

// Scenario E: the open set is bounded.
func TestOpen_TooManyGames(t *testing.T) {
	schedule := policy.Default()
	schedule.MaxGames = 2
	f := newFixture(t, 90, schedule)
	f.bank.Endow("r1", 100)

	_, err := f.Open(1, "r1", tag(100, 'a'), nil)
	require.NoError(t, err)
	_, err = f.Open(1, "r1", tag(101, 'a'), nil)
	require.NoError(t, err)

	_, err = f.Open(1, "r1", tag(102, 'a'), nil)
	require.ErrorIs(t, err, ErrTooManyGames)
	f.requireStake(t, "r1", 20)

	_, ok, err := f.Game(102)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDispute(t *testing.T) {
	f := newFixture(t, 90, policy.Default())
	for _, r := range []AccountID{"r1", "r2", "r3"} {
		f.bank.Endow(r, 100)
	}
	proof := validProof

	_, _, err := f.Dispute(1, "r2", tag(100, 'b'), nil)
	require.ErrorIs(t, err, ErrGameClosedForRound, "no game yet")

	_, err = f.Open(1, "r1", tag(100, 'a'), &proof)
	require.NoError(t, err)

	id, index, err := f.Dispute(2, "r2", tag(100, 'b'), &proof)
	require.NoError(t, err)
	assert.Equal(t, GameID(100), id)
	assert.Equal(t, uint32(1), index)
	f.requireStake(t, "r2", 20)

	// Scenario D: identical parcels are rejected and nothing is staked.
	_, _, err = f.Dispute(3, "r3", tag(100, 'a'), nil)
	require.ErrorIs(t, err, ErrDuplicateAffirmation)
	f.requireStake(t, "r3", 0)

	bad := Proof("nope")
	_, _, err = f.Dispute(3, "r3", tag(100, 'c'), &bad)
	require.ErrorIs(t, err, errBadProof)
	f.requireStake(t, "r3", 0)

	_, index, err = f.Dispute(15, "r3", tag(100, 'c'), nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), index)
	f.requireStake(t, "r3", 30)

	_, _, err = f.Dispute(16, "r3", tag(100, 'd'), nil)
	require.ErrorIs(t, err, ErrGameClosedForRound, "round 0 closed at block 16")

	_, _, err = f.Dispute(16, "r3", tag(90, 'd'), nil)
	require.ErrorIs(t, err, ErrAlreadyConfirmed)

	// disputing does not re-arm the timer
	g, _, err := f.Game(100)
	require.NoError(t, err)
	assert.Equal(t, Deadline{At: 16, Round: 0}, g.Deadline)
	assert.Len(t, g.Affirmations[0], 3)
}

// openDisputed opens game 100 for r1 on fork 'a', disputes it for r2 on
// fork 'b' and advances it to round 1 at block 31.
func openDisputed(t *testing.T, f *fixture) {
	t.Helper()
	proof := validProof
	f.bank.Endow("r1", 100)
	f.bank.Endow("r2", 100)

	_, err := f.Open(1, "r1", tag(100, 'a'), &proof)
	require.NoError(t, err)
	_, _, err = f.Dispute(2, "r2", tag(100, 'b'), &proof)
	require.NoError(t, err)

	settled := f.OnFinalize(31)
	require.Len(t, settled, 1)
	require.Equal(t, OutcomeAdvanced, settled[0].Outcome)
}

func TestExtend(t *testing.T) {
	root := AffirmationID{GameID: 100, Round: 0, Index: 0}

	tests := []struct {
		name    string
		setup   func(t *testing.T, f *fixture)
		now     BlockNumber
		extends AffirmationID
		points  []Parcel
		proofs  []Proof
		wantErr error
	}{
		{
			name:    "round not open yet",
			now:     20,
			extends: AffirmationID{GameID: 100, Round: 1},
			points:  []Parcel{tag(98, 'a')},
			wantErr: ErrGameClosedForRound,
		},
		{
			name:    "round closed",
			now:     36,
			extends: root,
			points:  []Parcel{tag(99, 'a')},
			wantErr: ErrGameClosedForRound,
		},
		{
			name:    "empty sample points",
			now:     32,
			extends: root,
			wantErr: ErrInvalidParcel,
		},
		{
			name:    "proof count mismatch",
			now:     32,
			extends: root,
			points:  []Parcel{tag(99, 'a')},
			proofs:  proofs(2),
			wantErr: ErrProofCountMismatch,
		},
		{
			name:    "unknown affirmation",
			now:     32,
			extends: AffirmationID{GameID: 100, Round: 0, Index: 7},
			points:  []Parcel{tag(99, 'a')},
			wantErr: ErrUnknownAffirmation,
		},
		{
			name: "extended affirmation unverified",
			setup: func(t *testing.T, f *fixture) {
				affs, err := store.NewGames(f.kv).Affirmations(100, 0)
				require.NoError(t, err)
				affs[0].Verified = false
				require.NoError(t, store.NewGames(f.kv).PutAffirmations(100, 0, affs))
			},
			now:     32,
			extends: root,
			points:  []Parcel{tag(99, 'a')},
			wantErr: ErrNotVerified,
		},
		{
			name: "duplicate in target round",
			setup: func(t *testing.T, f *fixture) {
				_, err := f.Extend(32, "r2", AffirmationID{GameID: 100, Index: 1}, []Parcel{tag(99, 'a')}, nil)
				require.NoError(t, err)
			},
			now:     33,
			extends: root,
			points:  []Parcel{tag(99, 'a')},
			wantErr: ErrDuplicateAffirmation,
		},
		{
			name: "preverification fails",
			setup: func(t *testing.T, f *fixture) {
				f.chain.badSample[99] = true
			},
			now:     32,
			extends: root,
			points:  []Parcel{tag(99, 'a')},
			wantErr: errBadSample,
		},
		{
			name:    "bad proof",
			now:     32,
			extends: root,
			points:  []Parcel{tag(99, 'a')},
			proofs:  []Proof{Proof("nope")},
			wantErr: errBadProof,
		},
		{
			name:    "verified extension",
			now:     32,
			extends: root,
			points:  []Parcel{tag(99, 'a')},
			proofs:  proofs(1),
		},
		{
			name:    "unverified extension",
			now:     35,
			extends: root,
			points:  []Parcel{tag(99, 'a')},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, 97, policy.Default())
			openDisputed(t, f)
			if tc.setup != nil {
				tc.setup(t, f)
			}
			before, err := f.StakeOf("r1")
			require.NoError(t, err)

			aid, err := f.Extend(tc.now, "r1", tc.extends, tc.points, tc.proofs)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				f.requireStake(t, "r1", before)
				return
			}
			require.NoError(t, err)
			f.requireStake(t, "r1", before+10)

			affs, err := f.AffirmationsAt(100, 1)
			require.NoError(t, err)
			require.Len(t, affs, int(aid.Index)+1)
			got := affs[aid.Index]
			assert.Equal(t, AffirmationID{GameID: 100, Round: 1, Index: 0}, aid)
			assert.Equal(t, tc.points, got.Parcels)
			require.NotNil(t, got.Extends)
			assert.Equal(t, tc.extends, *got.Extends)
			assert.Equal(t, tc.proofs != nil, got.Verified)
		})
	}
}

func TestSupplyProofs(t *testing.T) {
	f := newFixture(t, 90, policy.Default())
	f.bank.Endow("r1", 100)

	_, err := f.Open(1, "r1", tag(100, 'a'), nil)
	require.NoError(t, err)
	aid := AffirmationID{GameID: 100}

	assert.ErrorIs(t, f.SupplyProofs(AffirmationID{GameID: 100, Index: 1}, proofs(1)), ErrUnknownAffirmation)
	assert.ErrorIs(t, f.SupplyProofs(AffirmationID{GameID: 101}, proofs(1)), ErrUnknownAffirmation)
	assert.ErrorIs(t, f.SupplyProofs(aid, proofs(2)), ErrProofCountMismatch)
	assert.ErrorIs(t, f.SupplyProofs(aid, []Proof{Proof("nope")}), errBadProof)

	affs, err := f.AffirmationsAt(100, 0)
	require.NoError(t, err)
	assert.False(t, affs[0].Verified)

	require.NoError(t, f.SupplyProofs(aid, proofs(1)))
	affs, err = f.AffirmationsAt(100, 0)
	require.NoError(t, err)
	assert.True(t, affs[0].Verified)
}
