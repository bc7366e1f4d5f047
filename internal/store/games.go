package store

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/blake2b"

	"github.com/eigerco/relayergame/internal/game"
)

// Games is the typed view over every per-game map of the dispute engine.
type Games struct {
	rw ReadWriter
}

func NewGames(rw ReadWriter) *Games {
	return &Games{rw: rw}
}

func gameKey(prefix byte, id game.GameID) []byte {
	return makeKey(prefix, be64(uint64(id)))
}

func (g *Games) OpenGames() ([]game.GameID, error) {
	var ids []game.GameID
	if _, err := getRLP(g.rw, []byte{prefixOpenGames}, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (g *Games) PutOpenGames(ids []game.GameID) error {
	if len(ids) == 0 {
		return g.rw.Delete([]byte{prefixOpenGames})
	}
	return putRLP(g.rw, []byte{prefixOpenGames}, ids)
}

func (g *Games) Affirmations(id game.GameID, round uint32) ([]game.Affirmation, error) {
	var affs []game.Affirmation
	if _, err := getRLP(g.rw, makeKey(prefixAffirmations, be64(uint64(id)), be32(round)), &affs); err != nil {
		return nil, err
	}
	return affs, nil
}

func (g *Games) PutAffirmations(id game.GameID, round uint32, affs []game.Affirmation) error {
	return putRLP(g.rw, makeKey(prefixAffirmations, be64(uint64(id)), be32(round)), affs)
}

func (g *Games) DeleteAffirmations(id game.GameID, round uint32) error {
	return g.rw.Delete(makeKey(prefixAffirmations, be64(uint64(id)), be32(round)))
}

// BestConfirmedAtOpen reports false when the game was never opened.
func (g *Games) BestConfirmedAtOpen(id game.GameID) (game.GameID, bool, error) {
	var confirmed game.GameID
	ok, err := getRLP(g.rw, gameKey(prefixBestConfirmedAtOpen, id), &confirmed)
	return confirmed, ok, err
}

func (g *Games) PutBestConfirmedAtOpen(id, confirmed game.GameID) error {
	return putRLP(g.rw, gameKey(prefixBestConfirmedAtOpen, id), confirmed)
}

// RoundCount is zero for a game that does not exist.
func (g *Games) RoundCount(id game.GameID) (uint32, error) {
	var n uint32
	_, err := getRLP(g.rw, gameKey(prefixRoundCount, id), &n)
	return n, err
}

func (g *Games) PutRoundCount(id game.GameID, n uint32) error {
	return putRLP(g.rw, gameKey(prefixRoundCount, id), n)
}

func (g *Games) Deadline(id game.GameID) (game.Deadline, bool, error) {
	var d game.Deadline
	ok, err := getRLP(g.rw, gameKey(prefixDeadline, id), &d)
	return d, ok, err
}

func (g *Games) PutDeadline(id game.GameID, d game.Deadline) error {
	return putRLP(g.rw, gameKey(prefixDeadline, id), d)
}

// Due lists the games whose timer fires at block.
func (g *Games) Due(block game.BlockNumber) ([]game.GameID, error) {
	var ids []game.GameID
	if _, err := getRLP(g.rw, makeKey(prefixScheduler, be64(uint64(block))), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (g *Games) PutDue(block game.BlockNumber, ids []game.GameID) error {
	return putRLP(g.rw, makeKey(prefixScheduler, be64(uint64(block))), ids)
}

func (g *Games) DeleteDue(block game.BlockNumber) error {
	return g.rw.Delete(makeKey(prefixScheduler, be64(uint64(block))))
}

func (g *Games) SamplePoints(id game.GameID) ([][]game.GameID, error) {
	var points [][]game.GameID
	if _, err := getRLP(g.rw, gameKey(prefixSamplePoints, id), &points); err != nil {
		return nil, err
	}
	return points, nil
}

func (g *Games) PutSamplePoints(id game.GameID, points [][]game.GameID) error {
	return putRLP(g.rw, gameKey(prefixSamplePoints, id), points)
}

// Stake is the cumulative unresolved stake of relayer.
func (g *Games) Stake(relayer game.AccountID) (game.Balance, error) {
	var stake game.Balance
	_, err := getRLP(g.rw, makeKey(prefixStake, []byte(relayer)), &stake)
	return stake, err
}

func (g *Games) PutStake(relayer game.AccountID, stake game.Balance) error {
	return putRLP(g.rw, makeKey(prefixStake, []byte(relayer)), stake)
}

func (g *Games) DeleteStake(relayer game.AccountID) error {
	return g.rw.Delete(makeKey(prefixStake, []byte(relayer)))
}

// Load assembles every stored piece of a game. It reports false when the
// game does not exist.
func (g *Games) Load(id game.GameID) (game.Game, bool, error) {
	confirmed, ok, err := g.BestConfirmedAtOpen(id)
	if err != nil || !ok {
		return game.Game{}, false, err
	}
	out := game.Game{ID: id, BestConfirmedAtOpen: confirmed}

	if out.RoundCount, err = g.RoundCount(id); err != nil {
		return game.Game{}, false, err
	}
	if out.Deadline, _, err = g.Deadline(id); err != nil {
		return game.Game{}, false, err
	}
	if out.SamplePoints, err = g.SamplePoints(id); err != nil {
		return game.Game{}, false, err
	}
	for round := uint32(0); round < out.RoundCount; round++ {
		affs, err := g.Affirmations(id, round)
		if err != nil {
			return game.Game{}, false, err
		}
		out.Affirmations = append(out.Affirmations, affs)
	}
	return out, true, nil
}

// Purge deletes every per-game record for rounds [0, roundCount) and drops
// the game from the open set. Scheduler entries are left alone: a drained
// due list is already gone and a stale one resolves to a missing game.
func (g *Games) Purge(id game.GameID, roundCount uint32) error {
	for round := uint32(0); round < roundCount; round++ {
		if err := g.DeleteAffirmations(id, round); err != nil {
			return err
		}
	}
	for _, prefix := range []byte{prefixBestConfirmedAtOpen, prefixRoundCount, prefixDeadline, prefixSamplePoints} {
		if err := g.rw.Delete(gameKey(prefix, id)); err != nil {
			return fmt.Errorf("delete %s: %w", PrefixToString(prefix), err)
		}
	}

	open, err := g.OpenGames()
	if err != nil {
		return err
	}
	kept := open[:0]
	for _, o := range open {
		if o != id {
			kept = append(kept, o)
		}
	}
	return g.PutOpenGames(kept)
}

// ParcelsDigest identifies a parcel set for duplicate detection.
func ParcelsDigest(parcels []game.Parcel) ([32]byte, error) {
	b, err := rlp.EncodeToBytes(parcels)
	if err != nil {
		return [32]byte{}, fmt.Errorf("marshal parcels: %w", err)
	}
	return blake2b.Sum256(b), nil
}
