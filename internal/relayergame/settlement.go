package relayergame

import (
	"errors"
	"fmt"

	"github.com/eigerco/relayergame/internal/safemath"
	"github.com/eigerco/relayergame/internal/store"
)

// OnFinalize settles every game due at now. Each game is processed in its
// own transaction: a game that fails is logged and left untouched while
// the others proceed. Parcels resolved in this block are handed to the
// adapter once, after every game was processed.
func (e *Engine) OnFinalize(now BlockNumber) []Settlement {
	e.mu.Lock()
	defer e.mu.Unlock()

	due, err := e.drain(now)
	if err != nil {
		e.logger.Error().Err(err).Uint64("block", uint64(now)).Msg("drain due games")
		return nil
	}
	if len(due) == 0 {
		return nil
	}
	e.logger.Trace().Uint64("block", uint64(now)).Int("games", len(due)).Msg("settling due games")

	var (
		settlements []Settlement
		resolved    []Parcel
		resolvedIDs []GameID
	)
	for _, id := range due {
		var s Settlement
		err := e.update(func(tx *store.Tx, games *store.Games) error {
			var err error
			s, err = e.settle(tx, games, id, now)
			return err
		})
		if err != nil {
			e.logger.Error().Err(err).Uint64("game", uint64(id)).Msg("settle game")
			continue
		}

		e.metrics.Settlements.With("outcome", s.Outcome.String()).Add(1)
		e.logger.Debug().Uint64("game", uint64(id)).Stringer("outcome", s.Outcome).Msg("game settled")
		settlements = append(settlements, s)
		if s.Resolved != nil {
			resolved = append(resolved, *s.Resolved)
			resolvedIDs = append(resolvedIDs, s.Resolved.ID)
		}
	}

	if open, err := e.view().OpenGames(); err == nil {
		e.metrics.OpenGames.Set(float64(len(open)))
	}

	if len(resolved) > 0 {
		e.adapter.OnResolved(resolvedIDs)
		if err := e.adapter.CommitResolved(resolved); err != nil {
			e.logger.Error().Err(err).Int("parcels", len(resolved)).Msg("commit resolved parcels")
		}
	}
	return settlements
}

func (e *Engine) settle(tx *store.Tx, games *store.Games, id GameID, now BlockNumber) (Settlement, error) {
	g, ok, err := games.Load(id)
	if err != nil {
		return Settlement{}, err
	}
	if !ok || g.RoundCount == 0 {
		return Settlement{}, fmt.Errorf("game %d has no rounds", id)
	}

	s := Settlement{GameID: id}
	lastRound := g.RoundCount - 1
	last := g.LastRound()

	switch {
	case lastRound == 0 && len(last) == 0:
		e.logger.Error().Uint64("game", uint64(id)).Msg("game without affirmations")
		s.Outcome = OutcomeAbandoned

	case lastRound == 0 && len(last) == 1:
		winner := last[0]
		if len(winner.Parcels) != 1 {
			e.logger.Error().Uint64("game", uint64(id)).Int("parcels", len(winner.Parcels)).
				Msg("unchallenged root does not carry a single parcel")
			s.Outcome = OutcomeAbandoned
			if err := e.slashAll(tx, games, g.Affirmations); err != nil {
				return Settlement{}, err
			}
			break
		}
		e.logger.Trace().Uint64("game", uint64(id)).Msg("no challenge")
		if err := e.unlockStake(tx, games, winner.Relayer, winner.Stake); err != nil {
			return Settlement{}, err
		}
		s.Outcome = OutcomeUnchallenged
		s.Resolved = &winner.Parcels[0]

	case len(last) == 0:
		e.logger.Trace().Uint64("game", uint64(id)).Uint32("round", lastRound).Msg("all relayers abstained")
		s.Outcome = OutcomeAbandoned
		if err := e.slashAll(tx, games, g.Affirmations); err != nil {
			return Settlement{}, err
		}

	case len(last) == 1:
		e.logger.Trace().Uint64("game", uint64(id)).Msg("no more challenge")
		if err := e.resolveLineage(tx, games, g, 0, &s, OutcomeChallenged); err != nil {
			return Settlement{}, err
		}

	default:
		distance := e.adapter.Distance(id, g.BestConfirmedAtOpen)
		if distance != g.RoundCount {
			e.logger.Trace().Uint64("game", uint64(id)).Uint32("round", g.RoundCount).Msg("still in challenge")
			if err := e.advance(tx, games, g, now); err != nil {
				return Settlement{}, err
			}
			s.Outcome = OutcomeAdvanced
			return s, nil
		}

		e.logger.Trace().Uint64("game", uint64(id)).Msg("full chain given, arbitrating")
		winner, ok := e.arbitrate(g)
		if !ok {
			s.Outcome = OutcomeAbandoned
			if err := e.slashAll(tx, games, g.Affirmations); err != nil {
				return Settlement{}, err
			}
			break
		}
		if err := e.resolveLineage(tx, games, g, winner, &s, OutcomeArbitrated); err != nil {
			return Settlement{}, err
		}
	}

	if err := games.Purge(id, g.RoundCount); err != nil {
		return Settlement{}, err
	}
	tx.OnCommit(func() { e.adapter.OnGameClosed(id) })
	return s, nil
}

// resolveLineage pays out the lineage ending at last-round affirmation
// index. A broken lineage abandons the game instead.
func (e *Engine) resolveLineage(tx *store.Tx, games *store.Games, g Game, index uint32, s *Settlement, outcome Outcome) error {
	path, err := lineage(g.Affirmations, index)
	if err != nil {
		if !errors.Is(err, errBrokenLineage) {
			return err
		}
		e.logger.Error().Err(err).Uint64("game", uint64(g.ID)).Msg("abandoning game")
		s.Outcome = OutcomeAbandoned
		return e.slashAll(tx, games, g.Affirmations)
	}

	if err := e.payout(tx, games, g.Affirmations, path); err != nil {
		return err
	}
	root := g.Affirmations[0][path[0]].Parcels[0]
	s.Outcome = outcome
	s.Resolved = &root
	return nil
}

// arbitrate verifies the full chain behind every last-round survivor.
// Exactly one must pass.
func (e *Engine) arbitrate(g Game) (uint32, bool) {
	var winners []uint32
	for i := range g.LastRound() {
		chain, err := reconstructChain(g.Affirmations, uint32(i))
		if err != nil {
			e.logger.Error().Err(err).Uint64("game", uint64(g.ID)).Int("index", i).Msg("reconstruct chain")
			return 0, false
		}
		if err := e.adapter.VerifyFullChain(g.BestConfirmedAtOpen, chain); err != nil {
			e.logger.Trace().Err(err).Uint64("game", uint64(g.ID)).Int("index", i).Msg("relay chain invalid")
			continue
		}
		winners = append(winners, uint32(i))
	}

	if len(winners) != 1 {
		e.logger.Error().Uint64("game", uint64(g.ID)).Int("valid", len(winners)).
			Msg("arbitration needs exactly one valid chain")
		return 0, false
	}
	return winners[0], true
}

// reconstructChain collects the parcels along the Extends links from the
// last round down to round 0.
func reconstructChain(rounds [][]Affirmation, index uint32) ([]Parcel, error) {
	round := len(rounds) - 1
	var chain []Parcel
	for {
		affs := rounds[round]
		if uint64(index) >= uint64(len(affs)) {
			return nil, fmt.Errorf("%w: affirmation %d/%d does not exist", errBrokenLineage, round, index)
		}
		aff := affs[index]
		chain = append(chain, aff.Parcels...)
		if aff.Extends == nil {
			return chain, nil
		}
		if round == 0 || aff.Extends.Round != uint32(round-1) {
			return nil, fmt.Errorf("%w: unexpected extends %s", errBrokenLineage, aff.Extends)
		}
		index = aff.Extends.Index
		round--
	}
}

// advance opens the next round of g with fresh sample points.
func (e *Engine) advance(tx *store.Tx, games *store.Games, g Game, now BlockNumber) error {
	next := e.adapter.NextSamplePoints(g.ID, g.SamplePoints)
	if err := games.PutSamplePoints(g.ID, append(g.SamplePoints, next)); err != nil {
		return err
	}
	if err := games.PutRoundCount(g.ID, safemath.SaturatingAdd32(g.RoundCount, 1)); err != nil {
		return err
	}
	if err := e.arm(games, g.ID, g.RoundCount, now); err != nil {
		return err
	}
	tx.OnCommit(func() { e.adapter.OnNewRound(g.ID, next) })
	return nil
}
