package relayergame

import (
	"errors"
	"fmt"
	"slices"

	"github.com/eigerco/relayergame/internal/safemath"
	"github.com/eigerco/relayergame/internal/store"
)

// errBrokenLineage marks a settlement invariant violation. Games that hit it
// are abandoned.
var errBrokenLineage = errors.New("broken lineage")

type honesty struct {
	unstake Balance
	reward  Balance
}

// ledger aggregates the payouts of one settlement before they are applied.
type ledger struct {
	honesties map[AccountID]*honesty
	evils     map[AccountID]Balance
}

func newLedger() *ledger {
	return &ledger{
		honesties: make(map[AccountID]*honesty),
		evils:     make(map[AccountID]Balance),
	}
}

func (l *ledger) honest(relayer AccountID) *honesty {
	h, ok := l.honesties[relayer]
	if !ok {
		h = &honesty{}
		l.honesties[relayer] = h
	}
	return h
}

// creditRound credits the winner of one round and charges every sibling.
func (l *ledger) creditRound(affs []Affirmation, winner uint32) {
	w := affs[winner]
	h := l.honest(w.Relayer)
	h.unstake = Balance(safemath.SaturatingAdd64(uint64(h.unstake), uint64(w.Stake)))
	for i, aff := range affs {
		if uint32(i) == winner {
			continue
		}
		h.reward = Balance(safemath.SaturatingAdd64(uint64(h.reward), uint64(aff.Stake)))
		l.evils[aff.Relayer] = Balance(safemath.SaturatingAdd64(uint64(l.evils[aff.Relayer]), uint64(aff.Stake)))
	}
}

// lineage walks Extends links from rounds[last][index] down to round 0 and
// returns the winning index of every round. The root must carry exactly one
// parcel.
func lineage(rounds [][]Affirmation, index uint32) ([]uint32, error) {
	if len(rounds) == 0 {
		return nil, fmt.Errorf("%w: no rounds", errBrokenLineage)
	}
	path := make([]uint32, len(rounds))
	round := uint32(len(rounds) - 1)
	for {
		affs := rounds[round]
		if uint64(index) >= uint64(len(affs)) {
			return nil, fmt.Errorf("%w: affirmation %d/%d does not exist", errBrokenLineage, round, index)
		}
		path[round] = index
		aff := affs[index]

		if round == 0 {
			if aff.Extends != nil {
				return nil, fmt.Errorf("%w: root extends %s", errBrokenLineage, aff.Extends)
			}
			if len(aff.Parcels) != 1 {
				return nil, fmt.Errorf("%w: root carries %d parcels", errBrokenLineage, len(aff.Parcels))
			}
			return path, nil
		}
		if aff.Extends == nil || aff.Extends.Round != round-1 {
			return nil, fmt.Errorf("%w: round %d affirmation does not extend round %d", errBrokenLineage, round, round-1)
		}
		index = aff.Extends.Index
		round--
	}
}

// payout credits the lineage winner of every round, highest first, and
// applies the aggregate in ascending relayer order.
func (e *Engine) payout(tx *store.Tx, games *store.Games, rounds [][]Affirmation, path []uint32) error {
	l := newLedger()
	for round := len(rounds) - 1; round >= 0; round-- {
		l.creditRound(rounds[round], path[round])
	}

	relayers := make([]AccountID, 0, len(l.honesties))
	for r := range l.honesties {
		relayers = append(relayers, r)
	}
	slices.Sort(relayers)
	for _, r := range relayers {
		h := l.honesties[r]
		if err := e.unlockStake(tx, games, r, h.unstake); err != nil {
			return err
		}
		if h.reward > 0 {
			reward := h.reward
			tx.OnCommit(func() {
				e.currency.DepositCreating(r, reward)
				e.metrics.Rewarded.Add(float64(reward))
			})
		}
	}

	evils := make([]AccountID, 0, len(l.evils))
	for r := range l.evils {
		evils = append(evils, r)
	}
	slices.Sort(evils)
	for _, r := range evils {
		if err := e.slashOn(tx, games, r, l.evils[r]); err != nil {
			return err
		}
	}
	return nil
}

// slashAll charges every stake of every round.
func (e *Engine) slashAll(tx *store.Tx, games *store.Games, rounds [][]Affirmation) error {
	for _, affs := range rounds {
		for _, aff := range affs {
			if err := e.slashOn(tx, games, aff.Relayer, aff.Stake); err != nil {
				return err
			}
		}
	}
	return nil
}
