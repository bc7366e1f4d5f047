package relayergame

import (
	"github.com/eigerco/relayergame/internal/safemath"
	"github.com/eigerco/relayergame/internal/store"
)

// arm opens round of game id at now and schedules its settlement for the
// end of the affirm window plus the proof grace period.
func (e *Engine) arm(games *store.Games, id GameID, round uint32, now BlockNumber) error {
	closesAt := BlockNumber(safemath.SaturatingAdd64(uint64(now), uint64(e.policy.AffirmWindow(round))))
	if err := games.PutDeadline(id, Deadline{At: closesAt, Round: round}); err != nil {
		return err
	}

	dueAt := BlockNumber(safemath.SaturatingAdd64(uint64(closesAt), uint64(e.policy.ProofGrace(round))))
	due, err := games.Due(dueAt)
	if err != nil {
		return err
	}
	return games.PutDue(dueAt, append(due, id))
}

// drain takes the due list of now. The list is deleted in the same
// transaction, so every arming is settled at most once.
func (e *Engine) drain(now BlockNumber) ([]GameID, error) {
	var due []GameID
	err := e.update(func(_ *store.Tx, games *store.Games) error {
		var err error
		if due, err = games.Due(now); err != nil || len(due) == 0 {
			return err
		}
		return games.DeleteDue(now)
	})
	return due, err
}
