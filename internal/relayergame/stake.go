package relayergame

import (
	"fmt"

	"github.com/eigerco/relayergame/internal/safemath"
	"github.com/eigerco/relayergame/internal/store"
)

// updateStakesWith is the only way the stake ledger changes. The relayer's
// lock always mirrors the ledger: a zero total removes both.
func (e *Engine) updateStakesWith(tx *store.Tx, games *store.Games, relayer AccountID, calc func(Balance) Balance) error {
	old, err := games.Stake(relayer)
	if err != nil {
		return fmt.Errorf("get stake of %s: %w", relayer, err)
	}

	stakes := calc(old)
	if stakes == 0 {
		if err := games.DeleteStake(relayer); err != nil {
			return err
		}
		tx.OnCommit(func() { e.currency.RemoveLock(e.lockID, relayer) })
		return nil
	}

	if err := games.PutStake(relayer, stakes); err != nil {
		return err
	}
	tx.OnCommit(func() { e.currency.SetLock(e.lockID, relayer, stakes) })
	return nil
}

func (e *Engine) lockStake(tx *store.Tx, games *store.Games, relayer AccountID, stake Balance) error {
	return e.updateStakesWith(tx, games, relayer, func(old Balance) Balance {
		return Balance(safemath.SaturatingAdd64(uint64(old), uint64(stake)))
	})
}

func (e *Engine) unlockStake(tx *store.Tx, games *store.Games, relayer AccountID, stake Balance) error {
	return e.updateStakesWith(tx, games, relayer, func(old Balance) Balance {
		return Balance(safemath.SaturatingSub64(uint64(old), uint64(stake)))
	})
}

// slashOn releases stake from the ledger and burns it from the relayer.
func (e *Engine) slashOn(tx *store.Tx, games *store.Games, relayer AccountID, stake Balance) error {
	if err := e.unlockStake(tx, games, relayer, stake); err != nil {
		return err
	}
	tx.OnCommit(func() {
		slashed := e.currency.Slash(relayer, stake)
		e.metrics.Slashed.Add(float64(slashed))
	})
	return nil
}

// ensureCanStake prices the next affirmation and checks the relayer can cover it.
func (e *Engine) ensureCanStake(relayer AccountID, round, affirmationsCount uint32) (Balance, error) {
	stake := e.policy.StakeFor(round, affirmationsCount)
	if e.currency.UsableBalance(relayer) < stake {
		return 0, ErrInsufficientStake
	}
	return stake, nil
}
