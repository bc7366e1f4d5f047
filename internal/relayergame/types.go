package relayergame

import (
	"github.com/eigerco/relayergame/internal/game"
	"github.com/eigerco/relayergame/internal/store"
)

type (
	GameID        = game.GameID
	BlockNumber   = game.BlockNumber
	Balance       = game.Balance
	AccountID     = game.AccountID
	Proof         = game.Proof
	Parcel        = game.Parcel
	AffirmationID = game.AffirmationID
	Affirmation   = game.Affirmation
	Deadline      = game.Deadline
	Game          = game.Game
	LockID        = store.LockID
)

// DefaultLockID is the lock under which relayer stakes are held.
var DefaultLockID = store.NewLockID("relayer-game")

// Outcome is what a settlement did with a due game.
type Outcome uint8

const (
	// OutcomeAdvanced means the game moved to a new round and stays open.
	OutcomeAdvanced Outcome = iota
	OutcomeUnchallenged
	OutcomeChallenged
	OutcomeArbitrated
	OutcomeAbandoned
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAdvanced:
		return "advanced"
	case OutcomeUnchallenged:
		return "unchallenged"
	case OutcomeChallenged:
		return "challenged"
	case OutcomeArbitrated:
		return "arbitrated"
	case OutcomeAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Settlement reports the processing of one due game. Resolved is set for
// the three resolving outcomes.
type Settlement struct {
	GameID   GameID
	Outcome  Outcome
	Resolved *Parcel
}
