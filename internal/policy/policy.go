// Package policy is the round-aware stake and timing schedule of the game.
package policy

import (
	"github.com/eigerco/relayergame/internal/game"
	"github.com/eigerco/relayergame/internal/safemath"
)

// Schedule prices stakes and times rounds. Window tables are indexed by
// round; rounds past the end of a table reuse its last entry.
type Schedule struct {
	MaxGames uint32
	// RoundZeroStake is charged per competing round-0 affirmation.
	RoundZeroStake game.Balance
	// ExtendStake is the flat stake of every later round.
	ExtendStake   game.Balance
	AffirmWindows []game.BlockNumber
	ProofGraces   []game.BlockNumber
}

// Default mirrors the deployed schedule: 15 blocks to affirm round 0 and 5
// for later rounds, the same proof grace, and at most 32 open games.
func Default() Schedule {
	return Schedule{
		MaxGames:       32,
		RoundZeroStake: 10,
		ExtendStake:    10,
		AffirmWindows:  []game.BlockNumber{15, 5},
		ProofGraces:    []game.BlockNumber{15, 5},
	}
}

func (s Schedule) MaxOpenGames() uint32 {
	return s.MaxGames
}

func (s Schedule) StakeFor(round, affirmationsCount uint32) game.Balance {
	if round == 0 {
		return game.Balance(safemath.SaturatingMul64(uint64(s.RoundZeroStake), uint64(affirmationsCount)))
	}
	return s.ExtendStake
}

func (s Schedule) AffirmWindow(round uint32) game.BlockNumber {
	return at(s.AffirmWindows, round)
}

func (s Schedule) ProofGrace(round uint32) game.BlockNumber {
	return at(s.ProofGraces, round)
}

func at(table []game.BlockNumber, round uint32) game.BlockNumber {
	if len(table) == 0 {
		return 0
	}
	if uint64(round) >= uint64(len(table)) {
		return table[len(table)-1]
	}
	return table[round]
}
