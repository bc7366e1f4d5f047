// Package game holds the data types shared by the dispute engine, its store
// and the adapters that plug into it.
package game

import (
	"bytes"
	"fmt"
)

// GameID is the disputed foreign position. It is ordered like a block height.
type GameID uint64

// BlockNumber is a host chain height. Every timer is counted in blocks.
type BlockNumber uint64

type Balance uint64

type AccountID string

// Proof is an opaque, adapter defined proof for a parcel.
type Proof []byte

// Parcel is a claim about the foreign chain at position ID. The engine only
// looks at ID and compares payloads for equality.
type Parcel struct {
	ID      GameID
	Payload []byte
}

func (p Parcel) Equal(o Parcel) bool {
	return p.ID == o.ID && bytes.Equal(p.Payload, o.Payload)
}

// AffirmationID addresses one affirmation: the Index-th entry of a round.
type AffirmationID struct {
	GameID GameID
	Round  uint32
	Index  uint32
}

func (a AffirmationID) String() string {
	return fmt.Sprintf("%d/%d/%d", a.GameID, a.Round, a.Index)
}

// Affirmation is a staked claim. Round-0 affirmations are roots; every
// later one Extends a verified affirmation of the previous round.
type Affirmation struct {
	Relayer  AccountID
	Parcels  []Parcel
	Stake    Balance
	Extends  *AffirmationID `rlp:"nil"`
	Verified bool
}

// Deadline is the block at which the affirm window of Round closes.
type Deadline struct {
	At    BlockNumber
	Round uint32
}

// Game is an assembled read-only view of everything stored for one game.
type Game struct {
	ID                  GameID
	BestConfirmedAtOpen GameID
	RoundCount          uint32
	Deadline            Deadline
	SamplePoints        [][]GameID
	Affirmations        [][]Affirmation
}

// LastRound returns the affirmations of the highest round.
func (g Game) LastRound() []Affirmation {
	if len(g.Affirmations) == 0 {
		return nil
	}
	return g.Affirmations[len(g.Affirmations)-1]
}
