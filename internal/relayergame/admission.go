package relayergame

import (
	"fmt"

	"github.com/eigerco/relayergame/internal/store"
)

// Open starts a game for parcel.ID with relayer's singleton round-0
// affirmation. Without a proof the affirmation stays unverified until
// SupplyProofs.
func (e *Engine) Open(now BlockNumber, relayer AccountID, parcel Parcel, proof *Proof) (GameID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := parcel.ID
	best := e.adapter.BestConfirmed()
	if id <= best {
		return 0, ErrAlreadyConfirmed
	}

	err := e.update(func(tx *store.Tx, games *store.Games) error {
		later, err := games.Affirmations(id, 1)
		if err != nil {
			return err
		}
		if len(later) > 0 {
			return ErrRoundMismatch
		}
		round0, err := games.Affirmations(id, 0)
		if err != nil {
			return err
		}
		if len(round0) > 0 {
			return ErrDuplicateGame
		}
		open, err := games.OpenGames()
		if err != nil {
			return err
		}
		if uint64(len(open)) >= uint64(e.policy.MaxOpenGames()) {
			return ErrTooManyGames
		}

		stake, err := e.ensureCanStake(relayer, 0, 1)
		if err != nil {
			return err
		}
		verified := false
		if proof != nil {
			if err := e.adapter.VerifyProof(id, parcel, *proof, &best); err != nil {
				return fmt.Errorf("verify proof for %d: %w", id, err)
			}
			verified = true
		}

		if err := e.lockStake(tx, games, relayer, stake); err != nil {
			return err
		}
		aff := Affirmation{Relayer: relayer, Parcels: []Parcel{parcel}, Stake: stake, Verified: verified}
		if err := games.PutAffirmations(id, 0, []Affirmation{aff}); err != nil {
			return err
		}
		if err := games.PutBestConfirmedAtOpen(id, best); err != nil {
			return err
		}
		if err := games.PutRoundCount(id, 1); err != nil {
			return err
		}
		if err := games.PutSamplePoints(id, [][]GameID{{id}}); err != nil {
			return err
		}
		if err := games.PutOpenGames(append(open, id)); err != nil {
			return err
		}
		if err := e.arm(games, id, 0, now); err != nil {
			return err
		}

		openCount := len(open) + 1
		tx.OnCommit(func() {
			e.metrics.GamesOpened.Add(1)
			e.metrics.Affirmations.With("kind", "open").Add(1)
			e.metrics.OpenGames.Set(float64(openCount))
		})
		return nil
	})
	if err != nil {
		return 0, err
	}

	e.logger.Debug().Uint64("game", uint64(id)).Str("relayer", string(relayer)).
		Uint64("confirmed", uint64(best)).Msg("game opened")
	return id, nil
}

// Dispute adds a competing round-0 affirmation to an open game and returns
// its index in round 0.
func (e *Engine) Dispute(now BlockNumber, relayer AccountID, parcel Parcel, proof *Proof) (GameID, uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := parcel.ID
	if id <= e.adapter.BestConfirmed() {
		return 0, 0, ErrAlreadyConfirmed
	}

	var index uint32
	err := e.update(func(tx *store.Tx, games *store.Games) error {
		open, err := isGameOpenAt(games, id, now, 0)
		if err != nil {
			return err
		}
		if !open {
			return ErrGameClosedForRound
		}

		round0, err := games.Affirmations(id, 0)
		if err != nil {
			return err
		}
		parcels := []Parcel{parcel}
		if err := ensureUnique(parcels, round0); err != nil {
			return err
		}

		stake, err := e.ensureCanStake(relayer, 0, uint32(len(round0))+1)
		if err != nil {
			return err
		}
		verified := false
		if proof != nil {
			confirmed, _, err := games.BestConfirmedAtOpen(id)
			if err != nil {
				return err
			}
			if err := e.adapter.VerifyProof(id, parcel, *proof, &confirmed); err != nil {
				return fmt.Errorf("verify proof for %d: %w", id, err)
			}
			verified = true
		}

		if err := e.lockStake(tx, games, relayer, stake); err != nil {
			return err
		}
		index = uint32(len(round0))
		round0 = append(round0, Affirmation{Relayer: relayer, Parcels: parcels, Stake: stake, Verified: verified})
		if err := games.PutAffirmations(id, 0, round0); err != nil {
			return err
		}

		tx.OnCommit(func() { e.metrics.Affirmations.With("kind", "dispute").Add(1) })
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	e.logger.Debug().Uint64("game", uint64(id)).Str("relayer", string(relayer)).
		Uint32("index", index).Msg("game disputed")
	return id, index, nil
}

// Extend answers the sample points of round extends.Round+1 on top of a
// verified affirmation of the previous round.
func (e *Engine) Extend(now BlockNumber, relayer AccountID, extends AffirmationID, samplePoints []Parcel, proofs []Proof) (AffirmationID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := extends.GameID
	round := extends.Round + 1
	var aid AffirmationID

	err := e.update(func(tx *store.Tx, games *store.Games) error {
		open, err := isGameOpenAt(games, id, now, round)
		if err != nil {
			return err
		}
		if !open {
			return ErrGameClosedForRound
		}
		if len(samplePoints) == 0 {
			return ErrInvalidParcel
		}
		if proofs != nil && len(proofs) != len(samplePoints) {
			return ErrProofCountMismatch
		}

		extended, ok, err := affirmationAt(games, extends)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUnknownAffirmation
		}
		if !extended.Verified {
			return ErrNotVerified
		}

		affs, err := games.Affirmations(id, round)
		if err != nil {
			return err
		}
		if err := ensureUnique(samplePoints, affs); err != nil {
			return err
		}
		if err := e.adapter.PreverifySamplePoints(extends, extended.Parcels, samplePoints); err != nil {
			return fmt.Errorf("preverify sample points of %s: %w", extends, err)
		}

		stake, err := e.ensureCanStake(relayer, round, uint32(len(affs))+1)
		if err != nil {
			return err
		}
		verified := false
		if proofs != nil {
			for i, p := range samplePoints {
				if err := e.adapter.VerifyProof(id, p, proofs[i], nil); err != nil {
					return fmt.Errorf("verify proof for %d: %w", p.ID, err)
				}
			}
			verified = true
		}

		if err := e.lockStake(tx, games, relayer, stake); err != nil {
			return err
		}
		ext := extends
		aid = AffirmationID{GameID: id, Round: round, Index: uint32(len(affs))}
		affs = append(affs, Affirmation{
			Relayer:  relayer,
			Parcels:  samplePoints,
			Stake:    stake,
			Extends:  &ext,
			Verified: verified,
		})
		if err := games.PutAffirmations(id, round, affs); err != nil {
			return err
		}

		tx.OnCommit(func() { e.metrics.Affirmations.With("kind", "extend").Add(1) })
		return nil
	})
	if err != nil {
		return AffirmationID{}, err
	}

	e.logger.Debug().Str("affirmation", aid.String()).Str("extends", extends.String()).
		Str("relayer", string(relayer)).Msg("affirmation extended")
	return aid, nil
}

// SupplyProofs verifies one proof per parcel of an affirmation and marks it
// verified. A single failing proof rejects the whole call.
func (e *Engine) SupplyProofs(aid AffirmationID, proofs []Proof) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.update(func(_ *store.Tx, games *store.Games) error {
		affs, err := games.Affirmations(aid.GameID, aid.Round)
		if err != nil {
			return err
		}
		if uint64(aid.Index) >= uint64(len(affs)) {
			return ErrUnknownAffirmation
		}
		aff := &affs[aid.Index]
		if len(proofs) != len(aff.Parcels) {
			return ErrProofCountMismatch
		}

		var confirmed *GameID
		if aid.Round == 0 {
			c, _, err := games.BestConfirmedAtOpen(aid.GameID)
			if err != nil {
				return err
			}
			confirmed = &c
		}
		for i, p := range aff.Parcels {
			if err := e.adapter.VerifyProof(aid.GameID, p, proofs[i], confirmed); err != nil {
				return fmt.Errorf("verify proof for %d: %w", p.ID, err)
			}
		}

		aff.Verified = true
		return games.PutAffirmations(aid.GameID, aid.Round, affs)
	})
}

func ensureUnique(parcels []Parcel, existing []Affirmation) error {
	digest, err := store.ParcelsDigest(parcels)
	if err != nil {
		return err
	}
	for _, aff := range existing {
		d, err := store.ParcelsDigest(aff.Parcels)
		if err != nil {
			return err
		}
		if d == digest {
			return ErrDuplicateAffirmation
		}
	}
	return nil
}
