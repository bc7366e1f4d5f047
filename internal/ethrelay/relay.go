// Package ethrelay adapts an Ethereum-style header chain to the dispute
// game. Parcels carry RLP-encoded go-ethereum headers, proofs are header
// hashes, and resolved parcels wait out a confirm period before they become
// the new confirmed frontier.
package ethrelay

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/eigerco/relayergame/internal/game"
	"github.com/eigerco/relayergame/internal/safemath"
	"github.com/eigerco/relayergame/internal/store"
	"github.com/eigerco/relayergame/pkg/db"
	"github.com/eigerco/relayergame/pkg/log"
)

// HeaderVerifier checks the seal of a header. Proof-of-work validation is
// plugged in here; the default accepts every header.
type HeaderVerifier func(h *types.Header) error

type Config struct {
	// ConfirmPeriod is how many blocks a resolved parcel stays pending.
	// Zero confirms immediately.
	ConfirmPeriod game.BlockNumber
	Verifier      HeaderVerifier
}

// Relay implements the game's chain adapter over a confirmed header store.
type Relay struct {
	mu     sync.Mutex
	cfg    Config
	store  *store.Relay
	now    game.BlockNumber
	rounds map[game.GameID][]game.GameID
	logger zerolog.Logger
}

func New(kv db.KVStore, cfg Config) *Relay {
	if cfg.Verifier == nil {
		cfg.Verifier = func(*types.Header) error { return nil }
	}
	return &Relay{
		cfg:    cfg,
		store:  store.NewRelay(kv),
		rounds: make(map[game.GameID][]game.GameID),
		logger: log.Relay,
	}
}

// SetConfirmed force-confirms h, typically the genesis of the relay.
func (r *Relay) SetConfirmed(h *types.Header) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := EncodeParcel(h)
	if err != nil {
		return err
	}
	return r.confirm(p, "set")
}

// ConfirmedHeader returns the confirmed header at number.
func (r *Relay) ConfirmedHeader(number game.GameID) (*types.Header, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.confirmedHeader(number)
}

func (r *Relay) confirmedHeader(number game.GameID) (*types.Header, error) {
	p, ok, err := r.store.ConfirmedParcel(number)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrConfirmedHeaderUnknown, number)
	}
	return DecodeParcel(p)
}

func (r *Relay) BestConfirmed() game.GameID {
	r.mu.Lock()
	defer r.mu.Unlock()

	best, err := r.store.BestConfirmed()
	if err != nil {
		r.logger.Error().Err(err).Msg("read best confirmed")
	}
	return best
}

// VerifyProof checks that the parcel decodes to the header at id, that the
// seal verifies and that the proof is the header hash. Round-0 parcels must
// also sit above a frontier the relay actually confirmed.
func (r *Relay) VerifyProof(id game.GameID, p game.Parcel, proof game.Proof, confirmed *game.GameID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, err := DecodeParcel(p)
	if err != nil {
		return err
	}
	if err := r.cfg.Verifier(h); err != nil {
		return fmt.Errorf("%w: %w", ErrProof, err)
	}
	hash := h.Hash()
	if !bytes.Equal(proof, hash.Bytes()) {
		return fmt.Errorf("%w: header %d is %s", ErrHeaderHash, h.Number, hash)
	}
	if confirmed != nil {
		if _, err := r.confirmedHeader(*confirmed); err != nil {
			return err
		}
		if p.ID <= *confirmed {
			return fmt.Errorf("%w: %d <= %d", ErrNotAboveConfirmed, p.ID, *confirmed)
		}
	}
	return nil
}

// Distance is the number of headers between id and confirmed, one per round.
func (r *Relay) Distance(id, confirmed game.GameID) uint32 {
	d, ok := safemath.Sub64(uint64(id), uint64(confirmed))
	if !ok {
		return 0
	}
	return uint32(min(d, uint64(^uint32(0))))
}

// VerifyFullChain sorts chain by number and checks it links, header by
// header, to the header confirmed when the game opened.
func (r *Relay) VerifyFullChain(confirmedAtOpen game.GameID, chain []game.Parcel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(chain) == 0 {
		return fmt.Errorf("%w: empty chain", ErrContinuity)
	}
	headers := make([]*types.Header, 0, len(chain))
	for _, p := range chain {
		h, err := DecodeParcel(p)
		if err != nil {
			return err
		}
		headers = append(headers, h)
	}
	slices.SortFunc(headers, func(a, b *types.Header) int { return a.Number.Cmp(b.Number) })

	parent, err := r.confirmedHeader(confirmedAtOpen)
	if err != nil {
		return err
	}
	for _, h := range headers {
		if err := continuous(parent, h); err != nil {
			return err
		}
		parent = h
	}
	return nil
}

// PreverifySamplePoints checks that the single new sample point is the
// parent of the extended header and, once a round was announced, that it
// sits at the announced position.
func (r *Relay) PreverifySamplePoints(extended game.AffirmationID, extendedParcels, points []game.Parcel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(extendedParcels) != 1 || len(points) != 1 {
		return fmt.Errorf("%w: expected one parcel per round, got %d and %d", ErrSamplePoint, len(extendedParcels), len(points))
	}
	if want, ok := r.rounds[extended.GameID]; ok && !slices.Contains(want, points[0].ID) {
		return fmt.Errorf("%w: %d not in %v", ErrSamplePoint, points[0].ID, want)
	}

	prev, err := DecodeParcel(extendedParcels[0])
	if err != nil {
		return err
	}
	next, err := DecodeParcel(points[0])
	if err != nil {
		return err
	}
	return continuous(next, prev)
}

// NextSamplePoints bisects one header at a time: the next point sits just
// below the last one.
func (r *Relay) NextSamplePoints(id game.GameID, samplePoints [][]game.GameID) []game.GameID {
	last := id
	if n := len(samplePoints); n > 0 && len(samplePoints[n-1]) > 0 {
		last = samplePoints[n-1][len(samplePoints[n-1])-1]
	}
	return []game.GameID{game.GameID(safemath.SaturatingSub64(uint64(last), 1))}
}

func (r *Relay) OnNewRound(id game.GameID, samplePoints []game.GameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rounds[id] = slices.Clone(samplePoints)
	r.logger.Info().Uint64("game", uint64(id)).Interface("samplePoints", samplePoints).Msg("new round")
}

func (r *Relay) OnResolved(ids []game.GameID) {
	r.logger.Debug().Interface("games", ids).Msg("games resolved")
}

func (r *Relay) OnGameClosed(id game.GameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rounds, id)
	r.logger.Info().Uint64("game", uint64(id)).Msg("game over")
}

// CommitResolved queues resolved parcels for confirmation. Parcels that are
// stale or already pending are skipped and reported in the returned error.
func (r *Relay) CommitResolved(parcels []game.Parcel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	best, err := r.store.BestConfirmed()
	if err != nil {
		return err
	}
	pending, err := r.store.Pending()
	if err != nil {
		return err
	}

	var errs []error
	for _, p := range parcels {
		if p.ID <= best {
			errs = append(errs, fmt.Errorf("%w: %d", ErrNotAboveConfirmed, p.ID))
			continue
		}
		if slices.ContainsFunc(pending, func(pp store.PendingParcel) bool { return pp.Parcel.ID == p.ID }) {
			errs = append(errs, fmt.Errorf("%w: %d", ErrPendingParcelExists, p.ID))
			continue
		}
		if r.cfg.ConfirmPeriod == 0 {
			if err := r.confirm(p, "confirm period is zero"); err != nil {
				return err
			}
			if p.ID > best {
				best = p.ID
			}
			continue
		}
		pending = append(pending, store.PendingParcel{
			ConfirmAt: game.BlockNumber(safemath.SaturatingAdd64(uint64(r.now), uint64(r.cfg.ConfirmPeriod))),
			Parcel:    p,
		})
		r.logger.Debug().Uint64("number", uint64(p.ID)).Msg("parcel pending")
	}

	if err := r.store.PutPending(pending); err != nil {
		return err
	}
	return errors.Join(errs...)
}

// Pending lists the parcels waiting for confirmation.
func (r *Relay) Pending() ([]store.PendingParcel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Pending()
}

// ApprovePending confirms the pending parcel at number ahead of its period.
func (r *Relay) ApprovePending(number game.GameID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.takePending(number)
	if err != nil {
		return err
	}
	return r.confirm(p, "approved")
}

// RejectPending drops the pending parcel at number.
func (r *Relay) RejectPending(number game.GameID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.takePending(number); err != nil {
		return err
	}
	r.logger.Info().Uint64("number", uint64(number)).Msg("pending parcel rejected")
	return nil
}

// OnInitialize records the host block that newly pending parcels count from.
func (r *Relay) OnInitialize(now game.BlockNumber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// OnFinalize confirms every pending parcel whose period ended by now.
func (r *Relay) OnFinalize(now game.BlockNumber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending, err := r.store.Pending()
	if err != nil {
		r.logger.Error().Err(err).Msg("read pending parcels")
		return
	}
	kept := pending[:0]
	for _, pp := range pending {
		if pp.ConfirmAt > now {
			kept = append(kept, pp)
			continue
		}
		if err := r.confirm(pp.Parcel, "confirmed by system"); err != nil {
			r.logger.Error().Err(err).Uint64("number", uint64(pp.Parcel.ID)).Msg("confirm pending parcel")
		}
	}
	if err := r.store.PutPending(kept); err != nil {
		r.logger.Error().Err(err).Msg("store pending parcels")
	}
}

func (r *Relay) takePending(number game.GameID) (game.Parcel, error) {
	pending, err := r.store.Pending()
	if err != nil {
		return game.Parcel{}, err
	}
	i := slices.IndexFunc(pending, func(pp store.PendingParcel) bool { return pp.Parcel.ID == number })
	if i < 0 {
		return game.Parcel{}, fmt.Errorf("%w: %d", ErrPendingParcelUnknown, number)
	}
	p := pending[i].Parcel
	if err := r.store.PutPending(slices.Delete(pending, i, i+1)); err != nil {
		return game.Parcel{}, err
	}
	return p, nil
}

// confirm stores p and moves the frontier if p is above it. Parcels at or
// below the frontier are ignored.
func (r *Relay) confirm(p game.Parcel, reason string) error {
	best, err := r.store.BestConfirmed()
	if err != nil {
		return err
	}
	if p.ID <= best && best != 0 {
		return nil
	}
	if err := r.store.PutConfirmedParcel(p); err != nil {
		return err
	}
	if err := r.store.PutBestConfirmed(p.ID); err != nil {
		return err
	}

	var hash common.Hash
	if h, err := DecodeParcel(p); err == nil {
		hash = h.Hash()
	}
	r.logger.Info().Uint64("number", uint64(p.ID)).Str("hash", hash.Hex()).Str("reason", reason).Msg("parcel confirmed")
	return nil
}
