// Package sim plays scripted relayers against the dispute game. An honest
// relayer follows a deterministic header chain; an optional evil relayer
// disputes every game with a forged branch that does not descend from the
// confirmed frontier and answers every round along it.
package sim

import (
	"context"
	"encoding/binary"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"github.com/eigerco/relayergame/internal/balances"
	"github.com/eigerco/relayergame/internal/ethrelay"
	"github.com/eigerco/relayergame/internal/game"
	"github.com/eigerco/relayergame/internal/policy"
	"github.com/eigerco/relayergame/internal/relayergame"
	"github.com/eigerco/relayergame/internal/runtime"
	"github.com/eigerco/relayergame/pkg/db"
	"github.com/eigerco/relayergame/pkg/log"
)

var genesisExtra = []byte("relayergame")

type Config struct {
	Honest game.AccountID
	Evil   game.AccountID
	// Endowment is credited to both relayers when their accounts are empty.
	Endowment game.Balance
	// Distance is how far above the confirmed frontier each game is opened.
	Distance uint64
	// Dispute enables the evil relayer.
	Dispute bool
}

func DefaultConfig() Config {
	return Config{
		Honest:    "honest",
		Evil:      "evil",
		Endowment: 1000,
		Distance:  3,
		Dispute:   true,
	}
}

// Simulator owns a full node: relay, balances, engine and block clock.
type Simulator struct {
	cfg    Config
	engine *relayergame.Engine
	relay  *ethrelay.Relay
	bank   *balances.Ledger
	rt     *runtime.Runtime
	chain  []*types.Header
	forged map[game.GameID]map[uint64]*types.Header
	logger zerolog.Logger
}

func New(kv db.KVStore, relayCfg ethrelay.Config, schedule policy.Schedule, cfg Config, opts ...relayergame.Option) (*Simulator, error) {
	if cfg.Distance == 0 {
		return nil, errors.New("distance must be positive")
	}
	relay := ethrelay.New(kv, relayCfg)
	bank := balances.NewLedger(kv)
	s := &Simulator{
		cfg:    cfg,
		relay:  relay,
		bank:   bank,
		engine: relayergame.New(kv, bank, relay, schedule, opts...),
		forged: make(map[game.GameID]map[uint64]*types.Header),
		logger: log.Node,
	}
	s.rt = runtime.New(s.engine, relay, 0)

	genesis := s.header(0)
	if _, err := relay.ConfirmedHeader(0); err != nil {
		if !errors.Is(err, ethrelay.ErrConfirmedHeaderUnknown) {
			return nil, err
		}
		if err := relay.SetConfirmed(genesis); err != nil {
			return nil, err
		}
	}

	for _, who := range []game.AccountID{cfg.Honest, cfg.Evil} {
		acc, err := bank.Account(who)
		if err != nil {
			return nil, err
		}
		if acc.Empty() {
			bank.Endow(who, cfg.Endowment)
		}
	}
	return s, nil
}

func (s *Simulator) Engine() *relayergame.Engine { return s.engine }
func (s *Simulator) Relay() *ethrelay.Relay      { return s.relay }
func (s *Simulator) Bank() *balances.Ledger      { return s.bank }
func (s *Simulator) Now() game.BlockNumber       { return s.rt.Now() }

// Step produces one block and lets the relayers act on it.
func (s *Simulator) Step() ([]relayergame.Settlement, error) {
	settled := s.rt.Step()
	now := s.rt.Now()

	for _, st := range settled {
		if st.Outcome != relayergame.OutcomeAdvanced {
			delete(s.forged, st.GameID)
		}
	}
	if err := s.respond(now); err != nil {
		return settled, err
	}
	if err := s.openNext(now); err != nil {
		return settled, err
	}
	return settled, nil
}

// Run steps n blocks. A positive interval paces them in wall-clock time.
func (s *Simulator) Run(ctx context.Context, n int, interval time.Duration) ([]relayergame.Settlement, error) {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var all []relayergame.Settlement
	for i := 0; i < n; i++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return all, ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return all, err
		}
		settled, err := s.Step()
		all = append(all, settled...)
		if err != nil {
			return all, err
		}
	}
	return all, nil
}

// openNext opens a game Distance headers above the frontier once the
// previous one is fully confirmed.
func (s *Simulator) openNext(now game.BlockNumber) error {
	open, err := s.engine.OpenGames()
	if err != nil {
		return err
	}
	pending, err := s.relay.Pending()
	if err != nil {
		return err
	}
	if len(open) > 0 || len(pending) > 0 {
		return nil
	}

	best := s.relay.BestConfirmed()
	target := uint64(best) + s.cfg.Distance
	h := s.header(target)
	if err := s.affirm(now, s.cfg.Honest, h, func(p game.Parcel, proof *game.Proof) error {
		_, err := s.engine.Open(now, s.cfg.Honest, p, proof)
		return err
	}); err != nil {
		return err
	}

	if !s.cfg.Dispute {
		return nil
	}
	forged := s.forge(game.GameID(target), uint64(best))
	return s.affirm(now, s.cfg.Evil, forged[target], func(p game.Parcel, proof *game.Proof) error {
		_, _, err := s.engine.Dispute(now, s.cfg.Evil, p, proof)
		return err
	})
}

// respond answers the current round of every open game for each relayer
// that survived the previous one.
func (s *Simulator) respond(now game.BlockNumber) error {
	open, err := s.engine.OpenGames()
	if err != nil {
		return err
	}
	for _, id := range open {
		g, ok, err := s.engine.Game(id)
		if err != nil {
			return err
		}
		if !ok || g.RoundCount < 2 {
			continue
		}
		round := int(g.RoundCount - 1)
		ok, err = s.engine.IsGameOpenAt(id, now, uint32(round))
		if err != nil {
			return err
		}
		if !ok || round >= len(g.SamplePoints) || round >= len(g.Affirmations) || len(g.SamplePoints[round]) == 0 {
			continue
		}
		point := uint64(g.SamplePoints[round][0])

		actors := map[game.AccountID]*types.Header{s.cfg.Honest: s.header(point)}
		if forged, ok := s.forged[id]; ok {
			actors[s.cfg.Evil] = forged[point]
		}
		for who, h := range actors {
			if h == nil || indexOf(g.Affirmations[round], who) >= 0 {
				continue
			}
			prev := indexOf(g.Affirmations[round-1], who)
			if prev < 0 {
				continue
			}
			extends := game.AffirmationID{GameID: id, Round: uint32(round - 1), Index: uint32(prev)}
			if err := s.affirm(now, who, h, func(p game.Parcel, proof *game.Proof) error {
				_, err := s.engine.Extend(now, who, extends, []game.Parcel{p}, []game.Proof{*proof})
				return err
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// affirm encodes h and submits it. Rejections by the engine are logged,
// only storage and encoding failures are returned.
func (s *Simulator) affirm(now game.BlockNumber, who game.AccountID, h *types.Header, submit func(game.Parcel, *game.Proof) error) error {
	p, err := ethrelay.EncodeParcel(h)
	if err != nil {
		return err
	}
	proof := ethrelay.NewProof(h)
	if err := submit(p, &proof); err != nil {
		if isRejection(err) {
			s.logger.Info().Err(err).Str("relayer", string(who)).Uint64("block", uint64(now)).
				Uint64("number", uint64(p.ID)).Msg("affirmation rejected")
			return nil
		}
		return err
	}
	return nil
}

func isRejection(err error) bool {
	for _, target := range []error{
		relayergame.ErrAlreadyConfirmed,
		relayergame.ErrRoundMismatch,
		relayergame.ErrDuplicateGame,
		relayergame.ErrTooManyGames,
		relayergame.ErrInsufficientStake,
		relayergame.ErrGameClosedForRound,
		relayergame.ErrDuplicateAffirmation,
		relayergame.ErrUnknownAffirmation,
		relayergame.ErrNotVerified,
		relayergame.ErrProofCountMismatch,
		relayergame.ErrInvalidParcel,
		ethrelay.ErrContinuity,
		ethrelay.ErrSamplePoint,
		ethrelay.ErrProof,
		ethrelay.ErrHeaderHash,
		ethrelay.ErrNotAboveConfirmed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// header returns the honest header at number, extending the chain as needed.
func (s *Simulator) header(number uint64) *types.Header {
	for uint64(len(s.chain)) <= number {
		n := uint64(len(s.chain))
		var parent common.Hash
		if n > 0 {
			parent = s.chain[n-1].Hash()
		}
		s.chain = append(s.chain, newHeader(parent, n, genesisExtra))
	}
	return s.chain[number]
}

// forge builds a consistent branch over (best, target] hanging off a
// parent that was never confirmed.
func (s *Simulator) forge(id game.GameID, best uint64) map[uint64]*types.Header {
	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], uint64(id))
	parent := crypto.Keccak256Hash([]byte("forged"), seed[:])

	branch := make(map[uint64]*types.Header)
	for n := best + 1; n <= uint64(id); n++ {
		h := newHeader(parent, n, []byte("forged"))
		branch[n] = h
		parent = h.Hash()
	}
	s.forged[id] = branch
	return branch
}

func newHeader(parent common.Hash, number uint64, extra []byte) *types.Header {
	return &types.Header{
		ParentHash: parent,
		Number:     new(big.Int).SetUint64(number),
		Difficulty: big.NewInt(1),
		GasLimit:   30_000_000,
		Time:       number * 12,
		Extra:      extra,
	}
}

func indexOf(affs []game.Affirmation, who game.AccountID) int {
	for i, a := range affs {
		if a.Relayer == who {
			return i
		}
	}
	return -1
}
