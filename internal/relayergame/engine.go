// Package relayergame implements the bonded dispute game that decides which
// relayed foreign-chain parcels get confirmed. Relayers stake on parcels,
// challenge each other round by round and are rewarded or slashed when the
// game settles.
package relayergame

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/eigerco/relayergame/internal/store"
	"github.com/eigerco/relayergame/pkg/db"
	"github.com/eigerco/relayergame/pkg/log"
)

// Engine runs the game on top of a key-value store. Every public method is
// serialized by one mutex; there is no background work.
type Engine struct {
	mu sync.Mutex

	kv       db.KVStore
	currency Currency
	adapter  ChainAdapter
	policy   Policy

	lockID  LockID
	metrics *Metrics
	logger  zerolog.Logger
}

type Option func(*Engine)

func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithLockID(id LockID) Option {
	return func(e *Engine) { e.lockID = id }
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func New(kv db.KVStore, currency Currency, adapter ChainAdapter, policy Policy, opts ...Option) *Engine {
	e := &Engine{
		kv:       kv,
		currency: currency,
		adapter:  adapter,
		policy:   policy,
		lockID:   DefaultLockID,
		metrics:  NopMetrics(),
		logger:   log.Game,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// update runs fn inside a store transaction and commits it if fn succeeds.
// Currency and adapter side effects registered with tx.OnCommit run only
// after the commit.
func (e *Engine) update(fn func(tx *store.Tx, games *store.Games) error) error {
	tx := store.NewTx(e.kv)
	if err := fn(tx, store.NewGames(tx)); err != nil {
		tx.Discard()
		return err
	}
	return tx.Commit()
}

func (e *Engine) view() *store.Games {
	return store.NewGames(e.kv)
}

// Game assembles the stored state of a game. It reports false for unknown games.
func (e *Engine) Game(id GameID) (Game, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view().Load(id)
}

func (e *Engine) AffirmationsAt(id GameID, round uint32) ([]Affirmation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view().Affirmations(id, round)
}

// ProposedParcels returns the parcels of one affirmation.
func (e *Engine) ProposedParcels(aid AffirmationID) ([]Parcel, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	aff, ok, err := affirmationAt(e.view(), aid)
	if err != nil || !ok {
		return nil, false, err
	}
	return aff.Parcels, true, nil
}

func (e *Engine) BestConfirmedAtOpen(id GameID) (GameID, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view().BestConfirmedAtOpen(id)
}

// StakeOf is the cumulative stake relayer has locked across open games.
func (e *Engine) StakeOf(relayer AccountID) (Balance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view().Stake(relayer)
}

func (e *Engine) OpenGames() ([]GameID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view().OpenGames()
}

// IsGameOpenAt reports whether round of game id still accepts affirmations at now.
func (e *Engine) IsGameOpenAt(id GameID, now BlockNumber, round uint32) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return isGameOpenAt(e.view(), id, now, round)
}

// DueAt lists the games that settle at block.
func (e *Engine) DueAt(block BlockNumber) ([]GameID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view().Due(block)
}

func isGameOpenAt(games *store.Games, id GameID, now BlockNumber, round uint32) (bool, error) {
	d, ok, err := games.Deadline(id)
	if err != nil || !ok {
		return false, err
	}
	return d.At > now && d.Round == round, nil
}

func affirmationAt(games *store.Games, aid AffirmationID) (Affirmation, bool, error) {
	affs, err := games.Affirmations(aid.GameID, aid.Round)
	if err != nil {
		return Affirmation{}, false, err
	}
	if uint64(aid.Index) >= uint64(len(affs)) {
		return Affirmation{}, false, nil
	}
	return affs[aid.Index], true, nil
}
