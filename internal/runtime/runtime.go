// Package runtime drives the dispute game block by block.
package runtime

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/eigerco/relayergame/internal/game"
	"github.com/eigerco/relayergame/internal/relayergame"
	"github.com/eigerco/relayergame/pkg/log"
)

// Relay is the part of the chain adapter that has per-block work.
type Relay interface {
	OnInitialize(now game.BlockNumber)
	OnFinalize(now game.BlockNumber)
}

// Settler is the per-block entry point of the game engine.
type Settler interface {
	OnFinalize(now game.BlockNumber) []relayergame.Settlement
}

// Runtime owns the host block clock. Each block initializes the relay,
// settles due games and then lets the relay confirm expired pending parcels.
type Runtime struct {
	engine Settler
	relay  Relay
	now    game.BlockNumber
	logger zerolog.Logger
}

func New(engine Settler, relay Relay, start game.BlockNumber) *Runtime {
	return &Runtime{engine: engine, relay: relay, now: start, logger: log.Node}
}

// Now is the last produced block.
func (r *Runtime) Now() game.BlockNumber {
	return r.now
}

// Step produces the next block.
func (r *Runtime) Step() []relayergame.Settlement {
	r.now++
	r.relay.OnInitialize(r.now)
	settled := r.engine.OnFinalize(r.now)
	r.relay.OnFinalize(r.now)

	for _, s := range settled {
		ev := r.logger.Info().Uint64("block", uint64(r.now)).Uint64("game", uint64(s.GameID)).Stringer("outcome", s.Outcome)
		if s.Resolved != nil {
			ev = ev.Uint64("resolved", uint64(s.Resolved.ID))
		}
		ev.Msg("settlement")
	}
	return settled
}

// Run produces blocks until n blocks were made or ctx is done. A positive
// interval paces the blocks in wall-clock time.
func (r *Runtime) Run(ctx context.Context, n int, interval time.Duration) ([]relayergame.Settlement, error) {
	var (
		all  []relayergame.Settlement
		tick <-chan time.Time
	)
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

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
		all = append(all, r.Step()...)
	}
	return all, nil
}
