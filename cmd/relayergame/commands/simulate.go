package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/eigerco/relayergame/internal/game"
	"github.com/eigerco/relayergame/internal/relayergame"
	"github.com/eigerco/relayergame/internal/sim"
	"github.com/eigerco/relayergame/pkg/log"
)

func simulateCommand(n *node) *cobra.Command {
	var (
		blocks    int
		interval  time.Duration
		scenario  = sim.DefaultConfig()
		noDispute bool
		endowment uint64
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run scripted honest and forging relayers over a generated header chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			kv, err := n.openStore()
			if err != nil {
				return err
			}
			defer kv.Close()

			metrics := relayergame.NopMetrics()
			if n.conf.Instrumentation.Prometheus {
				metrics = relayergame.PrometheusMetrics(n.conf.Instrumentation.Namespace)
				srv := startPrometheusServer(n.conf.Instrumentation.PrometheusListenAddr)
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			scenario.Dispute = !noDispute
			scenario.Endowment = game.Balance(endowment)
			s, err := sim.New(kv, n.conf.RelayConfig(), n.conf.Schedule(), scenario, relayergame.WithMetrics(metrics))
			if err != nil {
				return err
			}

			settled, err := s.Run(ctx, blocks, interval)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			counts := make(map[relayergame.Outcome]int)
			for _, st := range settled {
				counts[st.Outcome]++
			}
			printf(cmd, "blocks: %d\n", s.Now())
			printf(cmd, "best confirmed: %d\n", s.Relay().BestConfirmed())
			for o := relayergame.OutcomeAdvanced; o <= relayergame.OutcomeAbandoned; o++ {
				printf(cmd, "%s: %d\n", o, counts[o])
			}
			for _, who := range []game.AccountID{scenario.Honest, scenario.Evil} {
				printf(cmd, "%s: free=%d\n", who, s.Bank().FreeBalance(who))
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&blocks, "blocks", 200, "number of blocks to produce")
	flags.DurationVar(&interval, "interval", 0, "wall-clock time per block, zero runs flat out")
	flags.Uint64Var(&scenario.Distance, "distance", scenario.Distance, "headers between the confirmed frontier and each opened game")
	flags.Uint64Var(&endowment, "endowment", uint64(scenario.Endowment), "initial balance of each relayer")
	flags.BoolVar(&noDispute, "no-dispute", false, "disable the forging relayer")
	flags.Uint64("confirm-period", uint64(n.conf.Relay.ConfirmPeriod), "blocks a resolved header stays pending")
	flags.Bool("prometheus", n.conf.Instrumentation.Prometheus, "serve prometheus metrics while simulating")
	return cmd
}

func startPrometheusServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Node.Error().Err(err).Str("addr", addr).Msg("prometheus server")
		}
	}()
	log.Node.Info().Str("addr", addr).Msg("serving metrics")
	return srv
}
