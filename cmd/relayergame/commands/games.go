package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eigerco/relayergame/internal/balances"
	"github.com/eigerco/relayergame/internal/ethrelay"
	"github.com/eigerco/relayergame/internal/game"
	"github.com/eigerco/relayergame/internal/relayergame"
	"github.com/eigerco/relayergame/internal/store"
)

func gamesCommand(n *node) *cobra.Command {
	return &cobra.Command{
		Use:   "games",
		Short: "List open games, pending parcels and relayer accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, err := n.openStore()
			if err != nil {
				return err
			}
			defer kv.Close()

			relay := ethrelay.New(kv, n.conf.RelayConfig())
			bank := balances.NewLedger(kv)
			engine := relayergame.New(kv, bank, relay, n.conf.Schedule())

			printf(cmd, "best confirmed: %d\n", relay.BestConfirmed())

			open, err := engine.OpenGames()
			if err != nil {
				return err
			}
			printf(cmd, "open games: %d\n", len(open))
			for _, id := range open {
				g, ok, err := engine.Game(id)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				printf(cmd, "  game %d: rounds=%d deadline=%d confirmed_at_open=%d\n",
					id, g.RoundCount, g.Deadline.At, g.BestConfirmedAtOpen)
				for round, affs := range g.Affirmations {
					for i, a := range affs {
						printf(cmd, "    %s relayer=%s stake=%d parcels=%s verified=%t\n",
							game.AffirmationID{GameID: id, Round: uint32(round), Index: uint32(i)},
							a.Relayer, a.Stake, parcelIDs(a.Parcels), a.Verified)
					}
				}
			}

			pending, err := relay.Pending()
			if err != nil {
				return err
			}
			printf(cmd, "pending parcels: %d\n", len(pending))
			for _, p := range pending {
				printf(cmd, "  %d confirms at %d\n", p.Parcel.ID, p.ConfirmAt)
			}

			printf(cmd, "accounts:\n")
			return bank.Each(func(who game.AccountID, acc store.Account) error {
				stake, err := engine.StakeOf(who)
				if err != nil {
					return err
				}
				printf(cmd, "  %s free=%d staked=%d\n", who, acc.Free, stake)
				return nil
			})
		},
	}
}

func parcelIDs(parcels []game.Parcel) string {
	ids := make([]game.GameID, 0, len(parcels))
	for _, p := range parcels {
		ids = append(ids, p.ID)
	}
	return fmt.Sprint(ids)
}
