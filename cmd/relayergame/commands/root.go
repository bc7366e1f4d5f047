// Package commands implements the relayergame command line.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eigerco/relayergame/internal/config"
	"github.com/eigerco/relayergame/pkg/db"
	"github.com/eigerco/relayergame/pkg/db/pebble"
	"github.com/eigerco/relayergame/pkg/log"
)

// node carries the configuration loaded by the root command to its
// subcommands.
type node struct {
	v    *viper.Viper
	conf *config.Config
}

func (n *node) openStore() (db.KVStore, error) {
	if n.conf.DB.InMemory {
		return pebble.NewKVStore()
	}
	return pebble.NewKVStore(pebble.WithPath(n.conf.DBPath()))
}

// RootCommand constructs the root command-line entry point.
func RootCommand() *cobra.Command {
	n := &node{v: config.NewViper(), conf: config.DefaultConfig()}
	def := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:          "relayergame",
		Short:        "Bonded multi-round dispute game for relayed headers",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.BindFlags(n.v, cmd.Flags()); err != nil {
				return err
			}
			conf, err := config.Load(n.v)
			if err != nil {
				return err
			}
			n.conf = conf

			opts, err := conf.LogOptions(os.Stderr)
			if err != nil {
				return err
			}
			log.Init(opts)
			log.Root.Debug().Str("home", conf.Home).Msg("configuration loaded")
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("home", def.Home, "directory for config and data")
	flags.String("log-level", def.Log.Level, "log level (trace, debug, info, warn, error)")
	flags.String("log-format", def.Log.Format, "log format (console, json)")
	flags.String("db-path", def.DB.Path, "database directory, relative to home")
	flags.Bool("in-memory", def.DB.InMemory, "keep all state in memory")

	cmd.AddCommand(
		simulateCommand(n),
		configCommand(n),
		gamesCommand(n),
	)
	return cmd
}

func printf(cmd *cobra.Command, format string, args ...any) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
