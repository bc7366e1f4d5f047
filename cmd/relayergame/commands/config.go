package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/eigerco/relayergame/internal/config"
)

func configCommand(n *node) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and initialize the configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return n.conf.WriteTOML(cmd.OutOrStdout())
		},
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the home directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(n.conf.Home, config.ConfigFileName)
			if err := n.conf.WriteFile(path); err != nil {
				return err
			}
			printf(cmd, "wrote %s\n", path)
			return nil
		},
	}

	cmd.AddCommand(show, initCmd)
	return cmd
}
