package main

import (
	"os"

	"github.com/eigerco/relayergame/cmd/relayergame/commands"
)

func main() {
	if err := commands.RootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
