package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/relayergame/internal/config"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := RootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute(), out.String())
	return out.String()
}

func TestConfigShow(t *testing.T) {
	home := t.TempDir()
	t.Setenv("RELAYERGAME_POLICY_MAX_GAMES", "7")

	out := execute(t, "config", "show", "--home", home, "--log-level", "error")
	assert.Contains(t, out, "max_games = 7")
	assert.Contains(t, out, `level = "error"`)
}

func TestConfigInit(t *testing.T) {
	home := t.TempDir()
	out := execute(t, "config", "init", "--home", home, "--log-level", "error")
	path := filepath.Join(home, config.ConfigFileName)
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[relay]")

	cmd := RootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"config", "init", "--home", home, "--log-level", "error"})
	require.Error(t, cmd.Execute())
}

func TestSimulateAndGames(t *testing.T) {
	home := t.TempDir()
	out := execute(t, "simulate", "--home", home, "--log-level", "error", "--blocks", "60", "--endowment", "100")
	assert.Contains(t, out, "blocks: 60")
	assert.Contains(t, out, "best confirmed: 3")
	assert.Contains(t, out, "arbitrated: 1")
	assert.Contains(t, out, "honest: free=140")
	assert.Contains(t, out, "evil: free=60")

	out = execute(t, "games", "--home", home, "--log-level", "error")
	assert.Contains(t, out, "best confirmed: 3")
	assert.Contains(t, out, "open games: 1")
	assert.Contains(t, out, "  game 6: rounds=1")
	assert.Contains(t, out, "honest free=140 staked=10")
	assert.Contains(t, out, "evil free=60 staked=20")
}

func TestSimulate_InMemory(t *testing.T) {
	out := execute(t, "simulate", "--home", t.TempDir(), "--in-memory", "--log-level", "error",
		"--blocks", "40", "--no-dispute", "--distance", "1")
	assert.Contains(t, out, "unchallenged: 1")
	assert.Contains(t, out, "best confirmed: 1")
}
