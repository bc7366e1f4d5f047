package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/relayergame/internal/game"
	"github.com/eigerco/relayergame/internal/policy"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, policy.Default(), cfg.Schedule())
	assert.Equal(t, game.BlockNumber(5), cfg.RelayConfig().ConfirmPeriod)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{name: "bad level", modify: func(c *Config) { c.Log.Level = "loud" }, errMsg: "log.level"},
		{name: "bad format", modify: func(c *Config) { c.Log.Format = "xml" }, errMsg: "log.format"},
		{name: "no db path", modify: func(c *Config) { c.DB.Path = "" }, errMsg: "db.path"},
		{name: "zero games", modify: func(c *Config) { c.Policy.MaxGames = 0 }, errMsg: "max_games"},
		{name: "no windows", modify: func(c *Config) { c.Policy.AffirmWindows = nil }, errMsg: "affirm_windows"},
		{name: "zero window", modify: func(c *Config) { c.Policy.AffirmWindows = []game.BlockNumber{15, 0} }, errMsg: "affirm_windows[1]"},
		{name: "no graces", modify: func(c *Config) { c.Policy.ProofGraces = nil }, errMsg: "proof_graces"},
		{name: "prometheus without address", modify: func(c *Config) {
			c.Instrumentation.Prometheus = true
			c.Instrumentation.PrometheusListenAddr = ""
		}, errMsg: "prometheus_listen_addr"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}

	cfg := DefaultConfig()
	cfg.DB.Path = ""
	cfg.DB.InMemory = true
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	v := NewViper()
	v.Set("home", t.TempDir())

	cfg, err := Load(v)
	require.NoError(t, err)

	def := DefaultConfig()
	def.Home = cfg.Home
	assert.Equal(t, def, cfg)
}

func TestLoad_Precedence(t *testing.T) {
	home := t.TempDir()
	file := DefaultConfig()
	file.Log.Level = "debug"
	file.Policy.MaxGames = 4
	file.Policy.AffirmWindows = []game.BlockNumber{20, 8, 3}
	file.Relay.ConfirmPeriod = 9
	require.NoError(t, file.WriteFile(filepath.Join(home, ConfigFileName)))

	t.Setenv("RELAYERGAME_RELAY_CONFIRM_PERIOD", "12")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("home", "", "")
	fs.String("log-level", "info", "")
	fs.Bool("in-memory", false, "")
	require.NoError(t, fs.Parse([]string{"--home=" + home, "--log-level=warn", "--in-memory"}))

	v := NewViper()
	require.NoError(t, BindFlags(v, fs))
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, home, cfg.Home)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.DB.InMemory)
	assert.Equal(t, uint32(4), cfg.Policy.MaxGames)
	assert.Equal(t, []game.BlockNumber{20, 8, 3}, cfg.Policy.AffirmWindows)
	assert.Equal(t, game.BlockNumber(12), cfg.Relay.ConfirmPeriod)
}

func TestLoad_InvalidFile(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, ConfigFileName), []byte("[policy]\nmax_games = 0\n"), 0o644))

	v := NewViper()
	v.Set("home", home)
	_, err := Load(v)
	require.ErrorContains(t, err, "max_games")

	require.NoError(t, os.WriteFile(filepath.Join(home, ConfigFileName), []byte("[policy\n"), 0o644))
	v = NewViper()
	v.Set("home", home)
	_, err = Load(v)
	require.ErrorContains(t, err, "read config")
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ConfigFileName)
	require.NoError(t, DefaultConfig().WriteFile(path))
	require.Error(t, DefaultConfig().WriteFile(path))

	var buf bytes.Buffer
	require.NoError(t, DefaultConfig().WriteTOML(&buf))
	assert.Contains(t, buf.String(), "[policy]")
	assert.Contains(t, buf.String(), "confirm_period = 5")
	assert.NotContains(t, buf.String(), "home")
}

func TestDBPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Home = "/srv/relayer"
	assert.Equal(t, "/srv/relayer/data", cfg.DBPath())
	cfg.DB.Path = "/var/lib/relayer"
	assert.Equal(t, "/var/lib/relayer", cfg.DBPath())
}
