// Package config holds the node configuration. Values come from defaults,
// an optional config.toml under the home directory, RELAYERGAME_ prefixed
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/eigerco/relayergame/internal/ethrelay"
	"github.com/eigerco/relayergame/internal/game"
	"github.com/eigerco/relayergame/internal/policy"
	"github.com/eigerco/relayergame/pkg/log"
)

const (
	EnvPrefix      = "RELAYERGAME"
	ConfigName     = "config"
	ConfigFileName = ConfigName + ".toml"
)

type Config struct {
	Home string `mapstructure:"home" toml:"-"`

	Log             LogConfig             `mapstructure:"log" toml:"log"`
	DB              DBConfig              `mapstructure:"db" toml:"db"`
	Policy          PolicyConfig          `mapstructure:"policy" toml:"policy"`
	Relay           RelayConfig           `mapstructure:"relay" toml:"relay"`
	Instrumentation InstrumentationConfig `mapstructure:"instrumentation" toml:"instrumentation"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" toml:"level"`
	Format string `mapstructure:"format" toml:"format"`
}

type DBConfig struct {
	// Path is resolved against the home directory when relative.
	Path     string `mapstructure:"path" toml:"path"`
	InMemory bool   `mapstructure:"in_memory" toml:"in_memory"`
}

type PolicyConfig struct {
	MaxGames       uint32             `mapstructure:"max_games" toml:"max_games"`
	RoundZeroStake game.Balance       `mapstructure:"round_zero_stake" toml:"round_zero_stake"`
	ExtendStake    game.Balance       `mapstructure:"extend_stake" toml:"extend_stake"`
	AffirmWindows  []game.BlockNumber `mapstructure:"affirm_windows" toml:"affirm_windows"`
	ProofGraces    []game.BlockNumber `mapstructure:"proof_graces" toml:"proof_graces"`
}

type RelayConfig struct {
	ConfirmPeriod game.BlockNumber `mapstructure:"confirm_period" toml:"confirm_period"`
}

type InstrumentationConfig struct {
	// When true, Prometheus metrics are served under /metrics on
	// PrometheusListenAddr.
	Prometheus           bool   `mapstructure:"prometheus" toml:"prometheus"`
	PrometheusListenAddr string `mapstructure:"prometheus_listen_addr" toml:"prometheus_listen_addr"`
	Namespace            string `mapstructure:"namespace" toml:"namespace"`
}

func DefaultConfig() *Config {
	p := policy.Default()
	return &Config{
		Home: DefaultHome(),
		Log:  LogConfig{Level: "info", Format: "console"},
		DB:   DBConfig{Path: "data"},
		Policy: PolicyConfig{
			MaxGames:       p.MaxGames,
			RoundZeroStake: p.RoundZeroStake,
			ExtendStake:    p.ExtendStake,
			AffirmWindows:  p.AffirmWindows,
			ProofGraces:    p.ProofGraces,
		},
		Relay: RelayConfig{ConfirmPeriod: 5},
		Instrumentation: InstrumentationConfig{
			PrometheusListenAddr: ":26660",
			Namespace:            "relayergame",
		},
	}
}

// DefaultHome is $HOME, or the working directory when it is unset.
func DefaultHome() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

// Validate checks parameter bounds.
func (cfg *Config) Validate() error {
	var errs []error
	if _, err := log.ParseLogLevel(cfg.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if _, err := log.ParseLoggerType(cfg.Log.Format); err != nil {
		errs = append(errs, fmt.Errorf("log.format: %w", err))
	}
	if !cfg.DB.InMemory && cfg.DB.Path == "" {
		errs = append(errs, errors.New("db.path can't be empty unless db.in_memory is set"))
	}
	if cfg.Policy.MaxGames == 0 {
		errs = append(errs, errors.New("policy.max_games must be positive"))
	}
	if len(cfg.Policy.AffirmWindows) == 0 {
		errs = append(errs, errors.New("policy.affirm_windows can't be empty"))
	}
	for i, w := range cfg.Policy.AffirmWindows {
		if w == 0 {
			errs = append(errs, fmt.Errorf("policy.affirm_windows[%d] must be positive", i))
		}
	}
	if len(cfg.Policy.ProofGraces) == 0 {
		errs = append(errs, errors.New("policy.proof_graces can't be empty"))
	}
	if cfg.Instrumentation.Prometheus && cfg.Instrumentation.PrometheusListenAddr == "" {
		errs = append(errs, errors.New("instrumentation.prometheus_listen_addr can't be empty"))
	}
	return errors.Join(errs...)
}

// Schedule is the round schedule the engine runs with.
func (cfg *Config) Schedule() policy.Schedule {
	return policy.Schedule{
		MaxGames:       cfg.Policy.MaxGames,
		RoundZeroStake: cfg.Policy.RoundZeroStake,
		ExtendStake:    cfg.Policy.ExtendStake,
		AffirmWindows:  cfg.Policy.AffirmWindows,
		ProofGraces:    cfg.Policy.ProofGraces,
	}
}

func (cfg *Config) RelayConfig() ethrelay.Config {
	return ethrelay.Config{ConfirmPeriod: cfg.Relay.ConfirmPeriod}
}

// LogOptions maps the log section onto pkg/log.
func (cfg *Config) LogOptions(out io.Writer) (log.Options, error) {
	level, err := log.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return log.Options{}, err
	}
	typ, err := log.ParseLoggerType(cfg.Log.Format)
	if err != nil {
		return log.Options{}, err
	}
	return log.Options{LogLevel: level, Type: typ, Out: out}, nil
}

// DBPath is the absolute database directory.
func (cfg *Config) DBPath() string {
	if filepath.IsAbs(cfg.DB.Path) {
		return cfg.DB.Path
	}
	return filepath.Join(cfg.Home, cfg.DB.Path)
}

func (cfg *Config) WriteTOML(w io.Writer) error {
	return toml.NewEncoder(w).Encode(cfg)
}

// WriteFile writes cfg to path unless a file already exists there.
func (cfg *Config) WriteFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if err := cfg.WriteTOML(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// NewViper returns a viper instance seeded with the defaults and wired to
// the environment.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	def := DefaultConfig()
	v.SetDefault("home", def.Home)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("db.path", def.DB.Path)
	v.SetDefault("db.in_memory", def.DB.InMemory)
	v.SetDefault("policy.max_games", def.Policy.MaxGames)
	v.SetDefault("policy.round_zero_stake", def.Policy.RoundZeroStake)
	v.SetDefault("policy.extend_stake", def.Policy.ExtendStake)
	v.SetDefault("policy.affirm_windows", def.Policy.AffirmWindows)
	v.SetDefault("policy.proof_graces", def.Policy.ProofGraces)
	v.SetDefault("relay.confirm_period", def.Relay.ConfirmPeriod)
	v.SetDefault("instrumentation.prometheus", def.Instrumentation.Prometheus)
	v.SetDefault("instrumentation.prometheus_listen_addr", def.Instrumentation.PrometheusListenAddr)
	v.SetDefault("instrumentation.namespace", def.Instrumentation.Namespace)
	return v
}

// FlagKeys maps command-line flag names to config keys.
var FlagKeys = map[string]string{
	"home":           "home",
	"log-level":      "log.level",
	"log-format":     "log.format",
	"db-path":        "db.path",
	"in-memory":      "db.in_memory",
	"confirm-period": "relay.confirm_period",
	"prometheus":     "instrumentation.prometheus",
}

// BindFlags binds the known flags of fs to their config keys.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range FlagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the config file from the home directory, if any, and decodes
// the merged settings.
func Load(v *viper.Viper) (*Config, error) {
	home := v.GetString("home")
	v.SetConfigName(ConfigName)
	v.SetConfigType("toml")
	v.AddConfigPath(home)
	v.AddConfigPath(filepath.Join(home, "config"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error in config file: %w", err)
	}
	return cfg, nil
}
