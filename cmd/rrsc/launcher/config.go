// This file maps the CLI context to the launcher config.

package launcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-rrsc/inter/iepoch"
	"github.com/rony4d/go-rrsc/integration"
	"github.com/rony4d/go-rrsc/params"
)

// Config aggregates every subsystem's configuration the launcher needs.
type Config struct {
	Node  NodeConfig
	Rules params.Rules
	// UpgradeHeights lists the epochs at which the rules' upgrades changed
	UpgradeHeights []params.UpgradeHeight
	Store          StoreConfig
	Authorship     AuthorshipConfig
	Metrics        MetricsConfig
}

type NodeConfig struct {
	DataDir   string
	Preset    string
	Logging   LoggingConfig
	SentryDSN string
}

type LoggingConfig struct {
	Verbosity int
	Format    string
	Color     bool
}

type StoreConfig struct {
	Path      string
	CacheMB   int
	Handles   int
	Namespace string
}

type AuthorshipConfig struct {
	KeysFile string
	Workers  int
}

type MetricsConfig struct {
	Enabled  bool
	HTTPAddr string
	HTTPPort int
}

func defaultConfig() Config {
	defaults := DefaultConfig()
	preset := integration.DefaultPreset()
	return Config{
		Node: NodeConfig{
			DataDir: resolvePath(defaults.Node.DataDir),
			Preset:  preset.Name,
			Logging: LoggingConfig{
				Verbosity: defaults.Logging.Verbosity,
				Format:    defaults.Logging.Format,
				Color:     defaults.Logging.Color,
			},
		},
		Rules: params.MainNetRules(),
		Store: StoreConfig{
			CacheMB:   preset.CacheMB,
			Handles:   preset.Handles,
			Namespace: defaults.Storage.Namespace,
		},
		Authorship: AuthorshipConfig{
			Workers: preset.Workers,
		},
		Metrics: MetricsConfig{
			Enabled:  preset.EnableMetrics,
			HTTPAddr: defaults.Metrics.HTTPAddr,
			HTTPPort: defaults.Metrics.HTTPPort,
		},
	}
}

// MakeAllConfigs merges defaults, the selected preset and network rules, and
// CLI overrides into a single config. Flags are looked up on the command and
// on the app, so it works from both levels.
func MakeAllConfigs(ctx *cli.Context) (Config, error) {
	cfg := defaultConfig()

	if isSet(ctx, "preset") {
		if err := applyPreset(&cfg, stringFlag(ctx, "preset")); err != nil {
			return cfg, err
		}
	}
	if isSet(ctx, "network") {
		rules, err := params.RulesByName(stringFlag(ctx, "network"))
		if err != nil {
			return cfg, err
		}
		cfg.Rules = rules
	}

	if err := applyCLIOverrides(ctx, &cfg); err != nil {
		return cfg, err
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(cfg.Node.DataDir, DefaultConfig().Storage.EpochsDir)
	}
	if err := cfg.Rules.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyPreset(cfg *Config, name string) error {
	preset, err := integration.GetPresetByName(name)
	if err != nil {
		return err
	}
	current := integration.PresetConfig{
		Name:          cfg.Node.Preset,
		CacheMB:       cfg.Store.CacheMB,
		Handles:       cfg.Store.Handles,
		Workers:       cfg.Authorship.Workers,
		EnableMetrics: cfg.Metrics.Enabled,
	}
	integration.ApplyPreset(&current, preset)
	cfg.Node.Preset = current.Name
	cfg.Store.CacheMB = current.CacheMB
	cfg.Store.Handles = current.Handles
	cfg.Authorship.Workers = current.Workers
	cfg.Metrics.Enabled = current.EnableMetrics
	return nil
}

func applyCLIOverrides(ctx *cli.Context, cfg *Config) error {
	if isSet(ctx, "datadir") {
		cfg.Node.DataDir = resolvePath(stringFlag(ctx, "datadir"))
	}
	if isSet(ctx, "datadir.epochs") {
		cfg.Store.Path = resolvePath(stringFlag(ctx, "datadir.epochs"))
	}

	if isSet(ctx, "log.format") {
		cfg.Node.Logging.Format = stringFlag(ctx, "log.format")
	}
	if isSet(ctx, "log.verbosity") {
		cfg.Node.Logging.Verbosity = intFlag(ctx, "log.verbosity")
	}
	if isSet(ctx, "log.color") {
		cfg.Node.Logging.Color = boolFlag(ctx, "log.color")
	}
	if isSet(ctx, "sentry.dsn") {
		cfg.Node.SentryDSN = stringFlag(ctx, "sentry.dsn")
	}

	if isSet(ctx, "metrics") {
		cfg.Metrics.Enabled = boolFlag(ctx, "metrics")
	}
	if isSet(ctx, "metrics.addr") {
		cfg.Metrics.HTTPAddr = stringFlag(ctx, "metrics.addr")
	}
	if isSet(ctx, "metrics.port") {
		cfg.Metrics.HTTPPort = intFlag(ctx, "metrics.port")
	}

	if isSet(ctx, "keys") {
		cfg.Authorship.KeysFile = resolvePath(stringFlag(ctx, "keys"))
	}
	if n := intFlag(ctx, "workers"); n > 0 {
		cfg.Authorship.Workers = n
	}
	if n := intFlag(ctx, "cache"); n > 0 {
		cfg.Store.CacheMB = n
	}
	if n := intFlag(ctx, "handles"); n > 0 {
		cfg.Store.Handles = n
	}

	if isSet(ctx, "selection.c") {
		c, err := iepoch.ParseRatio(stringFlag(ctx, "selection.c"))
		if err != nil {
			return err
		}
		cfg.Rules.Selection.C = c
	}
	if isSet(ctx, "selection.allowed") {
		allowed, err := iepoch.ParseAllowedSlots(stringFlag(ctx, "selection.allowed"))
		if err != nil {
			return err
		}
		cfg.Rules.Selection.AllowedSlots = allowed
	}
	if isSet(ctx, "upgrades.epochconfig") {
		upgrades := cfg.Rules.Upgrades
		upgrades.EpochConfig = true
		cfg.UpgradeHeights = []params.UpgradeHeight{{
			Upgrades: upgrades,
			Epoch:    uint64Flag(ctx, "upgrades.epochconfig"),
		}}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Flag lookup across command and app level
// -----------------------------------------------------------------------------

func isSet(ctx *cli.Context, name string) bool {
	return ctx.IsSet(name) || ctx.GlobalIsSet(name)
}

func stringFlag(ctx *cli.Context, name string) string {
	if ctx.IsSet(name) {
		return ctx.String(name)
	}
	return ctx.GlobalString(name)
}

func intFlag(ctx *cli.Context, name string) int {
	if ctx.IsSet(name) {
		return ctx.Int(name)
	}
	return ctx.GlobalInt(name)
}

func uint64Flag(ctx *cli.Context, name string) uint64 {
	if ctx.IsSet(name) {
		return ctx.Uint64(name)
	}
	return ctx.GlobalUint64(name)
}

func boolFlag(ctx *cli.Context, name string) bool {
	if ctx.IsSet(name) {
		return ctx.Bool(name)
	}
	return ctx.GlobalBool(name)
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

func resolvePath(p string) string {
	if strings.HasPrefix(p, "~") {
		return filepath.Join(GuessHomeDir(), strings.TrimPrefix(p, "~"))
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(GuessWorkDir(), p)
}

func GuessWorkDir() string {
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func GuessHomeDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return dir
	}
	return "."
}
