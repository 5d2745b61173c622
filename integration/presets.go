package integration

import (
	"fmt"
	"runtime"
)

// Package integration provides resource presets for running the RRSC tools.
// Presets bundle the settings that trade memory and CPU for speed (database
// cache, file handles, evaluation workers) into named profiles, so operators
// pick one name instead of tuning every flag.
//
// Usage:
//   cfg := integration.LitePreset()  // for development
//   cfg := integration.FullPreset()  // for production validators
//
// Each preset returns a PresetConfig that the launcher merges into its main
// config before CLI overrides are applied.

// PresetConfig captures the tunable parameters that vary across preset profiles.
// It excludes consensus parameters; those come from the network rules.
type PresetConfig struct {
	Name          string // human-readable identifier (e.g., "lite", "full")
	CacheMB       int    // memory allocated to the epoch database cache
	Handles       int    // open file handles of the epoch database
	Workers       int    // concurrent slot evaluation tasks
	EnableMetrics bool   // whether to expose Prometheus-style metrics endpoints
}

func DefaultPreset() PresetConfig {
	return PresetConfig{
		Name:          "default",
		CacheMB:       64,               // epoch records are small; 64MB keeps many epochs hot
		Handles:       128,              // enough for LevelDB compaction without exhausting ulimit
		Workers:       defaultWorkers(), // one evaluation task per CPU
		EnableMetrics: false,            // metrics disabled by default to reduce overhead
	}
}

// LitePreset returns a lightweight configuration for development, CI and
// low-resource environments.
//
// Trade-offs:
//   - Small caches make repeated epoch reads hit the disk
//   - A single worker evaluates slots sequentially
func LitePreset() PresetConfig {
	cfg := DefaultPreset()   // start with balanced defaults
	cfg.Name = "lite"        // set preset identifier for logging/config dumps
	cfg.CacheMB = 16         // fits in constrained environments
	cfg.Handles = 32         // low handle count for containers with tight limits
	cfg.Workers = 1          // sequential evaluation, easiest to debug
	cfg.EnableMetrics = true // metrics help diagnose issues during development
	return cfg
}

// FullPreset returns a configuration for validator nodes computing authorship
// of many keys over long epochs.
//
// Trade-offs:
//   - Larger caches require more RAM
//   - Workers oversubscribe CPUs since VRF evaluation may wait on remote key stores
func FullPreset() PresetConfig {
	cfg := DefaultPreset()
	cfg.Name = "full"
	cfg.CacheMB = 256                  // keep the whole epoch history in memory
	cfg.Handles = 512                  // allow LevelDB to keep more tables open
	cfg.Workers = 4 * defaultWorkers() // hide key store latency
	cfg.EnableMetrics = true           // expose metrics for Prometheus/Grafana dashboards
	return cfg
}

func defaultWorkers() int {
	return runtime.NumCPU()
}

// GetPresetByName looks up a preset by its string identifier.
// This helper backs the --preset flag.
func GetPresetByName(name string) (PresetConfig, error) {
	switch name {
	case "lite":
		return LitePreset(), nil
	case "full":
		return FullPreset(), nil
	case "default", "":
		return DefaultPreset(), nil
	default:
		return PresetConfig{}, fmt.Errorf("unknown preset: %q (valid: lite, full, default)", name)
	}
}

// ApplyPreset merges a preset configuration into an existing config struct.
// Non-zero fields of the preset override the corresponding target values.
func ApplyPreset(target *PresetConfig, preset PresetConfig) {
	if preset.CacheMB > 0 {
		target.CacheMB = preset.CacheMB
	}
	if preset.Handles > 0 {
		target.Handles = preset.Handles
	}
	if preset.Workers > 0 {
		target.Workers = preset.Workers
	}
	// boolean flags are always applied (no zero-value check needed)
	target.EnableMetrics = preset.EnableMetrics
	if preset.Name != "" {
		target.Name = preset.Name
	}
}
