// Package config loads the executor's runtime tunables from an optional
// YAML file, falling back to the spec's defaults when absent. The
// string-keyed yaml-tagged struct and Unmarshal-then-default pattern mirror
// gazed-vu/load/shd.go's shaderConfig, the pack's own example of loading
// engine configuration with gopkg.in/yaml.v3 rather than hand-rolling a
// flag parser.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/oxy-arcana/rendergraph/cmdpool"
	"github.com/oxy-arcana/rendergraph/epoch"
	"github.com/oxy-arcana/rendergraph/surface"
)

// Executor holds the tunables §4.5–§4.7 call out as configurable: the
// epoch and command-pool ring bounds, the surface synchronizer's
// suboptimal cooldown, and its retirement queue high-water mark.
type Executor struct {
	EpochBound             int `yaml:"epoch_bound"`
	CommandPoolBound       int `yaml:"command_pool_bound"`
	SuboptimalCooldown     int `yaml:"suboptimal_cooldown"`
	RetirementHighWaterMark int `yaml:"retirement_high_water_mark"`
}

// Default returns the spec's defaults: three epochs, three command pools,
// a ten-frame suboptimal cooldown, and an eight-swapchain retirement
// high-water mark.
func Default() Executor {
	return Executor{
		EpochBound:              epoch.DefaultBound,
		CommandPoolBound:        cmdpool.DefaultBound,
		SuboptimalCooldown:      surface.DefaultSuboptimalCooldown,
		RetirementHighWaterMark: surface.DefaultRetirementHighWaterMark,
	}
}

// Load reads path as YAML and overlays it onto Default(). A missing file is
// not an error: the caller gets the defaults back. Zero or negative values
// left unset in the file fall back to their defaults rather than being
// interpreted literally, since none of these tunables has a meaningful zero.
func Load(path string) (Executor, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var overlay Executor
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if overlay.EpochBound > 0 {
		cfg.EpochBound = overlay.EpochBound
	}
	if overlay.CommandPoolBound > 0 {
		cfg.CommandPoolBound = overlay.CommandPoolBound
	}
	if overlay.SuboptimalCooldown > 0 {
		cfg.SuboptimalCooldown = overlay.SuboptimalCooldown
	}
	if overlay.RetirementHighWaterMark > 0 {
		cfg.RetirementHighWaterMark = overlay.RetirementHighWaterMark
	}
	return cfg, nil
}
