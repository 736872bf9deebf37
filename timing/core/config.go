package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/sarchlab/r3ksim/timing/cache"
	"github.com/sarchlab/r3ksim/timing/latency"
)

// ResetVector is the R3000 reset address, in uncached kseg1.
const ResetVector = 0xBFC00000

// RegionConfig describes one mapped memory region.
type RegionConfig struct {
	Name string `json:"name" yaml:"name"`
	// Base is the physical base address.
	Base uint32 `json:"base" yaml:"base"`
	Size uint32 `json:"size" yaml:"size"`
	// ExtraLatency is added to the bus and RAM latency for this region.
	ExtraLatency uint64 `json:"extra_latency" yaml:"extra_latency"`
	ReadOnly     bool   `json:"read_only" yaml:"read_only"`
}

// CacheConfig enables a cache and sets its geometry.
type CacheConfig struct {
	Enabled  bool         `json:"enabled" yaml:"enabled"`
	Geometry cache.Config `json:"geometry" yaml:"geometry"`
}

// Config holds everything needed to build a Machine.
type Config struct {
	BigEndian bool           `json:"big_endian" yaml:"big_endian"`
	Regions   []RegionConfig `json:"regions" yaml:"regions"`

	ICache CacheConfig `json:"icache" yaml:"icache"`
	DCache CacheConfig `json:"dcache" yaml:"dcache"`

	// BranchDelaySlot executes the instruction after a taken branch.
	BranchDelaySlot bool `json:"branch_delay_slot" yaml:"branch_delay_slot"`
	// HaltOnBreak stops the machine when BREAK commits.
	HaltOnBreak bool `json:"halt_on_break" yaml:"halt_on_break"`
	// HaltOnIBE stops the machine on an instruction bus error.
	HaltOnIBE bool `json:"halt_on_ibe" yaml:"halt_on_ibe"`

	// ResetPC is where fetch starts.
	ResetPC      uint32  `json:"reset_pc" yaml:"reset_pc"`
	FrequencyMHz float64 `json:"frequency_mhz" yaml:"frequency_mhz"`

	Timing *latency.TimingConfig `json:"timing" yaml:"timing"`
}

// DefaultConfig returns an 8MB big-endian machine with a 512KB boot ROM,
// 4KB instruction and data caches, and a 25MHz clock.
func DefaultConfig() *Config {
	return &Config{
		BigEndian: true,
		Regions: []RegionConfig{
			{Name: "ram", Base: 0x00000000, Size: 8 << 20},
			{Name: "boot", Base: 0x1FC00000, Size: 512 << 10, ReadOnly: true},
		},
		ICache:       CacheConfig{Enabled: true, Geometry: cache.DefaultICacheConfig()},
		DCache:       CacheConfig{Enabled: true, Geometry: cache.DefaultDCacheConfig()},
		HaltOnBreak:  true,
		HaltOnIBE:    true,
		ResetPC:      ResetVector,
		FrequencyMHz: 25,
		Timing:       latency.DefaultTimingConfig(),
	}
}

// LoadConfig reads a Config from a JSON or YAML file, chosen by extension.
// Fields missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read machine config file: %w", err)
	}

	config := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse machine config %s: %w", path, err)
	}

	return config, nil
}

// SaveConfig writes the Config as JSON or YAML, chosen by extension.
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to serialize machine config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write machine config file: %w", err)
	}

	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Validate checks that the configuration describes a buildable machine.
func (c *Config) Validate() error {
	if len(c.Regions) == 0 {
		return fmt.Errorf("at least one memory region is required")
	}
	for _, r := range c.Regions {
		if r.Size == 0 {
			return fmt.Errorf("region %q has zero size", r.Name)
		}
	}

	if c.ICache.Enabled {
		if err := c.ICache.Geometry.Validate(); err != nil {
			return fmt.Errorf("icache: %w", err)
		}
	}
	if c.DCache.Enabled {
		if err := c.DCache.Geometry.Validate(); err != nil {
			return fmt.Errorf("dcache: %w", err)
		}
	}

	if c.FrequencyMHz <= 0 {
		return fmt.Errorf("frequency_mhz must be > 0")
	}

	if c.Timing == nil {
		return fmt.Errorf("timing configuration is missing")
	}
	if err := c.Timing.Validate(); err != nil {
		return fmt.Errorf("timing: %w", err)
	}

	return nil
}

// Clone returns a deep copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Regions = append([]RegionConfig(nil), c.Regions...)
	if c.Timing != nil {
		clone.Timing = c.Timing.Clone()
	}
	return &clone
}
