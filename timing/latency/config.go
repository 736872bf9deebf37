package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// TimingConfig holds latency values for the multi-cycle parts of the
// machine. Everything not listed here completes in one cycle per stage.
type TimingConfig struct {
	// MultiplyLatency is the number of cycles MULT/MULTU keep the HI/LO
	// pair busy. A following MFHI/MFLO/MULT/DIV stalls in EX until it
	// elapses. Default: 1 cycle.
	MultiplyLatency uint64 `json:"multiply_latency" yaml:"multiply_latency"`

	// DivideLatency is the number of cycles DIV/DIVU keep the HI/LO pair
	// busy. Default: 1 cycle.
	DivideLatency uint64 `json:"divide_latency" yaml:"divide_latency"`

	// BusLatency is the number of cycles between requesting a word on the
	// bus and the word being ready. Default: 1 cycle.
	BusLatency uint64 `json:"bus_latency" yaml:"bus_latency"`

	// RAMLatency is the additional latency of main memory on top of the
	// bus latency. Default: 4 cycles.
	RAMLatency uint64 `json:"ram_latency" yaml:"ram_latency"`

	// MemBandwidth is the number of times each cache controller is stepped
	// per cycle, i.e. how many words a burst may move per cycle.
	// Default: 1.
	MemBandwidth uint64 `json:"mem_bandwidth" yaml:"mem_bandwidth"`
}

// DefaultTimingConfig returns a TimingConfig with R3000 reference values.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		MultiplyLatency: 1,
		DivideLatency:   1,
		BusLatency:      1,
		RAMLatency:      4,
		MemBandwidth:    1,
	}
}

// LoadConfig loads a TimingConfig from a JSON file.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that all latency values are usable.
func (c *TimingConfig) Validate() error {
	if c.BusLatency == 0 {
		return fmt.Errorf("bus_latency must be > 0")
	}
	if c.MemBandwidth == 0 {
		return fmt.Errorf("mem_bandwidth must be > 0")
	}
	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
