// Package config holds the machine configuration: memory sizes and latency,
// cache layers and clock frequency. Configurations round-trip through JSON.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/rvsim/timing/cache"
)

// Config describes the memory hierarchy and clock of a simulated core.
type Config struct {
	// InstructionMemorySize is the instruction memory size in bytes. A
	// unified hierarchy uses it for the single shared memory.
	InstructionMemorySize uint32 `json:"imem_size"`

	// DataMemorySize is the data memory size in bytes.
	DataMemorySize uint32 `json:"dmem_size"`

	// MemoryLatency is the first-word latency of main memory in cycles.
	MemoryLatency uint64 `json:"memory_latency"`

	// Unified makes instruction and data accesses share one memory and the
	// ICache layers.
	Unified bool `json:"unified"`

	// ICache and DCache list cache layers from the core outwards. Empty
	// means the core talks to main memory directly.
	ICache []cache.Config `json:"icache"`
	DCache []cache.Config `json:"dcache"`

	// ClockGHz is the core clock used to convert cycles into simulated time.
	ClockGHz float64 `json:"clock_ghz"`
}

// DefaultConfig returns split 32 KiB instruction and 4 KiB data memories,
// each behind one default cache, at 1 GHz.
func DefaultConfig() *Config {
	return &Config{
		InstructionMemorySize: 32 * 1024,
		DataMemorySize:        4 * 1024,
		MemoryLatency:         10,
		ICache:                []cache.Config{cache.DefaultConfig()},
		DCache:                []cache.Config{cache.DefaultConfig()},
		ClockGHz:              1,
	}
}

// Load reads a Config from a JSON file. Fields the file omits keep their
// default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// Save writes the Config to a JSON file.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the memory sizes, the clock and every cache layer.
func (c *Config) Validate() error {
	if c.InstructionMemorySize == 0 {
		return fmt.Errorf("imem_size must be > 0")
	}
	if !c.Unified && c.DataMemorySize == 0 {
		return fmt.Errorf("dmem_size must be > 0")
	}
	if c.MemoryLatency == 0 {
		return fmt.Errorf("memory_latency must be > 0")
	}
	if c.ClockGHz <= 0 {
		return fmt.Errorf("clock_ghz must be > 0")
	}
	if c.Unified && len(c.DCache) > 0 {
		return fmt.Errorf("a unified hierarchy takes no dcache layers")
	}

	for i, layer := range c.ICache {
		if err := layer.Validate(); err != nil {
			return fmt.Errorf("icache layer %d: %w", i, err)
		}
	}
	for i, layer := range c.DCache {
		if err := layer.Validate(); err != nil {
			return fmt.Errorf("dcache layer %d: %w", i, err)
		}
	}

	return nil
}

// Frequency returns the core clock.
func (c *Config) Frequency() sim.Freq {
	return sim.Freq(c.ClockGHz) * sim.GHz
}

// Clone returns a deep copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	clone.ICache = append([]cache.Config(nil), c.ICache...)
	clone.DCache = append([]cache.Config(nil), c.DCache...)
	return &clone
}
