package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// TimingConfig holds the cycle counts of the bus, memory and cache events.
type TimingConfig struct {
	// ClockGHz is the frequency that the cores, caches and bus tick at.
	// Default: 1 GHz.
	ClockGHz float64 `json:"clock_ghz"`

	// HitLatency is the number of cycles a cache hit occupies the core.
	// Default: 1 cycle.
	HitLatency uint64 `json:"hit_latency"`

	// ArbitrationLatency is the number of cycles between a request reaching
	// the head of the bus queue and its broadcast. Default: 1 cycle.
	ArbitrationLatency uint64 `json:"arbitration_latency"`

	// CacheToCacheLatency is the number of cycles from the broadcast of a
	// request to the delivery of DATA supplied by another cache.
	// Default: 20 cycles.
	CacheToCacheLatency uint64 `json:"cache_to_cache_latency"`

	// MemoryLatency is the number of cycles from the broadcast of a request
	// to the delivery of DATA fetched from memory. Default: 100 cycles.
	MemoryLatency uint64 `json:"memory_latency"`

	// IssueInterval is the number of cycles a core waits after a request
	// completes before issuing the next one. Default: 1 cycle.
	IssueInterval uint64 `json:"issue_interval"`

	// MaxCycles stops a run that has not finished. Default: 10M cycles.
	MaxCycles uint64 `json:"max_cycles"`
}

// DefaultTimingConfig returns a TimingConfig with the default values.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		ClockGHz:            1,
		HitLatency:          1,
		ArbitrationLatency:  1,
		CacheToCacheLatency: 20,
		MemoryLatency:       100,
		IssueInterval:       1,
		MaxCycles:           10_000_000,
	}
}

// LoadConfig loads a TimingConfig from a JSON file. Fields missing from the
// file keep their default values.
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

// Validate checks that the configuration can drive a simulation.
func (c *TimingConfig) Validate() error {
	if c.ClockGHz <= 0 {
		return fmt.Errorf("clock_ghz must be > 0")
	}
	if c.HitLatency == 0 {
		return fmt.Errorf("hit_latency must be > 0")
	}
	if c.CacheToCacheLatency == 0 {
		return fmt.Errorf("cache_to_cache_latency must be > 0")
	}
	if c.MemoryLatency == 0 {
		return fmt.Errorf("memory_latency must be > 0")
	}
	if c.IssueInterval == 0 {
		return fmt.Errorf("issue_interval must be > 0")
	}
	if c.MaxCycles == 0 {
		return fmt.Errorf("max_cycles must be > 0")
	}
	return nil
}

// Clone returns a copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
