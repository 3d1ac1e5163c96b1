// Package latency provides the timing model of the snooping bus system.
//
// The cycle counts can be configured via TimingConfig.
package latency

import "github.com/sarchlab/akita/v4/sim"

// Source tells where the data of a bus transaction came from.
type Source int

// Data is supplied either by memory or by another cache on the bus.
const (
	FromMemory Source = iota
	FromCache
)

func (s Source) String() string {
	if s == FromCache {
		return "cache"
	}

	return "memory"
}

// Table provides latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with the default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with a custom configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// DataLatency returns the cycles between a broadcast and its DATA.
func (t *Table) DataLatency(src Source) uint64 {
	if src == FromCache {
		return t.config.CacheToCacheLatency
	}

	return t.config.MemoryLatency
}

// HitLatency returns the cycles a hit keeps the core busy.
func (t *Table) HitLatency() uint64 {
	return t.config.HitLatency
}

// ArbitrationLatency returns the cycles a queued request waits before the
// broadcast once it reaches the head of the queue.
func (t *Table) ArbitrationLatency() uint64 {
	return t.config.ArbitrationLatency
}

// IssueInterval returns the cycles between a completion and the next issue.
func (t *Table) IssueInterval() uint64 {
	return t.config.IssueInterval
}

// Freq returns the clock frequency of the simulated system.
func (t *Table) Freq() sim.Freq {
	return sim.Freq(t.config.ClockGHz) * sim.GHz
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
