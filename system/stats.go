package system

import (
	"github.com/sarchlab/snoopsim/timing/bus"
	"github.com/sarchlab/snoopsim/timing/cache"
	"github.com/sarchlab/snoopsim/timing/core"
)

// Stats summarizes a run.
type Stats struct {
	Protocol       string
	Cores          int
	Cycles         uint64
	CacheMisses    uint64
	SilentUpgrades uint64

	Bus    bus.Stats
	Caches []cache.Statistics
	Procs  []core.Stats
}

// Retired returns the number of operations completed by all cores.
func (s *Stats) Retired() uint64 {
	var n uint64
	for _, p := range s.Procs {
		n += p.Retired
	}
	return n
}

// MissRate returns misses per retired operation.
func (s *Stats) MissRate() float64 {
	retired := s.Retired()
	if retired == 0 {
		return 0
	}
	return float64(s.CacheMisses) / float64(retired)
}

// Stats returns the statistics collected so far.
func (s *System) Stats() *Stats {
	stats := &Stats{
		Protocol:       s.family.Name(),
		Cores:          len(s.cores),
		Cycles:         s.cycle,
		CacheMisses:    s.counter.misses,
		SilentUpgrades: s.counter.upgrades,
		Bus:            s.bus.Stats(),
	}

	for _, c := range s.caches {
		stats.Caches = append(stats.Caches, c.Stats())
	}

	for _, p := range s.cores {
		stats.Procs = append(stats.Procs, p.Stats())
	}

	return stats
}
