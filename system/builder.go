package system

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/snoopsim/coherence"
	"github.com/sarchlab/snoopsim/loader"
	"github.com/sarchlab/snoopsim/timing/bus"
	"github.com/sarchlab/snoopsim/timing/cache"
	"github.com/sarchlab/snoopsim/timing/core"
	"github.com/sarchlab/snoopsim/timing/latency"
)

// Builder configures and builds a System.
type Builder struct {
	family          *coherence.Family
	cacheConfig     cache.Config
	timing          *latency.TimingConfig
	checkInvariants bool
	accessLog       bool
	memory          map[uint64]uint64
	hooks           []sim.Hook
	fatal           coherence.FatalReporter
}

// MakeBuilder returns a builder for a MESI system with default caches and
// timing and invariant checking enabled.
func MakeBuilder() Builder {
	return Builder{
		family:          coherence.MESI(),
		cacheConfig:     cache.DefaultConfig(),
		timing:          latency.DefaultTimingConfig(),
		checkInvariants: true,
	}
}

// WithFamily sets the coherence protocol.
func (b Builder) WithFamily(f *coherence.Family) Builder {
	b.family = f
	return b
}

// WithCacheConfig sets the geometry of every private cache.
func (b Builder) WithCacheConfig(c cache.Config) Builder {
	b.cacheConfig = c
	return b
}

// WithTimingConfig sets the timing model.
func (b Builder) WithTimingConfig(t *latency.TimingConfig) Builder {
	b.timing = t
	return b
}

// WithInvariantChecks turns the per-cycle coherence checks on or off.
func (b Builder) WithInvariantChecks(enabled bool) Builder {
	b.checkInvariants = enabled
	return b
}

// WithAccessLog makes every core record the values it observed.
func (b Builder) WithAccessLog() Builder {
	b.accessLog = true
	return b
}

// WithMemory sets initial memory contents, keyed by line address.
func (b Builder) WithMemory(values map[uint64]uint64) Builder {
	b.memory = values
	return b
}

// WithFatalReporter forwards the first violation of a run to r, after the
// system has recorded it.
func (b Builder) WithFatalReporter(r coherence.FatalReporter) Builder {
	b.fatal = r
	return b
}

// WithHook registers a hook on the bus and on every line controller.
func (b Builder) WithHook(h sim.Hook) Builder {
	b.hooks = append(b.hooks[:len(b.hooks):len(b.hooks)], h)
	return b
}

// Build creates a system with one core and one cache per trace.
func (b Builder) Build(traces []*loader.Trace) (*System, error) {
	if b.family == nil {
		return nil, fmt.Errorf("no coherence protocol selected")
	}

	if len(traces) == 0 {
		return nil, fmt.Errorf("at least one trace is required")
	}

	if err := b.timing.Validate(); err != nil {
		return nil, fmt.Errorf("invalid timing config: %w", err)
	}

	if err := b.cacheConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cache config: %w", err)
	}

	table := latency.NewTableWithConfig(b.timing.Clone())

	s := &System{
		family:          b.family,
		engine:          sim.NewSerialEngine(),
		latency:         table,
		freq:            table.Freq(),
		maxCycles:       b.timing.MaxCycles,
		checkInvariants: b.checkInvariants,
		memory:          bus.NewMemory(),
	}
	s.reporter.next = b.fatal

	s.memory.Preload(b.memory)
	s.bus = bus.New(table, s.memory)

	for i, trace := range traces {
		c := cache.New(
			coherence.ModuleID(i),
			b.family,
			b.cacheConfig,
			s.bus,
			&s.counter,
			&s.reporter,
		)

		if id := s.bus.Attach(c); id != c.ID() {
			return nil, fmt.Errorf("cache %d attached as module %d", c.ID(), id)
		}

		p := core.NewCore(i, c, table, trace.Ops)
		if b.accessLog {
			p.EnableAccessLog()
		}
		c.SetRequester(p)

		s.caches = append(s.caches, c)
		s.cores = append(s.cores, p)
	}

	for _, h := range b.hooks {
		s.bus.AcceptHook(h)
		for _, c := range s.caches {
			c.AcceptHook(h)
		}
	}

	return s, nil
}
