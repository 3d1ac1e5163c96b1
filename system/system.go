// Package system assembles cores, caches, the bus and memory into a
// snooping multiprocessor and runs it on the Akita event engine.
package system

import (
	"errors"
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/snoopsim/coherence"
	"github.com/sarchlab/snoopsim/timing/bus"
	"github.com/sarchlab/snoopsim/timing/cache"
	"github.com/sarchlab/snoopsim/timing/core"
	"github.com/sarchlab/snoopsim/timing/latency"
)

// ErrMaxCycles is returned when a run does not finish within the configured
// number of cycles.
var ErrMaxCycles = errors.New("cycle limit reached")

// tickEvent advances the whole system by one cycle.
type tickEvent struct {
	*sim.EventBase
}

func newTickEvent(t sim.VTimeInSec, handler sim.Handler) *tickEvent {
	return &tickEvent{EventBase: sim.NewEventBase(t, handler)}
}

// counter collects the protocol statistics of all caches.
type counter struct {
	misses   uint64
	upgrades uint64
}

func (c *counter) IncCacheMisses() {
	c.misses++
}

func (c *counter) IncSilentUpgrades() {
	c.upgrades++
}

// reporter keeps the first fatal error and stops the run.
type reporter struct {
	err  error
	next coherence.FatalReporter
}

func (r *reporter) Fatal(err error) {
	if r.err != nil {
		return
	}

	r.err = err
	if r.next != nil {
		r.next.Fatal(err)
	}
}

// System is a snooping bus multiprocessor.
type System struct {
	family  *coherence.Family
	engine  *sim.SerialEngine
	latency *latency.Table
	freq    sim.Freq

	maxCycles       uint64
	checkInvariants bool

	bus    *bus.Bus
	memory *bus.Memory
	caches []*cache.Cache
	cores  []*core.Core

	counter  counter
	reporter reporter

	cycle uint64
}

// Family returns the protocol the caches run.
func (s *System) Family() *coherence.Family {
	return s.family
}

// Bus returns the shared bus.
func (s *System) Bus() *bus.Bus {
	return s.bus
}

// Memory returns main memory.
func (s *System) Memory() *bus.Memory {
	return s.memory
}

// Caches returns the private caches in module order.
func (s *System) Caches() []*cache.Cache {
	return s.caches
}

// Cores returns the processors in module order.
func (s *System) Cores() []*core.Core {
	return s.cores
}

// Cycle returns the number of cycles simulated so far.
func (s *System) Cycle() uint64 {
	return s.cycle
}

// Finished returns true once every core retired its trace and the bus is
// idle.
func (s *System) Finished() bool {
	for _, c := range s.cores {
		if !c.Halted() {
			return false
		}
	}

	return s.bus.Idle()
}

// Run simulates until every trace retires, a protocol violation is reported,
// or the cycle limit is reached.
func (s *System) Run() (*Stats, error) {
	s.engine.Schedule(newTickEvent(s.freq.ThisTick(s.engine.CurrentTime()), s))

	if err := s.engine.Run(); err != nil {
		return nil, fmt.Errorf("engine failed: %w", err)
	}

	stats := s.Stats()

	if s.reporter.err != nil {
		return stats, s.reporter.err
	}

	if !s.Finished() {
		return stats, fmt.Errorf("after %d cycles: %w", s.cycle, ErrMaxCycles)
	}

	return stats, nil
}

// Handle ticks every core and then the bus.
func (s *System) Handle(e sim.Event) error {
	s.step()

	if s.stopped() {
		return nil
	}

	s.engine.Schedule(newTickEvent(s.freq.NextTick(e.Time()), s))

	return nil
}

func (s *System) step() {
	for _, c := range s.cores {
		c.Tick(s.cycle)
	}

	s.bus.Tick(s.cycle)
	s.cycle++

	if s.checkInvariants && s.reporter.err == nil {
		if err := CheckInvariants(s.caches, s.memory); err != nil {
			s.reporter.Fatal(err)
		}
	}
}

func (s *System) stopped() bool {
	return s.reporter.err != nil || s.cycle >= s.maxCycles || s.Finished()
}
