// Package core provides the trace-driven processor model.
// A core replays one trace through its private cache with at most one
// request outstanding.
package core

import (
	"github.com/sarchlab/snoopsim/loader"
	"github.com/sarchlab/snoopsim/timing/cache"
	"github.com/sarchlab/snoopsim/timing/latency"
)

// Cache is the processor's view of its private cache.
type Cache interface {
	Load(addr uint64) error
	Store(addr uint64, value uint64) error
}

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the number of cycles until the last operation retired.
	Cycles uint64
	// Retired is the number of completed operations.
	Retired uint64
	// Loads is the number of completed reads.
	Loads uint64
	// Stores is the number of completed writes.
	Stores uint64
	// Hits is the number of operations completed without a bus transaction.
	Hits uint64
	// Misses is the number of operations that waited for the bus.
	Misses uint64
	// StallCycles is the number of cycles spent waiting for the bus.
	StallCycles uint64
}

// Access records the outcome of one operation.
type Access struct {
	Op         loader.Op
	Value      uint64
	Hit        bool
	IssueCycle uint64
	DoneCycle  uint64
}

// Core replays a trace.
type Core struct {
	id      int
	cache   Cache
	latency *latency.Table
	ops     []loader.Op

	next       int
	waiting    bool
	readyAt    uint64
	cycle      uint64
	issueCycle uint64

	stats   Stats
	logging bool
	log     []Access
	err     error
}

// NewCore creates a core that replays ops through c.
func NewCore(id int, c Cache, table *latency.Table, ops []loader.Op) *Core {
	return &Core{
		id:      id,
		cache:   c,
		latency: table,
		ops:     ops,
	}
}

// ID returns the processor number.
func (c *Core) ID() int {
	return c.id
}

// EnableAccessLog makes the core record every completed operation.
func (c *Core) EnableAccessLog() {
	c.logging = true
}

// AccessLog returns the completed operations in order.
func (c *Core) AccessLog() []Access {
	return c.log
}

// Halted returns true once every operation has retired.
func (c *Core) Halted() bool {
	return c.next == len(c.ops) && !c.waiting
}

// Err returns the error that stopped the core, if any.
func (c *Core) Err() error {
	return c.err
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	return c.stats
}

// Remaining returns the number of operations not yet issued.
func (c *Core) Remaining() int {
	return len(c.ops) - c.next
}

// Tick advances the core by one cycle.
func (c *Core) Tick(cycle uint64) {
	c.cycle = cycle

	if c.Halted() || c.err != nil {
		return
	}

	if c.waiting {
		c.stats.StallCycles++
		return
	}

	if cycle < c.readyAt {
		return
	}

	op := c.ops[c.next]
	c.next++
	c.waiting = true
	c.issueCycle = cycle

	var err error
	if op.Write {
		err = c.cache.Store(op.Addr, op.Value)
	} else {
		err = c.cache.Load(op.Addr)
	}

	if err != nil {
		c.waiting = false
		c.err = err
	}
}

// Complete is called by the cache when the outstanding operation finishes.
func (c *Core) Complete(done cache.Completion) {
	op := c.ops[c.next-1]
	c.waiting = false

	c.stats.Retired++
	if op.Write {
		c.stats.Stores++
	} else {
		c.stats.Loads++
	}

	if done.Hit {
		c.stats.Hits++
		c.readyAt = c.cycle + c.latency.HitLatency()
	} else {
		c.stats.Misses++
		c.readyAt = c.cycle + c.latency.IssueInterval()
	}
	c.stats.Cycles = c.readyAt

	if c.logging {
		c.log = append(c.log, Access{
			Op:         op,
			Value:      done.Value,
			Hit:        done.Hit,
			IssueCycle: c.issueCycle,
			DoneCycle:  c.cycle,
		})
	}
}
