// Package cache provides the per-core private caches of the snooping system.
//
// Lines are tracked with an Akita cache directory. Every directory block
// carries a coherence controller and the line's value; the controller talks
// to the bus through the cache. Lines are never evicted: a line that finds
// no Invalid way in its set is kept in an overflow table instead.
package cache

import (
	"fmt"
	"log"
	"sort"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/snoopsim/coherence"
)

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int `json:"size"`
	// Associativity (number of ways)
	Associativity int `json:"associativity"`
	// BlockSize in bytes (cache line size)
	BlockSize int `json:"block_size"`
}

// DefaultConfig returns the default private cache: 32KB, 8-way, 64B lines.
func DefaultConfig() Config {
	return Config{
		Size:          32 * 1024,
		Associativity: 8,
		BlockSize:     64,
	}
}

// Validate checks that the geometry describes at least one full set.
func (c Config) Validate() error {
	if c.BlockSize <= 0 || c.BlockSize&(c.BlockSize-1) != 0 {
		return fmt.Errorf("block_size must be a power of two")
	}
	if c.Associativity <= 0 {
		return fmt.Errorf("associativity must be > 0")
	}
	if c.Size < c.Associativity*c.BlockSize {
		return fmt.Errorf("size must hold at least one set")
	}
	return nil
}

// NumSets returns the number of sets.
func (c Config) NumSets() int {
	return c.Size / (c.Associativity * c.BlockSize)
}

// Interconnect is the cache's view of the bus.
type Interconnect interface {
	Request(kind coherence.MsgKind, addr uint64, src coherence.ModuleID)
	SupplyData(addr uint64, src, dst coherence.ModuleID, value uint64)
	SetSharedLine(addr uint64)
	SharedLine() bool
}

// Completion tells the processor that its request finished.
type Completion struct {
	Kind  coherence.MsgKind
	Addr  uint64
	Value uint64
	// Hit is true if the request finished without a bus transaction.
	Hit bool
}

// Requester is the processor side of the cache.
type Requester interface {
	Complete(c Completion)
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Loads          uint64
	Stores         uint64
	Hits           uint64
	Misses         uint64
	SilentUpgrades uint64
	DataSupplied   uint64
	Invalidations  uint64
	// OverflowLines counts lines allocated outside the directory because
	// their set had no Invalid way.
	OverflowLines uint64
}

// Line is a snapshot of one allocated line.
type Line struct {
	Addr  uint64
	State coherence.State
	Value uint64
}

type line struct {
	ctrl  *coherence.Controller
	value uint64
}

type request struct {
	kind  coherence.MsgKind
	addr  uint64
	value uint64
}

// Cache is a private cache with one coherence controller per line.
type Cache struct {
	id     coherence.ModuleID
	config Config
	family *coherence.Family

	// Akita cache directory for tag management
	directory *akitacache.DirectoryImpl

	// Line storage - indexed by (setID * associativity + wayID)
	lines []*line

	// Lines whose set was full when they were first referenced
	overflow map[uint64]*line

	bus       Interconnect
	requester Requester
	global    coherence.StatsCounter
	fatal     coherence.FatalReporter
	hooks     []sim.Hook

	pending *request
	issuing bool

	stats Statistics
}

// New creates a cache. The module id must be the one the bus assigned.
func New(
	id coherence.ModuleID,
	family *coherence.Family,
	config Config,
	bus Interconnect,
	global coherence.StatsCounter,
	fatal coherence.FatalReporter,
) *Cache {
	numSets := config.NumSets()

	return &Cache{
		id:     id,
		config: config,
		family: family,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		lines:    make([]*line, numSets*config.Associativity),
		overflow: make(map[uint64]*line),
		bus:      bus,
		global:   global,
		fatal:    fatal,
	}
}

// SetRequester connects the processor that receives completions.
func (c *Cache) SetRequester(r Requester) {
	c.requester = r
}

// AcceptHook registers a hook on every current and future line controller.
func (c *Cache) AcceptHook(hook sim.Hook) {
	c.hooks = append(c.hooks, hook)

	for _, l := range c.lines {
		if l != nil {
			l.ctrl.AcceptHook(hook)
		}
	}

	for _, l := range c.overflow {
		l.ctrl.AcceptHook(hook)
	}
}

// ID returns the module id of the cache.
func (c *Cache) ID() coherence.ModuleID {
	return c.id
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

// Busy returns true while a processor request is outstanding.
func (c *Cache) Busy() bool {
	return c.pending != nil
}

// LineAddr returns the line-aligned address.
func (c *Cache) LineAddr(addr uint64) uint64 {
	return (addr / uint64(c.config.BlockSize)) * uint64(c.config.BlockSize)
}

// blockIndex computes the index into lines for a block.
func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

// State returns the coherence state of the line holding addr.
func (c *Cache) State(addr uint64) coherence.State {
	l := c.find(c.LineAddr(addr))
	if l == nil {
		return coherence.StateI
	}

	return l.ctrl.State()
}

// Value returns the cached value of the line holding addr, if the cache has a
// readable copy.
func (c *Cache) Value(addr uint64) (uint64, bool) {
	l := c.find(c.LineAddr(addr))
	if l == nil || !l.ctrl.State().CanRead() {
		return 0, false
	}

	return l.value, true
}

// Lines returns every line whose controller is not Invalid.
func (c *Cache) Lines() []Line {
	var lines []Line

	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if !block.IsValid {
				continue
			}

			l := c.lines[c.blockIndex(block)]
			if l.ctrl.State() == coherence.StateI {
				continue
			}

			lines = append(lines, Line{
				Addr:  block.Tag,
				State: l.ctrl.State(),
				Value: l.value,
			})
		}
	}

	for _, addr := range c.overflowAddrs() {
		l := c.overflow[addr]
		if l.ctrl.State() == coherence.StateI {
			continue
		}

		lines = append(lines, Line{Addr: addr, State: l.ctrl.State(), Value: l.value})
	}

	return lines
}

// Dump renders every allocated line controller.
func (c *Cache) Dump() []string {
	var out []string

	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid {
				out = append(out, c.lines[c.blockIndex(block)].ctrl.Dump())
			}
		}
	}

	for _, addr := range c.overflowAddrs() {
		out = append(out, c.overflow[addr].ctrl.Dump())
	}

	return out
}

func (c *Cache) overflowAddrs() []uint64 {
	addrs := make([]uint64, 0, len(c.overflow))
	for addr := range c.overflow {
		addrs = append(addrs, addr)
	}

	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	return addrs
}

// Load issues a processor read.
func (c *Cache) Load(addr uint64) error {
	c.stats.Loads++
	return c.issue(request{kind: coherence.Load, addr: c.LineAddr(addr)})
}

// Store issues a processor write of value.
func (c *Cache) Store(addr uint64, value uint64) error {
	c.stats.Stores++
	return c.issue(request{
		kind:  coherence.Store,
		addr:  c.LineAddr(addr),
		value: value,
	})
}

func (c *Cache) issue(req request) error {
	if c.pending != nil {
		err := fmt.Errorf("cache %d: %s 0x%x while 0x%x is pending: %w",
			c.id, req.kind, req.addr, c.pending.addr,
			coherence.ErrOutstandingRequest)
		c.fatal.Fatal(err)
		return err
	}

	l := c.allocate(req.addr)

	c.pending = &req
	c.issuing = true

	err := l.ctrl.ProcessCacheRequest(coherence.Msg{
		Kind:  req.kind,
		Addr:  req.addr,
		Src:   c.id,
		Dst:   c.id,
		Value: req.value,
	})

	c.issuing = false
	c.touch(req.addr)

	if err != nil {
		c.pending = nil
		return err
	}

	return nil
}

// Snoop handles a message observed on the bus.
func (c *Cache) Snoop(msg coherence.Msg) {
	l := c.find(msg.Addr)
	if l == nil {
		if msg.Kind == coherence.Data {
			c.fatal.Fatal(fmt.Errorf("cache %d: DATA for unallocated line 0x%x: %w",
				c.id, msg.Addr, coherence.ErrUnexpectedMessage))
		}

		return
	}

	if msg.Kind == coherence.Data {
		l.value = msg.Value
	}

	before := l.ctrl.State()
	if err := l.ctrl.ProcessSnoopRequest(msg); err != nil {
		return
	}

	after := l.ctrl.State()
	if holdsCopy(before) && !holdsCopy(after) {
		c.stats.Invalidations++
	}

	c.touch(msg.Addr)
}

func holdsCopy(s coherence.State) bool {
	return s.IsStable() && s != coherence.StateI ||
		s == coherence.StateSM || s == coherence.StateOM
}

func (c *Cache) find(addr uint64) *line {
	block := c.directory.Lookup(0, addr)
	if block == nil || !block.IsValid {
		return c.overflow[addr]
	}

	return c.lines[c.blockIndex(block)]
}

// allocate returns the line for addr, binding a directory way to it on first
// reference. Only ways whose controller is Invalid can be rebound; when the
// set has none the line goes to the overflow table.
func (c *Cache) allocate(addr uint64) *line {
	if l := c.find(addr); l != nil {
		return l
	}

	victim := c.directory.FindVictim(addr)
	if victim.IsValid && c.lines[c.blockIndex(victim)].ctrl.State() != coherence.StateI {
		victim = nil

		for _, block := range c.directory.GetSets()[c.setOf(addr)].Blocks {
			l := c.lines[c.blockIndex(block)]
			if l == nil || l.ctrl.State() == coherence.StateI {
				victim = block
				break
			}
		}
	}

	if victim == nil {
		l := &line{ctrl: c.newController(addr)}
		c.overflow[addr] = l
		c.stats.OverflowLines++

		return l
	}

	index := c.blockIndex(victim)
	l := c.lines[index]

	if l == nil {
		l = &line{ctrl: c.newController(addr)}
		c.lines[index] = l
	} else if err := l.ctrl.Reset(addr); err != nil {
		log.Panicf("cache %d: %v", c.id, err)
	}

	l.value = 0
	victim.Tag = addr
	victim.IsValid = true
	victim.IsDirty = false

	return l
}

func (c *Cache) setOf(addr uint64) int {
	return int(addr/uint64(c.config.BlockSize)) % c.config.NumSets()
}

func (c *Cache) newController(addr uint64) *coherence.Controller {
	ctrl := coherence.NewController(c.family, c.id, addr, port{c}, port{c}, c.fatal)
	for _, hook := range c.hooks {
		ctrl.AcceptHook(hook)
	}

	return ctrl
}

// touch updates LRU order and the dirty bit of the line.
func (c *Cache) touch(addr uint64) {
	block := c.directory.Lookup(0, addr)
	if block == nil {
		return
	}

	switch c.lines[c.blockIndex(block)].ctrl.State() {
	case coherence.StateM, coherence.StateO, coherence.StateOM:
		block.IsDirty = true
	default:
		block.IsDirty = false
	}

	c.directory.Visit(block)
}

func (c *Cache) complete(addr uint64) {
	req := c.pending
	if req == nil || req.addr != addr {
		log.Panicf("cache %d: data for 0x%x without a matching request", c.id, addr)
	}

	l := c.find(addr)

	if req.kind == coherence.Store {
		l.value = req.value
	}

	completion := Completion{
		Kind:  req.kind,
		Addr:  addr,
		Value: l.value,
		Hit:   c.issuing,
	}

	if completion.Hit {
		c.stats.Hits++
	}

	c.pending = nil

	if c.requester != nil {
		c.requester.Complete(completion)
	}
}

// port is the coherence.Bus and coherence.StatsCounter that the line
// controllers of a cache share.
type port struct {
	c *Cache
}

func (p port) SendGetS(addr uint64) {
	p.c.bus.Request(coherence.GetS, addr, p.c.id)
}

func (p port) SendGetM(addr uint64) {
	p.c.bus.Request(coherence.GetM, addr, p.c.id)
}

func (p port) SendDataToProc(addr uint64) {
	p.c.complete(addr)
}

func (p port) SendDataOnBus(addr uint64, dst coherence.ModuleID) {
	l := p.c.find(addr)
	p.c.stats.DataSupplied++
	p.c.bus.SupplyData(addr, p.c.id, dst, l.value)
}

func (p port) SetSharedLine(addr uint64) {
	p.c.bus.SetSharedLine(addr)
}

func (p port) SharedLine() bool {
	return p.c.bus.SharedLine()
}

func (p port) IncCacheMisses() {
	p.c.stats.Misses++
	if p.c.global != nil {
		p.c.global.IncCacheMisses()
	}
}

func (p port) IncSilentUpgrades() {
	p.c.stats.SilentUpgrades++
	if p.c.global != nil {
		p.c.global.IncSilentUpgrades()
	}
}
