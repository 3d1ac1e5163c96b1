// Package bus models the shared snooping bus and the memory behind it.
//
// The bus grants one transaction at a time in FIFO order. A granted GETS or
// GETM is broadcast to every attached snooper, the requester included. DATA
// comes from a cache that answered the broadcast or, when none did, from
// memory, and is delivered to the requester only.
package bus

import (
	"log"

	"github.com/rs/xid"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/snoopsim/coherence"
	"github.com/sarchlab/snoopsim/timing/latency"
)

// MemoryID is the source id of DATA supplied by memory.
const MemoryID coherence.ModuleID = -1

// HookPosTransaction is triggered when a transaction delivers its DATA. The
// hook item is a Transaction.
var HookPosTransaction = &sim.HookPos{Name: "BusTransaction"}

// Snooper observes bus traffic. Broadcast requests reach every snooper and
// DATA reaches its destination only.
type Snooper interface {
	Snoop(msg coherence.Msg)
}

// Transaction is one GETS or GETM and the DATA that answers it.
type Transaction struct {
	ID        string
	Kind      coherence.MsgKind
	Addr      uint64
	Requester coherence.ModuleID
	Supplier  coherence.ModuleID
	Shared    bool
	Value     uint64

	IssueCycle     uint64
	BroadcastCycle uint64
	DataCycle      uint64
}

// FromCache reports whether another cache supplied the data.
func (t *Transaction) FromCache() bool {
	return t.Supplier != MemoryID
}

// Stats holds bus statistics.
type Stats struct {
	Transactions     uint64
	GetS             uint64
	GetM             uint64
	CacheToCache     uint64
	MemoryFetches    uint64
	CancelledFetches uint64
	BusyCycles       uint64
}

type phase int

const (
	phaseIdle phase = iota
	phaseArbitrate
	phaseData
)

// Bus is the snooping interconnect.
type Bus struct {
	*sim.HookableBase

	latency  *latency.Table
	memory   *Memory
	snoopers []Snooper

	queue   []*Transaction
	current *Transaction
	phase   phase
	readyAt uint64
	cycle   uint64

	shared   bool
	supplied bool

	stats Stats
}

// New creates a bus in front of the given memory.
func New(table *latency.Table, memory *Memory) *Bus {
	return &Bus{
		HookableBase: sim.NewHookableBase(),
		latency:      table,
		memory:       memory,
	}
}

// Attach connects a snooper and returns its module id. Ids are assigned in
// attach order starting from 0, which is also the broadcast order.
func (b *Bus) Attach(s Snooper) coherence.ModuleID {
	b.snoopers = append(b.snoopers, s)
	return coherence.ModuleID(len(b.snoopers) - 1)
}

// Memory returns the memory behind the bus.
func (b *Bus) Memory() *Memory {
	return b.memory
}

// Stats returns bus statistics.
func (b *Bus) Stats() Stats {
	return b.stats
}

// ResetStats clears bus statistics.
func (b *Bus) ResetStats() {
	b.stats = Stats{}
}

// Idle returns true if no transaction is queued or in flight.
func (b *Bus) Idle() bool {
	return b.current == nil && len(b.queue) == 0
}

// Pending returns the number of transactions waiting for the bus.
func (b *Bus) Pending() int {
	return len(b.queue)
}

// Request queues a GETS or GETM.
func (b *Bus) Request(kind coherence.MsgKind, addr uint64, src coherence.ModuleID) {
	if kind != coherence.GetS && kind != coherence.GetM {
		log.Panicf("bus: cannot request %s", kind)
	}

	b.queue = append(b.queue, &Transaction{
		ID:         xid.New().String(),
		Kind:       kind,
		Addr:       addr,
		Requester:  src,
		Supplier:   MemoryID,
		IssueCycle: b.cycle,
	})
}

// SetSharedLine asserts the shared line. Assertions for any address other
// than the one of the broadcast transaction are ignored.
func (b *Bus) SetSharedLine(addr uint64) {
	if b.phase != phaseData || b.current.Addr != addr {
		return
	}

	b.shared = true
}

// SharedLine reports whether the shared line of the transaction in flight is
// asserted.
func (b *Bus) SharedLine() bool {
	return b.shared
}

// SupplyData answers the broadcast transaction with a cache's copy of the
// line. The memory fetch is cancelled and memory takes the value as well.
func (b *Bus) SupplyData(
	addr uint64,
	src, dst coherence.ModuleID,
	value uint64,
) {
	if b.phase != phaseData || b.current.Addr != addr {
		log.Panicf("bus: module %d supplied 0x%x outside its transaction", src, addr)
	}

	if dst != b.current.Requester {
		log.Panicf("bus: module %d supplied 0x%x to %d, requester is %d",
			src, addr, dst, b.current.Requester)
	}

	if b.supplied {
		return
	}

	b.supplied = true
	b.current.Supplier = src
	b.current.Value = value
	b.memory.Write(addr, value)
}

// Tick advances the bus by one cycle.
func (b *Bus) Tick(cycle uint64) {
	b.cycle = cycle

	if b.current == nil {
		if len(b.queue) == 0 {
			return
		}

		b.grant(cycle)
	}

	b.stats.BusyCycles++

	if b.phase == phaseArbitrate && cycle >= b.readyAt {
		b.broadcast(cycle)
	}

	if b.phase == phaseData && cycle >= b.readyAt {
		b.deliver(cycle)
	}
}

func (b *Bus) grant(cycle uint64) {
	b.current = b.queue[0]
	b.queue[0] = nil
	b.queue = b.queue[1:]

	b.phase = phaseArbitrate
	b.readyAt = cycle + b.latency.ArbitrationLatency()
}

func (b *Bus) broadcast(cycle uint64) {
	txn := b.current
	txn.BroadcastCycle = cycle

	b.shared = false
	b.supplied = false
	b.phase = phaseData

	b.stats.Transactions++
	if txn.Kind == coherence.GetS {
		b.stats.GetS++
	} else {
		b.stats.GetM++
	}

	msg := coherence.Msg{
		Kind:  txn.Kind,
		Addr:  txn.Addr,
		Src:   txn.Requester,
		Dst:   txn.Requester,
		TxnID: txn.ID,
	}
	for _, s := range b.snoopers {
		s.Snoop(msg)
	}

	if b.supplied {
		b.stats.CacheToCache++
		b.stats.CancelledFetches++
		b.readyAt = cycle + b.latency.DataLatency(latency.FromCache)
	} else {
		b.stats.MemoryFetches++
		b.readyAt = cycle + b.latency.DataLatency(latency.FromMemory)
	}
}

func (b *Bus) deliver(cycle uint64) {
	txn := b.current
	txn.DataCycle = cycle
	txn.Shared = b.shared

	if !b.supplied {
		txn.Value = b.memory.Read(txn.Addr)
	}

	if int(txn.Requester) < 0 || int(txn.Requester) >= len(b.snoopers) {
		log.Panicf("bus: no snooper with id %d", txn.Requester)
	}

	b.snoopers[txn.Requester].Snoop(coherence.Msg{
		Kind:  coherence.Data,
		Addr:  txn.Addr,
		Src:   txn.Supplier,
		Dst:   txn.Requester,
		Value: txn.Value,
		TxnID: txn.ID,
	})

	b.InvokeHook(sim.HookCtx{
		Domain: b,
		Pos:    HookPosTransaction,
		Item:   *txn,
	})

	b.current = nil
	b.phase = phaseIdle
	b.shared = false
	b.supplied = false
}
