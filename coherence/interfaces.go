package coherence

// Bus is the controller's view of the interconnect and of its own
// processor.
type Bus interface {
	// SendGetS enqueues a read request for the line.
	SendGetS(addr uint64)

	// SendGetM enqueues a write request for the line.
	SendGetM(addr uint64)

	// SendDataToProc completes the local processor's pending request.
	SendDataToProc(addr uint64)

	// SendDataOnBus answers another controller's request and cancels the
	// memory fetch for it.
	SendDataOnBus(addr uint64, dst ModuleID)

	// SetSharedLine asserts the shared line of the transaction for addr.
	SetSharedLine(addr uint64)

	// SharedLine reports whether any snooper asserted the shared line during
	// the current transaction.
	SharedLine() bool
}

// StatsCounter receives the counters the protocol is responsible for.
type StatsCounter interface {
	IncCacheMisses()
	IncSilentUpgrades()
}

// FatalReporter stops the simulation on a protocol violation.
type FatalReporter interface {
	Fatal(err error)
}

// Protocol is the capability set every line controller offers to the cache
// that owns it.
type Protocol interface {
	ProcessCacheRequest(msg Msg) error
	ProcessSnoopRequest(msg Msg) error
	State() State
	Dump() string
}
