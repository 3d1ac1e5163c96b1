package coherence

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"
)

// HookPosTransition is triggered after a controller handles a message. The
// hook item is a TransitionRecord.
var HookPosTransition = &sim.HookPos{Name: "CoherenceTransition"}

// TransitionRecord describes one handled message.
type TransitionRecord struct {
	Family  string
	Module  ModuleID
	Addr    uint64
	Side    string
	Msg     Msg
	From    State
	To      State
	Actions Action
}

var _ Protocol = (*Controller)(nil)

// Controller runs a family's state machine for one line of one cache.
type Controller struct {
	*sim.HookableBase

	family *Family
	module ModuleID
	addr   uint64
	state  State

	bus   Bus
	stats StatsCounter
	fatal FatalReporter
}

// NewController creates a controller in the Invalid state.
func NewController(
	family *Family,
	module ModuleID,
	addr uint64,
	bus Bus,
	stats StatsCounter,
	fatal FatalReporter,
) *Controller {
	return &Controller{
		HookableBase: sim.NewHookableBase(),
		family:       family,
		module:       module,
		addr:         addr,
		state:        StateI,
		bus:          bus,
		stats:        stats,
		fatal:        fatal,
	}
}

// Family returns the protocol the controller runs.
func (c *Controller) Family() *Family {
	return c.family
}

// Module returns the id of the cache that owns the line.
func (c *Controller) Module() ModuleID {
	return c.module
}

// Addr returns the line address.
func (c *Controller) Addr() uint64 {
	return c.addr
}

// State returns the current coherence state.
func (c *Controller) State() State {
	return c.state
}

// Reset rebinds an Invalid controller to a new line address. Lines holding
// any copy or waiting on the bus cannot be reset.
func (c *Controller) Reset(addr uint64) error {
	if c.state != StateI {
		return fmt.Errorf("cannot reuse line 0x%x in state %s", c.addr, c.state)
	}

	c.addr = addr

	return nil
}

// Dump renders the controller for tracing.
func (c *Controller) Dump() string {
	return fmt.Sprintf("%s_protocol - cache %d line 0x%x - state: %s",
		c.family.name, c.module, c.addr, c.state)
}

// ProcessCacheRequest handles a LOAD or STORE from the local processor.
func (c *Controller) ProcessCacheRequest(msg Msg) error {
	if !msg.Kind.IsProcessorRequest() {
		return c.violate(msg, ErrUnexpectedMessage)
	}

	t, ok := c.family.CacheTransition(c.state, msg.Kind)

	return c.apply("cache", msg, t, ok)
}

// ProcessSnoopRequest handles a message observed on the bus, including the
// controller's own requests.
func (c *Controller) ProcessSnoopRequest(msg Msg) error {
	if !msg.Kind.IsBusMessage() {
		return c.violate(msg, ErrUnexpectedMessage)
	}

	t, ok := c.family.SnoopTransition(c.state, msg.Kind)

	return c.apply("snoop", msg, t, ok)
}

func (c *Controller) apply(side string, msg Msg, t Transition, ok bool) error {
	if !ok {
		return c.violate(msg, ErrUnexpectedMessage)
	}

	if t.Fatal != nil {
		return c.violate(msg, t.Fatal)
	}

	shared := t.NextIfShared != StateNone && c.bus.SharedLine()
	foreign := msg.Src != c.module

	from := c.state
	c.state = t.resolve(from, shared, foreign)

	c.emit(msg, t.Actions)

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    HookPosTransition,
		Item: TransitionRecord{
			Family:  c.family.name,
			Module:  c.module,
			Addr:    c.addr,
			Side:    side,
			Msg:     msg,
			From:    from,
			To:      c.state,
			Actions: t.Actions,
		},
	})

	return nil
}

func (c *Controller) emit(msg Msg, actions Action) {
	if actions.Has(ActSetShared) {
		c.bus.SetSharedLine(c.addr)
	}

	if actions.Has(ActDataOnBus) {
		c.bus.SendDataOnBus(c.addr, msg.Src)
	}

	if actions.Has(ActSendGetS) {
		c.bus.SendGetS(c.addr)
	}

	if actions.Has(ActSendGetM) {
		c.bus.SendGetM(c.addr)
	}

	if actions.Has(ActDataToProc) {
		c.bus.SendDataToProc(c.addr)
	}

	if actions.Has(ActCountMiss) {
		c.stats.IncCacheMisses()
	}

	if actions.Has(ActCountSilentUpgrade) {
		c.stats.IncSilentUpgrades()
	}
}

func (c *Controller) violate(msg Msg, reason error) error {
	err := &ProtocolError{
		Family: c.family.name,
		Module: c.module,
		Addr:   c.addr,
		State:  c.state,
		Msg:    msg,
		Reason: reason,
	}

	c.fatal.Fatal(err)

	return err
}
