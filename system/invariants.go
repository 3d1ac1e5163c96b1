package system

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sarchlab/snoopsim/coherence"
	"github.com/sarchlab/snoopsim/timing/bus"
	"github.com/sarchlab/snoopsim/timing/cache"
)

// ErrCoherence is reported when the caches disagree about a line.
var ErrCoherence = errors.New("coherence invariant violated")

type holder struct {
	module coherence.ModuleID
	state  coherence.State
	value  uint64
}

// CheckInvariants verifies the single-writer and data-value invariants of
// every line held by any cache.
func CheckInvariants(caches []*cache.Cache, memory *bus.Memory) error {
	lines := make(map[uint64][]holder)

	for _, c := range caches {
		for _, l := range c.Lines() {
			lines[l.Addr] = append(lines[l.Addr], holder{
				module: c.ID(),
				state:  l.State,
				value:  l.Value,
			})
		}
	}

	addrs := make([]uint64, 0, len(lines))
	for addr := range lines {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	for _, addr := range addrs {
		if err := checkLine(addr, lines[addr], memory); err != nil {
			return err
		}
	}

	return nil
}

func checkLine(addr uint64, holders []holder, memory *bus.Memory) error {
	var owner *holder
	exclusive := false

	for i := range holders {
		h := &holders[i]
		if !h.state.IsOwner() {
			continue
		}

		if owner != nil {
			return fmt.Errorf("line 0x%x: caches %d (%s) and %d (%s) both own it: %w",
				addr, owner.module, owner.state, h.module, h.state, ErrCoherence)
		}

		owner = h
		exclusive = h.state == coherence.StateM || h.state == coherence.StateE
	}

	if exclusive {
		for _, h := range holders {
			if h.module != owner.module && holdsData(h.state) {
				return fmt.Errorf("line 0x%x: cache %d is %s while cache %d is %s: %w",
					addr, owner.module, owner.state, h.module, h.state, ErrCoherence)
			}
		}

		return nil
	}

	expected := memory.Peek(addr)
	source := "memory"
	if owner != nil {
		expected = owner.value
		source = fmt.Sprintf("cache %d (%s)", owner.module, owner.state)
	}

	for _, h := range holders {
		if h.state == coherence.StateS && h.value != expected {
			return fmt.Errorf("line 0x%x: cache %d holds %d in S, %s holds %d: %w",
				addr, h.module, h.value, source, expected, ErrCoherence)
		}
	}

	return nil
}

// holdsData reports whether a state keeps a copy that can be read or
// supplied. SM is left out: its copy is replaced by the DATA it waits for.
func holdsData(s coherence.State) bool {
	switch s {
	case coherence.StateS, coherence.StateE, coherence.StateO, coherence.StateM,
		coherence.StateOM:
		return true
	}
	return false
}
