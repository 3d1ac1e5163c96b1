package coherence

import "strings"

// Action is a set of side effects a transition emits.
type Action uint16

// Actions are emitted in the order they are declared here.
const (
	ActSetShared Action = 1 << iota
	ActDataOnBus
	ActSendGetS
	ActSendGetM
	ActDataToProc
	ActCountMiss
	ActCountSilentUpgrade
)

// ActNone means the message is absorbed without any side effect.
const ActNone Action = 0

var actionNames = []struct {
	act  Action
	name string
}{
	{ActSetShared, "SHARED"},
	{ActDataOnBus, "DATA_ON_BUS"},
	{ActSendGetS, "GETS"},
	{ActSendGetM, "GETM"},
	{ActDataToProc, "DATA_TO_PROC"},
	{ActCountMiss, "MISS"},
	{ActCountSilentUpgrade, "SILENT_UPGRADE"},
}

// Has returns true if all the actions in b are in a.
func (a Action) Has(b Action) bool {
	return a&b == b
}

func (a Action) String() string {
	if a == ActNone {
		return "-"
	}

	parts := make([]string, 0, len(actionNames))
	for _, n := range actionNames {
		if a.Has(n.act) {
			parts = append(parts, n.name)
		}
	}

	return strings.Join(parts, "|")
}

// Transition is one entry of a family's table. Fatal marks a protocol
// violation; every other field is then ignored.
type Transition struct {
	Actions Action
	Next    State

	// NextIfShared replaces Next when the bus shared line is asserted.
	NextIfShared State

	// NextIfForeign replaces Next when the message was sent by another module.
	NextIfForeign State

	Fatal error
}

// resolve returns the state to move to from the current state.
func (t Transition) resolve(current State, shared, foreign bool) State {
	next := t.Next
	if t.NextIfShared != StateNone && shared {
		next = t.NextIfShared
	}

	if t.NextIfForeign != StateNone && foreign {
		next = t.NextIfForeign
	}

	if next == StateNone {
		return current
	}

	return next
}

func (t Transition) String() string {
	if t.Fatal != nil {
		return "fatal: " + t.Fatal.Error()
	}

	var b strings.Builder
	b.WriteString(t.Actions.String())

	if t.Next != StateNone {
		b.WriteString(" -> " + t.Next.String())
	}

	if t.NextIfShared != StateNone {
		b.WriteString(" (shared: " + t.NextIfShared.String() + ")")
	}

	if t.NextIfForeign != StateNone {
		b.WriteString(" (foreign: " + t.NextIfForeign.String() + ")")
	}

	return b.String()
}

func do(actions Action, next State) Transition {
	return Transition{Actions: actions, Next: next}
}

func stay(actions Action) Transition {
	return Transition{Actions: actions}
}

func fatal(reason error) Transition {
	return Transition{Fatal: reason}
}
