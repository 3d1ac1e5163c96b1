package coherence

import "fmt"

// State is the coherence state of one line in one cache. The set is the
// union of every family's states; a Family only uses a subset.
type State int

// StateNone is never held by a line. Transitions use it to mean "unchanged".
const (
	StateNone State = iota
	StateI
	StateS
	StateE
	StateO
	StateM
	StateIS
	StateISE
	StateIM
	StateSM
	StateOM
)

var stateNames = [...]string{
	StateNone: "X",
	StateI:    "I",
	StateS:    "S",
	StateE:    "E",
	StateO:    "O",
	StateM:    "M",
	StateIS:   "IS",
	StateISE:  "ISE",
	StateIM:   "IM",
	StateSM:   "SM",
	StateOM:   "OM",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}

	return fmt.Sprintf("State(%d)", int(s))
}

// ParseState converts a state name such as "ISE" back to a State.
func ParseState(name string) (State, error) {
	for s, n := range stateNames {
		if State(s) != StateNone && n == name {
			return State(s), nil
		}
	}

	return StateNone, fmt.Errorf("unknown coherence state %q", name)
}

// IsTransient returns true while a bus transaction for the line is pending.
func (s State) IsTransient() bool {
	switch s {
	case StateIS, StateISE, StateIM, StateSM, StateOM:
		return true
	default:
		return false
	}
}

// IsStable returns true for I, S, E, O and M.
func (s State) IsStable() bool {
	return s != StateNone && !s.IsTransient()
}

// CanRead returns true if a LOAD hits in this state.
func (s State) CanRead() bool {
	switch s {
	case StateS, StateE, StateO, StateM:
		return true
	default:
		return false
	}
}

// CanWrite returns true if a STORE hits in this state, silently or not.
func (s State) CanWrite() bool {
	return s == StateM || s == StateE
}

// IsOwner returns true if the line answers GETS/GETM with data.
func (s State) IsOwner() bool {
	switch s {
	case StateE, StateO, StateM, StateOM:
		return true
	default:
		return false
	}
}
