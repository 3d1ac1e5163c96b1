package coherence

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

type trigger struct {
	state State
	kind  MsgKind
}

// Family is a coherence protocol expressed as data: the states it uses and a
// table from (state, message) to transition for both the processor side and
// the bus side.
type Family struct {
	name   string
	states []State
	cache  map[trigger]Transition
	snoop  map[trigger]Transition
}

func newFamily(name string, states ...State) *Family {
	return &Family{
		name:   name,
		states: states,
		cache:  make(map[trigger]Transition),
		snoop:  make(map[trigger]Transition),
	}
}

func (f *Family) onCache(s State, t Transition, kinds ...MsgKind) *Family {
	for _, k := range kinds {
		f.cache[trigger{s, k}] = t
	}

	return f
}

func (f *Family) onSnoop(s State, t Transition, kinds ...MsgKind) *Family {
	for _, k := range kinds {
		f.snoop[trigger{s, k}] = t
	}

	return f
}

// Name returns the protocol name, e.g. "MOESI".
func (f *Family) Name() string {
	return f.name
}

// States returns the states the family uses, stable states first.
func (f *Family) States() []State {
	out := make([]State, len(f.states))
	copy(out, f.states)

	return out
}

// Has returns true if the family uses state s.
func (f *Family) Has(s State) bool {
	for _, st := range f.states {
		if st == s {
			return true
		}
	}

	return false
}

// ReadPending is the transient state a LOAD miss moves to.
func (f *Family) ReadPending() State {
	if f.Has(StateISE) {
		return StateISE
	}

	return StateIS
}

// CacheTransition looks up the processor-side transition.
func (f *Family) CacheTransition(s State, k MsgKind) (Transition, bool) {
	t, ok := f.cache[trigger{s, k}]
	return t, ok
}

// SnoopTransition looks up the bus-side transition.
func (f *Family) SnoopTransition(s State, k MsgKind) (Transition, bool) {
	t, ok := f.snoop[trigger{s, k}]
	return t, ok
}

// Row is one printable entry of a family's table.
type Row struct {
	Side       string
	State      State
	Kind       MsgKind
	Transition Transition
}

// Rows lists the whole table ordered by side, state and message.
func (f *Family) Rows() []Row {
	rows := make([]Row, 0, len(f.cache)+len(f.snoop))
	for k, t := range f.cache {
		rows = append(rows, Row{Side: "cache", State: k.state, Kind: k.kind, Transition: t})
	}

	for k, t := range f.snoop {
		rows = append(rows, Row{Side: "snoop", State: k.state, Kind: k.kind, Transition: t})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Side != rows[j].Side {
			return rows[i].Side < rows[j].Side
		}

		if rows[i].State != rows[j].State {
			return rows[i].State < rows[j].State
		}

		return rows[i].Kind < rows[j].Kind
	})

	return rows
}

// Dump writes the family's table, one transition per line.
func (f *Family) Dump(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%s states: %s\n", f.name, joinStates(f.states)); err != nil {
		return err
	}

	for _, r := range f.Rows() {
		_, err := fmt.Fprintf(w, "  %-5s %-3s %-5s %s\n",
			r.Side, r.State, r.Kind, r.Transition)
		if err != nil {
			return err
		}
	}

	return nil
}

func joinStates(states []State) string {
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = s.String()
	}

	return strings.Join(names, " ")
}

// Families returns the four supported protocols in increasing order of
// state count.
func Families() []*Family {
	return []*Family{MSI(), MESI(), MOSI(), MOESI()}
}

// FamilyByName returns the family whose name matches, ignoring case.
func FamilyByName(name string) (*Family, error) {
	for _, f := range Families() {
		if strings.EqualFold(f.name, name) {
			return f, nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, name)
}

// withBase adds the rows that every family shares: the Invalid state, the
// write-pending state, and the violation rows for every transient state and
// for DATA seen while a stable copy is held.
func (f *Family) withBase() *Family {
	readPending := f.ReadPending()

	f.onCache(StateI, do(ActSendGetS|ActCountMiss, readPending), Load).
		onCache(StateI, do(ActSendGetM|ActCountMiss, StateIM), Store).
		onSnoop(StateI, stay(ActNone), GetS, GetM, Data)

	f.onCache(StateM, stay(ActDataToProc), Load, Store)

	f.onSnoop(StateIM, stay(ActNone), GetS, GetM).
		onSnoop(StateIM, do(ActDataToProc, StateM), Data)

	for _, s := range f.states {
		if s.IsTransient() {
			f.onCache(s, fatal(ErrOutstandingRequest), Load, Store)
			continue
		}

		if s != StateI {
			f.onSnoop(s, fatal(ErrDataWhileOwning), Data)
		}
	}

	return f
}
