package coherence

import "fmt"

// ModuleID identifies a cache controller's module on the bus.
type ModuleID int

// MsgKind is the type of a message that drives a coherence transition.
type MsgKind int

// Processor requests arrive from the local core; bus messages are snooped.
const (
	MsgNone MsgKind = iota
	Load
	Store
	GetS
	GetM
	Data
)

var msgKindNames = map[MsgKind]string{
	MsgNone: "NONE",
	Load:    "LOAD",
	Store:   "STORE",
	GetS:    "GETS",
	GetM:    "GETM",
	Data:    "DATA",
}

func (k MsgKind) String() string {
	if name, ok := msgKindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("MsgKind(%d)", int(k))
}

// IsProcessorRequest returns true for LOAD and STORE.
func (k MsgKind) IsProcessorRequest() bool {
	return k == Load || k == Store
}

// IsBusMessage returns true for GETS, GETM and DATA.
func (k MsgKind) IsBusMessage() bool {
	return k == GetS || k == GetM || k == Data
}

// Msg is an immutable request or snooped bus event for a single line.
type Msg struct {
	Kind MsgKind
	Addr uint64

	// Src is the module that originated the message.
	Src ModuleID

	// Dst is the module a DATA response is routed to.
	Dst ModuleID

	// Value is the line payload carried by DATA, or the value written by a
	// STORE.
	Value uint64

	// TxnID identifies the bus transaction the message belongs to.
	TxnID string
}

func (m Msg) String() string {
	switch m.Kind {
	case Data:
		return fmt.Sprintf("%s 0x%x %d->%d", m.Kind, m.Addr, m.Src, m.Dst)
	default:
		return fmt.Sprintf("%s 0x%x from %d", m.Kind, m.Addr, m.Src)
	}
}
