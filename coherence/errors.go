package coherence

import (
	"errors"
	"fmt"
)

// Classes of protocol violations. A ProtocolError unwraps to one of them.
var (
	ErrOutstandingRequest = errors.New("only one outstanding request per line is allowed")
	ErrUnexpectedMessage  = errors.New("message is not expected in this state")
	ErrDataWhileOwning    = errors.New("should not see data for a line already held")
	ErrUnknownFamily      = errors.New("unknown coherence protocol")
)

// ProtocolError describes a message that a line could not legally handle.
type ProtocolError struct {
	Family string
	Module ModuleID
	Addr   uint64
	State  State
	Msg    Msg
	Reason error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s cache %d line 0x%x in state %s got %s: %v",
		e.Family, e.Module, e.Addr, e.State, e.Msg, e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Reason
}
