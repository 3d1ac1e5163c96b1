package tracing

import (
	"log"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/snoopsim/coherence"
	"github.com/sarchlab/snoopsim/timing/bus"
)

// LogTracer prints every transition and transaction.
type LogTracer struct {
	logger *log.Logger
}

// NewLogTracer creates a LogTracer that writes to logger.
func NewLogTracer(logger *log.Logger) *LogTracer {
	return &LogTracer{logger: logger}
}

// Func prints the hook item.
func (t *LogTracer) Func(ctx sim.HookCtx) {
	switch item := ctx.Item.(type) {
	case coherence.TransitionRecord:
		t.logger.Printf("cache %d 0x%x %s %s: %s -> %s [%s]",
			item.Module, item.Addr, item.Side, item.Msg.Kind,
			item.From, item.To, item.Actions)
	case bus.Transaction:
		src := "memory"
		if item.FromCache() {
			src = "cache"
		}
		t.logger.Printf("bus %s 0x%x from %d: data from %s at cycle %d (shared: %t)",
			item.Kind, item.Addr, item.Requester, src, item.DataCycle, item.Shared)
	}
}
