package benchmarks

import (
	"fmt"

	"github.com/sarchlab/snoopsim/loader"
)

const lineSize = 64

// GetWorkloads returns the standard set of sharing patterns. Each one
// stresses a different part of the protocols.
func GetWorkloads() []Benchmark {
	return []Benchmark{
		privateReadModifyWrite(),
		readSharing(),
		writePingPong(),
		migratory(),
		producerConsumer(),
	}
}

// GetCoreWorkloads returns a minimal set for quick validation.
func GetCoreWorkloads() []Benchmark {
	return []Benchmark{
		privateReadModifyWrite(),
		producerConsumer(),
	}
}

// WorkloadByName finds a workload of GetWorkloads.
func WorkloadByName(name string) (Benchmark, error) {
	for _, b := range GetWorkloads() {
		if b.Name == name {
			return b, nil
		}
	}

	return Benchmark{}, fmt.Errorf("unknown workload %q", name)
}

type traceBuilder struct {
	trace *loader.Trace
}

func newTraceBuilder(core int) *traceBuilder {
	return &traceBuilder{trace: &loader.Trace{Name: fmt.Sprintf("p%d", core)}}
}

func (b *traceBuilder) read(addr uint64) {
	b.trace.Ops = append(b.trace.Ops, loader.Op{
		Addr: addr,
		Line: len(b.trace.Ops) + 1,
	})
}

func (b *traceBuilder) write(addr, value uint64) {
	b.trace.Ops = append(b.trace.Ops, loader.Op{
		Write: true,
		Addr:  addr,
		Value: value,
		Line:  len(b.trace.Ops) + 1,
	})
}

func (b *traceBuilder) full(ops int) bool {
	return len(b.trace.Ops) >= ops
}

func buildTraces(cores, ops int, body func(core int, b *traceBuilder, i int)) []*loader.Trace {
	traces := make([]*loader.Trace, 0, cores)

	for core := 0; core < cores; core++ {
		b := newTraceBuilder(core)
		for i := 0; !b.full(ops); i++ {
			body(core, b, i)
		}
		b.trace.Ops = b.trace.Ops[:ops]
		traces = append(traces, b.trace)
	}

	return traces
}

// 1. Private read-modify-write - every core updates its own lines
func privateReadModifyWrite() Benchmark {
	return Benchmark{
		Name:        "private_rmw",
		Description: "each core reads then writes 8 private lines - E to M silent upgrades",
		Traces: func(cores, ops int) []*loader.Trace {
			return buildTraces(cores, ops, func(core int, b *traceBuilder, i int) {
				addr := uint64(core)*0x10000 + uint64(i%8)*lineSize
				b.read(addr)
				b.write(addr, uint64(i))
			})
		},
	}
}

// 2. Read sharing - every core reads the same lines
func readSharing() Benchmark {
	return Benchmark{
		Name:        "read_sharing",
		Description: "all cores read 16 shared lines - S copies and shared-line fills",
		Traces: func(cores, ops int) []*loader.Trace {
			return buildTraces(cores, ops, func(core int, b *traceBuilder, i int) {
				b.read(uint64((i+core)%16) * lineSize)
			})
		},
	}
}

// 3. Write ping-pong - every core writes the same line
func writePingPong() Benchmark {
	return Benchmark{
		Name:        "write_pingpong",
		Description: "all cores write one line - ownership moves on every store",
		Traces: func(cores, ops int) []*loader.Trace {
			return buildTraces(cores, ops, func(core int, b *traceBuilder, i int) {
				b.write(0, uint64(core*ops+i))
			})
		},
	}
}

// 4. Migratory - read then write a shared record, like a lock-protected counter
func migratory() Benchmark {
	return Benchmark{
		Name:        "migratory",
		Description: "cores read then write 4 shared lines in turn - S to M upgrades",
		Traces: func(cores, ops int) []*loader.Trace {
			return buildTraces(cores, ops, func(core int, b *traceBuilder, i int) {
				addr := uint64(i%4) * lineSize
				b.read(addr)
				b.write(addr, uint64(core*ops+i))
			})
		},
	}
}

// 5. Producer/consumer - core 0 writes a buffer the others read
func producerConsumer() Benchmark {
	return Benchmark{
		Name:        "producer_consumer",
		Description: "core 0 writes 16 lines that the other cores read - dirty sharing",
		Traces: func(cores, ops int) []*loader.Trace {
			return buildTraces(cores, ops, func(core int, b *traceBuilder, i int) {
				addr := 0x8000 + uint64(i%16)*lineSize
				if core == 0 {
					b.write(addr, uint64(i+1))
				} else {
					b.read(addr)
				}
			})
		},
	}
}
