// Package loader reads the per-processor memory traces that drive a run.
//
// A trace has one operation per line:
//
//	r 0x1000
//	w 0x1040 7
//
// The operation is r, w, LOAD or STORE (case-insensitive), the address is
// hexadecimal with a 0x prefix or decimal, and a write may carry the value to
// store. Blank lines and text after # are ignored.
package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNoTraces is returned when a directory has no p0.trace.
var ErrNoTraces = errors.New("no trace files found")

// Op is one memory operation of a trace.
type Op struct {
	// Write is true for stores.
	Write bool
	// Addr is the byte address accessed.
	Addr uint64
	// Value is the value a store writes. A store without an explicit value
	// writes its 1-based line number in the trace file.
	Value uint64
	// Line is the line number in the trace file.
	Line int
}

func (o Op) String() string {
	if o.Write {
		return fmt.Sprintf("w 0x%x %d", o.Addr, o.Value)
	}
	return fmt.Sprintf("r 0x%x", o.Addr)
}

// Trace is the operation sequence of one processor.
type Trace struct {
	// Name identifies the trace in error messages, usually the file path.
	Name string
	// Ops contains the operations in program order.
	Ops []Op
}

// Loads returns the number of reads in the trace.
func (t *Trace) Loads() int {
	n := 0
	for _, op := range t.Ops {
		if !op.Write {
			n++
		}
	}
	return n
}

// Stores returns the number of writes in the trace.
func (t *Trace) Stores() int {
	return len(t.Ops) - t.Loads()
}

// WriteTo writes the trace in the format Parse reads.
func (t *Trace) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, op := range t.Ops {
		n, err := fmt.Fprintln(w, op.String())
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Parse reads a trace.
func Parse(r io.Reader, name string) (*Trace, error) {
	trace := &Trace{Name: name}
	scanner := bufio.NewScanner(r)

	lineNo := 0
	for scanner.Scan() {
		lineNo++

		text := scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}

		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		op, err := parseOp(fields, lineNo)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", name, lineNo, err)
		}

		trace.Ops = append(trace.Ops, op)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trace %s: %w", name, err)
	}

	return trace, nil
}

func parseOp(fields []string, lineNo int) (Op, error) {
	op := Op{Line: lineNo}

	switch strings.ToLower(fields[0]) {
	case "r", "load":
	case "w", "store":
		op.Write = true
	default:
		return op, fmt.Errorf("unknown operation %q", fields[0])
	}

	if len(fields) < 2 {
		return op, fmt.Errorf("missing address")
	}

	addr, err := parseNumber(fields[1])
	if err != nil {
		return op, fmt.Errorf("invalid address %q: %w", fields[1], err)
	}
	op.Addr = addr

	switch {
	case len(fields) == 2:
		op.Value = uint64(lineNo)
	case len(fields) == 3 && op.Write:
		value, err := parseNumber(fields[2])
		if err != nil {
			return op, fmt.Errorf("invalid value %q: %w", fields[2], err)
		}
		op.Value = value
	default:
		return op, fmt.Errorf("unexpected fields after address")
	}

	if !op.Write {
		op.Value = 0
	}

	return op, nil
}

func parseNumber(s string) (uint64, error) {
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "0x") {
		return strconv.ParseUint(lower[2:], 16, 64)
	}

	return strconv.ParseUint(s, 10, 64)
}

// Load reads a trace file.
func Load(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Parse(f, path)
}

// TracePath returns the path of processor i's trace in dir.
func TracePath(dir string, i int) string {
	return filepath.Join(dir, fmt.Sprintf("p%d.trace", i))
}

// LoadDir reads p0.trace, p1.trace, ... from dir. If n is positive exactly n
// traces are required; otherwise loading stops at the first missing file.
func LoadDir(dir string, n int) ([]*Trace, error) {
	var traces []*Trace

	for i := 0; n <= 0 || i < n; i++ {
		path := TracePath(dir, i)

		if n <= 0 {
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				break
			}
		}

		trace, err := Load(path)
		if err != nil {
			return nil, err
		}

		traces = append(traces, trace)
	}

	if len(traces) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoTraces)
	}

	return traces, nil
}
