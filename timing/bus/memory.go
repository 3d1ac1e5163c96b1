package bus

// Memory is the main memory behind the bus. It holds one value per line and
// returns zero for lines that were never written.
type Memory struct {
	lines map[uint64]uint64

	reads  uint64
	writes uint64
}

// NewMemory creates an empty memory.
func NewMemory() *Memory {
	return &Memory{
		lines: make(map[uint64]uint64),
	}
}

// Read returns the value of a line.
func (m *Memory) Read(addr uint64) uint64 {
	m.reads++
	return m.lines[addr]
}

// Write updates the value of a line.
func (m *Memory) Write(addr uint64, value uint64) {
	m.writes++
	m.lines[addr] = value
}

// Preload sets initial line values without counting accesses.
func (m *Memory) Preload(values map[uint64]uint64) {
	for addr, value := range values {
		m.lines[addr] = value
	}
}

// Peek returns the value of a line without counting an access.
func (m *Memory) Peek(addr uint64) uint64 {
	return m.lines[addr]
}

// Accesses returns the number of reads and writes performed so far.
func (m *Memory) Accesses() (reads, writes uint64) {
	return m.reads, m.writes
}
