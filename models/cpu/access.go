package cpu

// Access records one memory touch made while executing an instruction.
type Access struct {
	Kind  int // MEM_READ, MEM_WRITE or MEM_FETCH
	Addr  uint64
	Size  int
	Value uint64
}

// AccessLog implements MemObserver by collecting the accesses of the current
// instruction. The machine resets it before each step; the debugger reads it
// back afterwards for watchpoint checks and trace recording.
type AccessLog struct {
	events []Access
}

func (l *AccessLog) OnMem(access int, addr uint64, size int, value uint64) {
	l.events = append(l.events, Access{Kind: access, Addr: addr, Size: size, Value: value})
}

func (l *AccessLog) Reset() {
	l.events = l.events[:0]
}

// Events returns the accesses recorded since the last Reset. The slice is
// reused; callers must not hold it across steps.
func (l *AccessLog) Events() []Access {
	return l.events
}
