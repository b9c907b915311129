package models

import "fmt"

// ExecutionState is an owned snapshot of the architectural state, produced by
// the execution controller's Inspect. Mutating it does not touch the machine.
type ExecutionState struct {
	PC       uint64
	Regs     []uint64
	Cycles   uint64
	Halted   bool
	ExitCode int8
	Fault    error
}

// Snapshot copies the machine's architectural state.
func Snapshot(m Machine) ExecutionState {
	regs := make([]uint64, m.RegCount())
	for i := range regs {
		regs[i], _ = m.RegRead(i)
	}
	halted, code := m.Exited()
	return ExecutionState{
		PC:       m.PC(),
		Regs:     regs,
		Cycles:   m.Cycles(),
		Halted:   halted,
		ExitCode: code,
	}
}

// Equal compares two snapshots field by field. Used by tests and by the
// protocol session to assert that failed commands did not mutate state.
func (s ExecutionState) Equal(o ExecutionState) bool {
	if s.PC != o.PC || s.Cycles != o.Cycles || s.Halted != o.Halted || s.ExitCode != o.ExitCode {
		return false
	}
	if len(s.Regs) != len(o.Regs) {
		return false
	}
	for i := range s.Regs {
		if s.Regs[i] != o.Regs[i] {
			return false
		}
	}
	return true
}

func (s ExecutionState) String() string {
	return fmt.Sprintf("pc=%#x cycles=%d halted=%v", s.PC, s.Cycles, s.Halted)
}
