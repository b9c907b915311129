package models

import "fmt"

// StopKind enumerates why the execution controller yielded control.
type StopKind int

const (
	StopNone StopKind = iota
	// StopBreakpoint: the PC landed on a breakpoint address.
	StopBreakpoint
	// StopWatchpoint: an instruction's memory access hit a watchpoint range.
	StopWatchpoint
	// StopStepDone: the requested step count was exhausted.
	StopStepDone
	// StopExited: the program exited via the exit syscall.
	StopExited
	// StopCycleLimit: the cycle budget was exceeded. Recoverable by raising
	// the budget and resuming.
	StopCycleLimit
	// StopFault: the machine raised a fault. Terminal for the session.
	StopFault
	// StopSignal: reserved for protocol-level interrupt reporting.
	StopSignal
)

// StopReason is the tagged result of a Resume call. Only the fields relevant
// to Kind are populated.
type StopReason struct {
	Kind StopKind

	// breakpoint / watchpoint address
	Addr uint64
	// watchpoint access kind (cpu.MEM_READ / MEM_WRITE)
	Access int

	ExitCode int8
	Signal   int
	Err      error
}

func (r StopReason) String() string {
	switch r.Kind {
	case StopBreakpoint:
		return fmt.Sprintf("breakpoint at %#x", r.Addr)
	case StopWatchpoint:
		return fmt.Sprintf("watchpoint at %#x", r.Addr)
	case StopStepDone:
		return "step complete"
	case StopExited:
		return fmt.Sprintf("exited with code %d", r.ExitCode)
	case StopCycleLimit:
		return "cycle limit exceeded"
	case StopFault:
		return fmt.Sprintf("fault: %v", r.Err)
	case StopSignal:
		return fmt.Sprintf("signal %d", r.Signal)
	}
	return "running"
}
