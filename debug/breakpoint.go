// Package debug contains the execution-and-control bridge: the breakpoint
// and watchpoint table, the run/pause/terminate state machine driving the
// virtual machine, and the remote protocol sessions built on top of them.
package debug

import (
	"github.com/ckb-contrib/ckb-debugger/models"
	"github.com/ckb-contrib/ckb-debugger/models/cpu"
)

// WatchKind selects which accesses a watchpoint observes.
type WatchKind int

const (
	WatchWrite WatchKind = iota
	WatchRead
	WatchAccess
)

func (k WatchKind) String() string {
	switch k {
	case WatchWrite:
		return "write"
	case WatchRead:
		return "read"
	}
	return "access"
}

func (k WatchKind) matches(access int) bool {
	switch access {
	case cpu.MEM_READ:
		return k == WatchRead || k == WatchAccess
	case cpu.MEM_WRITE:
		return k == WatchWrite || k == WatchAccess
	}
	// instruction fetches never trigger data watchpoints
	return false
}

// Watchpoint observes [Addr, Addr+Size) for the given access kind.
type Watchpoint struct {
	Addr uint64
	Size uint64
	Kind WatchKind
}

func (w Watchpoint) overlaps(addr uint64, size int) bool {
	return addr < w.Addr+w.Size && w.Addr < addr+uint64(size)
}

// Table tracks active breakpoints and watchpoints. It is a passive query
// structure: the execution controller consults it once per executed
// instruction.
type Table struct {
	breakpoints map[uint64]bool
	watchpoints []Watchpoint
}

func NewTable() *Table {
	return &Table{breakpoints: make(map[uint64]bool)}
}

// SetBreakpoint is idempotent; re-adding an address re-enables it.
func (t *Table) SetBreakpoint(addr uint64) {
	t.breakpoints[addr] = true
}

func (t *Table) ClearBreakpoint(addr uint64) {
	delete(t.breakpoints, addr)
}

func (t *Table) EnableBreakpoint(addr uint64, enabled bool) {
	if _, ok := t.breakpoints[addr]; ok {
		t.breakpoints[addr] = enabled
	}
}

func (t *Table) HasBreakpoint(addr uint64) bool {
	enabled, ok := t.breakpoints[addr]
	return ok && enabled
}

// Breakpoints returns the addresses of all breakpoints, enabled or not.
func (t *Table) Breakpoints() []uint64 {
	out := make([]uint64, 0, len(t.breakpoints))
	for addr := range t.breakpoints {
		out = append(out, addr)
	}
	return out
}

// SetWatchpoint deduplicates identical (range, kind) entries; overlapping
// watchpoints are allowed and checked independently in insertion order.
func (t *Table) SetWatchpoint(addr, size uint64, kind WatchKind) {
	for _, w := range t.watchpoints {
		if w.Addr == addr && w.Size == size && w.Kind == kind {
			return
		}
	}
	t.watchpoints = append(t.watchpoints, Watchpoint{Addr: addr, Size: size, Kind: kind})
}

func (t *Table) ClearWatchpoint(addr, size uint64, kind WatchKind) {
	for i, w := range t.watchpoints {
		if w.Addr == addr && w.Size == size && w.Kind == kind {
			t.watchpoints = append(t.watchpoints[:i], t.watchpoints[i+1:]...)
			return
		}
	}
}

func (t *Table) Watchpoints() []Watchpoint {
	return t.watchpoints
}

// Check is called once per executed instruction with the new PC and the
// instruction's memory accesses. A breakpoint match takes precedence over
// any watchpoint; watchpoints report the first match in insertion order.
func (t *Table) Check(pc uint64, accesses []cpu.Access) *models.StopReason {
	if t.HasBreakpoint(pc) {
		return &models.StopReason{Kind: models.StopBreakpoint, Addr: pc}
	}
	for _, w := range t.watchpoints {
		for _, a := range accesses {
			if w.Kind.matches(a.Kind) && w.overlaps(a.Addr, a.Size) {
				return &models.StopReason{
					Kind:   models.StopWatchpoint,
					Addr:   w.Addr,
					Access: a.Kind,
				}
			}
		}
	}
	return nil
}
