package models

import (
	"github.com/ckb-contrib/ckb-debugger/models/cpu"
)

// Machine abstracts the minimum functionality the debugger requires from an
// execution engine: synchronous state access plus single-instruction step.
// No method other than Step may advance execution.
type Machine interface {
	// register IO; the PC is not part of the numbered register file
	RegRead(enum int) (uint64, error)
	RegWrite(enum int, val uint64) error
	RegCount() int

	PC() uint64
	SetPC(addr uint64)

	// debugger-level memory IO: bounds-checked, ignores page protections
	MemRead(addr, size uint64) ([]byte, error)
	MemWrite(addr uint64, p []byte) error
	Mem() *cpu.Mem

	// Cycles is the monotonically non-decreasing execution cost consumed so
	// far, reset only when a machine is created.
	Cycles() uint64

	// Step executes exactly one instruction, charging its cycle cost. After a
	// successful step Exited may report program exit. A returned error is a
	// machine fault and leaves the machine unusable.
	Step() error

	// Exited reports whether the program has exited, and its exit code.
	Exited() (bool, int8)

	// Accesses returns the memory accesses of the last Step, valid until the
	// next Step.
	Accesses() []cpu.Access
}
