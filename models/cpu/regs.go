package cpu

import (
	"github.com/pkg/errors"
)

// Regs is a fixed-size register file. Enums are dense array indices here,
// unlike emulator bindings that use sparse enum spaces, because the machines
// in this tool declare their full register set up front.
type Regs struct {
	mask uint64
	vals []uint64
}

func NewRegs(bits uint, count int) *Regs {
	return &Regs{
		mask: ^uint64(0) >> (64 - bits),
		vals: make([]uint64, count),
	}
}

func (r *Regs) Count() int {
	return len(r.vals)
}

func (r *Regs) RegRead(enum int) (uint64, error) {
	if enum < 0 || enum >= len(r.vals) {
		return 0, errors.Errorf("invalid register %d", enum)
	}
	return r.vals[enum], nil
}

func (r *Regs) RegWrite(enum int, val uint64) error {
	if enum < 0 || enum >= len(r.vals) {
		return errors.Errorf("invalid register %d", enum)
	}
	r.vals[enum] = val & r.mask
	return nil
}

// ContextSave copies the register file into reuse (if it is a []uint64 of the
// right size) or a fresh slice. ContextRestore is its inverse. These exist so
// a debug session can snapshot state without knowing the machine type.
func (r *Regs) ContextSave(reuse []uint64) []uint64 {
	if len(reuse) != len(r.vals) {
		reuse = make([]uint64, len(r.vals))
	}
	copy(reuse, r.vals)
	return reuse
}

func (r *Regs) ContextRestore(ctx []uint64) error {
	if len(ctx) != len(r.vals) {
		return errors.Errorf("context has %d registers, machine has %d", len(ctx), len(r.vals))
	}
	copy(r.vals, ctx)
	return nil
}
