package loader

import (
	"github.com/pkg/errors"

	"github.com/ckb-contrib/ckb-debugger/arch/riscv"
	"github.com/ckb-contrib/ckb-debugger/models/cpu"
)

// SetupStack maps the stack region at the top of machine memory and lays out
// the script arguments: *sp is argc, followed by the argv pointers and a NULL
// terminator, with the strings themselves stored just below the stack top.
// Returns the initial stack pointer, which is kept 16-byte aligned.
func SetupStack(mem *cpu.Mem, args []string) (uint64, error) {
	top := uint64(riscv.MaxMemory)
	base := top - riscv.StackSize
	if err := mem.MemMapProt(base, riscv.StackSize, cpu.PROT_READ|cpu.PROT_WRITE); err != nil {
		return 0, errors.Wrap(err, "mapping stack")
	}
	pg := mem.Pages().Find(base)
	if pg != nil {
		pg.Desc = "stack"
	}

	// strings first, from the top down
	ptrs := make([]uint64, len(args))
	cursor := top
	for i := len(args) - 1; i >= 0; i-- {
		b := append([]byte(args[i]), 0)
		cursor -= uint64(len(b))
		if err := mem.MemWrite(cursor, b); err != nil {
			return 0, errors.Wrap(err, "writing argument")
		}
		ptrs[i] = cursor
	}

	// argc + argv pointers + NULL, 16-byte aligned
	sp := cursor &^ 15
	sp -= uint64(8 * (len(args) + 2))
	sp &^= 15
	cur := sp
	write := func(v uint64) error {
		if err := mem.WriteUint(cur, 8, 0, v); err != nil {
			return err
		}
		cur += 8
		return nil
	}
	if err := write(uint64(len(args))); err != nil {
		return 0, errors.Wrap(err, "writing argc")
	}
	for _, p := range ptrs {
		if err := write(p); err != nil {
			return 0, errors.Wrap(err, "writing argv")
		}
	}
	if err := write(0); err != nil {
		return 0, errors.Wrap(err, "writing argv terminator")
	}
	return sp, nil
}

// LoadProgram maps the executable, prepares the stack and points the machine
// at the entry. The caller charges transfer cycles for the bytes it moved.
func LoadProgram(c *riscv.CPU, program []byte, args []string) (*Program, error) {
	p, err := LoadElf(c.Mem(), program)
	if err != nil {
		return nil, err
	}
	sp, err := SetupStack(c.Mem(), args)
	if err != nil {
		return nil, err
	}
	if err := c.RegWrite(riscv.SP, sp); err != nil {
		return nil, err
	}
	c.SetPC(p.Entry)
	return p, nil
}
