// Package loader maps RISC-V ELF executables into a machine's address space
// and prepares the script's stack the way the verifier does: argc, argv
// pointers, then the argument strings near the top of the stack region.
package loader

import (
	"bytes"
	"debug/elf"
	"io"

	"github.com/pkg/errors"

	"github.com/ckb-contrib/ckb-debugger/arch/riscv"
	"github.com/ckb-contrib/ckb-debugger/models"
	"github.com/ckb-contrib/ckb-debugger/models/cpu"
)

// Program describes a loaded executable.
type Program struct {
	Entry   uint64
	Symbols []models.Symbol
	// Loaded is the number of program bytes mapped, used for transfer-cycle
	// accounting.
	Loaded uint64
}

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

func MatchElf(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], elfMagic)
}

func align(addr, to uint64) uint64   { return addr &^ (to - 1) }
func alignUp(addr, to uint64) uint64 { return (addr + to - 1) &^ (to - 1) }

func segmentProt(f elf.ProgFlag) int {
	prot := 0
	if f&elf.PF_R != 0 {
		prot |= cpu.PROT_READ
	}
	if f&elf.PF_W != 0 {
		prot |= cpu.PROT_WRITE
	}
	if f&elf.PF_X != 0 {
		prot |= cpu.PROT_EXEC
	}
	return prot
}

// LoadElf maps an ELF executable into mem. Executable segments are frozen
// (W^X): the program cannot rewrite its own text, though the debugger still
// can through the unchecked write path.
func LoadElf(mem *cpu.Mem, data []byte) (*Program, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "parsing ELF")
	}
	if f.Class != elf.ELFCLASS64 {
		return nil, errors.Errorf("unsupported ELF class %s", f.Class)
	}
	if f.Machine != elf.EM_RISCV {
		return nil, errors.Errorf("unsupported machine %s, expected RISC-V", f.Machine)
	}
	if f.ByteOrder != mem.ByteOrder() {
		return nil, errors.New("ELF byte order does not match machine")
	}

	p := &Program{Entry: f.Entry}
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Memsz == 0 {
			continue
		}
		start := align(prog.Vaddr, riscv.PageSize)
		end := alignUp(prog.Vaddr+prog.Memsz, riscv.PageSize)
		if end > riscv.MaxMemory {
			return nil, errors.Errorf("segment %#x-%#x exceeds machine memory", start, end)
		}
		if err := mem.MemMapProt(start, end-start, segmentProt(prog.Flags)|cpu.PROT_WRITE); err != nil {
			return nil, errors.Wrap(err, "mapping segment")
		}
		buf := make([]byte, prog.Filesz)
		if _, err := io.ReadFull(io.NewSectionReader(prog, 0, int64(prog.Filesz)), buf); err != nil {
			return nil, errors.Wrap(err, "reading segment")
		}
		if err := mem.MemWrite(prog.Vaddr, buf); err != nil {
			return nil, errors.Wrap(err, "writing segment")
		}
		if prog.Flags&elf.PF_W == 0 {
			if err := mem.Freeze(start, end-start); err != nil {
				return nil, errors.Wrap(err, "freezing segment")
			}
		}
		p.Loaded += prog.Memsz
	}

	syms, err := f.Symbols()
	if err != nil && err != elf.ErrNoSymbols {
		return nil, errors.Wrap(err, "reading symbols")
	}
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Size == 0 {
			continue
		}
		p.Symbols = append(p.Symbols, models.Symbol{
			Name:  s.Name,
			Start: s.Value,
			End:   s.Value + s.Size,
		})
	}
	return p, nil
}
