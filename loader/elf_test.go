package loader

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ckb-contrib/ckb-debugger/arch/riscv"
	"github.com/ckb-contrib/ckb-debugger/models/cpu"
)

// buildElf assembles a minimal 64-bit little-endian RISC-V executable with a
// single loadable segment holding code.
func buildElf(t *testing.T, entry, vaddr uint64, flags uint32, code []byte) []byte {
	return buildElfOrder(t, binary.LittleEndian, 1, entry, vaddr, flags, code)
}

func buildElfOrder(t *testing.T, order binary.ByteOrder, eiData byte, entry, vaddr uint64, flags uint32, code []byte) []byte {
	t.Helper()
	var buf bytes.Buffer

	const ehsize = 64
	const phentsize = 56
	offset := uint64(ehsize + phentsize)

	// e_ident
	buf.Write([]byte{0x7f, 'E', 'L', 'F', 2, eiData, 1, 0})
	buf.Write(make([]byte, 8))
	w := func(v interface{}) { require.NoError(t, binary.Write(&buf, order, v)) }
	w(uint16(2))   // e_type: EXEC
	w(uint16(243)) // e_machine: RISC-V
	w(uint32(1))   // e_version
	w(entry)
	w(uint64(ehsize)) // e_phoff
	w(uint64(0))      // e_shoff
	w(uint32(0))      // e_flags
	w(uint16(ehsize))
	w(uint16(phentsize))
	w(uint16(1)) // e_phnum
	w(uint16(0)) // e_shentsize
	w(uint16(0)) // e_shnum
	w(uint16(0)) // e_shstrndx

	w(uint32(1)) // p_type: PT_LOAD
	w(flags)
	w(offset)
	w(vaddr)
	w(vaddr) // p_paddr
	w(uint64(len(code)))
	w(uint64(len(code)))
	w(uint64(riscv.PageSize))

	buf.Write(code)
	return buf.Bytes()
}

func TestMatchElf(t *testing.T) {
	require.True(t, MatchElf([]byte{0x7f, 'E', 'L', 'F', 0}))
	require.False(t, MatchElf([]byte{0x7f, 'E', 'L'}))
	require.False(t, MatchElf([]byte("{\"tx\":{}}")))
}

func TestLoadElf(t *testing.T) {
	code := []byte{0x13, 0x00, 0x00, 0x00, 0x73, 0x00, 0x00, 0x00} // nop; ecall
	data := buildElf(t, 0x11000, 0x11000, 5 /* R+X */, code)
	mem := cpu.NewMem(32, binary.LittleEndian)

	p, err := LoadElf(mem, data)
	require.NoError(t, err)
	require.Equal(t, uint64(0x11000), p.Entry)
	require.Equal(t, uint64(len(code)), p.Loaded)

	out, err := mem.MemRead(0x11000, uint64(len(code)))
	require.NoError(t, err)
	require.Equal(t, code, out)

	// the executable segment is frozen: checked stores bounce, fetches work
	err = mem.WriteProt(0x11000, []byte{0xff}, cpu.PROT_WRITE)
	require.Error(t, err)
	_, err = mem.ReadUint(0x11000, 4, cpu.PROT_EXEC)
	require.NoError(t, err)
}

func TestLoadElfWritableSegmentStaysWritable(t *testing.T) {
	data := buildElf(t, 0x11000, 0x11000, 6 /* R+W */, []byte{1, 2, 3, 4})
	mem := cpu.NewMem(32, binary.LittleEndian)
	_, err := LoadElf(mem, data)
	require.NoError(t, err)
	require.NoError(t, mem.WriteProt(0x11000, []byte{0xff}, cpu.PROT_WRITE))
}

func TestLoadElfRejectsBadInput(t *testing.T) {
	mem := cpu.NewMem(32, binary.LittleEndian)

	_, err := LoadElf(mem, []byte("not an elf at all"))
	require.Error(t, err)

	// wrong machine type
	data := buildElf(t, 0x11000, 0x11000, 5, []byte{1, 2, 3, 4})
	data[18] = 0x3e // EM_X86_64
	_, err = LoadElf(mem, data)
	require.Error(t, err)
	require.Contains(t, err.Error(), "RISC-V")

	// segment past the machine's memory ceiling
	data = buildElf(t, 0x11000, uint64(riscv.MaxMemory), 5, []byte{1, 2, 3, 4})
	_, err = LoadElf(mem, data)
	require.Error(t, err)
}

func TestLoadElfRejectsBigEndian(t *testing.T) {
	mem := cpu.NewMem(32, binary.LittleEndian)
	data := buildElfOrder(t, binary.BigEndian, 2, 0x11000, 0x11000, 5, []byte{1, 2, 3, 4})
	_, err := LoadElf(mem, data)
	require.Error(t, err)
	require.Contains(t, err.Error(), "byte order")
}

func TestSetupStack(t *testing.T) {
	mem := cpu.NewMem(32, binary.LittleEndian)
	args := []string{"main", "alpha", "beta"}
	sp, err := SetupStack(mem, args)
	require.NoError(t, err)
	require.Zero(t, sp%16)

	argc, err := mem.ReadUint(sp, 8, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(3), argc)

	for i, want := range args {
		ptr, err := mem.ReadUint(sp+8+uint64(i)*8, 8, 0)
		require.NoError(t, err)
		out, err := mem.MemRead(ptr, uint64(len(want)+1))
		require.NoError(t, err)
		require.Equal(t, want, string(out[:len(want)]))
		require.Equal(t, byte(0), out[len(want)])
	}
	term, err := mem.ReadUint(sp+8+uint64(len(args))*8, 8, 0)
	require.NoError(t, err)
	require.Zero(t, term)
}

func TestLoadProgram(t *testing.T) {
	// addi a0, x0, 0; ecall
	code := make([]byte, 8)
	binary.LittleEndian.PutUint32(code[0:], riscv.EncADDI(riscv.A0, riscv.ZERO, 0))
	binary.LittleEndian.PutUint32(code[4:], riscv.EncECALL())
	data := buildElf(t, 0x11000, 0x11000, 5, code)

	c := riscv.NewCPU(nil)
	p, err := LoadProgram(c, data, []string{"main"})
	require.NoError(t, err)
	require.Equal(t, uint64(0x11000), c.PC())
	require.Equal(t, p.Entry, c.PC())
	sp, err := c.RegRead(riscv.SP)
	require.NoError(t, err)
	require.NotZero(t, sp)
	require.NoError(t, c.Step())
}
