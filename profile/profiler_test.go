package profile

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ckb-contrib/ckb-debugger/arch/riscv"
	"github.com/ckb-contrib/ckb-debugger/debug"
	"github.com/ckb-contrib/ckb-debugger/models"
	"github.com/ckb-contrib/ckb-debugger/models/cpu"
)

func testSymbols() *models.SymbolTable {
	return models.NewSymbolTable([]models.Symbol{
		{Name: "main", Start: 0x1000, End: 0x1100},
		{Name: "helper", Start: 0x1100, End: 0x1180},
	})
}

func TestProfilerAttribution(t *testing.T) {
	p := New(testSymbols(), 0x1000)

	// two instructions in main, a call into helper, two instructions there,
	// a return, one more instruction in main
	p.Record(0x1000, 0x1004, 1)
	p.Record(0x1004, 0x1100, 4) // jump to helper's entry
	p.Record(0x1100, 0x1104, 5)
	p.Record(0x1104, 0x1008, 8) // back to the recorded return address
	p.Record(0x1008, 0x100c, 9)

	root := p.Root()
	require.Equal(t, "main", root.Name)
	require.Equal(t, uint64(9), p.Total())
	require.Equal(t, p.Total(), root.Cumulative())

	children := root.Children()
	require.Len(t, children, 1)
	require.Equal(t, "helper", children[0].Name)
	require.Equal(t, uint64(4), children[0].Self)
	require.Equal(t, uint64(5), root.Self)
}

func TestProfilerReturnPastMissedPop(t *testing.T) {
	p := New(testSymbols(), 0x1000)
	p.Record(0x1000, 0x1100, 3)  // call helper, ret 0x1004
	p.Record(0x1100, 0x1100, 6)  // helper "recurses" into itself
	p.Record(0x1100, 0x1004, 10) // return unwinds both frames at once

	require.Equal(t, uint64(10), p.Total())
	require.Equal(t, p.Total(), p.Root().Cumulative())
	// after the deep return, attribution lands back in the root
	p.Record(0x1004, 0x1008, 11)
	require.Equal(t, uint64(4), p.Root().Self)
}

func TestProfilerUnknownJumpTargets(t *testing.T) {
	p := New(testSymbols(), 0x1000)
	// a jump to an address with no symbol opens no frame
	p.Record(0x1000, 0x5000, 2)
	p.Record(0x5000, 0x5004, 3)
	require.Equal(t, uint64(3), p.Root().Self)
	require.Empty(t, p.Root().Children())
}

func TestFoldedOutput(t *testing.T) {
	p := New(testSymbols(), 0x1000)
	p.Record(0x1000, 0x1004, 2)
	p.Record(0x1004, 0x1100, 3)
	p.Record(0x1100, 0x1104, 7)

	var buf bytes.Buffer
	require.NoError(t, p.WriteFolded(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Equal(t, []string{"main 3", "main;helper 4"}, lines)
}

func TestStacktraceRendering(t *testing.T) {
	p := New(testSymbols(), 0x1000)
	p.Record(0x1000, 0x1100, 1) // enter helper with the counter at 1
	p.Record(0x1100, 0x1104, 4)
	out := p.Stacktrace(0x1104)
	require.Contains(t, out, "main")
	require.Contains(t, out, "helper")
	require.Contains(t, out, "0x1104")
	// each live frame shows the cycles spent since it opened
	require.Contains(t, out, "(+3 cycles)")
}

// Conservation through a real machine run: every consumed cycle shows up in
// exactly one node.
func TestProfilerConservation(t *testing.T) {
	const codeBase = 0x10000
	program := []uint32{
		riscv.EncADDI(riscv.T0, riscv.ZERO, 1), // main
		riscv.EncJAL(riscv.RA, 0x1c),           // call helper at +0x20
		riscv.EncADDI(riscv.A0, riscv.ZERO, 0),
		riscv.EncECALL(),
		0, 0, 0, 0, // padding up to helper
		riscv.EncADDI(riscv.T1, riscv.ZERO, 2), // helper at codeBase+0x20
		riscv.EncJALR(riscv.ZERO, riscv.RA, 0),
	}
	m := riscv.NewCPU(exitSyscaller{})
	require.NoError(t, m.Mem().MemMapProt(codeBase, riscv.PageSize, cpu.PROT_READ|cpu.PROT_EXEC))
	for i, w := range program {
		require.NoError(t, m.MemWrite(codeBase+uint64(i)*4, []byte{
			byte(w), byte(w >> 8), byte(w >> 16), byte(w >> 24),
		}))
	}
	m.SetPC(codeBase)

	syms := models.NewSymbolTable([]models.Symbol{
		{Name: "main", Start: codeBase, End: codeBase + 0x20},
		{Name: "helper", Start: codeBase + 0x20, End: codeBase + 0x28},
	})
	ctrl := debug.NewController(m, nil, 1_000_000)
	p := New(syms, m.PC())
	p.Attach(ctrl)

	reason, err := ctrl.Resume(debug.Continue)
	require.NoError(t, err)
	require.Equal(t, models.StopExited, reason.Kind)

	require.Equal(t, m.Cycles(), p.Total())
	require.Equal(t, m.Cycles(), p.Root().Cumulative())
	children := p.Root().Children()
	require.Len(t, children, 1)
	require.Equal(t, "helper", children[0].Name)
	// helper ran one ADDI and one JALR
	require.Equal(t, uint64(1+3), children[0].Self)
}

type exitSyscaller struct{}

func (exitSyscaller) Ecall(c *riscv.CPU) error {
	code, _ := c.RegRead(riscv.A0)
	c.Exit(int8(code))
	return nil
}
