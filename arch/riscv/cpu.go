package riscv

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/pkg/errors"

	"github.com/ckb-contrib/ckb-debugger/models"
	"github.com/ckb-contrib/ckb-debugger/models/cpu"
)

var _ models.Machine = (*CPU)(nil)

// Syscaller handles ecall instructions. The handler reads its arguments from
// the a-registers and may halt the machine through Exit.
type Syscaller interface {
	Ecall(c *CPU) error
}

// Fault is an unrecoverable machine error raised during Step: bad opcode,
// unmapped or protected access, or a failed syscall.
type Fault struct {
	PC  uint64
	Err error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("machine fault at pc %#x: %v", f.PC, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// CPU is a deterministic RV64IM interpreter implementing models.Machine.
type CPU struct {
	regs   *cpu.Regs
	mem    *cpu.Mem
	pc     uint64
	cycles uint64
	access cpu.AccessLog

	sys Syscaller

	exited   bool
	exitCode int8
}

func NewCPU(sys Syscaller) *CPU {
	c := &CPU{
		regs: cpu.NewRegs(64, RegCount),
		mem:  cpu.NewMem(32, binary.LittleEndian),
		sys:  sys,
	}
	c.mem.SetObserver(&c.access)
	return c
}

func (c *CPU) RegRead(enum int) (uint64, error) { return c.regs.RegRead(enum) }
func (c *CPU) RegCount() int                    { return c.regs.Count() }
func (c *CPU) PC() uint64                       { return c.pc }
func (c *CPU) SetPC(addr uint64)                { c.pc = addr }
func (c *CPU) Cycles() uint64                   { return c.cycles }
func (c *CPU) Mem() *cpu.Mem                    { return c.mem }
func (c *CPU) Exited() (bool, int8)             { return c.exited, c.exitCode }
func (c *CPU) Accesses() []cpu.Access           { return c.access.Events() }

func (c *CPU) RegWrite(enum int, val uint64) error {
	if enum == ZERO {
		// x0 is hardwired
		return nil
	}
	return c.regs.RegWrite(enum, val)
}

func (c *CPU) MemRead(addr, size uint64) ([]byte, error) {
	return c.mem.MemRead(addr, size)
}

func (c *CPU) MemWrite(addr uint64, p []byte) error {
	return c.mem.MemWrite(addr, p)
}

// AddCycles charges extra cost on top of the instruction table, used for
// program transfer and syscall data movement.
func (c *CPU) AddCycles(n uint64) {
	c.cycles += n
}

// Exit halts the machine with code. Called by the exit syscall.
func (c *CPU) Exit(code int8) {
	c.exited = true
	c.exitCode = code
}

// SaveRegs / RestoreRegs snapshot the register file (the PC travels
// separately), for sessions that need to roll state back.
func (c *CPU) SaveRegs(reuse []uint64) []uint64 { return c.regs.ContextSave(reuse) }
func (c *CPU) RestoreRegs(ctx []uint64) error   { return c.regs.ContextRestore(ctx) }

func (c *CPU) reg(enum int) uint64 {
	v, _ := c.regs.RegRead(enum)
	return v
}

func (c *CPU) setReg(enum int, val uint64) {
	if enum != ZERO {
		c.regs.RegWrite(enum, val)
	}
}

func (c *CPU) fault(err error) error {
	return &Fault{PC: c.pc, Err: err}
}

// Step executes exactly one instruction. On success the cycle counter has
// grown by the instruction's cost and the PC points at the next instruction.
// Any error is a machine fault; the machine must not be stepped afterwards.
func (c *CPU) Step() error {
	if c.exited {
		return errors.New("step after machine exit")
	}
	c.access.Reset()

	word, err := c.mem.ReadUint(c.pc, 4, cpu.PROT_EXEC)
	if err != nil {
		return c.fault(err)
	}
	in, err := Decode(uint32(word))
	if err != nil {
		return c.fault(err)
	}

	next := c.pc + 4
	rs1 := c.reg(in.Rs1)
	rs2 := c.reg(in.Rs2)

	switch in.Op {
	case OpLUI:
		c.setReg(in.Rd, uint64(in.Imm))
	case OpAUIPC:
		c.setReg(in.Rd, c.pc+uint64(in.Imm))
	case OpJAL:
		c.setReg(in.Rd, next)
		next = c.pc + uint64(in.Imm)
	case OpJALR:
		c.setReg(in.Rd, next)
		next = (rs1 + uint64(in.Imm)) &^ 1

	case OpBEQ, OpBNE, OpBLT, OpBGE, OpBLTU, OpBGEU:
		if branchTaken(in.Op, rs1, rs2) {
			next = c.pc + uint64(in.Imm)
		}

	case OpLB, OpLH, OpLW, OpLD, OpLBU, OpLHU, OpLWU:
		val, err := c.load(in.Op, rs1+uint64(in.Imm))
		if err != nil {
			return c.fault(err)
		}
		c.setReg(in.Rd, val)

	case OpSB, OpSH, OpSW, OpSD:
		sizes := map[Op]int{OpSB: 1, OpSH: 2, OpSW: 4, OpSD: 8}
		size := sizes[in.Op]
		if err := c.mem.WriteUint(rs1+uint64(in.Imm), size, cpu.PROT_WRITE, rs2); err != nil {
			return c.fault(err)
		}

	case OpADDI:
		c.setReg(in.Rd, rs1+uint64(in.Imm))
	case OpSLTI:
		c.setReg(in.Rd, boolReg(int64(rs1) < in.Imm))
	case OpSLTIU:
		c.setReg(in.Rd, boolReg(rs1 < uint64(in.Imm)))
	case OpXORI:
		c.setReg(in.Rd, rs1^uint64(in.Imm))
	case OpORI:
		c.setReg(in.Rd, rs1|uint64(in.Imm))
	case OpANDI:
		c.setReg(in.Rd, rs1&uint64(in.Imm))
	case OpSLLI:
		c.setReg(in.Rd, rs1<<uint(in.Imm))
	case OpSRLI:
		c.setReg(in.Rd, rs1>>uint(in.Imm))
	case OpSRAI:
		c.setReg(in.Rd, uint64(int64(rs1)>>uint(in.Imm)))

	case OpADDIW:
		c.setReg(in.Rd, signExt32(uint32(rs1)+uint32(in.Imm)))
	case OpSLLIW:
		c.setReg(in.Rd, signExt32(uint32(rs1)<<uint(in.Imm)))
	case OpSRLIW:
		c.setReg(in.Rd, signExt32(uint32(rs1)>>uint(in.Imm)))
	case OpSRAIW:
		c.setReg(in.Rd, uint64(int64(int32(rs1)>>uint(in.Imm))))

	case OpADD:
		c.setReg(in.Rd, rs1+rs2)
	case OpSUB:
		c.setReg(in.Rd, rs1-rs2)
	case OpSLL:
		c.setReg(in.Rd, rs1<<(rs2&63))
	case OpSLT:
		c.setReg(in.Rd, boolReg(int64(rs1) < int64(rs2)))
	case OpSLTU:
		c.setReg(in.Rd, boolReg(rs1 < rs2))
	case OpXOR:
		c.setReg(in.Rd, rs1^rs2)
	case OpSRL:
		c.setReg(in.Rd, rs1>>(rs2&63))
	case OpSRA:
		c.setReg(in.Rd, uint64(int64(rs1)>>(rs2&63)))
	case OpOR:
		c.setReg(in.Rd, rs1|rs2)
	case OpAND:
		c.setReg(in.Rd, rs1&rs2)

	case OpADDW:
		c.setReg(in.Rd, signExt32(uint32(rs1)+uint32(rs2)))
	case OpSUBW:
		c.setReg(in.Rd, signExt32(uint32(rs1)-uint32(rs2)))
	case OpSLLW:
		c.setReg(in.Rd, signExt32(uint32(rs1)<<(rs2&31)))
	case OpSRLW:
		c.setReg(in.Rd, signExt32(uint32(rs1)>>(rs2&31)))
	case OpSRAW:
		c.setReg(in.Rd, uint64(int64(int32(rs1)>>(rs2&31))))

	case OpMUL:
		c.setReg(in.Rd, rs1*rs2)
	case OpMULH:
		c.setReg(in.Rd, mulh(rs1, rs2))
	case OpMULHSU:
		c.setReg(in.Rd, mulhsu(rs1, rs2))
	case OpMULHU:
		hi, _ := bits.Mul64(rs1, rs2)
		c.setReg(in.Rd, hi)
	case OpDIV:
		c.setReg(in.Rd, div(rs1, rs2))
	case OpDIVU:
		c.setReg(in.Rd, divu(rs1, rs2))
	case OpREM:
		c.setReg(in.Rd, rem(rs1, rs2))
	case OpREMU:
		c.setReg(in.Rd, remu(rs1, rs2))
	case OpMULW:
		c.setReg(in.Rd, signExt32(uint32(rs1)*uint32(rs2)))
	case OpDIVW:
		c.setReg(in.Rd, signExt32(uint32(div32(int32(rs1), int32(rs2)))))
	case OpDIVUW:
		c.setReg(in.Rd, signExt32(divu32(uint32(rs1), uint32(rs2))))
	case OpREMW:
		c.setReg(in.Rd, signExt32(uint32(rem32(int32(rs1), int32(rs2)))))
	case OpREMUW:
		c.setReg(in.Rd, signExt32(remu32(uint32(rs1), uint32(rs2))))

	case OpFENCE:
		// no-op on a single-hart deterministic machine

	case OpECALL:
		if c.sys == nil {
			return c.fault(errors.New("ecall with no syscall handler"))
		}
		if err := c.sys.Ecall(c); err != nil {
			return c.fault(errors.Wrap(err, "syscall"))
		}
	case OpEBREAK:
		return c.fault(errors.New("ebreak"))
	}

	c.cycles += InstructionCycles(in.Op)
	c.pc = next
	return nil
}

func branchTaken(op Op, rs1, rs2 uint64) bool {
	switch op {
	case OpBEQ:
		return rs1 == rs2
	case OpBNE:
		return rs1 != rs2
	case OpBLT:
		return int64(rs1) < int64(rs2)
	case OpBGE:
		return int64(rs1) >= int64(rs2)
	case OpBLTU:
		return rs1 < rs2
	case OpBGEU:
		return rs1 >= rs2
	}
	return false
}

func (c *CPU) load(op Op, addr uint64) (uint64, error) {
	sizes := map[Op]int{OpLB: 1, OpLH: 2, OpLW: 4, OpLD: 8, OpLBU: 1, OpLHU: 2, OpLWU: 4}
	size := sizes[op]
	val, err := c.mem.ReadUint(addr, size, cpu.PROT_READ)
	if err != nil {
		return 0, err
	}
	switch op {
	case OpLB:
		return uint64(int64(int8(val))), nil
	case OpLH:
		return uint64(int64(int16(val))), nil
	case OpLW:
		return uint64(int64(int32(val))), nil
	}
	return val, nil
}

func boolReg(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func signExt32(v uint32) uint64 {
	return uint64(int64(int32(v)))
}

func mulh(a, b uint64) uint64 {
	hi, _ := bits.Mul64(a, b)
	return hi - (uint64(int64(a)>>63) & b) - (uint64(int64(b)>>63) & a)
}

func mulhsu(a, b uint64) uint64 {
	hi, _ := bits.Mul64(a, b)
	return hi - (uint64(int64(a)>>63) & b)
}

func div(a, b uint64) uint64 {
	sa, sb := int64(a), int64(b)
	switch {
	case sb == 0:
		return ^uint64(0)
	case sa == -1<<63 && sb == -1:
		return a
	}
	return uint64(sa / sb)
}

func divu(a, b uint64) uint64 {
	if b == 0 {
		return ^uint64(0)
	}
	return a / b
}

func rem(a, b uint64) uint64 {
	sa, sb := int64(a), int64(b)
	switch {
	case sb == 0:
		return a
	case sa == -1<<63 && sb == -1:
		return 0
	}
	return uint64(sa % sb)
}

func remu(a, b uint64) uint64 {
	if b == 0 {
		return a
	}
	return a % b
}

func div32(a, b int32) int32 {
	switch {
	case b == 0:
		return -1
	case a == -1<<31 && b == -1:
		return a
	}
	return a / b
}

func divu32(a, b uint32) uint32 {
	if b == 0 {
		return ^uint32(0)
	}
	return a / b
}

func rem32(a, b int32) int32 {
	switch {
	case b == 0:
		return a
	case a == -1<<31 && b == -1:
		return 0
	}
	return a % b
}

func remu32(a, b uint32) uint32 {
	if b == 0 {
		return a
	}
	return a % b
}
