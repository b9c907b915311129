package riscv

// Instruction word builders. These exist for tests and tools that need to
// assemble small programs without an external assembler; the interpreter
// itself never encodes.

func encR(opcode, f3, f7 uint32, rd, rs1, rs2 int) uint32 {
	return f7<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | f3<<12 | uint32(rd)<<7 | opcode
}

func encI(opcode, f3 uint32, rd, rs1 int, imm int64) uint32 {
	return uint32(imm)<<20 | uint32(rs1)<<15 | f3<<12 | uint32(rd)<<7 | opcode
}

func encS(opcode, f3 uint32, rs1, rs2 int, imm int64) uint32 {
	i := uint32(imm)
	return (i>>5)<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | f3<<12 | (i&0x1f)<<7 | opcode
}

func encB(opcode, f3 uint32, rs1, rs2 int, imm int64) uint32 {
	i := uint32(imm)
	return (i>>12&1)<<31 | (i>>5&0x3f)<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 |
		f3<<12 | (i>>1&0xf)<<8 | (i>>11&1)<<7 | opcode
}

func encU(opcode uint32, rd int, imm int64) uint32 {
	return uint32(imm)&0xfffff000 | uint32(rd)<<7 | opcode
}

func encJ(opcode uint32, rd int, imm int64) uint32 {
	i := uint32(imm)
	return (i>>20&1)<<31 | (i>>1&0x3ff)<<21 | (i>>11&1)<<20 | (i>>12&0xff)<<12 |
		uint32(rd)<<7 | opcode
}

func EncADDI(rd, rs1 int, imm int64) uint32 { return encI(0x13, 0, rd, rs1, imm) }
func EncANDI(rd, rs1 int, imm int64) uint32 { return encI(0x13, 7, rd, rs1, imm) }
func EncADD(rd, rs1, rs2 int) uint32 { return encR(0x33, 0, 0, rd, rs1, rs2) }
func EncSUB(rd, rs1, rs2 int) uint32 { return encR(0x33, 0, 0x20, rd, rs1, rs2) }
func EncMUL(rd, rs1, rs2 int) uint32 { return encR(0x33, 0, 1, rd, rs1, rs2) }
func EncDIV(rd, rs1, rs2 int) uint32 { return encR(0x33, 4, 1, rd, rs1, rs2) }
func EncLUI(rd int, imm int64) uint32 { return encU(0x37, rd, imm) }
func EncAUIPC(rd int, imm int64) uint32 { return encU(0x17, rd, imm) }
func EncJAL(rd int, imm int64) uint32 { return encJ(0x6f, rd, imm) }
func EncJALR(rd, rs1 int, imm int64) uint32 { return encI(0x67, 0, rd, rs1, imm) }
func EncBEQ(rs1, rs2 int, imm int64) uint32 { return encB(0x63, 0, rs1, rs2, imm) }
func EncBNE(rs1, rs2 int, imm int64) uint32 { return encB(0x63, 1, rs1, rs2, imm) }
func EncBLT(rs1, rs2 int, imm int64) uint32 { return encB(0x63, 4, rs1, rs2, imm) }
func EncLB(rd, rs1 int, imm int64) uint32 { return encI(0x03, 0, rd, rs1, imm) }
func EncLW(rd, rs1 int, imm int64) uint32 { return encI(0x03, 2, rd, rs1, imm) }
func EncLD(rd, rs1 int, imm int64) uint32 { return encI(0x03, 3, rd, rs1, imm) }
func EncSB(rs1, rs2 int, imm int64) uint32 { return encS(0x23, 0, rs1, rs2, imm) }
func EncSW(rs1, rs2 int, imm int64) uint32 { return encS(0x23, 2, rs1, rs2, imm) }
func EncSD(rs1, rs2 int, imm int64) uint32 { return encS(0x23, 3, rs1, rs2, imm) }
func EncECALL() uint32 { return 0x73 }
func EncEBREAK() uint32 { return 0x00100073 }
