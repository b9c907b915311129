package riscv

import "fmt"

// Op identifies a decoded RV64IM instruction.
type Op int

const (
	OpInvalid Op = iota
	OpLUI
	OpAUIPC
	OpJAL
	OpJALR
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU
	OpLB
	OpLH
	OpLW
	OpLD
	OpLBU
	OpLHU
	OpLWU
	OpSB
	OpSH
	OpSW
	OpSD
	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI
	OpADDIW
	OpSLLIW
	OpSRLIW
	OpSRAIW
	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND
	OpADDW
	OpSUBW
	OpSLLW
	OpSRLW
	OpSRAW
	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU
	OpMULW
	OpDIVW
	OpDIVUW
	OpREMW
	OpREMUW
	OpFENCE
	OpECALL
	OpEBREAK
)

var opNames = map[Op]string{
	OpLUI: "lui", OpAUIPC: "auipc", OpJAL: "jal", OpJALR: "jalr",
	OpBEQ: "beq", OpBNE: "bne", OpBLT: "blt", OpBGE: "bge", OpBLTU: "bltu", OpBGEU: "bgeu",
	OpLB: "lb", OpLH: "lh", OpLW: "lw", OpLD: "ld", OpLBU: "lbu", OpLHU: "lhu", OpLWU: "lwu",
	OpSB: "sb", OpSH: "sh", OpSW: "sw", OpSD: "sd",
	OpADDI: "addi", OpSLTI: "slti", OpSLTIU: "sltiu", OpXORI: "xori", OpORI: "ori", OpANDI: "andi",
	OpSLLI: "slli", OpSRLI: "srli", OpSRAI: "srai",
	OpADDIW: "addiw", OpSLLIW: "slliw", OpSRLIW: "srliw", OpSRAIW: "sraiw",
	OpADD: "add", OpSUB: "sub", OpSLL: "sll", OpSLT: "slt", OpSLTU: "sltu",
	OpXOR: "xor", OpSRL: "srl", OpSRA: "sra", OpOR: "or", OpAND: "and",
	OpADDW: "addw", OpSUBW: "subw", OpSLLW: "sllw", OpSRLW: "srlw", OpSRAW: "sraw",
	OpMUL: "mul", OpMULH: "mulh", OpMULHSU: "mulhsu", OpMULHU: "mulhu",
	OpDIV: "div", OpDIVU: "divu", OpREM: "rem", OpREMU: "remu",
	OpMULW: "mulw", OpDIVW: "divw", OpDIVUW: "divuw", OpREMW: "remw", OpREMUW: "remuw",
	OpFENCE: "fence", OpECALL: "ecall", OpEBREAK: "ebreak",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "invalid"
}

// Inst is a decoded instruction. Rd/Rs1/Rs2 are register enums, Imm is the
// sign-extended immediate where the format has one.
type Inst struct {
	Op  Op
	Rd  int
	Rs1 int
	Rs2 int
	Imm int64
}

func immI(w uint32) int64 { return int64(int32(w) >> 20) }

func immS(w uint32) int64 {
	return int64(int32(w&0xfe000000)>>20) | int64((w>>7)&0x1f)
}

func immB(w uint32) int64 {
	imm := int64(int32(w&0x80000000)>>19) | // bit 31 -> 12
		int64(w&0x80)<<4 | // bit 7 -> 11
		int64(w>>20)&0x7e0 | // bits 30:25 -> 10:5
		int64(w>>7)&0x1e // bits 11:8 -> 4:1
	return imm
}

func immU(w uint32) int64 { return int64(int32(w & 0xfffff000)) }

func immJ(w uint32) int64 {
	imm := int64(int32(w&0x80000000)>>11) | // bit 31 -> 20
		int64(w)&0xff000 | // bits 19:12
		int64(w>>9)&0x800 | // bit 20 -> 11
		int64(w>>20)&0x7fe // bits 30:21 -> 10:1
	return imm
}

// Decode decodes a 32-bit RV64IM instruction word. An unrecognized encoding
// yields OpInvalid and an error; executing it is a machine fault.
func Decode(w uint32) (Inst, error) {
	in := Inst{
		Rd:  int(w >> 7 & 0x1f),
		Rs1: int(w >> 15 & 0x1f),
		Rs2: int(w >> 20 & 0x1f),
	}
	f3 := w >> 12 & 7
	f7 := w >> 25

	switch w & 0x7f {
	case 0x37:
		in.Op, in.Imm = OpLUI, immU(w)
	case 0x17:
		in.Op, in.Imm = OpAUIPC, immU(w)
	case 0x6f:
		in.Op, in.Imm = OpJAL, immJ(w)
	case 0x67:
		if f3 == 0 {
			in.Op, in.Imm = OpJALR, immI(w)
		}
	case 0x63:
		ops := map[uint32]Op{0: OpBEQ, 1: OpBNE, 4: OpBLT, 5: OpBGE, 6: OpBLTU, 7: OpBGEU}
		in.Op, in.Imm = ops[f3], immB(w)
	case 0x03:
		ops := map[uint32]Op{0: OpLB, 1: OpLH, 2: OpLW, 3: OpLD, 4: OpLBU, 5: OpLHU, 6: OpLWU}
		in.Op, in.Imm = ops[f3], immI(w)
	case 0x23:
		ops := map[uint32]Op{0: OpSB, 1: OpSH, 2: OpSW, 3: OpSD}
		in.Op, in.Imm = ops[f3], immS(w)
	case 0x13:
		switch f3 {
		case 0:
			in.Op = OpADDI
		case 2:
			in.Op = OpSLTI
		case 3:
			in.Op = OpSLTIU
		case 4:
			in.Op = OpXORI
		case 6:
			in.Op = OpORI
		case 7:
			in.Op = OpANDI
		case 1:
			if f7>>1 == 0 {
				in.Op = OpSLLI
			}
		case 5:
			switch f7 >> 1 {
			case 0:
				in.Op = OpSRLI
			case 0x10:
				in.Op = OpSRAI
			}
		}
		// RV64 shifts take a 6-bit shamt
		in.Imm = immI(w) & 0x3f
		if in.Op != OpSLLI && in.Op != OpSRLI && in.Op != OpSRAI {
			in.Imm = immI(w)
		}
	case 0x1b:
		switch f3 {
		case 0:
			in.Op, in.Imm = OpADDIW, immI(w)
		case 1:
			if f7 == 0 {
				in.Op, in.Imm = OpSLLIW, int64(in.Rs2)
			}
		case 5:
			switch f7 {
			case 0:
				in.Op, in.Imm = OpSRLIW, int64(in.Rs2)
			case 0x20:
				in.Op, in.Imm = OpSRAIW, int64(in.Rs2)
			}
		}
	case 0x33:
		if f7 == 1 {
			ops := map[uint32]Op{0: OpMUL, 1: OpMULH, 2: OpMULHSU, 3: OpMULHU, 4: OpDIV, 5: OpDIVU, 6: OpREM, 7: OpREMU}
			in.Op = ops[f3]
		} else {
			switch {
			case f3 == 0 && f7 == 0:
				in.Op = OpADD
			case f3 == 0 && f7 == 0x20:
				in.Op = OpSUB
			case f3 == 1 && f7 == 0:
				in.Op = OpSLL
			case f3 == 2 && f7 == 0:
				in.Op = OpSLT
			case f3 == 3 && f7 == 0:
				in.Op = OpSLTU
			case f3 == 4 && f7 == 0:
				in.Op = OpXOR
			case f3 == 5 && f7 == 0:
				in.Op = OpSRL
			case f3 == 5 && f7 == 0x20:
				in.Op = OpSRA
			case f3 == 6 && f7 == 0:
				in.Op = OpOR
			case f3 == 7 && f7 == 0:
				in.Op = OpAND
			}
		}
	case 0x3b:
		if f7 == 1 {
			ops := map[uint32]Op{0: OpMULW, 4: OpDIVW, 5: OpDIVUW, 6: OpREMW, 7: OpREMUW}
			in.Op = ops[f3]
		} else {
			switch {
			case f3 == 0 && f7 == 0:
				in.Op = OpADDW
			case f3 == 0 && f7 == 0x20:
				in.Op = OpSUBW
			case f3 == 1 && f7 == 0:
				in.Op = OpSLLW
			case f3 == 5 && f7 == 0:
				in.Op = OpSRLW
			case f3 == 5 && f7 == 0x20:
				in.Op = OpSRAW
			}
		}
	case 0x0f:
		in.Op = OpFENCE
	case 0x73:
		switch w >> 20 {
		case 0:
			in.Op = OpECALL
		case 1:
			in.Op = OpEBREAK
		}
	}
	if in.Op == OpInvalid {
		return in, fmt.Errorf("invalid instruction %#08x", w)
	}
	return in, nil
}
