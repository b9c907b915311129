package riscv

// instruction cycle costs, mirroring the consensus cost model: control
// transfers and memory traffic are charged above the one-cycle baseline,
// and division is by far the most expensive unit of work.
var opCycles = map[Op]uint64{
	OpJAL:  3,
	OpJALR: 3,
	OpBEQ:  3, OpBNE: 3, OpBLT: 3, OpBGE: 3, OpBLTU: 3, OpBGEU: 3,
	OpLB: 3, OpLH: 3, OpLW: 3, OpLBU: 3, OpLHU: 3, OpLWU: 3,
	OpLD: 2,
	OpSB: 3, OpSH: 3, OpSW: 3,
	OpSD:  2,
	OpMUL: 5, OpMULH: 5, OpMULHSU: 5, OpMULHU: 5, OpMULW: 5,
	OpDIV: 32, OpDIVU: 32, OpREM: 32, OpREMU: 32,
	OpDIVW: 32, OpDIVUW: 32, OpREMW: 32, OpREMUW: 32,
	OpECALL: 500, OpEBREAK: 500,
}

// InstructionCycles returns the cost charged for executing op. Every
// instruction costs at least one cycle, keeping the cycle counter strictly
// increasing per step.
func InstructionCycles(op Op) uint64 {
	if c, ok := opCycles[op]; ok {
		return c
	}
	return 1
}
