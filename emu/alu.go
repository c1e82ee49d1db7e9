package emu

import "github.com/sarchlab/rvsim/insts"

// ALU computes the result of an arithmetic, logic, shift or compare
// operation. Immediate forms share the register form's semantics with the
// sign-extended immediate passed as b. Operations that are not ALU
// operations return 0.
func ALU(op insts.Op, a, b uint32) uint32 {
	switch op {
	case insts.OpADD, insts.OpADDI:
		return a + b
	case insts.OpSUB:
		return a - b
	case insts.OpAND, insts.OpANDI:
		return a & b
	case insts.OpOR, insts.OpORI:
		return a | b
	case insts.OpXOR, insts.OpXORI:
		return a ^ b
	case insts.OpSLL, insts.OpSLLI:
		return a << (b & 0x1F)
	case insts.OpSRL, insts.OpSRLI:
		return a >> (b & 0x1F)
	case insts.OpSRA, insts.OpSRAI:
		return uint32(int32(a) >> (b & 0x1F))
	case insts.OpSLT, insts.OpSLTI:
		return boolToWord(int32(a) < int32(b))
	case insts.OpSLTU, insts.OpSLTIU:
		// SLTIU compares against the sign-extended immediate as unsigned.
		return boolToWord(a < b)
	}

	return 0
}

// BranchTaken evaluates the condition of a B-format instruction.
func BranchTaken(op insts.Op, a, b uint32) bool {
	switch op {
	case insts.OpBEQ:
		return a == b
	case insts.OpBNE:
		return a != b
	case insts.OpBLT:
		return int32(a) < int32(b)
	case insts.OpBGE:
		return int32(a) >= int32(b)
	case insts.OpBLTU:
		return a < b
	case insts.OpBGEU:
		return a >= b
	}

	return false
}

// IsALU reports whether op is computed by ALU.
func IsALU(op insts.Op) bool {
	return (op >= insts.OpADDI && op <= insts.OpSRAI) ||
		(op >= insts.OpADD && op <= insts.OpAND)
}

func boolToWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
