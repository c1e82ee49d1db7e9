// Package insts provides RV32I instruction definitions and decoding.
//
// This package implements decoding of RISC-V machine code into structured
// instruction representations. It supports the complete RV32I base integer
// set:
//   - R format: ADD, SUB, SLL, SLT, SLTU, XOR, SRL, SRA, OR, AND
//   - I format: ALU immediates, shift immediates, loads, JALR, FENCE, ECALL, EBREAK
//   - S format: SB, SH, SW
//   - B format: BEQ, BNE, BLT, BGE, BLTU, BGEU
//   - U format: LUI, AUIPC
//   - J format: JAL
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst, err := decoder.Decode(0x00A00293) // addi x5, x0, 10
//	fmt.Printf("Op: %v, Rd: %d, Rs1: %d, Imm: %d\n", inst.Op, inst.Rd, inst.Rs1, inst.Imm)
package insts

import "fmt"

// Op represents an RV32I operation.
type Op uint16

// Supported operations.
const (
	OpNOP Op = iota
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
	OpLBU
	OpLHU
	OpSB
	OpSH
	OpSW
	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI
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
	OpFENCE
	OpECALL
	OpEBREAK
)

var opNames = [...]string{
	OpNOP:    "nop",
	OpLUI:    "lui",
	OpAUIPC:  "auipc",
	OpJAL:    "jal",
	OpJALR:   "jalr",
	OpBEQ:    "beq",
	OpBNE:    "bne",
	OpBLT:    "blt",
	OpBGE:    "bge",
	OpBLTU:   "bltu",
	OpBGEU:   "bgeu",
	OpLB:     "lb",
	OpLH:     "lh",
	OpLW:     "lw",
	OpLBU:    "lbu",
	OpLHU:    "lhu",
	OpSB:     "sb",
	OpSH:     "sh",
	OpSW:     "sw",
	OpADDI:   "addi",
	OpSLTI:   "slti",
	OpSLTIU:  "sltiu",
	OpXORI:   "xori",
	OpORI:    "ori",
	OpANDI:   "andi",
	OpSLLI:   "slli",
	OpSRLI:   "srli",
	OpSRAI:   "srai",
	OpADD:    "add",
	OpSUB:    "sub",
	OpSLL:    "sll",
	OpSLT:    "slt",
	OpSLTU:   "sltu",
	OpXOR:    "xor",
	OpSRL:    "srl",
	OpSRA:    "sra",
	OpOR:     "or",
	OpAND:    "and",
	OpFENCE:  "fence",
	OpECALL:  "ecall",
	OpEBREAK: "ebreak",
}

// String returns the assembler mnemonic of the operation.
func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", uint16(o))
}

// Format represents the RISC-V instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatNone Format = iota // no-op bubble
	FormatR
	FormatI
	FormatS
	FormatB
	FormatU
	FormatJ
)

func (f Format) String() string {
	switch f {
	case FormatR:
		return "R"
	case FormatI:
		return "I"
	case FormatS:
		return "S"
	case FormatB:
		return "B"
	case FormatU:
		return "U"
	case FormatJ:
		return "J"
	default:
		return "none"
	}
}

// Instruction represents a decoded RV32I instruction.
// Fields that the format does not carry are zero.
type Instruction struct {
	Op     Op
	Format Format

	// Word is the raw machine word the instruction was decoded from.
	Word uint32

	Rd     uint8
	Rs1    uint8
	Rs2    uint8
	Funct3 uint8
	Funct7 uint8

	// Imm is the sign-extended immediate. U-format immediates are already
	// shifted into bits 31:12. Shift immediates hold the shift amount.
	Imm int32
}

// NOP is the bubble instruction that fills empty pipeline slots.
// It must never be modified.
var NOP = &Instruction{Op: OpNOP, Format: FormatNone}

// IsNOP reports whether the instruction is a pipeline bubble.
func (i *Instruction) IsNOP() bool {
	return i == nil || i.Op == OpNOP
}

// IsSystem reports whether the instruction is FENCE, ECALL or EBREAK.
func (i *Instruction) IsSystem() bool {
	return i.Op == OpFENCE || i.Op == OpECALL || i.Op == OpEBREAK
}

// IsHalt reports whether retiring the instruction stops the core.
func (i *Instruction) IsHalt() bool {
	return i.Op == OpECALL || i.Op == OpEBREAK
}

// IsLoad reports whether the instruction reads data memory.
func (i *Instruction) IsLoad() bool {
	return i.Op >= OpLB && i.Op <= OpLHU
}

// IsStore reports whether the instruction writes data memory.
func (i *Instruction) IsStore() bool {
	return i.Op >= OpSB && i.Op <= OpSW
}

// IsBranch reports whether the instruction is a conditional branch.
func (i *Instruction) IsBranch() bool {
	return i.Format == FormatB
}

// IsJump reports whether the instruction is JAL or JALR.
func (i *Instruction) IsJump() bool {
	return i.Op == OpJAL || i.Op == OpJALR
}

// WritesRd reports whether the instruction produces a value for rd.
// I, J, R and U formats write a destination register.
func (i *Instruction) WritesRd() bool {
	if i.IsNOP() || i.IsSystem() {
		return false
	}

	switch i.Format {
	case FormatI, FormatJ, FormatR, FormatU:
		return true
	default:
		return false
	}
}

// ReadsRs1 reports whether the instruction consumes rs1.
// B, I, R and S formats read rs1.
func (i *Instruction) ReadsRs1() bool {
	if i.IsNOP() || i.IsSystem() {
		return false
	}

	switch i.Format {
	case FormatB, FormatI, FormatR, FormatS:
		return true
	default:
		return false
	}
}

// ReadsRs2 reports whether the instruction consumes rs2.
// B, R and S formats read rs2.
func (i *Instruction) ReadsRs2() bool {
	if i.IsNOP() {
		return false
	}

	switch i.Format {
	case FormatB, FormatR, FormatS:
		return true
	default:
		return false
	}
}

// String returns the instruction in assembler syntax.
func (i *Instruction) String() string {
	if i.IsNOP() {
		return "nop"
	}

	switch i.Format {
	case FormatR:
		return fmt.Sprintf("%s x%d, x%d, x%d", i.Op, i.Rd, i.Rs1, i.Rs2)
	case FormatI:
		switch {
		case i.IsSystem():
			return i.Op.String()
		case i.IsLoad(), i.Op == OpJALR:
			return fmt.Sprintf("%s x%d, %d(x%d)", i.Op, i.Rd, i.Imm, i.Rs1)
		default:
			return fmt.Sprintf("%s x%d, x%d, %d", i.Op, i.Rd, i.Rs1, i.Imm)
		}
	case FormatS:
		return fmt.Sprintf("%s x%d, %d(x%d)", i.Op, i.Rs2, i.Imm, i.Rs1)
	case FormatB:
		return fmt.Sprintf("%s x%d, x%d, %d", i.Op, i.Rs1, i.Rs2, i.Imm)
	case FormatU:
		return fmt.Sprintf("%s x%d, 0x%x", i.Op, i.Rd, uint32(i.Imm)>>12)
	case FormatJ:
		return fmt.Sprintf("%s x%d, %d", i.Op, i.Rd, i.Imm)
	}

	return i.Op.String()
}
