package insts

// Encoding helpers construct 32-bit instruction words from their fields.
// They are used to build programs for tests and benchmarks.

// EncodeR encodes an R-format instruction.
func EncodeR(opcode, rd, funct3, rs1, rs2, funct7 uint32) uint32 {
	return funct7<<25 | (rs2&0x1F)<<20 | (rs1&0x1F)<<15 |
		(funct3&0x7)<<12 | (rd&0x1F)<<7 | opcode&0x7F
}

// EncodeI encodes an I-format instruction. Only the low 12 bits of imm are used.
func EncodeI(opcode, rd, funct3, rs1 uint32, imm int32) uint32 {
	return (uint32(imm)&0xFFF)<<20 | (rs1&0x1F)<<15 |
		(funct3&0x7)<<12 | (rd&0x1F)<<7 | opcode&0x7F
}

// EncodeS encodes an S-format instruction.
func EncodeS(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return (u>>5&0x7F)<<25 | (rs2&0x1F)<<20 | (rs1&0x1F)<<15 |
		(funct3&0x7)<<12 | (u&0x1F)<<7 | opcode&0x7F
}

// EncodeB encodes a B-format instruction. imm is a byte offset; bit 0 is dropped.
func EncodeB(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return (u>>12&1)<<31 | (u>>5&0x3F)<<25 | (rs2&0x1F)<<20 |
		(rs1&0x1F)<<15 | (funct3&0x7)<<12 | (u>>1&0xF)<<8 |
		(u>>11&1)<<7 | opcode&0x7F
}

// EncodeU encodes a U-format instruction. imm20 is placed in bits 31:12.
func EncodeU(opcode, rd, imm20 uint32) uint32 {
	return (imm20&0xFFFFF)<<12 | (rd&0x1F)<<7 | opcode&0x7F
}

// EncodeJ encodes a J-format instruction. imm is a byte offset; bit 0 is dropped.
func EncodeJ(opcode, rd uint32, imm int32) uint32 {
	u := uint32(imm)
	return (u>>20&1)<<31 | (u>>1&0x3FF)<<21 | (u>>11&1)<<20 |
		(u>>12&0xFF)<<12 | (rd&0x1F)<<7 | opcode&0x7F
}

// ADD encodes add rd, rs1, rs2.
func ADD(rd, rs1, rs2 uint32) uint32 { return EncodeR(opcodeOp, rd, 0x0, rs1, rs2, funct7Base) }

// SUB encodes sub rd, rs1, rs2.
func SUB(rd, rs1, rs2 uint32) uint32 { return EncodeR(opcodeOp, rd, 0x0, rs1, rs2, funct7Alt) }

// AND encodes and rd, rs1, rs2.
func AND(rd, rs1, rs2 uint32) uint32 { return EncodeR(opcodeOp, rd, 0x7, rs1, rs2, funct7Base) }

// OR encodes or rd, rs1, rs2.
func OR(rd, rs1, rs2 uint32) uint32 { return EncodeR(opcodeOp, rd, 0x6, rs1, rs2, funct7Base) }

// XOR encodes xor rd, rs1, rs2.
func XOR(rd, rs1, rs2 uint32) uint32 { return EncodeR(opcodeOp, rd, 0x4, rs1, rs2, funct7Base) }

// SLL encodes sll rd, rs1, rs2.
func SLL(rd, rs1, rs2 uint32) uint32 { return EncodeR(opcodeOp, rd, 0x1, rs1, rs2, funct7Base) }

// SRL encodes srl rd, rs1, rs2.
func SRL(rd, rs1, rs2 uint32) uint32 { return EncodeR(opcodeOp, rd, 0x5, rs1, rs2, funct7Base) }

// SRA encodes sra rd, rs1, rs2.
func SRA(rd, rs1, rs2 uint32) uint32 { return EncodeR(opcodeOp, rd, 0x5, rs1, rs2, funct7Alt) }

// SLT encodes slt rd, rs1, rs2.
func SLT(rd, rs1, rs2 uint32) uint32 { return EncodeR(opcodeOp, rd, 0x2, rs1, rs2, funct7Base) }

// SLTU encodes sltu rd, rs1, rs2.
func SLTU(rd, rs1, rs2 uint32) uint32 { return EncodeR(opcodeOp, rd, 0x3, rs1, rs2, funct7Base) }

// ADDI encodes addi rd, rs1, imm.
func ADDI(rd, rs1 uint32, imm int32) uint32 { return EncodeI(opcodeOpImm, rd, 0x0, rs1, imm) }

// SLTI encodes slti rd, rs1, imm.
func SLTI(rd, rs1 uint32, imm int32) uint32 { return EncodeI(opcodeOpImm, rd, 0x2, rs1, imm) }

// SLTIU encodes sltiu rd, rs1, imm.
func SLTIU(rd, rs1 uint32, imm int32) uint32 { return EncodeI(opcodeOpImm, rd, 0x3, rs1, imm) }

// XORI encodes xori rd, rs1, imm.
func XORI(rd, rs1 uint32, imm int32) uint32 { return EncodeI(opcodeOpImm, rd, 0x4, rs1, imm) }

// ORI encodes ori rd, rs1, imm.
func ORI(rd, rs1 uint32, imm int32) uint32 { return EncodeI(opcodeOpImm, rd, 0x6, rs1, imm) }

// ANDI encodes andi rd, rs1, imm.
func ANDI(rd, rs1 uint32, imm int32) uint32 { return EncodeI(opcodeOpImm, rd, 0x7, rs1, imm) }

// SLLI encodes slli rd, rs1, shamt.
func SLLI(rd, rs1, shamt uint32) uint32 {
	return EncodeR(opcodeOpImm, rd, 0x1, rs1, shamt, funct7Base)
}

// SRLI encodes srli rd, rs1, shamt.
func SRLI(rd, rs1, shamt uint32) uint32 {
	return EncodeR(opcodeOpImm, rd, 0x5, rs1, shamt, funct7Base)
}

// SRAI encodes srai rd, rs1, shamt.
func SRAI(rd, rs1, shamt uint32) uint32 {
	return EncodeR(opcodeOpImm, rd, 0x5, rs1, shamt, funct7Alt)
}

// LB encodes lb rd, imm(rs1).
func LB(rd, rs1 uint32, imm int32) uint32 { return EncodeI(opcodeLoad, rd, 0x0, rs1, imm) }

// LH encodes lh rd, imm(rs1).
func LH(rd, rs1 uint32, imm int32) uint32 { return EncodeI(opcodeLoad, rd, 0x1, rs1, imm) }

// LW encodes lw rd, imm(rs1).
func LW(rd, rs1 uint32, imm int32) uint32 { return EncodeI(opcodeLoad, rd, 0x2, rs1, imm) }

// LBU encodes lbu rd, imm(rs1).
func LBU(rd, rs1 uint32, imm int32) uint32 { return EncodeI(opcodeLoad, rd, 0x4, rs1, imm) }

// LHU encodes lhu rd, imm(rs1).
func LHU(rd, rs1 uint32, imm int32) uint32 { return EncodeI(opcodeLoad, rd, 0x5, rs1, imm) }

// SB encodes sb rs2, imm(rs1).
func SB(rs2, rs1 uint32, imm int32) uint32 { return EncodeS(opcodeStore, 0x0, rs1, rs2, imm) }

// SH encodes sh rs2, imm(rs1).
func SH(rs2, rs1 uint32, imm int32) uint32 { return EncodeS(opcodeStore, 0x1, rs1, rs2, imm) }

// SW encodes sw rs2, imm(rs1).
func SW(rs2, rs1 uint32, imm int32) uint32 { return EncodeS(opcodeStore, 0x2, rs1, rs2, imm) }

// BEQ encodes beq rs1, rs2, offset.
func BEQ(rs1, rs2 uint32, imm int32) uint32 { return EncodeB(opcodeBranch, 0x0, rs1, rs2, imm) }

// BNE encodes bne rs1, rs2, offset.
func BNE(rs1, rs2 uint32, imm int32) uint32 { return EncodeB(opcodeBranch, 0x1, rs1, rs2, imm) }

// BLT encodes blt rs1, rs2, offset.
func BLT(rs1, rs2 uint32, imm int32) uint32 { return EncodeB(opcodeBranch, 0x4, rs1, rs2, imm) }

// BGE encodes bge rs1, rs2, offset.
func BGE(rs1, rs2 uint32, imm int32) uint32 { return EncodeB(opcodeBranch, 0x5, rs1, rs2, imm) }

// BLTU encodes bltu rs1, rs2, offset.
func BLTU(rs1, rs2 uint32, imm int32) uint32 { return EncodeB(opcodeBranch, 0x6, rs1, rs2, imm) }

// BGEU encodes bgeu rs1, rs2, offset.
func BGEU(rs1, rs2 uint32, imm int32) uint32 { return EncodeB(opcodeBranch, 0x7, rs1, rs2, imm) }

// LUI encodes lui rd, imm20.
func LUI(rd, imm20 uint32) uint32 { return EncodeU(opcodeLUI, rd, imm20) }

// AUIPC encodes auipc rd, imm20.
func AUIPC(rd, imm20 uint32) uint32 { return EncodeU(opcodeAUIPC, rd, imm20) }

// JAL encodes jal rd, offset.
func JAL(rd uint32, imm int32) uint32 { return EncodeJ(opcodeJAL, rd, imm) }

// JALR encodes jalr rd, imm(rs1).
func JALR(rd, rs1 uint32, imm int32) uint32 { return EncodeI(opcodeJALR, rd, 0x0, rs1, imm) }

// FENCE encodes fence with all predecessor and successor bits set.
func FENCE() uint32 { return EncodeI(opcodeFence, 0, 0x0, 0, 0x0FF) }

// ECALL encodes ecall.
func ECALL() uint32 { return 0x00000073 }

// EBREAK encodes ebreak.
func EBREAK() uint32 { return 0x00100073 }

// NOPWord encodes the canonical no-op, addi x0, x0, 0.
func NOPWord() uint32 { return ADDI(0, 0, 0) }
