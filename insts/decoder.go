package insts

import (
	"errors"
	"fmt"
)

// ErrUnknownInstruction is returned for words outside the RV32I encoding space.
var ErrUnknownInstruction = errors.New("unknown instruction")

// Major opcodes.
const (
	opcodeLUI    = 0x37
	opcodeAUIPC  = 0x17
	opcodeJAL    = 0x6F
	opcodeJALR   = 0x67
	opcodeBranch = 0x63
	opcodeLoad   = 0x03
	opcodeStore  = 0x23
	opcodeOpImm  = 0x13
	opcodeOp     = 0x33
	opcodeFence  = 0x0F
	opcodeSystem = 0x73
)

const (
	funct7Base = 0x00
	funct7Alt  = 0x20
)

// Decoder decodes RV32I machine words.
type Decoder struct{}

// NewDecoder creates a new RV32I decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit instruction word. The word is classified by its
// opcode first, then funct3, then funct7 where encodings overlap.
func (d *Decoder) Decode(word uint32) (*Instruction, error) {
	inst := &Instruction{
		Word:   word,
		Rd:     uint8((word >> 7) & 0x1F),
		Funct3: uint8((word >> 12) & 0x7),
		Rs1:    uint8((word >> 15) & 0x1F),
		Rs2:    uint8((word >> 20) & 0x1F),
		Funct7: uint8((word >> 25) & 0x7F),
	}

	var ok bool
	switch word & 0x7F {
	case opcodeLUI:
		ok = d.decodeU(inst, OpLUI)
	case opcodeAUIPC:
		ok = d.decodeU(inst, OpAUIPC)
	case opcodeJAL:
		ok = d.decodeJ(inst)
	case opcodeJALR:
		ok = d.decodeJALR(inst)
	case opcodeBranch:
		ok = d.decodeBranch(inst)
	case opcodeLoad:
		ok = d.decodeLoad(inst)
	case opcodeStore:
		ok = d.decodeStore(inst)
	case opcodeOpImm:
		ok = d.decodeOpImm(inst)
	case opcodeOp:
		ok = d.decodeOp(inst)
	case opcodeFence:
		ok = d.decodeFence(inst)
	case opcodeSystem:
		ok = d.decodeSystem(inst)
	}

	if !ok {
		return nil, fmt.Errorf("%w: 0x%08x", ErrUnknownInstruction, word)
	}

	return inst, nil
}

// signExtend replicates bit (bits-1) of v into every higher bit.
func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

func immI(word uint32) int32 {
	return signExtend(word>>20, 12)
}

func immS(word uint32) int32 {
	low := (word >> 7) & 0x1F
	high := (word >> 25) & 0x7F
	return signExtend(high<<5|low, 12)
}

// immB assembles imm[12|10:5|4:1|11].
func immB(word uint32) int32 {
	imm := ((word>>31)&1)<<12 |
		((word>>7)&1)<<11 |
		((word>>25)&0x3F)<<5 |
		((word>>8)&0xF)<<1
	return signExtend(imm, 13)
}

// immJ assembles imm[20|10:1|11|19:12].
func immJ(word uint32) int32 {
	imm := ((word>>31)&1)<<20 |
		((word>>12)&0xFF)<<12 |
		((word>>20)&1)<<11 |
		((word>>21)&0x3FF)<<1
	return signExtend(imm, 21)
}

// onlyFields zeroes the register and funct fields the format does not carry.
func onlyFields(inst *Instruction, rd, rs1, rs2, funct7 bool) {
	if !rd {
		inst.Rd = 0
	}
	if !rs1 {
		inst.Rs1 = 0
	}
	if !rs2 {
		inst.Rs2 = 0
	}
	if !funct7 {
		inst.Funct7 = 0
	}
}

func (d *Decoder) decodeU(inst *Instruction, op Op) bool {
	inst.Op = op
	inst.Format = FormatU
	inst.Imm = int32(inst.Word & 0xFFFFF000)
	inst.Funct3 = 0
	onlyFields(inst, true, false, false, false)
	return true
}

func (d *Decoder) decodeJ(inst *Instruction) bool {
	inst.Op = OpJAL
	inst.Format = FormatJ
	inst.Imm = immJ(inst.Word)
	inst.Funct3 = 0
	onlyFields(inst, true, false, false, false)
	return true
}

func (d *Decoder) decodeJALR(inst *Instruction) bool {
	if inst.Funct3 != 0 {
		return false
	}

	inst.Op = OpJALR
	inst.Format = FormatI
	inst.Imm = immI(inst.Word)
	onlyFields(inst, true, true, false, false)
	return true
}

var branchOps = map[uint8]Op{
	0x0: OpBEQ,
	0x1: OpBNE,
	0x4: OpBLT,
	0x5: OpBGE,
	0x6: OpBLTU,
	0x7: OpBGEU,
}

func (d *Decoder) decodeBranch(inst *Instruction) bool {
	op, ok := branchOps[inst.Funct3]
	if !ok {
		return false
	}

	inst.Op = op
	inst.Format = FormatB
	inst.Imm = immB(inst.Word)
	onlyFields(inst, false, true, true, false)
	return true
}

var loadOps = map[uint8]Op{
	0x0: OpLB,
	0x1: OpLH,
	0x2: OpLW,
	0x4: OpLBU,
	0x5: OpLHU,
}

func (d *Decoder) decodeLoad(inst *Instruction) bool {
	op, ok := loadOps[inst.Funct3]
	if !ok {
		return false
	}

	inst.Op = op
	inst.Format = FormatI
	inst.Imm = immI(inst.Word)
	onlyFields(inst, true, true, false, false)
	return true
}

var storeOps = map[uint8]Op{
	0x0: OpSB,
	0x1: OpSH,
	0x2: OpSW,
}

func (d *Decoder) decodeStore(inst *Instruction) bool {
	op, ok := storeOps[inst.Funct3]
	if !ok {
		return false
	}

	inst.Op = op
	inst.Format = FormatS
	inst.Imm = immS(inst.Word)
	onlyFields(inst, false, true, true, false)
	return true
}

var opImmOps = map[uint8]Op{
	0x0: OpADDI,
	0x2: OpSLTI,
	0x3: OpSLTIU,
	0x4: OpXORI,
	0x6: OpORI,
	0x7: OpANDI,
}

func (d *Decoder) decodeOpImm(inst *Instruction) bool {
	inst.Format = FormatI

	switch inst.Funct3 {
	case 0x1:
		if inst.Funct7 != funct7Base {
			return false
		}
		inst.Op = OpSLLI
		inst.Imm = int32(inst.Rs2)
		onlyFields(inst, true, true, false, true)
		return true
	case 0x5:
		switch inst.Funct7 {
		case funct7Base:
			inst.Op = OpSRLI
		case funct7Alt:
			inst.Op = OpSRAI
		default:
			return false
		}
		inst.Imm = int32(inst.Rs2)
		onlyFields(inst, true, true, false, true)
		return true
	}

	op, ok := opImmOps[inst.Funct3]
	if !ok {
		return false
	}

	inst.Op = op
	inst.Imm = immI(inst.Word)
	onlyFields(inst, true, true, false, false)
	return true
}

type opKey struct {
	funct3 uint8
	funct7 uint8
}

var opOps = map[opKey]Op{
	{0x0, funct7Base}: OpADD,
	{0x0, funct7Alt}:  OpSUB,
	{0x1, funct7Base}: OpSLL,
	{0x2, funct7Base}: OpSLT,
	{0x3, funct7Base}: OpSLTU,
	{0x4, funct7Base}: OpXOR,
	{0x5, funct7Base}: OpSRL,
	{0x5, funct7Alt}:  OpSRA,
	{0x6, funct7Base}: OpOR,
	{0x7, funct7Base}: OpAND,
}

func (d *Decoder) decodeOp(inst *Instruction) bool {
	op, ok := opOps[opKey{inst.Funct3, inst.Funct7}]
	if !ok {
		return false
	}

	inst.Op = op
	inst.Format = FormatR
	return true
}

func (d *Decoder) decodeFence(inst *Instruction) bool {
	if inst.Funct3 != 0 {
		return false
	}

	inst.Op = OpFENCE
	inst.Format = FormatI
	inst.Imm = immI(inst.Word)
	onlyFields(inst, false, false, false, false)
	return true
}

func (d *Decoder) decodeSystem(inst *Instruction) bool {
	switch inst.Word {
	case 0x00000073:
		inst.Op = OpECALL
	case 0x00100073:
		inst.Op = OpEBREAK
	default:
		return false
	}

	inst.Format = FormatI
	onlyFields(inst, false, false, false, false)
	return true
}
