package emu

import (
	"fmt"

	"github.com/sarchlab/rvsim/insts"
)

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Exited is true if the program terminated, either by ECALL/EBREAK or
	// by running past the program end.
	Exited bool

	// ExitCode is the value of a0 (x10) when the program halted.
	ExitCode uint32

	// Err is set if an error occurred during execution.
	Err error
}

// Emulator executes RV32I instructions functionally, one instruction at a
// time with no pipeline timing. It is the reference model the timing
// pipeline is checked against.
type Emulator struct {
	regFile *RegFile
	pc      ProgramCounter
	imem    Memory
	dmem    Memory
	decoder *insts.Decoder

	entry            uint32
	programEnd       uint32
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithProgramEnd sets the address at which the program is considered
// finished. Defaults to the end of instruction memory.
func WithProgramEnd(end uint32) EmulatorOption {
	return func(e *Emulator) {
		e.programEnd = end
	}
}

// WithEntryPoint sets the address of the first instruction.
func WithEntryPoint(pc uint32) EmulatorOption {
	return func(e *Emulator) {
		e.entry = pc
	}
}

// WithMaxInstructions caps the number of instructions Run executes.
func WithMaxInstructions(n uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = n
	}
}

// NewEmulator creates an emulator over separate instruction and data
// memories. Pass the same memory twice for a unified address space.
func NewEmulator(regFile *RegFile, imem, dmem Memory, opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		regFile:    regFile,
		imem:       imem,
		dmem:       dmem,
		decoder:    insts.NewDecoder(),
		programEnd: imem.Size(),
	}

	for _, opt := range opts {
		opt(e)
	}
	e.pc.Set(e.entry)

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// PC returns the address of the next instruction.
func (e *Emulator) PC() uint32 {
	return e.pc.Value()
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// Step fetches, decodes and executes one instruction.
func (e *Emulator) Step() StepResult {
	addr := e.pc.Value()
	if addr >= e.programEnd {
		return StepResult{Exited: true}
	}

	word, err := e.imem.Read32(addr)
	if err != nil {
		return StepResult{Err: fmt.Errorf("fetch at 0x%08x: %w", addr, err)}
	}

	inst, err := e.decoder.Decode(word)
	if err != nil {
		return StepResult{Err: fmt.Errorf("decode at 0x%08x: %w", addr, err)}
	}

	e.instructionCount++

	if inst.IsHalt() {
		e.pc.Advance()
		return StepResult{Exited: true, ExitCode: e.regFile.ReadReg(10)}
	}

	if err := e.execute(inst, addr); err != nil {
		return StepResult{Err: fmt.Errorf("execute %v at 0x%08x: %w", inst, addr, err)}
	}

	return StepResult{}
}

func (e *Emulator) execute(inst *insts.Instruction, addr uint32) error {
	rs1 := e.regFile.ReadReg(inst.Rs1)
	rs2 := e.regFile.ReadReg(inst.Rs2)
	imm := uint32(inst.Imm)

	switch {
	case IsALU(inst.Op):
		b := rs2
		if inst.Format == insts.FormatI {
			b = imm
		}
		e.regFile.WriteReg(inst.Rd, ALU(inst.Op, rs1, b))
	case inst.Op == insts.OpLUI:
		e.regFile.WriteReg(inst.Rd, imm)
	case inst.Op == insts.OpAUIPC:
		e.regFile.WriteReg(inst.Rd, addr+imm)
	case inst.IsLoad():
		value, err := Load(e.dmem, inst.Op, rs1+imm)
		if err != nil {
			return err
		}
		e.regFile.WriteReg(inst.Rd, value)
	case inst.IsStore():
		if err := Store(e.dmem, inst.Op, rs1+imm, rs2); err != nil {
			return err
		}
	case inst.IsBranch():
		if BranchTaken(inst.Op, rs1, rs2) {
			return e.pc.Branch(inst.Imm)
		}
	case inst.Op == insts.OpJAL:
		e.regFile.WriteReg(inst.Rd, addr+4)
		return e.pc.Branch(inst.Imm)
	case inst.Op == insts.OpJALR:
		e.regFile.WriteReg(inst.Rd, addr+4)
		return e.pc.Jump((rs1 + imm) &^ 1)
	}

	e.pc.Advance()
	return nil
}

// Run executes instructions until the program exits, an error occurs, or
// the instruction limit is reached.
func (e *Emulator) Run() StepResult {
	for e.maxInstructions == 0 || e.instructionCount < e.maxInstructions {
		result := e.Step()
		if result.Exited || result.Err != nil {
			return result
		}
	}

	return StepResult{}
}

// Reset clears the register file, program counter and instruction count.
func (e *Emulator) Reset() {
	e.regFile.Reset()
	e.pc.Set(e.entry)
	e.instructionCount = 0
}
