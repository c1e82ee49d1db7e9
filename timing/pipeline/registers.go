// Package pipeline provides the 5-stage pipeline implementation for timing simulation.
package pipeline

import (
	"fmt"

	"github.com/sarchlab/rvsim/insts"
)

// Stage identifies a pipeline slot.
type Stage int

// Pipeline stages, youngest first.
const (
	FetchStage Stage = iota
	DecodeStage
	ExecuteStage
	MemoryAccessStage
	WriteBackStage

	// NumStages is the number of pipeline slots.
	NumStages = 5
)

var stageNames = [NumStages]string{"IF", "ID", "EX", "MEM", "WB"}

func (s Stage) String() string {
	if s >= 0 && int(s) < NumStages {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// FetchToResolveDistance is the number of bytes the program counter has
// advanced past a control transfer by the time the transfer resolves in
// MemoryAccess. PC-relative targets are corrected by this amount.
const FetchToResolveDistance = int32(MemoryAccessStage-FetchStage+1) * 4

// Slot holds one in-flight instruction and the values it carries between
// stages.
type Slot struct {
	// Inst is the decoded instruction, insts.NOP for a bubble.
	Inst *insts.Instruction

	// PC is the fetch address of the instruction.
	PC uint32

	// Operand values read in Decode, possibly replaced by forwarding.
	Rs1Val uint32
	Rs2Val uint32

	// Result is the value destined for rd: ALU result, link address,
	// upper immediate or loaded value.
	Result uint32

	// Addr is the effective address of a load or store, or the target of
	// a JALR.
	Addr uint32

	// Taken is set in Execute for taken branches and for jumps.
	Taken bool

	// Fault is a fetch or decode error. It is raised when the slot
	// reaches MemoryAccess, the first stage that is never flushed.
	Fault error
}

// Clear resets the slot to a bubble.
func (s *Slot) Clear() {
	*s = Slot{Inst: insts.NOP}
}

// IsNOP reports whether the slot holds a bubble.
func (s Slot) IsNOP() bool {
	return s.Inst.IsNOP()
}

// Writes reports whether the slot produces rd, and which register.
func (s Slot) Writes() (uint8, bool) {
	if s.IsNOP() || !s.Inst.WritesRd() {
		return 0, false
	}
	return s.Inst.Rd, true
}

func (s Slot) String() string {
	if s.Fault != nil {
		return fmt.Sprintf("0x%08x: <fault>", s.PC)
	}
	if s.IsNOP() {
		return "nop"
	}
	return fmt.Sprintf("0x%08x: %v", s.PC, s.Inst)
}
