package pipeline

import "github.com/sarchlab/rvsim/insts"

// HazardKind classifies a hazard resolution.
type HazardKind int

// Hazard resolutions.
const (
	// HazardLoadUse is a one-cycle delay behind a load.
	HazardLoadUse HazardKind = iota
	// HazardForwardMEM forwards a MemoryAccess-stage result to Decode.
	HazardForwardMEM
	// HazardForwardEX forwards an Execute-stage result to Decode.
	HazardForwardEX
	// HazardControl flushes the slots behind a taken control transfer.
	HazardControl
)

func (k HazardKind) String() string {
	switch k {
	case HazardLoadUse:
		return "load-use"
	case HazardForwardMEM:
		return "forward-mem"
	case HazardForwardEX:
		return "forward-ex"
	case HazardControl:
		return "control"
	default:
		return "unknown"
	}
}

// Tracer receives pipeline events.
type Tracer interface {
	// InstructionRetired is called when an instruction leaves WriteBack.
	InstructionRetired(cycle uint64, pc uint32, inst *insts.Instruction)

	// HazardDetected is called for every stall, forward and flush. pc is
	// the address of the instruction that caused it.
	HazardDetected(cycle uint64, kind HazardKind, pc uint32)
}
