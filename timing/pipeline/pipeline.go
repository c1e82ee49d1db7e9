package pipeline

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
)

// Statistics holds pipeline performance statistics.
type Statistics struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions completed (retired).
	Instructions uint64
	// DelayCycles is the number of cycles fetch was held by a delay.
	DelayCycles uint64
	// Flushes is the number of flushes requested.
	Flushes uint64
	// FetchLatency is the sum of instruction memory access latencies.
	FetchLatency uint64
	// DataLatency is the sum of data memory access latencies.
	DataLatency uint64
}

// CPI returns the cycles per instruction.
func (s Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the logger for per-cycle debug output.
func WithLogger(logger logrus.FieldLogger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithTracer reports retirements and hazards to t.
func WithTracer(t Tracer) PipelineOption {
	return func(p *Pipeline) {
		p.tracer = t
	}
}

// WithProgramEnd sets the first address past the program. Fetches at or
// beyond it insert bubbles. Defaults to the size of instruction memory.
func WithProgramEnd(end uint32) PipelineOption {
	return func(p *Pipeline) {
		p.programEnd = end
	}
}

// Pipeline implements a 5-stage in-order pipeline as a queue of slots:
// Fetch (IF) -> Decode (ID) -> Execute (EX) -> MemoryAccess (MEM) -> WriteBack (WB).
//
// Every cycle the queue advances one slot and each stage transform runs on
// the instruction now occupying it. Hazards are resolved from outside by
// the DataHazardUnit and ControlHazardUnit through InsertDelay, Flush and
// operand forwarding.
type Pipeline struct {
	slots [NumStages]Slot

	regFile *emu.RegFile
	pc      emu.ProgramCounter
	imem    emu.Memory
	dmem    emu.Memory
	decoder *insts.Decoder

	programEnd uint32

	delayPending bool
	delayStage   Stage

	halted   bool
	exitCode uint32

	cycle  uint64
	stats  Statistics
	logger logrus.FieldLogger
	tracer Tracer
}

// NewPipeline creates a new 5-stage pipeline. imem and dmem may be the same
// memory for a unified hierarchy.
func NewPipeline(
	regFile *emu.RegFile,
	imem, dmem emu.Memory,
	opts ...PipelineOption,
) *Pipeline {
	p := &Pipeline{
		regFile:    regFile,
		imem:       imem,
		dmem:       dmem,
		decoder:    insts.NewDecoder(),
		programEnd: imem.Size(),
		logger:     logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.clearSlots()

	return p
}

func (p *Pipeline) clearSlots() {
	for i := range p.slots {
		p.slots[i].Clear()
	}
}

// PC returns the current program counter.
func (p *Pipeline) PC() uint32 {
	return p.pc.Value()
}

// SetPC sets the program counter.
func (p *Pipeline) SetPC(pc uint32) {
	p.pc.Set(pc)
}

// SetProgramEnd sets the first address past the program.
func (p *Pipeline) SetProgramEnd(end uint32) {
	p.programEnd = end
}

// ProgramEnd returns the first address past the program.
func (p *Pipeline) ProgramEnd() uint32 {
	return p.programEnd
}

// RegFile returns the architectural register file.
func (p *Pipeline) RegFile() *emu.RegFile {
	return p.regFile
}

// Slot returns a copy of the slot in the given stage.
func (p *Pipeline) Slot(stage Stage) Slot {
	return p.slots[stage]
}

// Instruction returns the instruction in the given stage.
func (p *Pipeline) Instruction(stage Stage) *insts.Instruction {
	return p.slots[stage].Inst
}

// Slots returns a copy of every slot, Fetch first.
func (p *Pipeline) Slots() [NumStages]Slot {
	return p.slots
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Statistics {
	return p.stats
}

// Cycle returns the cycle of the last ExecuteCycle call.
func (p *Pipeline) Cycle() uint64 {
	return p.cycle
}

// Halted returns true once an ECALL or EBREAK has retired.
func (p *Pipeline) Halted() bool {
	return p.halted
}

// ExitCode returns a0 as it was when the pipeline halted.
func (p *Pipeline) ExitCode() uint32 {
	return p.exitCode
}

// Drained reports whether the program has been fetched to its end and
// every slot holds a bubble.
func (p *Pipeline) Drained() bool {
	if p.pc.Value() < p.programEnd {
		return false
	}

	for i := range p.slots {
		if !p.slots[i].IsNOP() || p.slots[i].Fault != nil {
			return false
		}
	}

	return true
}

// DelayPending reports whether a delay will be applied next cycle.
func (p *Pipeline) DelayPending() bool {
	return p.delayPending
}

// InsertDelay makes the next cycle insert a bubble at stage instead of
// fetching. Slots older than stage advance, younger slots hold.
func (p *Pipeline) InsertDelay(stage Stage) {
	p.delayPending = true
	p.delayStage = stage
}

// Flush replaces the slots from Fetch through throughStage with bubbles. A
// pending delay inside the flushed range is cancelled.
func (p *Pipeline) Flush(throughStage Stage) {
	for s := FetchStage; s <= throughStage; s++ {
		p.slots[s].Clear()
	}

	if p.delayPending && p.delayStage <= throughStage {
		p.delayPending = false
	}

	p.stats.Flushes++
}

// Reset clears every slot, the program counter, the halt state and the
// statistics. The register file and memories are left to their owners.
func (p *Pipeline) Reset() {
	p.clearSlots()
	p.pc.Reset()
	p.delayPending = false
	p.halted = false
	p.exitCode = 0
	p.cycle = 0
	p.stats = Statistics{}
}

// ExecuteCycle advances the pipeline by one cycle: either apply a pending
// delay or fetch a new instruction, then run WriteBack, MemoryAccess,
// Execute and Decode in that order. An error is fatal to the simulation.
func (p *Pipeline) ExecuteCycle(now uint64) error {
	if p.halted {
		return nil
	}

	p.cycle = now
	p.stats.Cycles++

	if p.delayPending {
		p.applyDelay()
	} else {
		p.advance()
	}

	if _, err := p.writeBack(&p.slots[WriteBackStage]); err != nil {
		return err
	}
	if p.halted {
		return nil
	}

	if err := p.memoryAccess(&p.slots[MemoryAccessStage]); err != nil {
		return err
	}

	p.execute(&p.slots[ExecuteStage])
	p.decode(&p.slots[DecodeStage])

	return nil
}

// advance shifts every slot toward WriteBack and fetches into Fetch.
func (p *Pipeline) advance() {
	copy(p.slots[1:], p.slots[:NumStages-1])
	p.slots[FetchStage] = p.fetch()
}

// applyDelay shifts the slots from the delayed stage toward WriteBack and
// puts a bubble at the delayed stage. Younger slots hold and nothing is
// fetched.
func (p *Pipeline) applyDelay() {
	stage := p.delayStage
	copy(p.slots[stage+1:], p.slots[stage:NumStages-1])
	p.slots[stage].Clear()

	p.delayPending = false
	p.stats.DelayCycles++

	p.logger.WithFields(logrus.Fields{
		"cycle": p.cycle,
		"stage": stage,
	}).Debug("delay")
}

// fetch reads and decodes the word at PC and advances PC. Past the program
// end it returns a bubble but still advances, so that control transfers in
// flight resolve against the usual distance.
func (p *Pipeline) fetch() Slot {
	addr := p.pc.Value()
	p.pc.Advance()

	slot := Slot{Inst: insts.NOP, PC: addr}
	if addr >= p.programEnd {
		return slot
	}

	word, err := p.imem.Read32(addr)
	p.stats.FetchLatency += p.imem.LastAccessLatency()
	if err != nil {
		slot.Fault = fmt.Errorf("fetch at 0x%08x: %w", addr, err)
		return slot
	}

	inst, err := p.decoder.Decode(word)
	if err != nil {
		slot.Fault = fmt.Errorf("decode at 0x%08x: %w", addr, err)
		return slot
	}

	slot.Inst = inst
	return slot
}

func (p *Pipeline) traceHazard(kind HazardKind, pc uint32) {
	p.logger.WithFields(logrus.Fields{
		"cycle":  p.cycle,
		"hazard": kind,
		"pc":     fmt.Sprintf("0x%08x", pc),
	}).Debug("hazard")

	if p.tracer != nil {
		p.tracer.HazardDetected(p.cycle, kind, pc)
	}
}
