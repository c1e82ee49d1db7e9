package pipeline

// HazardStats counts the hazards a unit resolved and the cycles they cost.
type HazardStats struct {
	// Hazards is the number of stalls, forwards or flushes applied.
	Hazards uint64
	// DelayCycles is the number of cycles lost to them.
	DelayCycles uint64
}

// ControlHazardPenalty is the number of cycles lost to a taken control
// transfer: one per flushed slot behind MemoryAccess.
const ControlHazardPenalty = uint64(MemoryAccessStage - FetchStage)

// DataHazardUnit resolves read-after-write hazards between the instruction
// in Decode and older instructions still in flight. It runs after the
// pipeline has advanced each cycle.
type DataHazardUnit struct {
	pipeline *Pipeline
	stats    HazardStats
}

// NewDataHazardUnit creates a data hazard unit for p.
func NewDataHazardUnit(p *Pipeline) *DataHazardUnit {
	return &DataHazardUnit{pipeline: p}
}

// Stats returns the hazard counters.
func (u *DataHazardUnit) Stats() HazardStats {
	return u.stats
}

// Reset clears the hazard counters.
func (u *DataHazardUnit) Reset() {
	u.stats = HazardStats{}
}

// HandleHazard checks Decode against Execute and MemoryAccess:
//  1. a load in Execute feeding Decode delays Decode by one cycle;
//  2. a MemoryAccess-stage result is forwarded into Decode;
//  3. an Execute-stage result is forwarded into Decode, overriding 2.
//
// A load that triggers the delay is never forwarded from Execute; its value
// is forwarded from MemoryAccess on the next cycle instead.
func (u *DataHazardUnit) HandleHazard() {
	p := u.pipeline
	consumer := &p.slots[DecodeStage]
	if consumer.IsNOP() {
		return
	}

	ex := &p.slots[ExecuteStage]
	mem := &p.slots[MemoryAccessStage]

	loadUse := u.handleLoadUse(consumer, ex)

	exRd, exOK := forwardable(ex)
	exOK = exOK && !loadUse

	// A MemoryAccess result for the same register is shadowed by Execute.
	if memRd, ok := forwardable(mem); ok && !(exOK && exRd == memRd) {
		u.forward(consumer, mem, HazardForwardMEM)
	}
	if exOK {
		u.forward(consumer, ex, HazardForwardEX)
	}
}

func forwardable(producer *Slot) (uint8, bool) {
	rd, ok := producer.Writes()
	return rd, ok && rd != 0
}

func (u *DataHazardUnit) handleLoadUse(consumer, producer *Slot) bool {
	if producer.IsNOP() || !producer.Inst.IsLoad() {
		return false
	}

	rd, ok := producer.Writes()
	if !ok || rd == 0 || !reads(consumer, rd) {
		return false
	}

	u.pipeline.InsertDelay(ExecuteStage)
	u.stats.Hazards++
	u.stats.DelayCycles++
	u.pipeline.traceHazard(HazardLoadUse, producer.PC)

	return true
}

// forward copies the producer's result into every consumer operand that
// names the producer's destination. x0 is never forwarded.
func (u *DataHazardUnit) forward(consumer, producer *Slot, kind HazardKind) {
	rd, ok := forwardable(producer)
	if !ok {
		return
	}

	forwarded := false
	inst := consumer.Inst

	if inst.ReadsRs1() && inst.Rs1 == rd {
		consumer.Rs1Val = producer.Result
		forwarded = true
	}
	if inst.ReadsRs2() && inst.Rs2 == rd {
		consumer.Rs2Val = producer.Result
		forwarded = true
	}

	if forwarded {
		u.stats.Hazards++
		u.pipeline.traceHazard(kind, producer.PC)
	}
}

func reads(consumer *Slot, reg uint8) bool {
	inst := consumer.Inst
	return (inst.ReadsRs1() && inst.Rs1 == reg) ||
		(inst.ReadsRs2() && inst.Rs2 == reg)
}

// ControlHazardUnit squashes the instructions fetched behind a taken branch
// or jump once it resolves in MemoryAccess.
type ControlHazardUnit struct {
	pipeline *Pipeline
	stats    HazardStats
}

// NewControlHazardUnit creates a control hazard unit for p.
func NewControlHazardUnit(p *Pipeline) *ControlHazardUnit {
	return &ControlHazardUnit{pipeline: p}
}

// Stats returns the hazard counters.
func (u *ControlHazardUnit) Stats() HazardStats {
	return u.stats
}

// Reset clears the hazard counters.
func (u *ControlHazardUnit) Reset() {
	u.stats = HazardStats{}
}

// HandleHazard flushes Fetch through Execute if the instruction in
// MemoryAccess is a taken branch, JAL or JALR.
func (u *ControlHazardUnit) HandleHazard() {
	p := u.pipeline
	slot := &p.slots[MemoryAccessStage]
	if slot.IsNOP() || !slot.Taken {
		return
	}

	p.Flush(ExecuteStage)
	u.stats.Hazards++
	u.stats.DelayCycles += ControlHazardPenalty
	p.traceHazard(HazardControl, slot.PC)
}
