package pipeline

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
)

// decode reads the source operands from the register file.
func (p *Pipeline) decode(slot *Slot) {
	if slot.IsNOP() {
		return
	}

	inst := slot.Inst
	slot.Rs1Val = 0
	slot.Rs2Val = 0

	if inst.ReadsRs1() {
		slot.Rs1Val = p.regFile.ReadReg(inst.Rs1)
	}
	if inst.ReadsRs2() {
		slot.Rs2Val = p.regFile.ReadReg(inst.Rs2)
	}
}

// execute computes ALU results, effective addresses, link values and branch
// outcomes. It has no architectural side effects.
func (p *Pipeline) execute(slot *Slot) {
	if slot.IsNOP() {
		return
	}

	inst := slot.Inst
	imm := uint32(inst.Imm)

	switch {
	case emu.IsALU(inst.Op):
		b := slot.Rs2Val
		if inst.Format == insts.FormatI {
			b = imm
		}
		slot.Result = emu.ALU(inst.Op, slot.Rs1Val, b)
	case inst.Op == insts.OpLUI:
		slot.Result = imm
	case inst.Op == insts.OpAUIPC:
		slot.Result = slot.PC + imm
	case inst.IsLoad(), inst.IsStore():
		slot.Addr = slot.Rs1Val + imm
	case inst.IsBranch():
		slot.Taken = emu.BranchTaken(inst.Op, slot.Rs1Val, slot.Rs2Val)
	case inst.Op == insts.OpJAL:
		slot.Result = slot.PC + 4
		slot.Taken = true
	case inst.Op == insts.OpJALR:
		slot.Result = slot.PC + 4
		slot.Addr = (slot.Rs1Val + imm) &^ 1
		slot.Taken = true
	}
}

// memoryAccess performs loads and stores and redirects the program counter
// for taken control transfers. Faults carried by the slot surface here.
func (p *Pipeline) memoryAccess(slot *Slot) error {
	if slot.Fault != nil {
		return slot.Fault
	}
	if slot.IsNOP() {
		return nil
	}

	inst := slot.Inst

	switch {
	case inst.IsLoad():
		value, err := emu.Load(p.dmem, inst.Op, slot.Addr)
		p.stats.DataLatency += p.dmem.LastAccessLatency()
		if err != nil {
			return fmt.Errorf("%v at 0x%08x: %w", inst, slot.PC, err)
		}
		slot.Result = value
	case inst.IsStore():
		err := emu.Store(p.dmem, inst.Op, slot.Addr, slot.Rs2Val)
		p.stats.DataLatency += p.dmem.LastAccessLatency()
		if err != nil {
			return fmt.Errorf("%v at 0x%08x: %w", inst, slot.PC, err)
		}
	case slot.Taken:
		if err := p.redirect(slot); err != nil {
			return fmt.Errorf("%v at 0x%08x: %w", inst, slot.PC, err)
		}
	}

	return nil
}

// redirect moves the program counter to the target of a taken branch or
// jump. By now the program counter has run FetchToResolveDistance bytes
// past the instruction.
func (p *Pipeline) redirect(slot *Slot) error {
	p.logger.WithFields(logrus.Fields{
		"cycle": p.cycle,
		"pc":    fmt.Sprintf("0x%08x", slot.PC),
		"inst":  slot.Inst,
	}).Debug("redirect")

	if slot.Inst.Op == insts.OpJALR {
		return p.pc.Jump(slot.Addr)
	}

	return p.pc.Branch(slot.Inst.Imm - FetchToResolveDistance)
}

// writeBack commits rd and retires the instruction. It reports whether an
// instruction retired.
func (p *Pipeline) writeBack(slot *Slot) (bool, error) {
	if slot.Fault != nil {
		return false, slot.Fault
	}
	if slot.IsNOP() {
		return false, nil
	}

	inst := slot.Inst
	if rd, ok := slot.Writes(); ok {
		p.regFile.WriteReg(rd, slot.Result)
	}

	p.stats.Instructions++

	p.logger.WithFields(logrus.Fields{
		"cycle": p.cycle,
		"pc":    fmt.Sprintf("0x%08x", slot.PC),
		"inst":  inst,
	}).Debug("retire")

	if p.tracer != nil {
		p.tracer.InstructionRetired(p.cycle, slot.PC, inst)
	}

	if inst.IsHalt() {
		p.halted = true
		p.exitCode = p.regFile.ReadReg(10)
	}

	return true, nil
}
