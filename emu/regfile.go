// Package emu provides functional RV32I emulation: the architectural
// register file, program counter, flat memory and the execution units that
// both the functional emulator and the timing pipeline share.
package emu

import (
	"errors"
	"fmt"
)

// NumRegisters is the number of integer registers.
const NumRegisters = 32

// ErrInvalidRegister is returned when a register index is outside x0..x31.
var ErrInvalidRegister = errors.New("invalid register")

// ErrInvalidPC is returned when a branch or jump would move the program
// counter to a negative address.
var ErrInvalidPC = errors.New("invalid program counter")

// RegFile represents the RV32I integer register file.
// Register x0 is hardwired to zero.
type RegFile struct {
	x [NumRegisters]uint32
}

// NewRegFile creates a register file with every register zeroed.
func NewRegFile() *RegFile {
	return &RegFile{}
}

// ReadReg reads a register value. x0 and out-of-range indices return 0.
func (r *RegFile) ReadReg(reg uint8) uint32 {
	if reg == 0 || reg >= NumRegisters {
		return 0
	}
	return r.x[reg]
}

// WriteReg writes a value to a register. Writes to x0 are discarded.
func (r *RegFile) WriteReg(reg uint8, value uint32) {
	if reg == 0 || reg >= NumRegisters {
		return
	}
	r.x[reg] = value
}

// Dump returns a snapshot of all registers.
func (r *RegFile) Dump() [NumRegisters]uint32 {
	return r.x
}

// Reset zeroes every register.
func (r *RegFile) Reset() {
	r.x = [NumRegisters]uint32{}
}

// CheckRegister validates a register index.
func CheckRegister(reg int) error {
	if reg < 0 || reg >= NumRegisters {
		return fmt.Errorf("%w: x%d", ErrInvalidRegister, reg)
	}
	return nil
}

// ProgramCounter holds the address of the next instruction to fetch.
type ProgramCounter struct {
	value uint32
}

// Value returns the current address.
func (p *ProgramCounter) Value() uint32 {
	return p.value
}

// Set moves the program counter to addr unconditionally.
func (p *ProgramCounter) Set(addr uint32) {
	p.value = addr
}

// Advance moves to the next sequential instruction.
func (p *ProgramCounter) Advance() {
	p.value += 4
}

// Branch adds a signed byte offset to the program counter.
func (p *ProgramCounter) Branch(offset int32) error {
	target := int64(p.value) + int64(offset)
	if target < 0 || target > int64(^uint32(0)>>1) {
		return fmt.Errorf("%w: 0x%08x%+d", ErrInvalidPC, p.value, offset)
	}

	p.value = uint32(target)
	return nil
}

// Jump moves the program counter to an absolute target.
func (p *ProgramCounter) Jump(target uint32) error {
	if int32(target) < 0 {
		return fmt.Errorf("%w: 0x%08x", ErrInvalidPC, target)
	}

	p.value = target
	return nil
}

// Reset moves the program counter back to address 0.
func (p *ProgramCounter) Reset() {
	p.value = 0
}
