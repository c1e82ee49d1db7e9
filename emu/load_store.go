package emu

import (
	"fmt"

	"github.com/sarchlab/rvsim/insts"
)

// Load performs the memory read of a load instruction and returns the value
// to write back. LB and LH sign-extend, LBU and LHU zero-extend.
func Load(mem Memory, op insts.Op, addr uint32) (uint32, error) {
	switch op {
	case insts.OpLB:
		v, err := mem.Read8(addr)
		return uint32(int32(int8(v))), err
	case insts.OpLH:
		v, err := mem.Read16(addr)
		return uint32(int32(int16(v))), err
	case insts.OpLW:
		return mem.Read32(addr)
	case insts.OpLBU:
		v, err := mem.Read8(addr)
		return uint32(v), err
	case insts.OpLHU:
		v, err := mem.Read16(addr)
		return uint32(v), err
	}

	return 0, fmt.Errorf("%v is not a load", op)
}

// Store performs the memory write of a store instruction, truncating value
// to the access width.
func Store(mem Memory, op insts.Op, addr, value uint32) error {
	switch op {
	case insts.OpSB:
		return mem.Write8(addr, uint8(value))
	case insts.OpSH:
		return mem.Write16(addr, uint16(value))
	case insts.OpSW:
		return mem.Write32(addr, value)
	}

	return fmt.Errorf("%v is not a store", op)
}

// ReadWidth reads a 1, 2 or 4 byte little-endian value through Peek.
func ReadWidth(mem Memory, addr uint32, width int) (uint32, error) {
	switch width {
	case 1, 2, 4:
	default:
		return 0, fmt.Errorf("unsupported access width %d", width)
	}

	var value uint32
	for i := 0; i < width; i++ {
		b, err := mem.Peek(addr + uint32(i))
		if err != nil {
			return 0, err
		}
		value |= uint32(b) << (8 * i)
	}

	return value, nil
}
