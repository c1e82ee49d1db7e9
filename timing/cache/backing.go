package cache

import (
	"fmt"

	"github.com/sarchlab/rvsim/emu"
)

// nextLevel wraps the memory below a cache and moves whole lines to and
// from it.
type nextLevel struct {
	mem emu.Memory
}

func newNextLevel(mem emu.Memory) *nextLevel {
	return &nextLevel{mem: mem}
}

// fetch reads the line at addr into buf.
func (n *nextLevel) fetch(addr uint32, buf []byte) error {
	if err := n.mem.ReadBlock(addr, buf); err != nil {
		return fmt.Errorf("fill line 0x%08x: %w", addr, err)
	}
	return nil
}

// writeBack stores an evicted dirty line.
func (n *nextLevel) writeBack(addr uint32, data []byte) error {
	if err := n.mem.WriteBlock(addr, data); err != nil {
		return fmt.Errorf("write back line 0x%08x: %w", addr, err)
	}
	return nil
}
