package emu

import (
	"fmt"
	"io"
	"strings"
)

// DumpRegisters writes the register file four registers per line.
func DumpRegisters(w io.Writer, regs [NumRegisters]uint32) error {
	var sb strings.Builder
	for i, v := range regs {
		fmt.Fprintf(&sb, "x%-2d = 0x%08x", i, v)
		if i%4 == 3 {
			sb.WriteString("\n")
		} else {
			sb.WriteString("  ")
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// CoreDump writes [start, end) as a hex dump of 16 bytes per line, grouped
// into little-endian values of width bytes (1, 2 or 4). Bytes are read
// through Peek and do not disturb the hierarchy.
func CoreDump(w io.Writer, mem Memory, start, end uint32, width int) error {
	if end < start {
		return fmt.Errorf("dump range 0x%x..0x%x is reversed", start, end)
	}
	if width != 1 && width != 2 && width != 4 {
		return fmt.Errorf("unsupported dump width %d", width)
	}

	step := uint32(width)
	start &^= step - 1

	for line := start &^ 0xF; line < end; line += 16 {
		var sb strings.Builder
		fmt.Fprintf(&sb, "0x%08x:", line)

		for addr := line; addr < line+16; addr += step {
			if addr < start || addr >= end {
				sb.WriteString(strings.Repeat(" ", 2*width+1))
				continue
			}

			value, err := ReadWidth(mem, addr, width)
			if err != nil {
				return err
			}
			fmt.Fprintf(&sb, " %0*x", 2*width, value)
		}

		sb.WriteString("\n")
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}

		if line+16 < line {
			break
		}
	}

	return nil
}
