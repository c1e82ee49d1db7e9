package debugger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/timing/core"
)

type command struct {
	name  string
	usage string
	help  string
	run   func(d *Debugger, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{"h", "h", "Show this help", (*Debugger).help},
		{"dr", "dr [reg|from-to ...]", "Dump registers, all of them by default", (*Debugger).dumpRegisters},
		{"dm", "dm [start end [width]]", "Dump data memory between hex addresses, all of it by default", (*Debugger).dumpMemory},
		{"dc", "dc", "Dump the valid lines of every cache", (*Debugger).dumpCaches},
		{"p", "p", "Show the pipeline stages", (*Debugger).showPipeline},
		{"s", "s [n]", "Execute n cycles, 1 by default", (*Debugger).step},
		{"c", "c", "Continue until a breakpoint, a halt or the end of the program", (*Debugger).cont},
		{"r", "r", "Reset the simulation and pause at the beginning", (*Debugger).reset},
		{"br", "br addr", "Set a breakpoint at a hex address", (*Debugger).setBreakpoint},
		{"del", "del n", "Delete breakpoint n", (*Debugger).deleteBreakpoint},
		{"sbr", "sbr", "List all breakpoints", (*Debugger).showBreakpoints},
		{"stat", "stat", "Show statistics", (*Debugger).stats},
		{"q", "q", "Quit", nil},
	}
}

func lookup(name string) (command, bool) {
	for _, cmd := range commands {
		if cmd.name == name && cmd.run != nil {
			return cmd, true
		}
	}
	return command{}, false
}

func usage(cmd string) error {
	for _, c := range commands {
		if c.name == cmd {
			return fmt.Errorf("%w: %s", ErrUsage, c.usage)
		}
	}
	return ErrUsage
}

func parseAddr(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: bad address %q", ErrUsage, s)
	}
	return uint32(v), nil
}

func parseRegister(s string) (int, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "x")
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: bad register %q", ErrUsage, s)
	}
	if err := emu.CheckRegister(v); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return v, nil
}

func (d *Debugger) help(_ []string) error {
	for _, c := range commands {
		d.printf("  %-24s %s\n", c.usage, c.help)
	}
	return nil
}

func (d *Debugger) dumpRegisters(args []string) error {
	if len(args) == 0 {
		return d.machine.DumpRegisters(d.out)
	}

	var regs []int
	for _, arg := range args {
		from, to, isRange := strings.Cut(arg, "-")

		first, err := parseRegister(from)
		if err != nil {
			return err
		}
		last := first
		if isRange {
			if last, err = parseRegister(to); err != nil {
				return err
			}
			if last < first {
				return fmt.Errorf("%w: empty register range %q", ErrUsage, arg)
			}
		}

		for r := first; r <= last; r++ {
			regs = append(regs, r)
		}
	}

	for _, r := range regs {
		v, err := d.machine.ReadRegister(r)
		if err != nil {
			return err
		}
		d.printf("x%-2d = 0x%08x\n", r, v)
	}

	return nil
}

func (d *Debugger) dumpMemory(args []string) error {
	start, end, width := uint32(0), d.machine.DataMemory().Size(), 1

	switch len(args) {
	case 0:
	case 2, 3:
		var err error
		if start, err = parseAddr(args[0]); err != nil {
			return err
		}
		if end, err = parseAddr(args[1]); err != nil {
			return err
		}
		if len(args) == 3 {
			if width, err = strconv.Atoi(args[2]); err != nil {
				return usage("dm")
			}
		}
	default:
		return usage("dm")
	}

	if end < start || (width != 1 && width != 2 && width != 4) {
		return usage("dm")
	}

	return d.machine.CoreDump(d.out, start, end, width)
}

func (d *Debugger) dumpCaches(_ []string) error {
	caches := d.machine.Caches()
	if len(caches) == 0 {
		d.printf("No caches\n")
		return nil
	}

	for _, c := range caches {
		cfg := c.Config()
		d.printf("%s: %s, %d lines of %d words, %d-way\n",
			c.Name(), cfg.Policy, cfg.Lines, cfg.LineWords, cfg.Associativity)

		for _, l := range c.Lines() {
			if !l.Valid {
				continue
			}

			dirty := ""
			if l.Dirty {
				dirty = " dirty"
			}
			d.printf("  set %3d way %d tag 0x%x addr 0x%08x%s: % x\n",
				l.Set, l.Way, l.Tag, l.Addr, dirty, l.Data)
		}
	}

	return nil
}

func (d *Debugger) showPipeline(_ []string) error {
	d.printf("PC = 0x%08x\n", d.machine.PC())
	for _, s := range d.machine.PipelineStages() {
		d.printf("  %v\n", s)
	}
	return nil
}

func (d *Debugger) step(args []string) error {
	n := uint64(1)

	switch len(args) {
	case 0:
	case 1:
		v, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil || v == 0 {
			return usage("s")
		}
		n = v
	default:
		return usage("s")
	}

	result, err := d.machine.ExecuteCycles(n)
	if err != nil {
		return err
	}

	d.report(result)
	return nil
}

func (d *Debugger) cont(_ []string) error {
	result, err := d.machine.Run()
	if err != nil {
		return err
	}

	d.report(result)
	return nil
}

func (d *Debugger) report(result core.RunResult) {
	switch result.Reason {
	case core.StopBreakpoint:
		d.printf("Hit breakpoint %d at 0x%08x after %d cycles\n",
			result.Breakpoint.ID, result.Breakpoint.Addr, result.Cycles)
	case core.StopHalted:
		d.printf("Halted with exit code %d after %d cycles\n",
			d.machine.ExitCode(), result.Cycles)
	case core.StopDrained:
		d.printf("Program finished after %d cycles\n", result.Cycles)
	default:
		d.printf("Executed %d cycles, PC = 0x%08x\n", result.Cycles, d.machine.PC())
	}
}

func (d *Debugger) reset(_ []string) error {
	d.machine.Reset()
	d.printf("Reset, PC = 0x%08x\n", d.machine.PC())
	return nil
}

func (d *Debugger) setBreakpoint(args []string) error {
	if len(args) != 1 {
		return usage("br")
	}

	addr, err := parseAddr(args[0])
	if err != nil {
		return err
	}

	id := d.machine.SetBreakpoint(addr)
	d.printf("Breakpoint %d : 0x%08x\n", id, addr)
	return nil
}

func (d *Debugger) deleteBreakpoint(args []string) error {
	if len(args) != 1 {
		return usage("del")
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return usage("del")
	}

	return d.machine.DeleteBreakpoint(id)
}

func (d *Debugger) showBreakpoints(_ []string) error {
	bps := d.machine.Breakpoints()
	if len(bps) == 0 {
		d.printf("No breakpoints\n")
		return nil
	}

	for _, bp := range bps {
		d.printf("Breakpoint %d : 0x%08x\n", bp.ID, bp.Addr)
	}
	return nil
}

func (d *Debugger) stats(_ []string) error {
	return d.machine.Stats().Report(d.out)
}
