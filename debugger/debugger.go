// Package debugger provides an interactive command interpreter over a
// simulated machine: stepping, breakpoints, register and memory dumps,
// cache contents and statistics.
package debugger

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/timing/cache"
	"github.com/sarchlab/rvsim/timing/core"
)

// Machine is the simulator surface the debugger drives. *core.Core
// implements it.
type Machine interface {
	ExecuteCycles(n uint64) (core.RunResult, error)
	Run() (core.RunResult, error)
	Reset()

	SetBreakpoint(addr uint32) int
	DeleteBreakpoint(id int) error
	Breakpoints() []core.Breakpoint

	ReadRegister(i int) (uint32, error)
	DumpRegisters(w io.Writer) error
	CoreDump(w io.Writer, start, end uint32, width int) error
	DataMemory() emu.Memory

	PC() uint32
	Halted() bool
	ExitCode() uint32
	PipelineStages() []core.StageInfo
	Caches() []*cache.Cache
	Stats() core.Stats
}

// ErrUsage marks malformed commands. The machine is untouched when it is
// returned.
var ErrUsage = errors.New("usage")

// Prompt is printed before every command.
const Prompt = ">>> "

// Option configures a Debugger.
type Option func(*Debugger)

// WithLogger sets the logger for command tracing.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(d *Debugger) {
		d.logger = logger
	}
}

// Debugger reads commands from an input stream and runs them against a
// Machine.
type Debugger struct {
	machine Machine
	in      *bufio.Scanner
	out     io.Writer
	logger  logrus.FieldLogger
}

// New creates a debugger reading from in and writing to out.
func New(m Machine, in io.Reader, out io.Writer, opts ...Option) *Debugger {
	d := &Debugger{
		machine: m,
		in:      bufio.NewScanner(in),
		out:     out,
		logger:  logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Loop runs commands until q or the end of input. Command errors are
// reported to the output and do not end the loop; only output errors do.
func (d *Debugger) Loop() error {
	d.printf("rvsim debugger, type h for help\n")

	for {
		d.printf("%s", Prompt)

		if !d.in.Scan() {
			d.printf("\n")
			return d.in.Err()
		}

		quit, err := d.Execute(d.in.Text())
		if err != nil {
			d.printf("error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// Execute runs one command line and reports whether it was q.
func (d *Debugger) Execute(line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	name, args := fields[0], fields[1:]
	if name == "q" {
		return true, nil
	}

	cmd, ok := lookup(name)
	if !ok {
		return false, fmt.Errorf("%w: unknown command %q, type h for help", ErrUsage, name)
	}

	d.logger.WithFields(logrus.Fields{
		"command": name,
		"args":    args,
	}).Debug("debugger command")

	return false, cmd.run(d, args)
}

func (d *Debugger) printf(format string, args ...any) {
	fmt.Fprintf(d.out, format, args...)
}
