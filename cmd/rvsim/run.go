package main

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/loader"
	"github.com/sarchlab/rvsim/timing/config"
	"github.com/sarchlab/rvsim/timing/core"
	"github.com/sarchlab/rvsim/tracing"
)

type runOptions struct {
	*rootOptions

	cycles     uint64
	functional bool
	trace      bool
	traceDB    string
	stats      bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "run <program>",
		Short: "Run a program until it halts or drains.",
		Long: `Run loads a flat binary or ELF32 RISC-V program and simulates ` +
			`it cycle by cycle. The process exits with the program's a0 ` +
			`when it halts on ECALL or EBREAK.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd.OutOrStdout(), args[0])
		},
	}

	cmd.Flags().Uint64Var(&opts.cycles, "cycles", 0,
		"Stop after this many cycles (0 runs until the program ends)")
	cmd.Flags().BoolVar(&opts.functional, "functional", false,
		"Run on the functional emulator instead of the pipeline")
	cmd.Flags().BoolVar(&opts.trace, "trace", false,
		"Record retired instructions and hazards in a SQLite database")
	cmd.Flags().StringVar(&opts.traceDB, "trace-db", "",
		"Trace database path (implies --trace, default rvsim_trace_<id>.sqlite3)")
	cmd.Flags().BoolVar(&opts.stats, "stats", true,
		"Print statistics when the run ends")

	return cmd
}

func (o *runOptions) run(out io.Writer, path string) error {
	prog, err := loader.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load program: %w", err)
	}

	o.logger.WithFields(logrus.Fields{
		"program":  path,
		"entry":    fmt.Sprintf("0x%08x", prog.Entry),
		"segments": len(prog.Segments),
	}).Info("loaded program")

	if o.functional {
		return o.runFunctional(out, prog)
	}

	return o.runTiming(out, prog)
}

func (o *runOptions) runTiming(out io.Writer, prog *loader.Program) error {
	builder := core.MakeBuilder().
		WithConfig(o.machine).
		WithLogger(o.logger)

	var tracer *tracing.SQLiteTraceWriter
	if o.trace || o.traceDB != "" {
		var err error
		tracer, err = tracing.NewSQLiteTraceWriter(o.traceDB, tracing.WithLogger(o.logger))
		if err != nil {
			return err
		}
		defer func() {
			if cerr := tracer.Close(); cerr != nil {
				o.logger.WithError(cerr).Error("failed to close trace database")
			}
		}()

		builder = builder.WithTracer(tracer)
		fmt.Fprintf(out, "Tracing to %s\n", tracer.Path())
	}

	c, err := builder.Build()
	if err != nil {
		return err
	}

	if err := c.LoadProgram(prog); err != nil {
		return err
	}

	var result core.RunResult
	if o.cycles == 0 {
		result, err = c.Run()
	} else {
		result, err = c.ExecuteCycles(o.cycles)
	}
	if err != nil {
		return fmt.Errorf("simulation failed at PC 0x%08x: %w", c.PC(), err)
	}

	switch result.Reason {
	case core.StopHalted:
		fmt.Fprintf(out, "Halted with exit code %d after %d cycles\n",
			c.ExitCode(), c.Cycle())
		o.exitCode = int(c.ExitCode())
	case core.StopDrained:
		fmt.Fprintf(out, "Program finished after %d cycles\n", c.Cycle())
	default:
		fmt.Fprintf(out, "Stopped (%v) after %d cycles, PC = 0x%08x\n",
			result.Reason, c.Cycle(), c.PC())
	}

	if o.stats {
		return c.Stats().Report(out)
	}

	return nil
}

func (o *runOptions) runFunctional(out io.Writer, prog *loader.Program) error {
	e, err := newEmulator(o.machine, prog, o.cycles)
	if err != nil {
		return err
	}

	res := e.Run()
	if res.Err != nil {
		return fmt.Errorf("emulation failed: %w", res.Err)
	}

	if res.Exited {
		fmt.Fprintf(out, "Exited with code %d after %d instructions\n",
			res.ExitCode, e.InstructionCount())
		o.exitCode = int(res.ExitCode)
	} else {
		fmt.Fprintf(out, "Stopped after %d instructions, PC = 0x%08x\n",
			e.InstructionCount(), e.PC())
	}

	return nil
}

// newEmulator places prog into fresh memories shaped like the machine's main
// memories.
func newEmulator(
	machine *config.Config,
	prog *loader.Program,
	maxInstructions uint64,
) (*emu.Emulator, error) {
	imem := emu.NewMainMemory(machine.InstructionMemorySize, machine.MemoryLatency)
	dmem := imem
	if !machine.Unified {
		dmem = emu.NewMainMemory(machine.DataMemorySize, machine.MemoryLatency)
	}

	for _, seg := range prog.Segments {
		mem := dmem
		if seg.Executable() {
			mem = imem
		}
		if err := mem.LoadAt(seg.Addr, seg.Data); err != nil {
			return nil, fmt.Errorf("failed to load segment at 0x%08x: %w", seg.Addr, err)
		}
	}

	return emu.NewEmulator(emu.NewRegFile(), imem, dmem,
		emu.WithEntryPoint(prog.Entry),
		emu.WithProgramEnd(prog.End()),
		emu.WithMaxInstructions(maxInstructions),
	), nil
}
