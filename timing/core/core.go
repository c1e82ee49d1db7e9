// Package core provides the cycle-accurate CPU core model.
// It drives the pipeline, its hazard units and the memory hierarchy one
// cycle at a time, and exposes breakpoints, inspection and statistics.
package core

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/loader"
	"github.com/sarchlab/rvsim/timing/cache"
	"github.com/sarchlab/rvsim/timing/pipeline"
)

// ErrUnknownBreakpoint is returned when deleting a breakpoint that does not
// exist.
var ErrUnknownBreakpoint = errors.New("unknown breakpoint")

// Breakpoint pauses ExecuteCycles when the program counter reaches Addr.
type Breakpoint struct {
	ID   int
	Addr uint32
}

// StopReason tells why ExecuteCycles returned.
type StopReason int

// Reasons for ExecuteCycles to return.
const (
	StopCycleLimit StopReason = iota
	StopBreakpoint
	StopHalted
	StopDrained
)

func (r StopReason) String() string {
	switch r {
	case StopCycleLimit:
		return "cycle limit"
	case StopBreakpoint:
		return "breakpoint"
	case StopHalted:
		return "halted"
	case StopDrained:
		return "drained"
	}
	return fmt.Sprintf("StopReason(%d)", int(r))
}

// RunResult describes an ExecuteCycles call.
type RunResult struct {
	// Cycles is the number of cycles executed by the call.
	Cycles uint64
	// Reason is why the call returned.
	Reason StopReason
	// Breakpoint is the breakpoint hit when Reason is StopBreakpoint.
	Breakpoint Breakpoint
}

// StageInfo describes the content of one pipeline stage.
type StageInfo struct {
	Stage pipeline.Stage
	Slot  pipeline.Slot
}

func (s StageInfo) String() string {
	return fmt.Sprintf("%-3s %v", s.Stage, s.Slot)
}

// Option configures a Core.
type Option func(*Core)

// WithLogger sets the logger of the core and its pipeline.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Core) {
		c.logger = logger
	}
}

// WithTracer reports retirements and hazards to t.
func WithTracer(t pipeline.Tracer) Option {
	return func(c *Core) {
		c.tracer = t
	}
}

// WithFrequency sets the clock used to report simulated time.
func WithFrequency(freq sim.Freq) Option {
	return func(c *Core) {
		c.freq = freq
	}
}

// WithCaches registers caches whose statistics are reported by Stats.
func WithCaches(caches ...*cache.Cache) Option {
	return func(c *Core) {
		c.caches = append(c.caches, caches...)
	}
}

// Core represents a cycle-accurate CPU core model.
// Each cycle ticks the memories, advances the pipeline, then runs the data
// and the control hazard units.
type Core struct {
	// Pipeline is the underlying 5-stage pipeline.
	Pipeline *pipeline.Pipeline

	DataHazards    *pipeline.DataHazardUnit
	ControlHazards *pipeline.ControlHazardUnit

	regFile *emu.RegFile
	imem    emu.Memory
	dmem    emu.Memory
	caches  []*cache.Cache

	program *loader.Program

	breakpoints    []Breakpoint
	nextBreakpoint int

	cycle  uint64
	err    error
	freq   sim.Freq
	logger logrus.FieldLogger
	tracer pipeline.Tracer
}

// NewCore creates a core over the given register file and memories. imem
// and dmem may be the same memory.
func NewCore(regFile *emu.RegFile, imem, dmem emu.Memory, opts ...Option) *Core {
	c := &Core{
		regFile: regFile,
		imem:    imem,
		dmem:    dmem,
		freq:    1 * sim.GHz,
		logger:  logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	pipeOpts := []pipeline.PipelineOption{pipeline.WithLogger(c.logger)}
	if c.tracer != nil {
		pipeOpts = append(pipeOpts, pipeline.WithTracer(c.tracer))
	}

	c.Pipeline = pipeline.NewPipeline(regFile, imem, dmem, pipeOpts...)
	c.DataHazards = pipeline.NewDataHazardUnit(c.Pipeline)
	c.ControlHazards = pipeline.NewControlHazardUnit(c.Pipeline)

	return c
}

// LoadProgram resets the core and places prog in memory. Reset reloads it.
func (c *Core) LoadProgram(prog *loader.Program) error {
	c.program = prog
	c.Reset()
	return c.err
}

// Program returns the loaded program, if any.
func (c *Core) Program() *loader.Program {
	return c.program
}

// SetPC sets the program counter.
func (c *Core) SetPC(pc uint32) {
	c.Pipeline.SetPC(pc)
}

// PC returns the address of the next fetch.
func (c *Core) PC() uint32 {
	return c.Pipeline.PC()
}

// Cycle returns the number of cycles executed since the last reset.
func (c *Core) Cycle() uint64 {
	return c.cycle
}

// Halted returns true once an ECALL or EBREAK has retired.
func (c *Core) Halted() bool {
	return c.Pipeline.Halted()
}

// Drained reports whether the program has run off its end and the pipeline
// is empty.
func (c *Core) Drained() bool {
	return c.Pipeline.Drained()
}

// ExitCode returns a0 as it was when the core halted.
func (c *Core) ExitCode() uint32 {
	return c.Pipeline.ExitCode()
}

// Err returns the fatal error that stopped the core, if any.
func (c *Core) Err() error {
	return c.err
}

// InstructionMemory returns the first level of the instruction side.
func (c *Core) InstructionMemory() emu.Memory {
	return c.imem
}

// DataMemory returns the first level of the data side.
func (c *Core) DataMemory() emu.Memory {
	return c.dmem
}

// Caches returns the caches registered with the core.
func (c *Core) Caches() []*cache.Cache {
	return c.caches
}

// Reset clears the register file, the pipeline, the hazard counters and the
// memories, then reloads the program. Breakpoints are kept.
func (c *Core) Reset() {
	c.imem.Reset()
	if c.dmem != c.imem {
		c.dmem.Reset()
	}

	c.regFile.Reset()
	c.Pipeline.Reset()
	c.DataHazards.Reset()
	c.ControlHazards.Reset()
	c.cycle = 0
	c.err = nil

	if c.program != nil {
		c.err = c.loadProgram()
	}
}

func (c *Core) loadProgram() error {
	for _, seg := range c.program.Segments {
		mem := c.dmem
		if seg.Executable() {
			mem = c.imem
		}

		if err := loadSegment(mem, seg); err != nil {
			return fmt.Errorf("failed to load segment at 0x%08x: %w", seg.Addr, err)
		}
	}

	c.Pipeline.SetProgramEnd(c.program.End())
	c.Pipeline.SetPC(c.program.Entry)

	return nil
}

type backed interface {
	Next() emu.Memory
}

type imageLoader interface {
	LoadAt(addr uint32, data []byte) error
}

// loadSegment writes straight into the backing memory under mem so that
// no cache state or statistics change.
func loadSegment(mem emu.Memory, seg loader.Segment) error {
	for {
		b, ok := mem.(backed)
		if !ok {
			break
		}
		mem = b.Next()
	}

	l, ok := mem.(imageLoader)
	if !ok {
		return fmt.Errorf("memory %T cannot be loaded", mem)
	}

	return l.LoadAt(seg.Addr, seg.Data)
}

// ExecuteCycle runs one cycle. After a fatal error every call returns that
// error until Reset. A halted core does nothing.
func (c *Core) ExecuteCycle() error {
	if c.err != nil {
		return c.err
	}
	if c.Pipeline.Halted() {
		return nil
	}

	c.cycle++

	c.imem.Tick(c.cycle)
	if c.dmem != c.imem {
		c.dmem.Tick(c.cycle)
	}

	if err := c.Pipeline.ExecuteCycle(c.cycle); err != nil {
		c.err = fmt.Errorf("cycle %d: %w", c.cycle, err)
		c.logger.WithError(err).WithField("cycle", c.cycle).Error("simulation stopped")
		return c.err
	}

	if c.Pipeline.Halted() {
		c.logger.WithFields(logrus.Fields{
			"cycle":     c.cycle,
			"exit_code": c.Pipeline.ExitCode(),
		}).Info("halted")
		return nil
	}

	c.DataHazards.HandleHazard()
	c.ControlHazards.HandleHazard()

	return nil
}

// ExecuteCycles runs up to n cycles. It returns early when the core halts,
// when the program has drained, or when the program counter reaches a
// breakpoint. The breakpoint check starts from the second cycle so that a
// run can resume from a breakpoint.
func (c *Core) ExecuteCycles(n uint64) (RunResult, error) {
	var result RunResult

	for result.Cycles < n {
		if c.Pipeline.Halted() {
			result.Reason = StopHalted
			return result, nil
		}
		if c.Pipeline.Drained() {
			result.Reason = StopDrained
			return result, nil
		}

		if result.Cycles > 0 {
			if bp, ok := c.breakpointAt(c.PC()); ok {
				result.Reason = StopBreakpoint
				result.Breakpoint = bp
				c.logger.WithFields(logrus.Fields{
					"cycle":      c.cycle,
					"breakpoint": bp.ID,
					"pc":         fmt.Sprintf("0x%08x", bp.Addr),
				}).Info("breakpoint hit")
				return result, nil
			}
		}

		if err := c.ExecuteCycle(); err != nil {
			return result, err
		}
		result.Cycles++
	}

	switch {
	case c.Pipeline.Halted():
		result.Reason = StopHalted
	case c.Pipeline.Drained():
		result.Reason = StopDrained
	default:
		result.Reason = StopCycleLimit
	}

	return result, nil
}

// Run executes until the core halts, drains, hits a breakpoint or fails.
func (c *Core) Run() (RunResult, error) {
	return c.ExecuteCycles(math.MaxUint64)
}

// SetBreakpoint adds a breakpoint at addr and returns its id. Ids are never
// reused.
func (c *Core) SetBreakpoint(addr uint32) int {
	bp := Breakpoint{ID: c.nextBreakpoint, Addr: addr}
	c.nextBreakpoint++
	c.breakpoints = append(c.breakpoints, bp)
	return bp.ID
}

// DeleteBreakpoint removes the breakpoint with the given id.
func (c *Core) DeleteBreakpoint(id int) error {
	for i, bp := range c.breakpoints {
		if bp.ID == id {
			c.breakpoints = append(c.breakpoints[:i], c.breakpoints[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrUnknownBreakpoint, id)
}

// Breakpoints returns the breakpoints ordered by id.
func (c *Core) Breakpoints() []Breakpoint {
	bps := append([]Breakpoint(nil), c.breakpoints...)
	sort.Slice(bps, func(i, j int) bool { return bps[i].ID < bps[j].ID })
	return bps
}

func (c *Core) breakpointAt(addr uint32) (Breakpoint, bool) {
	for _, bp := range c.breakpoints {
		if bp.Addr == addr {
			return bp, true
		}
	}
	return Breakpoint{}, false
}

// ReadRegister returns the value of register i.
func (c *Core) ReadRegister(i int) (uint32, error) {
	if err := emu.CheckRegister(i); err != nil {
		return 0, err
	}
	return c.regFile.ReadReg(uint8(i)), nil
}

// Registers returns a copy of the register file.
func (c *Core) Registers() [emu.NumRegisters]uint32 {
	return c.regFile.Dump()
}

// DumpRegisters writes every register to w.
func (c *Core) DumpRegisters(w io.Writer) error {
	return emu.DumpRegisters(w, c.regFile.Dump())
}

// ReadMemory reads width bytes of data memory at addr without disturbing
// caches or statistics.
func (c *Core) ReadMemory(addr uint32, width int) (uint32, error) {
	return emu.ReadWidth(c.dmem, addr, width)
}

// CoreDump writes data memory in [start, end) to w in groups of width
// bytes.
func (c *Core) CoreDump(w io.Writer, start, end uint32, width int) error {
	return emu.CoreDump(w, c.dmem, start, end, width)
}

// PipelineStages returns the content of every stage, Fetch first.
func (c *Core) PipelineStages() []StageInfo {
	slots := c.Pipeline.Slots()
	stages := make([]StageInfo, 0, len(slots))
	for i, slot := range slots {
		stages = append(stages, StageInfo{Stage: pipeline.Stage(i), Slot: slot})
	}
	return stages
}
