package core_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/loader"
	"github.com/sarchlab/rvsim/timing/config"
	"github.com/sarchlab/rvsim/timing/core"
	"github.com/sarchlab/rvsim/timing/pipeline"
)

// flatConfig has no caches and single-cycle memories.
func flatConfig() *config.Config {
	c := config.DefaultConfig()
	c.InstructionMemorySize = 1024
	c.DataMemorySize = 1024
	c.MemoryLatency = 1
	c.ICache = nil
	c.DCache = nil
	return c
}

func newCore(cfg *config.Config, words ...uint32) *core.Core {
	logger, _ := test.NewNullLogger()
	c, err := core.MakeBuilder().
		WithConfig(cfg).
		WithLogger(logger).
		Build()
	Expect(err).NotTo(HaveOccurred())
	Expect(c.LoadProgram(loader.FromWords(words...))).To(Succeed())
	return c
}

var sumProgram = []uint32{
	insts.ADDI(5, 0, 10),
	insts.ADD(6, 5, 5),
	insts.SW(6, 0, 0),
}

var _ = Describe("Core", func() {
	var c *core.Core

	Describe("Running a program", func() {
		BeforeEach(func() {
			c = newCore(flatConfig(), sumProgram...)
		})

		It("should create a core with pipeline and hazard units", func() {
			Expect(c.Pipeline).NotTo(BeNil())
			Expect(c.DataHazards).NotTo(BeNil())
			Expect(c.ControlHazards).NotTo(BeNil())
		})

		It("should compute and store the sum", func() {
			result, err := c.Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Reason).To(Equal(core.StopDrained))
			Expect(result.Cycles).To(Equal(uint64(8)))

			x6, err := c.ReadRegister(6)
			Expect(err).NotTo(HaveOccurred())
			Expect(x6).To(Equal(uint32(20)))

			word, err := c.ReadMemory(0, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(word).To(Equal(uint32(20)))

			Expect(c.Stats().Instructions).To(Equal(uint64(3)))
		})

		It("should forward without delay cycles", func() {
			_, err := c.Run()
			Expect(err).NotTo(HaveOccurred())

			stats := c.Stats()
			Expect(stats.DataHazards).To(Equal(uint64(2)))
			Expect(stats.DataHazardDelays).To(BeZero())
			Expect(stats.ControlHazards).To(BeZero())
		})

		It("should stop at the cycle limit", func() {
			result, err := c.ExecuteCycles(3)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Cycles).To(Equal(uint64(3)))
			Expect(result.Reason).To(Equal(core.StopCycleLimit))
			Expect(c.Cycle()).To(Equal(uint64(3)))
			Expect(c.PC()).To(Equal(uint32(12)))
		})

		It("should do nothing once drained", func() {
			_, err := c.Run()
			Expect(err).NotTo(HaveOccurred())

			result, err := c.ExecuteCycles(10)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Cycles).To(BeZero())
			Expect(result.Reason).To(Equal(core.StopDrained))
		})
	})

	Describe("Halting", func() {
		BeforeEach(func() {
			c = newCore(flatConfig(),
				insts.ADDI(10, 0, 7),
				insts.ECALL(),
				insts.ADDI(11, 0, 1),
			)
		})

		It("should halt with a0 as exit code", func() {
			result, err := c.Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Reason).To(Equal(core.StopHalted))
			Expect(c.Halted()).To(BeTrue())
			Expect(c.ExitCode()).To(Equal(uint32(7)))
		})

		It("should not retire instructions after the halt", func() {
			_, err := c.Run()
			Expect(err).NotTo(HaveOccurred())

			x11, _ := c.ReadRegister(11)
			Expect(x11).To(BeZero())
			Expect(c.Stats().Instructions).To(Equal(uint64(2)))
		})

		It("should ignore cycles after the halt", func() {
			_, err := c.Run()
			Expect(err).NotTo(HaveOccurred())
			cycles := c.Cycle()

			Expect(c.ExecuteCycle()).To(Succeed())
			Expect(c.Cycle()).To(Equal(cycles))
		})
	})

	Describe("Fatal errors", func() {
		BeforeEach(func() {
			c = newCore(flatConfig(), insts.ADDI(1, 0, 1), 0xFFFFFFFF)
		})

		It("should stop on an illegal instruction", func() {
			_, err := c.Run()
			Expect(err).To(MatchError(insts.ErrUnknownInstruction))
			Expect(c.Err()).To(HaveOccurred())
		})

		It("should keep failing until reset", func() {
			_, err := c.Run()
			Expect(err).To(HaveOccurred())

			Expect(c.ExecuteCycle()).To(MatchError(err))
			_, again := c.ExecuteCycles(5)
			Expect(again).To(MatchError(err))

			c.Reset()
			Expect(c.Err()).NotTo(HaveOccurred())
			Expect(c.ExecuteCycle()).To(Succeed())
		})

		It("should stop on a data access out of range", func() {
			c = newCore(flatConfig(), insts.LUI(1, 0x1), insts.LW(2, 1, 0))

			_, err := c.Run()
			Expect(err).To(MatchError(emu.ErrAddressOutOfRange))
		})

		It("should not fault on squashed garbage behind a jump", func() {
			c = newCore(flatConfig(),
				insts.JAL(0, 12),
				0xFFFFFFFF,
				0xFFFFFFFF,
				insts.ADDI(1, 0, 5),
			)

			_, err := c.Run()
			Expect(err).NotTo(HaveOccurred())
			x1, _ := c.ReadRegister(1)
			Expect(x1).To(Equal(uint32(5)))
		})
	})

	Describe("Breakpoints", func() {
		BeforeEach(func() {
			c = newCore(flatConfig(),
				insts.ADDI(1, 0, 1),
				insts.ADDI(2, 0, 2),
				insts.ADDI(3, 0, 3),
				insts.ADDI(4, 0, 4),
			)
		})

		It("should stop when the PC reaches a breakpoint", func() {
			id := c.SetBreakpoint(0x8)

			result, err := c.Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Reason).To(Equal(core.StopBreakpoint))
			Expect(result.Breakpoint).To(Equal(core.Breakpoint{ID: id, Addr: 0x8}))
			Expect(result.Cycles).To(Equal(uint64(2)))
			Expect(c.PC()).To(Equal(uint32(0x8)))
		})

		It("should resume from a breakpoint", func() {
			c.SetBreakpoint(0x8)

			_, err := c.Run()
			Expect(err).NotTo(HaveOccurred())

			result, err := c.Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Reason).To(Equal(core.StopDrained))

			x4, _ := c.ReadRegister(4)
			Expect(x4).To(Equal(uint32(4)))
		})

		It("should always run the first cycle", func() {
			c.SetBreakpoint(0x0)

			result, err := c.ExecuteCycles(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Cycles).To(Equal(uint64(1)))
			Expect(result.Reason).To(Equal(core.StopCycleLimit))
		})

		It("should number breakpoints without reuse", func() {
			first := c.SetBreakpoint(0x4)
			second := c.SetBreakpoint(0x8)
			Expect(c.DeleteBreakpoint(first)).To(Succeed())
			third := c.SetBreakpoint(0xC)

			Expect(first).To(Equal(0))
			Expect(second).To(Equal(1))
			Expect(third).To(Equal(2))
			Expect(c.Breakpoints()).To(Equal([]core.Breakpoint{
				{ID: 1, Addr: 0x8},
				{ID: 2, Addr: 0xC},
			}))
		})

		It("should reject deleting an unknown breakpoint", func() {
			Expect(c.DeleteBreakpoint(3)).To(MatchError(core.ErrUnknownBreakpoint))
		})

		It("should keep breakpoints across reset", func() {
			c.SetBreakpoint(0x8)
			c.Reset()
			Expect(c.Breakpoints()).To(HaveLen(1))
		})
	})

	Describe("Reset", func() {
		BeforeEach(func() {
			c = newCore(flatConfig(), sumProgram...)
		})

		It("should restore the initial state and reload the program", func() {
			_, err := c.Run()
			Expect(err).NotTo(HaveOccurred())

			c.Reset()

			Expect(c.Cycle()).To(BeZero())
			Expect(c.PC()).To(BeZero())
			Expect(c.Registers()).To(Equal([emu.NumRegisters]uint32{}))
			word, _ := c.ReadMemory(0, 4)
			Expect(word).To(BeZero())
			Expect(c.Stats().Instructions).To(BeZero())
			Expect(c.Stats().DataHazards).To(BeZero())

			_, err = c.Run()
			Expect(err).NotTo(HaveOccurred())
			x6, _ := c.ReadRegister(6)
			Expect(x6).To(Equal(uint32(20)))
		})
	})

	Describe("Inspection", func() {
		BeforeEach(func() {
			c = newCore(flatConfig(), sumProgram...)
		})

		It("should validate register numbers", func() {
			_, err := c.ReadRegister(32)
			Expect(err).To(MatchError(emu.ErrInvalidRegister))
			_, err = c.ReadRegister(-1)
			Expect(err).To(MatchError(emu.ErrInvalidRegister))
		})

		It("should validate access widths", func() {
			_, err := c.ReadMemory(0, 3)
			Expect(err).To(HaveOccurred())
		})

		It("should dump registers and memory", func() {
			_, err := c.Run()
			Expect(err).NotTo(HaveOccurred())

			var regs bytes.Buffer
			Expect(c.DumpRegisters(&regs)).To(Succeed())
			Expect(regs.String()).To(ContainSubstring("x6  = 0x00000014"))

			var mem bytes.Buffer
			Expect(c.CoreDump(&mem, 0, 4, 4)).To(Succeed())
			Expect(mem.String()).To(HavePrefix("0x00000000: 00000014"))
		})

		It("should list the pipeline stages", func() {
			Expect(c.ExecuteCycle()).To(Succeed())
			Expect(c.ExecuteCycle()).To(Succeed())

			stages := c.PipelineStages()
			Expect(stages).To(HaveLen(pipeline.NumStages))
			Expect(stages[0].Stage).To(Equal(pipeline.FetchStage))
			Expect(stages[0].Slot.Inst.Op).To(Equal(insts.OpADD))
			Expect(stages[1].Slot.Inst.Op).To(Equal(insts.OpADDI))
			Expect(stages[2].Slot.IsNOP()).To(BeTrue())
			Expect(stages[1].String()).To(ContainSubstring("ID"))
		})
	})

	Describe("Load-use", func() {
		It("should cost one cycle more than an independent load", func() {
			dependent := newCore(flatConfig(),
				insts.LW(1, 0, 0x40),
				insts.ADDI(2, 1, 1),
			)
			independent := newCore(flatConfig(),
				insts.LW(1, 0, 0x40),
				insts.ADDI(2, 3, 1),
			)

			r1, err := dependent.Run()
			Expect(err).NotTo(HaveOccurred())
			r2, err := independent.Run()
			Expect(err).NotTo(HaveOccurred())

			Expect(r1.Cycles).To(Equal(r2.Cycles + 1))
			Expect(dependent.Stats().DataHazardDelays).To(Equal(uint64(1)))
		})
	})

	Describe("Data segments", func() {
		It("should place non-executable segments in data memory", func() {
			cfg := flatConfig()
			c, err := core.MakeBuilder().WithConfig(cfg).Build()
			Expect(err).NotTo(HaveOccurred())

			prog := loader.FromWords(insts.LW(1, 0, 0x10))
			prog.Segments = append(prog.Segments, loader.Segment{
				Addr:  0x10,
				Data:  []byte{0x78, 0x56, 0x34, 0x12},
				Flags: loader.SegmentFlagRead | loader.SegmentFlagWrite,
			})
			Expect(c.LoadProgram(prog)).To(Succeed())

			_, err = c.Run()
			Expect(err).NotTo(HaveOccurred())
			x1, _ := c.ReadRegister(1)
			Expect(x1).To(Equal(uint32(0x12345678)))
		})

		It("should reject a segment that does not fit", func() {
			c, err := core.MakeBuilder().WithConfig(flatConfig()).Build()
			Expect(err).NotTo(HaveOccurred())

			prog := &loader.Program{Segments: []loader.Segment{{
				Addr:  1020,
				Data:  make([]byte, 8),
				Flags: loader.SegmentFlagExecute,
			}}}
			Expect(c.LoadProgram(prog)).To(MatchError(emu.ErrAddressOutOfRange))
		})
	})

	Describe("Statistics", func() {
		It("should report CPI", func() {
			c = newCore(flatConfig(), sumProgram...)
			_, err := c.Run()
			Expect(err).NotTo(HaveOccurred())

			stats := c.Stats()
			Expect(stats.CPI()).To(BeNumerically("~", 8.0/3.0, 1e-9))
		})

		It("should convert cycles into simulated time", func() {
			cfg := flatConfig()
			cfg.ClockGHz = 2
			c = newCore(cfg, sumProgram...)
			_, err := c.Run()
			Expect(err).NotTo(HaveOccurred())

			Expect(float64(c.Stats().SimulatedTime)).To(BeNumerically("~", 8*0.5e-9, 1e-15))
		})

		It("should write a report", func() {
			c = newCore(config.DefaultConfig(), sumProgram...)
			_, err := c.Run()
			Expect(err).NotTo(HaveOccurred())

			var out bytes.Buffer
			Expect(c.Stats().Report(&out)).To(Succeed())
			Expect(out.String()).To(ContainSubstring("instructions:          3"))
			Expect(out.String()).To(ContainSubstring("L1I:"))
			Expect(out.String()).To(ContainSubstring("L1D:"))
		})
	})

	Describe("Caches", func() {
		It("should build split caches by default", func() {
			c = newCore(config.DefaultConfig(), sumProgram...)
			_, err := c.Run()
			Expect(err).NotTo(HaveOccurred())

			stats := c.Stats()
			Expect(stats.Caches).To(HaveLen(2))
			Expect(stats.Caches[0].Name).To(Equal("L1I"))
			Expect(stats.Caches[1].Name).To(Equal("L1D"))
			Expect(stats.Caches[0].Misses).To(BeNumerically(">", 0))
			Expect(stats.Caches[0].Hits).To(BeNumerically(">", 0))
			Expect(stats.Caches[1].Writes).To(Equal(uint64(1)))
		})

		It("should see dirty cached data through ReadMemory", func() {
			c = newCore(config.DefaultConfig(), sumProgram...)
			_, err := c.Run()
			Expect(err).NotTo(HaveOccurred())

			word, err := c.ReadMemory(0, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(word).To(Equal(uint32(20)))
		})

		It("should charge cache latencies to the statistics", func() {
			c = newCore(config.DefaultConfig(), sumProgram...)
			_, err := c.Run()
			Expect(err).NotTo(HaveOccurred())

			stats := c.Stats()
			Expect(stats.FetchLatency).To(BeNumerically(">", stats.Instructions))
			Expect(stats.DataLatency).To(BeNumerically(">", 0))
		})

		It("should share one hierarchy when unified", func() {
			cfg := config.DefaultConfig()
			cfg.Unified = true
			cfg.DCache = nil
			cfg.InstructionMemorySize = 4096

			c = newCore(cfg,
				insts.ADDI(1, 0, 99),
				insts.SW(1, 0, 0x200),
				insts.LW(2, 0, 0x200),
			)
			_, err := c.Run()
			Expect(err).NotTo(HaveOccurred())

			Expect(c.InstructionMemory()).To(BeIdenticalTo(c.DataMemory()))
			Expect(c.Stats().Caches).To(HaveLen(1))
			Expect(c.Stats().Caches[0].Name).To(Equal("L1"))

			x2, _ := c.ReadRegister(2)
			Expect(x2).To(Equal(uint32(99)))
		})

		It("should reject an invalid configuration", func() {
			cfg := config.DefaultConfig()
			cfg.ICache[0].Lines = 3

			_, err := core.MakeBuilder().WithConfig(cfg).Build()
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Logging", func() {
		It("should log the halt", func() {
			logger, hook := test.NewNullLogger()
			c, err := core.MakeBuilder().
				WithConfig(flatConfig()).
				WithLogger(logger).
				Build()
			Expect(err).NotTo(HaveOccurred())
			Expect(c.LoadProgram(loader.FromWords(insts.ECALL()))).To(Succeed())

			_, err = c.Run()
			Expect(err).NotTo(HaveOccurred())

			Expect(hook.LastEntry()).NotTo(BeNil())
			Expect(hook.LastEntry().Level).To(Equal(logrus.InfoLevel))
			Expect(hook.LastEntry().Message).To(Equal("halted"))
		})
	})
})
