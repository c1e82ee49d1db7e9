package pipeline_test

import (
	"encoding/binary"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/timing/pipeline"
)

func image(words ...uint32) []byte {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[4*i:], w)
	}
	return buf
}

// harness drives a pipeline and its hazard units the way the core does.
type harness struct {
	regFile *emu.RegFile
	imem    *emu.MainMemory
	dmem    *emu.MainMemory
	pipe    *pipeline.Pipeline
	data    *pipeline.DataHazardUnit
	control *pipeline.ControlHazardUnit
	cycle   uint64
}

func newHarness(words []uint32, opts ...pipeline.PipelineOption) *harness {
	h := &harness{
		regFile: emu.NewRegFile(),
		imem:    emu.NewMainMemory(4096, 1),
		dmem:    emu.NewMainMemory(1024, 1),
	}

	prog := image(words...)
	Expect(h.imem.LoadImage(prog)).To(Succeed())

	opts = append([]pipeline.PipelineOption{
		pipeline.WithProgramEnd(uint32(len(prog))),
	}, opts...)
	h.pipe = pipeline.NewPipeline(h.regFile, h.imem, h.dmem, opts...)
	h.data = pipeline.NewDataHazardUnit(h.pipe)
	h.control = pipeline.NewControlHazardUnit(h.pipe)

	return h
}

func (h *harness) step() error {
	h.cycle++
	if err := h.pipe.ExecuteCycle(h.cycle); err != nil {
		return err
	}
	if h.pipe.Halted() {
		return nil
	}

	h.data.HandleHazard()
	h.control.HandleHazard()
	return nil
}

// run steps until the pipeline drains or halts and returns the cycle count.
func (h *harness) run() uint64 {
	for i := 0; i < 10000; i++ {
		Expect(h.step()).To(Succeed())
		if h.pipe.Drained() || h.pipe.Halted() {
			return h.cycle
		}
	}

	Fail("pipeline did not drain")
	return 0
}

func (h *harness) word(addr uint32) uint32 {
	v, err := h.dmem.Read32(addr)
	Expect(err).NotTo(HaveOccurred())
	return v
}

// reference runs the same program on the functional emulator.
func reference(words []uint32, data []byte) (*emu.Emulator, *emu.MainMemory) {
	regFile := emu.NewRegFile()
	imem := emu.NewMainMemory(4096, 1)
	dmem := emu.NewMainMemory(1024, 1)

	prog := image(words...)
	Expect(imem.LoadImage(prog)).To(Succeed())
	Expect(dmem.LoadImage(data)).To(Succeed())

	e := emu.NewEmulator(regFile, imem, dmem, emu.WithProgramEnd(uint32(len(prog))))
	result := e.Run()
	Expect(result.Err).NotTo(HaveOccurred())

	return e, dmem
}

var nop = insts.NOPWord()
