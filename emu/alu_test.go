package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
)

var _ = Describe("ALU", func() {
	DescribeTable("operations",
		func(op insts.Op, a, b, want uint32) {
			Expect(emu.ALU(op, a, b)).To(Equal(want))
		},
		Entry("add wraps", insts.OpADD, uint32(0xFFFFFFFF), uint32(2), uint32(1)),
		Entry("addi negative", insts.OpADDI, uint32(5), uint32(0xFFFFFFFF), uint32(4)),
		Entry("sub", insts.OpSUB, uint32(3), uint32(5), uint32(0xFFFFFFFE)),
		Entry("and", insts.OpAND, uint32(0xF0F0), uint32(0xFF00), uint32(0xF000)),
		Entry("or", insts.OpORI, uint32(0xF0), uint32(0x0F), uint32(0xFF)),
		Entry("xor", insts.OpXOR, uint32(0xFF), uint32(0x0F), uint32(0xF0)),
		Entry("sll masks the amount", insts.OpSLL, uint32(1), uint32(33), uint32(2)),
		Entry("srl", insts.OpSRLI, uint32(0x80000000), uint32(31), uint32(1)),
		Entry("sra", insts.OpSRA, uint32(0x80000000), uint32(31), uint32(0xFFFFFFFF)),
		Entry("slt signed", insts.OpSLT, uint32(0xFFFFFFFF), uint32(0), uint32(1)),
		Entry("sltu unsigned", insts.OpSLTU, uint32(0xFFFFFFFF), uint32(0), uint32(0)),
		Entry("sltiu with sign-extended immediate", insts.OpSLTIU, uint32(5), uint32(0xFFFFFFFF), uint32(1)),
		Entry("non-alu op", insts.OpLW, uint32(1), uint32(2), uint32(0)),
	)

	DescribeTable("branch conditions",
		func(op insts.Op, a, b uint32, taken bool) {
			Expect(emu.BranchTaken(op, a, b)).To(Equal(taken))
		},
		Entry("beq", insts.OpBEQ, uint32(1), uint32(1), true),
		Entry("bne", insts.OpBNE, uint32(1), uint32(1), false),
		Entry("blt signed", insts.OpBLT, uint32(0xFFFFFFFF), uint32(1), true),
		Entry("bge signed", insts.OpBGE, uint32(0xFFFFFFFF), uint32(1), false),
		Entry("bltu unsigned", insts.OpBLTU, uint32(0xFFFFFFFF), uint32(1), false),
		Entry("bgeu unsigned", insts.OpBGEU, uint32(0xFFFFFFFF), uint32(1), true),
	)

	It("should classify ALU operations", func() {
		Expect(emu.IsALU(insts.OpSRAI)).To(BeTrue())
		Expect(emu.IsALU(insts.OpAND)).To(BeTrue())
		Expect(emu.IsALU(insts.OpLUI)).To(BeFalse())
		Expect(emu.IsALU(insts.OpSW)).To(BeFalse())
	})
})
