package benchmarks

import (
	"encoding/binary"

	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/loader"
)

// dataBase is where benchmarks place their data. It stays clear of the code
// so that the programs also run on a unified memory.
const dataBase = 0x400

// GetMicrobenchmarks returns the standard set of microbenchmarks. Each one
// targets a specific pipeline characteristic and leaves its result in x10.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		loadUse(),
		memorySequential(),
		memoryStrided(),
		functionCalls(),
		branchTaken(),
		mixedOperations(),
		arraySum(),
	}
}

// GetCoreBenchmarks returns a minimal set covering a loop, memory traffic and
// calls.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		branchTaken(),
		arraySum(),
		functionCalls(),
	}
}

// 1. Arithmetic Sequential - ALU throughput with independent operations.
func arithmeticSequential() Benchmark {
	var words []uint32
	for round := 0; round < 4; round++ {
		for rd := uint32(10); rd < 15; rd++ {
			words = append(words, insts.ADDI(rd, rd, 1))
		}
	}

	return Benchmark{
		Name:         "arithmetic_sequential",
		Description:  "20 independent ADDIs over 5 registers - measures ALU throughput",
		Program:      program(words...),
		ExpectedExit: 4,
	}
}

// 2. Dependency Chain - every instruction needs the previous result.
func dependencyChain() Benchmark {
	var words []uint32
	for i := 0; i < 20; i++ {
		words = append(words, insts.ADDI(10, 10, 1))
	}

	return Benchmark{
		Name:         "dependency_chain",
		Description:  "20 dependent ADDIs - measures EX forwarding",
		Program:      program(words...),
		ExpectedExit: 20,
	}
}

// 3. Load Use - each load feeds the next instruction.
func loadUse() Benchmark {
	words := []uint32{
		insts.ADDI(5, 0, 7),
		insts.SW(5, 0, dataBase),
	}
	for i := 0; i < 8; i++ {
		words = append(words,
			insts.LW(6, 0, dataBase),
			insts.ADD(10, 10, 6),
		)
	}

	return Benchmark{
		Name:         "load_use",
		Description:  "8 loads each consumed by the next instruction - measures load-use delays",
		Program:      program(words...),
		ExpectedExit: 56,
	}
}

// 4. Memory Sequential - stores then loads over consecutive words.
func memorySequential() Benchmark {
	return Benchmark{
		Name:         "memory_sequential",
		Description:  "8 stores and 8 loads to consecutive words - measures cache line reuse",
		Program:      program(storeThenSum(4)...),
		ExpectedExit: 36,
	}
}

// 5. Memory Strided - the same traffic spread one access per 64 bytes.
func memoryStrided() Benchmark {
	return Benchmark{
		Name:         "memory_strided",
		Description:  "8 stores and 8 loads 64 bytes apart - measures cache misses",
		Program:      program(storeThenSum(64)...),
		ExpectedExit: 36,
	}
}

// storeThenSum stores 1..8 at the given stride from dataBase and sums them
// back into x10.
func storeThenSum(stride int32) []uint32 {
	var words []uint32
	for i := int32(0); i < 8; i++ {
		words = append(words,
			insts.ADDI(5, 0, i+1),
			insts.SW(5, 0, dataBase+i*stride),
		)
	}
	for i := int32(0); i < 8; i++ {
		words = append(words,
			insts.LW(6, 0, dataBase+i*stride),
			insts.ADD(10, 10, 6),
		)
	}
	return words
}

// 6. Function Calls - JAL into a leaf function that returns with JALR.
func functionCalls() Benchmark {
	return Benchmark{
		Name:        "function_calls",
		Description: "3 calls to a leaf function - measures jump flush overhead",
		Program: program(
			insts.JAL(1, 16),      // 0x00: call add5
			insts.JAL(1, 12),      // 0x04: call add5
			insts.JAL(1, 8),       // 0x08: call add5
			insts.JAL(0, 12),      // 0x0c: j exit
			insts.ADDI(10, 10, 5), // 0x10: add5
			insts.JALR(0, 1, 0),   // 0x14: ret
		),
		ExpectedExit: 15,
	}
}

// 7. Branch Taken - a counted loop whose back edge is taken 9 times.
func branchTaken() Benchmark {
	return Benchmark{
		Name:        "branch_taken",
		Description: "10-iteration loop closed by BNE - measures branch flush overhead",
		Program: program(
			insts.ADDI(5, 0, 10),  // 0x00: n = 10
			insts.ADDI(10, 10, 1), // 0x04: loop
			insts.ADDI(5, 5, -1),  // 0x08
			insts.BNE(5, 0, -8),   // 0x0c: bne n, loop
		),
		ExpectedExit: 10,
	}
}

// 8. Mixed Operations - logic, shift and arithmetic with short dependencies.
func mixedOperations() Benchmark {
	return Benchmark{
		Name:        "mixed_operations",
		Description: "logic, shift and arithmetic mix - measures typical code",
		Program: program(
			insts.ADDI(5, 0, 12),
			insts.ADDI(6, 0, 10),
			insts.AND(7, 5, 6),   // 8
			insts.OR(28, 5, 6),   // 14
			insts.XOR(29, 5, 6),  // 6
			insts.SLLI(30, 7, 1), // 16
			insts.ADD(10, 28, 29),
			insts.SUB(10, 10, 30),
			insts.SLT(31, 29, 28), // 1
			insts.ADD(10, 10, 31),
		),
		ExpectedExit: 5,
	}
}

// 9. Array Sum - a loop over a data segment with a load-use in every
// iteration.
func arraySum() Benchmark {
	data := make([]byte, 8*4)
	for i := range 8 {
		binary.LittleEndian.PutUint32(data[i*4:], uint32(i+1))
	}

	prog := program(
		insts.ADDI(5, 0, dataBase),     // 0x00: p = a
		insts.ADDI(7, 0, dataBase+8*4), // 0x04: end = a + 8
		insts.LW(6, 5, 0),              // 0x08: loop
		insts.ADD(10, 10, 6),           // 0x0c
		insts.ADDI(5, 5, 4),            // 0x10
		insts.BNE(5, 7, -12),           // 0x14: bne p, end, loop
	)
	prog.Segments = append(prog.Segments, loader.Segment{
		Addr:    dataBase,
		Data:    data,
		MemSize: uint32(len(data)),
		Flags:   loader.SegmentFlagRead | loader.SegmentFlagWrite,
	})

	return Benchmark{
		Name:         "array_sum",
		Description:  "sum of an 8-word data segment - measures loads in a loop",
		Program:      prog,
		ExpectedExit: 36,
	}
}

// program appends the exit sequence to words.
func program(words ...uint32) *loader.Program {
	return loader.FromWords(append(words, insts.ECALL())...)
}
