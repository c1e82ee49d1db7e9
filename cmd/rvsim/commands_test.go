package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/timing/config"
)

var _ = Describe("rvsim", func() {
	var (
		dir            string
		stdout, stderr *bytes.Buffer
	)

	writeProgram := func(name string, words ...uint32) string {
		data := make([]byte, 4*len(words))
		for i, w := range words {
			binary.LittleEndian.PutUint32(data[4*i:], w)
		}

		path := filepath.Join(dir, name)
		Expect(os.WriteFile(path, data, 0644)).To(Succeed())
		return path
	}

	rvsim := func(stdin string, args ...string) int {
		return execute(args, strings.NewReader(stdin), stdout, stderr)
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		stdout = &bytes.Buffer{}
		stderr = &bytes.Buffer{}
	})

	Describe("run", func() {
		It("should exit with the program's a0", func() {
			prog := writeProgram("exit7.bin", insts.ADDI(10, 0, 7), insts.ECALL())

			Expect(rvsim("", "run", prog)).To(Equal(7))
			Expect(stdout.String()).To(ContainSubstring("Halted with exit code 7"))
			Expect(stdout.String()).To(ContainSubstring("instructions:          2"))
		})

		It("should report a program that runs off its end", func() {
			prog := writeProgram("sum.bin",
				insts.ADDI(5, 0, 10),
				insts.ADD(6, 5, 5),
				insts.SW(6, 0, 0),
			)

			Expect(rvsim("", "run", "--stats=false", prog)).To(Equal(0))
			Expect(stdout.String()).To(Equal("Program finished after 8 cycles\n"))
		})

		It("should stop at the cycle limit", func() {
			prog := writeProgram("exit7.bin", insts.ADDI(10, 0, 7), insts.ECALL())

			Expect(rvsim("", "run", "--cycles", "2", "--stats=false", prog)).To(Equal(0))
			Expect(stdout.String()).To(HavePrefix("Stopped (cycle limit) after 2 cycles"))
		})

		It("should fail on an illegal instruction", func() {
			prog := writeProgram("bad.bin", 0xFFFFFFFF)

			Expect(rvsim("", "run", prog)).To(Equal(1))
			Expect(stderr.String()).To(ContainSubstring("unknown instruction"))
		})

		It("should fail on a missing program", func() {
			Expect(rvsim("", "run", filepath.Join(dir, "missing.bin"))).To(Equal(1))
			Expect(stderr.String()).To(ContainSubstring("failed to load program"))
		})

		It("should run on the functional emulator", func() {
			prog := writeProgram("exit7.bin", insts.ADDI(10, 0, 7), insts.ECALL())

			Expect(rvsim("", "run", "--functional", prog)).To(Equal(7))
			Expect(stdout.String()).To(Equal("Exited with code 7 after 2 instructions\n"))
		})

		It("should write a trace database", func() {
			prog := writeProgram("exit7.bin", insts.ADDI(10, 0, 7), insts.ECALL())
			db := filepath.Join(dir, "trace.sqlite3")

			Expect(rvsim("", "run", "--trace-db", db, prog)).To(Equal(7))
			Expect(stdout.String()).To(ContainSubstring("Tracing to " + db))
			Expect(db).To(BeAnExistingFile())
		})

		It("should log stages at debug level with -v", func() {
			prog := writeProgram("exit7.bin", insts.ADDI(10, 0, 7), insts.ECALL())

			Expect(rvsim("", "run", "-v", prog)).To(Equal(7))
			Expect(stderr.String()).To(ContainSubstring("level=debug"))
		})
	})

	Describe("config", func() {
		It("should print the default configuration", func() {
			Expect(rvsim("", "config")).To(Equal(0))

			var c config.Config
			Expect(json.Unmarshal(stdout.Bytes(), &c)).To(Succeed())
			Expect(c).To(Equal(*config.DefaultConfig()))
		})

		It("should save a configuration that run accepts", func() {
			path := filepath.Join(dir, "machine.json")
			Expect(rvsim("", "config", "--save", path)).To(Equal(0))

			prog := writeProgram("exit7.bin", insts.ADDI(10, 0, 7), insts.ECALL())
			Expect(rvsim("", "--config", path, "run", prog)).To(Equal(7))
		})

		It("should reject an invalid configuration", func() {
			path := filepath.Join(dir, "bad.json")
			Expect(os.WriteFile(path, []byte(`{"memory_latency": 0}`), 0644)).To(Succeed())

			Expect(rvsim("", "--config", path, "config")).To(Equal(1))
			Expect(stderr.String()).To(ContainSubstring("memory_latency must be > 0"))
		})
	})

	Describe("bench", func() {
		It("should print CSV for the core benchmarks", func() {
			Expect(rvsim("", "bench", "--core", "--format", "csv")).To(Equal(0))

			lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
			Expect(lines).To(HaveLen(4))
			Expect(lines[1]).To(HavePrefix("branch_taken,"))
		})

		It("should reject an unknown format", func() {
			Expect(rvsim("", "bench", "--core", "--format", "xml")).To(Equal(1))
			Expect(stderr.String()).To(ContainSubstring(`unknown format "xml"`))
		})
	})

	Describe("debug", func() {
		It("should run debugger commands from standard input", func() {
			prog := writeProgram("exit7.bin", insts.ADDI(10, 0, 7), insts.ECALL())

			Expect(rvsim("s 1\nc\ndr 10\nq\n", "debug", prog)).To(Equal(0))

			out := stdout.String()
			Expect(out).To(HavePrefix("rvsim debugger, type h for help\n>>> "))
			Expect(out).To(ContainSubstring("Halted with exit code 7"))
			Expect(out).To(ContainSubstring("x10 = 0x00000007"))
		})
	})
})
