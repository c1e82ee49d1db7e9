package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/rvsim/timing/cache"
	"github.com/sarchlab/rvsim/timing/config"
)

var _ = Describe("Config", func() {
	Describe("Default Config", func() {
		It("should create valid default config", func() {
			c := config.DefaultConfig()
			Expect(c.Validate()).To(Succeed())
		})

		It("should default to split 32 KiB and 4 KiB memories", func() {
			c := config.DefaultConfig()
			Expect(c.InstructionMemorySize).To(Equal(uint32(32 * 1024)))
			Expect(c.DataMemorySize).To(Equal(uint32(4 * 1024)))
			Expect(c.Unified).To(BeFalse())
			Expect(c.ICache).To(HaveLen(1))
			Expect(c.DCache).To(HaveLen(1))
		})

		It("should run at 1 GHz", func() {
			c := config.DefaultConfig()
			Expect(c.Frequency()).To(Equal(1 * sim.GHz))
		})
	})

	Describe("Validation", func() {
		It("should reject an empty instruction memory", func() {
			c := config.DefaultConfig()
			c.InstructionMemorySize = 0
			Expect(c.Validate()).To(HaveOccurred())
		})

		It("should reject an empty data memory", func() {
			c := config.DefaultConfig()
			c.DataMemorySize = 0
			Expect(c.Validate()).To(HaveOccurred())
		})

		It("should accept an empty data memory when unified", func() {
			c := config.DefaultConfig()
			c.Unified = true
			c.DataMemorySize = 0
			c.DCache = nil
			Expect(c.Validate()).To(Succeed())
		})

		It("should reject dcache layers when unified", func() {
			c := config.DefaultConfig()
			c.Unified = true
			Expect(c.Validate()).To(HaveOccurred())
		})

		It("should reject zero memory latency", func() {
			c := config.DefaultConfig()
			c.MemoryLatency = 0
			Expect(c.Validate()).To(HaveOccurred())
		})

		It("should reject a non-positive clock", func() {
			c := config.DefaultConfig()
			c.ClockGHz = 0
			Expect(c.Validate()).To(HaveOccurred())
		})

		It("should name the invalid cache layer", func() {
			c := config.DefaultConfig()
			bad := cache.DefaultConfig()
			bad.Lines = 3
			c.DCache = append(c.DCache, bad)

			err := c.Validate()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("dcache layer 1"))
		})
	})

	Describe("Clone", func() {
		It("should create independent copy", func() {
			original := config.DefaultConfig()
			clone := original.Clone()

			clone.MemoryLatency = 100
			clone.ICache[0].HitLatency = 7

			Expect(original.MemoryLatency).To(Equal(uint64(10)))
			Expect(original.ICache[0].HitLatency).To(Equal(uint64(1)))
			Expect(clone.ICache[0].HitLatency).To(Equal(uint64(7)))
		})
	})

	Describe("File Operations", func() {
		var tempDir string

		BeforeEach(func() {
			var err error
			tempDir, err = os.MkdirTemp("", "config-test")
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			_ = os.RemoveAll(tempDir)
		})

		It("should save and load config", func() {
			original := config.DefaultConfig()
			original.MemoryLatency = 20
			original.DCache = []cache.Config{{
				Policy:        cache.PolicyRandom,
				LineWords:     8,
				Lines:         16,
				Associativity: 4,
				HitLatency:    2,
				Seed:          9,
			}}

			path := filepath.Join(tempDir, "rvsim.json")
			Expect(original.Save(path)).To(Succeed())

			loaded, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(original))
		})

		It("should store the policy by name", func() {
			path := filepath.Join(tempDir, "rvsim.json")
			Expect(config.DefaultConfig().Save(path)).To(Succeed())

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`"policy": "lru"`))
		})

		It("should keep defaults for omitted fields", func() {
			path := filepath.Join(tempDir, "partial.json")
			err := os.WriteFile(path, []byte(`{"memory_latency": 42}`), 0644)
			Expect(err).NotTo(HaveOccurred())

			loaded, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.MemoryLatency).To(Equal(uint64(42)))
			Expect(loaded.InstructionMemorySize).To(Equal(uint32(32 * 1024)))
		})

		It("should return error for non-existent file", func() {
			_, err := config.Load("/nonexistent/path/rvsim.json")
			Expect(err).To(HaveOccurred())
		})

		It("should return error for invalid JSON", func() {
			path := filepath.Join(tempDir, "invalid.json")
			err := os.WriteFile(path, []byte("not valid json"), 0644)
			Expect(err).NotTo(HaveOccurred())

			_, err = config.Load(path)
			Expect(err).To(HaveOccurred())
		})
	})
})
