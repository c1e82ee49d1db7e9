// Package benchmarks provides RV32I microbenchmarks and a harness that runs
// them on the timing core and reports CPI, hazard and cache statistics.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/loader"
	"github.com/sarchlab/rvsim/timing/config"
	"github.com/sarchlab/rvsim/timing/core"
)

// CacheResult holds the statistics of one cache after a benchmark.
type CacheResult struct {
	Name      string  `json:"name"`
	Reads     uint64  `json:"reads"`
	Writes    uint64  `json:"writes"`
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	HitRate   float64 `json:"hit_rate"`
	Evictions uint64  `json:"evictions"`
}

// BenchmarkResult holds the results of a single benchmark run.
type BenchmarkResult struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	// Timing metrics
	SimulatedCycles     uint64  `json:"simulated_cycles"`
	InstructionsRetired uint64  `json:"instructions_retired"`
	CPI                 float64 `json:"cpi"`
	SimulatedTimeNs     float64 `json:"simulated_time_ns"`

	// Hazard metrics
	DataHazards         uint64 `json:"data_hazards"`
	DataHazardDelays    uint64 `json:"data_hazard_delays"`
	ControlHazards      uint64 `json:"control_hazards"`
	ControlHazardDelays uint64 `json:"control_hazard_delays"`
	DelayCycles         uint64 `json:"delay_cycles"`
	PipelineFlushes     uint64 `json:"pipeline_flushes"`

	// Memory metrics
	FetchLatency uint64        `json:"fetch_latency"`
	DataLatency  uint64        `json:"data_latency"`
	Caches       []CacheResult `json:"caches,omitempty"`

	// ExitCode is x10 when the core halted.
	ExitCode     uint32 `json:"exit_code"`
	ExpectedExit uint32 `json:"expected_exit"`

	// ReferenceInstructions is the instruction count of the functional
	// emulator on the same program.
	ReferenceInstructions uint64 `json:"reference_instructions"`

	// Error is set when the benchmark failed to run.
	Error string `json:"error,omitempty"`

	// Wall-clock time for simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Passed reports whether the benchmark ran, exited with the expected code and
// retired as many instructions as the functional emulator.
func (r BenchmarkResult) Passed() bool {
	return r.Error == "" &&
		r.ExitCode == r.ExpectedExit &&
		r.InstructionsRetired == r.ReferenceInstructions
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	Name        string
	Description string

	// Program is the image to run. It must end with ECALL and leave its
	// result in x10.
	Program *loader.Program

	// ExpectedExit is the value x10 must hold when the program halts.
	ExpectedExit uint32
}

// HarnessConfig holds configuration for the benchmark harness.
type HarnessConfig struct {
	// Machine is the configuration every benchmark core is built from.
	Machine *config.Config

	// MaxCycles bounds each run.
	MaxCycles uint64

	// Output destination for results.
	Output io.Writer

	// Logger receives the per-benchmark progress and the cores' logs.
	Logger logrus.FieldLogger

	// Verbose enables detailed output.
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Machine:   config.DefaultConfig(),
		MaxCycles: 1_000_000,
		Output:    os.Stdout,
		Logger:    logrus.StandardLogger(),
	}
}

// Harness runs benchmarks and collects timing data.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}

	return &Harness{
		config: config,
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result := h.runBenchmark(bench)
		results = append(results, result)

		entry := h.config.Logger.WithFields(logrus.Fields{
			"benchmark": bench.Name,
			"cycles":    result.SimulatedCycles,
			"cpi":       fmt.Sprintf("%.3f", result.CPI),
		})
		if result.Error != "" {
			entry.WithField("error", result.Error).Warn("benchmark failed")
		} else if h.config.Verbose {
			entry.Info("benchmark done")
		}
	}

	return results
}

// runBenchmark executes a single benchmark and collects metrics.
func (h *Harness) runBenchmark(bench Benchmark) BenchmarkResult {
	result := BenchmarkResult{
		Name:         bench.Name,
		Description:  bench.Description,
		ExpectedExit: bench.ExpectedExit,
	}

	ref, err := h.reference(bench.Program)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.ReferenceInstructions = ref

	c, err := core.MakeBuilder().
		WithConfig(h.config.Machine).
		WithLogger(h.config.Logger).
		Build()
	if err != nil {
		result.Error = err.Error()
		return result
	}

	if err := c.LoadProgram(bench.Program); err != nil {
		result.Error = err.Error()
		return result
	}

	start := time.Now()
	run, err := c.ExecuteCycles(h.config.MaxCycles)
	result.WallTime = time.Since(start)

	switch {
	case err != nil:
		result.Error = err.Error()
	case run.Reason != core.StopHalted:
		result.Error = fmt.Sprintf("stopped without halting: %v", run.Reason)
	}

	stats := c.Stats()
	result.SimulatedCycles = stats.Cycles
	result.InstructionsRetired = stats.Instructions
	result.CPI = stats.CPI()
	result.SimulatedTimeNs = float64(stats.SimulatedTime) * 1e9
	result.DataHazards = stats.DataHazards
	result.DataHazardDelays = stats.DataHazardDelays
	result.ControlHazards = stats.ControlHazards
	result.ControlHazardDelays = stats.ControlHazardDelays
	result.DelayCycles = stats.DelayCycles
	result.PipelineFlushes = stats.Flushes
	result.FetchLatency = stats.FetchLatency
	result.DataLatency = stats.DataLatency
	result.ExitCode = c.ExitCode()

	for _, cs := range stats.Caches {
		result.Caches = append(result.Caches, CacheResult{
			Name:      cs.Name,
			Reads:     cs.Reads,
			Writes:    cs.Writes,
			Hits:      cs.Hits,
			Misses:    cs.Misses,
			HitRate:   cs.HitRate(),
			Evictions: cs.Evictions,
		})
	}

	return result
}

// reference runs the program on the functional emulator and returns the
// number of instructions it executed.
func (h *Harness) reference(prog *loader.Program) (uint64, error) {
	cfg := h.config.Machine

	imem := emu.NewMainMemory(cfg.InstructionMemorySize, 1)
	dmem := imem
	if !cfg.Unified {
		dmem = emu.NewMainMemory(cfg.DataMemorySize, 1)
	}

	for _, seg := range prog.Segments {
		mem := dmem
		if seg.Executable() {
			mem = imem
		}
		if err := mem.LoadAt(seg.Addr, seg.Data); err != nil {
			return 0, fmt.Errorf("failed to load segment at 0x%08x: %w", seg.Addr, err)
		}
	}

	e := emu.NewEmulator(emu.NewRegFile(), imem, dmem,
		emu.WithEntryPoint(prog.Entry),
		emu.WithProgramEnd(prog.End()),
		emu.WithMaxInstructions(h.config.MaxCycles),
	)

	if res := e.Run(); res.Err != nil {
		return 0, fmt.Errorf("reference run failed: %w", res.Err)
	}

	return e.InstructionCount(), nil
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	w := h.config.Output

	_, _ = fmt.Fprintln(w, "=== rvsim Timing Benchmark Results ===")
	_, _ = fmt.Fprintln(w, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(w, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(w, "  Description: %s\n", r.Description)
		if r.Error != "" {
			_, _ = fmt.Fprintf(w, "  Error: %s\n", r.Error)
		}
		_, _ = fmt.Fprintf(w, "  Exit Code: %d (expected %d)\n", r.ExitCode, r.ExpectedExit)
		_, _ = fmt.Fprintln(w, "  --- Timing ---")
		_, _ = fmt.Fprintf(w, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(w, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(w, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(w, "  Simulated Time:       %.1f ns\n", r.SimulatedTimeNs)
		_, _ = fmt.Fprintln(w, "  --- Hazards ---")
		_, _ = fmt.Fprintf(w, "  Data Hazards:         %d (%d delay cycles)\n",
			r.DataHazards, r.DataHazardDelays)
		_, _ = fmt.Fprintf(w, "  Control Hazards:      %d (%d delay cycles)\n",
			r.ControlHazards, r.ControlHazardDelays)
		_, _ = fmt.Fprintf(w, "  Pipeline Flushes:     %d\n", r.PipelineFlushes)

		for _, cr := range r.Caches {
			_, _ = fmt.Fprintf(w, "  --- %s ---\n", cr.Name)
			_, _ = fmt.Fprintf(w, "  Hits:   %d\n", cr.Hits)
			_, _ = fmt.Fprintf(w, "  Misses: %d\n", cr.Misses)
		}

		_, _ = fmt.Fprintf(w, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(w, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	w := h.config.Output

	_, _ = fmt.Fprintln(w,
		"name,cycles,instructions,cpi,data_hazards,data_hazard_delays,control_hazards,control_hazard_delays,flushes,exit_code")

	for _, r := range results {
		_, _ = fmt.Fprintf(w, "%s,%d,%d,%.3f,%d,%d,%d,%d,%d,%d\n",
			r.Name,
			r.SimulatedCycles,
			r.InstructionsRetired,
			r.CPI,
			r.DataHazards,
			r.DataHazardDelays,
			r.ControlHazards,
			r.ControlHazardDelays,
			r.PipelineFlushes,
			r.ExitCode,
		)
	}
}

// PrintJSON outputs benchmark results as an indented JSON array.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	enc := json.NewEncoder(h.config.Output)
	enc.SetIndent("", "  ")

	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	return nil
}
