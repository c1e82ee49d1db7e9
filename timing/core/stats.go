package core

import (
	"fmt"
	"io"
	"strings"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/rvsim/timing/cache"
)

// CacheStats are the statistics of one named cache.
type CacheStats struct {
	Name string
	cache.Statistics
}

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64

	DataHazards         uint64
	DataHazardDelays    uint64
	ControlHazards      uint64
	ControlHazardDelays uint64

	// DelayCycles is the number of cycles fetch was held.
	DelayCycles uint64
	// Flushes is the number of pipeline flushes.
	Flushes uint64

	// FetchLatency and DataLatency sum the latencies reported by the
	// instruction and data memories.
	FetchLatency uint64
	DataLatency  uint64

	// SimulatedTime is Cycles at the core clock.
	SimulatedTime sim.VTimeInSec

	Caches []CacheStats
}

// CPI returns the cycles per instruction.
func (s Stats) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	pipeStats := c.Pipeline.Stats()
	data := c.DataHazards.Stats()
	control := c.ControlHazards.Stats()

	s := Stats{
		Cycles:              pipeStats.Cycles,
		Instructions:        pipeStats.Instructions,
		DataHazards:         data.Hazards,
		DataHazardDelays:    data.DelayCycles,
		ControlHazards:      control.Hazards,
		ControlHazardDelays: control.DelayCycles,
		DelayCycles:         pipeStats.DelayCycles,
		Flushes:             pipeStats.Flushes,
		FetchLatency:        pipeStats.FetchLatency,
		DataLatency:         pipeStats.DataLatency,
		SimulatedTime:       c.freq.Period() * sim.VTimeInSec(pipeStats.Cycles),
	}

	for _, ca := range c.caches {
		s.Caches = append(s.Caches, CacheStats{Name: ca.Name(), Statistics: ca.Stats()})
	}

	return s
}

// Report writes the statistics in a human readable form.
func (s Stats) Report(w io.Writer) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "cycles:                %d\n", s.Cycles)
	fmt.Fprintf(&sb, "instructions:          %d\n", s.Instructions)
	fmt.Fprintf(&sb, "CPI:                   %.3f\n", s.CPI())
	fmt.Fprintf(&sb, "simulated time:        %.3e s\n", float64(s.SimulatedTime))
	fmt.Fprintf(&sb, "data hazards:          %d (%d delay cycles)\n",
		s.DataHazards, s.DataHazardDelays)
	fmt.Fprintf(&sb, "control hazards:       %d (%d delay cycles)\n",
		s.ControlHazards, s.ControlHazardDelays)
	fmt.Fprintf(&sb, "fetch latency:         %d\n", s.FetchLatency)
	fmt.Fprintf(&sb, "data latency:          %d\n", s.DataLatency)

	for _, cs := range s.Caches {
		fmt.Fprintf(&sb, "%s: reads %d, writes %d, hits %d, misses %d, hit rate %.2f%%, evictions %d, write-backs %d\n",
			cs.Name, cs.Reads, cs.Writes, cs.Hits, cs.Misses, 100*cs.HitRate(),
			cs.Evictions, cs.Writebacks)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
