package core

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/timing/cache"
	"github.com/sarchlab/rvsim/timing/config"
	"github.com/sarchlab/rvsim/timing/pipeline"
)

// A Builder assembles a Core and its memory hierarchy from a Config.
type Builder struct {
	config *config.Config
	logger logrus.FieldLogger
	tracer pipeline.Tracer
}

// MakeBuilder returns a Builder using the default configuration.
func MakeBuilder() Builder {
	return Builder{
		config: config.DefaultConfig(),
		logger: logrus.StandardLogger(),
	}
}

// WithConfig sets the machine configuration.
func (b Builder) WithConfig(c *config.Config) Builder {
	b.config = c
	return b
}

// WithLogger sets the logger of the core.
func (b Builder) WithLogger(logger logrus.FieldLogger) Builder {
	b.logger = logger
	return b
}

// WithTracer sets the tracer that receives retirements and hazards.
func (b Builder) WithTracer(t pipeline.Tracer) Builder {
	b.tracer = t
	return b
}

// Build validates the configuration and creates the core. Caches are named
// L1I, L2I, ... and L1D, L2D, ..., or L1, L2, ... when unified.
func (b Builder) Build() (*Core, error) {
	if err := b.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg := b.config

	imemMain := emu.NewMainMemory(cfg.InstructionMemorySize, cfg.MemoryLatency)

	var (
		imem, dmem emu.Memory
		caches     []*cache.Cache
	)

	if cfg.Unified {
		imem, caches = buildHierarchy(imemMain, cfg.ICache, "")
		dmem = imem
	} else {
		var dcaches []*cache.Cache
		imem, caches = buildHierarchy(imemMain, cfg.ICache, "I")

		dmemMain := emu.NewMainMemory(cfg.DataMemorySize, cfg.MemoryLatency)
		dmem, dcaches = buildHierarchy(dmemMain, cfg.DCache, "D")
		caches = append(caches, dcaches...)
	}

	opts := []Option{
		WithLogger(b.logger),
		WithFrequency(cfg.Frequency()),
		WithCaches(caches...),
	}
	if b.tracer != nil {
		opts = append(opts, WithTracer(b.tracer))
	}

	return NewCore(emu.NewRegFile(), imem, dmem, opts...), nil
}

// buildHierarchy stacks the layers on top of backing, outermost first, and
// returns the level the core talks to with the caches innermost first.
func buildHierarchy(
	backing emu.Memory,
	layers []cache.Config,
	suffix string,
) (emu.Memory, []*cache.Cache) {
	mem := backing
	caches := make([]*cache.Cache, len(layers))

	for i := len(layers) - 1; i >= 0; i-- {
		c := cache.New(layers[i], mem, cache.WithName(fmt.Sprintf("L%d%s", i+1, suffix)))
		caches[i] = c
		mem = c
	}

	return mem, caches
}
