package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/rvsim/benchmarks"
)

func newBenchCmd(opts *rootOptions) *cobra.Command {
	var (
		format    string
		coreOnly  bool
		maxCycles uint64
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run the timing microbenchmarks.",
		Long: `Bench runs the RV32I microbenchmarks on the configured ` +
			`machine and reports cycles, CPI, hazards and cache behavior. ` +
			`Each benchmark is checked against the functional emulator.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config := benchmarks.DefaultConfig()
			config.Machine = opts.machine
			config.MaxCycles = maxCycles
			config.Output = cmd.OutOrStdout()
			config.Logger = opts.logger
			config.Verbose = opts.verbose

			harness := benchmarks.NewHarness(config)
			if coreOnly {
				harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
			} else {
				harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
			}

			results := harness.RunAll()

			switch format {
			case "text":
				harness.PrintResults(results)
			case "csv":
				harness.PrintCSV(results)
			case "json":
				if err := harness.PrintJSON(results); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown format %q, want text, csv or json", format)
			}

			failed := 0
			for _, r := range results {
				if !r.Passed() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d benchmarks failed", failed, len(results))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, csv or json")
	cmd.Flags().BoolVar(&coreOnly, "core", false, "Run only the core benchmark set")
	cmd.Flags().Uint64Var(&maxCycles, "max-cycles", 1_000_000, "Cycle limit per benchmark")

	return cmd
}
