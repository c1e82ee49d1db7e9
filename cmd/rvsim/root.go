package main

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/rvsim/timing/config"
)

// rootOptions carries the persistent flags and the state they produce to the
// subcommands.
type rootOptions struct {
	configPath string
	verbose    bool

	logger  *logrus.Logger
	machine *config.Config

	// exitCode is the process exit status when the command succeeds.
	exitCode int
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rvsim",
		Short: "rvsim is a cycle-level RV32I pipeline simulator.",
		Long: `rvsim simulates a 5-stage RV32I pipeline with forwarding, ` +
			`load-use and control hazard handling, and a configurable ` +
			`cache hierarchy.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"Path to a machine configuration JSON file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false,
		"Log every pipeline stage and hazard")

	cmd.AddCommand(
		newRunCmd(opts),
		newDebugCmd(opts),
		newBenchCmd(opts),
		newConfigCmd(opts),
	)

	return cmd
}

func (o *rootOptions) setup(logOutput io.Writer) error {
	o.logger = logrus.New()
	o.logger.SetOutput(logOutput)
	if o.verbose {
		o.logger.SetLevel(logrus.DebugLevel)
	}

	if o.configPath == "" {
		o.machine = config.DefaultConfig()
	} else {
		machine, err := config.Load(o.configPath)
		if err != nil {
			return err
		}
		o.machine = machine
	}

	if err := o.machine.Validate(); err != nil {
		return fmt.Errorf("invalid config %q: %w", o.configPath, err)
	}

	return nil
}

// execute runs the command line and returns the process exit status.
func execute(args []string, in io.Reader, out, errOut io.Writer) int {
	opts := &rootOptions{}

	cmd := newRootCmd(opts)
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return 1
	}

	return opts.exitCode
}
