package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/rvsim/debugger"
	"github.com/sarchlab/rvsim/loader"
	"github.com/sarchlab/rvsim/timing/core"
)

func newDebugCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "debug <program>",
		Short: "Step through a program interactively.",
		Long: `Debug loads a program and reads debugger commands from ` +
			`standard input: s, c, br, del, sbr, dr, dm, dc, p, stat, r. ` +
			`Type h at the prompt for details.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := loader.Load(args[0])
			if err != nil {
				return fmt.Errorf("failed to load program: %w", err)
			}

			c, err := core.MakeBuilder().
				WithConfig(opts.machine).
				WithLogger(opts.logger).
				Build()
			if err != nil {
				return err
			}

			if err := c.LoadProgram(prog); err != nil {
				return err
			}

			d := debugger.New(c, cmd.InOrStdin(), cmd.OutOrStdout(),
				debugger.WithLogger(opts.logger))

			return d.Loop()
		},
	}
}
