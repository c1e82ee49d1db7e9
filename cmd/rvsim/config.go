package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	var savePath string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print or save the machine configuration.",
		Long: `Config prints the configuration selected by --config, or the ` +
			`default one, as JSON. With --save it writes the configuration ` +
			`to a file that --config accepts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if savePath != "" {
				if err := opts.machine.Save(savePath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved config to %s\n", savePath)
				return nil
			}

			data, err := json.MarshalIndent(opts.machine, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to serialize config: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&savePath, "save", "", "Write the configuration to this file")

	return cmd
}
