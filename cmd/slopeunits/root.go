package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ArushRam/SlopeUnitDataPipeline/internal/monitoring"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/version"
)

type rootOptions struct {
	logFormat string
	logLevel  string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "slopeunits",
		Short:         "Aggregate terrain grids into slope-unit feature tables",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := monitoring.NewZapLogger(opts.logFormat, opts.logLevel)
			if err != nil {
				return err
			}
			monitoring.UseZap(logger)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "console", "Log format: console or json")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")

	cmd.AddCommand(
		newPipelineCommand("run", "Load region grids and write filtered datasets"),
		newPipelineCommand("aggregate", "Load region grids and write region dumps"),
		newPipelineCommand("process", "Read region dumps and write filtered datasets"),
		newInspectCommand(),
		newHistoryCommand(),
		newVersionCommand(),
	)
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "slopeunits %s\n", version.String())
			return err
		},
	}
}
