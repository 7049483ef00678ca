package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mediagrab/internal/logging"
	"mediagrab/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the daemon log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := logging.CurrentLogPath(cfg.Paths.LogDir)
			out := cmd.OutOrStdout()
			err = logs.Tail(cmd.Context(), path, logs.Options{Lines: lines, Follow: follow}, func(line string) error {
				_, err := fmt.Fprintln(out, line)
				return err
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	return cmd
}
