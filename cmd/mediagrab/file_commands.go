package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mediagrab/internal/api"
)

func newFilesCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "files",
		Short: "List downloaded files on disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.LocalFiles(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				if len(resp.Files) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No files")
					return nil
				}
				rows := make([][]string, 0, len(resp.Files))
				for _, f := range resp.Files {
					rows = append(rows, []string{
						f.Name,
						f.JobID,
						humanize.IBytes(uint64(max(f.Size, 0))),
						humanize.Time(unixSeconds(f.MTime)),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]tableColumn{
					{Header: "Name", MaxWidth: titleWidth},
					{Header: "Job"},
					{Header: "Size", Align: alignRight},
					{Header: "Modified"},
				}, rows))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw JSON response")
	return cmd
}

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Cancel all jobs and delete every downloaded file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("refusing to delete all downloads without --yes")
			}
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.CleanAll(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "Confirm deletion")
	return cmd
}

func unixSeconds(value float64) time.Time {
	sec := int64(value)
	return time.Unix(sec, int64((value-float64(sec))*float64(time.Second)))
}
