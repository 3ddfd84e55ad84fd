package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"phieu/internal/runlog"
)

func newRunsCommand(cmdCtx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := runlog.Open(cfg)
			if err != nil {
				return fmt.Errorf("open run history: %w", err)
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortID(run.ID),
					run.RecordID,
					string(run.Status),
					run.Stage,
					strconv.Itoa(run.WarningCount),
					runDetail(run),
					run.CreatedAt.Local().Format(time.DateTime),
				})
			}
			headers := []string{"Run", "Record", "Status", "Stage", "Warnings", "Detail", "Started"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft}
			fmt.Fprintln(out, renderTable(headers, rows, aligns, colorEnabled(out)))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runDetail(run *runlog.Run) string {
	if run.Status == runlog.StatusFailed {
		return run.ErrorMessage
	}
	return run.OutputFile
}
