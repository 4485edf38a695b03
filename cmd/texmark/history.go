// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/texmark/internal/ledger"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent conversions from the ledger",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "number of runs to show")
	historyCmd.Flags().String("format", "table", "output format: table, yaml, or json")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if !cfg.Ledger.Enabled {
		return errors.New("the ledger is disabled (ledger.enabled: false)")
	}
	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("format")

	store, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch format {
	case "yaml":
		return store.ExportYAML(ctx, out, limit)
	case "json":
		return store.ExportJSON(ctx, out, limit)
	case "table":
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	runs, err := store.Runs(ctx, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSTATUS\tIMAGES\tFORMULAS\tFAILURES\tDURATION\tSOURCE\tOUTPUT")
	for _, r := range runs {
		output := r.OutputPath
		if r.Error != "" {
			output = r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.Status, r.Images, r.Formulas, r.Failures,
			r.Duration.Round(time.Millisecond), r.SourcePath, output)
	}
	return tw.Flush()
}
