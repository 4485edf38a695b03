// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var convertCmd = &cobra.Command{
	Use:   "convert <pdf>",
	Short: "Convert a PDF to Markdown with appended LaTeX formulas",
	Long: `Convert runs the structural converter and the formula recognizer over
one PDF and writes <output-dir>/new<name>.md, replacing any earlier output.
The path of the written file is printed on stdout.

Images whose recognition fails are skipped with a warning; any other failure
aborts the conversion with a non-zero exit status.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringP("output-dir", "o", "", "directory receiving the Markdown file (default \"output\")")
	convertCmd.Flags().String("backend", "", "structural backend: docling or markitdown")
	convertCmd.Flags().String("formula-backend", "", "formula backend: container or http")

	viper.BindPFlag("output.dir", convertCmd.Flags().Lookup("output-dir"))
	viper.BindPFlag("structural.backend", convertCmd.Flags().Lookup("backend"))
	viper.BindPFlag("formula.backend", convertCmd.Flags().Lookup("formula-backend"))

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	art, err := a.pipeline.Convert(cmd.Context(), args[0], cfg.Output.Dir)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), art.OutputPath)
	return nil
}
