// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage the local OCR model cache",
}

var modelsPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Download the OCR models if they are not cached",
	Long: `Pull fetches the text detection, recognition and classification models
from the model hub into the local cache and prints the cache directory
followed by the host path of each model. Files already present are not
downloaded again.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newProvisioner(cfg).ProvisionOCR(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, m.Dir)
		for _, f := range m.Files.All() {
			fmt.Fprintf(out, "  %s\n", m.Path(f))
		}
		return nil
	},
}

var modelsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the cache directory of the configured model repository",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), newProvisioner(cfg).Dir(cfg.Models.RepoID))
	},
}

func init() {
	modelsCmd.AddCommand(modelsPullCmd, modelsPathCmd)
	rootCmd.AddCommand(modelsCmd)
}
