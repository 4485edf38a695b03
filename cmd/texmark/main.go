// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the texmark CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/texmark/internal/logging"
	"github.com/pdiddy/texmark/internal/secrets"
	"github.com/pdiddy/texmark/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// secretsDir holds one file per secret, named by its key.
const secretsDir = ".secrets/"

// Populated by the root command before any subcommand runs.
var (
	cfg           types.Config
	log           zerolog.Logger
	loadedSecrets secrets.Set
)

// rootCmd is the base command for the texmark CLI.
var rootCmd = &cobra.Command{
	Use:   "texmark",
	Short: "Convert PDFs to Markdown with LaTeX formulas",
	Long: `texmark converts a PDF into one Markdown document. A layout-aware
converter produces the text structure; images embedded in the pages are run
through LaTeX OCR and those that look like formulas are appended as display
math blocks labelled with their page.

Conversion runs in containers (docker or podman). OCR models are fetched from
the model hub on first use and cached locally.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.Unmarshal(&cfg); err != nil {
			return fmt.Errorf("reading configuration: %w", err)
		}
		log = logging.New(cfg.Log, os.Stderr)

		if f := viper.ConfigFileUsed(); f != "" {
			log.Debug().Str("file", f).Msg("using config file")
		}

		s, err := secrets.Load(secretsDir, log)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if keys := s.Keys(); len(keys) > 0 {
			log.Debug().Strs("keys", keys).Msg("loaded secrets")
		}
		cfg.Models.Token = s.Get(secrets.HuggingFaceToken, cfg.Models.Token)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./texmark.yaml or ~/.config/texmark/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: console or json")

	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	setDefaults()
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("texmark")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "texmark"))
		}
	}

	viper.SetEnvPrefix("TEXMARK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "Error reading config file:", err)
		}
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
