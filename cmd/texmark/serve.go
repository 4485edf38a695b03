// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/texmark/internal/auth"
	"github.com/pdiddy/texmark/internal/drive"
	"github.com/pdiddy/texmark/internal/secrets"
	"github.com/pdiddy/texmark/internal/server"
)

// sessionSweepInterval is how often expired sign-in sessions are dropped.
const sessionSweepInterval = 10 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve conversions over HTTP",
	Long: `Serve starts an HTTP server:

  GET  /healthz   liveness
  POST /convert   multipart upload (field "file"), returns the conversion
  GET  /runs      recent conversions, when the ledger is enabled
  /auth/...       sign-in and remote file listing, when auth is enabled

OCR models are provisioned before the listener starts.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default \":8080\")")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.pipeline.Start(ctx); err != nil {
		return err
	}

	var opts []server.Option
	if a.ledger != nil {
		opts = append(opts, server.WithRuns(a.ledger))
	}

	if cfg.Auth.Enabled {
		h, err := authHandler(cmd)
		if err != nil {
			return err
		}
		opts = append(opts, server.WithAuth(h))
	}

	return server.New(cfg.Server, a.pipeline, cfg.Output.Dir, log, opts...).ListenAndServe(ctx)
}

// authHandler builds the /auth routes. The client secret comes from
// auth.client_secret_file or, failing that, the google-client-secret secret.
func authHandler(cmd *cobra.Command) (http.Handler, error) {
	sessions := auth.NewSessionStore(cfg.Auth.SessionTTL)
	go sessions.Run(cmd.Context(), sessionSweepInterval)

	lister := drive.NewLister()

	var (
		svc *auth.Service
		err error
	)
	switch {
	case cfg.Auth.ClientSecretFile != "":
		svc, err = auth.LoadService(cfg.Auth, sessions, lister, log)
	case loadedSecrets[secrets.GoogleClientSecret] != "":
		svc, err = auth.NewService(cfg.Auth, []byte(loadedSecrets[secrets.GoogleClientSecret]), sessions, lister, log)
	default:
		err = errors.New("auth is enabled but no client secret is configured (auth.client_secret_file or .secrets/google-client-secret)")
	}
	if err != nil {
		return nil, err
	}
	return svc.Routes(), nil
}
