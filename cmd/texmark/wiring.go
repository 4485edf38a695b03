// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"

	"github.com/pdiddy/texmark/internal/container"
	"github.com/pdiddy/texmark/internal/convert"
	"github.com/pdiddy/texmark/internal/formula"
	"github.com/pdiddy/texmark/internal/images"
	"github.com/pdiddy/texmark/internal/ledger"
	"github.com/pdiddy/texmark/internal/models"
	"github.com/pdiddy/texmark/internal/pipeline"
	"github.com/pdiddy/texmark/pkg/types"
)

// app holds the wired pipeline and the resources it owns.
type app struct {
	pipeline *pipeline.Pipeline
	ledger   *ledger.Store
}

// Close releases the ledger, if open.
func (a *app) Close() error {
	if a.ledger == nil {
		return nil
	}
	return a.ledger.Close()
}

func newProvisioner(c types.Config) *models.Provisioner {
	return models.NewProvisioner(&http.Client{Timeout: c.Models.Timeout}, c.Models, log)
}

func openLedger(c types.Config) (*ledger.Store, error) {
	if !c.Ledger.Enabled {
		return nil, nil
	}
	return ledger.Open(c.Ledger.Path)
}

// buildApp wires every stage from configuration.
func buildApp(c types.Config) (*app, error) {
	rt, err := container.DetectRuntime()
	if err != nil {
		return nil, err
	}

	conv, err := convert.New(c.Structural, rt, newProvisioner(c), log)
	if err != nil {
		return nil, err
	}

	rec, err := formula.New(c.Formula, rt, &http.Client{Timeout: c.Formula.Timeout})
	if err != nil {
		return nil, err
	}

	store, err := openLedger(c)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	var opts []pipeline.Option
	if store != nil {
		opts = append(opts, pipeline.WithRecorder(store))
		if c.Formula.Cache {
			rec = formula.NewCachedRecognizer(rec, store, log)
		}
	}

	p := pipeline.New(conv, images.NewExtractor(log), rec, log, opts...)
	return &app{pipeline: p, ledger: store}, nil
}
