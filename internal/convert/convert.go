// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns a PDF into structural Markdown (headings,
// paragraphs, tables) with pluggable container backends.
package convert

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pdiddy/texmark/internal/container"
	"github.com/pdiddy/texmark/internal/models"
	"github.com/pdiddy/texmark/pkg/types"
)

// Converter transforms a PDF file into Markdown text. Different backends
// (docling, markitdown) implement this interface.
type Converter interface {
	// Convert reads a PDF at pdfPath and returns the Markdown content.
	Convert(ctx context.Context, pdfPath string) (string, error)
}

// Starter is implemented by converters that must acquire resources, such as
// OCR models, before the first conversion. Start is idempotent.
type Starter interface {
	Start(ctx context.Context) error
}

// ModelSource provisions the OCR models a converter mounts into its
// container.
type ModelSource interface {
	ProvisionOCR(ctx context.Context) (models.OCRModels, error)
}

// Default container images per backend.
const (
	DefaultDoclingImage    = "docling-rapidocr:latest"
	DefaultMarkitdownImage = "markitdown:latest"
)

// New returns the converter selected by cfg.Backend. The docling backend
// requires src; markitdown ignores it.
func New(cfg types.StructuralConfig, rt container.Runtime, src ModelSource, log zerolog.Logger) (Converter, error) {
	switch cfg.Backend {
	case types.BackendDocling, "":
		if src == nil {
			return nil, fmt.Errorf("docling backend requires a model source")
		}
		return NewDoclingConverter(rt, cfg.Image, src, log), nil
	case types.BackendMarkitdown:
		return NewMarkitdownConverter(rt, cfg.Image), nil
	default:
		return nil, fmt.Errorf("unknown structural backend %q", cfg.Backend)
	}
}
