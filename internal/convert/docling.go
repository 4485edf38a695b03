// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pdiddy/texmark/internal/container"
	"github.com/pdiddy/texmark/internal/models"
)

// modelMount is where the provisioned model directory appears inside the
// docling container.
const modelMount = "/models"

// DoclingConverter converts PDFs with a docling image configured for
// RapidOCR. The image reads the PDF on stdin, writes Markdown on stdout, and
// takes the OCR model paths as --det-model, --rec-model and --cls-model.
type DoclingConverter struct {
	runtime container.Runtime
	image   string
	models  ModelSource
	log     zerolog.Logger

	mu  sync.Mutex
	ocr *models.OCRModels
}

// NewDoclingConverter creates a converter running image through rt. An
// empty image selects DefaultDoclingImage.
func NewDoclingConverter(rt container.Runtime, image string, src ModelSource, log zerolog.Logger) *DoclingConverter {
	if image == "" {
		image = DefaultDoclingImage
	}
	return &DoclingConverter{
		runtime: rt,
		image:   image,
		models:  src,
		log:     log.With().Str("component", "docling").Logger(),
	}
}

// Start verifies the image and provisions the OCR models. After a
// successful Start, later calls return immediately.
func (d *DoclingConverter) Start(ctx context.Context) error {
	_, err := d.start(ctx)
	return err
}

// start does not hold d.mu while provisioning. Concurrent first calls each
// wait on the model source under their own ctx; the source collapses them
// into one download.
func (d *DoclingConverter) start(ctx context.Context) (models.OCRModels, error) {
	d.mu.Lock()
	ocr := d.ocr
	d.mu.Unlock()
	if ocr != nil {
		return *ocr, nil
	}

	if err := d.runtime.ImageExists(d.image); err != nil {
		return models.OCRModels{}, fmt.Errorf("docling image not available in %s: %w", d.runtime.Name(), err)
	}

	m, err := d.models.ProvisionOCR(ctx)
	if err != nil {
		return models.OCRModels{}, fmt.Errorf("provisioning OCR models: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ocr == nil {
		d.log.Debug().Str("models", m.Dir).Msg("docling ready")
		d.ocr = &m
	}
	return *d.ocr, nil
}

// Convert pipes the PDF at pdfPath through the docling container and
// returns the resulting Markdown.
func (d *DoclingConverter) Convert(ctx context.Context, pdfPath string) (string, error) {
	m, err := d.start(ctx)
	if err != nil {
		return "", err
	}

	f, err := os.Open(pdfPath)
	if err != nil {
		return "", fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer f.Close()

	spec := container.RunSpec{
		Image:  d.image,
		Mounts: []container.Mount{{Source: m.Dir, Target: modelMount, ReadOnly: true}},
		Args: []string{
			"--det-model", path.Join(modelMount, m.Files.Detection),
			"--rec-model", path.Join(modelMount, m.Files.Recognition),
			"--cls-model", path.Join(modelMount, m.Files.Classification),
		},
	}

	var out bytes.Buffer
	if err := d.runtime.Run(ctx, spec, f, &out); err != nil {
		return "", fmt.Errorf("converting %s with docling: %w", pdfPath, err)
	}

	if len(bytes.TrimSpace(out.Bytes())) == 0 {
		d.log.Warn().Str("pdf", pdfPath).Msg("docling produced no text")
	}

	return out.String(), nil
}
