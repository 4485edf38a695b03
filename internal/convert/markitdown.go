// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/pdiddy/texmark/internal/container"
)

// MarkitdownConverter converts PDFs by piping them through the markitdown
// container image. It needs no OCR models and so cannot read scanned pages.
type MarkitdownConverter struct {
	runtime container.Runtime
	image   string
}

// NewMarkitdownConverter creates a converter that uses the given container
// runtime to run image. An empty image selects DefaultMarkitdownImage.
func NewMarkitdownConverter(rt container.Runtime, image string) *MarkitdownConverter {
	if image == "" {
		image = DefaultMarkitdownImage
	}
	return &MarkitdownConverter{runtime: rt, image: image}
}

// Start verifies that the markitdown image exists locally.
func (m *MarkitdownConverter) Start(ctx context.Context) error {
	if err := m.runtime.ImageExists(m.image); err != nil {
		return fmt.Errorf("markitdown image not available in %s: %w", m.runtime.Name(), err)
	}
	return nil
}

// Convert reads the PDF at pdfPath, pipes it through the markitdown container,
// and returns the resulting Markdown text.
func (m *MarkitdownConverter) Convert(ctx context.Context, pdfPath string) (string, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return "", fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer f.Close()

	var out bytes.Buffer
	if err := m.runtime.Run(ctx, container.RunSpec{Image: m.image}, f, &out); err != nil {
		return "", fmt.Errorf("converting %s with markitdown: %w", pdfPath, err)
	}

	return out.String(), nil
}
