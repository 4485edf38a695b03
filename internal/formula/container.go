// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package formula

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/texmark/internal/container"
	"github.com/pdiddy/texmark/pkg/types"
)

// DefaultImage is the pix2tex container used by ContainerRecognizer.
const DefaultImage = "pix2tex:latest"

// ContainerRecognizer runs one pix2tex container per image. The image is
// written to stdin and the LaTeX is read from stdout. The container has no
// network access.
type ContainerRecognizer struct {
	runtime container.Runtime
	image   string
}

// NewContainerRecognizer returns a recognizer running image through rt. An
// empty image selects DefaultImage.
func NewContainerRecognizer(rt container.Runtime, image string) *ContainerRecognizer {
	if image == "" {
		image = DefaultImage
	}
	return &ContainerRecognizer{runtime: rt, image: image}
}

// Start verifies that the pix2tex image exists locally.
func (c *ContainerRecognizer) Start(ctx context.Context) error {
	if err := c.runtime.ImageExists(c.image); err != nil {
		return fmt.Errorf("pix2tex image not available in %s: %w", c.runtime.Name(), err)
	}
	return nil
}

func (c *ContainerRecognizer) Recognize(ctx context.Context, img types.PageImage) (string, error) {
	var out bytes.Buffer
	spec := container.RunSpec{Image: c.image, Network: "none"}
	if err := c.runtime.Run(ctx, spec, bytes.NewReader(img.Data), &out); err != nil {
		return "", fmt.Errorf("pix2tex on page %d image %d: %w", img.Page, img.Ordinal, err)
	}
	return strings.TrimRight(out.String(), "\r\n"), nil
}
