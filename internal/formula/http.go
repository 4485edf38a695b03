// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package formula

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/pdiddy/texmark/internal/httputil"
	"github.com/pdiddy/texmark/pkg/types"
)

// maxResponseBytes bounds a pix2tex API response body.
const maxResponseBytes = 1 << 20

// HTTPRecognizer posts images to a pix2tex API server
// (POST <endpoint>/predict/ with a multipart "file" field). The server
// answers with a JSON string holding the LaTeX.
type HTTPRecognizer struct {
	client    *http.Client
	endpoint  string
	userAgent string
}

// NewHTTPRecognizer returns a recognizer for the API at cfg.Endpoint. A nil
// client gets one with cfg.Timeout.
func NewHTTPRecognizer(client *http.Client, cfg types.FormulaConfig) *HTTPRecognizer {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPRecognizer{
		client:    client,
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		userAgent: cfg.UserAgent,
	}
}

func (h *HTTPRecognizer) Recognize(ctx context.Context, img types.PageImage) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	name := img.Name
	if name == "" {
		name = fmt.Sprintf("page%d-%d", img.Page, img.Ordinal)
	}
	if img.Format != "" {
		name += "." + img.Format
	}
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	if _, err := fw.Write(img.Data); err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint+"/predict/", bytes.NewReader(body.Bytes()))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, h.client, req, 0)
	if err != nil {
		return "", fmt.Errorf("pix2tex request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("reading pix2tex response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("pix2tex returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var latex string
	if err := json.Unmarshal(data, &latex); err != nil {
		return "", fmt.Errorf("decoding pix2tex response: %w", err)
	}
	return latex, nil
}
