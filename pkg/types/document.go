// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the texmark pipeline:
// page images, formula candidates, conversion artifacts, ledger records,
// and configuration.
package types

// SourceDocument is a PDF on the local filesystem. It is only read.
type SourceDocument struct {
	Path string `json:"path" yaml:"path"`
}

// PageImage is one raster image embedded in a PDF page.
type PageImage struct {
	// Page is the 1-based page number the image was found on.
	Page int `json:"page" yaml:"page"`

	// Ordinal is the 1-based position of the image within its page, counted
	// in object-number order rather than drawing order.
	Ordinal int `json:"ordinal" yaml:"ordinal"`

	// Data is the image payload as extracted from the document.
	Data []byte `json:"-" yaml:"-"`

	// Format is the encoding tag of Data (e.g. "png", "jpg", "tif").
	Format string `json:"format" yaml:"format"`

	// Name is the resource name of the image on its page (e.g. "Im1").
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// FormulaCandidate is recognised LaTeX that passed the formula heuristic.
type FormulaCandidate struct {
	// Page is the page number of the source image.
	Page int `json:"page" yaml:"page"`

	// LaTeX is the raw recogniser output.
	LaTeX string `json:"latex" yaml:"latex"`
}

// ConversionArtifact is the assembled Markdown and where it was written.
type ConversionArtifact struct {
	// SourcePath is the input PDF.
	SourcePath string `json:"source_path" yaml:"source_path"`

	// OutputPath is the written Markdown file.
	OutputPath string `json:"output_path" yaml:"output_path"`

	// Markdown is the full written content.
	Markdown string `json:"-" yaml:"-"`

	// Formulas lists the accepted candidates in output order.
	Formulas []FormulaCandidate `json:"formulas" yaml:"formulas"`

	// Images is the number of page images examined.
	Images int `json:"images" yaml:"images"`

	// Failures is the number of images whose recognition failed.
	Failures int `json:"failures" yaml:"failures"`
}
