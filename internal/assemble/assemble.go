// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package assemble merges structural Markdown with recognised formulas and
// writes the result next to other conversions in the output directory.
package assemble

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/texmark/pkg/types"
)

// outputPrefix is prepended to the source basename to form the output name.
const outputPrefix = "new"

// Fragment renders one formula as a labelled display-math block.
func Fragment(f types.FormulaCandidate) string {
	return fmt.Sprintf("\n\n**Math Formula from Page %d**:\n\n$$\n%s\n$$\n", f.Page, f.LaTeX)
}

// Markdown appends the formula fragments, in order and joined by newlines,
// to the structural Markdown. With no formulas the structural Markdown is
// returned unchanged.
func Markdown(structural string, formulas []types.FormulaCandidate) string {
	if len(formulas) == 0 {
		return structural
	}
	frags := make([]string, len(formulas))
	for i, f := range formulas {
		frags[i] = Fragment(f)
	}
	return structural + strings.Join(frags, "\n")
}

// OutputPath returns <outputDir>/new<basename>.md, where basename is the
// final element of pdfPath without its last extension.
func OutputPath(pdfPath, outputDir string) string {
	base := filepath.Base(pdfPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, outputPrefix+base+".md")
}

// Write creates outputDir if needed and writes markdown as UTF-8 to the
// path given by OutputPath, replacing any existing file. The content is
// written to a temp file and renamed into place so a failed write never
// leaves a truncated document.
func Write(pdfPath, outputDir, markdown string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory %s: %w", outputDir, err)
	}

	outPath := OutputPath(pdfPath, outputDir)

	tmpFile, err := os.CreateTemp(outputDir, ".texmark-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.WriteString(markdown); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing %s: %w", outPath, err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("setting permissions on %s: %w", outPath, err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming temp file to %s: %w", outPath, err)
	}

	return outPath, nil
}
