// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assemble

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/texmark/pkg/types"
)

func TestFragment(t *testing.T) {
	got := Fragment(types.FormulaCandidate{Page: 2, LaTeX: `\frac{1}{2}`})
	assert.Equal(t, "\n\n**Math Formula from Page 2**:\n\n$$\n\\frac{1}{2}\n$$\n", got)
}

func TestMarkdown(t *testing.T) {
	tests := []struct {
		name       string
		structural string
		formulas   []types.FormulaCandidate
		want       string
	}{
		{
			name:       "no formulas",
			structural: "# Title\n",
			want:       "# Title\n",
		},
		{
			name:       "one formula",
			structural: "# Title\n",
			formulas:   []types.FormulaCandidate{{Page: 2, LaTeX: `\frac{1}{2}`}},
			want:       "# Title\n\n\n**Math Formula from Page 2**:\n\n$$\n\\frac{1}{2}\n$$\n",
		},
		{
			name:       "two formulas joined by newline",
			structural: "body",
			formulas: []types.FormulaCandidate{
				{Page: 1, LaTeX: "a = b"},
				{Page: 3, LaTeX: "c = d"},
			},
			want: "body" +
				"\n\n**Math Formula from Page 1**:\n\n$$\na = b\n$$\n" +
				"\n" +
				"\n\n**Math Formula from Page 3**:\n\n$$\nc = d\n$$\n",
		},
		{
			name:       "empty structural",
			structural: "",
			formulas:   []types.FormulaCandidate{{Page: 1, LaTeX: "x = 1"}},
			want:       "\n\n**Math Formula from Page 1**:\n\n$$\nx = 1\n$$\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Markdown(tt.structural, tt.formulas))
		})
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name   string
		pdf    string
		outDir string
		want   string
	}{
		{"simple", "/docs/paper.pdf", "output", filepath.Join("output", "newpaper.md")},
		{"double extension", "/docs/report.v2.pdf", "out", filepath.Join("out", "newreport.v2.md")},
		{"no extension", "scan", "out", filepath.Join("out", "newscan.md")},
		{"upper case extension", "/a/Thesis.PDF", "/tmp/o", filepath.Join("/tmp/o", "newThesis.md")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OutputPath(tt.pdf, tt.outDir))
		})
	}
}

func TestWriteCreatesDirectory(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "nested", "output")

	path, err := Write("/in/abc.pdf", outDir, "# hello\n")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "newabc.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# hello\n", string(data))

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file should not remain")
}

func TestWriteOverwrites(t *testing.T) {
	outDir := t.TempDir()

	_, err := Write("doc.pdf", outDir, "first")
	require.NoError(t, err)
	path, err := Write("doc.pdf", outDir, "second")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestWriteOutputDirIsFile(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := Write("doc.pdf", blocker, "x")
	assert.Error(t, err)
}
