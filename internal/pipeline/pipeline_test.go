// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"io"
	"iter"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/texmark/internal/container"
	"github.com/pdiddy/texmark/internal/convert"
	"github.com/pdiddy/texmark/internal/models"
	"github.com/pdiddy/texmark/pkg/types"
)

type fakeConverter struct {
	markdown string
	err      error
	startErr error
	calls    atomic.Int32
}

func (f *fakeConverter) Convert(ctx context.Context, pdfPath string) (string, error) {
	f.calls.Add(1)
	return f.markdown, f.err
}

func (f *fakeConverter) Start(ctx context.Context) error { return f.startErr }

// fakeImages yields imgs, then err if set.
type fakeImages struct {
	imgs   []types.PageImage
	err    error
	ranged atomic.Int32
}

func (f *fakeImages) Images(ctx context.Context, pdfPath string) iter.Seq2[types.PageImage, error] {
	return func(yield func(types.PageImage, error) bool) {
		f.ranged.Add(1)
		for _, img := range f.imgs {
			if !yield(img, nil) {
				return
			}
		}
		if f.err != nil {
			yield(types.PageImage{}, f.err)
		}
	}
}

type result struct {
	latex string
	err   error
	panic bool
}

// fakeRecognizer answers by image payload.
type fakeRecognizer map[string]result

func (f fakeRecognizer) Recognize(ctx context.Context, img types.PageImage) (string, error) {
	r := f[string(img.Data)]
	if r.panic {
		panic("corrupt image")
	}
	return r.latex, r.err
}

type fakeRecorder struct {
	runs []types.RunRecord
	err  error
}

func (f *fakeRecorder) RecordRun(ctx context.Context, rec types.RunRecord) (string, error) {
	f.runs = append(f.runs, rec)
	return "run-1", f.err
}

func img(page int, data string) types.PageImage {
	return types.PageImage{Page: page, Ordinal: 1, Data: []byte(data), Format: "png"}
}

func writePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "abc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
	return path
}

const structural = "# Title\n\nSome text.\n"

func TestConvertScenarios(t *testing.T) {
	tests := []struct {
		name         string
		images       []types.PageImage
		rec          fakeRecognizer
		wantMarkdown string
		wantFormulas []types.FormulaCandidate
		wantFailures int
	}{
		{
			name:         "formula on page 2 of 3",
			images:       []types.PageImage{img(2, "half")},
			rec:          fakeRecognizer{"half": {latex: `\frac{1}{2}`}},
			wantMarkdown: structural + "\n\n**Math Formula from Page 2**:\n\n$$\n\\frac{1}{2}\n$$\n",
			wantFormulas: []types.FormulaCandidate{{Page: 2, LaTeX: `\frac{1}{2}`}},
		},
		{
			name:         "decorative image",
			images:       []types.PageImage{img(1, "logo")},
			rec:          fakeRecognizer{"logo": {latex: "logo"}},
			wantMarkdown: structural,
		},
		{
			name:         "no images",
			wantMarkdown: structural,
		},
		{
			name:   "failure does not hide later formulas",
			images: []types.PageImage{img(1, "bad"), img(3, "good")},
			rec: fakeRecognizer{
				"bad":  {err: errors.New("cannot decode")},
				"good": {latex: `\frac{a}{b}`},
			},
			wantMarkdown: structural + "\n\n**Math Formula from Page 3**:\n\n$$\n\\frac{a}{b}\n$$\n",
			wantFormulas: []types.FormulaCandidate{{Page: 3, LaTeX: `\frac{a}{b}`}},
			wantFailures: 1,
		},
		{
			name:   "panic is isolated",
			images: []types.PageImage{img(1, "boom"), img(1, "eq")},
			rec: fakeRecognizer{
				"boom": {panic: true},
				"eq":   {latex: "x = y"},
			},
			wantMarkdown: structural + "\n\n**Math Formula from Page 1**:\n\n$$\nx = y\n$$\n",
			wantFormulas: []types.FormulaCandidate{{Page: 1, LaTeX: "x = y"}},
			wantFailures: 1,
		},
		{
			name:   "extraction order kept",
			images: []types.PageImage{img(1, "a"), img(1, "b"), img(4, "c")},
			rec: fakeRecognizer{
				"a": {latex: "a = 1"},
				"b": {latex: "b = 2"},
				"c": {latex: `\sum_i c_i`},
			},
			wantMarkdown: structural +
				"\n\n**Math Formula from Page 1**:\n\n$$\na = 1\n$$\n" + "\n" +
				"\n\n**Math Formula from Page 1**:\n\n$$\nb = 2\n$$\n" + "\n" +
				"\n\n**Math Formula from Page 4**:\n\n$$\n\\sum_i c_i\n$$\n",
			wantFormulas: []types.FormulaCandidate{
				{Page: 1, LaTeX: "a = 1"},
				{Page: 1, LaTeX: "b = 2"},
				{Page: 4, LaTeX: `\sum_i c_i`},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdf := writePDF(t)
			outDir := filepath.Join(t.TempDir(), "output")
			p := New(&fakeConverter{markdown: structural}, &fakeImages{imgs: tt.images}, tt.rec, zerolog.Nop())

			art, err := p.Convert(context.Background(), pdf, outDir)
			require.NoError(t, err)

			assert.Equal(t, filepath.Join(outDir, "newabc.md"), art.OutputPath)
			assert.Equal(t, tt.wantMarkdown, art.Markdown)
			assert.Equal(t, tt.wantFormulas, art.Formulas)
			assert.Equal(t, len(tt.images), art.Images)
			assert.Equal(t, tt.wantFailures, art.Failures)

			data, err := os.ReadFile(art.OutputPath)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMarkdown, string(data))
		})
	}
}

// silentRuntime is a container runtime whose containers print nothing.
type silentRuntime struct{}

func (silentRuntime) Name() string             { return "fake" }
func (silentRuntime) Available() bool          { return true }
func (silentRuntime) ImageExists(string) error { return nil }
func (silentRuntime) Run(ctx context.Context, spec container.RunSpec, stdin io.Reader, stdout io.Writer) error {
	_, err := io.Copy(io.Discard, stdin)
	return err
}

type cachedModels struct{}

func (cachedModels) ProvisionOCR(ctx context.Context) (models.OCRModels, error) {
	return models.OCRModels{Dir: "/cache", Files: models.DefaultOCRFiles}, nil
}

func TestConvertEmptyStructuralKeepsFormulas(t *testing.T) {
	pdf := writePDF(t)
	outDir := filepath.Join(t.TempDir(), "output")
	conv := convert.NewDoclingConverter(silentRuntime{}, "", cachedModels{}, zerolog.Nop())
	rec := fakeRecognizer{"half": {latex: `\frac{1}{2}`}}
	p := New(conv, &fakeImages{imgs: []types.PageImage{img(1, "half")}}, rec, zerolog.Nop())

	art, err := p.Convert(context.Background(), pdf, outDir)
	require.NoError(t, err)

	want := "\n\n**Math Formula from Page 1**:\n\n$$\n\\frac{1}{2}\n$$\n"
	assert.Equal(t, want, art.Markdown)
	assert.Equal(t, []types.FormulaCandidate{{Page: 1, LaTeX: `\frac{1}{2}`}}, art.Formulas)

	data, err := os.ReadFile(filepath.Join(outDir, "newabc.md"))
	require.NoError(t, err)
	assert.Equal(t, want, string(data))
}

func TestConvertFatalStages(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name      string
		conv      *fakeConverter
		images    *fakeImages
		wantStage Stage
	}{
		{
			name:      "provisioning",
			conv:      &fakeConverter{markdown: structural, startErr: boom},
			images:    &fakeImages{},
			wantStage: StageProvisioning,
		},
		{
			name:      "structural",
			conv:      &fakeConverter{err: boom},
			images:    &fakeImages{},
			wantStage: StageStructural,
		},
		{
			name:      "extraction",
			conv:      &fakeConverter{markdown: structural},
			images:    &fakeImages{err: boom},
			wantStage: StageExtraction,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outDir := filepath.Join(t.TempDir(), "output")
			p := New(tt.conv, tt.images, fakeRecognizer{}, zerolog.Nop())

			_, err := p.Convert(context.Background(), writePDF(t), outDir)
			require.Error(t, err)

			var se *StageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.wantStage, se.Stage)
			assert.ErrorIs(t, err, boom)
			assert.NoDirExists(t, outDir, "no output on fatal failure")
		})
	}
}

func TestConvertProvisioningBeforeWork(t *testing.T) {
	conv := &fakeConverter{startErr: errors.New("hub unreachable")}
	images := &fakeImages{}
	p := New(conv, images, fakeRecognizer{}, zerolog.Nop())

	_, err := p.Convert(context.Background(), writePDF(t), t.TempDir())
	require.Error(t, err)
	assert.Zero(t, conv.calls.Load())
	assert.Zero(t, images.ranged.Load())
}

func TestConvertWriteFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	p := New(&fakeConverter{markdown: structural}, &fakeImages{}, fakeRecognizer{}, zerolog.Nop())
	_, err := p.Convert(context.Background(), writePDF(t), blocker)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageWrite, se.Stage)
}

func TestConvertDefaultOutputDir(t *testing.T) {
	t.Chdir(t.TempDir())

	p := New(&fakeConverter{markdown: structural}, &fakeImages{}, fakeRecognizer{}, zerolog.Nop())
	art, err := p.Convert(context.Background(), writePDF(t), "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(DefaultOutputDir, "newabc.md"), art.OutputPath)
}

func TestConvertRecordsRuns(t *testing.T) {
	rec := &fakeRecorder{}
	pdf := writePDF(t)

	ok := New(&fakeConverter{markdown: structural}, &fakeImages{imgs: []types.PageImage{img(2, "half")}},
		fakeRecognizer{"half": {latex: `\frac{1}{2}`}}, zerolog.Nop(), WithRecorder(rec))
	_, err := ok.Convert(context.Background(), pdf, t.TempDir())
	require.NoError(t, err)

	failing := New(&fakeConverter{err: errors.New("bad pdf")}, &fakeImages{}, fakeRecognizer{}, zerolog.Nop(), WithRecorder(rec))
	_, err = failing.Convert(context.Background(), pdf, t.TempDir())
	require.Error(t, err)

	require.Len(t, rec.runs, 2)

	assert.Equal(t, types.RunSucceeded, rec.runs[0].Status)
	assert.Equal(t, 1, rec.runs[0].Images)
	assert.Equal(t, 1, rec.runs[0].Formulas)
	assert.NotEmpty(t, rec.runs[0].OutputPath)
	assert.Len(t, rec.runs[0].SourceSHA256, 64)

	assert.Equal(t, types.RunFailed, rec.runs[1].Status)
	assert.Equal(t, "structural: bad pdf", rec.runs[1].Error)
	assert.Empty(t, rec.runs[1].OutputPath)
}

func TestConvertRecorderFailureIsNotFatal(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("database is locked")}
	p := New(&fakeConverter{markdown: structural}, &fakeImages{}, fakeRecognizer{}, zerolog.Nop(), WithRecorder(rec))

	_, err := p.Convert(context.Background(), writePDF(t), t.TempDir())
	assert.NoError(t, err)
	assert.Len(t, rec.runs, 1)
}

func TestStageError(t *testing.T) {
	inner := errors.New("disk full")
	err := &StageError{Stage: StageWrite, Err: inner}
	assert.Equal(t, "write: disk full", err.Error())
	assert.ErrorIs(t, err, inner)
}
