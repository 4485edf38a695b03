// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline chains structural conversion, image extraction, formula
// recognition and assembly into one PDF-to-Markdown conversion.
//
// Structural conversion and the image/formula branch run concurrently;
// their results meet only at assembly, so the output is the same as a
// sequential run. Per-image recognition failures are absorbed. Every other
// failure aborts the conversion and is reported as a *StageError.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"iter"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/texmark/internal/assemble"
	"github.com/pdiddy/texmark/internal/convert"
	"github.com/pdiddy/texmark/internal/formula"
	"github.com/pdiddy/texmark/pkg/types"
)

// DefaultOutputDir is used when Convert is given an empty output directory.
const DefaultOutputDir = "output"

// Stage names the pipeline step that failed.
type Stage string

const (
	StageProvisioning Stage = "provisioning"
	StageStructural   Stage = "structural"
	StageExtraction   Stage = "extraction"
	StageWrite        Stage = "write"
)

// StageError is a fatal pipeline failure.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return string(e.Stage) + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ImageSource enumerates the images of a PDF in page order.
type ImageSource interface {
	Images(ctx context.Context, pdfPath string) iter.Seq2[types.PageImage, error]
}

// RunRecorder stores a summary of each conversion.
type RunRecorder interface {
	RecordRun(ctx context.Context, rec types.RunRecord) (string, error)
}

// Pipeline converts PDFs to Markdown with formulas appended.
type Pipeline struct {
	converter  convert.Converter
	images     ImageSource
	recognizer formula.Recognizer
	recorder   RunRecorder
	log        zerolog.Logger
	now        func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRecorder records every conversion, successful or not, with r.
func WithRecorder(r RunRecorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// New assembles a pipeline from its stages.
func New(c convert.Converter, images ImageSource, r formula.Recognizer, log zerolog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		converter:  c,
		images:     images,
		recognizer: r,
		log:        log.With().Str("component", "pipeline").Logger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start prepares stages that need it, such as provisioning OCR models,
// before any document is touched. It is called by Convert and may be
// called earlier to fail fast.
func (p *Pipeline) Start(ctx context.Context) error {
	for _, stage := range []any{p.converter, p.recognizer} {
		if s, ok := stage.(convert.Starter); ok {
			if err := s.Start(ctx); err != nil {
				return &StageError{Stage: StageProvisioning, Err: err}
			}
		}
	}
	return nil
}

// Convert converts the PDF at pdfPath and writes
// <outputDir>/new<basename>.md. The returned error, if any, is a
// *StageError.
func (p *Pipeline) Convert(ctx context.Context, pdfPath, outputDir string) (types.ConversionArtifact, error) {
	if outputDir == "" {
		outputDir = DefaultOutputDir
	}

	started := p.now()
	log := p.log.With().Str("pdf", pdfPath).Logger()
	log.Info().Msg("converting")

	art, err := p.convert(ctx, pdfPath, outputDir, log)
	elapsed := p.now().Sub(started)

	if err != nil {
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("conversion failed")
	} else {
		log.Info().
			Str("output", art.OutputPath).
			Int("images", art.Images).
			Int("formulas", len(art.Formulas)).
			Int("failures", art.Failures).
			Dur("elapsed", elapsed).
			Msg("converted")
	}

	p.record(ctx, pdfPath, art, err, started, elapsed)
	return art, err
}

func (p *Pipeline) convert(ctx context.Context, pdfPath, outputDir string, log zerolog.Logger) (types.ConversionArtifact, error) {
	art := types.ConversionArtifact{SourcePath: pdfPath}

	if err := p.Start(ctx); err != nil {
		return art, err
	}

	var (
		structural string
		formulas   branchResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		md, err := p.converter.Convert(gctx, pdfPath)
		if err != nil {
			return &StageError{Stage: StageStructural, Err: err}
		}
		structural = md
		return nil
	})
	g.Go(func() error {
		res, err := p.recognize(gctx, pdfPath, log)
		if err != nil {
			return &StageError{Stage: StageExtraction, Err: err}
		}
		formulas = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return art, err
	}

	art.Formulas = formulas.candidates
	art.Images = formulas.images
	art.Failures = formulas.failures
	art.Markdown = assemble.Markdown(structural, formulas.candidates)

	outPath, err := assemble.Write(pdfPath, outputDir, art.Markdown)
	if err != nil {
		return art, &StageError{Stage: StageWrite, Err: err}
	}
	art.OutputPath = outPath
	return art, nil
}

type branchResult struct {
	candidates []types.FormulaCandidate
	images     int
	failures   int
}

// recognize runs the recognizer over every image in document order. Images
// are handled one at a time; only extraction errors abort the branch.
func (p *Pipeline) recognize(ctx context.Context, pdfPath string, log zerolog.Logger) (branchResult, error) {
	var res branchResult
	for img, err := range p.images.Images(ctx, pdfPath) {
		if err != nil {
			return res, err
		}
		res.images++

		out := formula.Classify(ctx, p.recognizer, img, log)
		switch {
		case out.Accepted:
			res.candidates = append(res.candidates, types.FormulaCandidate{Page: img.Page, LaTeX: out.LaTeX})
		case out.Reason == formula.ReasonFailed:
			res.failures++
		}
	}
	return res, nil
}

// record stores the run. Recording problems are logged and never change
// the outcome of the conversion.
func (p *Pipeline) record(ctx context.Context, pdfPath string, art types.ConversionArtifact, convErr error, started time.Time, elapsed time.Duration) {
	if p.recorder == nil {
		return
	}

	rec := types.RunRecord{
		SourcePath:   pdfPath,
		SourceSHA256: fileDigest(pdfPath),
		OutputPath:   art.OutputPath,
		Status:       types.RunSucceeded,
		Images:       art.Images,
		Formulas:     len(art.Formulas),
		Failures:     art.Failures,
		StartedAt:    started,
		Duration:     elapsed,
	}
	if convErr != nil {
		rec.Status = types.RunFailed
		rec.Error = convErr.Error()
	}

	// The conversion may have been cancelled; the record is still written.
	id, err := p.recorder.RecordRun(context.WithoutCancel(ctx), rec)
	if err != nil {
		p.log.Warn().Err(err).Str("pdf", pdfPath).Msg("recording run failed")
		return
	}
	p.log.Debug().Str("run", id).Msg("run recorded")
}

// fileDigest returns the hex SHA-256 of the file at path, or "" if it
// cannot be read.
func fileDigest(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}
