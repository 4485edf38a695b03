// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes PDF conversion over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/pdiddy/texmark/internal/pipeline"
	"github.com/pdiddy/texmark/pkg/types"
)

const (
	defaultMaxUpload      = 64 << 20
	defaultRequestTimeout = 10 * time.Minute
	shutdownTimeout       = 15 * time.Second
)

// Converter runs one conversion.
type Converter interface {
	Convert(ctx context.Context, pdfPath, outputDir string) (types.ConversionArtifact, error)
}

// RunLister returns recent conversion runs.
type RunLister interface {
	Runs(ctx context.Context, limit int) ([]types.RunRecord, error)
}

// Server routes HTTP requests to the conversion pipeline.
type Server struct {
	cfg       types.ServerConfig
	conv      Converter
	outputDir string
	runs      RunLister
	auth      http.Handler
	log       zerolog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithRuns serves GET /runs from l.
func WithRuns(l RunLister) Option {
	return func(s *Server) { s.runs = l }
}

// WithAuth mounts h at /auth.
func WithAuth(h http.Handler) Option {
	return func(s *Server) { s.auth = h }
}

// New returns a Server writing conversions to outputDir.
func New(cfg types.ServerConfig, conv Converter, outputDir string, log zerolog.Logger, opts ...Option) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	s := &Server{
		cfg:       cfg,
		conv:      conv,
		outputDir: outputDir,
		log:       log.With().Str("component", "server").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(hlog.NewHandler(s.log))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(s.cfg.RequestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "texmark"})
	})
	r.Post("/convert", s.handleConvert)
	if s.runs != nil {
		r.Get("/runs", s.handleRuns)
	}
	if s.auth != nil {
		r.Mount("/auth", s.auth)
	}
	return r
}

// ListenAndServe serves on cfg.Addr until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// convertResponse is the body of a successful POST /convert.
type convertResponse struct {
	OutputPath string                   `json:"output_path"`
	Images     int                      `json:"images"`
	Failures   int                      `json:"failures"`
	Formulas   []types.FormulaCandidate `json:"formulas"`
	Markdown   string                   `json:"markdown"`
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	file, hdr, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	tmpDir, err := os.MkdirTemp("", "texmark-upload-*")
	if err != nil {
		s.log.Error().Err(err).Msg("creating upload directory")
		writeError(w, http.StatusInternalServerError, "cannot stage upload")
		return
	}
	defer os.RemoveAll(tmpDir)

	name := filepath.Base(filepath.Clean("/" + hdr.Filename))
	if name == "/" || name == "." {
		name = "upload.pdf"
	}
	pdfPath := filepath.Join(tmpDir, name)

	if err := saveUpload(pdfPath, file); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		s.log.Error().Err(err).Msg("staging upload")
		writeError(w, http.StatusInternalServerError, "cannot stage upload")
		return
	}

	art, err := s.conv.Convert(r.Context(), pdfPath, s.outputDir)
	if err != nil {
		if errors.Is(r.Context().Err(), context.DeadlineExceeded) {
			// The Timeout middleware answers 504 once the handler returns.
			s.log.Warn().Err(err).Str("pdf", name).Msg("conversion timed out")
			return
		}
		writeError(w, statusFor(err), err.Error())
		return
	}

	formulas := art.Formulas
	if formulas == nil {
		formulas = []types.FormulaCandidate{}
	}
	writeJSON(w, http.StatusOK, convertResponse{
		OutputPath: art.OutputPath,
		Images:     art.Images,
		Failures:   art.Failures,
		Formulas:   formulas,
		Markdown:   art.Markdown,
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	runs, err := s.runs.Runs(r.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("listing runs")
		writeError(w, http.StatusInternalServerError, "cannot list runs")
		return
	}
	if runs == nil {
		runs = []types.RunRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// statusFor maps a pipeline failure to an HTTP status.
func statusFor(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	var se *pipeline.StageError
	if !errors.As(err, &se) {
		return http.StatusInternalServerError
	}
	switch se.Stage {
	case pipeline.StageProvisioning:
		return http.StatusServiceUnavailable
	case pipeline.StageStructural, pipeline.StageExtraction:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func saveUpload(path string, src io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
