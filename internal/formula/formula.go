// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package formula recognises LaTeX in page images and decides which
// recognitions are kept as math formulas.
package formula

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/pdiddy/texmark/internal/container"
	"github.com/pdiddy/texmark/pkg/types"
)

// Recognizer converts one image into a LaTeX string.
type Recognizer interface {
	Recognize(ctx context.Context, img types.PageImage) (string, error)
}

// mathMarkers are substrings that mark a recognition as a formula.
var mathMarkers = []string{"=", `\frac`, "{", "}", `\sum`, `\sqrt`}

// minRunes is the length a trimmed recognition must exceed.
const minRunes = 3

// Reason explains why a recognition was rejected.
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonFailed   Reason = "recognition-failed"
	ReasonEmpty    Reason = "empty"
	ReasonTooShort Reason = "too-short"
	ReasonNoMath   Reason = "no-math-markers"
)

// Outcome is the result of classifying one image.
type Outcome struct {
	// LaTeX is the raw recognizer output, untrimmed.
	LaTeX string

	// Accepted reports whether LaTeX is kept as a formula.
	Accepted bool

	// Reason is set when Accepted is false.
	Reason Reason

	// Err is the recognizer error for ReasonFailed.
	Err error
}

// Accept reports whether latex looks like a math formula: longer than
// three characters once trimmed, and containing at least one marker.
func Accept(latex string) bool {
	return reject(latex) == ReasonNone
}

func reject(latex string) Reason {
	trimmed := strings.TrimSpace(latex)
	switch {
	case trimmed == "":
		return ReasonEmpty
	case utf8.RuneCountInString(trimmed) <= minRunes:
		return ReasonTooShort
	}
	for _, m := range mathMarkers {
		if strings.Contains(trimmed, m) {
			return ReasonNone
		}
	}
	return ReasonNoMath
}

// Classify recognizes img with r and applies the formula heuristic. It
// never fails: recognizer errors and panics become a rejected Outcome and
// are logged as warnings with the page number.
func Classify(ctx context.Context, r Recognizer, img types.PageImage, log zerolog.Logger) (out Outcome) {
	defer func() {
		if p := recover(); p != nil {
			out = Outcome{Reason: ReasonFailed, Err: fmt.Errorf("recognizer panic: %v", p)}
			log.Warn().Err(out.Err).Int("page", img.Page).Int("image", img.Ordinal).Msg("formula recognition failed")
		}
	}()

	latex, err := r.Recognize(ctx, img)
	if err != nil {
		log.Warn().Err(err).Int("page", img.Page).Int("image", img.Ordinal).Msg("formula recognition failed")
		return Outcome{Reason: ReasonFailed, Err: err}
	}

	if reason := reject(latex); reason != ReasonNone {
		log.Debug().Int("page", img.Page).Str("reason", string(reason)).Msg("image rejected")
		return Outcome{LaTeX: latex, Reason: reason}
	}
	return Outcome{LaTeX: latex, Accepted: true}
}

// New returns the recognizer selected by cfg.Backend.
func New(cfg types.FormulaConfig, rt container.Runtime, client *http.Client) (Recognizer, error) {
	switch cfg.Backend {
	case types.FormulaContainer, "":
		if rt == nil {
			return nil, fmt.Errorf("container formula backend requires a container runtime")
		}
		return NewContainerRecognizer(rt, cfg.Image), nil
	case types.FormulaHTTP:
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("http formula backend requires an endpoint")
		}
		return NewHTTPRecognizer(client, cfg), nil
	default:
		return nil, fmt.Errorf("unknown formula backend %q", cfg.Backend)
	}
}
