// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package formula

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/rs/zerolog"

	"github.com/pdiddy/texmark/pkg/types"
)

// Cache stores recognitions keyed by the hex SHA-256 of the image bytes.
type Cache interface {
	LookupFormula(ctx context.Context, digest string) (latex string, ok bool, err error)
	StoreFormula(ctx context.Context, digest, latex string) error
}

// CachedRecognizer consults a Cache before delegating to another
// Recognizer and stores successful recognitions. Cache failures are logged
// and never fail recognition.
type CachedRecognizer struct {
	next  Recognizer
	cache Cache
	log   zerolog.Logger
}

// NewCachedRecognizer wraps next with cache.
func NewCachedRecognizer(next Recognizer, cache Cache, log zerolog.Logger) *CachedRecognizer {
	return &CachedRecognizer{next: next, cache: cache, log: log}
}

// Digest returns the cache key for image data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (c *CachedRecognizer) Recognize(ctx context.Context, img types.PageImage) (string, error) {
	digest := Digest(img.Data)

	latex, ok, err := c.cache.LookupFormula(ctx, digest)
	if err != nil {
		c.log.Warn().Err(err).Str("digest", digest).Msg("formula cache lookup failed")
	} else if ok {
		c.log.Debug().Int("page", img.Page).Msg("formula cache hit")
		return latex, nil
	}

	latex, err = c.next.Recognize(ctx, img)
	if err != nil {
		return "", err
	}

	if err := c.cache.StoreFormula(ctx, digest, latex); err != nil {
		c.log.Warn().Err(err).Str("digest", digest).Msg("formula cache store failed")
	}
	return latex, nil
}

// Start forwards to the wrapped recognizer when it has a Start method.
func (c *CachedRecognizer) Start(ctx context.Context) error {
	if s, ok := c.next.(interface{ Start(context.Context) error }); ok {
		return s.Start(ctx)
	}
	return nil
}
