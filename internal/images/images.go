// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package images enumerates the raster images embedded in a PDF in page
// order.
package images

import (
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"slices"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog"

	"github.com/pdiddy/texmark/pkg/types"
)

// Extractor reads embedded images with pdfcpu.
type Extractor struct {
	conf *model.Configuration
	log  zerolog.Logger
}

// NewExtractor returns an Extractor that parses PDFs in relaxed validation
// mode so slightly malformed documents still yield their images.
func NewExtractor(log zerolog.Logger) *Extractor {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Extractor{
		conf: conf,
		log:  log.With().Str("component", "images").Logger(),
	}
}

// Images returns a lazy sequence of the images in the PDF at pdfPath,
// ordered by ascending page and, within a page, by ascending object number.
// Object order is stable across runs but need not match the order in which
// the page's content stream draws the images. The document is opened when the sequence is ranged over and closed when
// ranging stops.
//
// An error is yielded, ending the sequence, only when the document cannot
// be opened or parsed or ctx is cancelled. Images that cannot be decoded
// are logged and skipped.
func (e *Extractor) Images(ctx context.Context, pdfPath string) iter.Seq2[types.PageImage, error] {
	return func(yield func(types.PageImage, error) bool) {
		f, err := os.Open(pdfPath)
		if err != nil {
			yield(types.PageImage{}, fmt.Errorf("opening PDF %s: %w", pdfPath, err))
			return
		}
		defer f.Close()

		pdfCtx, err := api.ReadValidateAndOptimize(f, e.conf)
		if err != nil {
			yield(types.PageImage{}, fmt.Errorf("parsing PDF %s: %w", pdfPath, err))
			return
		}

		for page := 1; page <= pdfCtx.PageCount; page++ {
			if err := ctx.Err(); err != nil {
				yield(types.PageImage{}, err)
				return
			}

			imgs, err := pageImages(pdfCtx, page)
			if err != nil {
				e.log.Warn().Err(err).Int("page", page).Msg("skipping page images")
				continue
			}

			objNrs := make([]int, 0, len(imgs))
			for objNr := range imgs {
				objNrs = append(objNrs, objNr)
			}
			slices.Sort(objNrs)

			ordinal := 0
			for _, objNr := range objNrs {
				img := imgs[objNr]
				data, err := readImage(img)
				if err != nil {
					e.log.Warn().Err(err).Int("page", page).Int("obj", objNr).Msg("skipping unreadable image")
					continue
				}
				if len(data) == 0 {
					continue
				}

				ordinal++
				pi := types.PageImage{
					Page:    page,
					Ordinal: ordinal,
					Data:    data,
					Format:  img.FileType,
					Name:    img.Name,
				}
				if !yield(pi, nil) {
					return
				}
			}
		}
	}
}

// Collect drains seq into a slice, stopping at the first error.
func Collect(seq iter.Seq2[types.PageImage, error]) ([]types.PageImage, error) {
	var out []types.PageImage
	for img, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, img)
	}
	return out, nil
}

// pageImages extracts one page's images. pdfcpu can panic on broken image
// dictionaries; that is reported as an error for the page.
func pageImages(pdfCtx *model.Context, page int) (imgs map[int]model.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extracting images: panic: %v", r)
		}
	}()
	return pdfcpu.ExtractPageImages(pdfCtx, page, false)
}

func readImage(img model.Image) ([]byte, error) {
	if img.Reader == nil {
		return nil, nil
	}
	return io.ReadAll(img)
}
