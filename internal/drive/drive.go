// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package drive lists a user's remote files through the Drive v3 API.
package drive

import (
	"context"
	"fmt"
	"net/http"

	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/pdiddy/texmark/pkg/types"
)

const (
	listQuery  = "trashed = false"
	listSpaces = "drive"
	listFields = "nextPageToken, files(id, name, mimeType, parents)"
)

// Lister lists non-trashed files in the user's drive.
type Lister struct {
	opts []option.ClientOption
}

// NewLister returns a Lister. opts are appended to every service
// construction; tests use them to point at a fake endpoint.
func NewLister(opts ...option.ClientOption) *Lister {
	return &Lister{opts: opts}
}

// ListFiles follows every result page and returns the flat file list.
// client must carry the user's credentials.
func (l *Lister) ListFiles(ctx context.Context, client *http.Client) ([]types.DriveFile, error) {
	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, l.opts...)
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating drive service: %w", err)
	}

	files := []types.DriveFile{}
	err = svc.Files.List().
		Q(listQuery).
		Spaces(listSpaces).
		Fields(listFields).
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				files = append(files, types.DriveFile{
					ID:       f.Id,
					Name:     f.Name,
					MimeType: f.MimeType,
					Parents:  f.Parents,
				})
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch drive files: %w", err)
	}
	return files, nil
}
