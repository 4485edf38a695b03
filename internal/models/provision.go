// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package models provisions OCR model artifacts from a remote model hub
// into a local, content-addressed cache.
//
// A repository identifier and revision map to one cache directory. Files
// are only ever created there by renaming a fully downloaded temp file into
// place, so concurrent provisioning (in-process or across processes) never
// exposes a partially written model.
package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/texmark/internal/httputil"
	"github.com/pdiddy/texmark/pkg/types"
)

// Defaults for the RapidOCR model set used by the structural converter.
const (
	DefaultEndpoint = "https://huggingface.co"
	DefaultRepoID   = "SWHL/RapidOCR"
	DefaultRevision = "main"
)

// DefaultOCRFiles names the detection, recognition and classification
// models inside DefaultRepoID.
var DefaultOCRFiles = types.OCRModelFiles{
	Detection:      "PP-OCRv4/en_PP-OCRv3_det_infer.onnx",
	Recognition:    "PP-OCRv4/ch_PP-OCRv4_rec_server_infer.onnx",
	Classification: "PP-OCRv3/ch_ppocr_mobile_v2.0_cls_train.onnx",
}

const defaultMaxParallel = 3

// ErrUnavailable reports that a model file is not cached locally and could
// not be fetched from the hub.
var ErrUnavailable = errors.New("model repository unavailable")

// errFlightAbandoned marks a shared download stopped by the cancellation of
// the caller that started it.
var errFlightAbandoned = errors.New("provisioning abandoned by its caller")

// OCRModels holds host paths of the three provisioned OCR artifacts.
type OCRModels struct {
	// Dir is the cache directory of the repository revision.
	Dir string

	// Files are the artifact paths relative to Dir, as configured.
	Files types.OCRModelFiles
}

// Path returns the host path of a file relative to Dir.
func (m OCRModels) Path(rel string) string {
	return filepath.Join(m.Dir, filepath.FromSlash(rel))
}

// Provisioner fetches model files on first use and serves them from the
// local cache afterwards.
type Provisioner struct {
	client *http.Client
	cfg    types.ModelConfig
	log    zerolog.Logger
	group  singleflight.Group
}

// NewProvisioner returns a Provisioner using client for hub requests. Empty
// endpoint, revision, and parallelism settings take their defaults.
func NewProvisioner(client *http.Client, cfg types.ModelConfig, log zerolog.Logger) *Provisioner {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.Revision == "" {
		cfg.Revision = DefaultRevision
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = defaultMaxParallel
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Provisioner{
		client: client,
		cfg:    cfg,
		log:    log.With().Str("component", "models").Logger(),
	}
}

// Dir returns the cache directory for repoID at the configured revision.
// It does not touch the filesystem.
func (p *Provisioner) Dir(repoID string) string {
	return filepath.Join(p.cfg.CacheDir, repoDirName(repoID), strings.ReplaceAll(p.cfg.Revision, "/", "--"))
}

// ProvisionOCR provisions the configured RapidOCR repository and files.
func (p *Provisioner) ProvisionOCR(ctx context.Context) (OCRModels, error) {
	repo := p.cfg.RepoID
	if repo == "" {
		repo = DefaultRepoID
	}
	files := p.cfg.Files
	if files.Detection == "" && files.Recognition == "" && files.Classification == "" {
		files = DefaultOCRFiles
	}

	dir, err := p.Provision(ctx, repo, files.All())
	if err != nil {
		return OCRModels{}, err
	}
	return OCRModels{Dir: dir, Files: files}, nil
}

// Provision ensures every file in files exists under the cache directory of
// repoID and returns that directory. Files already present are not fetched
// again; when all are present no network request is made. If any file can
// be neither found locally nor fetched, Provision fails and returns no
// directory.
//
// Concurrent calls for the same files share one download. Each caller
// stops waiting when its own ctx is done.
func (p *Provisioner) Provision(ctx context.Context, repoID string, files []string) (string, error) {
	if err := validateRepoID(repoID); err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("provisioning %s: no model files requested", repoID)
	}
	for _, f := range files {
		if f == "" || !filepath.IsLocal(filepath.FromSlash(f)) {
			return "", fmt.Errorf("provisioning %s: invalid model file name %q", repoID, f)
		}
	}

	sorted := append([]string(nil), files...)
	sort.Strings(sorted)
	key := repoID + "@" + p.cfg.Revision + "\x00" + strings.Join(sorted, "\x00")

	for {
		ch := p.group.DoChan(key, func() (any, error) {
			dir, err := p.provision(ctx, repoID, sorted)
			if err != nil && ctx.Err() != nil {
				return "", fmt.Errorf("%w: %w", errFlightAbandoned, err)
			}
			return dir, err
		})

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res := <-ch:
			if res.Shared {
				p.log.Debug().Str("repo", repoID).Msg("joined in-flight provisioning")
			}
			if errors.Is(res.Err, errFlightAbandoned) && ctx.Err() == nil {
				// The caller that started the flight gave up; start a new one.
				continue
			}
			if res.Err != nil {
				return "", res.Err
			}
			return res.Val.(string), nil
		}
	}
}

func (p *Provisioner) provision(ctx context.Context, repoID string, files []string) (string, error) {
	dir := p.Dir(repoID)

	missing := missingFiles(dir, files)
	if len(missing) == 0 {
		p.log.Debug().Str("repo", repoID).Str("dir", dir).Msg("models cached")
		return dir, nil
	}

	p.log.Info().Str("repo", repoID).Int("files", len(missing)).Msg("downloading models")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.MaxParallel)
	for _, f := range missing {
		g.Go(func() error {
			return p.download(gctx, repoID, f, filepath.Join(dir, filepath.FromSlash(f)))
		})
	}
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("provisioning %s: %w", repoID, err)
	}

	p.log.Info().Str("repo", repoID).Str("dir", dir).Msg("models ready")
	return dir, nil
}

// download fetches one file to destPath through a temp file in the same
// directory, renamed into place only after the body is fully written.
func (p *Provisioner) download(ctx context.Context, repoID, file, destPath string) error {
	fileURL := p.fileURL(repoID, file)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return fmt.Errorf("creating request for %s: %w", file, err)
	}
	if p.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", p.cfg.UserAgent)
	}
	if p.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.Token)
	}

	resp, err := httputil.DoWithRetry(ctx, p.client, req, 0)
	if err != nil {
		return fmt.Errorf("fetching %s: %w: %w", file, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching %s: %w: HTTP %d from %s", file, ErrUnavailable, resp.StatusCode, fileURL)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", file, err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".download-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	n, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", file, copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: short download (%d of %d bytes)", file, n, resp.ContentLength)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	p.log.Debug().Str("file", file).Int64("bytes", n).Msg("model downloaded")
	return nil
}

func (p *Provisioner) fileURL(repoID, file string) string {
	segments := strings.Split(file, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return p.cfg.Endpoint + "/" + repoID + "/resolve/" + url.PathEscape(p.cfg.Revision) + "/" + path.Join(segments...)
}

// missingFiles returns the files not present as non-empty regular files
// under dir.
func missingFiles(dir string, files []string) []string {
	var missing []string
	for _, f := range files {
		info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(f)))
		if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
			missing = append(missing, f)
		}
	}
	return missing
}

// repoDirName maps "owner/name" to "models--owner--name".
func repoDirName(repoID string) string {
	return "models--" + strings.ReplaceAll(repoID, "/", "--")
}

func validateRepoID(repoID string) error {
	parts := strings.Split(repoID, "/")
	if len(parts) != 2 {
		return fmt.Errorf("invalid model repository %q: want owner/name", repoID)
	}
	for _, part := range parts {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `\:`) {
			return fmt.Errorf("invalid model repository %q: want owner/name", repoID)
		}
	}
	return nil
}
