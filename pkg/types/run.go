// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// RunStatus is the final state of a conversion run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunRecord is one row of the conversion ledger.
type RunRecord struct {
	// ID is a random identifier assigned when the run starts.
	ID string `json:"id" yaml:"id"`

	// SourcePath is the input PDF path as given.
	SourcePath string `json:"source_path" yaml:"source_path"`

	// SourceSHA256 is the hex digest of the input PDF, empty if unreadable.
	SourceSHA256 string `json:"source_sha256,omitempty" yaml:"source_sha256,omitempty"`

	// OutputPath is the written Markdown file, empty on failure.
	OutputPath string `json:"output_path,omitempty" yaml:"output_path,omitempty"`

	Status   RunStatus `json:"status" yaml:"status"`
	Images   int       `json:"images" yaml:"images"`
	Formulas int       `json:"formulas" yaml:"formulas"`
	Failures int       `json:"failures" yaml:"failures"`

	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Duration  time.Duration `json:"duration" yaml:"duration"`

	// Error records the fatal error message. Empty on success.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// DriveFile is one entry of a remote file listing.
type DriveFile struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	MimeType string   `json:"mimeType" yaml:"mime_type"`
	Parents  []string `json:"parents,omitempty" yaml:"parents,omitempty"`
}
