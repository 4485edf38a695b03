// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// LogConfig selects the log level and output format.
type LogConfig struct {
	// Level is a zerolog level name: debug, info, warn, error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is "console" for human-readable output or "json".
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "texmark/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// OCRModelFiles names the three RapidOCR artifacts inside the model
// repository, as paths relative to the repository root.
type OCRModelFiles struct {
	// Detection is the text detection model.
	Detection string `json:"det" yaml:"det" mapstructure:"det"`

	// Recognition is the text recognition model.
	Recognition string `json:"rec" yaml:"rec" mapstructure:"rec"`

	// Classification is the text-orientation classification model.
	Classification string `json:"cls" yaml:"cls" mapstructure:"cls"`
}

// All returns the three model paths in det, rec, cls order.
func (f OCRModelFiles) All() []string {
	return []string{f.Detection, f.Recognition, f.Classification}
}

// ModelConfig holds settings for the model provisioner.
type ModelConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Endpoint is the base URL of the model hub (default https://huggingface.co).
	Endpoint string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`

	// RepoID identifies the model repository (e.g. "SWHL/RapidOCR").
	RepoID string `json:"repo_id" yaml:"repo_id" mapstructure:"repo_id"`

	// Revision is the branch, tag, or commit to resolve (default "main").
	Revision string `json:"revision" yaml:"revision" mapstructure:"revision"`

	// CacheDir is the local model cache root.
	CacheDir string `json:"cache_dir" yaml:"cache_dir" mapstructure:"cache_dir"`

	// Token is an optional bearer token for the hub.
	Token string `json:"token,omitempty" yaml:"token,omitempty" mapstructure:"token"`

	// Files names the OCR artifacts fetched from RepoID.
	Files OCRModelFiles `json:"files" yaml:"files" mapstructure:"files"`

	// MaxParallel bounds concurrent file downloads (default 3).
	MaxParallel int `json:"max_parallel" yaml:"max_parallel" mapstructure:"max_parallel"`
}

// StructuralBackend identifies the structural conversion tool.
type StructuralBackend string

const (
	BackendDocling    StructuralBackend = "docling"
	BackendMarkitdown StructuralBackend = "markitdown"
)

// StructuralConfig holds settings for the structural conversion stage.
type StructuralConfig struct {
	// Backend selects the conversion tool: docling or markitdown.
	Backend StructuralBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// Image is the container image that performs the conversion.
	Image string `json:"image" yaml:"image" mapstructure:"image"`
}

// FormulaBackend identifies how LaTeX OCR is invoked.
type FormulaBackend string

const (
	FormulaContainer FormulaBackend = "container"
	FormulaHTTP      FormulaBackend = "http"
)

// FormulaConfig holds settings for the formula recognition stage.
type FormulaConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Backend selects container (one pix2tex run per image) or http (pix2tex API).
	Backend FormulaBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// Image is the pix2tex container image for the container backend.
	Image string `json:"image" yaml:"image" mapstructure:"image"`

	// Endpoint is the pix2tex API base URL for the http backend.
	Endpoint string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`

	// Cache memoises recognition results in the ledger by image digest.
	Cache bool `json:"cache" yaml:"cache" mapstructure:"cache"`
}

// OutputConfig holds settings for the assembler.
type OutputConfig struct {
	// Dir is the directory receiving new<basename>.md files (default "output").
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// LedgerConfig holds settings for the conversion ledger.
type LedgerConfig struct {
	// Enabled turns run recording and the formula cache on.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Path is the SQLite database file.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// ServerConfig holds settings for the HTTP service.
type ServerConfig struct {
	// Addr is the listen address (e.g. ":8080").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// RequestTimeout bounds a single request, including conversion.
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout" mapstructure:"request_timeout"`

	// MaxUploadBytes bounds the size of an uploaded PDF.
	MaxUploadBytes int64 `json:"max_upload_bytes" yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
}

// AuthConfig holds settings for the identity flow and remote file listing.
type AuthConfig struct {
	// Enabled mounts the /auth routes.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// ClientSecretFile is the OAuth client secret JSON downloaded from the provider console.
	ClientSecretFile string `json:"client_secret_file" yaml:"client_secret_file" mapstructure:"client_secret_file"`

	// RedirectURL is the callback URL registered with the provider.
	RedirectURL string `json:"redirect_url" yaml:"redirect_url" mapstructure:"redirect_url"`

	// FrontendURL receives the browser after a successful callback.
	FrontendURL string `json:"frontend_url" yaml:"frontend_url" mapstructure:"frontend_url"`

	// Scopes are the OAuth scopes requested at login.
	Scopes []string `json:"scopes" yaml:"scopes" mapstructure:"scopes"`

	// InsecureTransport permits plain-http redirect URLs and non-Secure
	// cookies. Local development only.
	InsecureTransport bool `json:"insecure_transport" yaml:"insecure_transport" mapstructure:"insecure_transport"`

	// SessionTTL is how long an idle session is kept.
	SessionTTL time.Duration `json:"session_ttl" yaml:"session_ttl" mapstructure:"session_ttl"`
}

// Config groups all settings for texmark.
type Config struct {
	Log        LogConfig        `json:"log" yaml:"log" mapstructure:"log"`
	Models     ModelConfig      `json:"models" yaml:"models" mapstructure:"models"`
	Structural StructuralConfig `json:"structural" yaml:"structural" mapstructure:"structural"`
	Formula    FormulaConfig    `json:"formula" yaml:"formula" mapstructure:"formula"`
	Output     OutputConfig     `json:"output" yaml:"output" mapstructure:"output"`
	Ledger     LedgerConfig     `json:"ledger" yaml:"ledger" mapstructure:"ledger"`
	Server     ServerConfig     `json:"server" yaml:"server" mapstructure:"server"`
	Auth       AuthConfig       `json:"auth" yaml:"auth" mapstructure:"auth"`
}
