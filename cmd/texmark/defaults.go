// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/texmark/internal/auth"
	"github.com/pdiddy/texmark/internal/convert"
	"github.com/pdiddy/texmark/internal/formula"
	"github.com/pdiddy/texmark/internal/models"
	"github.com/pdiddy/texmark/internal/pipeline"
	"github.com/pdiddy/texmark/pkg/types"
)

// setDefaults registers every configuration key so that environment
// variables (TEXMARK_MODELS_CACHE_DIR, ...) are honoured by Unmarshal.
func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")

	viper.SetDefault("models.endpoint", models.DefaultEndpoint)
	viper.SetDefault("models.repo_id", models.DefaultRepoID)
	viper.SetDefault("models.revision", models.DefaultRevision)
	viper.SetDefault("models.cache_dir", defaultCacheDir())
	viper.SetDefault("models.token", "")
	viper.SetDefault("models.files.det", models.DefaultOCRFiles.Detection)
	viper.SetDefault("models.files.rec", models.DefaultOCRFiles.Recognition)
	viper.SetDefault("models.files.cls", models.DefaultOCRFiles.Classification)
	viper.SetDefault("models.max_parallel", 3)
	viper.SetDefault("models.timeout", 30*time.Minute)
	viper.SetDefault("models.user_agent", "texmark/"+version)

	viper.SetDefault("structural.backend", string(types.BackendDocling))
	viper.SetDefault("structural.image", convert.DefaultDoclingImage)

	viper.SetDefault("formula.backend", string(types.FormulaContainer))
	viper.SetDefault("formula.image", formula.DefaultImage)
	viper.SetDefault("formula.endpoint", "")
	viper.SetDefault("formula.cache", true)
	viper.SetDefault("formula.timeout", 2*time.Minute)
	viper.SetDefault("formula.user_agent", "texmark/"+version)

	viper.SetDefault("output.dir", pipeline.DefaultOutputDir)

	viper.SetDefault("ledger.enabled", true)
	viper.SetDefault("ledger.path", filepath.Join(".texmark", "texmark.db"))

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.request_timeout", 10*time.Minute)
	viper.SetDefault("server.max_upload_bytes", 64<<20)

	viper.SetDefault("auth.enabled", false)
	viper.SetDefault("auth.client_secret_file", "")
	viper.SetDefault("auth.redirect_url", "http://localhost:8080/auth/callback")
	viper.SetDefault("auth.frontend_url", "http://localhost:3000/")
	viper.SetDefault("auth.scopes", auth.DefaultScopes)
	viper.SetDefault("auth.insecure_transport", false)
	viper.SetDefault("auth.session_ttl", 24*time.Hour)
}

// defaultCacheDir is the per-user model cache, falling back to a directory
// under the working directory.
func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "texmark", "models")
	}
	return filepath.Join(".texmark", "models")
}
