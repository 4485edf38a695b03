//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Convert builds the CLI and converts one PDF into output/.
func Convert(pdf string) error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "convert", pdf)
}

// Models downloads the OCR models into the local cache.
func Models() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "models", "pull")
}

// Serve builds the CLI and starts the HTTP service.
func Serve() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "serve")
}
