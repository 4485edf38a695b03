// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/texmark/pkg/types"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(types.LogConfig{Level: "warn", Format: "json"}, &buf)

	log.Info().Msg("hidden")
	log.Warn().Int("page", 2).Msg("math OCR failed")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "math OCR failed", entry["message"])
	assert.Equal(t, float64(2), entry["page"])
	assert.Equal(t, "texmark", entry["service"])
}

func TestNewDefaultsToInfoConsole(t *testing.T) {
	var buf bytes.Buffer
	log := New(types.LogConfig{Level: "bogus"}, &buf)

	log.Debug().Msg("debug line")
	log.Info().Msg("info line")

	out := buf.String()
	assert.NotContains(t, out, "debug line")
	assert.Contains(t, out, "info line")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())), "console format should not be JSON")
}
