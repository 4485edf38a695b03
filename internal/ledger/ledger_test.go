// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/texmark/pkg/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger", "texmark.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "texmark.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.RecordRun(context.Background(), types.RunRecord{SourcePath: "a.pdf", Status: types.RunSucceeded})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	runs, err := s.Runs(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRecordAndListRuns(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	id, err := s.RecordRun(ctx, types.RunRecord{
		SourcePath:   "/docs/a.pdf",
		SourceSHA256: "abc",
		OutputPath:   "output/newa.md",
		Status:       types.RunSucceeded,
		Images:       3,
		Formulas:     1,
		Failures:     1,
		StartedAt:    base,
		Duration:     1500 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = s.RecordRun(ctx, types.RunRecord{
		ID:         "fixed-id",
		SourcePath: "/docs/b.pdf",
		Status:     types.RunFailed,
		StartedAt:  base.Add(time.Minute),
		Error:      "structural: docling exited 1",
	})
	require.NoError(t, err)

	runs, err := s.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "fixed-id", runs[0].ID, "most recent first")
	assert.Equal(t, types.RunFailed, runs[0].Status)
	assert.Equal(t, "structural: docling exited 1", runs[0].Error)
	assert.Empty(t, runs[0].OutputPath)

	a := runs[1]
	assert.Equal(t, id, a.ID)
	assert.Equal(t, "/docs/a.pdf", a.SourcePath)
	assert.Equal(t, "abc", a.SourceSHA256)
	assert.Equal(t, "output/newa.md", a.OutputPath)
	assert.Equal(t, 3, a.Images)
	assert.Equal(t, 1, a.Formulas)
	assert.Equal(t, 1, a.Failures)
	assert.Equal(t, 1500*time.Millisecond, a.Duration)
	assert.True(t, base.Equal(a.StartedAt))
}

func TestRunsLimit(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := range 25 {
		_, err := s.RecordRun(ctx, types.RunRecord{
			SourcePath: "x.pdf",
			Status:     types.RunSucceeded,
			StartedAt:  base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"default", 0, 20},
		{"explicit", 5, 5},
		{"more than stored", 100, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := s.Runs(ctx, tt.limit)
			require.NoError(t, err)
			assert.Len(t, runs, tt.want)
		})
	}
}

func TestDuplicateRunID(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.RecordRun(ctx, types.RunRecord{ID: "dup", SourcePath: "a.pdf", Status: types.RunSucceeded})
	require.NoError(t, err)
	_, err = s.RecordRun(ctx, types.RunRecord{ID: "dup", SourcePath: "a.pdf", Status: types.RunSucceeded})
	assert.Error(t, err)
}

func TestFormulaCache(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, ok, err := s.LookupFormula(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.StoreFormula(ctx, "d1", `\frac{1}{2}`))
	latex, ok, err := s.LookupFormula(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `\frac{1}{2}`, latex)

	require.NoError(t, s.StoreFormula(ctx, "d1", "x = 1"))
	latex, _, err = s.LookupFormula(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "x = 1", latex)
}

func TestExport(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.RecordRun(ctx, types.RunRecord{
		ID:         "r1",
		SourcePath: "a.pdf",
		OutputPath: "output/newa.md",
		Status:     types.RunSucceeded,
		Formulas:   2,
	})
	require.NoError(t, err)

	var yamlOut bytes.Buffer
	require.NoError(t, s.ExportYAML(ctx, &yamlOut, 0))
	var fromYAML []map[string]any
	require.NoError(t, yaml.Unmarshal(yamlOut.Bytes(), &fromYAML))
	require.Len(t, fromYAML, 1)
	assert.Equal(t, "r1", fromYAML[0]["id"])
	assert.Equal(t, "succeeded", fromYAML[0]["status"])
	assert.Equal(t, 2, fromYAML[0]["formulas"])

	var jsonOut bytes.Buffer
	require.NoError(t, s.ExportJSON(ctx, &jsonOut, 0))
	var fromJSON []types.RunRecord
	require.NoError(t, json.Unmarshal(jsonOut.Bytes(), &fromJSON))
	require.Len(t, fromJSON, 1)
	assert.Equal(t, "output/newa.md", fromJSON[0].OutputPath)
}

func TestExportJSONEmpty(t *testing.T) {
	s := testStore(t)

	var out bytes.Buffer
	require.NoError(t, s.ExportJSON(context.Background(), &out, 0))
	assert.Equal(t, "[]\n", out.String())
}
