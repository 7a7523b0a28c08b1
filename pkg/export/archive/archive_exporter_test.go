// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/datavapte/ecctransform/pkg/export"
)

func TestExporter_Export(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "Material_Master_C100_2025-01-02150405")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "logs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "out.xlsx"), []byte("workbook"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logs", "run.log"), []byte("log"), 0o644))

	path, err := NewExporter().Export(context.Background(), &export.Request{OutputDir: dir})
	require.NoError(t, err)
	require.Equal(t, dir+".zip", path)

	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	contents := map[string]string{}
	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		contents[f.Name] = string(b)
	}
	require.Equal(t, map[string]string{
		"out.xlsx":     "workbook",
		"logs/run.log": "log",
	}, contents)
}

func TestExporter_Export_MissingDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "missing")
	path, err := NewExporter().Export(context.Background(), &export.Request{OutputDir: dir})
	require.ErrorIs(t, err, export.ErrExport)
	require.Empty(t, path)
	_, statErr := os.Stat(dir + ".zip")
	require.True(t, os.IsNotExist(statErr))
}
