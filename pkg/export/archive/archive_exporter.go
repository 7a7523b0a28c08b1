// SPDX-License-Identifier: Apache-2.0

// Package archive zips the run output directory next to it.
package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/datavapte/ecctransform/pkg/export"
	loglib "github.com/datavapte/ecctransform/pkg/log"
)

type Exporter struct {
	logger loglib.Logger
}

type Option func(*Exporter)

const Extension = ".zip"

func NewExporter(opts ...Option) *Exporter {
	e := &Exporter{
		logger: loglib.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func WithLogger(l loglib.Logger) Option {
	return func(e *Exporter) {
		e.logger = loglib.WithModule(l, "archive_exporter")
	}
}

// Export writes the content of the output dir into {dir}.zip, with paths
// relative to the dir, and returns the archive path.
func (e *Exporter) Export(ctx context.Context, req *export.Request) (_ string, err error) {
	dir := filepath.Clean(req.OutputDir)
	path := dir + Extension

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("%w: creating archive: %w", export.ErrExport, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("%w: closing archive: %w", export.ErrExport, closeErr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	w := zip.NewWriter(out)
	files := 0
	walkErr := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files++
		return addFile(w, p, filepath.ToSlash(rel))
	})
	if walkErr != nil {
		w.Close()
		return "", fmt.Errorf("%w: archiving %s: %w", export.ErrExport, dir, walkErr)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%w: finishing archive: %w", export.ErrExport, err)
	}

	e.logger.Info("output archived", loglib.Fields{"path": path, "files": files})
	return path, nil
}

func addFile(w *zip.Writer, path, name string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = strings.TrimPrefix(name, "./")
	header.Method = zip.Deflate

	dst, err := w.CreateHeader(header)
	if err != nil {
		return err
	}
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	_, err = io.Copy(dst, src)
	return err
}
