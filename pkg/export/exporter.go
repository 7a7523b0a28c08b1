// SPDX-License-Identifier: Apache-2.0

package export

import (
	"context"
	"errors"

	"github.com/datavapte/ecctransform/pkg/metadata"
	"github.com/datavapte/ecctransform/pkg/table"
)

// Exporter hands the transformed tables over to the migration tool. It
// returns the path of what it produced.
type Exporter interface {
	Export(ctx context.Context, req *Request) (string, error)
}

type Request struct {
	Template *metadata.Template
	// OutputDir is the run directory, created by the first exporter
	// writing to it.
	OutputDir string
	// BaseName is the prefix of the files written in the output dir.
	BaseName string
	Tables   map[string]*table.Table
	// Order is the order in which the tables are written.
	Order []string
}

var ErrExport = errors.New("export failed")

// Chain runs the exporters in order, stopping at the first failure. The
// output is the one of the last exporter producing any.
type Chain []Exporter

func (c Chain) Export(ctx context.Context, req *Request) (string, error) {
	output := ""
	for _, e := range c {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out, err := e.Export(ctx, req)
		if err != nil {
			return "", err
		}
		if out != "" {
			output = out
		}
	}
	return output, nil
}

// Noop discards the tables.
type Noop struct{}

func (Noop) Export(ctx context.Context, req *Request) (string, error) {
	return "", nil
}
