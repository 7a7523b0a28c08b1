// SPDX-License-Identifier: Apache-2.0

package mocks

import (
	"context"
	"sync/atomic"

	"github.com/datavapte/ecctransform/pkg/export"
)

type Exporter struct {
	ExportFn    func(ctx context.Context, req *export.Request) (string, error)
	exportCalls atomic.Int64
}

func (m *Exporter) Export(ctx context.Context, req *export.Request) (string, error) {
	m.exportCalls.Add(1)
	return m.ExportFn(ctx, req)
}

func (m *Exporter) GetExportCalls() int64 {
	return m.exportCalls.Load()
}
