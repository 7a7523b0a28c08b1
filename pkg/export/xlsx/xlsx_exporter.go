// SPDX-License-Identifier: Apache-2.0

// Package xlsx writes the target tables into the blank template workbook of
// the migration tool, one sheet per target table.
package xlsx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/datavapte/ecctransform/pkg/export"
	loglib "github.com/datavapte/ecctransform/pkg/log"
	"github.com/datavapte/ecctransform/pkg/table"
)

type Exporter struct {
	logger       loglib.Logger
	headerRow    int
	firstDataRow int
	batchSize    int
}

type Config struct {
	// HeaderRow is the template row holding the field names. Defaults to 5.
	HeaderRow uint
	// FirstDataRow is the first row written. Defaults to 9.
	FirstDataRow uint
	// BatchSize is the number of rows styled at once. Defaults to 1000.
	BatchSize uint
}

type Option func(*Exporter)

const (
	defaultHeaderRow    = 5
	defaultFirstDataRow = 9
	defaultBatchSize    = 1000

	// builtin text number format
	textNumFmt = 49

	OutputSuffix  = "_OutPut.xlsx"
	defaultSheet  = "Sheet1"
	outputDirMode = 0o755
)

func (c *Config) headerRow() int {
	if c.HeaderRow > 0 {
		return int(c.HeaderRow)
	}
	return defaultHeaderRow
}

func (c *Config) firstDataRow() int {
	if c.FirstDataRow > 0 {
		return int(c.FirstDataRow)
	}
	return defaultFirstDataRow
}

func (c *Config) batchSize() int {
	if c.BatchSize > 0 {
		return int(c.BatchSize)
	}
	return defaultBatchSize
}

func NewExporter(cfg *Config, opts ...Option) (*Exporter, error) {
	e := &Exporter{
		logger:       loglib.NewNoopLogger(),
		headerRow:    cfg.headerRow(),
		firstDataRow: cfg.firstDataRow(),
		batchSize:    cfg.batchSize(),
	}
	if e.firstDataRow <= e.headerRow {
		return nil, fmt.Errorf("first data row %d must be after header row %d", e.firstDataRow, e.headerRow)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func WithLogger(l loglib.Logger) Option {
	return func(e *Exporter) {
		e.logger = loglib.WithModule(l, "xlsx_exporter")
	}
}

// Export writes the tables into a copy of the blank template of the request
// and returns the path of the workbook. Without a blank template, a workbook
// with a sheet per table is generated, with the table columns as headers.
func (e *Exporter) Export(ctx context.Context, req *export.Request) (string, error) {
	if err := os.MkdirAll(req.OutputDir, outputDirMode); err != nil {
		return "", fmt.Errorf("%w: creating output dir: %w", export.ErrExport, err)
	}

	blankTemplate := ""
	if req.Template != nil {
		blankTemplate = req.Template.BlankTemplatePath
	}

	f, err := e.openWorkbook(blankTemplate)
	if err != nil {
		return "", fmt.Errorf("%w: %w", export.ErrExport, err)
	}
	defer f.Close()

	for _, name := range req.Order {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		t, found := req.Tables[name]
		if !found {
			continue
		}
		if blankTemplate == "" {
			if err := e.addSheet(f, t); err != nil {
				return "", fmt.Errorf("%w: %w", export.ErrExport, err)
			}
		}
		if err := e.writeSheet(f, t); err != nil {
			return "", fmt.Errorf("%w: writing sheet %s: %w", export.ErrExport, name, err)
		}
	}

	if blankTemplate == "" && f.SheetCount > 1 {
		if _, found := req.Tables[defaultSheet]; !found {
			if err := f.DeleteSheet(defaultSheet); err != nil {
				return "", fmt.Errorf("%w: %w", export.ErrExport, err)
			}
		}
	}

	path := filepath.Join(req.OutputDir, req.BaseName+OutputSuffix)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("%w: saving workbook: %w", export.ErrExport, err)
	}
	e.logger.Info("workbook saved", loglib.Fields{"path": path})
	return path, nil
}

func (e *Exporter) openWorkbook(blankTemplate string) (*excelize.File, error) {
	if blankTemplate == "" {
		return excelize.NewFile(), nil
	}
	f, err := excelize.OpenFile(blankTemplate)
	if err != nil {
		return nil, fmt.Errorf("opening blank template %s: %w", blankTemplate, err)
	}
	return f, nil
}

func (e *Exporter) addSheet(f *excelize.File, t *table.Table) error {
	if _, err := f.NewSheet(t.Name); err != nil {
		return fmt.Errorf("creating sheet %s: %w", t.Name, err)
	}
	headers := make([]any, 0, t.NumColumns())
	for _, c := range t.Columns() {
		headers = append(headers, c)
	}
	cell, err := excelize.CoordinatesToCellName(1, e.headerRow)
	if err != nil {
		return err
	}
	return f.SetSheetRow(t.Name, cell, &headers)
}

func (e *Exporter) writeSheet(f *excelize.File, t *table.Table) error {
	logFields := loglib.Fields{loglib.TableField: t.Name}

	idx, err := f.GetSheetIndex(t.Name)
	if err != nil {
		return err
	}
	if idx == -1 {
		e.logger.Warn(nil, "sheet not found in template, skipping table", logFields)
		return nil
	}
	if err := f.UnprotectSheet(t.Name); err != nil {
		return err
	}

	headers, err := e.headers(f, t.Name)
	if err != nil {
		return err
	}
	if len(headers) == 0 {
		e.logger.Warn(nil, "sheet has no headers, skipping table", logFields)
		return nil
	}

	// template headers set the column order, missing columns are left empty
	columns := make([][]table.Value, len(headers))
	for i, h := range headers {
		values, found := t.Column(h)
		if !found {
			e.logger.Warn(nil, "template field missing from table, leaving column empty", loglib.MergeFields(logFields, loglib.Fields{
				loglib.FieldField: h,
			}))
			continue
		}
		columns[i] = values
	}

	style, err := f.NewStyle(&excelize.Style{NumFmt: textNumFmt})
	if err != nil {
		return err
	}

	numRows := t.NumRows()
	for start := 0; start < numRows; start += e.batchSize {
		end := min(start+e.batchSize, numRows)
		if err := e.writeBatch(f, t.Name, columns, start, end, style); err != nil {
			return err
		}
	}

	e.logger.Info("sheet written", loglib.MergeFields(logFields, loglib.Fields{
		"rows":    numRows,
		"columns": len(headers),
	}))
	return nil
}

func (e *Exporter) writeBatch(f *excelize.File, sheet string, columns [][]table.Value, start, end, style int) error {
	first, err := excelize.CoordinatesToCellName(1, e.firstDataRow+start)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(columns), e.firstDataRow+end-1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, first, last, style); err != nil {
		return err
	}

	for r := start; r < end; r++ {
		row := make([]any, len(columns))
		for c, values := range columns {
			// nulls and missing columns are written as empty strings
			if r < len(values) {
				row[c] = values[r].String()
			} else {
				row[c] = ""
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, e.firstDataRow+r)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

// headers returns the non empty cells of the header row.
func (e *Exporter) headers(f *excelize.File, sheet string) ([]string, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) < e.headerRow {
		return nil, nil
	}
	headers := []string{}
	for _, h := range rows[e.headerRow-1] {
		if h != "" {
			headers = append(headers, h)
		}
	}
	return headers, nil
}
