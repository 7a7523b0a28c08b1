// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	loglib "github.com/datavapte/ecctransform/pkg/log"
	"github.com/datavapte/ecctransform/pkg/rfc"
	"github.com/datavapte/ecctransform/pkg/table"
)

// TableExtractor reads the requested fields of a single table through an
// open session.
type TableExtractor interface {
	ExtractTable(ctx context.Context, session rfc.Session, tableName string, fields []string) (*Extraction, error)
}

// Extraction is the result of a successful table extraction.
type Extraction struct {
	Table *table.Table
	// SkippedFields are the fields given up on after the chunk shrank to
	// zero. They are missing from Table.
	SkippedFields []string
	Reads         int
	Shrinks       int
}

var (
	ErrEmptyResult = errors.New("no data retrieved")
	// ErrAmbiguousRow is returned when a row of a multi field read does not
	// split into one value per field, because a value contains the
	// delimiter.
	ErrAmbiguousRow = errors.New("row values contain the delimiter")
	// ErrSnapshotChanged is returned when the field chunks of a table
	// disagree on the row count, which happens when the remote rows changed
	// between reads, for instance after a session reconnect.
	ErrSnapshotChanged = errors.New("remote rows changed between field chunks")
)

// Extractor reads tables in field chunks and row pages, narrowing the field
// chunk whenever the remote side rejects a read.
type Extractor struct {
	logger       loglib.Logger
	shrinkPolicy ShrinkPolicy
	rowChunkSize int
	delimiter    string
}

type Option func(*Extractor)

func NewExtractor(cfg *Config, opts ...Option) *Extractor {
	e := &Extractor{
		logger:       loglib.NewNoopLogger(),
		shrinkPolicy: cfg.shrinkPolicy(),
		rowChunkSize: cfg.rowChunkSize(),
		delimiter:    cfg.delimiter(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func WithLogger(l loglib.Logger) Option {
	return func(e *Extractor) {
		e.logger = loglib.WithModule(l, "extractor")
	}
}

func WithShrinkPolicy(p ShrinkPolicy) Option {
	return func(e *Extractor) {
		e.shrinkPolicy = p
	}
}

func (e *Extractor) ExtractTable(ctx context.Context, session rfc.Session, tableName string, fields []string) (*Extraction, error) {
	catalog, err := session.Fields(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("reading field catalog of %s: %w", tableName, err)
	}
	if err := validateFields(tableName, fields, catalog); err != nil {
		return nil, err
	}
	orderBy := rfc.KeyFields(catalog)

	logFields := loglib.Fields{loglib.TableField: tableName}
	extraction := &Extraction{Table: table.New(tableName)}
	for i := 0; i < len(fields); {
		width := e.shrinkPolicy.InitialWidth
		for {
			if width <= 0 {
				e.logger.Warn(err, "skipping field after chunk shrank to zero", loglib.MergeFields(logFields, loglib.Fields{
					loglib.FieldField: fields[i],
				}))
				extraction.SkippedFields = append(extraction.SkippedFields, fields[i])
				i++
				break
			}

			chunk := fields[i:min(i+width, len(fields))]
			var block *table.Table
			block, err = e.readChunk(ctx, session, tableName, chunk, orderBy, extraction)
			if err == nil {
				if err := appendBlock(extraction.Table, block); err != nil {
					return nil, err
				}
				i += len(chunk)
				break
			}
			if errors.Is(err, ErrAmbiguousRow) {
				e.logger.Warn(err, "reading field chunk one field at a time", loglib.MergeFields(logFields, loglib.Fields{
					"chunk_start": fields[i],
					"chunk_width": len(chunk),
				}))
				extraction.Shrinks++
				if err := e.readFieldByField(ctx, session, tableName, chunk, orderBy, extraction); err != nil {
					return nil, err
				}
				i += len(chunk)
				break
			}
			if !rfc.IsRetryable(err) {
				return nil, fmt.Errorf("reading fields %v of %s: %w", chunk, tableName, err)
			}

			// shrink from the actual chunk width, the tail of the field list
			// can be narrower than the nominal width
			next := e.shrinkPolicy.Next(len(chunk))
			e.logger.Warn(err, "remote read rejected, shrinking field chunk", loglib.MergeFields(logFields, loglib.Fields{
				"chunk_start": fields[i],
				"chunk_width": len(chunk),
				"next_width":  next,
			}))
			extraction.Shrinks++
			width = next
		}
	}

	if extraction.Table.NumRows() == 0 {
		return nil, fmt.Errorf("%w for table %s", ErrEmptyResult, tableName)
	}

	e.logger.Debug("table extracted", loglib.MergeFields(logFields, loglib.Fields{
		"rows":           extraction.Table.NumRows(),
		"columns":        extraction.Table.NumColumns(),
		"skipped_fields": extraction.SkippedFields,
		"reads":          extraction.Reads,
	}))
	return extraction, nil
}

// readFieldByField reads every field of the chunk on its own. Single field
// rows are never split, so only remote rejections make a field be skipped.
func (e *Extractor) readFieldByField(ctx context.Context, session rfc.Session, tableName string, chunk, orderBy []string, extraction *Extraction) error {
	for _, field := range chunk {
		block, err := e.readChunk(ctx, session, tableName, []string{field}, orderBy, extraction)
		switch {
		case err == nil:
			if err := appendBlock(extraction.Table, block); err != nil {
				return err
			}
		case rfc.IsRetryable(err):
			e.logger.Warn(err, "skipping field rejected when read on its own", loglib.Fields{
				loglib.TableField: tableName,
				loglib.FieldField: field,
			})
			extraction.SkippedFields = append(extraction.SkippedFields, field)
		default:
			return fmt.Errorf("reading field %s of %s: %w", field, tableName, err)
		}
	}
	return nil
}

// appendBlock adds the columns of a field chunk to the table. Rows are
// aligned by position, so the chunks must come from the same row set.
func appendBlock(dst, block *table.Table) error {
	if err := table.AppendColumns(dst, block); err != nil {
		if errors.Is(err, table.ErrRowCountMismatch) {
			return fmt.Errorf("appending fields %v to %s: %w: %w", block.Columns(), dst.Name, ErrSnapshotChanged, err)
		}
		return fmt.Errorf("appending fields %v to %s: %w", block.Columns(), dst.Name, err)
	}
	return nil
}

// readChunk pages through all the rows of the table for the given fields.
// The end of the table is reached on an empty or short page.
func (e *Extractor) readChunk(ctx context.Context, session rfc.Session, tableName string, chunk, orderBy []string, extraction *Extraction) (*table.Table, error) {
	columns := make([][]table.Value, len(chunk))
	for offset := 0; ; offset += e.rowChunkSize {
		rows, err := session.ReadRows(ctx, &rfc.ReadRequest{
			Table:     tableName,
			Fields:    chunk,
			OrderBy:   orderBy,
			RowSkips:  offset,
			RowCount:  e.rowChunkSize,
			Delimiter: e.delimiter,
		})
		extraction.Reads++
		if err != nil {
			return nil, err
		}

		for n, row := range rows {
			values, err := e.splitRow(row, len(chunk))
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", offset+n, err)
			}
			for j, v := range values {
				columns[j] = append(columns[j], table.String(v))
			}
		}

		if len(rows) < e.rowChunkSize {
			break
		}
		e.logger.Trace("read page", loglib.Fields{loglib.TableField: tableName, "row_offset": offset, "chunk_width": len(chunk)})
	}

	block := table.New(tableName)
	for j, name := range chunk {
		values := columns[j]
		if values == nil {
			values = []table.Value{}
		}
		if err := block.AddColumn(name, values); err != nil {
			return nil, err
		}
	}
	return block, nil
}

// splitRow splits a row into its field values. A single field row is never
// split, the value can legitimately contain the delimiter. For wider rows a
// value containing the delimiter makes the row ambiguous.
func (e *Extractor) splitRow(row string, nFields int) ([]string, error) {
	if nFields == 1 {
		return []string{row}, nil
	}
	values := strings.Split(row, e.delimiter)
	if len(values) != nFields {
		return nil, fmt.Errorf("%w: %d values for %d fields", ErrAmbiguousRow, len(values), nFields)
	}
	return values, nil
}

func validateFields(tableName string, fields []string, catalog []rfc.FieldInfo) error {
	known := make(map[string]struct{}, len(catalog))
	for _, f := range catalog {
		known[f.Name] = struct{}{}
	}
	missing := []string{}
	for _, f := range fields {
		if _, found := known[f]; !found {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return &rfc.UnknownFieldError{Table: tableName, Fields: missing}
	}
	return nil
}
