// SPDX-License-Identifier: Apache-2.0

package mapping

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	loglib "github.com/datavapte/ecctransform/pkg/log"
	"github.com/datavapte/ecctransform/pkg/table"
)

type Config struct {
	// Workers is the number of target tables built concurrently. Defaults
	// to 1.
	Workers uint
}

const defaultWorkers = 1

func (c *Config) workers() int {
	if c.Workers > 0 {
		return int(c.Workers)
	}
	return defaultWorkers
}

// MappingError is returned when a target table cannot be built.
type MappingError struct {
	TargetTable string
	Err         error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("building target table %s: %v", e.TargetTable, e.Err)
}

func (e *MappingError) Unwrap() error {
	return e.Err
}

var ErrJoinFieldNotFound = errors.New("join field not found in target table")

// Resolver builds the target tables out of the extracted source tables.
type Resolver struct {
	logger  loglib.Logger
	workers int
}

type Option func(*Resolver)

func NewResolver(cfg *Config, opts ...Option) *Resolver {
	r := &Resolver{
		logger:  loglib.NewNoopLogger(),
		workers: cfg.workers(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func WithLogger(l loglib.Logger) Option {
	return func(r *Resolver) {
		r.logger = loglib.WithModule(l, "mapping_resolver")
	}
}

// Resolve returns the target tables keyed by name. Missing source data never
// fails the resolution, it results in null columns or skipped joins.
func (r *Resolver) Resolve(ctx context.Context, mappings []FieldMapping, sources map[string]*table.Table) (map[string]*table.Table, error) {
	targets := TargetTables(mappings)
	groups := make(map[string][]FieldMapping, len(targets))
	for _, m := range mappings {
		groups[m.TargetTable] = append(groups[m.TargetTable], m)
	}

	built := make([]*table.Table, len(targets))
	errGroup, groupCtx := errgroup.WithContext(ctx)
	errGroup.SetLimit(r.workers)
	for i, target := range targets {
		errGroup.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			t, err := r.buildTargetTable(target, groups[target], sources)
			if err != nil {
				return &MappingError{TargetTable: target, Err: err}
			}
			built[i] = t
			return nil
		})
	}
	if err := errGroup.Wait(); err != nil {
		return nil, err
	}

	result := make(map[string]*table.Table, len(targets))
	for i, target := range targets {
		result[target] = built[i]
	}
	return result, nil
}

func (r *Resolver) buildTargetTable(target string, mappings []FieldMapping, sources map[string]*table.Table) (*table.Table, error) {
	logFields := loglib.Fields{loglib.TableField: target}
	r.logger.Debug("building target table", logFields)

	main := []FieldMapping{}
	joined := []FieldMapping{}
	for _, m := range mappings {
		if m.IsMainTable {
			main = append(main, m)
		} else {
			joined = append(joined, m)
		}
	}

	t, err := r.buildBase(target, main, sources)
	if err != nil {
		return nil, err
	}

	for _, m := range joined {
		if t, err = r.join(t, m, sources); err != nil {
			return nil, err
		}
	}

	r.logger.Info("target table built", loglib.MergeFields(logFields, loglib.Fields{
		"rows":    t.NumRows(),
		"columns": t.NumColumns(),
	}))
	return t, nil
}

// buildBase builds the table out of the main table rows. Every main target
// field is present in the result.
func (r *Resolver) buildBase(target string, mappings []FieldMapping, sources map[string]*table.Table) (*table.Table, error) {
	rowCount := 0
	for _, m := range mappings {
		if src, found := sources[m.SourceTable]; found {
			rowCount = max(rowCount, src.NumRows())
		}
	}

	names := []string{}
	columns := map[string][]table.Value{}
	copied := false
	for _, m := range mappings {
		values, found := sourceColumn(sources, m.SourceTable, m.SourceField)
		if found {
			copied = true
		} else {
			r.logger.Warn(nil, "source field not found, filling target field with nulls", loglib.Fields{
				loglib.TableField: target,
				loglib.FieldField: m.TargetField,
				"source":          m.SourceTable + "." + m.SourceField,
			})
			values = table.Nulls(rowCount)
		}

		if _, found := columns[m.TargetField]; !found {
			names = append(names, m.TargetField)
		}
		columns[m.TargetField] = values
	}

	// the longest copied column sets the row count, shorter ones are padded
	numRows := rowCount
	if copied {
		numRows = 0
		for _, values := range columns {
			numRows = max(numRows, len(values))
		}
	}

	t := table.New(target)
	for _, name := range names {
		values := columns[name]
		if len(values) < numRows {
			values = append(append(make([]table.Value, 0, numRows), values...), table.Nulls(numRows-len(values))...)
		}
		if err := t.AddColumn(name, values); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// join brings the source field of a non main row into the target table.
func (r *Resolver) join(t *table.Table, m FieldMapping, sources map[string]*table.Table) (*table.Table, error) {
	logFields := loglib.Fields{
		loglib.TableField: t.Name,
		loglib.FieldField: m.TargetField,
		"source":          m.SourceTable + "." + m.SourceField,
	}

	src, found := sources[m.SourceTable]
	if !found {
		r.logger.Warn(nil, "source table not found, skipping join", logFields)
		return t, nil
	}
	// first mapping of a target field wins
	if t.HasColumn(m.TargetField) {
		r.logger.Debug("target field already mapped, skipping join", logFields)
		return t, nil
	}

	for _, f := range m.TargetJoinFields {
		if !t.HasColumn(f) {
			return nil, fmt.Errorf("joining %s: %s: %w", m.String(), f, ErrJoinFieldNotFound)
		}
	}

	sourceNames := append(append([]string{}, m.SourceJoinFields...), m.SourceField)
	targetNames := append(append([]string{}, m.TargetJoinFields...), m.TargetField)

	right := table.New(src.Name)
	for i, name := range sourceNames {
		values, found := src.Column(name)
		if !found {
			r.logger.Warn(nil, "source join or value field not found, filling target field with nulls", loglib.MergeFields(logFields, loglib.Fields{
				"missing_field": name,
			}))
			if err := t.AddColumn(m.TargetField, table.Nulls(t.NumRows())); err != nil {
				return nil, err
			}
			return t, nil
		}
		if err := right.AddColumn(targetNames[i], values); err != nil {
			return nil, fmt.Errorf("joining %s: %w", m.String(), err)
		}
	}

	joined, err := table.LeftJoin(t, right, m.TargetJoinFields)
	if err != nil {
		return nil, fmt.Errorf("joining %s: %w", m.String(), err)
	}
	r.logger.Debug("source field joined", loglib.MergeFields(logFields, loglib.Fields{
		"on":   m.TargetJoinFields,
		"rows": joined.NumRows(),
	}))
	return joined, nil
}

func sourceColumn(sources map[string]*table.Table, tableName, field string) ([]table.Value, bool) {
	src, found := sources[tableName]
	if !found {
		return nil, false
	}
	return src.Column(field)
}
