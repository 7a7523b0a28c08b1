// SPDX-License-Identifier: Apache-2.0

// Package fixture implements an in memory remote source loaded from YAML. It
// reproduces the payload limit of the remote read call, so dry runs exercise
// the same chunk shrinking as a real extraction.
package fixture

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/datavapte/ecctransform/pkg/rfc"
)

type Source struct {
	tables      map[string]*Table
	maxRowWidth int
}

type File struct {
	// MaxRowWidth is the maximum sum of field lengths a single read can
	// request. Zero means unlimited.
	MaxRowWidth int               `yaml:"max_row_width"`
	Tables      map[string]*Table `yaml:"tables"`
}

type Table struct {
	Fields []Field     `yaml:"fields"`
	Rows   [][]*string `yaml:"rows"`
}

type Field struct {
	Name string `yaml:"name"`
	Key  bool   `yaml:"key"`
	// Length is the declared length of the field. Defaults to the longest
	// value in the table.
	Length int `yaml:"length"`
}

type Option func(*Source)

// WithMaxRowWidth overrides the payload limit of the source.
func WithMaxRowWidth(width int) Option {
	return func(s *Source) {
		s.maxRowWidth = width
	}
}

func NewSource(tables map[string]*Table, opts ...Option) (*Source, error) {
	s := &Source{
		tables: tables,
	}
	for _, opt := range opts {
		opt(s)
	}

	for name, t := range s.tables {
		for i, row := range t.Rows {
			if len(row) != len(t.Fields) {
				return nil, fmt.Errorf("table %s row %d has %d values, expected %d", name, i, len(row), len(t.Fields))
			}
		}
		for i := range t.Fields {
			if t.Fields[i].Length == 0 {
				t.Fields[i].Length = t.longestValue(i)
			}
		}
	}
	return s, nil
}

func NewSourceFromFile(path string, opts ...Option) (*Source, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture file: %w", err)
	}

	f := File{}
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing fixture file %s: %w", path, err)
	}

	return NewSource(f.Tables, append([]Option{WithMaxRowWidth(f.MaxRowWidth)}, opts...)...)
}

func (s *Source) Open(ctx context.Context) (rfc.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &session{source: s}, nil
}

type session struct {
	source *Source
	closed bool
}

func (s *session) Fields(ctx context.Context, table string) ([]rfc.FieldInfo, error) {
	t, err := s.table(ctx, table)
	if err != nil {
		return nil, err
	}

	fields := make([]rfc.FieldInfo, 0, len(t.Fields))
	for i, f := range t.Fields {
		fields = append(fields, rfc.FieldInfo{
			Name:     f.Name,
			Position: i + 1,
			Key:      f.Key,
			Length:   f.Length,
		})
	}
	return fields, nil
}

func (s *session) ReadRows(ctx context.Context, req *rfc.ReadRequest) ([]string, error) {
	t, err := s.table(ctx, req.Table)
	if err != nil {
		return nil, err
	}

	indexes := make([]int, 0, len(req.Fields))
	width := 0
	for _, name := range req.Fields {
		i := slices.IndexFunc(t.Fields, func(f Field) bool { return f.Name == name })
		if i < 0 {
			return nil, &rfc.ProtocolError{Category: rfc.ErrApplication, Details: "FIELD_NOT_VALID " + name}
		}
		indexes = append(indexes, i)
		width += t.Fields[i].Length
	}
	if s.source.maxRowWidth > 0 && width > s.source.maxRowWidth {
		return nil, &rfc.ProtocolError{
			Category: rfc.ErrApplication,
			Details:  fmt.Sprintf("DATA_BUFFER_EXCEEDED row width %d over %d", width, s.source.maxRowWidth),
		}
	}

	if req.RowSkips >= len(t.Rows) {
		return []string{}, nil
	}
	end := len(t.Rows)
	if req.RowCount > 0 {
		end = min(end, req.RowSkips+req.RowCount)
	}

	rows := make([]string, 0, end-req.RowSkips)
	values := make([]string, len(indexes))
	for _, row := range t.Rows[req.RowSkips:end] {
		for j, i := range indexes {
			values[j] = ""
			if row[i] != nil {
				values[j] = *row[i]
			}
		}
		rows = append(rows, strings.Join(values, req.Delimiter))
	}
	return rows, nil
}

func (s *session) Close(_ context.Context) error {
	s.closed = true
	return nil
}

func (s *session) table(ctx context.Context, name string) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed {
		return nil, &rfc.ProtocolError{Category: rfc.ErrCommunication, Details: "session closed"}
	}
	t, found := s.source.tables[name]
	if !found {
		return nil, fmt.Errorf("%s: %w", name, rfc.ErrUnknownTable)
	}
	return t, nil
}

func (t *Table) longestValue(field int) int {
	longest := 0
	for _, row := range t.Rows {
		if row[field] != nil {
			longest = max(longest, utf8.RuneCountInString(*row[field]))
		}
	}
	return longest
}
