// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	pglib "github.com/datavapte/ecctransform/internal/postgres"
	"github.com/datavapte/ecctransform/internal/postgres/mocks"
	loglib "github.com/datavapte/ecctransform/pkg/log"
	"github.com/datavapte/ecctransform/pkg/mapping"
	"github.com/datavapte/ecctransform/pkg/metadata"
	"github.com/datavapte/ecctransform/pkg/rules"
)

func newTestStore(q pglib.Querier) *Store {
	return &Store{querier: q, logger: loglib.NewNoopLogger()}
}

func TestStore_Template(t *testing.T) {
	t.Parallel()

	errTest := errors.New("oh noes")

	tests := []struct {
		name    string
		querier *mocks.Querier

		wantTemplate *metadata.Template
		wantErr      error
	}{
		{
			name: "ok",
			querier: &mocks.Querier{
				QueryRowFn: func(ctx context.Context, dest []any, query string, args ...any) error {
					require.Equal(t, templateQuery, query)
					require.Equal(t, []any{"1909", "Material Master - Basic"}, args)
					*dest[0].(*int64) = 12
					*dest[1].(*string) = "1909"
					*dest[2].(*string) = "Material Master - Basic"
					*dest[3].(*string) = "/templates/material.xlsx"
					return nil
				},
			},
			wantTemplate: &metadata.Template{
				ID:                12,
				Version:           "1909",
				Name:              "Material Master - Basic",
				BlankTemplatePath: "/templates/material.xlsx",
			},
		},
		{
			name: "error - not found",
			querier: &mocks.Querier{
				QueryRowFn: func(ctx context.Context, dest []any, query string, args ...any) error {
					return pglib.ErrNoRows
				},
			},
			wantErr: metadata.ErrTemplateNotFound,
		},
		{
			name: "error - querying",
			querier: &mocks.Querier{
				QueryRowFn: func(ctx context.Context, dest []any, query string, args ...any) error {
					return errTest
				},
			},
			wantErr: errTest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := newTestStore(tc.querier)
			template, err := s.Template(context.Background(), "1909", "Material Master - Basic")
			require.ErrorIs(t, err, tc.wantErr)
			require.Equal(t, tc.wantTemplate, template)
		})
	}
}

func TestStore_FieldMappings(t *testing.T) {
	t.Parallel()

	errTest := errors.New("oh noes")

	tests := []struct {
		name    string
		querier *mocks.Querier

		wantMappings []mapping.FieldMapping
		wantErr      error
	}{
		{
			name: "ok - filtered by client",
			querier: &mocks.Querier{
				QueryFn: func(ctx context.Context, query string, args ...any) (pglib.Rows, error) {
					require.Equal(t, fieldMappingsQuery, query)
					require.Equal(t, []any{int64(12)}, args)
					return &mocks.Rows{Values: [][]any{
						{"MARA", "MATNR", "T", "PRODUCT", true, nil, nil, nil, nil},
						{"MAKT", "MAKTX", "T", "DESC", false, "MATNR", "PRODUCT", "c100", nil},
						{"MARA", "MTART", "T", "TYPE", true, nil, nil, "C200", nil},
						{"MARA", "MEINS", "T", "UNIT", true, nil, nil, nil, "C300|C100"},
					}}, nil
				},
			},
			wantMappings: []mapping.FieldMapping{
				{SourceTable: "MARA", SourceField: "MATNR", TargetTable: "T", TargetField: "PRODUCT", IsMainTable: true, SourceJoinFields: []string{}, TargetJoinFields: []string{}},
				{SourceTable: "MAKT", SourceField: "MAKTX", TargetTable: "T", TargetField: "DESC", SourceJoinFields: []string{"MATNR"}, TargetJoinFields: []string{"PRODUCT"}},
			},
		},
		{
			name: "error - querying",
			querier: &mocks.Querier{
				QueryFn: func(ctx context.Context, query string, args ...any) (pglib.Rows, error) {
					return nil, errTest
				},
			},
			wantErr: errTest,
		},
		{
			name: "error - reading rows",
			querier: &mocks.Querier{
				QueryFn: func(ctx context.Context, query string, args ...any) (pglib.Rows, error) {
					return &mocks.Rows{ErrFn: func() error { return errTest }}, nil
				},
			},
			wantErr: errTest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := newTestStore(tc.querier)
			mappings, err := s.FieldMappings(context.Background(), 12, "C100")
			require.ErrorIs(t, err, tc.wantErr)
			require.Equal(t, tc.wantMappings, mappings)
		})
	}
}

func TestStore_TransformationRules(t *testing.T) {
	t.Parallel()

	rows := &mocks.Rows{Values: [][]any{
		{"C100", "T", "CODE", "ZEROFILL|ADDPREFIX", "5|", nil, "X", nil},
		{"C100", "T", "DESC", nil, nil, nil, nil, nil},
	}}
	s := newTestStore(&mocks.Querier{
		QueryFn: func(ctx context.Context, query string, args ...any) (pglib.Rows, error) {
			require.Equal(t, transformationRulesQuery, query)
			require.Equal(t, []any{"C100"}, args)
			return rows, nil
		},
	})

	got, err := s.TransformationRules(context.Background(), "C100")
	require.NoError(t, err)
	require.Equal(t, []rules.TransformationRule{
		{
			ClientID:    "C100",
			TargetTable: "T",
			TargetField: "CODE",
			RuleNames:   []string{"ZEROFILL", "ADDPREFIX"},
			Format:      []string{"5", ""},
			Custom2:     []string{"X"},
		},
		{ClientID: "C100", TargetTable: "T", TargetField: "DESC"},
	}, got)
	require.True(t, rows.IsClosed())
}
