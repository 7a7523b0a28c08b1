// SPDX-License-Identifier: Apache-2.0

package mapping

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/datavapte/ecctransform/pkg/table"
)

type testColumn struct {
	name   string
	values []table.Value
}

func newTestTable(t *testing.T, name string, columns ...testColumn) *table.Table {
	t.Helper()
	tbl := table.New(name)
	for _, c := range columns {
		require.NoError(t, tbl.AddColumn(c.name, c.values))
	}
	return tbl
}

func col(name string, values ...table.Value) testColumn {
	return testColumn{name: name, values: values}
}

func s(v string) table.Value { return table.String(v) }

var null = table.Null

func requireTableEqual(t *testing.T, want, got *table.Table) {
	t.Helper()
	require.NotNil(t, got)
	require.Equal(t, want.Columns(), got.Columns())
	require.Equal(t, want.NumRows(), got.NumRows())
	for _, c := range want.Columns() {
		wantValues, _ := want.Column(c)
		gotValues, _ := got.Column(c)
		if diff := cmp.Diff(wantValues, gotValues); diff != "" {
			t.Errorf("column %s mismatch (-want +got):\n%s", c, diff)
		}
	}
}

func joinedRow(source, field, target, targetField string, sourceJoin, targetJoin []string) FieldMapping {
	return FieldMapping{
		SourceTable:      source,
		SourceField:      field,
		TargetTable:      target,
		TargetField:      targetField,
		SourceJoinFields: sourceJoin,
		TargetJoinFields: targetJoin,
	}
}

func mainRow(source, field, target, targetField string) FieldMapping {
	return FieldMapping{
		SourceTable: source,
		SourceField: field,
		TargetTable: target,
		TargetField: targetField,
		IsMainTable: true,
	}
}

func TestResolver_Resolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mappings []FieldMapping
		sources  func(t *testing.T) map[string]*table.Table

		wantTables func(t *testing.T) map[string]*table.Table
		wantErr    error
	}{
		{
			name:     "ok - main row copies the column",
			mappings: []FieldMapping{mainRow("A", "ID", "T", "CODE")},
			sources: func(t *testing.T) map[string]*table.Table {
				return map[string]*table.Table{
					"A": newTestTable(t, "A", col("ID", s("7"), s("42"))),
				}
			},
			wantTables: func(t *testing.T) map[string]*table.Table {
				return map[string]*table.Table{
					"T": newTestTable(t, "T", col("CODE", s("7"), s("42"))),
				}
			},
		},
		{
			name: "ok - missing source table and field are filled with nulls",
			mappings: []FieldMapping{
				mainRow("A", "ID", "T", "CODE"),
				mainRow("A", "MISSING", "T", "X"),
				mainRow("B", "ID", "T", "Y"),
			},
			sources: func(t *testing.T) map[string]*table.Table {
				return map[string]*table.Table{
					"A": newTestTable(t, "A", col("ID", s("1"), s("2"))),
				}
			},
			wantTables: func(t *testing.T) map[string]*table.Table {
				return map[string]*table.Table{
					"T": newTestTable(t, "T",
						col("CODE", s("1"), s("2")),
						col("X", null, null),
						col("Y", null, null),
					),
				}
			},
		},
		{
			name: "ok - shorter main columns are padded",
			mappings: []FieldMapping{
				mainRow("A", "ID", "T", "A_ID"),
				mainRow("B", "ID", "T", "B_ID"),
			},
			sources: func(t *testing.T) map[string]*table.Table {
				return map[string]*table.Table{
					"A": newTestTable(t, "A", col("ID", s("1"), s("2"), s("3"))),
					"B": newTestTable(t, "B", col("ID", s("x"))),
				}
			},
			wantTables: func(t *testing.T) map[string]*table.Table {
				return map[string]*table.Table{
					"T": newTestTable(t, "T",
						col("A_ID", s("1"), s("2"), s("3")),
						col("B_ID", s("x"), null, null),
					),
				}
			},
		},
		{
			name: "ok - no main source data",
			mappings: []FieldMapping{
				mainRow("A", "ID", "T", "CODE"),
			},
			sources: func(t *testing.T) map[string]*table.Table {
				return map[string]*table.Table{}
			},
			wantTables: func(t *testing.T) map[string]*table.Table {
				return map[string]*table.Table{
					"T": newTestTable(t, "T", col("CODE", []table.Value{}...)),
				}
			},
		},
		{
			name: "ok - joined row renames and fans out",
			mappings: []FieldMapping{
				mainRow("MARA", "MATNR", "T", "PRODUCT"),
				joinedRow("MAKT", "MAKTX", "T", "DESC", []string{"MATNR"}, []string{"PRODUCT"}),
			},
			sources: func(t *testing.T) map[string]*table.Table {
				return map[string]*table.Table{
					"MARA": newTestTable(t, "MARA", col("MATNR", s("1"), s("2"), s("3"), null)),
					"MAKT": newTestTable(t, "MAKT",
						col("MATNR", s("1"), s("1"), s("3"), null),
						col("MAKTX", s("a"), s("b"), s("c"), s("d")),
					),
				}
			},
			wantTables: func(t *testing.T) map[string]*table.Table {
				return map[string]*table.Table{
					"T": newTestTable(t, "T",
						col("PRODUCT", s("1"), s("1"), s("2"), s("3"), null),
						col("DESC", s("a"), s("b"), null, s("c"), null),
					),
				}
			},
		},
		{
			name: "ok - joined row on several fields without renaming",
			mappings: []FieldMapping{
				mainRow("MARC", "MATNR", "T", "MATNR"),
				mainRow("MARC", "WERKS", "T", "WERKS"),
				joinedRow("MARD", "LGORT", "T", "LGORT", []string{"MATNR", "WERKS"}, []string{"MATNR", "WERKS"}),
			},
			sources: func(t *testing.T) map[string]*table.Table {
				return map[string]*table.Table{
					"MARC": newTestTable(t, "MARC",
						col("MATNR", s("1"), s("1")),
						col("WERKS", s("P1"), s("P2")),
					),
					"MARD": newTestTable(t, "MARD",
						col("MATNR", s("1"), s("1")),
						col("WERKS", s("P2"), s("P3")),
						col("LGORT", s("L2"), s("L3")),
					),
				}
			},
			wantTables: func(t *testing.T) map[string]*table.Table {
				return map[string]*table.Table{
					"T": newTestTable(t, "T",
						col("MATNR", s("1"), s("1")),
						col("WERKS", s("P1"), s("P2")),
						col("LGORT", null, s("L2")),
					),
				}
			},
		},
		{
			name: "ok - first mapping of a target field wins",
			mappings: []FieldMapping{
				mainRow("A", "ID", "T", "ID"),
				mainRow("A", "NAME", "T", "NAME"),
				joinedRow("B", "NAME", "T", "NAME", []string{"ID"}, []string{"ID"}),
				joinedRow("B", "CITY", "T", "CITY", []string{"ID"}, []string{"ID"}),
				joinedRow("C", "CITY", "T", "CITY", []string{"ID"}, []string{"ID"}),
			},
			sources: func(t *testing.T) map[string]*table.Table {
				return map[string]*table.Table{
					"A": newTestTable(t, "A", col("ID", s("1")), col("NAME", s("a"))),
					"B": newTestTable(t, "B", col("ID", s("1")), col("NAME", s("b")), col("CITY", s("x"))),
					"C": newTestTable(t, "C", col("ID", s("1")), col("CITY", s("y"))),
				}
			},
			wantTables: func(t *testing.T) map[string]*table.Table {
				return map[string]*table.Table{
					"T": newTestTable(t, "T", col("ID", s("1")), col("NAME", s("a")), col("CITY", s("x"))),
				}
			},
		},
		{
			name: "ok - joined row with missing source data",
			mappings: []FieldMapping{
				mainRow("A", "ID", "T", "ID"),
				joinedRow("MISSING", "NAME", "T", "NAME", []string{"ID"}, []string{"ID"}),
				joinedRow("B", "CITY", "T", "CITY", []string{"NOPE"}, []string{"ID"}),
			},
			sources: func(t *testing.T) map[string]*table.Table {
				return map[string]*table.Table{
					"A": newTestTable(t, "A", col("ID", s("1"), s("2"))),
					"B": newTestTable(t, "B", col("ID", s("1")), col("CITY", s("x"))),
				}
			},
			wantTables: func(t *testing.T) map[string]*table.Table {
				return map[string]*table.Table{
					"T": newTestTable(t, "T", col("ID", s("1"), s("2")), col("CITY", null, null)),
				}
			},
		},
		{
			name: "ok - several target tables",
			mappings: []FieldMapping{
				mainRow("A", "ID", "T", "CODE"),
				mainRow("A", "ID", "U", "KEY"),
			},
			sources: func(t *testing.T) map[string]*table.Table {
				return map[string]*table.Table{
					"A": newTestTable(t, "A", col("ID", s("1"))),
				}
			},
			wantTables: func(t *testing.T) map[string]*table.Table {
				return map[string]*table.Table{
					"T": newTestTable(t, "T", col("CODE", s("1"))),
					"U": newTestTable(t, "U", col("KEY", s("1"))),
				}
			},
		},
		{
			name: "error - target join field not in target table",
			mappings: []FieldMapping{
				mainRow("A", "ID", "T", "ID"),
				joinedRow("B", "CITY", "T", "CITY", []string{"ID"}, []string{"OTHER"}),
			},
			sources: func(t *testing.T) map[string]*table.Table {
				return map[string]*table.Table{
					"A": newTestTable(t, "A", col("ID", s("1"))),
					"B": newTestTable(t, "B", col("ID", s("1")), col("CITY", s("x"))),
				}
			},
			wantErr: ErrJoinFieldNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := NewResolver(&Config{Workers: 2})
			got, err := r.Resolve(context.Background(), tc.mappings, tc.sources(t))
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				var mappingErr *MappingError
				require.ErrorAs(t, err, &mappingErr)
				require.Equal(t, "T", mappingErr.TargetTable)
				return
			}
			require.NoError(t, err)

			want := tc.wantTables(t)
			require.Len(t, got, len(want))
			for name, wantTable := range want {
				requireTableEqual(t, wantTable, got[name])
			}
		})
	}
}

func TestResolver_Resolve_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewResolver(&Config{})
	_, err := r.Resolve(ctx, []FieldMapping{mainRow("A", "ID", "T", "CODE")}, map[string]*table.Table{})
	require.ErrorIs(t, err, context.Canceled)
}
