// SPDX-License-Identifier: Apache-2.0

package transform

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datavapte/ecctransform/pkg/rules"
	"github.com/datavapte/ecctransform/pkg/table"
)

type mockRuleBuilder struct {
	newFn func(ruleType rules.RuleType, params rules.Params) (rules.Rule, error)
}

func (m *mockRuleBuilder) New(ruleType rules.RuleType, params rules.Params) (rules.Rule, error) {
	return m.newFn(ruleType, params)
}

type mockRule struct {
	applyFn func(column []table.Value) ([]table.Value, error)
}

func (m *mockRule) Apply(_ context.Context, column []table.Value) ([]table.Value, error) {
	return m.applyFn(column)
}

func (m *mockRule) Type() rules.RuleType {
	return "MOCK"
}

func testTables(t *testing.T) map[string]*table.Table {
	t.Helper()
	tbl := table.New("T")
	require.NoError(t, tbl.AddColumn("CODE", table.Strings("7", "42")))
	require.NoError(t, tbl.AddColumn("NAME", []table.Value{table.String(" 7"), table.Null}))
	return map[string]*table.Table{"T": tbl}
}

func columnOf(t *testing.T, tables map[string]*table.Table, tableName, field string) []table.Value {
	t.Helper()
	values, found := tables[tableName].Column(field)
	require.True(t, found)
	return values
}

func TestDispatcher_ApplyRules(t *testing.T) {
	t.Parallel()

	errTest := errors.New("oh noes")

	tests := []struct {
		name        string
		occurrences []rules.Occurrence
		builder     ruleBuilder

		wantCode    []table.Value
		wantName    []table.Value
		wantSummary *Summary
		wantErr     error
		wantRule    rules.RuleType
	}{
		{
			name: "ok - zerofill",
			occurrences: []rules.Occurrence{
				{TargetTable: "T", TargetField: "CODE", Rule: rules.ZeroFill, Params: rules.Params{Format: "5"}},
			},
			wantCode:    table.Strings("00007", "00042"),
			wantName:    []table.Value{table.String(" 7"), table.Null},
			wantSummary: &Summary{Applied: 1},
		},
		{
			name: "ok - stacked rules apply in order",
			occurrences: []rules.Occurrence{
				{TargetTable: "T", TargetField: "NAME", Rule: rules.StripWhitespace},
				{TargetTable: "T", TargetField: "NAME", Rule: rules.ZeroFill, Params: rules.Params{Format: "3"}},
				{TargetTable: "T", TargetField: "CODE", Rule: rules.ZeroFill, Params: rules.Params{Format: "2"}},
				{TargetTable: "T", TargetField: "CODE", Rule: rules.StripWhitespace},
			},
			wantCode:    table.Strings("07", "42"),
			wantName:    []table.Value{table.String("007"), table.Null},
			wantSummary: &Summary{Applied: 4},
		},
		{
			name: "ok - reverse order gives a different result",
			occurrences: []rules.Occurrence{
				{TargetTable: "T", TargetField: "NAME", Rule: rules.ZeroFill, Params: rules.Params{Format: "3"}},
				{TargetTable: "T", TargetField: "NAME", Rule: rules.StripWhitespace},
			},
			wantCode:    table.Strings("7", "42"),
			wantName:    []table.Value{table.String("0 7"), table.Null},
			wantSummary: &Summary{Applied: 2},
		},
		{
			name: "ok - unmapped targets are skipped and empty parameters disable the rule",
			occurrences: []rules.Occurrence{
				{TargetTable: "U", TargetField: "CODE", Rule: rules.ZeroFill, Params: rules.Params{Format: "5"}},
				{TargetTable: "T", TargetField: "MISSING", Rule: "UNKNOWN"},
				{TargetTable: "T", TargetField: "CODE", Rule: rules.AddPrefix},
				{TargetTable: "T", TargetField: "CODE", Rule: rules.AddSuffix, Params: rules.Params{Format: "X"}},
			},
			wantCode:    table.Strings("7X", "42X"),
			wantName:    []table.Value{table.String(" 7"), table.Null},
			wantSummary: &Summary{Applied: 1, Skipped: 2, Disabled: 1},
		},
		{
			name: "ok - unsupported rule is ignored and the next rules apply",
			occurrences: []rules.Occurrence{
				{TargetTable: "T", TargetField: "CODE", Rule: "UPPERCASE"},
				{TargetTable: "T", TargetField: "CODE", Rule: rules.ZeroFill, Params: rules.Params{Format: "5"}},
			},
			wantCode:    table.Strings("00007", "00042"),
			wantName:    []table.Value{table.String(" 7"), table.Null},
			wantSummary: &Summary{Applied: 1, Unsupported: 1},
		},
		{
			name: "error - invalid parameters",
			occurrences: []rules.Occurrence{
				{TargetTable: "T", TargetField: "CODE", Rule: rules.ZeroFill, Params: rules.Params{Format: "five"}},
			},
			wantErr:  rules.ErrInvalidParameters,
			wantRule: rules.ZeroFill,
			wantName: []table.Value{table.String(" 7"), table.Null},
		},
		{
			name: "error - rule failure",
			occurrences: []rules.Occurrence{
				{TargetTable: "T", TargetField: "CODE", Rule: "MOCK"},
			},
			builder: &mockRuleBuilder{
				newFn: func(ruleType rules.RuleType, params rules.Params) (rules.Rule, error) {
					return &mockRule{
						applyFn: func(column []table.Value) ([]table.Value, error) {
							return nil, errTest
						},
					}, nil
				},
			},
			wantErr:  errTest,
			wantRule: "MOCK",
			wantName: []table.Value{table.String(" 7"), table.Null},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			opts := []Option{}
			if tc.builder != nil {
				opts = append(opts, WithRuleBuilder(tc.builder))
			}
			d := NewDispatcher(opts...)

			tables := testTables(t)
			summary, err := d.ApplyRules(context.Background(), tables, tc.occurrences)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				var ruleErr *RuleError
				require.ErrorAs(t, err, &ruleErr)
				require.Equal(t, tc.wantRule, ruleErr.Rule)
				require.Equal(t, "T", ruleErr.Table)
				require.Nil(t, summary)
				require.Equal(t, tc.wantName, columnOf(t, tables, "T", "NAME"))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantSummary, summary)
			require.Equal(t, tc.wantCode, columnOf(t, tables, "T", "CODE"))
			require.Equal(t, tc.wantName, columnOf(t, tables, "T", "NAME"))
		})
	}
}

func TestDispatcher_Validate(t *testing.T) {
	t.Parallel()

	d := NewDispatcher()
	disabled, err := d.Validate([]rules.Occurrence{
		{TargetTable: "T", TargetField: "A", Rule: rules.ZeroFill, Params: rules.Params{Format: "5"}},
		{TargetTable: "T", TargetField: "B", Rule: rules.ZeroFill},
		{TargetTable: "T", TargetField: "C", Rule: rules.ZeroFill, Params: rules.Params{Format: "x"}},
		{TargetTable: "T", TargetField: "D", Rule: "UPPERCASE"},
	})
	require.ErrorIs(t, err, rules.ErrInvalidParameters)
	require.ErrorIs(t, err, rules.ErrUnsupportedRule)
	require.Len(t, disabled, 1)
	require.Equal(t, "B", disabled[0].TargetField)
}

func TestDispatcher_ApplyRules_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDispatcher()
	_, err := d.ApplyRules(ctx, testTables(t), []rules.Occurrence{
		{TargetTable: "T", TargetField: "CODE", Rule: rules.StripWhitespace},
	})
	require.ErrorIs(t, err, context.Canceled)
}
