// SPDX-License-Identifier: Apache-2.0

package instrumentation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	pglib "github.com/datavapte/ecctransform/internal/postgres"
	"github.com/datavapte/ecctransform/internal/postgres/mocks"
	"github.com/datavapte/ecctransform/pkg/otel"
)

func TestNewQuerier(t *testing.T) {
	t.Parallel()

	inner := &mocks.Querier{}

	q, err := NewQuerier(inner, "metadata", nil)
	require.NoError(t, err)
	require.Same(t, inner, q)

	q, err = NewQuerier(inner, "metadata", &otel.Instrumentation{
		Meter:  metricnoop.NewMeterProvider().Meter("test"),
		Tracer: tracenoop.NewTracerProvider().Tracer("test"),
	})
	require.NoError(t, err)
	require.IsType(t, &Querier{}, q)
}

func TestQuerier_QueryRow(t *testing.T) {
	t.Parallel()

	errTest := errors.New("oh noes")
	inner := &mocks.Querier{
		QueryRowFn: func(ctx context.Context, dest []any, query string, args ...any) error {
			require.Equal(t, "SELECT 1", query)
			return errTest
		},
	}

	q, err := NewQuerier(inner, "metadata", &otel.Instrumentation{
		Meter:  metricnoop.NewMeterProvider().Meter("test"),
		Tracer: tracenoop.NewTracerProvider().Tracer("test"),
	})
	require.NoError(t, err)

	var n int
	err = q.QueryRow(context.Background(), []any{&n}, "SELECT 1")
	require.ErrorIs(t, err, errTest)
}

func TestQueryAttributes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string

		want []attribute.KeyValue
	}{
		{
			name:  "empty",
			query: "",
			want: []attribute.KeyValue{
				attribute.String(databaseAttributeKey, "metadata"),
				attribute.String(queryTypeAttributeKey, unknownQueryType),
			},
		},
		{
			name:  "select",
			query: "select * from t",
			want: []attribute.KeyValue{
				attribute.String(databaseAttributeKey, "metadata"),
				attribute.String(queryTypeAttributeKey, "SELECT"),
				attribute.String(queryAttributeKey, "select * from t"),
			},
		},
		{
			name:  "leading whitespace",
			query: "\n\tSELECT 1",
			want: []attribute.KeyValue{
				attribute.String(databaseAttributeKey, "metadata"),
				attribute.String(queryTypeAttributeKey, "SELECT"),
				attribute.String(queryAttributeKey, "\n\tSELECT 1"),
			},
		},
		{
			name:  "transaction",
			query: txQueryType,
			want: []attribute.KeyValue{
				attribute.String(databaseAttributeKey, "metadata"),
				attribute.String(queryTypeAttributeKey, "TX"),
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, queryAttributes("metadata", tc.query))
		})
	}
}

func TestNewQuerierBuilder(t *testing.T) {
	t.Parallel()

	errTest := errors.New("oh noes")
	inner := &mocks.Querier{}
	instrumentation := &otel.Instrumentation{
		Meter:  metricnoop.NewMeterProvider().Meter("test"),
		Tracer: tracenoop.NewTracerProvider().Tracer("test"),
	}

	b := NewQuerierBuilder(func(context.Context, string) (pglib.Querier, error) {
		return inner, nil
	}, "metadata", instrumentation)
	q, err := b(context.Background(), "postgres://localhost")
	require.NoError(t, err)
	require.IsType(t, &Querier{}, q)

	b = NewQuerierBuilder(func(context.Context, string) (pglib.Querier, error) {
		return nil, errTest
	}, "metadata", instrumentation)
	_, err = b(context.Background(), "postgres://localhost")
	require.ErrorIs(t, err, errTest)
}

var _ pglib.Querier = (*Querier)(nil)
