// SPDX-License-Identifier: Apache-2.0

package instrumentation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/datavapte/ecctransform/pkg/mapping"
	"github.com/datavapte/ecctransform/pkg/metadata"
	"github.com/datavapte/ecctransform/pkg/metadata/mocks"
	"github.com/datavapte/ecctransform/pkg/otel"
	"github.com/datavapte/ecctransform/pkg/rules"
)

func TestNewStore(t *testing.T) {
	t.Parallel()

	inner := &mocks.Store{}
	require.Same(t, inner, NewStore(inner, nil))
	require.Same(t, inner, NewStore(inner, &otel.Instrumentation{}))
}

func TestStore_Spans(t *testing.T) {
	t.Parallel()

	errTest := errors.New("oh noes")
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	s := NewStore(&mocks.Store{
		TemplateFn: func(ctx context.Context, version, name string) (*metadata.Template, error) {
			return nil, errTest
		},
		FieldMappingsFn: func(ctx context.Context, templateID int64, clientID string) ([]mapping.FieldMapping, error) {
			return []mapping.FieldMapping{{SourceTable: "MARA"}}, nil
		},
		TransformationRulesFn: func(ctx context.Context, clientID string) ([]rules.TransformationRule, error) {
			return nil, nil
		},
	}, &otel.Instrumentation{Tracer: provider.Tracer("test")})

	ctx := context.Background()
	_, err := s.Template(ctx, "1909", "Material Master - Basic")
	require.ErrorIs(t, err, errTest)
	mappings, err := s.FieldMappings(ctx, 1, "C100")
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	_, err = s.TransformationRules(ctx, "C100")
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	require.Equal(t, "metadata.Template", spans[0].Name())
	require.Equal(t, codes.Error, spans[0].Status().Code)
	require.Equal(t, "metadata.FieldMappings", spans[1].Name())
	require.Equal(t, codes.Unset, spans[1].Status().Code)
	require.Equal(t, "metadata.TransformationRules", spans[2].Name())
}
