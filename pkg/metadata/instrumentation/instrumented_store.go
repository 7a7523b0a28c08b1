// SPDX-License-Identifier: Apache-2.0

package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/datavapte/ecctransform/pkg/mapping"
	"github.com/datavapte/ecctransform/pkg/metadata"
	"github.com/datavapte/ecctransform/pkg/otel"
	"github.com/datavapte/ecctransform/pkg/rules"
)

// Store traces the metadata queries.
type Store struct {
	inner  metadata.Store
	tracer trace.Tracer
}

func NewStore(s metadata.Store, instrumentation *otel.Instrumentation) metadata.Store {
	if !instrumentation.IsEnabled() || instrumentation.Tracer == nil {
		return s
	}
	return &Store{
		inner:  s,
		tracer: instrumentation.Tracer,
	}
}

func (i *Store) Template(ctx context.Context, version, name string) (t *metadata.Template, err error) {
	ctx, span := otel.StartSpan(ctx, i.tracer, "metadata.Template", trace.WithAttributes(
		attribute.String("template_version", version),
		attribute.String("template_name", name),
	))
	defer func() { otel.CloseSpan(span, err) }()
	return i.inner.Template(ctx, version, name)
}

func (i *Store) FieldMappings(ctx context.Context, templateID int64, clientID string) (mappings []mapping.FieldMapping, err error) {
	ctx, span := otel.StartSpan(ctx, i.tracer, "metadata.FieldMappings", trace.WithAttributes(
		attribute.Int64("template_id", templateID),
		attribute.String("client_id", clientID),
	))
	defer func() {
		span.SetAttributes(attribute.Int("mappings", len(mappings)))
		otel.CloseSpan(span, err)
	}()
	return i.inner.FieldMappings(ctx, templateID, clientID)
}

func (i *Store) TransformationRules(ctx context.Context, clientID string) (transformationRules []rules.TransformationRule, err error) {
	ctx, span := otel.StartSpan(ctx, i.tracer, "metadata.TransformationRules", trace.WithAttributes(
		attribute.String("client_id", clientID),
	))
	defer func() {
		span.SetAttributes(attribute.Int("rules", len(transformationRules)))
		otel.CloseSpan(span, err)
	}()
	return i.inner.TransformationRules(ctx, clientID)
}

func (i *Store) Close() error {
	return i.inner.Close()
}
