// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/datavapte/ecctransform/pkg/otel"
	"github.com/datavapte/ecctransform/pkg/rfc"
)

type InstrumentedExtractor struct {
	inner   TableExtractor
	tracer  trace.Tracer
	meter   metric.Meter
	metrics *extractorMetrics
}

type extractorMetrics struct {
	reads         metric.Int64Counter
	shrinks       metric.Int64Counter
	skippedFields metric.Int64Counter
	rows          metric.Int64Counter
	latency       metric.Int64Histogram
}

const tableAttributeKey = "table"

// NewInstrumentedExtractor wraps the extractor with a span per table and
// read, shrink and row counters. It returns the extractor on input if
// instrumentation is disabled.
func NewInstrumentedExtractor(e TableExtractor, i *otel.Instrumentation) (TableExtractor, error) {
	if !i.IsEnabled() {
		return e, nil
	}

	ie := &InstrumentedExtractor{
		inner:  e,
		tracer: i.Tracer,
		meter:  i.Meter,
	}
	if err := ie.initMetrics(); err != nil {
		return nil, fmt.Errorf("initialising extractor metrics: %w", err)
	}
	return ie, nil
}

func (i *InstrumentedExtractor) ExtractTable(ctx context.Context, session rfc.Session, tableName string, fields []string) (extraction *Extraction, err error) {
	attrs := []attribute.KeyValue{attribute.String(tableAttributeKey, tableName)}
	ctx, span := otel.StartSpan(ctx, i.tracer, "extractor.ExtractTable", trace.WithAttributes(
		append(attrs, attribute.Int("fields", len(fields)))...,
	))
	defer func() { otel.CloseSpan(span, err) }()

	start := time.Now()
	extraction, err = i.inner.ExtractTable(ctx, session, tableName, fields)

	if i.metrics != nil {
		opt := metric.WithAttributes(attrs...)
		i.metrics.latency.Record(ctx, time.Since(start).Milliseconds(), opt)
		if extraction != nil {
			i.metrics.reads.Add(ctx, int64(extraction.Reads), opt)
			i.metrics.shrinks.Add(ctx, int64(extraction.Shrinks), opt)
			i.metrics.skippedFields.Add(ctx, int64(len(extraction.SkippedFields)), opt)
			i.metrics.rows.Add(ctx, int64(extraction.Table.NumRows()), opt)
		}
	}
	return extraction, err
}

func (i *InstrumentedExtractor) initMetrics() error {
	if i.meter == nil {
		return nil
	}

	m := &extractorMetrics{}
	var err error
	if m.reads, err = i.meter.Int64Counter("ecctransform.extract.reads",
		metric.WithDescription("Number of remote row reads")); err != nil {
		return err
	}
	if m.shrinks, err = i.meter.Int64Counter("ecctransform.extract.chunk_shrinks",
		metric.WithDescription("Number of field chunk shrinks after a rejected read")); err != nil {
		return err
	}
	if m.skippedFields, err = i.meter.Int64Counter("ecctransform.extract.skipped_fields",
		metric.WithDescription("Number of fields skipped after the chunk shrank to zero")); err != nil {
		return err
	}
	if m.rows, err = i.meter.Int64Counter("ecctransform.extract.rows",
		metric.WithDescription("Number of rows extracted")); err != nil {
		return err
	}
	if m.latency, err = i.meter.Int64Histogram("ecctransform.extract.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Table extraction latency")); err != nil {
		return err
	}
	i.metrics = m
	return nil
}
