// SPDX-License-Identifier: Apache-2.0

package instrumentation

import (
	"context"
	"fmt"
	"strings"
	"time"

	pglib "github.com/datavapte/ecctransform/internal/postgres"
	"github.com/datavapte/ecctransform/pkg/otel"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Querier traces every statement sent to a postgres database and records
// its latency, labelled with the database role (metadata or source).
type Querier struct {
	inner    pglib.Querier
	database string
	tracer   trace.Tracer
	meter    metric.Meter
	metrics  *metrics
}

type metrics struct {
	queryLatency metric.Int64Histogram
	queryErrors  metric.Int64Counter
}

const (
	databaseAttributeKey  = "database"
	queryTypeAttributeKey = "query_type"
	queryAttributeKey     = "query"
	unknownQueryType      = "unknown"
	txQueryType           = "tx"
)

// NewQuerierBuilder wraps every querier built with an instrumented one.
func NewQuerierBuilder(b pglib.QuerierBuilder, database string, i *otel.Instrumentation) pglib.QuerierBuilder {
	return func(ctx context.Context, url string) (pglib.Querier, error) {
		querier, err := b(ctx, url)
		if err != nil {
			return nil, err
		}
		return NewQuerier(querier, database, i)
	}
}

func NewQuerier(q pglib.Querier, database string, instrumentation *otel.Instrumentation) (pglib.Querier, error) {
	if !instrumentation.IsEnabled() {
		return q, nil
	}

	querier := &Querier{
		inner:    q,
		database: database,
		tracer:   instrumentation.Tracer,
		meter:    instrumentation.Meter,
	}

	if err := querier.initMetrics(); err != nil {
		return nil, fmt.Errorf("initialising postgres querier metrics: %w", err)
	}

	return querier, nil
}

func (i *Querier) Query(ctx context.Context, query string, args ...any) (rows pglib.Rows, err error) {
	attrs := queryAttributes(i.database, query)
	ctx, span := otel.StartSpan(ctx, i.tracer, "querier.Query", trace.WithAttributes(attrs...))
	start := time.Now()
	defer func() {
		i.record(ctx, start, attrs, err)
		otel.CloseSpan(span, err)
	}()

	return i.inner.Query(ctx, query, args...)
}

func (i *Querier) QueryRow(ctx context.Context, dest []any, query string, args ...any) (err error) {
	attrs := queryAttributes(i.database, query)
	ctx, span := otel.StartSpan(ctx, i.tracer, "querier.QueryRow", trace.WithAttributes(attrs...))
	start := time.Now()
	defer func() {
		i.record(ctx, start, attrs, err)
		otel.CloseSpan(span, err)
	}()

	return i.inner.QueryRow(ctx, dest, query, args...)
}

func (i *Querier) Exec(ctx context.Context, query string, args ...any) (tag pglib.CommandTag, err error) {
	attrs := queryAttributes(i.database, query)
	ctx, span := otel.StartSpan(ctx, i.tracer, "querier.Exec", trace.WithAttributes(attrs...))
	start := time.Now()
	defer func() {
		i.record(ctx, start, attrs, err)
		otel.CloseSpan(span, err)
	}()

	return i.inner.Exec(ctx, query, args...)
}

// ExecInTxWithOptions traces the transaction as a whole. The statements
// within it are not traced individually.
func (i *Querier) ExecInTxWithOptions(ctx context.Context, fn func(tx pglib.Tx) error, txOpts pglib.TxOptions) (err error) {
	attrs := queryAttributes(i.database, txQueryType)
	ctx, span := otel.StartSpan(ctx, i.tracer, "querier.ExecInTxWithOptions", trace.WithAttributes(attrs...))
	start := time.Now()
	defer func() {
		i.record(ctx, start, attrs, err)
		otel.CloseSpan(span, err)
	}()

	return i.inner.ExecInTxWithOptions(ctx, fn, txOpts)
}

func (i *Querier) Ping(ctx context.Context) error {
	return i.inner.Ping(ctx)
}

func (i *Querier) Close(ctx context.Context) error {
	return i.inner.Close(ctx)
}

func (i *Querier) record(ctx context.Context, start time.Time, attrs []attribute.KeyValue, err error) {
	if i.metrics == nil {
		return
	}
	opts := metric.WithAttributes(attrs...)
	i.metrics.queryLatency.Record(ctx, time.Since(start).Milliseconds(), opts)
	if err != nil {
		i.metrics.queryErrors.Add(ctx, 1, opts)
	}
}

func (i *Querier) initMetrics() error {
	if i.meter == nil {
		return nil
	}

	latency, err := i.meter.Int64Histogram("ecctransform.postgres.querier.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Distribution of the time taken to perform a query"))
	if err != nil {
		return err
	}
	errs, err := i.meter.Int64Counter("ecctransform.postgres.querier.errors",
		metric.WithUnit("{query}"),
		metric.WithDescription("Number of queries that returned an error"))
	if err != nil {
		return err
	}
	i.metrics = &metrics{queryLatency: latency, queryErrors: errs}
	return nil
}

// queryAttributes never carries the query arguments, only the statement.
func queryAttributes(database, query string) []attribute.KeyValue {
	qt := unknownQueryType
	if fields := strings.Fields(query); len(fields) > 0 {
		qt = strings.ToUpper(fields[0])
	}

	attrs := []attribute.KeyValue{
		attribute.String(databaseAttributeKey, database),
		attribute.String(queryTypeAttributeKey, qt),
	}
	if qt == unknownQueryType || query == txQueryType {
		return attrs
	}
	return append(attrs, attribute.String(queryAttributeKey, query))
}
