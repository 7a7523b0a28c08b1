// SPDX-License-Identifier: Apache-2.0

package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/datavapte/ecctransform/pkg/otel"
	"github.com/datavapte/ecctransform/pkg/rules"
	"github.com/datavapte/ecctransform/pkg/table"
)

type Rule struct {
	inner   rules.Rule
	tracer  trace.Tracer
	meter   metric.Meter
	metrics *metrics
}

type metrics struct {
	applyLatency metric.Int64Histogram
	values       metric.Int64Counter
}

const typeAttributeKey = "rule_type"

func NewRule(r rules.Rule, instrumentation *otel.Instrumentation) (rules.Rule, error) {
	if !instrumentation.IsEnabled() {
		return r, nil
	}

	rule := &Rule{
		inner:  r,
		tracer: instrumentation.Tracer,
		meter:  instrumentation.Meter,
	}
	if err := rule.initMetrics(); err != nil {
		return nil, fmt.Errorf("initialising rule metrics: %w", err)
	}
	return rule, nil
}

func (i *Rule) Apply(ctx context.Context, column []table.Value) (res []table.Value, err error) {
	ctx, span := otel.StartSpan(ctx, i.tracer, "rule.Apply", trace.WithAttributes(i.typeAttribute()))
	defer func() { otel.CloseSpan(span, err) }()

	if i.metrics != nil {
		startTime := time.Now()
		defer func() {
			opt := metric.WithAttributes(i.typeAttribute())
			i.metrics.applyLatency.Record(ctx, time.Since(startTime).Milliseconds(), opt)
			i.metrics.values.Add(ctx, int64(len(column)), opt)
		}()
	}
	return i.inner.Apply(ctx, column)
}

func (i *Rule) Type() rules.RuleType {
	return i.inner.Type()
}

func (i *Rule) initMetrics() error {
	if i.meter == nil {
		return nil
	}

	m := &metrics{}
	var err error
	m.applyLatency, err = i.meter.Int64Histogram("ecctransform.rule.apply.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Distribution of time taken to apply a rule to a column"))
	if err != nil {
		return err
	}
	m.values, err = i.meter.Int64Counter("ecctransform.rule.apply.values",
		metric.WithDescription("Number of values a rule was applied to"))
	if err != nil {
		return err
	}
	i.metrics = m
	return nil
}

func (i *Rule) typeAttribute() attribute.KeyValue {
	return attribute.String(typeAttributeKey, string(i.inner.Type()))
}
