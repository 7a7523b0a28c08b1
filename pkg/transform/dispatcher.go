// SPDX-License-Identifier: Apache-2.0

package transform

import (
	"context"
	"errors"
	"fmt"

	loglib "github.com/datavapte/ecctransform/pkg/log"
	"github.com/datavapte/ecctransform/pkg/rules"
	"github.com/datavapte/ecctransform/pkg/rules/builder"
	"github.com/datavapte/ecctransform/pkg/table"
)

type ruleBuilder interface {
	New(ruleType rules.RuleType, params rules.Params) (rules.Rule, error)
}

// RuleError identifies the rule occurrence that failed.
type RuleError struct {
	Table string
	Field string
	Rule  rules.RuleType
	Err   error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("applying rule %s to %s.%s: %v", e.Rule, e.Table, e.Field, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

// Summary counts what happened to the rule occurrences of a run.
type Summary struct {
	Applied int
	// Skipped occurrences target a table or field that is not mapped.
	Skipped int
	// Disabled occurrences miss a required parameter.
	Disabled int
	// Unsupported occurrences name a rule that does not exist. They are
	// ignored.
	Unsupported int
}

// Dispatcher applies rule occurrences to the target tables.
type Dispatcher struct {
	logger  loglib.Logger
	builder ruleBuilder
}

type Option func(*Dispatcher)

func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		logger:  loglib.NewNoopLogger(),
		builder: builder.NewRuleBuilder(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func WithLogger(l loglib.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = loglib.WithModule(l, "rule_dispatcher")
	}
}

func WithRuleBuilder(b ruleBuilder) Option {
	return func(d *Dispatcher) {
		d.builder = b
	}
}

// ApplyRules applies the occurrences in order, modifying the tables in
// place. Rules of the same field are stacked, each one sees the result of
// the previous one. Unsupported rule names are ignored. The first failure
// stops the processing.
func (d *Dispatcher) ApplyRules(ctx context.Context, tables map[string]*table.Table, occurrences []rules.Occurrence) (*Summary, error) {
	summary := &Summary{}
	for _, occ := range occurrences {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		logFields := loglib.Fields{
			loglib.TableField: occ.TargetTable,
			loglib.FieldField: occ.TargetField,
			loglib.RuleField:  string(occ.Rule),
		}

		t, found := tables[occ.TargetTable]
		if !found {
			d.logger.Debug("target table not mapped, skipping rule", logFields)
			summary.Skipped++
			continue
		}
		column, found := t.Column(occ.TargetField)
		if !found {
			d.logger.Debug("target field not mapped, skipping rule", logFields)
			summary.Skipped++
			continue
		}

		rule, err := d.builder.New(occ.Rule, occ.Params)
		if err != nil {
			if errors.Is(err, rules.ErrMissingParameter) {
				d.logger.Debug("rule disabled", loglib.MergeFields(logFields, loglib.Fields{"reason": err.Error()}))
				summary.Disabled++
				continue
			}
			if errors.Is(err, rules.ErrUnsupportedRule) {
				d.logger.Warn(err, "unsupported rule, ignoring it", logFields)
				summary.Unsupported++
				continue
			}
			return nil, newRuleError(occ, err)
		}

		result, err := rule.Apply(ctx, column)
		if err != nil {
			return nil, newRuleError(occ, err)
		}
		if err := t.SetColumn(occ.TargetField, result); err != nil {
			return nil, newRuleError(occ, err)
		}
		summary.Applied++
		d.logger.Trace("rule applied", logFields)
	}

	d.logger.Info("rules applied", loglib.Fields{
		"applied":     summary.Applied,
		"skipped":     summary.Skipped,
		"disabled":    summary.Disabled,
		"unsupported": summary.Unsupported,
	})
	return summary, nil
}

// Validate builds every occurrence without applying it. It returns the
// disabled occurrences, and the joined errors of the ones that cannot be
// built, unsupported rule names included.
func (d *Dispatcher) Validate(occurrences []rules.Occurrence) ([]rules.Occurrence, error) {
	disabled := []rules.Occurrence{}
	var errs []error
	for _, occ := range occurrences {
		if _, err := d.builder.New(occ.Rule, occ.Params); err != nil {
			if errors.Is(err, rules.ErrMissingParameter) {
				disabled = append(disabled, occ)
				continue
			}
			errs = append(errs, newRuleError(occ, err))
		}
	}
	return disabled, errors.Join(errs...)
}

func newRuleError(occ rules.Occurrence, err error) *RuleError {
	return &RuleError{
		Table: occ.TargetTable,
		Field: occ.TargetField,
		Rule:  occ.Rule,
		Err:   err,
	}
}
