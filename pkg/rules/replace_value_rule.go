// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"context"
	"strings"

	"github.com/datavapte/ecctransform/pkg/table"
)

// ReplaceValueRule replaces the values equal to a given value.
type ReplaceValueRule struct {
	ruleType RuleType
	oldValue string
	newValue string
	matches  func(v, oldValue string) bool
}

func ReplaceValueRuleDefinition() *Definition {
	return &Definition{
		Name:        ReplaceValue,
		Description: "Replaces the values equal to the given value.",
		Parameters:  replaceValueParameters(),
	}
}

func ReplaceValueCaseInsensitiveRuleDefinition() *Definition {
	return &Definition{
		Name:        ReplaceValueCaseInsensitive,
		Description: "Replaces the values equal to the given value, ignoring case and surrounding whitespace.",
		Parameters:  replaceValueParameters(),
	}
}

func replaceValueParameters() []Parameter {
	return []Parameter{
		{Name: FormatParam, Description: "Value to replace.", Required: true},
		{Name: Custom1Param, Description: "Replacement value."},
	}
}

func NewReplaceValueRule(params Params) (*ReplaceValueRule, error) {
	return &ReplaceValueRule{
		ruleType: ReplaceValue,
		oldValue: params.Format,
		newValue: params.Custom1,
		matches: func(v, oldValue string) bool {
			return v == oldValue
		},
	}, nil
}

func NewReplaceValueCaseInsensitiveRule(params Params) (*ReplaceValueRule, error) {
	return &ReplaceValueRule{
		ruleType: ReplaceValueCaseInsensitive,
		oldValue: strings.TrimSpace(params.Format),
		newValue: params.Custom1,
		matches: func(v, oldValue string) bool {
			return strings.EqualFold(strings.TrimSpace(v), oldValue)
		},
	}, nil
}

func (r *ReplaceValueRule) Apply(_ context.Context, column []table.Value) ([]table.Value, error) {
	return mapValues(column, func(s string) string {
		if r.matches(s, r.oldValue) {
			return r.newValue
		}
		return s
	}), nil
}

func (r *ReplaceValueRule) Type() RuleType {
	return r.ruleType
}

// ReplaceFieldWithValueRule overwrites every value of the column, nulls
// included.
type ReplaceFieldWithValueRule struct {
	value string
}

func ReplaceFieldWithValueRuleDefinition() *Definition {
	return &Definition{
		Name:        ReplaceFieldWithValue,
		Description: "Overwrites every value of the field.",
		Parameters: []Parameter{
			{Name: FormatParam, Description: "New value of the field."},
		},
	}
}

func NewReplaceFieldWithValueRule(params Params) (*ReplaceFieldWithValueRule, error) {
	return &ReplaceFieldWithValueRule{value: params.Format}, nil
}

func (r *ReplaceFieldWithValueRule) Apply(_ context.Context, column []table.Value) ([]table.Value, error) {
	result := make([]table.Value, len(column))
	for i := range result {
		result[i] = table.String(r.value)
	}
	return result, nil
}

func (r *ReplaceFieldWithValueRule) Type() RuleType {
	return ReplaceFieldWithValue
}
