// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"context"
	"strings"

	"github.com/datavapte/ecctransform/pkg/table"
)

// AffixRule concatenates a fixed string to the values, before them when the
// position is LEFT and after them otherwise.
type AffixRule struct {
	ruleType RuleType
	affix    string
	left     bool
}

const (
	positionLeft  = "LEFT"
	positionRight = "RIGHT"
)

func AddPrefixRuleDefinition() *Definition {
	return affixDefinition(AddPrefix, positionLeft)
}

func AddSuffixRuleDefinition() *Definition {
	return affixDefinition(AddSuffix, positionRight)
}

func affixDefinition(ruleType RuleType, defaultPosition string) *Definition {
	return &Definition{
		Name:        ruleType,
		Description: "Concatenates a fixed string to the value.",
		Parameters: []Parameter{
			{Name: FormatParam, Description: "String to concatenate.", Required: true},
			{Name: Custom1Param, Description: "LEFT to prepend the string, anything else appends it.", Default: defaultPosition},
		},
	}
}

func NewAddPrefixRule(params Params) (*AffixRule, error) {
	return newAffixRule(AddPrefix, params, positionLeft), nil
}

func NewAddSuffixRule(params Params) (*AffixRule, error) {
	return newAffixRule(AddSuffix, params, positionRight), nil
}

func newAffixRule(ruleType RuleType, params Params, defaultPosition string) *AffixRule {
	position := strings.TrimSpace(params.Custom1)
	if position == "" {
		position = defaultPosition
	}
	return &AffixRule{
		ruleType: ruleType,
		affix:    params.Format,
		left:     strings.EqualFold(position, positionLeft),
	}
}

func (r *AffixRule) Apply(_ context.Context, column []table.Value) ([]table.Value, error) {
	return mapValues(column, func(s string) string {
		if r.left {
			return r.affix + s
		}
		return s + r.affix
	}), nil
}

func (r *AffixRule) Type() RuleType {
	return r.ruleType
}
