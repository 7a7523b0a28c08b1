// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"context"
	"strings"
	"unicode"

	"github.com/datavapte/ecctransform/pkg/table"
)

type StripWhitespaceRule struct{}

func StripWhitespaceRuleDefinition() *Definition {
	return &Definition{
		Name:        StripWhitespace,
		Description: "Removes leading and trailing whitespace.",
	}
}

func NewStripWhitespaceRule(_ Params) (*StripWhitespaceRule, error) {
	return &StripWhitespaceRule{}, nil
}

func (r *StripWhitespaceRule) Apply(_ context.Context, column []table.Value) ([]table.Value, error) {
	return mapValues(column, strings.TrimSpace), nil
}

func (r *StripWhitespaceRule) Type() RuleType {
	return StripWhitespace
}

// SpecialCharRemovalRule removes every character that is not a letter, a
// digit, an underscore or one of the allowed characters.
type SpecialCharRemovalRule struct {
	allowed map[rune]struct{}
}

func SpecialCharRemovalRuleDefinition() *Definition {
	return &Definition{
		Name:        SpecialCharRemoval,
		Description: "Removes the characters that are not letters, digits or underscores.",
		Parameters: []Parameter{
			{Name: FormatParam, Description: "Additional characters to keep."},
		},
	}
}

func NewSpecialCharRemovalRule(params Params) (*SpecialCharRemovalRule, error) {
	allowed := make(map[rune]struct{}, len(params.Format))
	for _, r := range params.Format {
		allowed[r] = struct{}{}
	}
	return &SpecialCharRemovalRule{allowed: allowed}, nil
}

func (r *SpecialCharRemovalRule) Apply(_ context.Context, column []table.Value) ([]table.Value, error) {
	return mapValues(column, func(s string) string {
		return strings.Map(r.keep, s)
	}), nil
}

func (r *SpecialCharRemovalRule) Type() RuleType {
	return SpecialCharRemoval
}

func (r *SpecialCharRemovalRule) keep(c rune) rune {
	if unicode.IsLetter(c) || unicode.IsNumber(c) || c == '_' {
		return c
	}
	if _, found := r.allowed[c]; found {
		return c
	}
	return -1
}
