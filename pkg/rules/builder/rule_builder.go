// SPDX-License-Identifier: Apache-2.0

package builder

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/datavapte/ecctransform/pkg/otel"
	"github.com/datavapte/ecctransform/pkg/rules"
	"github.com/datavapte/ecctransform/pkg/rules/instrumentation"
)

type RuleBuilder struct {
	instrumentation *otel.Instrumentation
}

type Option func(b *RuleBuilder)

func NewRuleBuilder(opts ...Option) *RuleBuilder {
	b := &RuleBuilder{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func WithInstrumentation(i *otel.Instrumentation) Option {
	return func(b *RuleBuilder) {
		b.instrumentation = i
	}
}

type ruleEntry struct {
	Definition *rules.Definition
	BuildFn    func(params rules.Params) (rules.Rule, error)
}

var RulesMap = map[rules.RuleType]ruleEntry{
	rules.ZeroFill: {
		Definition: rules.ZeroFillRuleDefinition(),
		BuildFn: func(params rules.Params) (rules.Rule, error) {
			return rules.NewZeroFillRule(params)
		},
	},
	rules.AddPrefix: {
		Definition: rules.AddPrefixRuleDefinition(),
		BuildFn: func(params rules.Params) (rules.Rule, error) {
			return rules.NewAddPrefixRule(params)
		},
	},
	rules.AddSuffix: {
		Definition: rules.AddSuffixRuleDefinition(),
		BuildFn: func(params rules.Params) (rules.Rule, error) {
			return rules.NewAddSuffixRule(params)
		},
	},
	rules.ReplaceValue: {
		Definition: rules.ReplaceValueRuleDefinition(),
		BuildFn: func(params rules.Params) (rules.Rule, error) {
			return rules.NewReplaceValueRule(params)
		},
	},
	rules.ReplaceValueCaseInsensitive: {
		Definition: rules.ReplaceValueCaseInsensitiveRuleDefinition(),
		BuildFn: func(params rules.Params) (rules.Rule, error) {
			return rules.NewReplaceValueCaseInsensitiveRule(params)
		},
	},
	rules.ReplaceFieldWithValue: {
		Definition: rules.ReplaceFieldWithValueRuleDefinition(),
		BuildFn: func(params rules.Params) (rules.Rule, error) {
			return rules.NewReplaceFieldWithValueRule(params)
		},
	},
	rules.StripWhitespace: {
		Definition: rules.StripWhitespaceRuleDefinition(),
		BuildFn: func(params rules.Params) (rules.Rule, error) {
			return rules.NewStripWhitespaceRule(params)
		},
	},
	rules.SpecialCharRemoval: {
		Definition: rules.SpecialCharRemovalRuleDefinition(),
		BuildFn: func(params rules.Params) (rules.Rule, error) {
			return rules.NewSpecialCharRemovalRule(params)
		},
	},
}

// New builds the rule with the given parameters. It returns
// rules.ErrMissingParameter when a required parameter is empty.
func (b *RuleBuilder) New(ruleType rules.RuleType, params rules.Params) (rules.Rule, error) {
	entry, ok := RulesMap[ruleType]
	if !ok {
		return nil, fmt.Errorf("%w: unexpected rule name '%s'", rules.ErrUnsupportedRule, ruleType)
	}

	for _, p := range entry.Definition.Parameters {
		if p.Required && params.Get(p.Name) == "" {
			return nil, fmt.Errorf("%w: %s needs %s", rules.ErrMissingParameter, ruleType, p.Name)
		}
	}

	rule, err := entry.BuildFn(params)
	if err != nil {
		return nil, err
	}
	return instrumentation.NewRule(rule, b.instrumentation)
}

// Definitions returns the definitions of the supported rules sorted by name.
func Definitions() []*rules.Definition {
	definitions := make([]*rules.Definition, 0, len(RulesMap))
	for _, entry := range RulesMap {
		definitions = append(definitions, entry.Definition)
	}
	slices.SortFunc(definitions, func(a, b *rules.Definition) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return definitions
}
