// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"strings"
)

// TransformationRule is a metadata row declaring the rules of a target
// field. The rule names and their parameters are pipe separated lists, the
// parameters of the i-th rule are the i-th entries of the parameter lists.
type TransformationRule struct {
	ClientID    string   `yaml:"client_id"`
	TargetTable string   `yaml:"target_table"`
	TargetField string   `yaml:"target_field"`
	RuleNames   []string `yaml:"rule_names"`
	Format      []string `yaml:"format"`
	Custom1     []string `yaml:"custom1"`
	Custom2     []string `yaml:"custom2"`
	Custom3     []string `yaml:"custom3"`
}

// Occurrence is a single rule applied to a target field.
type Occurrence struct {
	TargetTable string
	TargetField string
	Rule        RuleType
	Params      Params
}

const ListSeparator = "|"

// SplitList splits a pipe separated metadata column, keeping the positions
// of empty entries. An empty column has no entries.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	entries := strings.Split(s, ListSeparator)
	for i := range entries {
		entries[i] = strings.TrimSpace(entries[i])
	}
	return entries
}

// Occurrences returns the rules of the metadata row in declaration order.
// Empty rule names are skipped.
func (r *TransformationRule) Occurrences() []Occurrence {
	occurrences := make([]Occurrence, 0, len(r.RuleNames))
	for i, name := range r.RuleNames {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		occurrences = append(occurrences, Occurrence{
			TargetTable: r.TargetTable,
			TargetField: r.TargetField,
			Rule:        RuleType(name),
			Params: Params{
				Format:  at(r.Format, i),
				Custom1: at(r.Custom1, i),
				Custom2: at(r.Custom2, i),
				Custom3: at(r.Custom3, i),
			},
		})
	}
	return occurrences
}

// Occurrences flattens the metadata rows, keeping their order.
func Occurrences(rules []TransformationRule) []Occurrence {
	occurrences := []Occurrence{}
	for i := range rules {
		occurrences = append(occurrences, rules[i].Occurrences()...)
	}
	return occurrences
}

func at(list []string, i int) string {
	if i < len(list) {
		return strings.TrimSpace(list[i])
	}
	return ""
}
