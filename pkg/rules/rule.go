// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"context"
	"errors"

	"github.com/datavapte/ecctransform/pkg/table"
)

// Rule transforms the values of a single column. The column on input is
// never modified, a new one is returned.
type Rule interface {
	Apply(ctx context.Context, column []table.Value) ([]table.Value, error)
	Type() RuleType
}

type RuleType string

const (
	ZeroFill                    RuleType = "ZEROFILL"
	AddPrefix                   RuleType = "ADDPREFIX"
	AddSuffix                   RuleType = "ADDSUFFIX"
	ReplaceValue                RuleType = "REPLACE_VALUE"
	ReplaceValueCaseInsensitive RuleType = "REPLACE_VALUE_CASE_INSENSITIVE"
	ReplaceFieldWithValue       RuleType = "REPLACE_FIELD_WITH_VALUE"
	StripWhitespace             RuleType = "STRIP_WHITESPACE"
	SpecialCharRemoval          RuleType = "SPECIAL_CHAR_REMOVAL"
)

// Params are the positional parameters of a rule occurrence. Missing
// parameters are empty.
type Params struct {
	Format  string
	Custom1 string
	Custom2 string
	Custom3 string
}

// Parameter names, as used in rule definitions.
const (
	FormatParam  = "format"
	Custom1Param = "custom1"
	Custom2Param = "custom2"
	Custom3Param = "custom3"
)

func (p Params) Get(name string) string {
	switch name {
	case FormatParam:
		return p.Format
	case Custom1Param:
		return p.Custom1
	case Custom2Param:
		return p.Custom2
	case Custom3Param:
		return p.Custom3
	default:
		return ""
	}
}

type Definition struct {
	Name        RuleType
	Description string
	Parameters  []Parameter
}

type Parameter struct {
	Name        string
	Description string
	// Required parameters disable the rule occurrence when empty.
	Required bool
	Default  string
}

var (
	ErrUnsupportedRule   = errors.New("unsupported transformation rule")
	ErrInvalidParameters = errors.New("invalid transformation rule parameters")
	// ErrMissingParameter is returned when a required parameter is empty.
	// The occurrence is then disabled rather than failed.
	ErrMissingParameter = errors.New("missing required transformation rule parameter")
)

// mapValues applies fn to every non null value of the column.
func mapValues(column []table.Value, fn func(string) string) []table.Value {
	result := make([]table.Value, len(column))
	for i, v := range column {
		if v.IsNull() {
			continue
		}
		result[i] = table.String(fn(v.S))
	}
	return result
}
