// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/datavapte/ecctransform/pkg/table"
)

// ZeroFillRule left pads values with zeros up to a width. A leading sign
// stays in front of the padding.
type ZeroFillRule struct {
	width int
}

func ZeroFillRuleDefinition() *Definition {
	return &Definition{
		Name:        ZeroFill,
		Description: "Left pads the value with zeros up to the given width.",
		Parameters: []Parameter{
			{Name: FormatParam, Description: "Width of the padded value, a positive integer.", Required: true},
		},
	}
}

func NewZeroFillRule(params Params) (*ZeroFillRule, error) {
	width, err := strconv.Atoi(strings.TrimSpace(params.Format))
	if err != nil || width <= 0 {
		return nil, fmt.Errorf("%w: zerofill width must be a positive integer, got %q", ErrInvalidParameters, params.Format)
	}
	return &ZeroFillRule{width: width}, nil
}

func (r *ZeroFillRule) Apply(_ context.Context, column []table.Value) ([]table.Value, error) {
	return mapValues(column, r.zeroFill), nil
}

func (r *ZeroFillRule) Type() RuleType {
	return ZeroFill
}

func (r *ZeroFillRule) zeroFill(s string) string {
	padding := r.width - utf8.RuneCountInString(s)
	if padding <= 0 {
		return s
	}
	zeros := strings.Repeat("0", padding)
	if s != "" && (s[0] == '-' || s[0] == '+') {
		return s[:1] + zeros + s[1:]
	}
	return zeros + s
}
