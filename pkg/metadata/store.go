// SPDX-License-Identifier: Apache-2.0

package metadata

import (
	"context"
	"errors"
	"strings"

	"github.com/datavapte/ecctransform/pkg/mapping"
	"github.com/datavapte/ecctransform/pkg/rules"
)

// Store gives access to the transformation metadata: the templates, their
// field mappings and the client transformation rules.
type Store interface {
	Template(ctx context.Context, version, name string) (*Template, error)
	FieldMappings(ctx context.Context, templateID int64, clientID string) ([]mapping.FieldMapping, error)
	TransformationRules(ctx context.Context, clientID string) ([]rules.TransformationRule, error)
	Close() error
}

type Template struct {
	ID                int64  `yaml:"id"`
	Version           string `yaml:"version"`
	Name              string `yaml:"name"`
	BlankTemplatePath string `yaml:"blank_template_path"`
}

var ErrTemplateNotFound = errors.New("template not found")

// NormalizeTemplateName turns a template name into a string usable in file
// names.
func NormalizeTemplateName(name string) string {
	return strings.ReplaceAll(strings.ReplaceAll(name, " - ", "_"), " ", "_")
}

// FieldMappingRow is a field mapping as stored, before client filtering.
type FieldMappingRow struct {
	SourceTable       string
	SourceField       string
	TargetTable       string
	TargetField       string
	IsMainTable       bool
	SourceJoinFields  *string
	TargetJoinFields  *string
	ClientFlag        *string
	ExcludeClientFlag *string
}

func (r *FieldMappingRow) FieldMapping() mapping.FieldMapping {
	return mapping.FieldMapping{
		SourceTable:      strings.TrimSpace(r.SourceTable),
		SourceField:      strings.TrimSpace(r.SourceField),
		TargetTable:      strings.TrimSpace(r.TargetTable),
		TargetField:      strings.TrimSpace(r.TargetField),
		IsMainTable:      r.IsMainTable,
		SourceJoinFields: mapping.SplitFields(deref(r.SourceJoinFields)),
		TargetJoinFields: mapping.SplitFields(deref(r.TargetJoinFields)),
	}
}

// FilterFieldMappings keeps the rows applying to the client, in order.
func FilterFieldMappings(rows []FieldMappingRow, clientID string) []mapping.FieldMapping {
	mappings := make([]mapping.FieldMapping, 0, len(rows))
	for i := range rows {
		if AppliesToClient(rows[i].ClientFlag, rows[i].ExcludeClientFlag, clientID) {
			mappings = append(mappings, rows[i].FieldMapping())
		}
	}
	return mappings
}

// AppliesToClient returns true if the row is either shared by every client
// or flagged for the given one, and the client is not in the pipe separated
// exclusion list. Client ids are compared ignoring case and surrounding
// whitespace.
func AppliesToClient(clientFlag, excludeClientFlag *string, clientID string) bool {
	clientID = strings.TrimSpace(clientID)
	if flag := strings.TrimSpace(deref(clientFlag)); flag != "" && !strings.EqualFold(flag, clientID) {
		return false
	}
	for _, excluded := range strings.Split(deref(excludeClientFlag), "|") {
		if excluded = strings.TrimSpace(excluded); excluded != "" && strings.EqualFold(excluded, clientID) {
			return false
		}
	}
	return true
}

// TransformationRuleRow is a transformation rule as stored.
type TransformationRuleRow struct {
	ClientID    string
	TargetTable string
	TargetField string
	RuleName    *string
	Format      *string
	Custom1     *string
	Custom2     *string
	Custom3     *string
}

func (r *TransformationRuleRow) TransformationRule() rules.TransformationRule {
	return rules.TransformationRule{
		ClientID:    r.ClientID,
		TargetTable: strings.TrimSpace(r.TargetTable),
		TargetField: strings.TrimSpace(r.TargetField),
		RuleNames:   rules.SplitList(deref(r.RuleName)),
		Format:      rules.SplitList(deref(r.Format)),
		Custom1:     rules.SplitList(deref(r.Custom1)),
		Custom2:     rules.SplitList(deref(r.Custom2)),
		Custom3:     rules.SplitList(deref(r.Custom3)),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
