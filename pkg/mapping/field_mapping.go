// SPDX-License-Identifier: Apache-2.0

package mapping

import (
	"errors"
	"fmt"
	"strings"
)

// FieldMapping describes where a target field comes from. Main table rows
// copy the source column as is. Other rows bring the source column into the
// target table with a left join on the join fields.
type FieldMapping struct {
	SourceTable      string   `yaml:"source_table"`
	SourceField      string   `yaml:"source_field"`
	TargetTable      string   `yaml:"target_table"`
	TargetField      string   `yaml:"target_field"`
	IsMainTable      bool     `yaml:"is_main_table"`
	SourceJoinFields []string `yaml:"source_join_fields"`
	TargetJoinFields []string `yaml:"target_join_fields"`
}

// JoinFieldSeparator separates the join fields stored in a single metadata
// column.
const JoinFieldSeparator = "|"

var ErrInvalidMapping = errors.New("invalid field mapping")

// SplitFields splits a pipe separated field list, trimming every name and
// dropping the empty ones.
func SplitFields(s string) []string {
	fields := []string{}
	for _, f := range strings.Split(s, JoinFieldSeparator) {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

func (m *FieldMapping) Validate() error {
	switch {
	case m.SourceTable == "", m.SourceField == "":
		return fmt.Errorf("%w: missing source for %s.%s", ErrInvalidMapping, m.TargetTable, m.TargetField)
	case m.TargetTable == "", m.TargetField == "":
		return fmt.Errorf("%w: missing target for %s.%s", ErrInvalidMapping, m.SourceTable, m.SourceField)
	case m.IsMainTable:
		return nil
	case len(m.SourceJoinFields) == 0:
		return fmt.Errorf("%w: no join fields for %s.%s", ErrInvalidMapping, m.TargetTable, m.TargetField)
	case len(m.SourceJoinFields) != len(m.TargetJoinFields):
		return fmt.Errorf("%w: %d source join fields for %d target join fields in %s.%s",
			ErrInvalidMapping, len(m.SourceJoinFields), len(m.TargetJoinFields), m.TargetTable, m.TargetField)
	}
	return nil
}

func (m *FieldMapping) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", m.SourceTable, m.SourceField, m.TargetTable, m.TargetField)
}

// SourceFields is the list of fields to extract from a source table.
type SourceFields struct {
	Table  string
	Fields []string
}

// RequiredFields returns the fields to extract per source table, in first
// seen order and without duplicates. Rows joined into a target table also
// need their source join fields.
func RequiredFields(mappings []FieldMapping) []SourceFields {
	required := []SourceFields{}
	tableIndex := map[string]int{}
	seen := map[string]map[string]struct{}{}

	add := func(tableName, field string) {
		i, found := tableIndex[tableName]
		if !found {
			i = len(required)
			tableIndex[tableName] = i
			required = append(required, SourceFields{Table: tableName})
			seen[tableName] = map[string]struct{}{}
		}
		if _, found := seen[tableName][field]; found {
			return
		}
		seen[tableName][field] = struct{}{}
		required[i].Fields = append(required[i].Fields, field)
	}

	for _, m := range mappings {
		add(m.SourceTable, m.SourceField)
		if !m.IsMainTable {
			for _, f := range m.SourceJoinFields {
				add(m.SourceTable, f)
			}
		}
	}
	return required
}

// TargetTables returns the target table names in first seen order.
func TargetTables(mappings []FieldMapping) []string {
	tables := []string{}
	seen := map[string]struct{}{}
	for _, m := range mappings {
		if _, found := seen[m.TargetTable]; found {
			continue
		}
		seen[m.TargetTable] = struct{}{}
		tables = append(tables, m.TargetTable)
	}
	return tables
}
