// SPDX-License-Identifier: Apache-2.0

// Package file implements a metadata store backed by a YAML file holding the
// same rows as the metadata database.
package file

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/datavapte/ecctransform/pkg/mapping"
	"github.com/datavapte/ecctransform/pkg/metadata"
	"github.com/datavapte/ecctransform/pkg/rules"
)

type Store struct {
	file *File
}

type Config struct {
	Path string
}

type File struct {
	Templates           []metadata.Template     `yaml:"templates"`
	FieldMappings       []FieldMappingRow       `yaml:"field_mappings"`
	TransformationRules []TransformationRuleRow `yaml:"transformation_rules"`
}

// FieldMappingRow uses the pipe separated columns of the database rows.
type FieldMappingRow struct {
	TemplateID        int64   `yaml:"template_id"`
	SourceTable       string  `yaml:"source_table"`
	SourceField       string  `yaml:"source_field"`
	TargetTable       string  `yaml:"target_table"`
	TargetField       string  `yaml:"target_field"`
	IsMainTable       bool    `yaml:"is_main_table"`
	SourceJoinFields  *string `yaml:"source_join_fields"`
	TargetJoinFields  *string `yaml:"target_join_fields"`
	ClientFlag        *string `yaml:"client_flag"`
	ExcludeClientFlag *string `yaml:"exclude_client_flag"`
}

type TransformationRuleRow struct {
	ClientID    string  `yaml:"client_id"`
	TargetTable string  `yaml:"target_table"`
	TargetField string  `yaml:"target_field"`
	RuleName    *string `yaml:"rule_name"`
	Format      *string `yaml:"format"`
	Custom1     *string `yaml:"custom1"`
	Custom2     *string `yaml:"custom2"`
	Custom3     *string `yaml:"custom3"`
}

func NewStore(cfg *Config) (*Store, error) {
	raw, err := os.ReadFile(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("reading metadata file: %w", err)
	}
	f := &File{}
	if err := yaml.Unmarshal(raw, f); err != nil {
		return nil, fmt.Errorf("parsing metadata file %s: %w", cfg.Path, err)
	}
	return NewStoreFromFile(f), nil
}

func NewStoreFromFile(f *File) *Store {
	return &Store{file: f}
}

func (s *Store) Template(ctx context.Context, version, name string) (*metadata.Template, error) {
	for _, t := range s.file.Templates {
		if t.Version == version && t.Name == name {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%s-%s: %w", name, version, metadata.ErrTemplateNotFound)
}

func (s *Store) FieldMappings(ctx context.Context, templateID int64, clientID string) ([]mapping.FieldMapping, error) {
	rows := []metadata.FieldMappingRow{}
	for _, r := range s.file.FieldMappings {
		if r.TemplateID != templateID {
			continue
		}
		rows = append(rows, metadata.FieldMappingRow{
			SourceTable:       r.SourceTable,
			SourceField:       r.SourceField,
			TargetTable:       r.TargetTable,
			TargetField:       r.TargetField,
			IsMainTable:       r.IsMainTable,
			SourceJoinFields:  r.SourceJoinFields,
			TargetJoinFields:  r.TargetJoinFields,
			ClientFlag:        r.ClientFlag,
			ExcludeClientFlag: r.ExcludeClientFlag,
		})
	}
	return metadata.FilterFieldMappings(rows, clientID), nil
}

func (s *Store) TransformationRules(ctx context.Context, clientID string) ([]rules.TransformationRule, error) {
	transformationRules := []rules.TransformationRule{}
	for _, r := range s.file.TransformationRules {
		if r.ClientID != clientID {
			continue
		}
		row := metadata.TransformationRuleRow{
			ClientID:    r.ClientID,
			TargetTable: r.TargetTable,
			TargetField: r.TargetField,
			RuleName:    r.RuleName,
			Format:      r.Format,
			Custom1:     r.Custom1,
			Custom2:     r.Custom2,
			Custom3:     r.Custom3,
		}
		transformationRules = append(transformationRules, row.TransformationRule())
	}
	return transformationRules, nil
}

func (s *Store) Close() error {
	return nil
}
