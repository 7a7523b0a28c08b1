// SPDX-License-Identifier: Apache-2.0

package mocks

import (
	"context"
	"sync/atomic"

	"github.com/datavapte/ecctransform/pkg/mapping"
	"github.com/datavapte/ecctransform/pkg/metadata"
	"github.com/datavapte/ecctransform/pkg/rules"
)

type Store struct {
	TemplateFn            func(ctx context.Context, version, name string) (*metadata.Template, error)
	FieldMappingsFn       func(ctx context.Context, templateID int64, clientID string) ([]mapping.FieldMapping, error)
	TransformationRulesFn func(ctx context.Context, clientID string) ([]rules.TransformationRule, error)
	CloseFn               func() error
	fieldMappingsCalls    atomic.Int64
	rulesCalls            atomic.Int64
}

func (m *Store) Template(ctx context.Context, version, name string) (*metadata.Template, error) {
	return m.TemplateFn(ctx, version, name)
}

func (m *Store) FieldMappings(ctx context.Context, templateID int64, clientID string) ([]mapping.FieldMapping, error) {
	m.fieldMappingsCalls.Add(1)
	return m.FieldMappingsFn(ctx, templateID, clientID)
}

func (m *Store) TransformationRules(ctx context.Context, clientID string) ([]rules.TransformationRule, error) {
	m.rulesCalls.Add(1)
	return m.TransformationRulesFn(ctx, clientID)
}

func (m *Store) Close() error {
	if m.CloseFn != nil {
		return m.CloseFn()
	}
	return nil
}

func (m *Store) GetFieldMappingsCalls() int64 {
	return m.fieldMappingsCalls.Load()
}

func (m *Store) GetTransformationRulesCalls() int64 {
	return m.rulesCalls.Load()
}
