// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/datavapte/ecctransform/internal/backoff"
	pglib "github.com/datavapte/ecctransform/internal/postgres"
	pginstrumentation "github.com/datavapte/ecctransform/internal/postgres/instrumentation"
	"github.com/datavapte/ecctransform/internal/postgres/retrier"
	loglib "github.com/datavapte/ecctransform/pkg/log"
	"github.com/datavapte/ecctransform/pkg/mapping"
	"github.com/datavapte/ecctransform/pkg/metadata"
	"github.com/datavapte/ecctransform/pkg/otel"
	"github.com/datavapte/ecctransform/pkg/rules"
)

// Store reads the metadata from a postgres database. Transient errors are
// retried with a fresh connection.
type Store struct {
	querier pglib.Querier
	logger  loglib.Logger
}

type Config struct {
	URL     string
	Backoff *backoff.Config
}

type Option func(*storeOptions)

type storeOptions struct {
	logger          loglib.Logger
	instrumentation *otel.Instrumentation
}

func WithLogger(l loglib.Logger) Option {
	return func(o *storeOptions) {
		o.logger = l
	}
}

func WithInstrumentation(i *otel.Instrumentation) Option {
	return func(o *storeOptions) {
		o.instrumentation = i
	}
}

const (
	templateQuery = `SELECT template_id, ltmc_version, template_name, COALESCE(blank_template_path, '')
		FROM tbl_transformation_master
		WHERE ltmc_version = $1 AND template_name = $2`
	fieldMappingsQuery = `SELECT source_table, source_field, target_table, target_field, is_main_table,
		source_join_fields, target_join_fields, client_flag, exclude_client_flag
		FROM ecc_field_mapping
		WHERE template_id = $1
		ORDER BY id`
	transformationRulesQuery = `SELECT client_id, target_table, target_field, rule_name,
		format, custom1, custom2, custom3
		FROM conditional_rules
		WHERE client_id = $1
		ORDER BY id`
)

func NewStore(ctx context.Context, cfg *Config, opts ...Option) (*Store, error) {
	options := &storeOptions{logger: loglib.NewNoopLogger()}
	for _, opt := range opts {
		opt(options)
	}

	querierBuilder := pginstrumentation.NewQuerierBuilder(pglib.ConnPoolBuilder, "metadata", options.instrumentation)
	querier, err := retrier.NewQuerier(ctx, cfg.Backoff, func(ctx context.Context) (pglib.Querier, error) {
		return querierBuilder(ctx, cfg.URL)
	}, retrier.WithLogger(options.logger))
	if err != nil {
		return nil, fmt.Errorf("connecting to metadata database: %w", err)
	}

	return &Store{
		querier: querier,
		logger:  loglib.WithModule(options.logger, "postgres_metadata_store"),
	}, nil
}

func (s *Store) Template(ctx context.Context, version, name string) (*metadata.Template, error) {
	t := &metadata.Template{}
	err := s.querier.QueryRow(ctx, []any{&t.ID, &t.Version, &t.Name, &t.BlankTemplatePath}, templateQuery, version, name)
	if err != nil {
		if errors.Is(err, pglib.ErrNoRows) {
			return nil, fmt.Errorf("%s-%s: %w", name, version, metadata.ErrTemplateNotFound)
		}
		return nil, fmt.Errorf("querying template %s-%s: %w", name, version, err)
	}
	return t, nil
}

func (s *Store) FieldMappings(ctx context.Context, templateID int64, clientID string) ([]mapping.FieldMapping, error) {
	rows, err := s.querier.Query(ctx, fieldMappingsQuery, templateID)
	if err != nil {
		return nil, fmt.Errorf("querying field mappings of template %d: %w", templateID, err)
	}
	defer rows.Close()

	mappingRows := []metadata.FieldMappingRow{}
	for rows.Next() {
		r := metadata.FieldMappingRow{}
		if err := rows.Scan(&r.SourceTable, &r.SourceField, &r.TargetTable, &r.TargetField, &r.IsMainTable,
			&r.SourceJoinFields, &r.TargetJoinFields, &r.ClientFlag, &r.ExcludeClientFlag); err != nil {
			return nil, fmt.Errorf("scanning field mapping: %w", err)
		}
		mappingRows = append(mappingRows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading field mappings: %w", pglib.MapError(err))
	}

	mappings := metadata.FilterFieldMappings(mappingRows, clientID)
	s.logger.Debug("field mappings read", loglib.Fields{
		"template_id": templateID,
		"client_id":   clientID,
		"rows":        len(mappingRows),
		"mappings":    len(mappings),
	})
	return mappings, nil
}

func (s *Store) TransformationRules(ctx context.Context, clientID string) ([]rules.TransformationRule, error) {
	rows, err := s.querier.Query(ctx, transformationRulesQuery, clientID)
	if err != nil {
		return nil, fmt.Errorf("querying transformation rules of client %s: %w", clientID, err)
	}
	defer rows.Close()

	transformationRules := []rules.TransformationRule{}
	for rows.Next() {
		r := metadata.TransformationRuleRow{}
		if err := rows.Scan(&r.ClientID, &r.TargetTable, &r.TargetField, &r.RuleName,
			&r.Format, &r.Custom1, &r.Custom2, &r.Custom3); err != nil {
			return nil, fmt.Errorf("scanning transformation rule: %w", err)
		}
		transformationRules = append(transformationRules, r.TransformationRule())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading transformation rules: %w", pglib.MapError(err))
	}
	return transformationRules, nil
}

func (s *Store) Close() error {
	return s.querier.Close(context.Background())
}
