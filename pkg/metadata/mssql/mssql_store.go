// SPDX-License-Identifier: Apache-2.0

package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/denisenkom/go-mssqldb"

	loglib "github.com/datavapte/ecctransform/pkg/log"
	"github.com/datavapte/ecctransform/pkg/mapping"
	"github.com/datavapte/ecctransform/pkg/metadata"
	"github.com/datavapte/ecctransform/pkg/rules"
)

// Store reads the metadata from the SQL Server tables of the migration
// tool.
type Store struct {
	db     *sql.DB
	logger loglib.Logger
}

type Config struct {
	// URL is a sqlserver:// connection string.
	URL string
}

type Option func(*Store)

const driverName = "sqlserver"

const (
	templateQuery = `SELECT [TemplateID], [LTMCVersion], [TemplateName], [BlankTemplatePath]
		FROM [tblTransformationMaster]
		WHERE [LTMCVersion] = @version AND [TemplateName] = @name`
	fieldMappingsQuery = `SELECT [SoruceTable], [SoruceField], [TargetTable], [TargetField], [IsMainTable],
		[SoruceJoinFiled], [TargetJoinField], [ClientFlag], [ExcludeClientFlag]
		FROM [ECC_Field_Mapping]
		WHERE [TemplateID] = @templateID`
	transformationRulesQuery = `SELECT [ClientID], [TargetTable], [TargetField], [RuleName],
		[Format], [Custome1], [Custome2], [Custome3]
		FROM [ConditionalRules]
		WHERE [ClientID] = @clientID`
)

func NewStore(ctx context.Context, cfg *Config, opts ...Option) (*Store, error) {
	db, err := sql.Open(driverName, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("opening metadata database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to metadata database: %w", err)
	}

	s := &Store{
		db:     db,
		logger: loglib.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func WithLogger(l loglib.Logger) Option {
	return func(s *Store) {
		s.logger = loglib.WithModule(l, "mssql_metadata_store")
	}
}

func (s *Store) Template(ctx context.Context, version, name string) (*metadata.Template, error) {
	t := &metadata.Template{}
	var blankTemplatePath sql.NullString
	err := s.db.QueryRowContext(ctx, templateQuery,
		sql.Named("version", version),
		sql.Named("name", name),
	).Scan(&t.ID, &t.Version, &t.Name, &blankTemplatePath)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s-%s: %w", name, version, metadata.ErrTemplateNotFound)
		}
		return nil, fmt.Errorf("querying template %s-%s: %w", name, version, err)
	}
	t.BlankTemplatePath = blankTemplatePath.String
	return t, nil
}

func (s *Store) FieldMappings(ctx context.Context, templateID int64, clientID string) ([]mapping.FieldMapping, error) {
	rows, err := s.db.QueryContext(ctx, fieldMappingsQuery, sql.Named("templateID", templateID))
	if err != nil {
		return nil, fmt.Errorf("querying field mappings of template %d: %w", templateID, err)
	}
	defer rows.Close()

	mappingRows := []metadata.FieldMappingRow{}
	for rows.Next() {
		var r metadata.FieldMappingRow
		var sourceJoin, targetJoin, clientFlag, excludeClientFlag sql.NullString
		if err := rows.Scan(&r.SourceTable, &r.SourceField, &r.TargetTable, &r.TargetField, &r.IsMainTable,
			&sourceJoin, &targetJoin, &clientFlag, &excludeClientFlag); err != nil {
			return nil, fmt.Errorf("scanning field mapping: %w", err)
		}
		r.SourceJoinFields = nullString(sourceJoin)
		r.TargetJoinFields = nullString(targetJoin)
		r.ClientFlag = nullString(clientFlag)
		r.ExcludeClientFlag = nullString(excludeClientFlag)
		mappingRows = append(mappingRows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading field mappings: %w", err)
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
	rows, err := s.db.QueryContext(ctx, transformationRulesQuery, sql.Named("clientID", clientID))
	if err != nil {
		return nil, fmt.Errorf("querying transformation rules of client %s: %w", clientID, err)
	}
	defer rows.Close()

	transformationRules := []rules.TransformationRule{}
	for rows.Next() {
		var r metadata.TransformationRuleRow
		var ruleName, format, custom1, custom2, custom3 sql.NullString
		if err := rows.Scan(&r.ClientID, &r.TargetTable, &r.TargetField, &ruleName, &format, &custom1, &custom2, &custom3); err != nil {
			return nil, fmt.Errorf("scanning transformation rule: %w", err)
		}
		r.RuleName = nullString(ruleName)
		r.Format = nullString(format)
		r.Custom1 = nullString(custom1)
		r.Custom2 = nullString(custom2)
		r.Custom3 = nullString(custom3)
		transformationRules = append(transformationRules, r.TransformationRule())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading transformation rules: %w", err)
	}
	return transformationRules, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
