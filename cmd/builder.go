// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/datavapte/ecctransform/cmd/config"
	"github.com/datavapte/ecctransform/pkg/export"
	"github.com/datavapte/ecctransform/pkg/export/archive"
	"github.com/datavapte/ecctransform/pkg/export/xlsx"
	loglib "github.com/datavapte/ecctransform/pkg/log"
	"github.com/datavapte/ecctransform/pkg/metadata"
	metadatafile "github.com/datavapte/ecctransform/pkg/metadata/file"
	metadatainstrumentation "github.com/datavapte/ecctransform/pkg/metadata/instrumentation"
	"github.com/datavapte/ecctransform/pkg/metadata/mssql"
	pgmetadata "github.com/datavapte/ecctransform/pkg/metadata/postgres"
	"github.com/datavapte/ecctransform/pkg/otel"
	"github.com/datavapte/ecctransform/pkg/pipeline"
	"github.com/datavapte/ecctransform/pkg/rfc"
	"github.com/datavapte/ecctransform/pkg/rfc/fixture"
	rfcpostgres "github.com/datavapte/ecctransform/pkg/rfc/postgres"
)

// newOrchestrator wires the configured source, metadata store and exporters
// into a pipeline orchestrator. The source is nil when none is configured.
// The returned store must be closed by the caller.
func newOrchestrator(ctx context.Context, cfg *config.Config, logger loglib.Logger, instrumentation *otel.Instrumentation) (*pipeline.Orchestrator, metadata.Store, error) {
	source, err := newSource(cfg.Source, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("building remote source: %w", err)
	}

	store, err := newMetadataStore(ctx, cfg.Metadata, logger, instrumentation)
	if err != nil {
		return nil, nil, fmt.Errorf("building metadata store: %w", err)
	}

	exporter, err := newExporter(cfg.Export, logger)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("building exporter: %w", err)
	}

	orchestrator, err := pipeline.NewOrchestrator(&cfg.Pipeline, store, source, exporter,
		pipeline.WithLogger(logger),
		pipeline.WithInstrumentation(instrumentation))
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return orchestrator, store, nil
}

func newSource(cfg config.SourceConfig, logger loglib.Logger) (rfc.Source, error) {
	switch {
	case cfg.Postgres != nil:
		return rfcpostgres.NewSource(cfg.Postgres, rfcpostgres.WithLogger(logger)), nil
	case cfg.FixtureFile != "":
		return fixture.NewSourceFromFile(cfg.FixtureFile)
	default:
		return nil, nil
	}
}

func newMetadataStore(ctx context.Context, cfg config.MetadataConfig, logger loglib.Logger, instrumentation *otel.Instrumentation) (metadata.Store, error) {
	var store metadata.Store
	var err error
	switch {
	case cfg.MSSQL != nil:
		store, err = mssql.NewStore(ctx, cfg.MSSQL, mssql.WithLogger(logger))
	case cfg.Postgres != nil:
		store, err = pgmetadata.NewStore(ctx, cfg.Postgres,
			pgmetadata.WithLogger(logger),
			pgmetadata.WithInstrumentation(instrumentation))
	case cfg.File != nil:
		store, err = metadatafile.NewStore(cfg.File)
	default:
		return nil, fmt.Errorf("no metadata store configured")
	}
	if err != nil {
		return nil, err
	}
	return metadatainstrumentation.NewStore(store, instrumentation), nil
}

func newExporter(cfg config.ExportConfig, logger loglib.Logger) (export.Exporter, error) {
	chain := export.Chain{}
	if cfg.XLSX != nil {
		xlsxExporter, err := xlsx.NewExporter(cfg.XLSX, xlsx.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		chain = append(chain, xlsxExporter)
	}
	if cfg.Archive {
		chain = append(chain, archive.NewExporter(archive.WithLogger(logger)))
	}
	if len(chain) == 0 {
		return export.Noop{}, nil
	}
	return chain, nil
}
