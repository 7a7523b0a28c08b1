// SPDX-License-Identifier: Apache-2.0

package config

import (
	"time"

	"github.com/datavapte/ecctransform/internal/backoff"
	"github.com/datavapte/ecctransform/pkg/export/xlsx"
	"github.com/datavapte/ecctransform/pkg/extract"
	"github.com/datavapte/ecctransform/pkg/mapping"
	metadatafile "github.com/datavapte/ecctransform/pkg/metadata/file"
	"github.com/datavapte/ecctransform/pkg/metadata/mssql"
	pgmetadata "github.com/datavapte/ecctransform/pkg/metadata/postgres"
	"github.com/datavapte/ecctransform/pkg/otel"
	"github.com/datavapte/ecctransform/pkg/pipeline"
	rfcpostgres "github.com/datavapte/ecctransform/pkg/rfc/postgres"
)

// YAMLConfig is the yaml representation of the run configuration.
type YAMLConfig struct {
	Run             RunConfig             `mapstructure:"run" yaml:"run"`
	Source          SourceYAMLConfig      `mapstructure:"source" yaml:"source"`
	Extraction      ExtractionConfig      `mapstructure:"extraction" yaml:"extraction"`
	Mapping         MappingConfig         `mapstructure:"mapping" yaml:"mapping"`
	Metadata        MetadataYAMLConfig    `mapstructure:"metadata" yaml:"metadata"`
	Export          ExportYAMLConfig      `mapstructure:"export" yaml:"export"`
	Instrumentation InstrumentationConfig `mapstructure:"instrumentation" yaml:"instrumentation"`
}

type RunConfig struct {
	TemplateName       string `mapstructure:"template_name" yaml:"template_name"`
	TemplateVersion    string `mapstructure:"template_version" yaml:"template_version"`
	ClientID           string `mapstructure:"client_id" yaml:"client_id"`
	OutputDir          string `mapstructure:"output_dir" yaml:"output_dir"`
	OutputNameTemplate string `mapstructure:"output_name_template" yaml:"output_name_template"`
}

type SourceYAMLConfig struct {
	Postgres *PostgresSourceConfig `mapstructure:"postgres" yaml:"postgres"`
	Fixture  *FixtureConfig        `mapstructure:"fixture" yaml:"fixture"`
}

type PostgresSourceConfig struct {
	URL     string         `mapstructure:"url" yaml:"url"`
	Schema  string         `mapstructure:"schema" yaml:"schema"`
	Backoff *BackoffConfig `mapstructure:"backoff" yaml:"backoff"`
}

type FixtureConfig struct {
	File string `mapstructure:"file" yaml:"file"`
}

type ExtractionConfig struct {
	Workers              uint          `mapstructure:"workers" yaml:"workers"`
	TaskTimeout          time.Duration `mapstructure:"task_timeout" yaml:"task_timeout"`
	RowChunkSize         uint          `mapstructure:"row_chunk_size" yaml:"row_chunk_size"`
	FieldChunkWidth      uint          `mapstructure:"field_chunk_width" yaml:"field_chunk_width"`
	FieldChunkShrinkStep uint          `mapstructure:"field_chunk_shrink_step" yaml:"field_chunk_shrink_step"`
	Delimiter            string        `mapstructure:"delimiter" yaml:"delimiter"`
	Progress             bool          `mapstructure:"progress" yaml:"progress"`
}

type MappingConfig struct {
	Workers uint `mapstructure:"workers" yaml:"workers"`
}

type MetadataYAMLConfig struct {
	MSSQL    *MSSQLConfig            `mapstructure:"mssql" yaml:"mssql"`
	Postgres *PostgresMetadataConfig `mapstructure:"postgres" yaml:"postgres"`
	File     *MetadataFileConfig     `mapstructure:"file" yaml:"file"`
}

type MSSQLConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

type PostgresMetadataConfig struct {
	URL     string         `mapstructure:"url" yaml:"url"`
	Backoff *BackoffConfig `mapstructure:"backoff" yaml:"backoff"`
}

type MetadataFileConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type ExportYAMLConfig struct {
	XLSX    *XLSXConfig `mapstructure:"xlsx" yaml:"xlsx"`
	Archive bool        `mapstructure:"archive" yaml:"archive"`
}

type XLSXConfig struct {
	HeaderRow    uint `mapstructure:"header_row" yaml:"header_row"`
	FirstDataRow uint `mapstructure:"first_data_row" yaml:"first_data_row"`
	BatchSize    uint `mapstructure:"batch_size" yaml:"batch_size"`
}

type BackoffConfig struct {
	Exponential *ExponentialBackoffConfig `mapstructure:"exponential" yaml:"exponential"`
	Constant    *ConstantBackoffConfig    `mapstructure:"constant" yaml:"constant"`
}

type ExponentialBackoffConfig struct {
	MaxRetries      int `mapstructure:"max_retries" yaml:"max_retries"`
	InitialInterval int `mapstructure:"initial_interval" yaml:"initial_interval"`
	MaxInterval     int `mapstructure:"max_interval" yaml:"max_interval"`
}

type ConstantBackoffConfig struct {
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
	Interval   int `mapstructure:"interval" yaml:"interval"`
}

type InstrumentationConfig struct {
	Metrics *MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Traces  *TracesConfig  `mapstructure:"traces" yaml:"traces"`
}

type MetricsConfig struct {
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	// CollectionInterval in seconds.
	CollectionInterval int  `mapstructure:"collection_interval" yaml:"collection_interval"`
	Runtime            bool `mapstructure:"runtime" yaml:"runtime"`
}

type TracesConfig struct {
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"`
}

func (c *YAMLConfig) toConfig() (*Config, error) {
	return &Config{
		Request: pipeline.Request{
			TemplateName:    c.Run.TemplateName,
			TemplateVersion: c.Run.TemplateVersion,
			ClientID:        c.Run.ClientID,
		},
		Pipeline: pipeline.Config{
			OutputDir:          c.Run.OutputDir,
			OutputNameTemplate: c.Run.OutputNameTemplate,
			Extraction: extract.Config{
				Workers:              c.Extraction.Workers,
				TaskTimeout:          c.Extraction.TaskTimeout,
				RowChunkSize:         c.Extraction.RowChunkSize,
				FieldChunkWidth:      c.Extraction.FieldChunkWidth,
				FieldChunkShrinkStep: c.Extraction.FieldChunkShrinkStep,
				Delimiter:            c.Extraction.Delimiter,
			},
			Mapping: mapping.Config{
				Workers: c.Mapping.Workers,
			},
			ProgressTracking: c.Extraction.Progress,
		},
		Source:   c.parseSourceConfig(),
		Metadata: c.parseMetadataConfig(),
		Export:   c.parseExportConfig(),
	}, nil
}

func (c *YAMLConfig) parseSourceConfig() SourceConfig {
	cfg := SourceConfig{}
	if c.Source.Postgres != nil {
		cfg.Postgres = &rfcpostgres.Config{
			URL:            c.Source.Postgres.URL,
			Schema:         c.Source.Postgres.Schema,
			ConnectBackoff: c.Source.Postgres.Backoff.parseBackoffConfig(),
		}
	}
	if c.Source.Fixture != nil {
		cfg.FixtureFile = c.Source.Fixture.File
	}
	return cfg
}

func (c *YAMLConfig) parseMetadataConfig() MetadataConfig {
	cfg := MetadataConfig{}
	if c.Metadata.MSSQL != nil {
		cfg.MSSQL = &mssql.Config{URL: c.Metadata.MSSQL.URL}
	}
	if c.Metadata.Postgres != nil {
		cfg.Postgres = &pgmetadata.Config{
			URL:     c.Metadata.Postgres.URL,
			Backoff: c.Metadata.Postgres.Backoff.parseBackoffConfig(),
		}
	}
	if c.Metadata.File != nil {
		cfg.File = &metadatafile.Config{Path: c.Metadata.File.Path}
	}
	return cfg
}

func (c *YAMLConfig) parseExportConfig() ExportConfig {
	cfg := ExportConfig{Archive: c.Export.Archive}
	if c.Export.XLSX != nil {
		cfg.XLSX = &xlsx.Config{
			HeaderRow:    c.Export.XLSX.HeaderRow,
			FirstDataRow: c.Export.XLSX.FirstDataRow,
			BatchSize:    c.Export.XLSX.BatchSize,
		}
	}
	return cfg
}

func (c InstrumentationConfig) toOtelConfig() (*otel.Config, error) {
	cfg := &otel.Config{}
	if c.Metrics != nil {
		cfg.Metrics = &otel.MetricsConfig{
			Endpoint:           c.Metrics.Endpoint,
			CollectionInterval: time.Duration(c.Metrics.CollectionInterval) * time.Second,
			RuntimeMetrics:     c.Metrics.Runtime,
		}
	}
	if c.Traces != nil {
		if err := validateSampleRatio(c.Traces.SampleRatio); err != nil {
			return nil, err
		}
		cfg.Traces = &otel.TracesConfig{
			Endpoint:    c.Traces.Endpoint,
			SampleRatio: c.Traces.SampleRatio,
		}
	}
	return cfg, nil
}

func (bo *BackoffConfig) parseBackoffConfig() *backoff.Config {
	if bo == nil {
		return nil
	}
	return &backoff.Config{
		Exponential: bo.parseExponentialBackoffConfig(),
		Constant:    bo.parseConstantBackoffConfig(),
	}
}

func (bo *BackoffConfig) parseExponentialBackoffConfig() *backoff.ExponentialConfig {
	if bo.Exponential == nil {
		return nil
	}
	return &backoff.ExponentialConfig{
		InitialInterval: time.Duration(bo.Exponential.InitialInterval) * time.Millisecond,
		MaxInterval:     time.Duration(bo.Exponential.MaxInterval) * time.Millisecond,
		MaxRetries:      uint(bo.Exponential.MaxRetries),
	}
}

func (bo *BackoffConfig) parseConstantBackoffConfig() *backoff.ConstantConfig {
	if bo.Constant == nil {
		return nil
	}
	return &backoff.ConstantConfig{
		Interval:   time.Duration(bo.Constant.Interval) * time.Millisecond,
		MaxRetries: uint(bo.Constant.MaxRetries),
	}
}
