// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"

	"github.com/spf13/viper"

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

func envToConfig() (*Config, error) {
	return &Config{
		Request: pipeline.Request{
			TemplateName:    viper.GetString("ECCTRANSFORM_TEMPLATE_NAME"),
			TemplateVersion: viper.GetString("ECCTRANSFORM_TEMPLATE_VERSION"),
			ClientID:        viper.GetString("ECCTRANSFORM_CLIENT_ID"),
		},
		Pipeline: pipeline.Config{
			OutputDir:          viper.GetString("ECCTRANSFORM_OUTPUT_DIR"),
			OutputNameTemplate: viper.GetString("ECCTRANSFORM_OUTPUT_NAME_TEMPLATE"),
			Extraction:         parseExtractionConfig(),
			Mapping: mapping.Config{
				Workers: viper.GetUint("ECCTRANSFORM_MAPPING_WORKERS"),
			},
			ProgressTracking: viper.GetBool("ECCTRANSFORM_EXTRACTION_PROGRESS"),
		},
		Source:   parseSourceConfig(),
		Metadata: parseMetadataConfig(),
		Export:   parseExportConfig(),
	}, nil
}

func parseExtractionConfig() extract.Config {
	return extract.Config{
		Workers:              viper.GetUint("ECCTRANSFORM_EXTRACTION_WORKERS"),
		TaskTimeout:          viper.GetDuration("ECCTRANSFORM_EXTRACTION_TASK_TIMEOUT"),
		RowChunkSize:         viper.GetUint("ECCTRANSFORM_EXTRACTION_ROW_CHUNK_SIZE"),
		FieldChunkWidth:      viper.GetUint("ECCTRANSFORM_EXTRACTION_FIELD_CHUNK_WIDTH"),
		FieldChunkShrinkStep: viper.GetUint("ECCTRANSFORM_EXTRACTION_FIELD_CHUNK_SHRINK_STEP"),
		Delimiter:            viper.GetString("ECCTRANSFORM_EXTRACTION_DELIMITER"),
	}
}

func parseSourceConfig() SourceConfig {
	cfg := SourceConfig{
		FixtureFile: viper.GetString("ECCTRANSFORM_SOURCE_FIXTURE_FILE"),
	}
	if url := viper.GetString("ECCTRANSFORM_SOURCE_POSTGRES_URL"); url != "" {
		cfg.Postgres = &rfcpostgres.Config{
			URL:            url,
			Schema:         viper.GetString("ECCTRANSFORM_SOURCE_POSTGRES_SCHEMA"),
			ConnectBackoff: parseBackoffConfig("ECCTRANSFORM_SOURCE_POSTGRES"),
		}
	}
	return cfg
}

func parseMetadataConfig() MetadataConfig {
	cfg := MetadataConfig{}
	if url := viper.GetString("ECCTRANSFORM_METADATA_MSSQL_URL"); url != "" {
		cfg.MSSQL = &mssql.Config{URL: url}
	}
	if url := viper.GetString("ECCTRANSFORM_METADATA_POSTGRES_URL"); url != "" {
		cfg.Postgres = &pgmetadata.Config{
			URL:     url,
			Backoff: parseBackoffConfig("ECCTRANSFORM_METADATA_POSTGRES"),
		}
	}
	if path := viper.GetString("ECCTRANSFORM_METADATA_FILE"); path != "" {
		cfg.File = &metadatafile.Config{Path: path}
	}
	return cfg
}

func parseExportConfig() ExportConfig {
	cfg := ExportConfig{
		Archive: viper.GetBool("ECCTRANSFORM_EXPORT_ARCHIVE"),
	}
	if viper.GetBool("ECCTRANSFORM_EXPORT_XLSX_ENABLED") {
		cfg.XLSX = &xlsx.Config{
			HeaderRow:    viper.GetUint("ECCTRANSFORM_EXPORT_XLSX_HEADER_ROW"),
			FirstDataRow: viper.GetUint("ECCTRANSFORM_EXPORT_XLSX_FIRST_DATA_ROW"),
			BatchSize:    viper.GetUint("ECCTRANSFORM_EXPORT_XLSX_BATCH_SIZE"),
		}
	}
	return cfg
}

func envToOtelConfig() (*otel.Config, error) {
	cfg := &otel.Config{}
	if endpoint := viper.GetString("ECCTRANSFORM_METRICS_ENDPOINT"); endpoint != "" {
		cfg.Metrics = &otel.MetricsConfig{
			Endpoint:           endpoint,
			CollectionInterval: viper.GetDuration("ECCTRANSFORM_METRICS_COLLECTION_INTERVAL"),
			RuntimeMetrics:     viper.GetBool("ECCTRANSFORM_METRICS_RUNTIME"),
		}
	}
	if endpoint := viper.GetString("ECCTRANSFORM_TRACES_ENDPOINT"); endpoint != "" {
		sampleRatio := viper.GetFloat64("ECCTRANSFORM_TRACES_SAMPLE_RATIO")
		if err := validateSampleRatio(sampleRatio); err != nil {
			return nil, err
		}
		cfg.Traces = &otel.TracesConfig{
			Endpoint:    endpoint,
			SampleRatio: sampleRatio,
		}
	}
	return cfg, nil
}

func parseBackoffConfig(prefix string) *backoff.Config {
	exp := parseExponentialBackoffConfig(prefix)
	constant := parseConstantBackoffConfig(prefix)
	if exp == nil && constant == nil {
		return nil
	}
	return &backoff.Config{
		Exponential: exp,
		Constant:    constant,
	}
}

func parseExponentialBackoffConfig(prefix string) *backoff.ExponentialConfig {
	initialInterval := viper.GetDuration(fmt.Sprintf("%s_EXP_BACKOFF_INITIAL_INTERVAL", prefix))
	maxInterval := viper.GetDuration(fmt.Sprintf("%s_EXP_BACKOFF_MAX_INTERVAL", prefix))
	maxRetries := viper.GetUint(fmt.Sprintf("%s_EXP_BACKOFF_MAX_RETRIES", prefix))
	if initialInterval == 0 && maxInterval == 0 && maxRetries == 0 {
		return nil
	}
	return &backoff.ExponentialConfig{
		InitialInterval: initialInterval,
		MaxInterval:     maxInterval,
		MaxRetries:      maxRetries,
	}
}

func parseConstantBackoffConfig(prefix string) *backoff.ConstantConfig {
	interval := viper.GetDuration(fmt.Sprintf("%s_BACKOFF_INTERVAL", prefix))
	maxRetries := viper.GetUint(fmt.Sprintf("%s_BACKOFF_MAX_RETRIES", prefix))
	if interval == 0 && maxRetries == 0 {
		return nil
	}
	return &backoff.ConstantConfig{
		Interval:   interval,
		MaxRetries: maxRetries,
	}
}
