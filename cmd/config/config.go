// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/datavapte/ecctransform/pkg/export/xlsx"
	metadatafile "github.com/datavapte/ecctransform/pkg/metadata/file"
	"github.com/datavapte/ecctransform/pkg/metadata/mssql"
	pgmetadata "github.com/datavapte/ecctransform/pkg/metadata/postgres"
	"github.com/datavapte/ecctransform/pkg/otel"
	"github.com/datavapte/ecctransform/pkg/pipeline"
	rfcpostgres "github.com/datavapte/ecctransform/pkg/rfc/postgres"
)

// Config is the configuration of a transformation run.
type Config struct {
	Request  pipeline.Request
	Pipeline pipeline.Config
	Source   SourceConfig
	Metadata MetadataConfig
	Export   ExportConfig
}

// SourceConfig holds exactly one remote source.
type SourceConfig struct {
	Postgres *rfcpostgres.Config
	// FixtureFile is a YAML file loaded as an in memory remote source.
	FixtureFile string
}

// MetadataConfig holds exactly one metadata store.
type MetadataConfig struct {
	MSSQL    *mssql.Config
	Postgres *pgmetadata.Config
	File     *metadatafile.Config
}

type ExportConfig struct {
	// XLSX is nil when no workbook is written.
	XLSX *xlsx.Config
	// Archive zips the run output directory.
	Archive bool
}

var (
	errNoSource               = errors.New("a remote source (postgres or fixture) must be configured")
	errMultipleSources        = errors.New("only one remote source can be configured")
	errNoMetadataStore        = errors.New("a metadata store (mssql, postgres or file) must be configured")
	errMultipleMetadataStores = errors.New("only one metadata store can be configured")
	errInvalidSampleRatio     = errors.New("trace sample ratio must be between 0 and 1")
)

func Load() error {
	return LoadFile(viper.GetString("config"))
}

func LoadFile(file string) error {
	if file == "" {
		return nil
	}
	ext := filepath.Ext(file)
	if ext == "" {
		return fmt.Errorf("config file %s has no extension", file)
	}
	viper.SetConfigFile(file)
	viper.SetConfigType(ext[1:])
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

// ParseConfig builds the run configuration out of the loaded yaml file, or
// out of the environment (and .env file) otherwise.
func ParseConfig() (*Config, error) {
	var cfg *Config
	var err error
	if isYAMLConfig() {
		yamlCfg := YAMLConfig{}
		if err := viper.Unmarshal(&yamlCfg); err != nil {
			return nil, err
		}
		cfg, err = yamlCfg.toConfig()
	} else {
		cfg, err = envToConfig()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ParseInstrumentationConfig() (*otel.Config, error) {
	if isYAMLConfig() {
		yamlCfg := YAMLConfig{}
		if err := viper.Unmarshal(&yamlCfg); err != nil {
			return nil, err
		}
		return yamlCfg.Instrumentation.toOtelConfig()
	}
	return envToOtelConfig()
}

func isYAMLConfig() bool {
	switch filepath.Ext(viper.GetViper().ConfigFileUsed()) {
	case ".yml", ".yaml":
		return true
	default:
		return false
	}
}

// ValidateSource checks a remote source is configured. Only runs extracting
// data need one.
func (c *Config) ValidateSource() error {
	if c.sources() == 0 {
		return errNoSource
	}
	return nil
}

func (c *Config) validate() error {
	if c.sources() > 1 {
		return errMultipleSources
	}

	stores := 0
	for _, set := range []bool{c.Metadata.MSSQL != nil, c.Metadata.Postgres != nil, c.Metadata.File != nil} {
		if set {
			stores++
		}
	}
	switch {
	case stores == 0:
		return errNoMetadataStore
	case stores > 1:
		return errMultipleMetadataStores
	}
	return nil
}

func (c *Config) sources() int {
	sources := 0
	if c.Source.Postgres != nil {
		sources++
	}
	if c.Source.FixtureFile != "" {
		sources++
	}
	return sources
}

func validateSampleRatio(ratio float64) error {
	if ratio < 0 || ratio > 1 {
		return errInvalidSampleRatio
	}
	return nil
}
