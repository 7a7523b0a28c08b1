// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"github.com/datavapte/ecctransform/pkg/extract"
	"github.com/datavapte/ecctransform/pkg/mapping"
)

type Config struct {
	// OutputDir is the parent directory of the run output directories.
	OutputDir string
	// OutputNameTemplate is a text/template, with sprig functions, rendering
	// the run output directory name from the Template, Client, Timestamp and
	// RunID fields. Defaults to "{{ .Template }}_{{ .Client }}_{{ .Timestamp }}".
	OutputNameTemplate string
	Extraction         extract.Config
	Mapping            mapping.Config
	// ProgressTracking shows a progress bar while extracting.
	ProgressTracking bool
}

const (
	defaultOutputDir          = "."
	defaultOutputNameTemplate = "{{ .Template }}_{{ .Client }}_{{ .Timestamp }}"
	timestampFormat           = "2006-01-02150405"
)

func (c *Config) outputDir() string {
	if c.OutputDir != "" {
		return c.OutputDir
	}
	return defaultOutputDir
}

func (c *Config) outputNameTemplate() string {
	if c.OutputNameTemplate != "" {
		return c.OutputNameTemplate
	}
	return defaultOutputNameTemplate
}
