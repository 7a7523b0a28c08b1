// SPDX-License-Identifier: Apache-2.0

package otel

import "time"

type Config struct {
	Metrics *MetricsConfig
	Traces  *TracesConfig
	// ServiceVersion is reported as the service.version resource attribute.
	// Defaults to the vcs revision of the binary.
	ServiceVersion string
}

type MetricsConfig struct {
	Endpoint           string
	CollectionInterval time.Duration
	// RuntimeMetrics enables go runtime metrics (memory, gc, goroutines).
	RuntimeMetrics bool
}

type TracesConfig struct {
	Endpoint    string
	SampleRatio float64
}

const (
	defaultCollectionInterval = 60 * time.Second
	defaultSampleRatio        = 1.0
)

func (c *MetricsConfig) collectionInterval() time.Duration {
	if c.CollectionInterval != 0 {
		return c.CollectionInterval
	}
	return defaultCollectionInterval
}

func (c *TracesConfig) sampleRatio() float64 {
	if c.SampleRatio > 0 {
		return c.SampleRatio
	}
	return defaultSampleRatio
}
