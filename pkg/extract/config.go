// SPDX-License-Identifier: Apache-2.0

package extract

import "time"

type Config struct {
	// Workers is the number of tables extracted concurrently. Defaults to 3.
	Workers uint
	// TaskTimeout bounds the extraction of a single table, including the
	// session open. Defaults to 30 minutes.
	TaskTimeout time.Duration
	// RowChunkSize is the number of rows requested per read. Defaults to
	// 1000.
	RowChunkSize uint
	// FieldChunkWidth is the initial number of fields requested per read.
	// Defaults to 10.
	FieldChunkWidth uint
	// FieldChunkShrinkStep is how much the field chunk narrows after a
	// rejected read. Defaults to 2.
	FieldChunkShrinkStep uint
	// Delimiter separates the field values of a row. Defaults to "|".
	Delimiter string
}

const (
	defaultWorkers              = 3
	defaultTaskTimeout          = 30 * time.Minute
	defaultRowChunkSize         = 1000
	defaultFieldChunkWidth      = 10
	defaultFieldChunkShrinkStep = 2
	defaultDelimiter            = "|"
)

func (c *Config) workers() int {
	if c.Workers > 0 {
		return int(c.Workers)
	}
	return defaultWorkers
}

func (c *Config) taskTimeout() time.Duration {
	if c.TaskTimeout > 0 {
		return c.TaskTimeout
	}
	return defaultTaskTimeout
}

func (c *Config) rowChunkSize() int {
	if c.RowChunkSize > 0 {
		return int(c.RowChunkSize)
	}
	return defaultRowChunkSize
}

func (c *Config) delimiter() string {
	if c.Delimiter != "" {
		return c.Delimiter
	}
	return defaultDelimiter
}

func (c *Config) shrinkPolicy() ShrinkPolicy {
	p := ShrinkPolicy{
		InitialWidth: defaultFieldChunkWidth,
		Step:         defaultFieldChunkShrinkStep,
	}
	if c.FieldChunkWidth > 0 {
		p.InitialWidth = int(c.FieldChunkWidth)
	}
	if c.FieldChunkShrinkStep > 0 {
		p.Step = int(c.FieldChunkShrinkStep)
	}
	return p
}
