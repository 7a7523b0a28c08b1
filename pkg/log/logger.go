// SPDX-License-Identifier: Apache-2.0

package log

import "maps"

type Logger interface {
	Trace(msg string, fields ...Fields)
	Debug(msg string, fields ...Fields)
	Info(msg string, fields ...Fields)
	Warn(err error, msg string, fields ...Fields)
	Error(err error, msg string, fields ...Fields)
	Panic(msg string, fields ...Fields)
	WithFields(fields Fields) Logger
}

type Fields map[string]any

// Field names shared by the pipeline components so that log lines for the
// same run can be correlated.
const (
	ModuleField = "module"
	RunIDField  = "run_id"
	StageField  = "stage"
	TableField  = "table"
	FieldField  = "field"
	RuleField   = "rule"
)

type NoopLogger struct{}

func (l *NoopLogger) Trace(msg string, fields ...Fields)            {}
func (l *NoopLogger) Debug(msg string, fields ...Fields)            {}
func (l *NoopLogger) Info(msg string, fields ...Fields)             {}
func (l *NoopLogger) Warn(err error, msg string, fields ...Fields)  {}
func (l *NoopLogger) Error(err error, msg string, fields ...Fields) {}
func (l *NoopLogger) Panic(msg string, fields ...Fields)            {}
func (l *NoopLogger) WithFields(fields Fields) Logger {
	return l
}

func NewNoopLogger() *NoopLogger {
	return &NoopLogger{}
}

// NewLogger will return the logger on input if not nil, or a noop logger
// otherwise.
func NewLogger(l Logger) Logger {
	if l == nil {
		return &NoopLogger{}
	}
	return l
}

// WithModule returns a child logger tagged with the module name.
func WithModule(l Logger, module string) Logger {
	return NewLogger(l).WithFields(Fields{ModuleField: module})
}

// MergeFields returns a new map with all the fields. Later keys win.
func MergeFields(fields ...Fields) Fields {
	size := 0
	for _, f := range fields {
		size += len(f)
	}
	allFields := make(Fields, size)
	for _, f := range fields {
		maps.Copy(allFields, f)
	}
	return allFields
}
