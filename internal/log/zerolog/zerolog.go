// SPDX-License-Identifier: Apache-2.0

package zerolog

import (
	"io"
	stdlog "log"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/go-logr/zerologr"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	loglib "github.com/datavapte/ecctransform/pkg/log"
	zerologlib "github.com/datavapte/ecctransform/pkg/log/zerolog"
)

type Config struct {
	LogLevel string
	// JSON disables the console writer. Used when the run is executed by a
	// scheduler that ships the logs.
	JSON bool
	Out  io.Writer
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "timestamp"
	zerolog.ErrorFieldName = "error.message"
	zerolog.ErrorStackFieldName = "error.stack"
	// the v-level is redundant with the zerolog level
	zerologr.VerbosityFieldName = ""

	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		return path.Base(file) + ":" + strconv.Itoa(line)
	}
}

// SetGlobalLogger sets the log output in the stdlib log package and the
// zerolog global loggers.
func SetGlobalLogger(logger *zerolog.Logger) {
	stdlog.SetFlags(0)
	stdlog.SetOutput(logger)

	log.Logger = *logger
	zerolog.DefaultContextLogger = logger
}

func NewStdLogger(l *zerolog.Logger) loglib.Logger {
	return zerologlib.NewLogger(l)
}

// NewLogger creates a new logger writing to stderr unless configured
// otherwise. Trace logs are capped at 100 per minute, debug logs are sampled
// 1 in 5 once 1000 per minute have been emitted. Row level logging in the
// extractor relies on these limits.
func NewLogger(config *Config) *zerolog.Logger {
	// ignore the error, it defaults to no level
	level, _ := zerolog.ParseLevel(config.LogLevel)

	out := config.Out
	if out == nil {
		out = os.Stderr
	}
	if !config.JSON {
		out = zerolog.NewConsoleWriter(
			withTimeFormat(time.RFC3339Nano),
			withOut(out),
		)
	}

	logger := zerolog.New(out).
		Sample(zerolog.LevelSampler{
			TraceSampler: &zerolog.BurstSampler{
				Burst:  100,
				Period: 1 * time.Minute,
			},
			DebugSampler: &zerolog.BurstSampler{
				Burst:       1000,
				Period:      1 * time.Minute,
				NextSampler: &zerolog.BasicSampler{N: 5},
			},
		}).
		With().
		Timestamp().
		Caller().
		Stack().
		Logger().
		Level(level)

	return &logger
}

// NewLogrLogger bridges the zerolog logger into logr, used by the
// OpenTelemetry SDK error handler.
func NewLogrLogger(l *zerolog.Logger) zerologr.Logger {
	return zerologr.New(l)
}

func withTimeFormat(format string) func(*zerolog.ConsoleWriter) {
	return func(w *zerolog.ConsoleWriter) {
		w.TimeFormat = format
	}
}

func withOut(out io.Writer) func(*zerolog.ConsoleWriter) {
	return func(w *zerolog.ConsoleWriter) {
		w.Out = out
	}
}
