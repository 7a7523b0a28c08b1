// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/datavapte/ecctransform/internal/progress"
	loglib "github.com/datavapte/ecctransform/pkg/log"
	"github.com/datavapte/ecctransform/pkg/otel"
	"github.com/datavapte/ecctransform/pkg/rfc"
)

// Task is the extraction of the given fields of one source table.
type Task struct {
	Table  string
	Fields []string
}

// TableError identifies the table whose extraction failed.
type TableError struct {
	Table string
	Err   error
}

func (e *TableError) Error() string {
	return fmt.Sprintf("extracting table %s: %v", e.Table, e.Err)
}

func (e *TableError) Unwrap() error {
	return e.Err
}

// Coordinator extracts several tables concurrently with a bounded number of
// workers. Each task uses its own session. Only the coordinating goroutine
// records the results.
type Coordinator struct {
	logger      loglib.Logger
	source      rfc.Source
	extractor   TableExtractor
	workers     int
	taskTimeout time.Duration

	progressTracking   bool
	progressBarBuilder progress.BarBuilder
}

type CoordinatorOption func(*Coordinator)

func NewCoordinator(cfg *Config, source rfc.Source, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		logger:      loglib.NewNoopLogger(),
		source:      source,
		extractor:   NewExtractor(cfg),
		workers:     cfg.workers(),
		taskTimeout: cfg.taskTimeout(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithCoordinatorLogger(l loglib.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = loglib.WithModule(l, "extraction_coordinator")
	}
}

// WithTableExtractor overrides the extractor used for every task.
func WithTableExtractor(e TableExtractor) CoordinatorOption {
	return func(c *Coordinator) {
		c.extractor = e
	}
}

func WithInstrumentation(i *otel.Instrumentation) CoordinatorOption {
	return func(c *Coordinator) {
		ie, err := NewInstrumentedExtractor(c.extractor, i)
		if err != nil {
			// only fails if the metric instruments cannot be created
			panic(err)
		}
		c.extractor = ie
	}
}

func WithProgressTracking() CoordinatorOption {
	return func(c *Coordinator) {
		c.progressTracking = true
		c.progressBarBuilder = progress.NewCountBar
	}
}

type taskResult struct {
	table      string
	extraction *Extraction
	err        error
}

// ExtractAll runs one task per source table and returns the extractions
// keyed by table name. It only succeeds if every task succeeded. Once a task
// fails no new task is started; the tasks in flight run to completion and
// their results are discarded. ExtractAll returns after they released their
// sessions.
func (c *Coordinator) ExtractAll(ctx context.Context, tasks []Task) (map[string]*Extraction, error) {
	var bar progress.Bar
	if c.progressTracking && len(tasks) > 0 {
		bar = c.progressBarBuilder(len(tasks), "[cyan]extracting tables[reset]")
		defer bar.Close()
	}

	out := make(chan taskResult, len(tasks))
	stop := make(chan struct{})
	stopOnce := sync.Once{}

	go func() {
		scheduler := errgroup.Group{}
		scheduler.SetLimit(c.workers)
		defer func() {
			scheduler.Wait()
			close(out)
		}()

		for _, task := range tasks {
			if stopped(ctx, stop) {
				return
			}
			scheduler.Go(func() error {
				// a task may have failed while this one waited for a worker
				if stopped(ctx, stop) {
					return nil
				}
				extraction, err := c.runTask(ctx, task)
				if err != nil {
					stopOnce.Do(func() { close(stop) })
				}
				out <- taskResult{table: task.Table, extraction: extraction, err: err}
				return nil
			})
		}
	}()

	results := make(map[string]*Extraction, len(tasks))
	var failure error
	for res := range out {
		switch {
		case failure != nil:
			c.logger.Debug("discarding table extracted after failure", loglib.Fields{loglib.TableField: res.table})
		case res.err != nil:
			failure = &TableError{Table: res.table, Err: res.err}
		default:
			results[res.table] = res.extraction
			if bar != nil {
				bar.Add(1)
			}
		}
	}

	if failure != nil {
		c.logger.Error(failure, "extraction aborted")
		return nil, failure
	}
	// the parent context was canceled before every task started
	if err := ctx.Err(); err != nil && len(results) < len(tasks) {
		return nil, fmt.Errorf("extraction interrupted: %w", context.Cause(ctx))
	}
	return results, nil
}

func stopped(ctx context.Context, stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// runTask bounds the task with its own deadline. It is derived from the
// caller context only, so a failing sibling does not interrupt it.
func (c *Coordinator) runTask(ctx context.Context, task Task) (*Extraction, error) {
	ctx, cancel := context.WithTimeout(ctx, c.taskTimeout)
	defer cancel()

	logFields := loglib.Fields{loglib.TableField: task.Table, "fields": len(task.Fields)}
	c.logger.Info("extracting table", logFields)
	start := time.Now()

	session, err := c.source.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := session.Close(context.WithoutCancel(ctx)); closeErr != nil {
			c.logger.Warn(closeErr, "closing remote session", logFields)
		}
	}()

	extraction, err := c.extractor.ExtractTable(ctx, session, task.Table, task.Fields)
	if err != nil {
		return nil, err
	}

	c.logger.Info("table extracted", loglib.MergeFields(logFields, loglib.Fields{
		"rows":     extraction.Table.NumRows(),
		"duration": time.Since(start),
	}))
	return extraction, nil
}
