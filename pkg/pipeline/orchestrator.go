// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/jonboulle/clockwork"
	"github.com/rs/xid"

	"github.com/datavapte/ecctransform/pkg/export"
	"github.com/datavapte/ecctransform/pkg/extract"
	loglib "github.com/datavapte/ecctransform/pkg/log"
	"github.com/datavapte/ecctransform/pkg/mapping"
	"github.com/datavapte/ecctransform/pkg/metadata"
	"github.com/datavapte/ecctransform/pkg/otel"
	"github.com/datavapte/ecctransform/pkg/rfc"
	"github.com/datavapte/ecctransform/pkg/rules"
	"github.com/datavapte/ecctransform/pkg/rules/builder"
	"github.com/datavapte/ecctransform/pkg/table"
	"github.com/datavapte/ecctransform/pkg/transform"
)

type tableExtractor interface {
	ExtractAll(ctx context.Context, tasks []extract.Task) (map[string]*extract.Extraction, error)
}

type tableResolver interface {
	Resolve(ctx context.Context, mappings []mapping.FieldMapping, sources map[string]*table.Table) (map[string]*table.Table, error)
}

type ruleDispatcher interface {
	ApplyRules(ctx context.Context, tables map[string]*table.Table, occurrences []rules.Occurrence) (*transform.Summary, error)
	Validate(occurrences []rules.Occurrence) ([]rules.Occurrence, error)
}

// Orchestrator runs the transformation of a template for a client:
// FetchMappingMeta, FetchRuleMeta, Extract, Map, ApplyRules and Handoff. The
// first failing stage stops the run, nothing is handed off on failure.
type Orchestrator struct {
	logger          loglib.Logger
	clock           clockwork.Clock
	store           metadata.Store
	source          rfc.Source
	exporter        export.Exporter
	instrumentation *otel.Instrumentation

	extractor  tableExtractor
	resolver   tableResolver
	dispatcher ruleDispatcher

	outputDir  string
	outputName *template.Template
}

type Option func(*Orchestrator)

// Request identifies the template and client of a run.
type Request struct {
	TemplateVersion string
	TemplateName    string
	ClientID        string
}

type Result struct {
	RunID    string
	Template *metadata.Template
	Tables   map[string]*table.Table
	// Order is the declaration order of the target tables.
	Order []string
	// Output is the path returned by the exporter.
	Output string
	Stats  Stats
}

type Stats struct {
	StartedAt       time.Time
	Duration        time.Duration
	StageDurations  map[Stage]time.Duration
	FieldMappings   int
	RuleOccurrences int
	SourceTables    int
	SourceRows      map[string]int
	SkippedFields   map[string][]string
	TargetRows      map[string]int
	Rules           transform.Summary
}

// Plan is the extraction a run would perform.
type Plan struct {
	Template *metadata.Template
	Mappings []mapping.FieldMapping
	Tasks    []extract.Task
}

func NewOrchestrator(cfg *Config, store metadata.Store, source rfc.Source, exporter export.Exporter, opts ...Option) (*Orchestrator, error) {
	outputName, err := template.New("output_name").Funcs(sprig.TxtFuncMap()).Parse(cfg.outputNameTemplate())
	if err != nil {
		return nil, fmt.Errorf("parsing output name template: %w", err)
	}

	o := &Orchestrator{
		logger:     loglib.NewNoopLogger(),
		clock:      clockwork.NewRealClock(),
		store:      store,
		source:     source,
		exporter:   exporter,
		outputDir:  cfg.outputDir(),
		outputName: outputName,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.extractor == nil {
		coordinatorOpts := []extract.CoordinatorOption{
			extract.WithCoordinatorLogger(o.logger),
			extract.WithTableExtractor(extract.NewExtractor(&cfg.Extraction, extract.WithLogger(o.logger))),
		}
		if o.instrumentation.IsEnabled() {
			coordinatorOpts = append(coordinatorOpts, extract.WithInstrumentation(o.instrumentation))
		}
		if cfg.ProgressTracking {
			coordinatorOpts = append(coordinatorOpts, extract.WithProgressTracking())
		}
		o.extractor = extract.NewCoordinator(&cfg.Extraction, source, coordinatorOpts...)
	}
	if o.resolver == nil {
		o.resolver = mapping.NewResolver(&cfg.Mapping, mapping.WithLogger(o.logger))
	}
	if o.dispatcher == nil {
		o.dispatcher = transform.NewDispatcher(
			transform.WithLogger(o.logger),
			transform.WithRuleBuilder(builder.NewRuleBuilder(builder.WithInstrumentation(o.instrumentation))),
		)
	}
	if o.exporter == nil {
		o.exporter = export.Noop{}
	}
	return o, nil
}

func WithLogger(l loglib.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = loglib.WithModule(l, "pipeline")
	}
}

func WithClock(c clockwork.Clock) Option {
	return func(o *Orchestrator) {
		o.clock = c
	}
}

func WithInstrumentation(i *otel.Instrumentation) Option {
	return func(o *Orchestrator) {
		o.instrumentation = i
	}
}

func withExtractor(e tableExtractor) Option {
	return func(o *Orchestrator) {
		o.extractor = e
	}
}

func withResolver(r tableResolver) Option {
	return func(o *Orchestrator) {
		o.resolver = r
	}
}

func (r *Request) validate() error {
	missing := []string{}
	if strings.TrimSpace(r.TemplateName) == "" {
		missing = append(missing, "template name")
	}
	if strings.TrimSpace(r.TemplateVersion) == "" {
		missing = append(missing, "template version")
	}
	if strings.TrimSpace(r.ClientID) == "" {
		missing = append(missing, "client id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return nil
}

// Run executes every stage of the run. Any error returned is a *Failure.
func (o *Orchestrator) Run(ctx context.Context, req *Request) (*Result, error) {
	result := &Result{
		RunID: xid.New().String(),
		Stats: Stats{
			StartedAt:      o.clock.Now(),
			StageDurations: map[Stage]time.Duration{},
			SourceRows:     map[string]int{},
			SkippedFields:  map[string][]string{},
			TargetRows:     map[string]int{},
		},
	}
	logger := o.logger.WithFields(loglib.Fields{
		loglib.RunIDField: result.RunID,
		"template":        req.TemplateName,
		"version":         req.TemplateVersion,
		"client_id":       req.ClientID,
	})
	logger.Info("transformation run started")

	var plan *Plan
	var occurrences []rules.Occurrence
	var sources map[string]*table.Table

	stages := []struct {
		stage Stage
		fn    func(ctx context.Context) error
	}{
		{
			stage: StageFetchMappingMeta,
			fn: func(ctx context.Context) error {
				var err error
				plan, err = o.Plan(ctx, req)
				if err != nil {
					return err
				}
				result.Template = plan.Template
				result.Order = mapping.TargetTables(plan.Mappings)
				result.Stats.FieldMappings = len(plan.Mappings)
				return nil
			},
		},
		{
			stage: StageFetchRuleMeta,
			fn: func(ctx context.Context) error {
				transformationRules, err := o.store.TransformationRules(ctx, req.ClientID)
				if err != nil {
					return err
				}
				occurrences = rules.Occurrences(transformationRules)
				result.Stats.RuleOccurrences = len(occurrences)
				return nil
			},
		},
		{
			stage: StageExtract,
			fn: func(ctx context.Context) error {
				extractions, err := o.extractor.ExtractAll(ctx, plan.Tasks)
				if err != nil {
					return err
				}
				sources = make(map[string]*table.Table, len(extractions))
				for name, e := range extractions {
					sources[name] = e.Table
					result.Stats.SourceRows[name] = e.Table.NumRows()
					if len(e.SkippedFields) > 0 {
						result.Stats.SkippedFields[name] = e.SkippedFields
					}
				}
				result.Stats.SourceTables = len(sources)
				return nil
			},
		},
		{
			stage: StageMap,
			fn: func(ctx context.Context) error {
				tables, err := o.resolver.Resolve(ctx, plan.Mappings, sources)
				if err != nil {
					return err
				}
				// source tables are not needed past this point
				sources = nil
				result.Tables = tables
				return nil
			},
		},
		{
			stage: StageApplyRules,
			fn: func(ctx context.Context) error {
				summary, err := o.dispatcher.ApplyRules(ctx, result.Tables, occurrences)
				if err != nil {
					return err
				}
				result.Stats.Rules = *summary
				for name, t := range result.Tables {
					result.Stats.TargetRows[name] = t.NumRows()
				}
				return nil
			},
		},
		{
			stage: StageHandoff,
			fn: func(ctx context.Context) error {
				output, err := o.handoff(ctx, req, result)
				if err != nil {
					return err
				}
				result.Output = output
				return nil
			},
		},
	}

	for _, s := range stages {
		stageLogger := logger.WithFields(loglib.Fields{loglib.StageField: string(s.stage)})
		start := o.clock.Now()
		stageLogger.Debug("stage started")

		err := s.fn(ctx)
		result.Stats.StageDurations[s.stage] = o.clock.Since(start)
		if err != nil {
			failure := newFailure(ctx, s.stage, err)
			stageLogger.Error(err, "transformation run failed", loglib.Fields{"kind": string(failure.Kind)})
			return nil, failure
		}
		stageLogger.Debug("stage completed", loglib.Fields{"duration": result.Stats.StageDurations[s.stage].String()})
	}

	result.Stats.Duration = o.clock.Since(result.Stats.StartedAt)
	logger.Info("transformation run completed", loglib.Fields{
		"output":        result.Output,
		"target_tables": len(result.Tables),
		"duration":      result.Stats.Duration.String(),
	})
	return result, nil
}

// Plan fetches the template and its field mappings for the client, and
// derives the extraction tasks out of them.
func (o *Orchestrator) Plan(ctx context.Context, req *Request) (*Plan, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	tmpl, err := o.store.Template(ctx, req.TemplateVersion, req.TemplateName)
	if err != nil {
		return nil, err
	}
	mappings, err := o.store.FieldMappings(ctx, tmpl.ID, req.ClientID)
	if err != nil {
		return nil, err
	}
	if len(mappings) == 0 {
		return nil, fmt.Errorf("template %s-%s, client %s: %w", req.TemplateName, req.TemplateVersion, req.ClientID, ErrNoFieldMappings)
	}

	errs := []error{}
	for _, m := range mappings {
		errs = append(errs, m.Validate())
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	required := mapping.RequiredFields(mappings)
	tasks := make([]extract.Task, 0, len(required))
	for _, r := range required {
		tasks = append(tasks, extract.Task{Table: r.Table, Fields: r.Fields})
	}
	return &Plan{
		Template: tmpl,
		Mappings: mappings,
		Tasks:    tasks,
	}, nil
}

// ValidateRules builds every rule occurrence of the client without applying
// them, returning the disabled ones.
func (o *Orchestrator) ValidateRules(ctx context.Context, clientID string) ([]rules.Occurrence, []rules.Occurrence, error) {
	transformationRules, err := o.store.TransformationRules(ctx, clientID)
	if err != nil {
		return nil, nil, err
	}
	occurrences := rules.Occurrences(transformationRules)
	disabled, err := o.dispatcher.Validate(occurrences)
	return occurrences, disabled, err
}

func (o *Orchestrator) handoff(ctx context.Context, req *Request, result *Result) (string, error) {
	name, err := o.outputDirName(req, result.RunID)
	if err != nil {
		return "", err
	}
	return o.exporter.Export(ctx, &export.Request{
		Template:  result.Template,
		OutputDir: filepath.Join(o.outputDir, name),
		BaseName:  metadata.NormalizeTemplateName(result.Template.Name),
		Tables:    result.Tables,
		Order:     result.Order,
	})
}

func (o *Orchestrator) outputDirName(req *Request, runID string) (string, error) {
	buf := &bytes.Buffer{}
	err := o.outputName.Execute(buf, map[string]string{
		"Template":  metadata.NormalizeTemplateName(req.TemplateName),
		"Client":    req.ClientID,
		"Timestamp": o.clock.Now().Format(timestampFormat),
		"RunID":     runID,
	})
	if err != nil {
		return "", fmt.Errorf("rendering output name: %w", err)
	}
	name := strings.TrimSpace(buf.String())
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid output name %q", name)
	}
	return name, nil
}
