// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/datavapte/ecctransform/pkg/export"
	"github.com/datavapte/ecctransform/pkg/extract"
	"github.com/datavapte/ecctransform/pkg/mapping"
	"github.com/datavapte/ecctransform/pkg/metadata"
	"github.com/datavapte/ecctransform/pkg/rfc"
	"github.com/datavapte/ecctransform/pkg/rules"
	"github.com/datavapte/ecctransform/pkg/transform"
)

type Stage string

const (
	StageFetchMappingMeta Stage = "fetch_mapping_meta"
	StageFetchRuleMeta    Stage = "fetch_rule_meta"
	StageExtract          Stage = "extract"
	StageMap              Stage = "map"
	StageApplyRules       Stage = "apply_rules"
	StageHandoff          Stage = "handoff"
)

// Stages returns the stages of a run in execution order.
func Stages() []Stage {
	return []Stage{
		StageFetchMappingMeta,
		StageFetchRuleMeta,
		StageExtract,
		StageMap,
		StageApplyRules,
		StageHandoff,
	}
}

// Kind classifies the cause of a failed run.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindTransientProtocol Kind = "transient_protocol"
	KindEmptyResult       Kind = "empty_result"
	KindMapping           Kind = "mapping"
	KindRule              Kind = "rule"
	KindMetadata          Kind = "metadata"
	KindExport            Kind = "export"
	KindCanceled          Kind = "canceled"
	KindInternal          Kind = "internal"
)

// Failure is the outcome of a run that stopped at one of its stages. Message
// is a short summary, Detail appends the underlying cause.
type Failure struct {
	Stage   Stage
	Kind    Kind
	Message string
	Detail  string
	Err     error
}

func (f *Failure) Error() string {
	return f.Detail
}

func (f *Failure) Unwrap() error {
	return f.Err
}

var (
	ErrNoFieldMappings = errors.New("no field mappings")
	ErrInvalidRequest  = errors.New("invalid run request")
)

var stageMessages = map[Stage]string{
	StageFetchMappingMeta: "error while fetching mapping metadata",
	StageFetchRuleMeta:    "error while fetching transformation rules",
	StageExtract:          "error while extracting source tables",
	StageMap:              "error while mapping target tables",
	StageApplyRules:       "error while applying transformation rules",
	StageHandoff:          "error while exporting target tables",
}

func newFailure(ctx context.Context, stage Stage, err error) *Failure {
	msg := stageMessages[stage]
	return &Failure{
		Stage:   stage,
		Kind:    classify(ctx, stage, err),
		Message: msg,
		Detail:  fmt.Sprintf("%s | %v", msg, err),
		Err:     err,
	}
}

func classify(ctx context.Context, stage Stage, err error) Kind {
	var unknownFieldErr *rfc.UnknownFieldError
	var mappingErr *mapping.MappingError
	var ruleErr *transform.RuleError

	switch {
	case ctx.Err() != nil, errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.As(err, &unknownFieldErr),
		errors.Is(err, rfc.ErrUnknownTable),
		errors.Is(err, mapping.ErrInvalidMapping),
		errors.Is(err, metadata.ErrTemplateNotFound),
		errors.Is(err, ErrNoFieldMappings),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, rules.ErrUnsupportedRule),
		errors.Is(err, rules.ErrInvalidParameters):
		return KindValidation
	case errors.Is(err, extract.ErrEmptyResult):
		return KindEmptyResult
	case rfc.IsRetryable(err),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, extract.ErrSnapshotChanged):
		return KindTransientProtocol
	case errors.As(err, &mappingErr):
		return KindMapping
	case errors.As(err, &ruleErr):
		return KindRule
	case errors.Is(err, export.ErrExport):
		return KindExport
	case stage == StageFetchMappingMeta || stage == StageFetchRuleMeta:
		return KindMetadata
	default:
		return KindInternal
	}
}
