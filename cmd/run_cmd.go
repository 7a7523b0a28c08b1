// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/datavapte/ecctransform/cmd/config"
	"github.com/datavapte/ecctransform/pkg/pipeline"
)

var runCmd = &cobra.Command{
	Use:     "run",
	Short:   "Run extracts the source tables of a migration template, maps them into the target tables, applies the client rules and exports the result",
	PreRunE: runFlagBinding,
	RunE:    withProfiling(withSignalWatcher(run)),
	Example: `
	ecctransform run --config config.yaml
	ecctransform run --config config.env --template-name "Material Master - Basic" --template-version 1909 --client-id C100
	ecctransform run -c config.yaml --output-dir ./out --log-level debug`,
}

func run(ctx context.Context) error {
	logger := newLogger()

	cfg, err := config.ParseConfig()
	if err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.ValidateSource(); err != nil {
		return err
	}

	provider, err := newInstrumentationProvider()
	if err != nil {
		return err
	}
	defer provider.Close()

	orchestrator, store, err := newOrchestrator(ctx, cfg, logger, provider.NewInstrumentation("ecctransform"))
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := orchestrator.Run(ctx, &cfg.Request)
	if err != nil {
		printFailure(err)
		return err
	}

	printSummary(&cfg.Request, result)
	return nil
}

func runFlagBinding(cmd *cobra.Command, _ []string) error {
	requestFlagBinding(cmd)
	return nil
}

func printFailure(err error) {
	failure := &pipeline.Failure{}
	if !errors.As(err, &failure) {
		pterm.Error.Println(err.Error())
		return
	}
	pterm.Error.Printfln("%s (stage %s, kind %s)", failure.Message, failure.Stage, failure.Kind)
	pterm.Println(failure.Detail)
}

func printSummary(req *pipeline.Request, result *pipeline.Result) {
	pterm.Success.Printfln("transformation run %s completed in %s", result.RunID, result.Stats.Duration)

	pterm.DefaultTable.WithData(pterm.TableData{
		{"Template", req.TemplateName},
		{"Version", req.TemplateVersion},
		{"Client", req.ClientID},
		{"Output", result.Output},
		{"Field mappings", strconv.Itoa(result.Stats.FieldMappings)},
		{"Rule occurrences", strconv.Itoa(result.Stats.RuleOccurrences)},
		{"Rules applied", strconv.Itoa(result.Stats.Rules.Applied)},
		{"Rules skipped", strconv.Itoa(result.Stats.Rules.Skipped)},
		{"Rules disabled", strconv.Itoa(result.Stats.Rules.Disabled)},
		{"Rules unsupported", strconv.Itoa(result.Stats.Rules.Unsupported)},
	}).Render()

	sourceData := pterm.TableData{{"Source table", "Rows", "Skipped fields"}}
	for _, name := range slices.Sorted(maps.Keys(result.Stats.SourceRows)) {
		sourceData = append(sourceData, []string{
			name,
			strconv.Itoa(result.Stats.SourceRows[name]),
			strings.Join(result.Stats.SkippedFields[name], ", "),
		})
	}
	pterm.DefaultTable.WithHasHeader().WithData(sourceData).Render()

	targetData := pterm.TableData{{"Target table", "Rows"}}
	for _, name := range result.Order {
		targetData = append(targetData, []string{name, strconv.Itoa(result.Stats.TargetRows[name])})
	}
	pterm.DefaultTable.WithHasHeader().WithData(targetData).Render()

	stageData := pterm.TableData{{"Stage", "Duration"}}
	for _, stage := range pipeline.Stages() {
		stageData = append(stageData, []string{string(stage), result.Stats.StageDurations[stage].String()})
	}
	pterm.DefaultTable.WithHasHeader().WithData(stageData).Render()
}
