// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/datavapte/ecctransform/cmd/config"
	loglib "github.com/datavapte/ecctransform/pkg/log"
	"github.com/datavapte/ecctransform/pkg/mapping"
	"github.com/datavapte/ecctransform/pkg/pipeline"
)

var fieldsCmd = &cobra.Command{
	Use:     "fields",
	Short:   "Prints the source fields a run would extract for a template and client",
	PreRunE: fieldsFlagBinding,
	RunE: func(cmd *cobra.Command, args []string) error {
		sp, _ := pterm.DefaultSpinner.WithText("fetching field mappings...").Start()

		err := func() error {
			plan, err := fetchPlan(cmd.Context())
			if err != nil {
				return err
			}
			sp.Success(fmt.Sprintf("%d source tables to extract", len(plan.SourceTables)))

			if err := print(cmd, plan); err != nil {
				return fmt.Errorf("failed to format extraction plan: %w", err)
			}
			return nil
		}()
		if err != nil {
			sp.Fail(err.Error())
		}
		return err
	},
	Example: `
	ecctransform fields -c config.yaml
	ecctransform fields -c config.env --template-name "Material Master - Basic" --template-version 1909 --client-id C100 --json
	`,
}

type extractionPlan struct {
	Template     string            `json:"template"`
	Version      string            `json:"version"`
	ClientID     string            `json:"client_id"`
	TargetTables []string          `json:"target_tables"`
	SourceTables []sourceTablePlan `json:"source_tables"`
}

type sourceTablePlan struct {
	Table  string   `json:"table"`
	Fields []string `json:"fields"`
}

func (p *extractionPlan) PrettyPrint() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Template: %s (%s), client %s\n", p.Template, p.Version, p.ClientID)
	fmt.Fprintf(&sb, "Target tables: %s\n", strings.Join(p.TargetTables, ", "))
	for _, t := range p.SourceTables {
		fmt.Fprintf(&sb, " - %s: %s\n", t.Table, strings.Join(t.Fields, ", "))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func fetchPlan(ctx context.Context) (*extractionPlan, error) {
	cfg, err := config.ParseConfig()
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	orchestrator, store, err := newOrchestrator(ctx, cfg, loglib.NewNoopLogger(), nil)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	plan, err := orchestrator.Plan(ctx, &cfg.Request)
	if err != nil {
		return nil, err
	}
	return newExtractionPlan(&cfg.Request, plan), nil
}

func newExtractionPlan(req *pipeline.Request, plan *pipeline.Plan) *extractionPlan {
	p := &extractionPlan{
		Template:     plan.Template.Name,
		Version:      plan.Template.Version,
		ClientID:     req.ClientID,
		TargetTables: mapping.TargetTables(plan.Mappings),
		SourceTables: make([]sourceTablePlan, 0, len(plan.Tasks)),
	}
	for _, task := range plan.Tasks {
		p.SourceTables = append(p.SourceTables, sourceTablePlan{
			Table:  task.Table,
			Fields: task.Fields,
		})
	}
	return p
}

func fieldsFlagBinding(cmd *cobra.Command, _ []string) error {
	requestFlagBinding(cmd)
	return nil
}
