// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/datavapte/ecctransform/cmd/config"
	loglib "github.com/datavapte/ecctransform/pkg/log"
	"github.com/datavapte/ecctransform/pkg/rules"
	"github.com/datavapte/ecctransform/pkg/rules/builder"
	"github.com/datavapte/ecctransform/pkg/transform"
)

// parent command for validation subcommands
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate different parts of the ecctransform metadata",
}

var errNoClientID = errors.New("client id is required for transformation rules validation")

var validateRulesCmd = &cobra.Command{
	Use:     "rules",
	Short:   "Builds every transformation rule declared for a client without applying it",
	PreRunE: validateRulesFlagBinding,
	RunE: func(cmd *cobra.Command, args []string) error {
		sp, _ := pterm.DefaultSpinner.WithText("validating transformation rules...").Start()

		err := func() error {
			cfg, err := config.ParseConfig()
			if err != nil {
				return fmt.Errorf("parsing config: %w", err)
			}
			if cfg.Request.ClientID == "" {
				return errNoClientID
			}

			orchestrator, store, err := newOrchestrator(cmd.Context(), cfg, loglib.NewNoopLogger(), nil)
			if err != nil {
				return err
			}
			defer store.Close()

			occurrences, disabled, err := orchestrator.ValidateRules(cmd.Context(), cfg.Request.ClientID)
			status, err := newRulesStatus(cfg.Request.ClientID, occurrences, disabled, err)
			if err != nil {
				return err
			}

			if len(status.Errors) == 0 {
				sp.Success("transformation rules are valid")
			} else {
				sp.Warning("transformation rules validation identified issues: ", strings.Join(status.Errors, ", "))
			}

			if err := print(cmd, status); err != nil {
				return fmt.Errorf("failed to format transformation rules validation status: %w", err)
			}
			return nil
		}()
		if err != nil {
			sp.Fail(err.Error())
		}

		return err
	},
	Example: `
	ecctransform validate rules -c config.yaml
	ecctransform validate rules -c config.env --client-id C100 --json
	`,
}

type rulesStatus struct {
	ClientID       string   `json:"client_id"`
	Occurrences    int      `json:"occurrences"`
	Disabled       []string `json:"disabled,omitempty"`
	Errors         []string `json:"errors,omitempty"`
	SupportedRules []string `json:"supported_rules,omitempty"`
}

// newRulesStatus reports the rule errors in the status. Any other error is
// returned.
func newRulesStatus(clientID string, occurrences, disabled []rules.Occurrence, err error) (*rulesStatus, error) {
	status := &rulesStatus{
		ClientID:    clientID,
		Occurrences: len(occurrences),
	}
	for _, occ := range disabled {
		status.Disabled = append(status.Disabled, fmt.Sprintf("%s on %s.%s", occ.Rule, occ.TargetTable, occ.TargetField))
	}
	if err == nil {
		return status, nil
	}

	ruleErr := &transform.RuleError{}
	if !errors.As(err, &ruleErr) {
		return nil, err
	}
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}
	unsupported := false
	for _, e := range errs {
		status.Errors = append(status.Errors, e.Error())
		if errors.Is(e, rules.ErrUnsupportedRule) {
			unsupported = true
		}
	}
	if unsupported {
		for _, def := range builder.Definitions() {
			status.SupportedRules = append(status.SupportedRules, string(def.Name))
		}
	}
	return status, nil
}

func (s *rulesStatus) PrettyPrint() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Client %s: %d rule occurrences\n", s.ClientID, s.Occurrences)
	for _, d := range s.Disabled {
		fmt.Fprintf(&sb, " - disabled (missing parameter): %s\n", d)
	}
	for _, e := range s.Errors {
		fmt.Fprintf(&sb, " - error: %s\n", e)
	}
	if len(s.SupportedRules) > 0 {
		fmt.Fprintf(&sb, "Supported rules: %s\n", strings.Join(s.SupportedRules, ", "))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func validateRulesFlagBinding(cmd *cobra.Command, _ []string) error {
	// to be able to overwrite configuration with flags when either a yaml or
	// env config file is provided, or when no configuration is provided
	bindChangedFlag(cmd.Flags().Lookup("client-id"), "run.client_id", "ECCTRANSFORM_CLIENT_ID")
	return nil
}
