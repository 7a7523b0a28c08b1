// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/datavapte/ecctransform/internal/json"
	"github.com/datavapte/ecctransform/pkg/rules"
	"github.com/datavapte/ecctransform/pkg/rules/builder"
)

type Result struct {
	Name  string `json:"name"`
	Rules []Rule `json:"rules"`
}

type Rule struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
}

type Parameter struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Default     string `json:"default,omitempty"`
}

func main() {
	log.Println("Generating transformation rules JSON definition...")

	result := Result{
		Name:  "transformation_rules",
		Rules: extractRules(builder.Definitions()),
	}

	if err := writeJSONToFile("rules-definition.json", result); err != nil {
		log.Fatalf("failed to write JSON to file: %v", err)
	}

	log.Println("Transformation rules JSON definition generated successfully")
}

func extractRules(definitions []*rules.Definition) []Rule {
	rulesList := make([]Rule, 0, len(definitions))
	for _, def := range definitions {
		rulesList = append(rulesList, Rule{
			Name:        string(def.Name),
			Description: def.Description,
			Parameters:  extractParameters(def.Parameters),
		})
	}
	return rulesList
}

func extractParameters(params []rules.Parameter) []Parameter {
	parameters := make([]Parameter, 0, len(params))
	for _, p := range params {
		parameters = append(parameters, Parameter{
			Name:        p.Name,
			Description: p.Description,
			Required:    p.Required,
			Default:     p.Default,
		})
	}
	return parameters
}

func writeJSONToFile(filename string, data any) error {
	raw, err := json.MarshalIndent(data, "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	if err := os.WriteFile(filename, append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
