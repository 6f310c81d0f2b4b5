// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/kadirpekel/langsketch/pkg/config"
)

// SchemaCmd prints the JSON Schema of agent configuration files, for
// editors and config builders.
type SchemaCmd struct {
	Compact bool `short:"c" help:"Compact JSON output (no indentation)."`
}

func (c *SchemaCmd) Run() error {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	s := reflector.Reflect(&config.AgentConfig{})
	s.ID = "https://github.com/kadirpekel/langsketch/schemas/agent.json"
	s.Title = "Agent Configuration"
	s.Description = "Declarative agent: identity, input and output fields, utilities, tools and APIs"
	s.Version = "http://json-schema.org/draft-07/schema#"
	s.Examples = []any{
		map[string]any{
			"agent": map[string]any{
				"name":        "converter",
				"description": "Converts distances between units",
				"input": map[string]any{"fields": []any{
					map[string]any{"name": "distance", "type": "string", "description": "Distance with unit"},
				}},
				"output": map[string]any{"fields": []any{
					map[string]any{"name": "miles", "type": "float", "description": "Distance in miles"},
				}},
			},
			"utilities": []string{config.UtilityUnitConverter},
			"apis":      []any{},
			"scraping":  []any{},
		},
	}

	encoder := json.NewEncoder(os.Stdout)
	if !c.Compact {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(s); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return nil
}
