// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package router

import (
	"fmt"
	"strings"

	"github.com/kadirpekel/langsketch/pkg/config"
	"github.com/kadirpekel/langsketch/pkg/utility"
)

// Describe renders cfg as the routing text. The output depends only on
// cfg, in declaration order.
func Describe(cfg *config.AgentConfig) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Agent: %s\n", cfg.Agent.Name)
	fmt.Fprintf(&b, "Purpose: %s\n", cfg.Agent.Description)

	b.WriteString("\nInputs")
	if cfg.Agent.Input.IsArray {
		b.WriteString(" (batch)")
	}
	b.WriteString(":\n")
	writeFields(&b, cfg.Agent.Input.Fields)

	b.WriteString("\nOutputs:\n")
	writeFields(&b, cfg.Agent.Output.Fields)

	var capabilities []string

	if len(cfg.Utilities) > 0 {
		b.WriteString("\nBuilt-in utilities:\n")
		for _, key := range cfg.Utilities {
			if u, ok := utility.Lookup(key); ok {
				fmt.Fprintf(&b, "- %s: %s\n", u.Descriptor.Name, u.Descriptor.Description)
				capabilities = append(capabilities, strings.ToLower(u.Descriptor.Description))
			} else {
				fmt.Fprintf(&b, "- %s\n", key)
			}
		}
	}

	if len(cfg.Tools) > 0 {
		b.WriteString("\nCustom tools:\n")
		for _, t := range cfg.Tools {
			fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
		}
	}

	if len(cfg.APIs) > 0 {
		b.WriteString("\nExternal APIs:\n")
		for _, api := range cfg.APIs {
			fmt.Fprintf(&b, "- %s (%s): %s\n", api.Name, strings.ToUpper(api.Method), api.Description)
			capabilities = append(capabilities, "call the "+api.Name+" API")
		}
	}

	if cfg.RAG != nil {
		fmt.Fprintf(&b, "\nKnowledge base: %s (%s)\n", cfg.RAG.IndexName, cfg.RAG.Description)
		capabilities = append(capabilities, "retrieve documents from a knowledge base")
	}

	if len(cfg.Scraping) > 0 {
		fmt.Fprintf(&b, "\nScraping targets: %d\n", len(cfg.Scraping))
		capabilities = append(capabilities, "read content from web pages")
	}

	b.WriteString("\nComplexity indicators:\n")
	fmt.Fprintf(&b, "- input fields: %d\n", len(cfg.Agent.Input.Fields))
	fmt.Fprintf(&b, "- output fields: %d\n", len(cfg.Agent.Output.Fields))
	fmt.Fprintf(&b, "- utilities: %d\n", len(cfg.Utilities))
	fmt.Fprintf(&b, "- custom tools: %d\n", len(cfg.Tools))
	fmt.Fprintf(&b, "- APIs: %d\n", len(cfg.APIs))
	fmt.Fprintf(&b, "- knowledge base: %t\n", cfg.RAG != nil)
	fmt.Fprintf(&b, "- scraping targets: %d\n", len(cfg.Scraping))

	if len(capabilities) > 0 {
		fmt.Fprintf(&b, "\nCapabilities: %s\n", strings.Join(capabilities, "; "))
	}

	return b.String()
}

func writeFields(b *strings.Builder, fields []config.FieldConfig) {
	if len(fields) == 0 {
		b.WriteString("- none\n")
		return
	}
	for _, f := range fields {
		req := "optional"
		if f.IsRequired() {
			req = "required"
		}
		fmt.Fprintf(b, "- %s (%s, %s): %s\n", f.Name, f.Type, req, f.Description)
	}
}
