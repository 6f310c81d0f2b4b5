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

// Package tool defines the uniform contract of agent tools.
//
// Every backend (builtin utility, script file, HTTP API) produces a Tool
// with a normalized name, a derived argument schema that rejects unknown
// keys, and a synchronous Call returning text for the model.
//
//	builtin -> functiontool.New
//	file    -> scripttool.Load
//	api     -> apitool.New
//
// loader.Load dispatches a declaration to the right constructor.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kadirpekel/langsketch/pkg/schema"
)

var (
	// ErrToolLoadFailed is wrapped when a tool cannot be assembled.
	ErrToolLoadFailed = errors.New("tool load failed")
	// ErrToolFailed is wrapped when a tool call fails.
	ErrToolFailed = errors.New("tool execution failed")
)

// Tool is a named callable with a typed argument schema.
type Tool interface {
	// Name returns the normalized tool name.
	Name() string

	// Description is shown to the model.
	Description() string

	// Schema returns the argument schema.
	Schema() *schema.Schema

	// Call validates args and runs the tool. Errors wrap
	// schema.ErrInputValidation or ErrToolFailed.
	Call(ctx context.Context, args map[string]any) (string, error)
}

// NormalizeName replaces spaces and hyphens with underscores.
func NormalizeName(name string) string {
	return strings.NewReplacer(" ", "_", "-", "_").Replace(strings.TrimSpace(name))
}

// Base carries the fields every tool shares.
type Base struct {
	name        string
	description string
	schema      *schema.Schema
}

func NewBase(name, description string, s *schema.Schema) Base {
	return Base{
		name:        NormalizeName(name),
		description: description,
		schema:      s,
	}
}

func (b Base) Name() string {
	return b.name
}

func (b Base) Description() string {
	return b.description
}

func (b Base) Schema() *schema.Schema {
	return b.schema
}

// ValidateArgs checks args against the tool schema.
func (b Base) ValidateArgs(args map[string]any) (map[string]any, error) {
	if args == nil {
		args = map[string]any{}
	}
	validated, err := b.schema.Validate(args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.name, err)
	}
	return validated, nil
}

// Definition is the model-facing description of a tool.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// DefinitionOf builds the model-facing description of t.
func DefinitionOf(t Tool) Definition {
	return Definition{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Schema().Parameters(),
	}
}

// Render converts a tool result to the text handed back to the model.
// Strings pass through; everything else is encoded as JSON.
func Render(result any) string {
	switch v := result.(type) {
	case nil:
		return "null"
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprint(result)
	}
	return string(data)
}

// Names returns the names of tools in order.
func Names(tools []Tool) []string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name()
	}
	return names
}
