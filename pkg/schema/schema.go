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

// Package schema derives record schemas from declared field lists and
// validates or coerces values against them.
//
// A Schema is a static descriptor table; one generic validator interprets
// it for agent inputs, tool arguments and agent outputs.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/kadirpekel/langsketch/pkg/config"
)

// ArrayInputKey holds the batch items of an array input.
const ArrayInputKey = "array_input"

var (
	// ErrInputValidation is wrapped by argument and input validation failures.
	ErrInputValidation = errors.New("input validation failed")
	// ErrOutputInvalid is wrapped by output coercion failures.
	ErrOutputInvalid = errors.New("output does not match schema")
)

// Kind is the normalized type of a field.
type Kind int

const (
	String Kind = iota
	Integer
	Float
	Boolean
	List
	Object
	Any
)

var kindNames = map[Kind]string{
	String:  "string",
	Integer: "integer",
	Float:   "number",
	Boolean: "boolean",
	List:    "array",
	Object:  "object",
	Any:     "any",
}

func (k Kind) String() string {
	return kindNames[k]
}

// ParseKind maps a case-insensitive type tag to a Kind.
// Unknown tags degrade to String.
func ParseKind(tag string) Kind {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "int", "integer":
		return Integer
	case "float", "number", "double":
		return Float
	case "bool", "boolean":
		return Boolean
	case "list", "array":
		return List
	case "dict", "object", "map":
		return Object
	case "any":
		return Any
	default:
		return String
	}
}

// Field is one entry of the descriptor table.
type Field struct {
	Name        string
	Description string
	Kind        Kind
	Required    bool
	Default     any
}

// FromConfig converts declared fields into descriptors. Defaults of
// required fields are dropped.
func FromConfig(fields []config.FieldConfig) []Field {
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		field := Field{
			Name:        f.Name,
			Description: f.Description,
			Kind:        ParseKind(f.Type),
			Required:    f.IsRequired(),
		}
		if !field.Required {
			field.Default = f.Default
		}
		out = append(out, field)
	}
	return out
}

// Schema validates records against a descriptor table.
type Schema struct {
	fields      []Field
	forbidExtra bool
	batch       bool
}

type Option func(*Schema)

// ForbidExtra rejects keys that are not declared.
func ForbidExtra() Option {
	return func(s *Schema) {
		s.forbidExtra = true
	}
}

// Batch expects records under ArrayInputKey.
func Batch(enabled bool) Option {
	return func(s *Schema) {
		s.batch = enabled
	}
}

func New(fields []Field, opts ...Option) *Schema {
	s := &Schema{fields: slices.Clone(fields)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ForInput builds the agent input schema. Extra keys are ignored.
func ForInput(in config.InputConfig) *Schema {
	return New(FromConfig(in.Fields), Batch(in.IsArray))
}

// ForOutput builds the agent output schema.
func ForOutput(out config.OutputConfig) *Schema {
	return New(FromConfig(out.Fields))
}

// ForTool builds a tool argument schema. Extra keys are rejected.
func ForTool(fields []config.FieldConfig) *Schema {
	return New(FromConfig(fields), ForbidExtra())
}

func (s *Schema) Fields() []Field {
	return slices.Clone(s.fields)
}

// Names returns field names in declaration order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

func (s *Schema) IsBatch() bool {
	return s.batch
}

// FieldIssue describes why one field failed validation.
type FieldIssue struct {
	Field   string
	Message string
}

// ValidationError lists every field issue of a record.
type ValidationError struct {
	Issues []FieldIssue
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = is.Field + ": " + is.Message
	}
	return fmt.Sprintf("%s: %s", ErrInputValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInputValidation
}

// Validate checks a record and returns it normalized: missing optional
// fields are filled from defaults (nil when none) and values are converted
// to their declared kind. Extra keys are dropped unless ForbidExtra is set,
// in which case they fail validation.
func (s *Schema) Validate(input map[string]any) (map[string]any, error) {
	if !s.batch {
		var issues []FieldIssue
		out := s.validateRecord("", input, &issues)
		if len(issues) > 0 {
			return nil, &ValidationError{Issues: issues}
		}
		return out, nil
	}

	raw, ok := input[ArrayInputKey]
	if !ok || raw == nil {
		return nil, &ValidationError{Issues: []FieldIssue{{Field: ArrayInputKey, Message: "field required"}}}
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, &ValidationError{Issues: []FieldIssue{{Field: ArrayInputKey, Message: "expected a list"}}}
	}

	var issues []FieldIssue
	validated := make([]any, 0, len(items))
	for i, item := range items {
		prefix := fmt.Sprintf("%s[%d].", ArrayInputKey, i)
		record, ok := item.(map[string]any)
		if !ok {
			issues = append(issues, FieldIssue{Field: strings.TrimSuffix(prefix, "."), Message: "expected an object"})
			continue
		}
		validated = append(validated, s.validateRecord(prefix, record, &issues))
	}
	if len(issues) > 0 {
		return nil, &ValidationError{Issues: issues}
	}
	return map[string]any{ArrayInputKey: validated}, nil
}

func (s *Schema) validateRecord(prefix string, input map[string]any, issues *[]FieldIssue) map[string]any {
	out := make(map[string]any, len(s.fields))

	for _, f := range s.fields {
		v, present := input[f.Name]
		if !present || v == nil {
			if f.Required {
				*issues = append(*issues, FieldIssue{Field: prefix + f.Name, Message: "field required"})
				continue
			}
			out[f.Name] = f.Default
			continue
		}

		converted, err := checkValue(v, f.Kind)
		if err != nil {
			*issues = append(*issues, FieldIssue{Field: prefix + f.Name, Message: err.Error()})
			continue
		}
		out[f.Name] = converted
	}

	if s.forbidExtra {
		var extra []string
		for key := range input {
			if !slices.ContainsFunc(s.fields, func(f Field) bool { return f.Name == key }) {
				extra = append(extra, key)
			}
		}
		sort.Strings(extra)
		for _, key := range extra {
			*issues = append(*issues, FieldIssue{Field: prefix + key, Message: "extra inputs are not permitted"})
		}
	}

	return out
}

// JSONSchema renders the descriptor table as a JSON Schema object.
func (s *Schema) JSONSchema() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	var required []string

	for _, f := range s.fields {
		prop := &jsonschema.Schema{Description: f.Description}
		if f.Kind != Any {
			prop.Type = f.Kind.String()
		}
		if !f.Required && f.Default != nil {
			prop.Default = f.Default
		}
		props.Set(f.Name, prop)
		if f.Required {
			required = append(required, f.Name)
		}
	}

	record := &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
	if s.forbidExtra {
		record.AdditionalProperties = jsonschema.FalseSchema
	}

	if !s.batch {
		return record
	}

	batch := jsonschema.NewProperties()
	batch.Set(ArrayInputKey, &jsonschema.Schema{Type: "array", Items: record})
	return &jsonschema.Schema{
		Type:       "object",
		Properties: batch,
		Required:   []string{ArrayInputKey},
	}
}

// Parameters returns the JSON Schema as a plain map, the form model
// providers expect for tool parameters.
func (s *Schema) Parameters() map[string]any {
	data, err := json.Marshal(s.JSONSchema())
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"type": "object"}
	}
	if _, ok := out["properties"]; !ok {
		out["properties"] = map[string]any{}
	}
	return out
}

// Describe renders the schema as indented JSON for prompts.
func (s *Schema) Describe() string {
	data, err := json.MarshalIndent(s.JSONSchema(), "", "  ")
	if err != nil {
		return strings.Join(s.Names(), ", ")
	}
	return string(data)
}
