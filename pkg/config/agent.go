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

// Package config holds the declarative agent configuration and the
// ambient settings (environment, credentials, warehouse) of the runner.
package config

import "strings"

// Backend tags derived from a tool's code_path.
const (
	BackendBuiltin = "builtin"
	BackendFile    = "file"
	BackendAPI     = "api"

	// CodePathBuiltin marks a tool implemented by the utility library.
	CodePathBuiltin = "__builtin__"
	// CodePathAPI marks a tool synthesized from an API declaration.
	CodePathAPI = "__api__"
)

// Utility keys accepted in the utilities list.
const (
	UtilityRegexExtract  = "regex_extract"
	UtilityCalculator    = "calculator"
	UtilityDateParser    = "date_parser"
	UtilityStringOps     = "string_ops"
	UtilityJSONParser    = "json_parser"
	UtilityUnitConverter = "unit_converter"
	UtilityTextSummary   = "text_summary"
	UtilityNumberStats   = "number_stats"
	UtilityListOps       = "list_ops"
	UtilityURLParser     = "url_parser"
)

// UtilityKeys is the closed set of utility keys, in catalog order.
var UtilityKeys = []string{
	UtilityRegexExtract,
	UtilityCalculator,
	UtilityDateParser,
	UtilityStringOps,
	UtilityJSONParser,
	UtilityUnitConverter,
	UtilityTextSummary,
	UtilityNumberStats,
	UtilityListOps,
	UtilityURLParser,
}

// HTTPMethods lists the methods an API declaration may use.
var HTTPMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"}

// FieldConfig declares one typed field of an input or output record.
type FieldConfig struct {
	Name        string `yaml:"name" json:"name" jsonschema:"required,description=Field name"`
	Type        string `yaml:"type" json:"type" jsonschema:"required,description=Type tag (string/integer/float/boolean/list/dict/any)"`
	Description string `yaml:"description" json:"description" jsonschema:"required"`
	// Required defaults to true when omitted.
	Required *bool `yaml:"required,omitempty" json:"required,omitempty" jsonschema:"default=true"`
	Default  any   `yaml:"default,omitempty" json:"default,omitempty"`
}

// IsRequired reports whether the field is mandatory.
func (f FieldConfig) IsRequired() bool {
	return f.Required == nil || *f.Required
}

// InputConfig describes the caller input of an agent.
type InputConfig struct {
	IsArray bool          `yaml:"is_array,omitempty" json:"is_array,omitempty"`
	Fields  []FieldConfig `yaml:"fields" json:"fields" jsonschema:"required"`
}

// OutputConfig describes the structured result of an agent.
type OutputConfig struct {
	Fields []FieldConfig `yaml:"fields" json:"fields" jsonschema:"required,minItems=1"`
}

// AgentIdentity is the "agent" section of an AgentConfig.
type AgentIdentity struct {
	Name        string       `yaml:"name" json:"name" jsonschema:"required"`
	Description string       `yaml:"description" json:"description" jsonschema:"required"`
	Color       string       `yaml:"color,omitempty" json:"color,omitempty"`
	Input       InputConfig  `yaml:"input" json:"input" jsonschema:"required"`
	Output      OutputConfig `yaml:"output" json:"output" jsonschema:"required"`
}

// RAGConfig declares a knowledge base. Retrieval itself happens outside
// the runner; only the declaration is validated.
type RAGConfig struct {
	Provider          string `yaml:"provider,omitempty" json:"provider,omitempty" jsonschema:"enum=databricks,default=databricks"`
	IndexName         string `yaml:"index_name" json:"index_name" jsonschema:"required"`
	Description       string `yaml:"description" json:"description" jsonschema:"required"`
	EmbeddingModel    string `yaml:"embedding_model,omitempty" json:"embedding_model,omitempty" jsonschema:"enum=databricks-bge-small,default=databricks-bge-small"`
	EmbeddingEndpoint string `yaml:"embedding_endpoint,omitempty" json:"embedding_endpoint,omitempty" jsonschema:"default=databricks-bge-small"`
	ChunkSize         int    `yaml:"chunk_size,omitempty" json:"chunk_size,omitempty" jsonschema:"enum=500,default=500"`
	TopK              int    `yaml:"top_k,omitempty" json:"top_k,omitempty" jsonschema:"enum=5,default=5"`
}

// SetDefaults fills the literal defaults of a knowledge base.
func (r *RAGConfig) SetDefaults() {
	if r.Provider == "" {
		r.Provider = "databricks"
	}
	if r.EmbeddingModel == "" {
		r.EmbeddingModel = "databricks-bge-small"
	}
	if r.EmbeddingEndpoint == "" {
		r.EmbeddingEndpoint = "databricks-bge-small"
	}
	if r.ChunkSize == 0 {
		r.ChunkSize = 500
	}
	if r.TopK == 0 {
		r.TopK = 5
	}
}

// ToolInputConfig holds the argument fields of a tool.
type ToolInputConfig struct {
	Fields []FieldConfig `yaml:"fields" json:"fields" jsonschema:"required"`
}

// ToolOutputConfig holds the declared result fields of a tool.
type ToolOutputConfig struct {
	IsArray bool          `yaml:"is_array,omitempty" json:"is_array,omitempty"`
	Fields  []FieldConfig `yaml:"fields" json:"fields" jsonschema:"required"`
}

// ToolConfig declares a tool. The backend is derived from CodePath.
type ToolConfig struct {
	Name         string           `yaml:"name" json:"name" jsonschema:"required"`
	Description  string           `yaml:"description" json:"description" jsonschema:"required"`
	Inputs       ToolInputConfig  `yaml:"inputs" json:"inputs" jsonschema:"required"`
	Output       ToolOutputConfig `yaml:"output" json:"output" jsonschema:"required"`
	CodePath     string           `yaml:"code_path" json:"code_path" jsonschema:"required,description=__builtin__ / __api__ or a script path"`
	FunctionName string           `yaml:"function_name" json:"function_name" jsonschema:"required"`
}

// Backend returns the backend tag for the tool.
func (t ToolConfig) Backend() string {
	switch t.CodePath {
	case CodePathBuiltin:
		return BackendBuiltin
	case CodePathAPI:
		return BackendAPI
	default:
		return BackendFile
	}
}

// Auth types and placements.
const (
	AuthAPIKey = "api-key"
	AuthNone   = "none"

	AuthInHeader = "header"
	AuthInQuery  = "query"
)

// AuthConfig declares how an API authenticates.
type AuthConfig struct {
	Type   string `yaml:"type" json:"type" jsonschema:"required,enum=api-key,enum=none"`
	In     string `yaml:"in,omitempty" json:"in,omitempty" jsonschema:"enum=header,enum=query"`
	Field  string `yaml:"field" json:"field" jsonschema:"required"`
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
}

// APIExampleConfig carries an optional usage hint for the model.
type APIExampleConfig struct {
	Usage string `yaml:"usage,omitempty" json:"usage,omitempty"`
}

// APIConfig declares an HTTP endpoint exposed to the agent as a tool.
type APIConfig struct {
	Name        string            `yaml:"name" json:"name" jsonschema:"required"`
	URL         string            `yaml:"url" json:"url" jsonschema:"required"`
	Method      string            `yaml:"method" json:"method" jsonschema:"required,enum=GET,enum=POST,enum=PUT,enum=DELETE,enum=PATCH,enum=HEAD,enum=OPTIONS"`
	Headers     map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Queries     map[string]string `yaml:"queries,omitempty" json:"queries,omitempty"`
	Auth        AuthConfig        `yaml:"auth" json:"auth" jsonschema:"required"`
	Description string            `yaml:"description" json:"description" jsonschema:"required"`
	Example     *APIExampleConfig `yaml:"example,omitempty" json:"example,omitempty"`
}

// Complete reports whether the declaration carries what is needed to
// build an invoker.
func (a APIConfig) Complete() bool {
	return strings.TrimSpace(a.Name) != "" && strings.TrimSpace(a.URL) != "" && a.Method != ""
}

// ScrapingConfig declares a scraping target. Declarative only.
type ScrapingConfig struct {
	Name        string `yaml:"name" json:"name" jsonschema:"required"`
	URL         string `yaml:"url" json:"url" jsonschema:"required"`
	Description string `yaml:"description" json:"description" jsonschema:"required"`
}

// AgentConfig is the root of an agent configuration file.
type AgentConfig struct {
	Agent     AgentIdentity    `yaml:"agent" json:"agent" jsonschema:"required"`
	RAG       *RAGConfig       `yaml:"rag,omitempty" json:"rag,omitempty"`
	Tools     []ToolConfig     `yaml:"tools,omitempty" json:"tools,omitempty"`
	Utilities []string         `yaml:"utilities" json:"utilities" jsonschema:"required"`
	APIs      []APIConfig      `yaml:"apis" json:"apis" jsonschema:"required"`
	Scraping  []ScrapingConfig `yaml:"scraping" json:"scraping" jsonschema:"required"`
}

// SetDefaults applies literal defaults to optional sections.
func (c *AgentConfig) SetDefaults() {
	if c.RAG != nil {
		c.RAG.SetDefaults()
	}
}
