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

package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrConfigInvalid is wrapped by every configuration validation failure.
var ErrConfigInvalid = errors.New("invalid agent configuration")

// Issue is a single validation problem located by a dotted path.
type Issue struct {
	Path    string
	Message string
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// ValidationError collects every issue found in a configuration.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.String()
	}
	return fmt.Sprintf("%s: %s", ErrConfigInvalid, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrConfigInvalid
}

type issues []Issue

func (is *issues) add(path, format string, args ...any) {
	*is = append(*is, Issue{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (is issues) err() error {
	if len(is) == 0 {
		return nil
	}
	return &ValidationError{Issues: is}
}

// Validate checks value constraints of a decoded configuration.
// Presence of required keys is checked by Parse on the raw document.
func Validate(cfg *AgentConfig) error {
	var is issues

	if strings.TrimSpace(cfg.Agent.Name) == "" {
		is.add("agent.name", "must not be empty")
	}
	validateFields(&is, "agent.input.fields", cfg.Agent.Input.Fields)
	if len(cfg.Agent.Output.Fields) == 0 {
		is.add("agent.output.fields", "at least one output field is required")
	}
	validateFields(&is, "agent.output.fields", cfg.Agent.Output.Fields)

	if cfg.RAG != nil {
		validateRAG(&is, cfg.RAG)
	}

	for i, tool := range cfg.Tools {
		path := fmt.Sprintf("tools[%d]", i)
		if strings.TrimSpace(tool.Name) == "" {
			is.add(path+".name", "must not be empty")
		}
		if tool.Backend() == BackendFile && strings.TrimSpace(tool.FunctionName) == "" {
			is.add(path+".function_name", "required for file tools")
		}
		validateFields(&is, path+".inputs.fields", tool.Inputs.Fields)
		validateFields(&is, path+".output.fields", tool.Output.Fields)
	}

	for i, key := range cfg.Utilities {
		if !slices.Contains(UtilityKeys, key) {
			is.add(fmt.Sprintf("utilities[%d]", i), "unknown utility %q (valid: %s)", key, strings.Join(UtilityKeys, ", "))
		}
	}

	for i, api := range cfg.APIs {
		validateAPI(&is, fmt.Sprintf("apis[%d]", i), api)
	}

	return is.err()
}

func validateFields(is *issues, path string, fields []FieldConfig) {
	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		p := fmt.Sprintf("%s[%d]", path, i)
		if strings.TrimSpace(f.Name) == "" {
			is.add(p+".name", "must not be empty")
			continue
		}
		if seen[f.Name] {
			is.add(p+".name", "duplicate field %q", f.Name)
		}
		seen[f.Name] = true
	}
}

func validateRAG(is *issues, rag *RAGConfig) {
	if rag.Provider != "databricks" {
		is.add("rag.provider", "must be %q, got %q", "databricks", rag.Provider)
	}
	if rag.EmbeddingModel != "databricks-bge-small" {
		is.add("rag.embedding_model", "must be %q, got %q", "databricks-bge-small", rag.EmbeddingModel)
	}
	if rag.ChunkSize != 500 {
		is.add("rag.chunk_size", "must be 500, got %d", rag.ChunkSize)
	}
	if rag.TopK != 5 {
		is.add("rag.top_k", "must be 5, got %d", rag.TopK)
	}
}

func validateAPI(is *issues, path string, api APIConfig) {
	if !slices.Contains(HTTPMethods, api.Method) {
		is.add(path+".method", "invalid method %q (valid: %s)", api.Method, strings.Join(HTTPMethods, ", "))
	}

	auth := api.Auth
	switch auth.Type {
	case AuthAPIKey:
		if auth.APIKey == "" {
			is.add(path+".auth.api_key", "api_key is required when type is 'api-key'")
		}
	case AuthNone:
		if auth.APIKey != "" {
			is.add(path+".auth.api_key", "api_key should not be provided when type is 'none'")
		}
	default:
		is.add(path+".auth.type", "invalid auth type %q (valid: api-key, none)", auth.Type)
	}

	switch auth.In {
	case "", AuthInHeader, AuthInQuery:
	default:
		is.add(path+".auth.in", "invalid placement %q (valid: header, query)", auth.In)
	}
}
