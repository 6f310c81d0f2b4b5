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
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
)

// AgentsDir is the directory, relative to the project root, holding agent
// configuration files.
const AgentsDir = "agents"

// ErrAgentNotFound is returned when no configuration file exists for an agent.
var ErrAgentNotFound = errors.New("agent configuration not found")

// AgentPath returns the configuration path of an agent under root.
func AgentPath(root, name string) string {
	return filepath.Join(root, AgentsDir, name+".json")
}

// LoadAgent reads <root>/agents/<name>.json and returns the validated config.
func LoadAgent(root, name string) (*AgentConfig, error) {
	dir := filepath.Join(root, AgentsDir)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: agents directory %s does not exist", ErrAgentNotFound, dir)
		}
		return nil, fmt.Errorf("failed to access agents directory: %w", err)
	}
	return LoadFile(AgentPath(root, name))
}

// LoadFile reads and validates a configuration file.
func LoadFile(path string) (*AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	slog.Debug("Loaded agent configuration",
		"path", path,
		"agent", cfg.Agent.Name,
		"tools", len(cfg.Tools),
		"utilities", len(cfg.Utilities),
		"apis", len(cfg.APIs))
	return cfg, nil
}

// Parse decodes a JSON document into a validated AgentConfig.
// ${VAR} and ${VAR:-default} references in string values are expanded.
func Parse(data []byte) (*AgentConfig, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ValidationError{Issues: []Issue{{Message: fmt.Sprintf("invalid JSON: %v", err)}}}
	}
	if raw == nil {
		return nil, &ValidationError{Issues: []Issue{{Message: "configuration must be a JSON object"}}}
	}
	return ParseMap(raw)
}

// ParseMap validates an already decoded document.
func ParseMap(raw map[string]any) (*AgentConfig, error) {
	expanded, _ := ExpandEnvVarsInData(raw).(map[string]any)

	if err := checkRequired(expanded).err(); err != nil {
		return nil, err
	}

	cfg := &AgentConfig{}
	if err := decodeConfig(expanded, cfg); err != nil {
		return nil, &ValidationError{Issues: []Issue{{Message: err.Error()}}}
	}
	cfg.SetDefaults()

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeConfig(input map[string]any, output *AgentConfig) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("failed to decode: %w", err)
	}

	return nil
}

// checkRequired reports keys that are absent or null in the raw document.
func checkRequired(raw map[string]any) issues {
	var is issues

	root := requireKeys(&is, "", raw, "agent", "utilities", "apis", "scraping")
	if root == nil {
		return is
	}

	if agent := requireKeys(&is, "agent", root["agent"], "name", "description", "input", "output"); agent != nil {
		if input := requireKeys(&is, "agent.input", agent["input"], "fields"); input != nil {
			checkFields(&is, "agent.input.fields", input["fields"])
		}
		if output := requireKeys(&is, "agent.output", agent["output"], "fields"); output != nil {
			checkFields(&is, "agent.output.fields", output["fields"])
		}
	}

	if rag, ok := root["rag"]; ok && rag != nil {
		requireKeys(&is, "rag", rag, "index_name", "description")
	}

	eachItem(&is, "tools", root["tools"], func(path string, item any) {
		tool := requireKeys(&is, path, item, "name", "description", "inputs", "output", "code_path", "function_name")
		if tool == nil {
			return
		}
		if inputs := requireKeys(&is, path+".inputs", tool["inputs"], "fields"); inputs != nil {
			checkFields(&is, path+".inputs.fields", inputs["fields"])
		}
		if output := requireKeys(&is, path+".output", tool["output"], "fields"); output != nil {
			checkFields(&is, path+".output.fields", output["fields"])
		}
	})

	eachItem(&is, "utilities", root["utilities"], func(path string, item any) {
		if _, ok := item.(string); !ok {
			is.add(path, "expected a string")
		}
	})

	eachItem(&is, "apis", root["apis"], func(path string, item any) {
		api := requireKeys(&is, path, item, "name", "url", "method", "auth", "description")
		if api != nil {
			requireKeys(&is, path+".auth", api["auth"], "type", "field")
		}
	})

	eachItem(&is, "scraping", root["scraping"], func(path string, item any) {
		requireKeys(&is, path, item, "name", "url", "description")
	})

	return is
}

func checkFields(is *issues, path string, v any) {
	eachItem(is, path, v, func(p string, item any) {
		requireKeys(is, p, item, "name", "type", "description")
	})
}

func requireKeys(is *issues, path string, v any, keys ...string) map[string]any {
	if v == nil {
		return nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		is.add(path, "expected an object")
		return nil
	}
	for _, key := range keys {
		if val, ok := obj[key]; !ok || val == nil {
			is.add(joinPath(path, key), "field required")
		}
	}
	return obj
}

func eachItem(is *issues, path string, v any, fn func(path string, item any)) {
	if v == nil {
		return
	}
	items, ok := v.([]any)
	if !ok {
		is.add(path, "expected a list")
		return
	}
	for i, item := range items {
		fn(fmt.Sprintf("%s[%d]", path, i), item)
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
