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

package runtime

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/kadirpekel/langsketch/pkg/config"
	"github.com/kadirpekel/langsketch/pkg/model"
	"github.com/kadirpekel/langsketch/pkg/model/openai"
	"github.com/kadirpekel/langsketch/pkg/router"
	"github.com/kadirpekel/langsketch/pkg/tool"
	"github.com/kadirpekel/langsketch/pkg/tool/apitool"
	"github.com/kadirpekel/langsketch/pkg/tool/functiontool"
	"github.com/kadirpekel/langsketch/pkg/tool/loader"
	"github.com/kadirpekel/langsketch/pkg/utility"
)

// ModelFactory creates the chat model for a routed model identifier.
type ModelFactory func(modelName string) (model.LLM, error)

// DefaultModelFactory serves every model through the OpenAI-compatible
// endpoint described by provider.
func DefaultModelFactory(provider config.ProviderConfig) ModelFactory {
	return func(modelName string) (model.LLM, error) {
		provider.SetDefaults()
		if err := provider.Validate(); err != nil {
			return nil, fmt.Errorf("invalid provider configuration: %w", err)
		}
		return openai.New(openai.Config{
			APIKey:     provider.APIKey,
			BaseURL:    provider.BaseURL,
			Model:      modelName,
			Timeout:    provider.Timeout,
			MaxRetries: provider.MaxRetries,
		})
	}
}

// ClassifierFactory adapts f for routing rules that ask a model to
// classify the request.
func ClassifierFactory(f ModelFactory) router.ClassifierFactory {
	return func(modelName string) (router.Classifier, error) {
		llm, err := f(modelName)
		if err != nil {
			return nil, err
		}
		return &router.LLMClassifier{LLM: model.NewNormalizer(llm)}, nil
	}
}

// utilityTools returns the declarations and implementations of the
// enabled utilities. Unknown keys are skipped.
func utilityTools(keys []string) ([]config.ToolConfig, map[string]functiontool.Func) {
	descs := make([]config.ToolConfig, 0, len(keys))
	funcs := make(map[string]functiontool.Func, len(keys))
	for _, key := range keys {
		u, ok := utility.Lookup(strings.TrimSpace(key))
		if !ok {
			slog.Warn("Skipping unknown utility", "utility", key)
			continue
		}
		descs = append(descs, u.Descriptor)
		funcs[u.Descriptor.FunctionName] = functiontool.Func(u.Func)
	}
	return descs, funcs
}

// apiTools synthesizes the declarations of complete APIs, keyed for the
// loader by tool name.
func apiTools(apis []config.APIConfig) ([]config.ToolConfig, map[string]config.APIConfig) {
	descs := make([]config.ToolConfig, 0, len(apis))
	byName := make(map[string]config.APIConfig, len(apis))
	for _, api := range apis {
		if !api.Complete() {
			slog.Warn("Skipping incomplete API", "api", api.Name, "url", api.URL)
			continue
		}
		desc := apitool.Descriptor(api)
		descs = append(descs, desc)
		byName[desc.Name] = api
	}
	return descs, byName
}

// loadTools builds every declaration, logging and skipping failures and
// duplicate names.
func loadTools(descs []config.ToolConfig, opts loader.Options) []tool.Tool {
	tools := make([]tool.Tool, 0, len(descs))
	seen := make(map[string]bool, len(descs))
	for _, desc := range descs {
		t, err := loader.Load(desc, opts)
		if err != nil {
			slog.Error("Failed to load tool", "tool", desc.Name, "backend", desc.Backend(), "error", err)
			continue
		}
		if seen[t.Name()] {
			slog.Warn("Skipping duplicate tool", "tool", t.Name())
			continue
		}
		seen[t.Name()] = true
		tools = append(tools, t)
		slog.Debug("Loaded tool", "tool", t.Name(), "backend", desc.Backend())
	}
	return tools
}
