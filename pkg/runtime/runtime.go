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

// Package runtime assembles an agent from its configuration and runs it:
// input validation, the reasoning loop, output coercion and telemetry.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kadirpekel/langsketch/pkg/agent"
	"github.com/kadirpekel/langsketch/pkg/checkpoint"
	"github.com/kadirpekel/langsketch/pkg/config"
	"github.com/kadirpekel/langsketch/pkg/httpclient"
	"github.com/kadirpekel/langsketch/pkg/model"
	"github.com/kadirpekel/langsketch/pkg/observability"
	"github.com/kadirpekel/langsketch/pkg/router"
	"github.com/kadirpekel/langsketch/pkg/schema"
	"github.com/kadirpekel/langsketch/pkg/telemetry"
	"github.com/kadirpekel/langsketch/pkg/tool"
	"github.com/kadirpekel/langsketch/pkg/tool/loader"
	"github.com/kadirpekel/langsketch/pkg/utils"
)

// DefaultAuditDir is where audit files go unless Options.AuditDir says
// otherwise.
const DefaultAuditDir = "."

// Options tunes how an AgentRuntime is assembled.
type Options struct {
	// RouterName selects the router. Defaults to router.IntelligenceRouter.
	RouterName string

	// Routers replaces the process-wide router registry.
	Routers *router.Registry

	// ModelFactory builds the routed model. Defaults to
	// DefaultModelFactory(config.ProviderFromEnv()).
	ModelFactory ModelFactory

	// Model skips routing and is used as is.
	Model model.LLM

	// BaseDir resolves relative script tool paths.
	BaseDir string

	// HTTPClient overrides the client of API tools.
	HTTPClient *httpclient.Client

	// Sink receives the execution record. Defaults to telemetry.Discard.
	Sink telemetry.Sink

	// AuditDir holds <agent>_output_json.json, which keeps every record
	// of the agent. Defaults to DefaultAuditDir.
	AuditDir string

	// NoAudit turns the audit file off.
	NoAudit bool

	// Memory configures the conversation memory.
	Memory *checkpoint.Config

	// MaxIterations bounds the reasoning loop.
	MaxIterations int

	// EstimateTokens counts tokens locally when the provider reports no
	// usage.
	EstimateTokens bool

	Tracer  *observability.Tracer
	Metrics observability.Metrics

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// AgentRuntime runs one configured agent. Runs share the conversation
// memory and must not overlap.
type AgentRuntime struct {
	cfg       *config.AgentConfig
	inSchema  *schema.Schema
	outSchema *schema.Schema

	model     model.LLM
	modelName string
	tools     []tool.Tool
	agent     *agent.Agent
	memory    *checkpoint.Manager
	info      telemetry.AgentInfo

	sink    telemetry.Sink
	tracer  *observability.Tracer
	metrics observability.Metrics
	now     func() time.Time

	mu   sync.Mutex
	last *Execution
}

// New assembles the runtime for cfg: route and build the model, register
// utilities and API tools, load every tool and create the agent. Tool
// problems are logged and skipped; routing and model errors are returned.
func New(ctx context.Context, cfg *config.AgentConfig, opts Options) (*AgentRuntime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("agent configuration is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Tracer == nil {
		opts.Tracer = observability.NoopTracer()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.GetGlobalMetrics()
	}
	if opts.Sink == nil {
		opts.Sink = telemetry.Discard
	}
	if !opts.NoAudit {
		dir := opts.AuditDir
		if dir == "" {
			dir = DefaultAuditDir
		}
		opts.Sink = telemetry.Multi(telemetry.AuditSink{Dir: dir}, opts.Sink)
	}

	r := &AgentRuntime{
		cfg:       cfg,
		inSchema:  schema.ForInput(cfg.Agent.Input),
		outSchema: schema.ForOutput(cfg.Agent.Output),
		sink:      opts.Sink,
		tracer:    opts.Tracer,
		metrics:   opts.Metrics,
		now:       opts.Now,
	}

	llm, modelName, err := resolveModel(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	r.model = model.NewNormalizer(llm)
	r.modelName = modelName

	utilDescs, builtins := utilityTools(cfg.Utilities)
	apiDescs, apis := apiTools(cfg.APIs)

	descs := make([]config.ToolConfig, 0, len(utilDescs)+len(cfg.Tools)+len(apiDescs))
	descs = append(descs, utilDescs...)
	descs = append(descs, cfg.Tools...)
	descs = append(descs, apiDescs...)

	r.tools = loadTools(descs, loader.Options{
		Builtins:   builtins,
		APIs:       apis,
		BaseDir:    opts.BaseDir,
		HTTPClient: opts.HTTPClient,
	})

	memCfg := opts.Memory
	if memCfg == nil {
		memCfg = &checkpoint.Config{}
	}
	memCfg.SetDefaults()
	if err := memCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid memory configuration: %w", err)
	}
	r.memory = checkpoint.NewManager(memCfg, nil)

	var tokens *utils.TokenCounter
	if opts.EstimateTokens {
		if tokens, err = utils.NewTokenCounter(modelName); err != nil {
			slog.Warn("Token counting unavailable, estimating from length", "model", modelName, "error", err)
		}
	}

	r.agent, err = agent.New(agent.Config{
		Name:          cfg.Agent.Name,
		Instruction:   systemInstruction(cfg),
		Model:         r.model,
		Tools:         r.tools,
		Memory:        r.memory,
		MaxIterations: opts.MaxIterations,
		Tokens:        tokens,
		Tracer:        r.tracer,
		Metrics:       r.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	r.info = telemetry.AgentInfo{
		Name:        cfg.Agent.Name,
		Description: cfg.Agent.Description,
		Tools:       tool.Names(r.tools),
		Utilities:   cfg.Utilities,
		APIs:        len(cfg.APIs),
	}

	slog.Info("Agent ready",
		"agent", cfg.Agent.Name,
		"model", modelName,
		"tools", len(r.tools),
		"declared", len(descs))
	return r, nil
}

func resolveModel(ctx context.Context, cfg *config.AgentConfig, opts Options) (model.LLM, string, error) {
	if opts.Model != nil {
		return opts.Model, opts.Model.Name(), nil
	}

	factory := opts.ModelFactory
	if factory == nil {
		factory = DefaultModelFactory(config.ProviderFromEnv())
	}

	name := opts.RouterName
	if name == "" {
		name = router.IntelligenceRouter
	}

	var (
		rt  *router.Router
		err error
	)
	if opts.Routers != nil {
		opts.Routers.SetClassifierFactory(ClassifierFactory(factory))
		rt, err = opts.Routers.Router(name)
	} else {
		router.Setup()
		router.Default().SetClassifierFactory(ClassifierFactory(factory))
		rt, err = router.Get(name)
	}
	if err != nil {
		return nil, "", err
	}

	modelName, err := rt.SelectModel(ctx, map[string]any{router.MessagesKey: router.Describe(cfg)})
	if err != nil {
		return nil, "", fmt.Errorf("failed to route agent %q: %w", cfg.Agent.Name, err)
	}

	llm, err := factory(modelName)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create model %q: %w", modelName, err)
	}
	slog.Debug("Routed agent", "agent", cfg.Agent.Name, "router", name, "model", modelName)
	return llm, modelName, nil
}

// Name returns the agent name.
func (r *AgentRuntime) Name() string {
	return r.cfg.Agent.Name
}

// Config returns the agent configuration.
func (r *AgentRuntime) Config() *config.AgentConfig {
	return r.cfg
}

// ModelName returns the routed model identifier.
func (r *AgentRuntime) ModelName() string {
	return r.modelName
}

// Tools returns the loaded tools.
func (r *AgentRuntime) Tools() []tool.Tool {
	return r.tools
}

// InputSchema returns the derived input schema.
func (r *AgentRuntime) InputSchema() *schema.Schema {
	return r.inSchema
}

// OutputSchema returns the derived output schema.
func (r *AgentRuntime) OutputSchema() *schema.Schema {
	return r.outSchema
}

// LastExecution returns the most recent run, or nil.
func (r *AgentRuntime) LastExecution() *Execution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Reset clears the conversation memory.
func (r *AgentRuntime) Reset(ctx context.Context) error {
	return r.memory.Clear(ctx, checkpoint.DefaultThreadID)
}
