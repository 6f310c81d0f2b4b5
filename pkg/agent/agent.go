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

package agent

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/langsketch/pkg/checkpoint"
	"github.com/kadirpekel/langsketch/pkg/model"
	"github.com/kadirpekel/langsketch/pkg/observability"
	"github.com/kadirpekel/langsketch/pkg/tool"
	"github.com/kadirpekel/langsketch/pkg/utils"
)

// DefaultMaxIterations bounds model calls per stream.
const DefaultMaxIterations = 25

var (
	// ErrMaxIterations is returned when the model keeps requesting tools.
	ErrMaxIterations = errors.New("reasoning loop iteration limit exceeded")

	// ErrModelCall wraps a failed model call.
	ErrModelCall = errors.New("model call failed")
)

// Config configures an Agent.
type Config struct {
	// Name identifies the agent in logs and traces.
	Name string

	// Instruction is sent as the system message of every call. It is not
	// stored in the conversation.
	Instruction string

	Model model.LLM
	Tools []tool.Tool

	// Memory holds the conversation. Default: a fresh in-memory manager.
	Memory *checkpoint.Manager

	// MaxIterations bounds model calls per stream.
	// Default: 25
	MaxIterations int

	GenerateConfig *model.GenerateConfig

	// Tokens estimates usage when the provider reports none.
	Tokens *utils.TokenCounter

	Tracer  *observability.Tracer
	Metrics observability.Metrics
}

// Agent is a tool-calling reasoning loop bound to one model.
type Agent struct {
	name          string
	instruction   string
	model         model.LLM
	tools         []tool.Tool
	toolsByName   map[string]tool.Tool
	definitions   []tool.Definition
	memory        *checkpoint.Manager
	hooks         *checkpoint.Hooks
	maxIterations int
	genConfig     *model.GenerateConfig
	tokens        *utils.TokenCounter
	tracer        *observability.Tracer
	metrics       observability.Metrics
}

// New creates an Agent.
func New(cfg Config) (*Agent, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("agent %q: model is required", cfg.Name)
	}

	a := &Agent{
		name:          cfg.Name,
		instruction:   cfg.Instruction,
		model:         cfg.Model,
		tools:         cfg.Tools,
		toolsByName:   make(map[string]tool.Tool, len(cfg.Tools)),
		memory:        cfg.Memory,
		maxIterations: cfg.MaxIterations,
		genConfig:     cfg.GenerateConfig,
		tokens:        cfg.Tokens,
		tracer:        cfg.Tracer,
		metrics:       cfg.Metrics,
	}
	if a.memory == nil {
		a.memory = checkpoint.NewManager(nil, nil)
	}
	a.hooks = checkpoint.NewHooks(a.memory)
	if a.maxIterations <= 0 {
		a.maxIterations = DefaultMaxIterations
	}
	if a.tracer == nil {
		a.tracer = observability.NoopTracer()
	}
	if a.metrics == nil {
		a.metrics = observability.GetGlobalMetrics()
	}

	for _, t := range cfg.Tools {
		if _, dup := a.toolsByName[t.Name()]; dup {
			return nil, fmt.Errorf("agent %q: duplicate tool name %q", cfg.Name, t.Name())
		}
		a.toolsByName[t.Name()] = t
		a.definitions = append(a.definitions, tool.DefinitionOf(t))
	}

	return a, nil
}

// Name returns the agent name.
func (a *Agent) Name() string {
	return a.name
}

// Tools returns the bound tools.
func (a *Agent) Tools() []tool.Tool {
	return a.tools
}

// Model returns the bound model.
func (a *Agent) Model() model.LLM {
	return a.model
}

// Stream sends prompt on threadID and yields one event per loop step.
// The sequence ends after the final reply or with an error.
func (a *Agent) Stream(ctx context.Context, threadID, prompt string) iter.Seq2[*Event, error] {
	return func(yield func(*Event, error) bool) {
		state := a.memory.Resume(ctx, threadID)
		state.Append(model.UserMessage(prompt))

		for iteration := 0; iteration < a.maxIterations; iteration++ {
			if err := ctx.Err(); err != nil {
				a.hooks.OnError(ctx, state)
				yield(nil, err)
				return
			}
			state.WithIteration(iteration)

			resp, call, err := a.generate(ctx, state.Messages)
			if err != nil {
				a.hooks.OnError(ctx, state)
				yield(nil, err)
				return
			}
			state.Append(resp.Message)
			a.hooks.AfterLLMCall(ctx, state)

			ev := newEvent(threadID, NodeAgent, iteration)
			ev.Messages = []*model.Message{resp.Message}
			ev.LLMCall = call
			ev.Final = !resp.Message.HasToolCalls()

			if ev.Final {
				slog.Debug("Reasoning loop finished", "agent", a.name, "iterations", iteration+1)
				a.hooks.OnComplete(ctx, state)
				yield(ev, nil)
				return
			}
			if !yield(ev, nil) {
				return
			}

			toolEv := newEvent(threadID, NodeTools, iteration)
			for _, tc := range resp.Message.ToolCalls {
				result := a.callTool(ctx, tc)
				toolEv.ToolResults = append(toolEv.ToolResults, result)
				toolEv.Messages = append(toolEv.Messages, model.ToolMessage(tc, result.Content))
			}
			state.Append(toolEv.Messages...)
			a.hooks.AfterToolExecution(ctx, state)

			if !yield(toolEv, nil) {
				return
			}
		}

		a.hooks.OnError(ctx, state)
		yield(nil, fmt.Errorf("%w (%d iterations)", ErrMaxIterations, a.maxIterations))
	}
}

// generate calls the model with the conversation.
func (a *Agent) generate(ctx context.Context, history []*model.Message) (*model.Response, *LLMCall, error) {
	messages := history
	if a.instruction != "" {
		messages = append([]*model.Message{model.SystemMessage(a.instruction)}, history...)
	}

	ctx, span := a.tracer.StartLLMCall(ctx, a.model.Name())
	defer span.End()

	start := time.Now()
	resp, err := a.model.Generate(ctx, &model.Request{
		Messages: messages,
		Tools:    a.definitions,
		Config:   a.genConfig.Clone(),
	})
	duration := time.Since(start)

	if err == nil && (resp == nil || resp.Message == nil) {
		err = errors.New("empty response")
	}
	if err != nil {
		a.tracer.RecordError(span, err)
		a.metrics.RecordLLMCall(ctx, a.model.Name(), duration, 0, 0, err)
		return nil, nil, fmt.Errorf("%w: %v", ErrModelCall, err)
	}

	populateToolCallIDs(resp.Message)

	call := &LLMCall{
		Model:        resp.Model,
		FinishReason: resp.FinishReason,
		Duration:     duration,
	}
	if call.Model == "" {
		call.Model = a.model.Name()
	}
	if call.FinishReason == "" {
		call.FinishReason = model.FinishReasonStop
		if resp.Message.HasToolCalls() {
			call.FinishReason = model.FinishReasonToolCalls
		}
	}
	switch {
	case resp.Usage != nil:
		call.Usage = *resp.Usage
	case a.tokens != nil:
		call.Usage = *a.tokens.EstimateUsage(messages, resp.Message)
		call.Estimated = true
	}

	a.tracer.AddLLMUsage(span, call.Usage.PromptTokens, call.Usage.CompletionTokens, string(call.FinishReason))
	a.metrics.RecordLLMCall(ctx, call.Model, duration, call.Usage.PromptTokens, call.Usage.CompletionTokens, nil)

	slog.Debug("Model call completed",
		"agent", a.name,
		"model", call.Model,
		"tool_calls", len(resp.Message.ToolCalls),
		"duration", duration)

	return resp, call, nil
}

// callTool runs one call. Failures become the result text so the model
// can react to them.
func (a *Agent) callTool(ctx context.Context, tc model.ToolCall) ToolResult {
	result := ToolResult{CallID: tc.ID, Name: tc.Name, Args: tc.Args}

	t, ok := a.toolsByName[tc.Name]
	if !ok {
		result.Err = fmt.Errorf("%w: tool %q not found", tool.ErrToolFailed, tc.Name)
		result.Content = fmt.Sprintf("Error: tool %q not found", tc.Name)
		slog.Warn("Model requested unknown tool", "agent", a.name, "tool", tc.Name)
		return result
	}

	ctx, span := a.tracer.StartToolExecution(ctx, tc.Name, tc.ID)
	defer span.End()

	start := time.Now()
	out, err := t.Call(ctx, tc.Args)
	result.Duration = time.Since(start)

	a.tracer.RecordError(span, err)
	a.metrics.RecordToolExecution(ctx, tc.Name, result.Duration, err)

	if err != nil {
		result.Err = err
		result.Content = fmt.Sprintf("Error executing function: %v", err)
		slog.Warn("Tool call failed", "agent", a.name, "tool", tc.Name, "error", err)
		return result
	}
	result.Content = out
	slog.Debug("Tool call completed", "agent", a.name, "tool", tc.Name, "duration", result.Duration)
	return result
}

// populateToolCallIDs assigns ids to calls the model left unnamed.
func populateToolCallIDs(msg *model.Message) {
	for i := range msg.ToolCalls {
		if msg.ToolCalls[i].ID == "" {
			msg.ToolCalls[i].ID = "call_" + uuid.NewString()
		}
	}
}
