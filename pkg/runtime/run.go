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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/langsketch/pkg/agent"
	"github.com/kadirpekel/langsketch/pkg/checkpoint"
	"github.com/kadirpekel/langsketch/pkg/config"
	"github.com/kadirpekel/langsketch/pkg/model"
	"github.com/kadirpekel/langsketch/pkg/schema"
	"github.com/kadirpekel/langsketch/pkg/telemetry"
)

// State is a step of a run.
type State string

const (
	StateInit            State = "INIT"
	StateInputOK         State = "INPUT_OK"
	StateInputBad        State = "INPUT_BAD"
	StatePrompted        State = "PROMPTED"
	StateStreaming       State = "STREAMING"
	StateExecBad         State = "EXEC_BAD"
	StateAnswerExtracted State = "ANSWER_EXTRACTED"
	StateCoerced         State = "COERCED"
	StateEmitted         State = "EMITTED"
	StateDone            State = "DONE"
)

// MaxCoerceRetries bounds the model-assisted reformat attempts.
const MaxCoerceRetries = 2

// Execution is the trace of one run.
type Execution struct {
	ID      string
	Start   time.Time
	Input   map[string]any
	States  []State
	Prompt  string
	Answer  string
	Output  map[string]any
	Coerced bool
	Record  *telemetry.Record
	Err     error
}

func (e *Execution) enter(s State) {
	e.States = append(e.States, s)
}

// State returns the current state.
func (e *Execution) State() State {
	if len(e.States) == 0 {
		return StateInit
	}
	return e.States[len(e.States)-1]
}

// Run executes the agent on input and returns a mapping keyed by the
// output fields. Every failure yields a fallback mapping instead of an
// error, and every run emits one telemetry record.
func (r *AgentRuntime) Run(ctx context.Context, input map[string]any) map[string]any {
	exec := &Execution{ID: uuid.NewString(), Start: r.now(), Input: input}
	exec.enter(StateInit)

	ctx, span := r.tracer.StartAgentRun(ctx, r.Name(), checkpoint.DefaultThreadID)
	defer span.End()

	b := telemetry.NewBuilder(r.info, exec.Start)
	b.SetInput(input)

	exec.Output = r.execute(ctx, exec, b)

	end := r.now()
	exec.Record = b.Build(end)
	r.emit(ctx, exec.Record)
	exec.enter(StateEmitted)

	r.tracer.RecordError(span, exec.Err)
	r.metrics.RecordAgentRun(ctx, r.Name(), end.Sub(exec.Start), exec.Record.TotalTokensUsed, exec.Err)
	exec.enter(StateDone)

	r.mu.Lock()
	r.last = exec
	r.mu.Unlock()

	slog.Info("Agent run finished",
		"agent", r.Name(),
		"execution_id", exec.ID,
		"success", exec.Record.Success,
		"sequence", exec.Record.ExecutionSequence,
		"duration_ms", exec.Record.ExecutionDurationMS)
	return exec.Output
}

func (r *AgentRuntime) execute(ctx context.Context, exec *Execution, b *telemetry.Builder) map[string]any {
	validated, err := r.inSchema.Validate(exec.Input)
	if err != nil {
		exec.enter(StateInputBad)
		exec.Err = err
		b.InputInvalid(err)
		slog.Warn("Input validation failed", "agent", r.Name(), "error", err)
		return schema.Fallback(r.outSchema, err.Error())
	}
	exec.enter(StateInputOK)

	exec.Prompt = r.Prompt(validated)
	exec.enter(StatePrompted)

	exec.enter(StateStreaming)
	last, err := r.stream(ctx, exec.Prompt, b)
	if err != nil {
		exec.enter(StateExecBad)
		exec.Err = err
		b.Fail(telemetry.ErrorTypeExecution, err)
		slog.Error("Agent execution failed", "agent", r.Name(), "error", err)
		return schema.Fallback(r.outSchema, err.Error())
	}

	exec.Answer = finalAnswer(last)
	exec.enter(StateAnswerExtracted)

	output, ok := r.coerce(ctx, exec.Answer)
	exec.Coerced = ok
	b.SetOutputValid(ok)
	exec.enter(StateCoerced)
	return output
}

// stream drives the reasoning loop on the fixed thread and feeds the
// builder. It returns the last event.
func (r *AgentRuntime) stream(ctx context.Context, prompt string, b *telemetry.Builder) (*agent.Event, error) {
	var last *agent.Event
	for ev, err := range r.agent.Stream(ctx, checkpoint.DefaultThreadID, prompt) {
		if err != nil {
			if errors.Is(err, agent.ErrModelCall) {
				b.AddLLMError()
			}
			return last, err
		}
		b.AddEvent()
		last = ev

		for _, call := range ev.ToolCalls() {
			b.AddToolCall(telemetry.ToolCall{
				Name:      call.Name,
				ID:        call.ID,
				Args:      call.Args,
				Timestamp: ev.Timestamp,
			})
		}
		if c := ev.LLMCall; c != nil {
			b.AddLLMCall(telemetry.LLMCall{
				Model:            c.Model,
				PromptTokens:     c.Usage.PromptTokens,
				CompletionTokens: c.Usage.CompletionTokens,
				TotalTokens:      c.Usage.TotalTokens,
				FinishReason:     string(c.FinishReason),
				Timestamp:        ev.Timestamp,
			})
		}
		for _, res := range ev.ToolResults {
			if res.Err != nil {
				b.AddToolError()
			}
		}
	}
	return last, nil
}

// finalAnswer probes the last event for the answer text: the last agent
// message, then the last message of any kind, then the event itself.
func finalAnswer(ev *agent.Event) string {
	if ev == nil {
		return ""
	}
	if msgs := ev.AgentMessages(); len(msgs) > 0 {
		return msgs[len(msgs)-1].Content
	}
	if len(ev.Messages) > 0 {
		return ev.Messages[len(ev.Messages)-1].Content
	}
	return ev.String()
}

const reformatInstruction = "You convert text into JSON. Reply with a single JSON object and nothing else."

// coerce maps the answer onto the output schema, asking the model to
// reformat it when direct coercion fails. The flag reports whether the
// result came from the answer rather than the per-field fallback.
func (r *AgentRuntime) coerce(ctx context.Context, answer string) (map[string]any, bool) {
	out, err := schema.Coerce(answer, r.outSchema)
	if err == nil {
		return out, true
	}
	slog.Debug("Direct output coercion failed", "agent", r.Name(), "error", err)

	prompt := fmt.Sprintf("Convert the following text into a JSON object matching this schema:\n%s\n\nText:\n%s\n\nReturn only the JSON object.",
		r.outSchema.Describe(), answer)

	for attempt := 1; attempt <= MaxCoerceRetries; attempt++ {
		resp, err := r.model.Generate(ctx, &model.Request{
			Messages: []*model.Message{
				model.SystemMessage(reformatInstruction),
				model.UserMessage(prompt),
			},
		})
		if err != nil {
			slog.Warn("Output reformat failed", "agent", r.Name(), "attempt", attempt, "error", err)
			continue
		}
		obj, ok := schema.ExtractObject(resp.TextContent())
		if !ok {
			slog.Debug("Reformatted output holds no JSON object", "agent", r.Name(), "attempt", attempt)
			continue
		}
		if out, err = schema.Coerce(obj, r.outSchema); err == nil {
			return out, true
		}
		slog.Debug("Reformatted output does not match schema", "agent", r.Name(), "attempt", attempt, "error", err)
	}

	slog.Warn("Output coercion failed, using defaults", "agent", r.Name())
	return schema.Fallback(r.outSchema, answer), false
}

// emit hands the record to the sink, which includes the audit file
// unless disabled. Failures are logged only.
func (r *AgentRuntime) emit(ctx context.Context, rec *telemetry.Record) {
	if err := r.sink.Write(ctx, rec); err != nil {
		slog.Error("Failed to emit telemetry", "agent", rec.AgentName, "error", err)
	}
}

// Prompt synthesizes the run prompt for validated input.
func (r *AgentRuntime) Prompt(validated map[string]any) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Agent: %s\n%s\n\n", r.cfg.Agent.Name, r.cfg.Agent.Description)

	label := "Input Data"
	if _, ok := validated[schema.ArrayInputKey]; ok {
		label = "Array Input"
	}
	data, err := json.MarshalIndent(validated, "", "  ")
	if err != nil {
		data = []byte(fmt.Sprint(validated))
	}
	fmt.Fprintf(&b, "%s:\n%s\n\n", label, data)

	names := make([]string, len(r.tools))
	for i, t := range r.tools {
		names[i] = t.Name()
	}
	if len(names) == 0 {
		b.WriteString("Available tools: none\n\n")
	} else {
		fmt.Fprintf(&b, "Available tools: %s\n\n", strings.Join(names, ", "))
	}

	b.WriteString("Instructions:\n")
	b.WriteString("- Use the available tools whenever they help produce the result.\n")
	if label == "Array Input" {
		b.WriteString("- Process every item of the array input.\n")
	}
	b.WriteString("- Respond with a single JSON object matching the output schema below, without commentary.\n\n")

	fmt.Fprintf(&b, "Output schema:\n%s", r.outSchema.Describe())
	return b.String()
}

func systemInstruction(cfg *config.AgentConfig) string {
	return fmt.Sprintf("You are %s. %s", cfg.Agent.Name, strings.TrimSpace(cfg.Agent.Description))
}
